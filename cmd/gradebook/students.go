package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"gradebook/internal/model"
)

func newStudentsCmd(global *globalOptions) *cobra.Command {
	var (
		table string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "students",
		Short: "查看分表中的学生 (默认当前表)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(global)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			if table == "" {
				if table, err = a.store.CurrentTable(ctx); err != nil {
					return err
				}
			}

			if table == model.CanonicalTable {
				grades, err := a.store.ListGrades(ctx, limit, 0)
				if err != nil {
					return err
				}
				printGrades(cmd.OutOrStdout(), grades)
				return nil
			}

			students, err := a.store.ListStudents(ctx, table, limit, 0)
			if err != nil {
				return err
			}
			total, err := a.store.CountRows(ctx, table)
			if err != nil {
				return err
			}
			printStudents(cmd.OutOrStdout(), students)
			fmt.Fprintf(cmd.OutOrStdout(), "\n%s：共 %d 条\n", table, total)
			return nil
		},
	}

	cmd.Flags().StringVar(&table, "table", "", "表名 (默认: 最近一次导入的分表)")
	cmd.Flags().IntVar(&limit, "limit", 50, "最多显示条数，0 表示全部")
	return cmd
}

func printStudents(w io.Writer, rows []model.StudentRecord) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "学号\t姓名\t班级\t学院\t专业\t年级")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", r.ID, r.Name, r.Class, r.College, r.Major, r.Grade)
	}
	tw.Flush()
}

func printGrades(w io.Writer, rows []model.GradeRecord) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "学号\t姓名\t班级\t课程\t成绩\t任课教师")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", r.ID, r.Name, r.Class, r.Course, r.Score, r.TeacherID)
	}
	tw.Flush()
}
