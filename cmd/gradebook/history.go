package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"gradebook/internal/model"
)

func newHistoryCmd(global *globalOptions) *cobra.Command {
	var latestOnly bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "查看导入历史",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(global)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			var entries []model.ImportHistoryEntry
			if latestOnly {
				latest, err := a.store.LatestImport(ctx)
				if err != nil {
					return err
				}
				if latest == nil {
					fmt.Fprintln(cmd.OutOrStdout(), "暂无导入记录")
					return nil
				}
				entries = append(entries, *latest)
			} else {
				entries, err = a.store.ListImports(ctx)
				if err != nil {
					return err
				}
			}

			printHistory(cmd.OutOrStdout(), entries)
			return nil
		},
	}

	cmd.Flags().BoolVar(&latestOnly, "latest", false, "只显示最近一次导入")
	return cmd
}

func printHistory(w io.Writer, entries []model.ImportHistoryEntry) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\t导入时间\t文件\t表\t新增\t备注")
	for _, e := range entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\n", e.ID, e.ImportedAt, e.FileName, e.TableName, e.StudentCount, e.Note)
	}
	tw.Flush()
}
