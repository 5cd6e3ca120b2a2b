package main

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"gradebook/internal/importer"
	"gradebook/internal/server"
)

type importCmdOptions struct {
	kind string
	note string
}

func newImportCmd(global *globalOptions) *cobra.Command {
	var opts importCmdOptions

	cmd := &cobra.Command{
		Use:   "import <file>...",
		Short: "导入花名册或成绩表 (xlsx/xls/csv)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := importer.ParseKind(opts.kind)
			if err != nil {
				return err
			}

			a, err := loadApp(global)
			if err != nil {
				return err
			}
			defer a.close()

			coord := importer.NewCoordinator(a.store, server.ImportSettings(a.cfg))
			for _, path := range args {
				abs, err := filepath.Abs(path)
				if err != nil {
					return err
				}
				ch := coord.Import(cmd.Context(), importer.ImportOptions{
					FilePath: abs,
					Kind:     kind,
					Note:     opts.note,
				})
				if err := printProgress(cmd.OutOrStdout(), ch); err != nil {
					return fmt.Errorf("%s: %w", filepath.Base(path), err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.kind, "kind", "roster", "导入类型: roster (花名册) | grades (成绩)")
	cmd.Flags().StringVar(&opts.note, "note", "", "备注 (默认: 批量导入 / 成绩导入)")
	return cmd
}

// printProgress 打印进度事件，返回 error 事件对应的错误
func printProgress(w io.Writer, ch <-chan importer.ProgressEvent) error {
	var failed error
	for evt := range ch {
		switch evt.Type {
		case "chunk_done":
			continue
		case "error":
			failed = fmt.Errorf("%s", evt.Message)
		case "done":
			if res, ok := evt.Data.(*importer.Result); ok {
				fmt.Fprintf(w, "%s → %s：读取 %d 条，新增 %d 条，分块 %d，耗时 %s\n",
					res.FileName, res.TableName, res.RowsRead, res.Inserted, res.Chunks, res.Duration.Round(time.Millisecond))
				continue
			}
		}
		fmt.Fprintf(w, "[%s] %s\n", evt.Type, evt.Message)
	}
	return failed
}
