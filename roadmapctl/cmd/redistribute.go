package cmd

import (
	"github.com/bytedance/sonic"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"roadmap-planner/domain"
)

func newRedistributeCmd() *cobra.Command {
	var (
		file     string
		jsonMode bool
	)
	c := &cobra.Command{
		Use:   "redistribute",
		Short: "Rebuild the columns of a board from task statuses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bf, err := readBoardFile(file)
			if err != nil {
				return err
			}
			b, _ := bf.load()
			b, _ = b.Redistribute()
			out := cmd.OutOrStdout()
			if jsonMode {
				data, err := sonic.ConfigStd.MarshalIndent(b.Columns, "", "  ")
				if err != nil {
					return err
				}
				_, err = out.Write(append(data, '\n'))
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(out)
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Column", "#", "Task", "Title", "Start"})
			for _, colID := range domain.CanonicalColumnOrder {
				col := b.Columns[colID]
				for i, id := range col.TaskIDs {
					task := b.Tasks[id]
					t.AppendRow(table.Row{col.Title, i, id, task.Title, task.StartTime.Format("2006-01-02 15:04")})
				}
				if len(col.TaskIDs) == 0 {
					t.AppendRow(table.Row{col.Title, "-", "", "", ""})
				}
			}
			t.Render()
			return nil
		},
	}
	c.Flags().StringVarP(&file, "file", "f", "", "board file (YAML or JSON)")
	c.Flags().BoolVar(&jsonMode, "json", false, "print columns as JSON")
	_ = c.MarkFlagRequired("file")
	return c
}
