package cmd

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

func newCheckCmd() *cobra.Command {
	var file string
	c := &cobra.Command{
		Use:   "check",
		Short: "Validate a board file against the column invariants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bf, err := readBoardFile(file)
			if err != nil {
				return err
			}
			b, problems := bf.load()
			out := cmd.OutOrStdout()
			if len(problems) == 0 {
				fmt.Fprintf(out, "%s %d tasks, board is consistent\n", text.FgGreen.Sprint("OK"), len(b.Tasks))
				return nil
			}
			for _, p := range problems {
				fmt.Fprintf(out, "%s %s\n", text.FgRed.Sprint("FAIL"), p)
			}
			return fmt.Errorf("%d problem(s) found", len(problems))
		},
	}
	c.Flags().StringVarP(&file, "file", "f", "", "board file (YAML or JSON)")
	_ = c.MarkFlagRequired("file")
	return c
}
