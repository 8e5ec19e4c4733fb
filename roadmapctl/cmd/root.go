// Package cmd implements the roadmapctl commands: offline board checks,
// timeline layout rendering and dev token minting.
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd builds the command tree writing to out.
func NewRootCmd(out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "roadmapctl",
		Short: "Inspect roadmap boards offline",
		Long: `roadmapctl works on board files (YAML or JSON) exported from a roadmap.
It checks the column invariants, lays out the timeline and mints local
development tokens.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.SetOut(out)
	root.AddCommand(newCheckCmd(), newTimelineCmd(), newRedistributeCmd(), newTokenCmd())
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
