package cmd

import (
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"roadmap-planner/timeline"
)

type timelineOptions struct {
	file        string
	width       int
	granularity string
	start, end  string
	tz          string
	jsonMode    bool
}

func newTimelineCmd() *cobra.Command {
	var opts timelineOptions
	c := &cobra.Command{
		Use:   "timeline",
		Short: "Lay out the tasks of a board on the timeline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			layout, err := opts.layout()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.jsonMode {
				data, err := sonic.ConfigStd.MarshalIndent(layout, "", "  ")
				if err != nil {
					return err
				}
				_, err = out.Write(append(data, '\n'))
				return err
			}
			if layout.Empty {
				fmt.Fprintln(out, "No tasks to display")
				return nil
			}
			fmt.Fprintf(out, "%s .. %s  granularity=%s  px/unit=%d  rows=%d  width=%.0fpx\n",
				layout.Start.Format(time.RFC3339), layout.End.Format(time.RFC3339),
				layout.Granularity, layout.PxPerUnit, layout.Rows, layout.Width)

			t := table.NewWriter()
			t.SetOutputMirror(out)
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Row", "Task", "Title", "Start", "End", "Left %", "Width %"})
			for _, it := range layout.Items {
				t.AppendRow(table.Row{
					it.Row, it.ID, it.Title,
					it.Start.Format("2006-01-02 15:04"), it.End.Format("2006-01-02 15:04"),
					fmt.Sprintf("%.2f", it.LeftPct), fmt.Sprintf("%.2f", it.WidthPct),
				})
			}
			t.Render()
			return nil
		},
	}
	f := c.Flags()
	f.StringVarP(&opts.file, "file", "f", "", "board file (YAML or JSON)")
	f.IntVar(&opts.width, "width", 0, "container width in px; fits the zoom when set")
	f.StringVar(&opts.granularity, "granularity", "", "day or hour (automatic when empty)")
	f.StringVar(&opts.start, "start", "", "window start (RFC 3339), requires --end")
	f.StringVar(&opts.end, "end", "", "window end (RFC 3339), requires --start")
	f.StringVar(&opts.tz, "tz", "UTC", "IANA time zone for calendar markers")
	f.BoolVar(&opts.jsonMode, "json", false, "print the layout as JSON")
	_ = c.MarkFlagRequired("file")
	c.MarkFlagsRequiredTogether("start", "end")
	return c
}

func (o timelineOptions) layout() (timeline.Layout, error) {
	loc, err := time.LoadLocation(o.tz)
	if err != nil {
		return timeline.Layout{}, fmt.Errorf("unknown time zone %q", o.tz)
	}
	bf, err := readBoardFile(o.file)
	if err != nil {
		return timeline.Layout{}, err
	}
	b, _ := bf.load()

	view := timeline.NewView(loc)
	view.SetTasks(b.OrderedTasks())
	if o.granularity != "" {
		g, err := timeline.ParseGranularity(o.granularity)
		if err != nil {
			return timeline.Layout{}, err
		}
		if err := view.SetGranularity(g); err != nil {
			return timeline.Layout{}, err
		}
	}
	if o.start != "" {
		start, err := time.Parse(time.RFC3339, o.start)
		if err != nil {
			return timeline.Layout{}, fmt.Errorf("bad --start: %w", err)
		}
		end, err := time.Parse(time.RFC3339, o.end)
		if err != nil {
			return timeline.Layout{}, fmt.Errorf("bad --end: %w", err)
		}
		if err := view.SetCustomRange(start, end); err != nil {
			return timeline.Layout{}, err
		}
	}
	if o.width < 0 {
		return timeline.Layout{}, fmt.Errorf("--width must be positive")
	}
	if o.width > 0 {
		view.FitToWidth(o.width)
	}
	return view.Layout(), nil
}
