package timeline

import "time"

// ItemLayout positions one task inside the timeline canvas.
type ItemLayout struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Row      int       `json:"row"`
	Start    time.Time `json:"startTime"`
	End      time.Time `json:"endTime"`
	LeftPct  float64   `json:"left"`
	WidthPct float64   `json:"width"`
	TopPx    int       `json:"top"`
	Color    string    `json:"color"`
}

// MarkerKind is the calendar unit of an axis marker.
type MarkerKind string

const (
	MonthMarker MarkerKind = "month"
	DayMarker   MarkerKind = "day"
	HourMarker  MarkerKind = "hour"
)

// Marker is a labelled tick on the time axis.
type Marker struct {
	Kind    MarkerKind `json:"kind"`
	Time    time.Time  `json:"time"`
	LeftPct float64    `json:"left"`
}

// Layout is everything needed to draw the timeline.
type Layout struct {
	Empty       bool         `json:"empty"`
	Granularity Granularity  `json:"granularity"`
	Start       time.Time    `json:"start"`
	End         time.Time    `json:"end"`
	Units       int          `json:"units"`
	PxPerUnit   int          `json:"pxPerUnit"`
	Width       float64      `json:"width"`
	Height      int          `json:"height"`
	Rows        int          `json:"rows"`
	Items       []ItemLayout `json:"items"`
	Markers     []Marker     `json:"markers"`
}

// Layout computes item coordinates and axis markers. With no tasks only
// Empty is set.
func (v *View) Layout() Layout {
	if len(v.tasks) == 0 {
		return Layout{Empty: true, Granularity: v.granularity, PxPerUnit: v.zoom}
	}
	out := Layout{
		Granularity: v.granularity,
		Start:       v.start,
		End:         v.end,
		Units:       v.units(),
		PxPerUnit:   v.zoom,
		Width:       v.Width(),
		Rows:        v.rows,
		Height:      HeaderHeight + v.rows*RowHeight + BottomPadding,
		Items:       make([]ItemLayout, 0, len(v.placements)),
	}
	for _, p := range v.placements {
		t := v.byID[p.ID]
		out.Items = append(out.Items, ItemLayout{
			ID:       p.ID,
			Title:    t.Title,
			Row:      p.Row,
			Start:    time.UnixMilli(p.StartMs).In(v.loc),
			End:      time.UnixMilli(p.EndMs).In(v.loc),
			LeftPct:  v.percentOf(p.StartMs),
			WidthPct: v.percentOf(p.EndMs) - v.percentOf(p.StartMs),
			TopPx:    p.Row*RowHeight + RowOffset,
			Color:    t.DisplayColor(),
		})
	}
	out.Markers = v.markers()
	return out
}

// markers returns the month, day and hour ticks of the window. A series that
// would exceed maxMarkersPerKind is thinned to every n-th tick.
func (v *View) markers() []Marker {
	var out []Marker
	add := func(kind MarkerKind, at time.Time) {
		if at.Before(v.start) || at.After(v.end) {
			return
		}
		out = append(out, Marker{Kind: kind, Time: at, LeftPct: v.percentOf(at.UnixMilli())})
	}
	start := v.start.In(v.loc)
	span := v.end.Sub(v.start)

	if v.granularity == Day {
		step := markerStep(int(span/(30*24*time.Hour)) + 1)
		for m := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, v.loc); !m.After(v.end); m = m.AddDate(0, step, 0) {
			add(MonthMarker, m)
		}
	}

	if v.granularity == Day || v.zoom >= 40 {
		// sparse day ticks fall on every fifth day of the month
		dense := v.granularity == Hour || v.zoom >= 75
		every := 1
		if !dense {
			every = 5
		}
		step := markerStep(int(span/(24*time.Hour))/every + 1)
		for d := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, v.loc); !d.After(v.end); d = d.AddDate(0, 0, 1) {
			if !dense && d.Day()%5 != 0 {
				continue
			}
			add(DayMarker, d)
			if step > 1 {
				d = d.AddDate(0, 0, step*every-1)
			}
		}
	}

	if v.granularity == Hour {
		dense := v.zoom >= 30
		every := 1
		if !dense {
			every = 3
		}
		step := markerStep(int(span/time.Hour)/every + 1)
		for h := time.Date(start.Year(), start.Month(), start.Day(), start.Hour(), 0, 0, 0, v.loc); !h.After(v.end); h = h.Add(time.Hour) {
			if !dense && h.Hour()%3 != 0 {
				continue
			}
			add(HourMarker, h)
			if step > 1 {
				h = h.Add(time.Duration(step*every-1) * time.Hour)
			}
		}
	}
	return out
}

// markerStep returns the stride that keeps count ticks under the limit.
func markerStep(count int) int {
	if count <= maxMarkersPerKind {
		return 1
	}
	return (count + maxMarkersPerKind - 1) / maxMarkersPerKind
}
