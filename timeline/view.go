package timeline

import (
	"fmt"
	"math"
	"time"

	"roadmap-planner/domain"
)

// Granularity is the unit of the time axis.
type Granularity string

const (
	Day  Granularity = "day"
	Hour Granularity = "hour"
)

// ParseGranularity validates a raw granularity name.
func ParseGranularity(raw string) (Granularity, error) {
	switch Granularity(raw) {
	case Day, "days":
		return Day, nil
	case Hour, "hours":
		return Hour, nil
	}
	return "", &domain.ValidationError{Field: "granularity", Message: "must be day or hour"}
}

func (g Granularity) unit() time.Duration {
	if g == Hour {
		return time.Hour
	}
	return 24 * time.Hour
}

// maxWindow is the longest custom range accepted at granularity g.
func (g Granularity) maxWindow() time.Duration {
	if g == Hour {
		return maxHourWindow
	}
	return maxDayWindow
}

func windowTooLong(g Granularity) error {
	return &domain.ValidationError{
		Field:   "range",
		Message: fmt.Sprintf("range must not exceed %d days at %s granularity", int(g.maxWindow()/(24*time.Hour)), g),
	}
}

const (
	RowHeight     = 48
	RowOffset     = 3
	HeaderHeight  = 40
	BottomPadding = 20

	// hourModeThreshold is the task span below which hour granularity is
	// chosen automatically.
	hourModeThreshold = 72 * time.Hour
	hourPadding       = 6 * time.Hour
	dayPaddingDays    = 14

	defaultDayZoom  = 50
	defaultHourZoom = 30
	minDayZoom      = 25
	maxDayZoom      = 100
	minHourZoom     = 20
	maxHourZoom     = 150
	// hourScale shrinks hour columns so more of the day fits on screen.
	hourScale = 0.8

	maxHourWindow = 90 * 24 * time.Hour
	maxDayWindow  = 20 * 366 * 24 * time.Hour
	// maxMarkersPerKind bounds each marker series; longer windows are thinned.
	maxMarkersPerKind = 400
)

// View is the state of one rendered timeline: the tasks, the visible window,
// the axis granularity and the zoom level.
type View struct {
	loc *time.Location

	tasks      []domain.Task
	byID       map[string]domain.Task
	placements []Placement
	rows       int
	rowPasses  int

	granularity Granularity
	manualUnit  bool
	customRange bool
	start, end  time.Time
	zoom        int
}

// NewView returns an empty view. Calendar markers and day padding are
// computed in loc, UTC when nil.
func NewView(loc *time.Location) *View {
	if loc == nil {
		loc = time.UTC
	}
	return &View{loc: loc, granularity: Day, zoom: defaultDayZoom, byID: map[string]domain.Task{}}
}

// SetTasks replaces the task set and recomputes rows, granularity and window.
// A manual granularity or custom range survives the recomputation.
func (v *View) SetTasks(tasks []domain.Task) {
	v.tasks = append([]domain.Task(nil), tasks...)
	v.byID = make(map[string]domain.Task, len(tasks))
	items := make([]Item, len(tasks))
	for i, t := range tasks {
		v.byID[t.ID] = t
		items[i] = Item{ID: t.ID, Start: t.StartTime, End: t.EndTime}
	}
	v.placements = AssignRows(items)
	v.rows = RowCount(v.placements)
	v.rowPasses++

	if len(v.tasks) == 0 {
		return
	}
	first, last := v.span()
	if !v.manualUnit {
		g := Day
		if last.Sub(first) < hourModeThreshold && !(v.customRange && v.end.Sub(v.start) > Hour.maxWindow()) {
			g = Hour
		}
		v.switchUnit(g)
	}
	if !v.customRange {
		v.start, v.end = v.padded(first, last)
	}
}

func (v *View) span() (time.Time, time.Time) {
	first, last := v.tasks[0].StartTime, v.tasks[0].EndTime
	for _, t := range v.tasks {
		if t.StartTime.Before(first) {
			first = t.StartTime
		}
		if t.EndTime.After(last) {
			last = t.EndTime
		}
	}
	if last.Before(first) {
		last = first
	}
	return first, last
}

func (v *View) padded(first, last time.Time) (time.Time, time.Time) {
	if v.granularity == Hour {
		return first.Add(-hourPadding), last.Add(hourPadding)
	}
	return first.In(v.loc).AddDate(0, 0, -dayPaddingDays), last.In(v.loc).AddDate(0, 0, dayPaddingDays)
}

func (v *View) switchUnit(g Granularity) {
	if g == v.granularity {
		return
	}
	v.granularity = g
	if g == Hour {
		v.zoom = defaultHourZoom
	} else {
		v.zoom = defaultDayZoom
	}
}

// SetGranularity forces the axis unit until ResetGranularity is called. A
// custom range longer than the unit allows is rejected without any change.
func (v *View) SetGranularity(g Granularity) error {
	if g != Day && g != Hour {
		return &domain.ValidationError{Field: "granularity", Message: "must be day or hour"}
	}
	if v.customRange && v.end.Sub(v.start) > g.maxWindow() {
		return windowTooLong(g)
	}
	v.manualUnit = true
	v.switchUnit(g)
	if !v.customRange && len(v.tasks) > 0 {
		v.start, v.end = v.padded(v.span())
	}
	return nil
}

// ResetGranularity returns to automatic unit selection.
func (v *View) ResetGranularity() {
	v.manualUnit = false
	v.SetTasks(v.tasks)
}

// SetCustomRange pins the visible window. start must be before end and the
// range must fit the granularity; otherwise the view is left untouched. With
// automatic granularity a range too long for hours switches to days.
func (v *View) SetCustomRange(start, end time.Time) error {
	if !start.Before(end) {
		return &domain.ValidationError{Field: "range", Message: "end date must be after start date"}
	}
	g := v.granularity
	if !v.manualUnit && end.Sub(start) > g.maxWindow() {
		g = Day
	}
	if end.Sub(start) > g.maxWindow() {
		return windowTooLong(g)
	}
	v.switchUnit(g)
	v.customRange = true
	v.start, v.end = start, end
	return nil
}

// ResetRange returns to the automatic padded window.
func (v *View) ResetRange() {
	v.customRange = false
	if len(v.tasks) > 0 {
		v.start, v.end = v.padded(v.span())
	}
}

// Window returns the visible interval.
func (v *View) Window() (time.Time, time.Time) {
	return v.start, v.end
}

// Granularity returns the current axis unit.
func (v *View) Granularity() Granularity {
	return v.granularity
}

// Zoom returns the pixels per unit.
func (v *View) Zoom() int {
	return v.zoom
}

// SetZoom sets the pixels per unit, clamped to the range of the current unit.
func (v *View) SetZoom(px int) {
	v.zoom = v.clampZoom(px)
}

func (v *View) clampZoom(px int) int {
	lo, hi := minDayZoom, maxDayZoom
	if v.granularity == Hour {
		lo, hi = minHourZoom, maxHourZoom
	}
	if px < lo {
		return lo
	}
	if px > hi {
		return hi
	}
	return px
}

func (v *View) units() int {
	if !v.end.After(v.start) {
		return 0
	}
	return int(math.Ceil(float64(v.end.Sub(v.start)) / float64(v.granularity.unit())))
}

// FitToWidth picks the zoom at which the whole window fits containerPx.
// Row placement is not recomputed.
func (v *View) FitToWidth(containerPx int) int {
	units := v.units()
	if units == 0 || containerPx <= 0 {
		return v.zoom
	}
	per := containerPx / units
	if v.granularity == Hour {
		// inverse of hourScale
		per = containerPx * 5 / (units * 4)
	}
	v.zoom = v.clampZoom(per)
	return v.zoom
}

// Width returns the rendered width of the window in pixels.
func (v *View) Width() float64 {
	w := float64(v.units() * v.zoom)
	if v.granularity == Hour {
		w *= hourScale
	}
	return w
}

// Placements returns the row assignment of the current tasks.
func (v *View) Placements() []Placement {
	return append([]Placement(nil), v.placements...)
}

// Rows returns the number of rows in use.
func (v *View) Rows() int {
	return v.rows
}

// percentOf maps an epoch millisecond onto the window.
func (v *View) percentOf(ms int64) float64 {
	ws, we := v.start.UnixMilli(), v.end.UnixMilli()
	if we <= ws {
		return 0
	}
	return float64(ms-ws) / float64(we-ws) * 100
}
