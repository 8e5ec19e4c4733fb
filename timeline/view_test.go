package timeline

import (
	"math"
	"testing"
	"time"

	"roadmap-planner/domain"
)

func mkTask(id string, start, end time.Time) domain.Task {
	return domain.Task{ID: id, Title: "Task " + id, StartTime: start, EndTime: end, Status: domain.StatusTodo}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestViewEmptySkipsLayout(t *testing.T) {
	v := NewView(nil)
	v.SetTasks(nil)

	l := v.Layout()
	if !l.Empty {
		t.Fatalf("expected empty layout")
	}
	if len(l.Items) != 0 || len(l.Markers) != 0 {
		t.Fatalf("empty layout must carry no items or markers: %+v", l)
	}
}

func TestViewSingleTaskDayMode(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(5 * 24 * time.Hour)
	v := NewView(nil)
	v.SetTasks([]domain.Task{mkTask("t", start, end)})

	if v.Granularity() != Day {
		t.Fatalf("expected day granularity, got %s", v.Granularity())
	}
	ws, we := v.Window()
	if !ws.Equal(start.AddDate(0, 0, -14)) || !we.Equal(end.AddDate(0, 0, 14)) {
		t.Fatalf("unexpected window %v - %v", ws, we)
	}
	l := v.Layout()
	if l.Rows != 1 || len(l.Items) != 1 {
		t.Fatalf("expected a single row, got %+v", l)
	}
	if l.Height != HeaderHeight+RowHeight+BottomPadding {
		t.Fatalf("unexpected height %d", l.Height)
	}
	if l.Units != 33 || l.PxPerUnit != defaultDayZoom || l.Width != float64(33*defaultDayZoom) {
		t.Fatalf("unexpected scale: units=%d px=%d width=%v", l.Units, l.PxPerUnit, l.Width)
	}
}

func TestViewAutoHourMode(t *testing.T) {
	v := NewView(nil)
	v.SetTasks([]domain.Task{
		mkTask("A", at(9, 0), at(10, 0)),
		mkTask("B", at(9, 30), at(10, 30)),
		mkTask("C", at(10, 0), at(11, 0)),
	})

	if v.Granularity() != Hour {
		t.Fatalf("expected hour granularity, got %s", v.Granularity())
	}
	if v.Zoom() != defaultHourZoom {
		t.Fatalf("expected hour zoom default, got %d", v.Zoom())
	}
	ws, we := v.Window()
	if !ws.Equal(at(3, 0)) || !we.Equal(at(17, 0)) {
		t.Fatalf("unexpected window %v - %v", ws, we)
	}

	l := v.Layout()
	items := map[string]ItemLayout{}
	for _, it := range l.Items {
		items[it.ID] = it
	}
	// window is 14h long, A starts 6h in and lasts 1h
	if !approx(items["A"].LeftPct, 6.0/14*100) || !approx(items["A"].WidthPct, 1.0/14*100) {
		t.Fatalf("unexpected A coordinates %+v", items["A"])
	}
	if items["A"].TopPx != RowOffset || items["B"].TopPx != RowHeight+RowOffset || items["C"].TopPx != RowOffset {
		t.Fatalf("unexpected tops A=%d B=%d C=%d", items["A"].TopPx, items["B"].TopPx, items["C"].TopPx)
	}
	if items["A"].Color != (domain.Task{Status: domain.StatusTodo}).DisplayColor() {
		t.Fatalf("expected status color fallback, got %s", items["A"].Color)
	}
	if l.Height != HeaderHeight+2*RowHeight+BottomPadding {
		t.Fatalf("unexpected height %d", l.Height)
	}
}

func TestViewSpanExactlyThreeDaysUsesDays(t *testing.T) {
	v := NewView(nil)
	v.SetTasks([]domain.Task{mkTask("t", at(0, 0), at(72, 0))})
	if v.Granularity() != Day {
		t.Fatalf("72h span should use days, got %s", v.Granularity())
	}
}

func TestManualGranularitySurvivesRecompute(t *testing.T) {
	v := NewView(nil)
	v.SetTasks([]domain.Task{mkTask("t", at(9, 0), at(10, 0))})
	if v.Granularity() != Hour {
		t.Fatalf("expected hour granularity first")
	}

	if err := v.SetGranularity(Day); err != nil {
		t.Fatalf("set granularity: %v", err)
	}
	if v.Zoom() != defaultDayZoom {
		t.Fatalf("switching unit should reset zoom, got %d", v.Zoom())
	}
	v.SetTasks([]domain.Task{mkTask("t", at(9, 0), at(10, 0)), mkTask("u", at(11, 0), at(12, 0))})
	if v.Granularity() != Day {
		t.Fatalf("manual granularity was clobbered")
	}
	ws, _ := v.Window()
	if !ws.Equal(at(9, 0).AddDate(0, 0, -14)) {
		t.Fatalf("expected day padding under manual day mode, got %v", ws)
	}

	v.ResetGranularity()
	if v.Granularity() != Hour {
		t.Fatalf("reset should restore automatic selection")
	}
	if err := v.SetGranularity("week"); !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCustomRangeValidation(t *testing.T) {
	v := NewView(nil)
	v.SetTasks([]domain.Task{mkTask("t", at(9, 0), at(10, 0))})
	ws, we := v.Window()

	if err := v.SetCustomRange(at(12, 0), at(8, 0)); !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := v.SetCustomRange(at(8, 0), at(8, 0)); !domain.IsValidation(err) {
		t.Fatalf("expected validation error for empty range, got %v", err)
	}
	gs, ge := v.Window()
	if !gs.Equal(ws) || !ge.Equal(we) {
		t.Fatalf("rejected range changed the window")
	}
}

func TestCustomRangeDisablesPaddingUntilReset(t *testing.T) {
	v := NewView(nil)
	v.SetTasks([]domain.Task{mkTask("t", at(9, 0), at(10, 0))})
	if err := v.SetCustomRange(at(8, 0), at(12, 0)); err != nil {
		t.Fatalf("custom range: %v", err)
	}
	v.SetTasks([]domain.Task{mkTask("t", at(9, 0), at(10, 0)), mkTask("u", at(20, 0), at(21, 0))})
	ws, we := v.Window()
	if !ws.Equal(at(8, 0)) || !we.Equal(at(12, 0)) {
		t.Fatalf("custom range overwritten: %v - %v", ws, we)
	}

	l := v.Layout()
	for _, it := range l.Items {
		if it.ID == "t" && !approx(it.LeftPct, 25) {
			t.Fatalf("expected t at 25%%, got %v", it.LeftPct)
		}
	}

	v.ResetRange()
	ws, we = v.Window()
	if !ws.Equal(at(3, 0)) || !we.Equal(at(27, 0)) {
		t.Fatalf("reset range should restore padding, got %v - %v", ws, we)
	}
}

func TestFitToWidthClamps(t *testing.T) {
	tests := []struct {
		name      string
		tasks     []domain.Task
		container int
		want      int
	}{
		// 33 days: 1650/33 = 50
		{"day exact", []domain.Task{mkTask("t", at(0, 0), at(120, 0))}, 1650, 50},
		{"day floor", []domain.Task{mkTask("t", at(0, 0), at(120, 0))}, 100, minDayZoom},
		{"day ceiling", []domain.Task{mkTask("t", at(0, 0), at(120, 0))}, 100000, maxDayZoom},
		// 13 hours: 1040/13/0.8 = 100
		{"hour exact", []domain.Task{mkTask("t", at(9, 0), at(10, 0))}, 1040, 100},
		{"hour floor", []domain.Task{mkTask("t", at(9, 0), at(10, 0))}, 10, minHourZoom},
		{"hour ceiling", []domain.Task{mkTask("t", at(9, 0), at(10, 0))}, 100000, maxHourZoom},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewView(nil)
			v.SetTasks(tt.tasks)
			if got := v.FitToWidth(tt.container); got != tt.want {
				t.Fatalf("FitToWidth(%d) = %d, want %d", tt.container, got, tt.want)
			}
		})
	}
}

func TestFitToWidthKeepsPlacements(t *testing.T) {
	v := NewView(nil)
	v.SetTasks([]domain.Task{mkTask("A", at(9, 0), at(10, 0)), mkTask("B", at(9, 30), at(10, 30))})
	passes := v.rowPasses
	before := v.Placements()

	v.FitToWidth(800)
	v.FitToWidth(1600)

	if v.rowPasses != passes {
		t.Fatalf("fit to width recomputed rows")
	}
	after := v.Placements()
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("placements changed: %v vs %v", before, after)
		}
	}
}

func TestWidthFollowsZoom(t *testing.T) {
	v := NewView(nil)
	v.SetTasks([]domain.Task{mkTask("t", at(9, 0), at(10, 0))})
	v.SetZoom(50)
	// 13 hours at 50px scaled by 0.8
	if got := v.Width(); !approx(got, 13*50*hourScale) {
		t.Fatalf("unexpected width %v", got)
	}
	v.SetZoom(1000)
	if v.Zoom() != maxHourZoom {
		t.Fatalf("zoom not clamped: %d", v.Zoom())
	}
}

func TestMarkersDayMode(t *testing.T) {
	v := NewView(nil)
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	v.SetTasks([]domain.Task{mkTask("t", start, start.Add(5*24*time.Hour))})

	var months, days int
	for _, m := range v.Layout().Markers {
		switch m.Kind {
		case MonthMarker:
			months++
			if m.Time.Day() != 1 {
				t.Fatalf("month marker not on the first: %v", m.Time)
			}
		case DayMarker:
			days++
			if m.Time.Day()%5 != 0 {
				t.Fatalf("sparse day marker on %v", m.Time)
			}
		case HourMarker:
			t.Fatalf("no hour markers in day mode")
		}
		if m.LeftPct < 0 || m.LeftPct > 100 {
			t.Fatalf("marker outside window: %+v", m)
		}
	}
	// window Feb 16 - Mar 20
	if months != 1 {
		t.Fatalf("expected 1 month marker, got %d", months)
	}
	if days != 6 {
		t.Fatalf("expected 6 day markers, got %d", days)
	}

	v.SetZoom(80)
	days = 0
	for _, m := range v.Layout().Markers {
		if m.Kind == DayMarker {
			days++
		}
	}
	if days != 34 {
		t.Fatalf("expected a marker per day at high zoom, got %d", days)
	}
}

func TestMarkersHourMode(t *testing.T) {
	v := NewView(nil)
	v.SetTasks([]domain.Task{mkTask("t", at(9, 0), at(10, 0))})

	var hours, days int
	for _, m := range v.Layout().Markers {
		switch m.Kind {
		case HourMarker:
			hours++
		case DayMarker:
			days++
		case MonthMarker:
			t.Fatalf("no month markers in hour mode")
		}
	}
	// window 03:00 - 16:00 at zoom 30: every hour, no day markers below zoom 40
	if hours != 14 || days != 0 {
		t.Fatalf("hours=%d days=%d", hours, days)
	}

	v.SetZoom(20)
	hours = 0
	for _, m := range v.Layout().Markers {
		if m.Kind == HourMarker {
			hours++
			if m.Time.Hour()%3 != 0 {
				t.Fatalf("sparse hour marker at %v", m.Time)
			}
		}
	}
	if hours != 5 {
		t.Fatalf("expected every third hour, got %d", hours)
	}
}

func TestParseGranularity(t *testing.T) {
	if g, err := ParseGranularity("hours"); err != nil || g != Hour {
		t.Fatalf("ParseGranularity(hours) = %s, %v", g, err)
	}
	if _, err := ParseGranularity("weeks"); !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCustomRangeCappedPerGranularity(t *testing.T) {
	long := at(0, 0).AddDate(0, 0, 91)
	tests := []struct {
		name    string
		manual  Granularity
		end     time.Time
		wantErr bool
		wantG   Granularity
	}{
		{name: "hour within cap", manual: Hour, end: at(0, 0).AddDate(0, 0, 90), wantG: Hour},
		{name: "hour beyond cap", manual: Hour, end: long, wantErr: true, wantG: Hour},
		{name: "auto falls back to days", end: long, wantG: Day},
		{name: "day beyond cap", manual: Day, end: at(0, 0).AddDate(21, 0, 0), wantErr: true, wantG: Day},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewView(nil)
			v.SetTasks([]domain.Task{mkTask("t", at(9, 0), at(10, 0))})
			if tt.manual != "" {
				if err := v.SetGranularity(tt.manual); err != nil {
					t.Fatalf("granularity: %v", err)
				}
			}
			ws, we := v.Window()

			err := v.SetCustomRange(at(0, 0), tt.end)
			if tt.wantErr {
				if !domain.IsValidation(err) {
					t.Fatalf("expected validation error, got %v", err)
				}
				gs, ge := v.Window()
				if !gs.Equal(ws) || !ge.Equal(we) {
					t.Fatalf("rejected range changed the window")
				}
			} else if err != nil {
				t.Fatalf("custom range: %v", err)
			}
			if v.Granularity() != tt.wantG {
				t.Fatalf("granularity = %s, want %s", v.Granularity(), tt.wantG)
			}
		})
	}
}

func TestSetGranularityRejectsLongCustomRange(t *testing.T) {
	v := NewView(nil)
	v.SetTasks([]domain.Task{mkTask("t", at(9, 0), at(10, 0))})
	if err := v.SetCustomRange(at(0, 0), at(0, 0).AddDate(1, 0, 0)); err != nil {
		t.Fatalf("custom range: %v", err)
	}
	if err := v.SetGranularity(Hour); !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if v.Granularity() != Day {
		t.Fatalf("granularity changed to %s", v.Granularity())
	}

	// recomputing in auto mode must not drop back to hours either
	v.SetTasks([]domain.Task{mkTask("t", at(9, 0), at(9, 30))})
	if v.Granularity() != Day {
		t.Fatalf("auto mode picked %s for a year-long window", v.Granularity())
	}
}

func TestMarkersThinnedOverLongRanges(t *testing.T) {
	tests := []struct {
		name string
		g    Granularity
		end  time.Time
		zoom int
	}{
		{name: "day dense", g: Day, end: at(0, 0).AddDate(19, 0, 0), zoom: 80},
		{name: "day sparse", g: Day, end: at(0, 0).AddDate(19, 0, 0), zoom: 20},
		{name: "hour dense", g: Hour, end: at(0, 0).AddDate(0, 0, 90), zoom: 150},
		{name: "hour sparse", g: Hour, end: at(0, 0).AddDate(0, 0, 90), zoom: 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewView(nil)
			v.SetTasks([]domain.Task{mkTask("t", at(9, 0), at(10, 0))})
			if err := v.SetGranularity(tt.g); err != nil {
				t.Fatalf("granularity: %v", err)
			}
			if err := v.SetCustomRange(at(0, 0), tt.end); err != nil {
				t.Fatalf("custom range: %v", err)
			}
			v.SetZoom(tt.zoom)

			counts := map[MarkerKind]int{}
			last := map[MarkerKind]time.Time{}
			for _, m := range v.Layout().Markers {
				counts[m.Kind]++
				if prev, ok := last[m.Kind]; ok && !m.Time.After(prev) {
					t.Fatalf("%s markers out of order: %v after %v", m.Kind, m.Time, prev)
				}
				last[m.Kind] = m.Time
			}
			for kind, n := range counts {
				if n > maxMarkersPerKind {
					t.Fatalf("%d %s markers, limit %d", n, kind, maxMarkersPerKind)
				}
			}
			if counts[DayMarker] == 0 && tt.g == Day {
				t.Fatalf("thinning dropped every day marker")
			}
			if counts[HourMarker] == 0 && tt.g == Hour {
				t.Fatalf("thinning dropped every hour marker")
			}
		})
	}
}

func TestMarkerStep(t *testing.T) {
	tests := []struct {
		count, want int
	}{
		{0, 1},
		{maxMarkersPerKind, 1},
		{maxMarkersPerKind + 1, 2},
		{7306, 19},
	}
	for _, tt := range tests {
		if got := markerStep(tt.count); got != tt.want {
			t.Fatalf("markerStep(%d) = %d, want %d", tt.count, got, tt.want)
		}
	}
}
