// Package timeline lays tasks out on a horizontal time axis.
package timeline

import (
	"sort"
	"time"
)

// Item is a time interval to place on the timeline.
type Item struct {
	ID    string
	Start time.Time
	End   time.Time
}

// Placement is the row assigned to an item together with its interval in
// epoch milliseconds.
type Placement struct {
	ID      string `json:"id"`
	Row     int    `json:"row"`
	StartMs int64  `json:"startTime"`
	EndMs   int64  `json:"endTime"`
}

// AssignRows packs items into the fewest rows such that no two items in a
// row overlap. Items are taken in start order, ties kept in input order, and
// each goes to the lowest row whose last end is at or before its start, so
// an item starting exactly when another ends shares its row.
func AssignRows(items []Item) []Placement {
	out := make([]Placement, len(items))
	for i, it := range items {
		start, end := it.Start.UnixMilli(), it.End.UnixMilli()
		if end < start {
			end = start
		}
		out[i] = Placement{ID: it.ID, StartMs: start, EndMs: end}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartMs < out[j].StartMs })

	var rowLastEnd []int64
	for i := range out {
		row := 0
		for row < len(rowLastEnd) && rowLastEnd[row] > out[i].StartMs {
			row++
		}
		if row == len(rowLastEnd) {
			rowLastEnd = append(rowLastEnd, out[i].EndMs)
		} else {
			rowLastEnd[row] = out[i].EndMs
		}
		out[i].Row = row
	}
	return out
}

// RowCount returns the number of rows used by placements.
func RowCount(placements []Placement) int {
	rows := 0
	for _, p := range placements {
		if p.Row+1 > rows {
			rows = p.Row + 1
		}
	}
	return rows
}
