// Package board keeps task status and column membership in sync.
//
// Every operation takes a Board by value and returns a new one. Maps and
// slices reachable from an input Board are never written to, so callers may
// hold on to old snapshots for rollback.
package board

import (
	"errors"
	"fmt"
	"sort"

	"roadmap-planner/domain"
)

var (
	ErrTaskNotFound   = errors.New("task not found")
	ErrColumnNotFound = errors.New("column not found")
	ErrPresetNotFound = errors.New("preset not found")
	ErrDuplicateTask  = errors.New("task already exists")
	ErrStalePosition  = errors.New("task is not at the given source position")
	ErrInvariant      = errors.New("board invariant violated")
)

// Board is a snapshot of the tasks, columns and presets of one roadmap.
type Board struct {
	Tasks       map[string]domain.Task            `json:"tasks" yaml:"tasks"`
	Columns     map[domain.ColumnID]domain.Column `json:"columns" yaml:"columns"`
	ColumnOrder []domain.ColumnID                 `json:"columnOrder" yaml:"columnOrder"`
	Presets     map[string]domain.Preset          `json:"presets" yaml:"presets"`
}

// Empty returns a board with the canonical columns and nothing in them.
func Empty() Board {
	return Board{
		Tasks:       map[string]domain.Task{},
		Columns:     emptyColumns(),
		ColumnOrder: canonicalOrder(),
		Presets:     map[string]domain.Preset{},
	}
}

func emptyColumns() map[domain.ColumnID]domain.Column {
	cols := make(map[domain.ColumnID]domain.Column, len(domain.CanonicalColumnOrder))
	for _, id := range domain.CanonicalColumnOrder {
		cols[id] = domain.EmptyColumn(id)
	}
	return cols
}

func canonicalOrder() []domain.ColumnID {
	return append([]domain.ColumnID(nil), domain.CanonicalColumnOrder...)
}

// Distribute builds a board from scratch by grouping tasks on their status.
// Within a column tasks are ordered by start time, then id, so the result
// only depends on the task set.
func Distribute(tasks map[string]domain.Task) Board {
	b := Empty()
	b.Tasks = make(map[string]domain.Task, len(tasks))
	for id, t := range tasks {
		b.Tasks[id] = t
	}
	for _, id := range sortedIDs(b.Tasks) {
		col := b.Columns[domain.ColumnFor(b.Tasks[id].Status)]
		col.TaskIDs = append(col.TaskIDs, id)
		b.Columns[col.ID] = col
	}
	return b
}

// Hydrate rebuilds a board from stored records. The stored order of each
// column is kept for ids that still belong there. Dangling ids are dropped
// and tasks missing from their column are appended in Distribute order.
func Hydrate(tasks map[string]domain.Task, stored map[domain.ColumnID]domain.Column, presets map[string]domain.Preset) Board {
	b := Empty()
	b.Tasks = make(map[string]domain.Task, len(tasks))
	for id, t := range tasks {
		t = t.Normalize()
		t.ID = id
		b.Tasks[id] = t
	}
	for id, p := range presets {
		b.Presets[id] = p
	}

	placed := make(map[string]bool, len(b.Tasks))
	for _, colID := range domain.CanonicalColumnOrder {
		col := b.Columns[colID]
		for _, id := range stored[colID].TaskIDs {
			t, ok := b.Tasks[id]
			if !ok || placed[id] || domain.ColumnFor(t.Status) != colID {
				continue
			}
			col.TaskIDs = append(col.TaskIDs, id)
			placed[id] = true
		}
		b.Columns[colID] = col
	}
	for _, id := range sortedIDs(b.Tasks) {
		if placed[id] {
			continue
		}
		col := b.Columns[domain.ColumnFor(b.Tasks[id].Status)]
		col.TaskIDs = append(col.TaskIDs, id)
		b.Columns[col.ID] = col
	}
	return b
}

func sortedIDs(tasks map[string]domain.Task) []string {
	ids := make([]string, 0, len(tasks))
	for id := range tasks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := tasks[ids[i]], tasks[ids[j]]
		if !a.StartTime.Equal(b.StartTime) {
			return a.StartTime.Before(b.StartTime)
		}
		return ids[i] < ids[j]
	})
	return ids
}

// Redistribute rebuilds the columns of b from task statuses, dropping any
// drag order. Presets are kept.
func (b Board) Redistribute() (Board, Mutation) {
	next := Distribute(b.Tasks)
	next.Presets = b.Presets
	return next, Mutation{Op: OpRedistribute, Before: b, After: next}
}

// Task returns the task with the given id.
func (b Board) Task(id string) (domain.Task, error) {
	t, ok := b.Tasks[id]
	if !ok {
		return domain.Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return t, nil
}

// OrderedTasks returns tasks column by column in display order.
func (b Board) OrderedTasks() []domain.Task {
	out := make([]domain.Task, 0, len(b.Tasks))
	for _, colID := range b.ColumnOrder {
		for _, id := range b.Columns[colID].TaskIDs {
			if t, ok := b.Tasks[id]; ok {
				out = append(out, t)
			}
		}
	}
	return out
}

// Validate reports the first violation of the column/status invariant.
func (b Board) Validate() error {
	if len(b.Columns) != len(domain.CanonicalColumnOrder) {
		return fmt.Errorf("%w: expected %d columns, got %d", ErrInvariant, len(domain.CanonicalColumnOrder), len(b.Columns))
	}
	if len(b.ColumnOrder) != len(domain.CanonicalColumnOrder) {
		return fmt.Errorf("%w: column order must list every column once", ErrInvariant)
	}
	seenCol := map[domain.ColumnID]bool{}
	for _, id := range b.ColumnOrder {
		if !domain.KnownColumn(id) || seenCol[id] {
			return fmt.Errorf("%w: bad column order entry %q", ErrInvariant, id)
		}
		seenCol[id] = true
	}

	home := make(map[string]domain.ColumnID, len(b.Tasks))
	for colID, col := range b.Columns {
		if !domain.KnownColumn(colID) || col.ID != colID {
			return fmt.Errorf("%w: unknown column %q", ErrInvariant, colID)
		}
		for _, id := range col.TaskIDs {
			t, ok := b.Tasks[id]
			if !ok {
				return fmt.Errorf("%w: column %s references missing task %s", ErrInvariant, colID, id)
			}
			if prev, dup := home[id]; dup {
				return fmt.Errorf("%w: task %s appears in %s and %s", ErrInvariant, id, prev, colID)
			}
			if domain.ColumnFor(t.Status) != colID {
				return fmt.Errorf("%w: task %s has status %s but sits in %s", ErrInvariant, id, t.Status, colID)
			}
			home[id] = colID
		}
	}
	for id := range b.Tasks {
		if _, ok := home[id]; !ok {
			return fmt.Errorf("%w: task %s is in no column", ErrInvariant, id)
		}
	}
	return nil
}

func (b Board) cloneTasks() map[string]domain.Task {
	out := make(map[string]domain.Task, len(b.Tasks)+1)
	for id, t := range b.Tasks {
		out[id] = t
	}
	return out
}

func (b Board) cloneColumns() map[domain.ColumnID]domain.Column {
	out := make(map[domain.ColumnID]domain.Column, len(b.Columns))
	for id, c := range b.Columns {
		out[id] = c
	}
	return out
}

func (b Board) clonePresets() map[string]domain.Preset {
	out := make(map[string]domain.Preset, len(b.Presets)+1)
	for id, p := range b.Presets {
		out[id] = p
	}
	return out
}

// columnOf returns the column currently holding taskID.
func (b Board) columnOf(taskID string) (domain.Column, int, bool) {
	for _, colID := range domain.CanonicalColumnOrder {
		col, ok := b.Columns[colID]
		if !ok {
			continue
		}
		if idx := col.IndexOf(taskID); idx >= 0 {
			return col, idx, true
		}
	}
	return domain.Column{}, -1, false
}

func removeAt(ids []string, idx int) []string {
	out := make([]string, 0, len(ids)-1)
	out = append(out, ids[:idx]...)
	return append(out, ids[idx+1:]...)
}

func insertAt(ids []string, idx int, id string) []string {
	if idx < 0 {
		idx = 0
	}
	if idx > len(ids) {
		idx = len(ids)
	}
	out := make([]string, 0, len(ids)+1)
	out = append(out, ids[:idx]...)
	out = append(out, id)
	return append(out, ids[idx:]...)
}

func appendID(ids []string, id string) []string {
	out := make([]string, 0, len(ids)+1)
	out = append(out, ids...)
	return append(out, id)
}
