package board

import (
	"fmt"
	"sort"

	"roadmap-planner/domain"
)

// Op names the operation that produced a Mutation.
type Op string

const (
	OpMove         Op = "move"
	OpAdd          Op = "add"
	OpUpdate       Op = "update"
	OpDelete       Op = "delete"
	OpRedistribute Op = "redistribute"
	OpBulkUpdate   Op = "bulk-update"
	OpPresets      Op = "presets"
)

// Mutation records one state transition. Changed lists task ids whose
// record must be written and Removed the ids to delete. Column and preset
// layout is always taken from After.
type Mutation struct {
	Op      Op
	TaskID  string
	Before  Board
	After   Board
	Changed []string
	Removed []string
}

// IsZero reports whether the mutation is a no-op.
func (m Mutation) IsZero() bool {
	return m.Op == ""
}

// EventType maps the mutation onto a published board event type.
func (m Mutation) EventType() string {
	switch m.Op {
	case OpAdd:
		return domain.EventTaskCreated
	case OpUpdate:
		return domain.EventTaskUpdated
	case OpDelete:
		return domain.EventTaskDeleted
	case OpMove:
		return domain.EventTaskMoved
	case OpPresets:
		return domain.EventPresetsChanged
	default:
		return domain.EventBoardReordered
	}
}

// TaskStatus is one entry of a bulk update.
type TaskStatus struct {
	ID     string        `json:"id"`
	Status domain.Status `json:"status"`
}

// BulkUpdate is the wire shape used to store a whole column layout at once.
type BulkUpdate struct {
	Tasks       []TaskStatus                      `json:"tasks"`
	ColumnOrder []domain.ColumnID                 `json:"columnOrder"`
	Columns     map[domain.ColumnID]domain.Column `json:"columns"`
}

// BulkUpdate translates the mutation into a bulk update request. Tasks lists
// every task whose status differs from Before; a redistribute lists all of
// them.
func (m Mutation) BulkUpdate() BulkUpdate {
	out := BulkUpdate{
		Tasks:       []TaskStatus{},
		ColumnOrder: append([]domain.ColumnID(nil), m.After.ColumnOrder...),
		Columns:     make(map[domain.ColumnID]domain.Column, len(m.After.Columns)),
	}
	for id, col := range m.After.Columns {
		out.Columns[id] = col.Clone()
	}
	for id, t := range m.After.Tasks {
		prev, existed := m.Before.Tasks[id]
		if m.Op == OpRedistribute || !existed || prev.Status != t.Status {
			out.Tasks = append(out.Tasks, TaskStatus{ID: id, Status: t.Status})
		}
	}
	sort.Slice(out.Tasks, func(i, j int) bool { return out.Tasks[i].ID < out.Tasks[j].ID })
	return out
}

// ApplyBulkUpdate installs a column layout and the listed statuses. The
// result must satisfy Validate or b is returned unchanged with an error.
func (b Board) ApplyBulkUpdate(u BulkUpdate) (Board, Mutation, error) {
	next := b
	next.Tasks = b.cloneTasks()
	var changed []string
	for _, ts := range u.Tasks {
		t, ok := next.Tasks[ts.ID]
		if !ok {
			return b, Mutation{}, fmt.Errorf("%w: %s", ErrTaskNotFound, ts.ID)
		}
		if !ts.Status.Valid() {
			return b, Mutation{}, &domain.ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", ts.Status)}
		}
		if t.Status != ts.Status {
			t.Status = ts.Status
			next.Tasks[ts.ID] = t
			changed = append(changed, ts.ID)
		}
	}

	if u.Columns != nil {
		next.Columns = make(map[domain.ColumnID]domain.Column, len(u.Columns))
		for id, col := range u.Columns {
			if !domain.KnownColumn(id) {
				return b, Mutation{}, fmt.Errorf("%w: %s", ErrColumnNotFound, id)
			}
			col = col.Clone()
			col.ID = id
			col.Status = domain.StatusFor(id)
			if col.Title == "" {
				col.Title = domain.ColumnTitle(id)
			}
			next.Columns[id] = col
		}
	}
	if u.ColumnOrder != nil {
		next.ColumnOrder = append([]domain.ColumnID(nil), u.ColumnOrder...)
	}
	if err := next.Validate(); err != nil {
		return b, Mutation{}, err
	}
	return next, Mutation{Op: OpBulkUpdate, Before: b, After: next, Changed: changed}, nil
}
