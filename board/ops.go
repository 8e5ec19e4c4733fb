package board

import (
	"fmt"
	"time"

	"roadmap-planner/domain"
)

// Position addresses a slot inside a column.
type Position struct {
	ColumnID domain.ColumnID `json:"columnId"`
	Index    int             `json:"index"`
}

// MoveRequest describes a finished drag. A nil Destination means the task
// was dropped outside any column.
type MoveRequest struct {
	TaskID      string    `json:"taskId"`
	Source      Position  `json:"source"`
	Destination *Position `json:"destination"`
}

// MoveTask splices a task from its source slot into the destination slot.
// Moving across columns rewrites the task status to match the destination.
// Invalid drops and drops onto the source slot return b unchanged with a
// zero Mutation.
func (b Board) MoveTask(req MoveRequest) (Board, Mutation, error) {
	if req.Destination == nil {
		return b, Mutation{}, nil
	}
	dst := *req.Destination
	if dst == req.Source {
		return b, Mutation{}, nil
	}

	task, ok := b.Tasks[req.TaskID]
	if !ok {
		return b, Mutation{}, fmt.Errorf("%w: %s", ErrTaskNotFound, req.TaskID)
	}
	srcCol, ok := b.Columns[req.Source.ColumnID]
	if !ok {
		return b, Mutation{}, fmt.Errorf("%w: %s", ErrColumnNotFound, req.Source.ColumnID)
	}
	dstCol, ok := b.Columns[dst.ColumnID]
	if !ok {
		return b, Mutation{}, fmt.Errorf("%w: %s", ErrColumnNotFound, dst.ColumnID)
	}
	if req.Source.Index < 0 || req.Source.Index >= len(srcCol.TaskIDs) || srcCol.TaskIDs[req.Source.Index] != req.TaskID {
		return b, Mutation{}, fmt.Errorf("%w: %s at %s[%d]", ErrStalePosition, req.TaskID, req.Source.ColumnID, req.Source.Index)
	}

	next := b
	next.Columns = b.cloneColumns()
	srcCol.TaskIDs = removeAt(srcCol.TaskIDs, req.Source.Index)
	if srcCol.ID == dstCol.ID {
		srcCol.TaskIDs = insertAt(srcCol.TaskIDs, dst.Index, req.TaskID)
		next.Columns[srcCol.ID] = srcCol
		return next, Mutation{Op: OpMove, TaskID: req.TaskID, Before: b, After: next}, nil
	}

	dstCol.TaskIDs = insertAt(dstCol.TaskIDs, dst.Index, req.TaskID)
	next.Columns[srcCol.ID] = srcCol
	next.Columns[dstCol.ID] = dstCol

	var changed []string
	if status := domain.StatusFor(dstCol.ID); task.Status != status {
		task.Status = status
		next.Tasks = b.cloneTasks()
		next.Tasks[task.ID] = task
		changed = []string{task.ID}
	}
	return next, Mutation{Op: OpMove, TaskID: req.TaskID, Before: b, After: next, Changed: changed}, nil
}

// AddTask inserts a new todo task at the end of the todo column.
func (b Board) AddTask(t domain.Task) (Board, Mutation, error) {
	t = t.Clone().Normalize()
	if t.ID == "" {
		return b, Mutation{}, domain.ErrMissingID
	}
	if _, exists := b.Tasks[t.ID]; exists {
		return b, Mutation{}, fmt.Errorf("%w: %s", ErrDuplicateTask, t.ID)
	}
	if err := t.Validate(); err != nil {
		return b, Mutation{}, err
	}
	t.Status = domain.StatusTodo

	next := b
	next.Tasks = b.cloneTasks()
	next.Tasks[t.ID] = t
	next.Columns = b.cloneColumns()
	col := next.Columns[domain.ColumnTodo]
	col.TaskIDs = appendID(col.TaskIDs, t.ID)
	next.Columns[domain.ColumnTodo] = col
	return next, Mutation{Op: OpAdd, TaskID: t.ID, Before: b, After: next, Changed: []string{t.ID}}, nil
}

// TaskPatch holds the fields to change on a task. Nil fields are kept.
type TaskPatch struct {
	Title       *string             `json:"title,omitempty"`
	Description *string             `json:"description,omitempty"`
	StartTime   *time.Time          `json:"startTime,omitempty"`
	EndTime     *time.Time          `json:"endTime,omitempty"`
	Status      *domain.Status      `json:"status,omitempty"`
	Color       *string             `json:"color,omitempty"`
	Attributes  *[]domain.Attribute `json:"attributes,omitempty"`
	Comments    *[]domain.Comment   `json:"comments,omitempty"`
}

func (p TaskPatch) apply(t domain.Task) domain.Task {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.StartTime != nil {
		t.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		t.EndTime = *p.EndTime
	}
	if p.Status != nil {
		t.Status = domain.ParseStatus(string(*p.Status))
	}
	if p.Color != nil {
		t.Color = *p.Color
	}
	if p.Attributes != nil {
		t.Attributes = *p.Attributes
	}
	if p.Comments != nil {
		t.Comments = *p.Comments
	}
	return t.Clone().Normalize()
}

// UpdateTask merges patch into the task. A status change moves the task to
// the end of its new column.
func (b Board) UpdateTask(id string, patch TaskPatch) (Board, Mutation, error) {
	prev, ok := b.Tasks[id]
	if !ok {
		return b, Mutation{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	t := patch.apply(prev)
	t.ID = id
	if err := t.Validate(); err != nil {
		return b, Mutation{}, err
	}

	next := b
	next.Tasks = b.cloneTasks()
	next.Tasks[id] = t
	if t.Status != prev.Status {
		next.Columns = b.cloneColumns()
		if col, idx, found := b.columnOf(id); found {
			col.TaskIDs = removeAt(col.TaskIDs, idx)
			next.Columns[col.ID] = col
		}
		dst := next.Columns[domain.ColumnFor(t.Status)]
		dst.TaskIDs = appendID(dst.TaskIDs, id)
		next.Columns[dst.ID] = dst
	}
	return next, Mutation{Op: OpUpdate, TaskID: id, Before: b, After: next, Changed: []string{id}}, nil
}

// AddComment appends c to the comments of a task.
func (b Board) AddComment(taskID string, c domain.Comment) (Board, Mutation, error) {
	t, ok := b.Tasks[taskID]
	if !ok {
		return b, Mutation{}, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	if c.ID == "" {
		return b, Mutation{}, domain.ErrMissingID
	}
	if c.Content == "" {
		return b, Mutation{}, &domain.ValidationError{Field: "content", Message: "comment is empty"}
	}
	comments := make([]domain.Comment, 0, len(t.Comments)+1)
	comments = append(comments, t.Comments...)
	comments = append(comments, c)
	return b.UpdateTask(taskID, TaskPatch{Comments: &comments})
}

// DeleteTask removes a task and its column entry.
func (b Board) DeleteTask(id string) (Board, Mutation, error) {
	if _, ok := b.Tasks[id]; !ok {
		return b, Mutation{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	next := b
	next.Tasks = b.cloneTasks()
	delete(next.Tasks, id)
	next.Columns = b.cloneColumns()
	if col, idx, found := b.columnOf(id); found {
		col.TaskIDs = removeAt(col.TaskIDs, idx)
		next.Columns[col.ID] = col
	}
	return next, Mutation{Op: OpDelete, TaskID: id, Before: b, After: next, Removed: []string{id}}, nil
}

// AddPreset stores a task template under id, replacing any previous one.
func (b Board) AddPreset(id string, p domain.Preset) (Board, Mutation, error) {
	if id == "" {
		return b, Mutation{}, domain.ErrMissingID
	}
	if err := p.Validate(); err != nil {
		return b, Mutation{}, err
	}
	next := b
	next.Presets = b.clonePresets()
	next.Presets[id] = p
	return next, Mutation{Op: OpPresets, Before: b, After: next}, nil
}

// RemovePreset deletes a task template.
func (b Board) RemovePreset(id string) (Board, Mutation, error) {
	if _, ok := b.Presets[id]; !ok {
		return b, Mutation{}, fmt.Errorf("%w: %s", ErrPresetNotFound, id)
	}
	next := b
	next.Presets = b.clonePresets()
	delete(next.Presets, id)
	return next, Mutation{Op: OpPresets, Before: b, After: next}, nil
}

// ApplyPreset creates a new todo task with id taskID from a template.
func (b Board) ApplyPreset(presetID, taskID string, now time.Time) (Board, Mutation, error) {
	p, ok := b.Presets[presetID]
	if !ok {
		return b, Mutation{}, fmt.Errorf("%w: %s", ErrPresetNotFound, presetID)
	}
	return b.AddTask(p.Instantiate(taskID, now))
}
