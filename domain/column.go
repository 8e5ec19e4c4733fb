package domain

// ColumnID identifies one of the fixed board columns.
type ColumnID string

const (
	ColumnTodo       ColumnID = "column-1"
	ColumnInProgress ColumnID = "column-2"
	ColumnDone       ColumnID = "column-3"
)

// CanonicalColumnOrder is the display order of the three columns.
var CanonicalColumnOrder = []ColumnID{ColumnTodo, ColumnInProgress, ColumnDone}

// Column is a status bucket holding an ordered list of task ids.
type Column struct {
	ID      ColumnID `json:"id" yaml:"id"`
	Title   string   `json:"title" yaml:"title"`
	Status  Status   `json:"status" yaml:"status"`
	TaskIDs []string `json:"taskIds" yaml:"taskIds"`
}

// ColumnFor maps a status onto its column. Unknown statuses land in the todo
// column.
func ColumnFor(s Status) ColumnID {
	switch s {
	case StatusInProgress:
		return ColumnInProgress
	case StatusDone:
		return ColumnDone
	default:
		return ColumnTodo
	}
}

// StatusFor maps a column onto its status. Unknown columns map to todo.
func StatusFor(id ColumnID) Status {
	switch id {
	case ColumnInProgress:
		return StatusInProgress
	case ColumnDone:
		return StatusDone
	default:
		return StatusTodo
	}
}

// KnownColumn reports whether id is one of the canonical columns.
func KnownColumn(id ColumnID) bool {
	return id == ColumnTodo || id == ColumnInProgress || id == ColumnDone
}

// ColumnTitle returns the display title of a column.
func ColumnTitle(id ColumnID) string {
	switch id {
	case ColumnInProgress:
		return "In Progress"
	case ColumnDone:
		return "Done"
	default:
		return "To Do"
	}
}

// EmptyColumn returns the canonical empty column for id.
func EmptyColumn(id ColumnID) Column {
	return Column{ID: id, Title: ColumnTitle(id), Status: StatusFor(id), TaskIDs: []string{}}
}

// Clone returns a copy of the column with its own id slice.
func (c Column) Clone() Column {
	ids := make([]string, len(c.TaskIDs))
	copy(ids, c.TaskIDs)
	c.TaskIDs = ids
	return c
}

// IndexOf returns the position of taskID in the column or -1.
func (c Column) IndexOf(taskID string) int {
	for i, id := range c.TaskIDs {
		if id == taskID {
			return i
		}
	}
	return -1
}
