package domain

import (
	"strings"
	"time"
)

// Status is the workflow state of a task.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in-progress"
	StatusDone       Status = "done"
)

// ParseStatus maps raw input onto a known status. Anything unrecognized is
// treated as todo.
func ParseStatus(raw string) Status {
	switch Status(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusInProgress:
		return StatusInProgress
	case StatusDone:
		return StatusDone
	default:
		return StatusTodo
	}
}

// Valid reports whether s is one of the three known statuses.
func (s Status) Valid() bool {
	return s == StatusTodo || s == StatusInProgress || s == StatusDone
}

// AttributeType is the value kind of a custom task attribute.
type AttributeType string

const (
	AttributeText   AttributeType = "text"
	AttributeNumber AttributeType = "number"
	AttributeDate   AttributeType = "date"
	AttributeSelect AttributeType = "select"
)

// Attribute is a user defined key/value pair on a task.
type Attribute struct {
	ID      string        `json:"id" yaml:"id"`
	Name    string        `json:"name" yaml:"name"`
	Value   string        `json:"value" yaml:"value"`
	Type    AttributeType `json:"type" yaml:"type"`
	Options []string      `json:"options,omitempty" yaml:"options,omitempty"`
}

// Comment is a note left on a task.
type Comment struct {
	ID        string    `json:"id" yaml:"id"`
	Author    string    `json:"author" yaml:"author"`
	Content   string    `json:"content" yaml:"content"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
}

// Task is a unit of work placed on a board.
type Task struct {
	ID          string      `json:"id" yaml:"id"`
	Title       string      `json:"title" yaml:"title"`
	Description string      `json:"description" yaml:"description"`
	StartTime   time.Time   `json:"startTime" yaml:"startTime"`
	EndTime     time.Time   `json:"endTime" yaml:"endTime"`
	Status      Status      `json:"status" yaml:"status"`
	Color       string      `json:"color,omitempty" yaml:"color,omitempty"`
	Attributes  []Attribute `json:"attributes" yaml:"attributes"`
	Comments    []Comment   `json:"comments" yaml:"comments"`
}

var statusColors = map[Status]string{
	StatusTodo:       "#facc15",
	StatusInProgress: "#4ade80",
	StatusDone:       "#60a5fa",
}

const fallbackColor = "#d1d5db"

// DisplayColor returns the explicit color of the task or the default for its
// status.
func (t Task) DisplayColor() string {
	if t.Color != "" {
		return t.Color
	}
	if c, ok := statusColors[t.Status]; ok {
		return c
	}
	return fallbackColor
}

// Normalize fills in defaults for optional fields. It never fails.
func (t Task) Normalize() Task {
	t.ID = strings.TrimSpace(t.ID)
	t.Status = ParseStatus(string(t.Status))
	if t.Attributes == nil {
		t.Attributes = []Attribute{}
	}
	if t.Comments == nil {
		t.Comments = []Comment{}
	}
	for i := range t.Attributes {
		if t.Attributes[i].Type == "" {
			t.Attributes[i].Type = AttributeText
		}
	}
	return t
}

// Validate checks the required fields of a task.
func (t Task) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return &ValidationError{Field: "title", Message: "title is required"}
	}
	return ValidateRange(t.StartTime, t.EndTime)
}

// ValidateRange rejects intervals that end before they start.
func ValidateRange(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return &ValidationError{Field: "startTime", Message: "start and end time are required"}
	}
	if end.Before(start) {
		return &ValidationError{Field: "endTime", Message: "end time must not be before start time"}
	}
	return nil
}

// Clone returns a copy that shares no slices with t.
func (t Task) Clone() Task {
	if t.Attributes != nil {
		attrs := make([]Attribute, len(t.Attributes))
		for i, a := range t.Attributes {
			if a.Options != nil {
				a.Options = append([]string(nil), a.Options...)
			}
			attrs[i] = a
		}
		t.Attributes = attrs
	}
	if t.Comments != nil {
		t.Comments = append([]Comment(nil), t.Comments...)
	}
	return t
}
