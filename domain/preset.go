package domain

import (
	"strings"
	"time"
)

// PresetDuration is the length of a task created from a preset.
const PresetDuration = time.Hour

// Preset is a reusable task template. It carries no id or status.
type Preset struct {
	Title       string      `json:"title" yaml:"title"`
	Description string      `json:"description" yaml:"description"`
	Color       string      `json:"color,omitempty" yaml:"color,omitempty"`
	Attributes  []Attribute `json:"attributes" yaml:"attributes"`
}

// Validate checks that the preset can produce a task.
func (p Preset) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return &ValidationError{Field: "title", Message: "title is required"}
	}
	return nil
}

// Instantiate builds a todo task from the preset spanning one PresetDuration
// from now.
func (p Preset) Instantiate(id string, now time.Time) Task {
	t := Task{
		ID:          id,
		Title:       p.Title,
		Description: p.Description,
		Color:       p.Color,
		StartTime:   now,
		EndTime:     now.Add(PresetDuration),
		Status:      StatusTodo,
		Attributes:  p.Attributes,
	}
	return t.Clone().Normalize()
}
