package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"roadmap-planner/board"
	"roadmap-planner/domain"
)

// boardFile is the on-disk board shape. Timestamps are RFC 3339 strings so
// the same file can be written as JSON or YAML.
type boardFile struct {
	Tasks   []taskFile                        `yaml:"tasks"`
	Columns map[domain.ColumnID]domain.Column `yaml:"columns"`
	Presets map[string]domain.Preset          `yaml:"presets"`
}

type taskFile struct {
	ID          string             `yaml:"id"`
	Title       string             `yaml:"title"`
	Description string             `yaml:"description"`
	StartTime   string             `yaml:"startTime"`
	EndTime     string             `yaml:"endTime"`
	Status      string             `yaml:"status"`
	Color       string             `yaml:"color"`
	Attributes  []domain.Attribute `yaml:"attributes"`
}

func readBoardFile(path string) (boardFile, error) {
	var bf boardFile
	data, err := os.ReadFile(path)
	if err != nil {
		return bf, err
	}
	if err := yaml.Unmarshal(data, &bf); err != nil {
		return bf, fmt.Errorf("parse %s: %w", path, err)
	}
	return bf, nil
}

func parseFileTime(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, strings.TrimSpace(raw))
}

// tasks converts the file tasks, collecting one problem per unusable task.
// Unusable tasks are left out of the returned map.
func (bf boardFile) tasks() (map[string]domain.Task, []string) {
	out := make(map[string]domain.Task, len(bf.Tasks))
	var problems []string
	for i, tf := range bf.Tasks {
		label := tf.ID
		if label == "" {
			label = fmt.Sprintf("#%d", i+1)
		}
		if tf.ID == "" {
			problems = append(problems, fmt.Sprintf("task %s: missing id", label))
			continue
		}
		if _, dup := out[tf.ID]; dup {
			problems = append(problems, fmt.Sprintf("task %s: duplicate id", label))
			continue
		}
		start, err := parseFileTime(tf.StartTime)
		if err != nil {
			problems = append(problems, fmt.Sprintf("task %s: bad startTime %q", label, tf.StartTime))
			continue
		}
		end, err := parseFileTime(tf.EndTime)
		if err != nil {
			problems = append(problems, fmt.Sprintf("task %s: bad endTime %q", label, tf.EndTime))
			continue
		}
		if tf.Status != "" && !domain.Status(tf.Status).Valid() {
			problems = append(problems, fmt.Sprintf("task %s: unknown status %q treated as todo", label, tf.Status))
		}
		t := domain.Task{
			ID:          tf.ID,
			Title:       tf.Title,
			Description: tf.Description,
			StartTime:   start,
			EndTime:     end,
			Status:      domain.Status(tf.Status),
			Color:       tf.Color,
			Attributes:  tf.Attributes,
		}.Normalize()
		if err := t.Validate(); err != nil {
			problems = append(problems, fmt.Sprintf("task %s: %v", label, err))
			continue
		}
		out[t.ID] = t
	}
	return out, problems
}

// stored returns the column layout as written in the file, with missing
// columns filled in empty. It is nil when the file carries no layout.
func (bf boardFile) stored() map[domain.ColumnID]domain.Column {
	if len(bf.Columns) == 0 {
		return nil
	}
	cols := make(map[domain.ColumnID]domain.Column, len(domain.CanonicalColumnOrder))
	for _, id := range domain.CanonicalColumnOrder {
		cols[id] = domain.EmptyColumn(id)
	}
	for id, col := range bf.Columns {
		col.ID = id
		if domain.KnownColumn(id) {
			col.Status = domain.StatusFor(id)
			if col.Title == "" {
				col.Title = domain.ColumnTitle(id)
			}
		}
		cols[id] = col
	}
	return cols
}

// load hydrates the file into a valid board and reports what had to be
// repaired on the way.
func (bf boardFile) load() (board.Board, []string) {
	tasks, problems := bf.tasks()
	stored := bf.stored()
	if stored != nil {
		raw := board.Board{
			Tasks:       tasks,
			Columns:     stored,
			ColumnOrder: append([]domain.ColumnID(nil), domain.CanonicalColumnOrder...),
		}
		if err := raw.Validate(); err != nil {
			problems = append(problems, err.Error())
		}
	}
	presets := bf.Presets
	if presets == nil {
		presets = map[string]domain.Preset{}
	}
	for id, p := range presets {
		if err := p.Validate(); err != nil {
			problems = append(problems, fmt.Sprintf("preset %s: %v", id, err))
			delete(presets, id)
		}
	}
	return board.Hydrate(tasks, stored, presets), problems
}
