package storage

import (
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"

	"roadmap-planner/board"
	"roadmap-planner/domain"
)

type entityKeys struct {
	PartitionKey string `json:"PartitionKey"`
	RowKey       string `json:"RowKey"`
}

// roadmapEntity is a row of the roadmaps table. PartitionKey and RowKey are
// both the roadmap id. Nested values are stored as JSON strings.
type roadmapEntity struct {
	aztables.Entity
	Title       string `json:"Title"`
	Description string `json:"Description"`
	Slug        string `json:"Slug"`
	OwnerID     string `json:"OwnerID"`
	IsPublic    bool   `json:"IsPublic"`
	SharedWith  string `json:"SharedWith"`
	Columns     string `json:"Columns"`
	ColumnOrder string `json:"ColumnOrder"`
	Presets     string `json:"Presets"`
	CreatedAt   string `json:"CreatedAt"`
	UpdatedAt   string `json:"UpdatedAt"`
}

// taskEntity is a row of the tasks table keyed by roadmap id and task id.
type taskEntity struct {
	aztables.Entity
	Title       string `json:"Title"`
	Description string `json:"Description"`
	StartTime   string `json:"StartTime"`
	EndTime     string `json:"EndTime"`
	Status      string `json:"Status"`
	Color       string `json:"Color"`
	Attributes  string `json:"Attributes"`
	Comments    string `json:"Comments"`
}

func newRoadmapEntity(rm domain.Roadmap, b board.Board) (roadmapEntity, error) {
	shares, err := sonic.MarshalString(rm.SharedWith)
	if err != nil {
		return roadmapEntity{}, err
	}
	columns, order, presets, err := encodeLayout(b)
	if err != nil {
		return roadmapEntity{}, err
	}
	return roadmapEntity{
		Entity:      aztables.Entity{PartitionKey: rm.ID, RowKey: rm.ID},
		Title:       rm.Title,
		Description: rm.Description,
		Slug:        rm.Slug,
		OwnerID:     rm.OwnerID,
		IsPublic:    rm.IsPublic,
		SharedWith:  shares,
		Columns:     columns,
		ColumnOrder: order,
		Presets:     presets,
		CreatedAt:   formatTime(rm.CreatedAt),
		UpdatedAt:   formatTime(rm.UpdatedAt),
	}, nil
}

func (e roadmapEntity) roadmap() (domain.Roadmap, error) {
	rm := domain.Roadmap{
		ID:          e.RowKey,
		Title:       e.Title,
		Description: e.Description,
		Slug:        e.Slug,
		OwnerID:     e.OwnerID,
		IsPublic:    e.IsPublic,
		SharedWith:  []domain.Share{},
	}
	if e.SharedWith != "" {
		if err := sonic.UnmarshalString(e.SharedWith, &rm.SharedWith); err != nil {
			return domain.Roadmap{}, err
		}
	}
	var err error
	if rm.CreatedAt, err = parseTime(e.CreatedAt); err != nil {
		return domain.Roadmap{}, err
	}
	if rm.UpdatedAt, err = parseTime(e.UpdatedAt); err != nil {
		return domain.Roadmap{}, err
	}
	return rm, nil
}

// layout decodes the stored columns and presets. The stored column order is
// not returned: boards always use the canonical order.
func (e roadmapEntity) layout() (map[domain.ColumnID]domain.Column, map[string]domain.Preset, error) {
	columns := map[domain.ColumnID]domain.Column{}
	if e.Columns != "" {
		if err := sonic.UnmarshalString(e.Columns, &columns); err != nil {
			return nil, nil, err
		}
	}
	presets := map[string]domain.Preset{}
	if e.Presets != "" {
		if err := sonic.UnmarshalString(e.Presets, &presets); err != nil {
			return nil, nil, err
		}
	}
	return columns, presets, nil
}

func encodeLayout(b board.Board) (columns, order, presets string, err error) {
	if columns, err = sonic.MarshalString(b.Columns); err != nil {
		return "", "", "", err
	}
	if order, err = sonic.MarshalString(b.ColumnOrder); err != nil {
		return "", "", "", err
	}
	if presets, err = sonic.MarshalString(b.Presets); err != nil {
		return "", "", "", err
	}
	return columns, order, presets, nil
}

func newTaskEntity(roadmapID string, t domain.Task) taskEntity {
	attrs, _ := sonic.MarshalString(t.Attributes)
	comments, _ := sonic.MarshalString(t.Comments)
	return taskEntity{
		Entity:      aztables.Entity{PartitionKey: roadmapID, RowKey: t.ID},
		Title:       t.Title,
		Description: t.Description,
		StartTime:   formatTime(t.StartTime),
		EndTime:     formatTime(t.EndTime),
		Status:      string(t.Status),
		Color:       t.Color,
		Attributes:  attrs,
		Comments:    comments,
	}
}

func (e taskEntity) task() (domain.Task, error) {
	t := domain.Task{
		ID:          e.RowKey,
		Title:       e.Title,
		Description: e.Description,
		Status:      domain.ParseStatus(e.Status),
		Color:       e.Color,
	}
	var err error
	if t.StartTime, err = parseTime(e.StartTime); err != nil {
		return domain.Task{}, err
	}
	if t.EndTime, err = parseTime(e.EndTime); err != nil {
		return domain.Task{}, err
	}
	if e.Attributes != "" {
		if err := sonic.UnmarshalString(e.Attributes, &t.Attributes); err != nil {
			return domain.Task{}, err
		}
	}
	if e.Comments != "" {
		if err := sonic.UnmarshalString(e.Comments, &t.Comments); err != nil {
			return domain.Task{}, err
		}
	}
	return t.Normalize(), nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, raw)
}
