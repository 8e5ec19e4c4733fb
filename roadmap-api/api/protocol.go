package api

import (
	"time"

	"roadmap-planner/board"
	"roadmap-planner/domain"
)

const maxBodySize = 256 * 1024 // 256 KiB

const idempotencyHeader = "Idempotency-Key"

type roadmapRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

type visibilityRequest struct {
	IsPublic *bool `json:"isPublic"`
}

type shareRequest struct {
	Email           string `json:"email"`
	PermissionLevel string `json:"permissionLevel"`
}

// taskRequest carries timestamps as RFC 3339 strings. They are parsed
// before anything reaches the board.
type taskRequest struct {
	Title       *string             `json:"title"`
	Description *string             `json:"description"`
	StartTime   *string             `json:"startTime"`
	EndTime     *string             `json:"endTime"`
	Status      *string             `json:"status"`
	Color       *string             `json:"color"`
	Attributes  *[]domain.Attribute `json:"attributes"`
}

type commentRequest struct {
	Content string `json:"content"`
}

type positionBody struct {
	DroppableID string `json:"droppableId"`
	Index       int    `json:"index"`
}

type moveRequest struct {
	TaskID      string        `json:"draggableId"`
	Source      positionBody  `json:"source"`
	Destination *positionBody `json:"destination"`
}

type presetRequest struct {
	ID          string             `json:"id"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Color       string             `json:"color"`
	Attributes  []domain.Attribute `json:"attributes"`
}

type roadmapListResponse struct {
	Roadmaps []domain.Roadmap `json:"roadmaps"`
}

type boardView struct {
	Roadmap    domain.Roadmap    `json:"roadmap"`
	Board      board.Board       `json:"board"`
	Permission domain.Permission `json:"permission"`
}

type taskResponse struct {
	Task  domain.Task `json:"task"`
	Color string      `json:"displayColor"`
}

type mutationResponse struct {
	Op         board.Op         `json:"op"`
	TaskID     string           `json:"taskId,omitempty"`
	BulkUpdate board.BulkUpdate `json:"bulkUpdate"`
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func parseTimestamp(field string, raw *string) (*time.Time, error) {
	if raw == nil {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, *raw)
	if err != nil {
		return nil, &domain.ValidationError{Field: field, Message: "must be an RFC 3339 timestamp"}
	}
	return &t, nil
}

func (r taskRequest) patch() (board.TaskPatch, error) {
	start, err := parseTimestamp("startTime", r.StartTime)
	if err != nil {
		return board.TaskPatch{}, err
	}
	end, err := parseTimestamp("endTime", r.EndTime)
	if err != nil {
		return board.TaskPatch{}, err
	}
	p := board.TaskPatch{
		Title:       r.Title,
		Description: r.Description,
		StartTime:   start,
		EndTime:     end,
		Color:       r.Color,
		Attributes:  r.Attributes,
	}
	if r.Status != nil {
		s := domain.Status(*r.Status)
		if !s.Valid() {
			return board.TaskPatch{}, &domain.ValidationError{Field: "status", Message: "unknown status"}
		}
		p.Status = &s
	}
	return p, nil
}

// task builds a new task from a create request. Title, startTime and endTime
// are required.
func (r taskRequest) task(id string) (domain.Task, error) {
	if r.StartTime == nil || r.EndTime == nil {
		return domain.Task{}, &domain.ValidationError{Field: "startTime", Message: "startTime and endTime are required"}
	}
	p, err := r.patch()
	if err != nil {
		return domain.Task{}, err
	}
	t := domain.Task{ID: id, Status: domain.StatusTodo, StartTime: *p.StartTime, EndTime: *p.EndTime}
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Color != nil {
		t.Color = *p.Color
	}
	if p.Attributes != nil {
		t.Attributes = *p.Attributes
	}
	return t.Normalize(), nil
}

func (p positionBody) position() board.Position {
	return board.Position{ColumnID: domain.ColumnID(p.DroppableID), Index: p.Index}
}

func (r moveRequest) request() board.MoveRequest {
	req := board.MoveRequest{TaskID: r.TaskID, Source: r.Source.position()}
	if r.Destination != nil {
		dst := r.Destination.position()
		req.Destination = &dst
	}
	return req
}

func (r presetRequest) preset() domain.Preset {
	return domain.Preset{Title: r.Title, Description: r.Description, Color: r.Color, Attributes: r.Attributes}
}

func mutationBody(m board.Mutation) mutationResponse {
	return mutationResponse{Op: m.Op, TaskID: m.TaskID, BulkUpdate: m.BulkUpdate()}
}
