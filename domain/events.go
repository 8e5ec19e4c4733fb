package domain

// Board event types published after a mutation is stored.
const (
	EventRoadmapCreated = "roadmap-created"
	EventRoadmapUpdated = "roadmap-updated"
	EventRoadmapDeleted = "roadmap-deleted"
	EventTaskCreated    = "task-created"
	EventTaskUpdated    = "task-updated"
	EventTaskMoved      = "task-moved"
	EventTaskDeleted    = "task-deleted"
	EventBoardReordered = "board-reordered"
	EventPresetsChanged = "presets-changed"
)

// BoardEvent notifies downstream services that a roadmap changed.
type BoardEvent struct {
	ID        string `json:"id"`
	RoadmapID string `json:"roadmapId"`
	Type      string `json:"type"`
	TaskID    string `json:"taskId,omitempty"`
	Actor     string `json:"actor,omitempty"`
	Timestamp int64  `json:"timestamp"`
}
