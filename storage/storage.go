// Package storage persists roadmaps and tasks in Azure Table Storage and
// publishes board events on Azure Queue Storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/bytedance/sonic"

	"roadmap-planner/board"
	"roadmap-planner/domain"
)

var (
	// ErrNotFound is returned when a roadmap or task does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when an entity already exists.
	ErrConflict = errors.New("conflict")
)

// maxBatch is the Table Storage limit of operations per transaction.
const maxBatch = 100

// Storage provides access to the roadmap and task tables and the event queue.
type Storage struct {
	roadmapTable *aztables.Client
	taskTable    *aztables.Client
	eventQueue   *azqueue.QueueClient
	now          func() time.Time
}

// New creates a Storage instance from the given connection string.
func New(connStr, roadmapsTable, tasksTable, eventsQueue string) (*Storage, error) {
	tablesClientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &tablesClientOptions)
	if err != nil {
		return nil, err
	}
	queueClientOptions := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	eq, err := azqueue.NewQueueClientFromConnectionString(connStr, eventsQueue, &queueClientOptions)
	if err != nil {
		return nil, err
	}
	return &Storage{
		roadmapTable: svc.NewClient(roadmapsTable),
		taskTable:    svc.NewClient(tasksTable),
		eventQueue:   eq,
		now:          time.Now,
	}, nil
}

// storeError tags an SDK error with one of the package sentinels.
type storeError struct {
	kind error
	err  error
}

func (e *storeError) Error() string { return e.kind.Error() + ": " + e.err.Error() }

func (e *storeError) Unwrap() []error { return []error{e.kind, e.err} }

func mapError(err error) error {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.StatusCode {
		case http.StatusNotFound:
			return &storeError{kind: ErrNotFound, err: err}
		case http.StatusConflict, http.StatusPreconditionFailed:
			return &storeError{kind: ErrConflict, err: err}
		}
	}
	return err
}

// quote renders s as an OData string literal.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// CreateRoadmap stores a new roadmap with an empty board.
func (s *Storage) CreateRoadmap(ctx context.Context, rm domain.Roadmap) error {
	ent, err := newRoadmapEntity(rm, board.Empty())
	if err != nil {
		return err
	}
	payload, err := sonic.Marshal(ent)
	if err != nil {
		return err
	}
	if _, err := s.roadmapTable.AddEntity(ctx, payload, nil); err != nil {
		return mapError(err)
	}
	return nil
}

// GetRoadmap loads roadmap metadata.
func (s *Storage) GetRoadmap(ctx context.Context, id string) (domain.Roadmap, error) {
	ent, err := s.getRoadmapEntity(ctx, id)
	if err != nil {
		return domain.Roadmap{}, err
	}
	return ent.roadmap()
}

func (s *Storage) getRoadmapEntity(ctx context.Context, id string) (roadmapEntity, error) {
	resp, err := s.roadmapTable.GetEntity(ctx, id, id, nil)
	if err != nil {
		return roadmapEntity{}, mapError(err)
	}
	var ent roadmapEntity
	if err := sonic.Unmarshal(resp.Value, &ent); err != nil {
		return roadmapEntity{}, err
	}
	return ent, nil
}

// FindRoadmapBySlug returns the roadmap with the given slug.
func (s *Storage) FindRoadmapBySlug(ctx context.Context, slug string) (domain.Roadmap, error) {
	rms, err := s.queryRoadmaps(ctx, "Slug eq "+quote(slug), 1)
	if err != nil {
		return domain.Roadmap{}, err
	}
	if len(rms) == 0 {
		return domain.Roadmap{}, fmt.Errorf("%w: slug %s", ErrNotFound, slug)
	}
	return rms[0], nil
}

// ListRoadmaps returns the roadmaps owned by ownerID.
func (s *Storage) ListRoadmaps(ctx context.Context, ownerID string) ([]domain.Roadmap, error) {
	return s.queryRoadmaps(ctx, "OwnerID eq "+quote(ownerID), 0)
}

func (s *Storage) queryRoadmaps(ctx context.Context, filter string, limit int) ([]domain.Roadmap, error) {
	pager := s.roadmapTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	out := []domain.Roadmap{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, mapError(err)
		}
		for _, raw := range resp.Entities {
			var ent roadmapEntity
			if err := sonic.Unmarshal(raw, &ent); err != nil {
				return nil, err
			}
			rm, err := ent.roadmap()
			if err != nil {
				return nil, err
			}
			out = append(out, rm)
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
		}
	}
	return out, nil
}

// SaveRoadmap merges the metadata fields of rm into the stored roadmap.
func (s *Storage) SaveRoadmap(ctx context.Context, rm domain.Roadmap) error {
	shares, err := sonic.MarshalString(rm.SharedWith)
	if err != nil {
		return err
	}
	ent := map[string]any{
		"PartitionKey": rm.ID,
		"RowKey":       rm.ID,
		"Title":        rm.Title,
		"Description":  rm.Description,
		"Slug":         rm.Slug,
		"IsPublic":     rm.IsPublic,
		"SharedWith":   shares,
		"UpdatedAt":    s.now().UTC().Format(time.RFC3339Nano),
	}
	payload, err := sonic.Marshal(ent)
	if err != nil {
		return err
	}
	etag := azcore.ETagAny
	if _, err := s.roadmapTable.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &etag, UpdateMode: aztables.UpdateModeMerge}); err != nil {
		return mapError(err)
	}
	return nil
}

// DeleteRoadmap removes a roadmap and all of its tasks.
func (s *Storage) DeleteRoadmap(ctx context.Context, id string) error {
	tasks, err := s.listTaskEntities(ctx, id)
	if err != nil {
		return err
	}
	actions := make([]aztables.TransactionAction, 0, len(tasks))
	for _, t := range tasks {
		a, err := deleteTask(id, t.RowKey)
		if err != nil {
			return err
		}
		actions = append(actions, *a)
	}
	if _, err := submit(ctx, s.taskTable, actions); err != nil {
		return err
	}
	if _, err := s.roadmapTable.DeleteEntity(ctx, id, id, nil); err != nil {
		return mapError(err)
	}
	return nil
}

// LoadBoard reads the tasks and stored layout of a roadmap and hydrates them
// into a consistent board.
func (s *Storage) LoadBoard(ctx context.Context, roadmapID string) (board.Board, error) {
	ent, err := s.getRoadmapEntity(ctx, roadmapID)
	if err != nil {
		return board.Board{}, err
	}
	columns, presets, err := ent.layout()
	if err != nil {
		return board.Board{}, err
	}
	taskEnts, err := s.listTaskEntities(ctx, roadmapID)
	if err != nil {
		return board.Board{}, err
	}
	tasks := make(map[string]domain.Task, len(taskEnts))
	for _, te := range taskEnts {
		t, err := te.task()
		if err != nil {
			return board.Board{}, fmt.Errorf("task %s: %w", te.RowKey, err)
		}
		tasks[t.ID] = t
	}
	return board.Hydrate(tasks, columns, presets), nil
}

func (s *Storage) listTaskEntities(ctx context.Context, roadmapID string) ([]taskEntity, error) {
	filter := "PartitionKey eq " + quote(roadmapID)
	pager := s.taskTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	out := []taskEntity{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, mapError(err)
		}
		for _, raw := range resp.Entities {
			var ent taskEntity
			if err := sonic.Unmarshal(raw, &ent); err != nil {
				return nil, err
			}
			out = append(out, ent)
		}
	}
	return out, nil
}

// Persist writes the tasks touched by m and the resulting column layout.
// Concurrent writers are not reconciled: the last layout written wins.
func (s *Storage) Persist(ctx context.Context, roadmapID string, m board.Mutation) error {
	return writeMutation(ctx, s.taskTable, roadmapID, m, func(ctx context.Context) error {
		return s.saveLayout(ctx, roadmapID, m.After)
	})
}

type transactionSubmitter interface {
	SubmitTransaction(ctx context.Context, actions []aztables.TransactionAction, opts *aztables.SubmitTransactionOptions) (aztables.TransactionResponse, error)
}

// writeMutation commits the task rows of m and then the layout. When a later
// step fails, the task rows already committed are restored from m.Before so
// the tables keep the pre-mutation board.
func writeMutation(ctx context.Context, tx transactionSubmitter, roadmapID string, m board.Mutation, saveLayout func(context.Context) error) error {
	forward, undo, err := mutationActions(roadmapID, m)
	if err != nil {
		return err
	}
	committed, err := submit(ctx, tx, forward)
	if err == nil {
		if err = saveLayout(ctx); err == nil {
			return nil
		}
	}
	if committed == 0 {
		return err
	}
	revert := make([]aztables.TransactionAction, 0, committed)
	for _, a := range undo[:committed] {
		if a != nil {
			revert = append(revert, *a)
		}
	}
	if _, uerr := submit(context.WithoutCancel(ctx), tx, revert); uerr != nil {
		return fmt.Errorf("%w (restoring %d task rows failed: %v)", err, len(revert), uerr)
	}
	return err
}

// mutationActions returns the task writes of m and, index for index, the
// write that reverts each one. A nil revert means nothing to restore.
func mutationActions(roadmapID string, m board.Mutation) ([]aztables.TransactionAction, []*aztables.TransactionAction, error) {
	forward := make([]aztables.TransactionAction, 0, len(m.Changed)+len(m.Removed))
	undo := make([]*aztables.TransactionAction, 0, cap(forward))
	restore := func(id string) (*aztables.TransactionAction, error) {
		if t, ok := m.Before.Tasks[id]; ok {
			return upsertTask(roadmapID, t)
		}
		return deleteTask(roadmapID, id)
	}
	for _, id := range m.Changed {
		t, ok := m.After.Tasks[id]
		if !ok {
			continue
		}
		a, err := upsertTask(roadmapID, t)
		if err != nil {
			return nil, nil, err
		}
		r, err := restore(id)
		if err != nil {
			return nil, nil, err
		}
		forward = append(forward, *a)
		undo = append(undo, r)
	}
	for _, id := range m.Removed {
		a, err := deleteTask(roadmapID, id)
		if err != nil {
			return nil, nil, err
		}
		var r *aztables.TransactionAction
		if t, ok := m.Before.Tasks[id]; ok {
			if r, err = upsertTask(roadmapID, t); err != nil {
				return nil, nil, err
			}
		}
		forward = append(forward, *a)
		undo = append(undo, r)
	}
	return forward, undo, nil
}

func upsertTask(roadmapID string, t domain.Task) (*aztables.TransactionAction, error) {
	payload, err := sonic.Marshal(newTaskEntity(roadmapID, t))
	if err != nil {
		return nil, err
	}
	return &aztables.TransactionAction{ActionType: aztables.TransactionTypeInsertReplace, Entity: payload}, nil
}

func deleteTask(roadmapID, id string) (*aztables.TransactionAction, error) {
	payload, err := sonic.Marshal(entityKeys{PartitionKey: roadmapID, RowKey: id})
	if err != nil {
		return nil, err
	}
	return &aztables.TransactionAction{ActionType: aztables.TransactionTypeDelete, Entity: payload}, nil
}

// submit sends actions in batches and reports how many were committed.
func submit(ctx context.Context, tx transactionSubmitter, actions []aztables.TransactionAction) (int, error) {
	committed := 0
	for committed < len(actions) {
		n := min(len(actions)-committed, maxBatch)
		if _, err := tx.SubmitTransaction(ctx, actions[committed:committed+n], nil); err != nil {
			return committed, mapError(err)
		}
		committed += n
	}
	return committed, nil
}

func (s *Storage) saveLayout(ctx context.Context, roadmapID string, b board.Board) error {
	columns, order, presets, err := encodeLayout(b)
	if err != nil {
		return err
	}
	ent := map[string]any{
		"PartitionKey": roadmapID,
		"RowKey":       roadmapID,
		"Columns":      columns,
		"ColumnOrder":  order,
		"Presets":      presets,
		"UpdatedAt":    s.now().UTC().Format(time.RFC3339Nano),
	}
	payload, err := sonic.Marshal(ent)
	if err != nil {
		return err
	}
	etag := azcore.ETagAny
	if _, err := s.roadmapTable.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &etag, UpdateMode: aztables.UpdateModeMerge}); err != nil {
		return mapError(err)
	}
	return nil
}

// PublishEvent sends a board event to the events queue.
func (s *Storage) PublishEvent(ctx context.Context, ev domain.BoardEvent) error {
	data, err := sonic.MarshalString(ev)
	if err != nil {
		return err
	}
	_, err = s.eventQueue.EnqueueMessage(ctx, data, nil)
	return err
}

// Dequeue retrieves a single message from the events queue, hiding it from
// other consumers for visibility.
func (s *Storage) Dequeue(ctx context.Context, visibility time.Duration) (*azqueue.DequeuedMessage, error) {
	secs := int32(visibility / time.Second)
	resp, err := s.eventQueue.DequeueMessage(ctx, &azqueue.DequeueMessageOptions{VisibilityTimeout: &secs})
	if err != nil {
		return nil, err
	}
	if len(resp.Messages) == 0 {
		return nil, nil
	}
	return resp.Messages[0], nil
}

// Delete removes a processed message from the events queue.
func (s *Storage) Delete(ctx context.Context, id, receipt string) error {
	_, err := s.eventQueue.DeleteMessage(ctx, id, receipt, nil)
	return err
}
