package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"

	"roadmap-planner/board"
	"roadmap-planner/domain"
)

type stubSubmitter struct {
	failOn  map[int]error
	batches [][]aztables.TransactionAction
}

func (s *stubSubmitter) SubmitTransaction(_ context.Context, actions []aztables.TransactionAction, _ *aztables.SubmitTransactionOptions) (aztables.TransactionResponse, error) {
	call := len(s.batches)
	s.batches = append(s.batches, append([]aztables.TransactionAction(nil), actions...))
	if err := s.failOn[call]; err != nil {
		return aztables.TransactionResponse{}, err
	}
	return aztables.TransactionResponse{}, nil
}

func decodeAction(t *testing.T, a aztables.TransactionAction) taskEntity {
	t.Helper()
	var ent taskEntity
	if err := sonic.Unmarshal(a.Entity, &ent); err != nil {
		t.Fatalf("decode action: %v", err)
	}
	return ent
}

func persistTask(id string, status domain.Status) domain.Task {
	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	return domain.Task{ID: id, Title: id, Status: status, StartTime: start, EndTime: start.Add(time.Hour)}.Normalize()
}

func sampleMutationBoard() board.Board {
	return board.Distribute(map[string]domain.Task{
		"a": persistTask("a", domain.StatusTodo),
		"b": persistTask("b", domain.StatusDone),
	})
}

func TestWriteMutationCommitsTasksThenLayout(t *testing.T) {
	_, m, err := sampleMutationBoard().AddTask(persistTask("c", domain.StatusTodo))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	tx := &stubSubmitter{}
	layoutWrites := 0
	err = writeMutation(context.Background(), tx, "rm-1", m, func(context.Context) error {
		layoutWrites++
		return nil
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(tx.batches) != 1 || layoutWrites != 1 {
		t.Fatalf("expected one batch and one layout write, got %d and %d", len(tx.batches), layoutWrites)
	}
	if ent := decodeAction(t, tx.batches[0][0]); ent.RowKey != "c" || tx.batches[0][0].ActionType != aztables.TransactionTypeInsertReplace {
		t.Fatalf("unexpected action %s %s", tx.batches[0][0].ActionType, ent.RowKey)
	}
}

func TestWriteMutationRestoresTasksWhenLayoutFails(t *testing.T) {
	layoutErr := errors.New("layout write failed")
	before := sampleMutationBoard()

	_, added, err := before.AddTask(persistTask("c", domain.StatusTodo))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	_, moved, err := before.MoveTask(board.MoveRequest{
		TaskID:      "a",
		Source:      board.Position{ColumnID: domain.ColumnTodo, Index: 0},
		Destination: &board.Position{ColumnID: domain.ColumnDone, Index: 0},
	})
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	_, deleted, err := before.DeleteTask("b")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}

	tests := []struct {
		name       string
		m          board.Mutation
		wantType   aztables.TransactionType
		wantRow    string
		wantStatus string
	}{
		{"added task is deleted", added, aztables.TransactionTypeDelete, "c", ""},
		{"moved task gets its old status", moved, aztables.TransactionTypeInsertReplace, "a", string(domain.StatusTodo)},
		{"deleted task is written back", deleted, aztables.TransactionTypeInsertReplace, "b", string(domain.StatusDone)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := &stubSubmitter{}
			err := writeMutation(context.Background(), tx, "rm-1", tt.m, func(context.Context) error { return layoutErr })
			if !errors.Is(err, layoutErr) {
				t.Fatalf("expected layout error, got %v", err)
			}
			if len(tx.batches) != 2 {
				t.Fatalf("expected forward and restore batches, got %d", len(tx.batches))
			}
			restore := tx.batches[1]
			if len(restore) != 1 || restore[0].ActionType != tt.wantType {
				t.Fatalf("unexpected restore batch %+v", restore)
			}
			ent := decodeAction(t, restore[0])
			if ent.RowKey != tt.wantRow || ent.Status != tt.wantStatus {
				t.Fatalf("restored %s with status %q, want %s %q", ent.RowKey, ent.Status, tt.wantRow, tt.wantStatus)
			}
		})
	}
}

func TestWriteMutationRestoresOnlyCommittedBatches(t *testing.T) {
	before := board.Empty()
	after := board.Board{Tasks: map[string]domain.Task{}}
	m := board.Mutation{Op: board.OpBulkUpdate, Before: before, After: after}
	for i := range 150 {
		id := fmt.Sprintf("t%03d", i)
		after.Tasks[id] = persistTask(id, domain.StatusTodo)
		m.Changed = append(m.Changed, id)
	}
	batchErr := errors.New("second batch rejected")
	tx := &stubSubmitter{failOn: map[int]error{1: batchErr}}

	err := writeMutation(context.Background(), tx, "rm-1", m, func(context.Context) error {
		t.Fatal("layout written after a failed batch")
		return nil
	})
	if !errors.Is(err, batchErr) {
		t.Fatalf("expected batch error, got %v", err)
	}
	if len(tx.batches) != 3 {
		t.Fatalf("expected two forward batches and one restore batch, got %d", len(tx.batches))
	}
	restore := tx.batches[2]
	if len(restore) != maxBatch {
		t.Fatalf("expected %d restored rows, got %d", maxBatch, len(restore))
	}
	for _, a := range restore {
		if a.ActionType != aztables.TransactionTypeDelete {
			t.Fatalf("expected deletes of new rows, got %s", a.ActionType)
		}
	}
	if ent := decodeAction(t, restore[len(restore)-1]); ent.RowKey != "t099" {
		t.Fatalf("restore reached past the committed rows: %s", ent.RowKey)
	}
}

func TestWriteMutationReportsFailedRestore(t *testing.T) {
	_, m, err := sampleMutationBoard().AddTask(persistTask("c", domain.StatusTodo))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	layoutErr := errors.New("layout write failed")
	tx := &stubSubmitter{failOn: map[int]error{1: errors.New("restore rejected")}}
	err = writeMutation(context.Background(), tx, "rm-1", m, func(context.Context) error { return layoutErr })
	if !errors.Is(err, layoutErr) {
		t.Fatalf("expected layout error, got %v", err)
	}
	if got := err.Error(); got == layoutErr.Error() {
		t.Fatalf("restore failure not reported: %s", got)
	}
}
