package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
)

func TestAlreadyExists(t *testing.T) {
	exists := &azcore.ResponseError{ErrorCode: "QueueAlreadyExists"}
	if !alreadyExists(exists, "QueueAlreadyExists") {
		t.Fatal("expected queue conflict to be ignored")
	}
	if alreadyExists(exists, "TableAlreadyExists") {
		t.Fatal("unexpected match for another code")
	}
	if alreadyExists(errors.New("dial tcp: refused"), "QueueAlreadyExists") {
		t.Fatal("plain errors must not match")
	}
}

func TestWithRetry(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		if calls < 2 {
			return errors.New("not ready")
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Fatalf("expected success on second attempt, calls=%d err=%v", calls, err)
	}

	calls = 0
	boom := errors.New("still down")
	if err := withRetry(context.Background(), 3, time.Millisecond, func() error { calls++; return boom }); !errors.Is(err, boom) || calls != 3 {
		t.Fatalf("expected last error after 3 attempts, calls=%d err=%v", calls, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := withRetry(ctx, 3, time.Second, func() error { return boom }); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}
