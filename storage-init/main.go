package main

import (
	"context"
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	log "github.com/sirupsen/logrus"
)

const (
	initAttempts = 10
	initBackoff  = 2 * time.Second
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	log.Info("storage init starting")

	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	tables := []string{os.Getenv("ROADMAPS_TABLE"), os.Getenv("TASKS_TABLE")}
	queues := []string{os.Getenv("EVENTS_QUEUE")}
	if connStr == "" || tables[0] == "" || tables[1] == "" || queues[0] == "" {
		log.Fatal("missing storage config")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// The storage emulator may still be starting when the job runs.
	err := withRetry(ctx, initAttempts, initBackoff, func() error {
		if err := createTables(ctx, connStr, tables); err != nil {
			return err
		}
		return createQueues(ctx, connStr, queues)
	})
	if err != nil {
		log.Fatalf("storage init: %v", err)
	}
	log.Info("storage init complete")
}

func withRetry(ctx context.Context, attempts int, backoff time.Duration, fn func() error) error {
	var err error
	for i := 1; i <= attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		log.WithError(err).WithField("attempt", i).Warn("storage not ready")
		if i == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(backoff):
		}
	}
	return err
}

func alreadyExists(err error, code string) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.ErrorCode == code
}

func createTables(ctx context.Context, connStr string, names []string) error {
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, nil)
	if err != nil {
		return err
	}
	for _, name := range names {
		if _, err := svc.NewClient(name).CreateTable(ctx, nil); err != nil {
			if !alreadyExists(err, string(aztables.TableAlreadyExists)) {
				return err
			}
			log.WithField("table", name).Debug("table already exists")
			continue
		}
		log.WithField("table", name).Info("table created")
	}
	return nil
}

func createQueues(ctx context.Context, connStr string, names []string) error {
	for _, name := range names {
		q, err := azqueue.NewQueueClientFromConnectionString(connStr, name, nil)
		if err != nil {
			return err
		}
		if _, err := q.Create(ctx, nil); err != nil {
			if !alreadyExists(err, "QueueAlreadyExists") {
				return err
			}
			log.WithField("queue", name).Debug("queue already exists")
			continue
		}
		log.WithField("queue", name).Info("queue created")
	}
	return nil
}
