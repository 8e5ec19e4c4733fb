package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"roadmap-planner/storage"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	log.Info("Read-Model Updater Service starting")

	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	roadmapsTable := os.Getenv("ROADMAPS_TABLE")
	tasksTable := os.Getenv("TASKS_TABLE")
	eventsQueue := os.Getenv("EVENTS_QUEUE")
	if connStr == "" || roadmapsTable == "" || tasksTable == "" || eventsQueue == "" {
		log.Fatal("missing storage config")
	}
	redisConn := os.Getenv("REDIS_CONNECTION_STRING")
	channel := os.Getenv("BOARD_UPDATES_CHANNEL")
	if redisConn == "" || channel == "" {
		log.Fatal("missing redis config")
	}

	base, err := storage.New(connStr, roadmapsTable, tasksTable, eventsQueue)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	rc := redis.NewClient(storage.ParseRedisOptions(redisConn))
	defer rc.Close()

	logger := log.New()
	logger.SetLevel(log.GetLevel())
	logger.SetFormatter(&log.JSONFormatter{})

	p := &processor{
		queue:      base,
		cache:      storage.NewCache(base, rc, envDuration("BOARD_CACHE_TTL", 10*time.Minute)),
		redis:      rc,
		channel:    channel,
		visibility: envDuration("EVENT_VISIBILITY_TIMEOUT", 30*time.Second),
		maxDequeue: int64(envInt("EVENT_MAX_DEQUEUE", 5)),
		idle:       envDuration("EVENT_POLL_INTERVAL", time.Second),
		logger:     logger,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	p.run(ctx)
	log.Info("Read-Model Updater Service stopped")
}

func envDuration(name string, def time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Fatalf("invalid %s: %q", name, v)
	}
	return d
}

func envInt(name string, def int) int {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		log.Fatalf("invalid %s: %q", name, v)
	}
	return n
}
