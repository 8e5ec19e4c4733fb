package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"roadmap-planner/auth"
	"roadmap-planner/storage"
	"roadmap-planner/stream-service/api"
	"roadmap-planner/stream-service/subscription"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	roadmapsTable := os.Getenv("ROADMAPS_TABLE")
	tasksTable := os.Getenv("TASKS_TABLE")
	eventsQueue := os.Getenv("EVENTS_QUEUE")
	if connStr == "" || roadmapsTable == "" || tasksTable == "" || eventsQueue == "" {
		log.Fatal("missing storage config")
	}
	base, err := storage.New(connStr, roadmapsTable, tasksTable, eventsQueue)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	redisConn := os.Getenv("REDIS_CONNECTION_STRING")
	channel := os.Getenv("BOARD_UPDATES_CHANNEL")
	if redisConn == "" || channel == "" {
		log.Fatal("missing redis config")
	}
	rc := redis.NewClient(storage.ParseRedisOptions(redisConn))
	defer rc.Close()
	store := storage.NewCache(base, rc, 10*time.Minute)

	authenticator, err := newAuthenticator()
	if err != nil {
		log.Fatalf("auth: %v", err)
	}

	logger := log.New()
	logger.SetLevel(log.GetLevel())
	logger.SetFormatter(&log.JSONFormatter{})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	broker := subscription.NewBroker()
	go subscription.SubscribeUpdates(ctx, logger, rc, channel, broker, time.Second)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	api.Register(e, store, authenticator, broker, logger, 30*time.Second)

	listenAddr := ":9000"
	if val, ok := os.LookupEnv("STREAM_SERVICE_PORT"); ok {
		listenAddr = ":" + val
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = e.Shutdown(shutdownCtx)
	}()
	if err := e.Start(listenAddr); err != nil && ctx.Err() == nil {
		e.Logger.Fatal(err)
	}
}

func newAuthenticator() (*auth.Auth, error) {
	if auth.LocalModeEnabled() {
		return auth.NewAuth(nil, os.Getenv("AUTH0_AUDIENCE"), "")
	}
	audience := os.Getenv("AUTH0_AUDIENCE")
	domain := os.Getenv("AUTH0_DOMAIN")
	if audience == "" || domain == "" {
		return nil, fmt.Errorf("missing Auth0 config")
	}
	jwks, err := keyfunc.Get(fmt.Sprintf("https://%s/.well-known/jwks.json", domain), keyfunc.Options{RefreshInterval: time.Hour})
	if err != nil {
		return nil, fmt.Errorf("jwks: %w", err)
	}
	return auth.NewAuth(jwks, audience, "https://"+domain+"/")
}
