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
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"roadmap-planner/auth"
	"roadmap-planner/roadmap-api/api"
	"roadmap-planner/storage"
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
	if redisConn == "" {
		log.Fatal("missing redis config")
	}
	rc := redis.NewClient(storage.ParseRedisOptions(redisConn))
	store := storage.NewCache(base, rc, durationEnv("BOARD_CACHE_TTL", 10*time.Minute))
	deduper := api.NewRedisDeduper(rc, durationEnv("DEDUPER_TTL", 24*time.Hour))

	authenticator, err := newAuthenticator()
	if err != nil {
		log.Fatalf("auth: %v", err)
	}

	sampleRatio := 1.0
	if v := os.Getenv("TRACE_SAMPLE_RATIO"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil || r < 0 || r > 1 {
			log.Fatalf("invalid TRACE_SAMPLE_RATIO: %q", v)
		}
		sampleRatio = r
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRatio))))
	otel.SetTracerProvider(tp)

	logger := log.New()
	logger.SetLevel(log.GetLevel())
	logger.SetFormatter(&log.JSONFormatter{})

	publisher := api.NewEventPublisher(base, api.PublisherConfigFromEnv(), logger)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "Idempotency-Key"},
		AllowMethods: []string{echo.GET, echo.POST, echo.PUT, echo.PATCH, echo.DELETE},
	}))
	e.Use(api.GzipRequestMiddleware())
	e.Use(api.RequestMetricsMiddleware(logger))

	api.Register(e, store, authenticator, deduper, publisher, logger)

	listenAddr := ":8080"
	if val, ok := os.LookupEnv("FUNCTIONS_CUSTOMHANDLER_PORT"); ok {
		listenAddr = ":" + val
	}

	go func() {
		if err := e.Start(listenAddr); err != nil {
			logger.WithError(err).Info("server stopped")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("shutdown")
	}
	publisher.Close()
	if err := tp.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("tracer shutdown")
	}
	_ = rc.Close()
}

func newAuthenticator() (*auth.Auth, error) {
	if auth.LocalModeEnabled() {
		return auth.NewAuth(nil, os.Getenv("AUTH0_AUDIENCE"), "")
	}
	jwtAudience := os.Getenv("AUTH0_AUDIENCE")
	domain := os.Getenv("AUTH0_DOMAIN")
	if jwtAudience == "" || domain == "" {
		return nil, fmt.Errorf("missing Auth0 config")
	}
	jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", domain)
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{RefreshInterval: time.Hour})
	if err != nil {
		return nil, fmt.Errorf("jwks: %w", err)
	}
	return auth.NewAuth(jwks, jwtAudience, "https://"+domain+"/")
}

func durationEnv(name string, def time.Duration) time.Duration {
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
