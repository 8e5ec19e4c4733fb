package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"roadmap-planner/board"
	"roadmap-planner/domain"
	"roadmap-planner/storage"
)

// Storage loads the roadmap and board pushed to stream clients.
type Storage interface {
	GetRoadmap(ctx context.Context, id string) (domain.Roadmap, error)
	LoadBoard(ctx context.Context, roadmapID string) (board.Board, error)
}

type Authenticator interface {
	IdentityFromAuthHeader(string) (domain.Identity, error)
}

// Broker delivers a signal whenever the board of a roadmap changed.
type Broker interface {
	Subscribe(roadmapID string) (<-chan struct{}, func())
}

type boardView struct {
	Roadmap    domain.Roadmap    `json:"roadmap"`
	Board      board.Board       `json:"board"`
	Permission domain.Permission `json:"permission"`
}

const defaultKeepalive = 30 * time.Second

type streamer struct {
	store     Storage
	auth      Authenticator
	broker    Broker
	logger    *log.Logger
	keepalive time.Duration
}

// Register wires up the stream endpoint on the given Echo instance.
func Register(e *echo.Echo, store Storage, auth Authenticator, broker Broker, logger *log.Logger, keepalive time.Duration) {
	if logger == nil {
		panic("api.Register: logger is nil")
	}
	if keepalive <= 0 {
		keepalive = defaultKeepalive
	}
	s := &streamer{store: store, auth: auth, broker: broker, logger: logger, keepalive: keepalive}
	e.GET("/stream", s.streamBoard)
	e.GET("/healthz", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
}

// streamBoard pushes the current board of a roadmap and again after every
// change. EventSource cannot set headers, so the token may come as a query
// parameter.
func (s *streamer) streamBoard(c echo.Context) error {
	roadmapID := c.QueryParam("roadmapId")
	if roadmapID == "" {
		return c.String(http.StatusBadRequest, "roadmapId is required")
	}
	authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
	if token := c.QueryParam("token"); authHeader == "" && token != "" {
		authHeader = "Bearer " + token
	}
	var id domain.Identity
	if authHeader != "" {
		var err error
		if id, err = s.auth.IdentityFromAuthHeader(authHeader); err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
	}

	ctx := c.Request().Context()
	view, err := s.load(ctx, roadmapID, id)
	if err != nil {
		return c.String(statusFor(err, id), err.Error())
	}

	flusher, ok := c.Response().Writer.(http.Flusher)
	if !ok {
		return c.String(http.StatusInternalServerError, "stream unsupported")
	}

	// Subscribe before the first write so no change between load and
	// subscription is missed.
	updates, unsubscribe := s.broker.Subscribe(roadmapID)
	defer unsubscribe()

	c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
	c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
	c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)
	if err := writeEvent(c, view); err != nil {
		return nil
	}
	flusher.Flush()

	ticker := time.NewTicker(s.keepalive)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := c.Response().Write([]byte(":keepalive\n\n")); err != nil {
				return nil
			}
			flusher.Flush()
		case <-updates:
			view, err := s.load(ctx, roadmapID, id)
			switch {
			case errors.Is(err, storage.ErrNotFound), errors.Is(err, errForbidden):
				// Deleted or access revoked: tell the client and end the stream.
				_, _ = c.Response().Write([]byte("event: closed\ndata: {}\n\n"))
				flusher.Flush()
				return nil
			case err != nil:
				s.logger.WithError(err).WithField("roadmap", roadmapID).Error("reload board for stream failed")
				continue
			}
			if err := writeEvent(c, view); err != nil {
				return nil
			}
			flusher.Flush()
		}
	}
}

var errForbidden = errors.New("insufficient permission")

func (s *streamer) load(ctx context.Context, roadmapID string, id domain.Identity) (boardView, error) {
	rm, err := s.store.GetRoadmap(ctx, roadmapID)
	if err != nil {
		return boardView{}, err
	}
	perm := rm.PermissionFor(id)
	if !perm.Allows(domain.PermissionView) {
		return boardView{}, errForbidden
	}
	b, err := s.store.LoadBoard(ctx, roadmapID)
	if err != nil {
		return boardView{}, err
	}
	return boardView{Roadmap: rm, Board: b, Permission: perm}, nil
}

func statusFor(err error, id domain.Identity) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errForbidden) && id.Anonymous():
		return http.StatusUnauthorized
	case errors.Is(err, errForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func writeEvent(c echo.Context, v any) error {
	data, err := sonic.Marshal(v)
	if err != nil {
		return err
	}
	w := c.Response()
	if _, err := w.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err = w.Write([]byte("\n\n"))
	return err
}
