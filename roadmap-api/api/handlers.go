package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"roadmap-planner/board"
	"roadmap-planner/domain"
)

type server struct {
	store    Store
	auth     Authenticator
	deduper  Deduper
	events   EventSink
	sessions *sessionRegistry
	logger   *log.Logger
	now      func() time.Time
}

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, store Store, auth Authenticator, deduper Deduper, events EventSink, logger *log.Logger) {
	if logger == nil {
		panic("api.Register: logger is nil")
	}
	s := &server{
		store:    store,
		auth:     auth,
		deduper:  deduper,
		events:   events,
		sessions: newSessionRegistry(store, envDur("SESSION_TTL", 5*time.Second), logger),
		logger:   logger,
		now:      time.Now,
	}
	s.routes(e)
}

func (s *server) routes(e *echo.Echo) {
	e.GET("/healthz", healthz())

	g := e.Group("/api/roadmaps")
	g.GET("", s.listRoadmaps())
	g.POST("", s.createRoadmap())
	g.GET("/slug/:slug", s.getRoadmapBySlug())
	g.GET("/:id", s.getRoadmap())
	g.PATCH("/:id", s.updateRoadmap())
	g.DELETE("/:id", s.deleteRoadmap())
	g.PATCH("/:id/visibility", s.setVisibility())
	g.POST("/:id/share", s.shareRoadmap())
	g.DELETE("/:id/share", s.unshareRoadmap())

	g.GET("/:id/tasks", s.listTasks())
	g.POST("/:id/tasks", s.createTask())
	g.PUT("/:id/tasks/bulk-update", s.bulkUpdate())
	g.GET("/:id/tasks/:taskId", s.getTask())
	g.PATCH("/:id/tasks/:taskId", s.updateTask())
	g.DELETE("/:id/tasks/:taskId", s.deleteTask())
	g.POST("/:id/tasks/:taskId/comments", s.addComment())

	g.POST("/:id/moves", s.moveTask())
	g.POST("/:id/redistribute", s.redistribute())
	g.POST("/:id/presets", s.addPreset())
	g.DELETE("/:id/presets/:presetId", s.removePreset())
	g.POST("/:id/presets/:presetId/tasks", s.applyPreset())

	g.GET("/:id/timeline", s.timeline())
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

func (s *server) listRoadmaps() echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := s.authenticate(c, true)
		if err != nil {
			return s.fail(c, err)
		}
		start := time.Now()
		rms, err := s.store.ListRoadmaps(c.Request().Context(), id.UserID)
		metricsFrom(c).ObserveLoad(time.Since(start))
		if err != nil {
			return s.fail(c, err)
		}
		return reply(c, http.StatusOK, roadmapListResponse{Roadmaps: rms})
	}
}

func (s *server) createRoadmap() echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := s.authenticate(c, true)
		if err != nil {
			return s.fail(c, err)
		}
		var req roadmapRequest
		if err := decodeBody(c, &req); err != nil {
			return s.fail(c, err)
		}
		if req.Title == nil || strings.TrimSpace(*req.Title) == "" {
			return s.fail(c, &domain.ValidationError{Field: "title", Message: "title is required"})
		}
		now := s.now().UTC()
		rm := domain.Roadmap{
			ID:         uuid.NewString(),
			Title:      strings.TrimSpace(*req.Title),
			Slug:       domain.NewSlug(*req.Title),
			OwnerID:    id.UserID,
			SharedWith: []domain.Share{},
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if req.Description != nil {
			rm.Description = *req.Description
		}
		start := time.Now()
		err = s.store.CreateRoadmap(c.Request().Context(), rm)
		metricsFrom(c).ObservePersist(time.Since(start))
		if err != nil {
			return s.fail(c, err)
		}
		s.emit(rm.ID, domain.EventRoadmapCreated, "", id)
		return reply(c, http.StatusCreated, rm)
	}
}

func (s *server) getRoadmap() echo.HandlerFunc {
	return func(c echo.Context) error {
		_, rm, perm, err := s.authorize(c, c.Param("id"), domain.PermissionView)
		if err != nil {
			return s.fail(c, err)
		}
		return s.writeBoardView(c, rm, perm)
	}
}

func (s *server) getRoadmapBySlug() echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := s.authenticate(c, false)
		if err != nil {
			return s.fail(c, err)
		}
		start := time.Now()
		rm, err := s.store.FindRoadmapBySlug(c.Request().Context(), c.Param("slug"))
		metricsFrom(c).ObserveLoad(time.Since(start))
		if err != nil {
			return s.fail(c, err)
		}
		_, rm, perm, err := s.check(c, id, rm, domain.PermissionView)
		if err != nil {
			return s.fail(c, err)
		}
		return s.writeBoardView(c, rm, perm)
	}
}

func (s *server) writeBoardView(c echo.Context, rm domain.Roadmap, perm domain.Permission) error {
	session, err := s.session(c, rm.ID)
	if err != nil {
		return s.fail(c, err)
	}
	return reply(c, http.StatusOK, boardView{Roadmap: rm, Board: session.Snapshot(), Permission: perm})
}

func (s *server) updateRoadmap() echo.HandlerFunc {
	return func(c echo.Context) error {
		id, rm, _, err := s.authorize(c, c.Param("id"), domain.PermissionEdit)
		if err != nil {
			return s.fail(c, err)
		}
		var req roadmapRequest
		if err := decodeBody(c, &req); err != nil {
			return s.fail(c, err)
		}
		if req.Title != nil {
			if strings.TrimSpace(*req.Title) == "" {
				return s.fail(c, &domain.ValidationError{Field: "title", Message: "title is required"})
			}
			rm.Title = strings.TrimSpace(*req.Title)
		}
		if req.Description != nil {
			rm.Description = *req.Description
		}
		return s.saveRoadmap(c, id, rm)
	}
}

func (s *server) setVisibility() echo.HandlerFunc {
	return func(c echo.Context) error {
		id, rm, _, err := s.authorize(c, c.Param("id"), domain.PermissionAdmin)
		if err != nil {
			return s.fail(c, err)
		}
		var req visibilityRequest
		if err := decodeBody(c, &req); err != nil {
			return s.fail(c, err)
		}
		if req.IsPublic == nil {
			return s.fail(c, &domain.ValidationError{Field: "isPublic", Message: "isPublic is required"})
		}
		rm.IsPublic = *req.IsPublic
		return s.saveRoadmap(c, id, rm)
	}
}

func (s *server) shareRoadmap() echo.HandlerFunc {
	return func(c echo.Context) error {
		id, rm, _, err := s.authorize(c, c.Param("id"), domain.PermissionAdmin)
		if err != nil {
			return s.fail(c, err)
		}
		var req shareRequest
		if err := decodeBody(c, &req); err != nil {
			return s.fail(c, err)
		}
		email := strings.TrimSpace(req.Email)
		if email == "" || !strings.Contains(email, "@") {
			return s.fail(c, &domain.ValidationError{Field: "email", Message: "a valid email is required"})
		}
		perm, err := domain.ParsePermission(req.PermissionLevel)
		if err != nil {
			return s.fail(c, err)
		}
		return s.saveRoadmap(c, id, rm.WithShare(email, perm))
	}
}

func (s *server) unshareRoadmap() echo.HandlerFunc {
	return func(c echo.Context) error {
		id, rm, _, err := s.authorize(c, c.Param("id"), domain.PermissionAdmin)
		if err != nil {
			return s.fail(c, err)
		}
		email := strings.TrimSpace(c.QueryParam("email"))
		if email == "" {
			return s.fail(c, &domain.ValidationError{Field: "email", Message: "email is required"})
		}
		return s.saveRoadmap(c, id, rm.WithoutShare(email))
	}
}

func (s *server) saveRoadmap(c echo.Context, id domain.Identity, rm domain.Roadmap) error {
	rm.UpdatedAt = s.now().UTC()
	start := time.Now()
	err := s.store.SaveRoadmap(c.Request().Context(), rm)
	metricsFrom(c).ObservePersist(time.Since(start))
	if err != nil {
		return s.fail(c, err)
	}
	s.emit(rm.ID, domain.EventRoadmapUpdated, "", id)
	return reply(c, http.StatusOK, rm)
}

func (s *server) deleteRoadmap() echo.HandlerFunc {
	return func(c echo.Context) error {
		id, rm, _, err := s.authorize(c, c.Param("id"), domain.PermissionAdmin)
		if err != nil {
			return s.fail(c, err)
		}
		start := time.Now()
		err = s.store.DeleteRoadmap(c.Request().Context(), rm.ID)
		metricsFrom(c).ObservePersist(time.Since(start))
		if err != nil {
			return s.fail(c, err)
		}
		s.sessions.drop(rm.ID)
		s.emit(rm.ID, domain.EventRoadmapDeleted, "", id)
		return c.NoContent(http.StatusNoContent)
	}
}

func (s *server) session(c echo.Context, roadmapID string) (*board.Session, error) {
	start := time.Now()
	defer func() { metricsFrom(c).ObserveLoad(time.Since(start)) }()
	return s.sessions.acquire(c.Request().Context(), roadmapID)
}

// mutate runs op against the roadmap session and publishes the resulting
// event. A zero mutation is a no-op and publishes nothing.
func (s *server) mutate(c echo.Context, id domain.Identity, roadmapID string, op func(ctx context.Context, session *board.Session) (board.Mutation, error)) (board.Mutation, error) {
	session, err := s.session(c, roadmapID)
	if err != nil {
		return board.Mutation{}, err
	}
	start := time.Now()
	m, err := op(c.Request().Context(), session)
	metricsFrom(c).ObservePersist(time.Since(start))
	if err != nil {
		return board.Mutation{}, err
	}
	if m.IsZero() {
		return m, nil
	}
	metricsFrom(c).SetOp(string(m.Op))
	s.emit(roadmapID, m.EventType(), m.TaskID, id)
	return m, nil
}

func (s *server) emit(roadmapID, eventType, taskID string, actor domain.Identity) {
	if s.events == nil {
		return
	}
	s.events.Publish(domain.BoardEvent{
		ID:        uuid.NewString(),
		RoadmapID: roadmapID,
		Type:      eventType,
		TaskID:    taskID,
		Actor:     actor.UserID,
		Timestamp: s.now().UnixMilli(),
	})
}
