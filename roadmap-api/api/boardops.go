package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"roadmap-planner/board"
	"roadmap-planner/domain"
)

func (s *server) moveTask() echo.HandlerFunc {
	return func(c echo.Context) error {
		id, rm, _, err := s.authorize(c, c.Param("id"), domain.PermissionEdit)
		if err != nil {
			return s.fail(c, err)
		}
		var req moveRequest
		if err := decodeBody(c, &req); err != nil {
			return s.fail(c, err)
		}
		m, err := s.mutate(c, id, rm.ID, func(ctx context.Context, session *board.Session) (board.Mutation, error) {
			return session.MoveTask(ctx, req.request())
		})
		if err != nil {
			return s.fail(c, err)
		}
		if m.IsZero() {
			return c.NoContent(http.StatusNoContent)
		}
		return reply(c, http.StatusOK, mutationBody(m))
	}
}

func (s *server) bulkUpdate() echo.HandlerFunc {
	return func(c echo.Context) error {
		id, rm, _, err := s.authorize(c, c.Param("id"), domain.PermissionEdit)
		if err != nil {
			return s.fail(c, err)
		}
		var req board.BulkUpdate
		if err := decodeBody(c, &req); err != nil {
			return s.fail(c, err)
		}
		m, err := s.mutate(c, id, rm.ID, func(ctx context.Context, session *board.Session) (board.Mutation, error) {
			return session.ApplyBulkUpdate(ctx, req)
		})
		if err != nil {
			return s.fail(c, err)
		}
		return reply(c, http.StatusOK, mutationBody(m))
	}
}

func (s *server) redistribute() echo.HandlerFunc {
	return func(c echo.Context) error {
		id, rm, _, err := s.authorize(c, c.Param("id"), domain.PermissionEdit)
		if err != nil {
			return s.fail(c, err)
		}
		m, err := s.mutate(c, id, rm.ID, func(ctx context.Context, session *board.Session) (board.Mutation, error) {
			return session.Redistribute(ctx)
		})
		if err != nil {
			return s.fail(c, err)
		}
		return reply(c, http.StatusOK, mutationBody(m))
	}
}

func (s *server) addPreset() echo.HandlerFunc {
	return func(c echo.Context) error {
		id, rm, _, err := s.authorize(c, c.Param("id"), domain.PermissionEdit)
		if err != nil {
			return s.fail(c, err)
		}
		var req presetRequest
		if err := decodeBody(c, &req); err != nil {
			return s.fail(c, err)
		}
		presetID := strings.TrimSpace(req.ID)
		if presetID == "" {
			presetID = uuid.NewString()
		}
		preset := req.preset()
		m, err := s.mutate(c, id, rm.ID, func(ctx context.Context, session *board.Session) (board.Mutation, error) {
			return session.AddPreset(ctx, presetID, preset)
		})
		if err != nil {
			return s.fail(c, err)
		}
		return reply(c, http.StatusCreated, m.After.Presets)
	}
}

func (s *server) removePreset() echo.HandlerFunc {
	return func(c echo.Context) error {
		id, rm, _, err := s.authorize(c, c.Param("id"), domain.PermissionEdit)
		if err != nil {
			return s.fail(c, err)
		}
		presetID := c.Param("presetId")
		if _, err := s.mutate(c, id, rm.ID, func(ctx context.Context, session *board.Session) (board.Mutation, error) {
			return session.RemovePreset(ctx, presetID)
		}); err != nil {
			return s.fail(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func (s *server) applyPreset() echo.HandlerFunc {
	return func(c echo.Context) error {
		id, rm, _, err := s.authorize(c, c.Param("id"), domain.PermissionEdit)
		if err != nil {
			return s.fail(c, err)
		}
		presetID := c.Param("presetId")
		taskID := uuid.NewString()
		now := s.now().UTC()
		m, err := s.mutate(c, id, rm.ID, func(ctx context.Context, session *board.Session) (board.Mutation, error) {
			return session.ApplyPreset(ctx, presetID, taskID, now)
		})
		if err != nil {
			return s.fail(c, err)
		}
		t := m.After.Tasks[taskID]
		return reply(c, http.StatusCreated, taskResponse{Task: t, Color: t.DisplayColor()})
	}
}
