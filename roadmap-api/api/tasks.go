package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"roadmap-planner/board"
	"roadmap-planner/domain"
)

func (s *server) listTasks() echo.HandlerFunc {
	return func(c echo.Context) error {
		_, rm, _, err := s.authorize(c, c.Param("id"), domain.PermissionView)
		if err != nil {
			return s.fail(c, err)
		}
		session, err := s.session(c, rm.ID)
		if err != nil {
			return s.fail(c, err)
		}
		return reply(c, http.StatusOK, session.Snapshot().OrderedTasks())
	}
}

func (s *server) getTask() echo.HandlerFunc {
	return func(c echo.Context) error {
		_, rm, _, err := s.authorize(c, c.Param("id"), domain.PermissionView)
		if err != nil {
			return s.fail(c, err)
		}
		session, err := s.session(c, rm.ID)
		if err != nil {
			return s.fail(c, err)
		}
		t, err := session.Snapshot().Task(c.Param("taskId"))
		if err != nil {
			return s.fail(c, err)
		}
		return reply(c, http.StatusOK, taskResponse{Task: t, Color: t.DisplayColor()})
	}
}

func (s *server) createTask() echo.HandlerFunc {
	return func(c echo.Context) error {
		id, rm, _, err := s.authorize(c, c.Param("id"), domain.PermissionEdit)
		if err != nil {
			return s.fail(c, err)
		}
		var req taskRequest
		if err := decodeBody(c, &req); err != nil {
			return s.fail(c, err)
		}
		task, err := req.task(uuid.NewString())
		if err != nil {
			return s.fail(c, err)
		}

		key := strings.TrimSpace(c.Request().Header.Get(idempotencyHeader))
		scope := rm.ID + ":" + id.UserID
		if key != "" && s.deduper != nil {
			taskID, claimed, err := s.deduper.Claim(c.Request().Context(), scope, key, task.ID)
			if err != nil {
				return s.fail(c, err)
			}
			if !claimed {
				return s.replayCreate(c, rm.ID, taskID)
			}
		}

		m, err := s.mutate(c, id, rm.ID, func(ctx context.Context, session *board.Session) (board.Mutation, error) {
			return session.AddTask(ctx, task)
		})
		if err != nil {
			if key != "" && s.deduper != nil {
				if rerr := s.deduper.Remove(context.Background(), scope, key); rerr != nil {
					s.logger.WithError(rerr).WithFields(log.Fields{"roadmap": rm.ID, "key": key}).Error("dedupe rollback failed")
				}
			}
			return s.fail(c, err)
		}
		created := m.After.Tasks[task.ID]
		return reply(c, http.StatusCreated, taskResponse{Task: created, Color: created.DisplayColor()})
	}
}

// replayCreate answers a repeated create with the task made by the first
// request.
func (s *server) replayCreate(c echo.Context, roadmapID, taskID string) error {
	session, err := s.session(c, roadmapID)
	if err != nil {
		return s.fail(c, err)
	}
	t, err := session.Snapshot().Task(taskID)
	if err != nil {
		return c.JSON(http.StatusConflict, errorResponse{Error: "request with this idempotency key is in progress"})
	}
	return reply(c, http.StatusOK, taskResponse{Task: t, Color: t.DisplayColor()})
}

func (s *server) updateTask() echo.HandlerFunc {
	return func(c echo.Context) error {
		id, rm, _, err := s.authorize(c, c.Param("id"), domain.PermissionEdit)
		if err != nil {
			return s.fail(c, err)
		}
		var req taskRequest
		if err := decodeBody(c, &req); err != nil {
			return s.fail(c, err)
		}
		patch, err := req.patch()
		if err != nil {
			return s.fail(c, err)
		}
		taskID := c.Param("taskId")
		m, err := s.mutate(c, id, rm.ID, func(ctx context.Context, session *board.Session) (board.Mutation, error) {
			return session.UpdateTask(ctx, taskID, patch)
		})
		if err != nil {
			return s.fail(c, err)
		}
		t := m.After.Tasks[taskID]
		return reply(c, http.StatusOK, taskResponse{Task: t, Color: t.DisplayColor()})
	}
}

func (s *server) deleteTask() echo.HandlerFunc {
	return func(c echo.Context) error {
		id, rm, _, err := s.authorize(c, c.Param("id"), domain.PermissionEdit)
		if err != nil {
			return s.fail(c, err)
		}
		taskID := c.Param("taskId")
		if _, err := s.mutate(c, id, rm.ID, func(ctx context.Context, session *board.Session) (board.Mutation, error) {
			return session.DeleteTask(ctx, taskID)
		}); err != nil {
			return s.fail(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func (s *server) addComment() echo.HandlerFunc {
	return func(c echo.Context) error {
		id, rm, _, err := s.authorize(c, c.Param("id"), domain.PermissionEdit)
		if err != nil {
			return s.fail(c, err)
		}
		var req commentRequest
		if err := decodeBody(c, &req); err != nil {
			return s.fail(c, err)
		}
		author := id.Email
		if author == "" {
			author = id.UserID
		}
		comment := domain.Comment{
			ID:        uuid.NewString(),
			Author:    author,
			Content:   req.Content,
			CreatedAt: s.now().UTC(),
		}
		taskID := c.Param("taskId")
		m, err := s.mutate(c, id, rm.ID, func(ctx context.Context, session *board.Session) (board.Mutation, error) {
			return session.AddComment(ctx, taskID, comment)
		})
		if err != nil {
			return s.fail(c, err)
		}
		t := m.After.Tasks[taskID]
		return reply(c, http.StatusCreated, taskResponse{Task: t, Color: t.DisplayColor()})
	}
}
