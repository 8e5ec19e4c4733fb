package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"roadmap-planner/domain"
	"roadmap-planner/timeline"
)

// timeline lays out the tasks of a roadmap. Query parameters: width (px of
// the container, fits the zoom), granularity (day|hour), start and end
// (RFC 3339, both or neither) and tz (IANA zone for calendar markers).
func (s *server) timeline() echo.HandlerFunc {
	return func(c echo.Context) error {
		_, rm, _, err := s.authorize(c, c.Param("id"), domain.PermissionView)
		if err != nil {
			return s.fail(c, err)
		}
		q, err := parseTimelineQuery(c)
		if err != nil {
			return s.fail(c, err)
		}
		session, err := s.session(c, rm.ID)
		if err != nil {
			return s.fail(c, err)
		}
		q.tasks(session.Snapshot().OrderedTasks())
		layout, err := q.layout()
		if err != nil {
			return s.fail(c, err)
		}
		return reply(c, http.StatusOK, layout)
	}
}

type timelineQuery struct {
	view        *timeline.View
	granularity *timeline.Granularity
	start, end  *time.Time
	width       int
}

func parseTimelineQuery(c echo.Context) (*timelineQuery, error) {
	loc := time.UTC
	if tz := strings.TrimSpace(c.QueryParam("tz")); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return nil, &domain.ValidationError{Field: "tz", Message: "unknown time zone"}
		}
		loc = l
	}
	q := &timelineQuery{view: timeline.NewView(loc)}

	if raw := strings.TrimSpace(c.QueryParam("granularity")); raw != "" {
		g, err := timeline.ParseGranularity(raw)
		if err != nil {
			return nil, err
		}
		q.granularity = &g
	}
	if raw := strings.TrimSpace(c.QueryParam("width")); raw != "" {
		w, err := strconv.Atoi(raw)
		if err != nil || w <= 0 {
			return nil, &domain.ValidationError{Field: "width", Message: "width must be a positive integer"}
		}
		q.width = w
	}
	rawStart, rawEnd := strings.TrimSpace(c.QueryParam("start")), strings.TrimSpace(c.QueryParam("end"))
	if (rawStart == "") != (rawEnd == "") {
		return nil, &domain.ValidationError{Field: "start", Message: "start and end must be given together"}
	}
	if rawStart != "" {
		start, err := parseTimestamp("start", &rawStart)
		if err != nil {
			return nil, err
		}
		end, err := parseTimestamp("end", &rawEnd)
		if err != nil {
			return nil, err
		}
		q.start, q.end = start, end
	}
	return q, nil
}

func (q *timelineQuery) tasks(tasks []domain.Task) {
	q.view.SetTasks(tasks)
}

func (q *timelineQuery) layout() (timeline.Layout, error) {
	if q.granularity != nil {
		if err := q.view.SetGranularity(*q.granularity); err != nil {
			return timeline.Layout{}, err
		}
	}
	if q.start != nil {
		if err := q.view.SetCustomRange(*q.start, *q.end); err != nil {
			return timeline.Layout{}, err
		}
	}
	if q.width > 0 {
		q.view.FitToWidth(q.width)
	}
	return q.view.Layout(), nil
}
