package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"roadmap-planner/board"
	"roadmap-planner/domain"
	"roadmap-planner/storage"
)

var (
	errForbidden   = errors.New("insufficient permission")
	errInvalidBody = errors.New("invalid body")
)

// authenticate resolves the caller. Without an Authorization header the
// caller is anonymous unless required is set.
func (s *server) authenticate(c echo.Context, required bool) (domain.Identity, error) {
	start := time.Now()
	defer func() { metricsFrom(c).ObserveAuth(time.Since(start)) }()

	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header == "" && !required {
		return domain.Identity{}, nil
	}
	id, err := s.auth.IdentityFromAuthHeader(header)
	if err != nil {
		metricsFrom(c).SetErrorStage("auth")
		return domain.Identity{}, echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	return id, nil
}

// authorize loads a roadmap and checks that the caller holds at least need.
// Anonymous callers are refused with 401 rather than 403 when the roadmap is
// not readable to them.
func (s *server) authorize(c echo.Context, roadmapID string, need domain.Permission) (domain.Identity, domain.Roadmap, domain.Permission, error) {
	id, err := s.authenticate(c, need != domain.PermissionView)
	if err != nil {
		return id, domain.Roadmap{}, domain.PermissionNone, err
	}
	start := time.Now()
	rm, err := s.store.GetRoadmap(c.Request().Context(), roadmapID)
	metricsFrom(c).ObserveLoad(time.Since(start))
	if err != nil {
		return id, domain.Roadmap{}, domain.PermissionNone, err
	}
	return s.check(c, id, rm, need)
}

func (s *server) check(c echo.Context, id domain.Identity, rm domain.Roadmap, need domain.Permission) (domain.Identity, domain.Roadmap, domain.Permission, error) {
	perm := rm.PermissionFor(id)
	metricsFrom(c).SetRoadmap(rm.ID, string(perm))
	if !perm.Allows(need) {
		if id.Anonymous() {
			return id, rm, perm, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
		}
		return id, rm, perm, errForbidden
	}
	return id, rm, perm, nil
}

// decodeBody reads a JSON request body, rejecting unknown fields.
func decodeBody(c echo.Context, v any) error {
	lr := io.LimitReader(c.Request().Body, maxBodySize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		metricsFrom(c).SetErrorStage("decode")
		return errInvalidBody
	}
	return nil
}

// statusFor maps domain, board and storage errors to HTTP status codes.
func statusFor(err error) int {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		return he.Code
	case errors.Is(err, errInvalidBody), domain.IsValidation(err),
		errors.Is(err, domain.ErrMissingID), errors.Is(err, board.ErrInvariant):
		return http.StatusBadRequest
	case errors.Is(err, errForbidden):
		return http.StatusForbidden
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, board.ErrTaskNotFound),
		errors.Is(err, board.ErrColumnNotFound), errors.Is(err, board.ErrPresetNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrConflict), errors.Is(err, board.ErrDuplicateTask),
		errors.Is(err, board.ErrStalePosition):
		return http.StatusConflict
	case errors.Is(err, board.ErrPersist):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as a JSON error body.
func (s *server) fail(c echo.Context, err error) error {
	status := statusFor(err)
	body := errorResponse{Error: err.Error()}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if msg, ok := he.Message.(string); ok {
			body.Error = msg
		}
	}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		body.Field = ve.Field
		body.Error = ve.Message
	}
	if status >= http.StatusInternalServerError {
		metricsFrom(c).SetErrorStage("internal")
		s.logger.WithError(err).WithFields(log.Fields{"route": c.Path(), "status": status}).Error("request failed")
		if status == http.StatusInternalServerError {
			body.Error = "internal error"
		}
	}
	return c.JSON(status, body)
}

// reply encodes a JSON response and records the encode time.
func reply(c echo.Context, status int, v any) error {
	start := time.Now()
	err := c.JSON(status, v)
	metricsFrom(c).ObserveEncode(time.Since(start))
	if err != nil {
		metricsFrom(c).SetErrorStage("encode_response")
	}
	return err
}
