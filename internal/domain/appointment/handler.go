package appointment

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medbook/medbook/internal/engine"
	"github.com/medbook/medbook/internal/platform/auth"
	"github.com/medbook/medbook/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole("admin", "manager", "doctor", "receptionist"))
	g.POST("/appointments", h.Book)
	g.GET("/appointments", h.Search)
	g.GET("/appointments/:id", h.Get)
	g.GET("/appointments/:id/history", h.History)
	g.POST("/appointments/conflict-check", h.CheckConflicts)
	g.GET("/availability", h.Availability)

	g.POST("/appointments/:id/confirm", h.Confirm)
	g.POST("/appointments/:id/start", h.Start, auth.RequireRole("admin", "doctor"))
	g.POST("/appointments/:id/complete", h.Complete)
	g.POST("/appointments/:id/conclude", h.Conclude, auth.RequireRole("admin", "doctor"))
	g.POST("/appointments/:id/cancel", h.Cancel)
	g.POST("/appointments/:id/no-show", h.MarkNoShow)
	g.POST("/appointments/:id/reschedule", h.Reschedule)
}

func (h *Handler) Book(c echo.Context) error {
	var req BookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req.ActorID = actorID(c)
	appt, err := h.svc.Book(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, appt)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	appt, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, appt)
}

// History returns the appointment's status and reschedule trails.
func (h *Handler) History(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	appt, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"appointment_id":     appt.ID,
		"status_history":     appt.History,
		"reschedule_history": appt.Reschedules,
	})
}

func (h *Handler) Search(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := map[string]string{}
	for _, key := range []string{"doctor_id", "patient_id", "clinic_id", "service_id", "status", "date", "from", "to"} {
		if v := c.QueryParam(key); v != "" {
			params[key] = v
		}
	}
	items, total, err := h.svc.Search(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Availability(c echo.Context) error {
	doctorID, err := uuid.Parse(c.QueryParam("doctor_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor_id")
	}
	clinicID, err := uuid.Parse(c.QueryParam("clinic_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid clinic_id")
	}
	date, err := engine.ParseDate(c.QueryParam("date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	slotMinutes := 0
	if raw := c.QueryParam("slot_minutes"); raw != "" {
		slotMinutes, err = strconv.Atoi(raw)
		if err != nil || slotMinutes <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid slot_minutes")
		}
	}
	sched, err := h.svc.Availability(c.Request().Context(), doctorID, clinicID, date, slotMinutes)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sched)
}

func (h *Handler) CheckConflicts(c echo.Context) error {
	var probe ConflictProbe
	if err := c.Bind(&probe); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if probe.Minutes <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "duration_minutes must be positive")
	}
	conflicts, err := h.svc.CheckConflicts(c.Request().Context(), probe)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"has_conflicts": len(conflicts) > 0,
		"conflicts":     conflicts,
	})
}

type transitionRequest struct {
	Reason string `json:"reason,omitempty"`
	Notes  string `json:"notes,omitempty"`
}

func (h *Handler) Confirm(c echo.Context) error {
	return h.runTransition(c, func(ctx echo.Context, id uuid.UUID, req transitionRequest) (*engine.Appointment, error) {
		return h.svc.Confirm(ctx.Request().Context(), id, actorID(ctx))
	})
}

func (h *Handler) Start(c echo.Context) error {
	return h.runTransition(c, func(ctx echo.Context, id uuid.UUID, req transitionRequest) (*engine.Appointment, error) {
		return h.svc.Start(ctx.Request().Context(), id, actorID(ctx))
	})
}

func (h *Handler) Complete(c echo.Context) error {
	return h.runTransition(c, func(ctx echo.Context, id uuid.UUID, req transitionRequest) (*engine.Appointment, error) {
		return h.svc.Complete(ctx.Request().Context(), id, actorID(ctx), req.Notes)
	})
}

func (h *Handler) Conclude(c echo.Context) error {
	return h.runTransition(c, func(ctx echo.Context, id uuid.UUID, req transitionRequest) (*engine.Appointment, error) {
		return h.svc.Conclude(ctx.Request().Context(), id, actorID(ctx), req.Notes)
	})
}

func (h *Handler) Cancel(c echo.Context) error {
	return h.runTransition(c, func(ctx echo.Context, id uuid.UUID, req transitionRequest) (*engine.Appointment, error) {
		return h.svc.Cancel(ctx.Request().Context(), id, actorID(ctx), req.Reason)
	})
}

func (h *Handler) MarkNoShow(c echo.Context) error {
	return h.runTransition(c, func(ctx echo.Context, id uuid.UUID, req transitionRequest) (*engine.Appointment, error) {
		return h.svc.MarkNoShow(ctx.Request().Context(), id, actorID(ctx), req.Reason)
	})
}

func (h *Handler) runTransition(c echo.Context, fn func(echo.Context, uuid.UUID, transitionRequest) (*engine.Appointment, error)) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req transitionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	appt, err := fn(c, id, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) Reschedule(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var params RescheduleParams
	if err := c.Bind(&params); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	params.ActorID = actorID(c)
	appt, err := h.svc.Reschedule(c.Request().Context(), id, params)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, appt)
}

// actorID resolves the authenticated user; uuid.Nil when the subject is
// not a UUID (service tokens, dev mode).
func actorID(c echo.Context) uuid.UUID {
	id, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return uuid.Nil
	}
	return id
}

// httpError maps domain failures onto HTTP statuses: engine validation
// kinds to 422, conflicts and lifecycle violations to 409, missing
// references to 404.
func httpError(err error) error {
	var e *engine.Error
	if errors.As(err, &e) {
		return echo.NewHTTPError(statusForKind(e.Kind), e)
	}
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func statusForKind(kind engine.Kind) int {
	switch kind {
	case engine.KindDoctorConflict, engine.KindPatientConflict,
		engine.KindDuplicateSessionBooking, engine.KindCompletedSessionRebooking,
		engine.KindInvalidStatusTransition:
		return http.StatusConflict
	case engine.KindSessionNotFound:
		return http.StatusNotFound
	default:
		return http.StatusUnprocessableEntity
	}
}
