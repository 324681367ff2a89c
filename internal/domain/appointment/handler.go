package appointment

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicore/clinic-server/internal/platform/auth"
	"github.com/clinicore/clinic-server/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/appointments")
	anyParty := auth.RequireRole(auth.RolePatient, auth.RoleDoctor, auth.RoleStaff, auth.RoleManager)
	clinical := auth.RequireRole(auth.RoleDoctor, auth.RoleStaff, auth.RoleManager)

	g.POST("", h.Create, auth.RequireRole(auth.RolePatient, auth.RoleStaff, auth.RoleManager))
	g.GET("", h.List, anyParty)
	g.GET("/upcoming", h.Upcoming, anyParty)
	g.GET("/today", h.Today, anyParty)
	g.GET("/urgent-today", h.UrgentToday, clinical)
	g.GET("/:id", h.Get, anyParty)
	g.POST("/:id/confirm", h.Confirm, anyParty)
	g.POST("/:id/start", h.Start, clinical)
	g.POST("/:id/complete", h.Complete, clinical)
	g.POST("/:id/no-show", h.MarkNoShow, clinical)
	g.POST("/:id/cancel", h.Cancel, anyParty)
	g.POST("/:id/reschedule", h.Reschedule, anyParty)
}

type createRequest struct {
	PatientID   uuid.UUID `json:"patient_id"`
	DoctorID    uuid.UUID `json:"doctor_id"`
	Date        string    `json:"date"`
	Time        string    `json:"time"`
	Type        string    `json:"type"`
	Notes       *string   `json:"notes"`
	IsAnonymous bool      `json:"is_anonymous"`
}

func (h *Handler) Create(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "date must be YYYY-MM-DD")
	}
	a := &Appointment{
		PatientID:   req.PatientID,
		DoctorID:    req.DoctorID,
		Date:        date,
		Time:        req.Time,
		Type:        req.Type,
		Notes:       req.Notes,
		IsAnonymous: req.IsAnonymous,
	}
	ctx := c.Request().Context()
	if err := h.svc.Create(ctx, auth.ScopeFromContext(ctx), a); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	a, err := h.svc.Get(ctx, auth.ScopeFromContext(ctx), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) List(c echo.Context) error {
	var f Filter
	if v := c.QueryParam("patient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		f.PatientID = id
	}
	if v := c.QueryParam("doctor_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor_id")
		}
		f.DoctorID = id
	}
	f.Status = c.QueryParam("status")
	if v := c.QueryParam("date"); v != "" {
		d, err := time.Parse("2006-01-02", v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "date must be YYYY-MM-DD")
		}
		f.Date = &d
	}

	ctx := c.Request().Context()
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(ctx, auth.ScopeFromContext(ctx), f, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Upcoming(c echo.Context) error {
	ctx := c.Request().Context()
	pg := pagination.FromContext(c)
	items, err := h.svc.Upcoming(ctx, auth.ScopeFromContext(ctx), pg.Limit)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Today(c echo.Context) error {
	ctx := c.Request().Context()
	items, err := h.svc.Today(ctx, auth.ScopeFromContext(ctx))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) UrgentToday(c echo.Context) error {
	ctx := c.Request().Context()
	items, err := h.svc.UrgentToday(ctx, auth.ScopeFromContext(ctx))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Confirm(c echo.Context) error {
	return h.lifecycle(c, h.svc.Confirm)
}

func (h *Handler) Start(c echo.Context) error {
	return h.lifecycle(c, h.svc.Start)
}

func (h *Handler) Complete(c echo.Context) error {
	return h.lifecycle(c, h.svc.Complete)
}

func (h *Handler) MarkNoShow(c echo.Context) error {
	return h.lifecycle(c, h.svc.MarkNoShow)
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	ctx := c.Request().Context()
	a, err := h.svc.Cancel(ctx, auth.ScopeFromContext(ctx), id, req.Reason)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Reschedule(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req struct {
		NewDate string `json:"new_date"`
		NewTime string `json:"new_time"`
		Reason  string `json:"reason"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	date, err := time.Parse("2006-01-02", req.NewDate)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "new_date must be YYYY-MM-DD")
	}
	ctx := c.Request().Context()
	a, err := h.svc.Reschedule(ctx, auth.ScopeFromContext(ctx), id, date, req.NewTime, req.Reason)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

type lifecycleFunc func(ctx context.Context, scope auth.AccessScope, id uuid.UUID) (*Appointment, error)

func (h *Handler) lifecycle(c echo.Context, fn lifecycleFunc) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	a, err := fn(ctx, auth.ScopeFromContext(ctx), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
	case errors.Is(err, ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
