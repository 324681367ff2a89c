package symptomreport

import (
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
	g := api.Group("/symptom-reports")
	anyParty := auth.RequireRole(auth.RolePatient, auth.RoleDoctor, auth.RoleStaff, auth.RoleManager)
	clinical := auth.RequireRole(auth.RoleDoctor, auth.RoleStaff, auth.RoleManager)

	g.POST("", h.Create, auth.RequireRole(auth.RolePatient, auth.RoleStaff))
	g.GET("", h.List, anyParty)
	g.GET("/urgent", h.Urgent, clinical)
	g.GET("/pending", h.Pending, clinical)
	g.GET("/follow-up-due", h.FollowUpDue, clinical)
	g.GET("/counts", h.Counts, clinical)
	g.GET("/:id", h.Get, anyParty)
	g.POST("/:id/assign", h.Assign, auth.RequireRole(auth.RoleStaff, auth.RoleManager, auth.RoleDoctor))
	g.POST("/:id/review", h.Review, auth.RequireRole(auth.RoleDoctor))
	g.POST("/:id/follow-up", h.SetFollowUp, clinical)
	g.PUT("/:id/status", h.SetStatus, auth.RequireRole(auth.RoleStaff, auth.RoleManager))
}

type createRequest struct {
	PatientID       uuid.UUID  `json:"patient_id"`
	Title           string     `json:"title"`
	Symptoms        string     `json:"symptoms"`
	Description     *string    `json:"description"`
	Severity        string     `json:"severity"`
	PainLevel       *int       `json:"pain_level"`
	DurationDays    *int       `json:"duration_days"`
	Temperature     *float64   `json:"temperature"`
	BloodPressure   *string    `json:"blood_pressure"`
	AdditionalNotes *string    `json:"additional_notes"`
	DoctorID        *uuid.UUID `json:"doctor_id"`
}

func (h *Handler) Create(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	sr := &SymptomReport{
		PatientID:       req.PatientID,
		Title:           req.Title,
		Symptoms:        req.Symptoms,
		Description:     req.Description,
		Severity:        req.Severity,
		PainLevel:       req.PainLevel,
		DurationDays:    req.DurationDays,
		Temperature:     req.Temperature,
		BloodPressure:   req.BloodPressure,
		AdditionalNotes: req.AdditionalNotes,
		DoctorID:        req.DoctorID,
	}
	ctx := c.Request().Context()
	if err := h.svc.Create(ctx, auth.ScopeFromContext(ctx), sr); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, sr)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	sr, err := h.svc.Get(ctx, auth.ScopeFromContext(ctx), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sr)
}

func (h *Handler) List(c echo.Context) error {
	f := Filter{
		Keyword:  c.QueryParam("keyword"),
		Status:   c.QueryParam("status"),
		Severity: c.QueryParam("severity"),
	}
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

	ctx := c.Request().Context()
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(ctx, auth.ScopeFromContext(ctx), f, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Urgent(c echo.Context) error {
	ctx := c.Request().Context()
	items, err := h.svc.Urgent(ctx, auth.ScopeFromContext(ctx))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Pending(c echo.Context) error {
	ctx := c.Request().Context()
	pg := pagination.FromContext(c)
	items, total, err := h.svc.Pending(ctx, auth.ScopeFromContext(ctx), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) FollowUpDue(c echo.Context) error {
	ctx := c.Request().Context()
	items, err := h.svc.FollowUpDue(ctx, auth.ScopeFromContext(ctx))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Counts(c echo.Context) error {
	ctx := c.Request().Context()
	counts, err := h.svc.Counts(ctx, auth.ScopeFromContext(ctx))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, counts)
}

func (h *Handler) Assign(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req struct {
		DoctorID uuid.UUID `json:"doctor_id"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	ctx := c.Request().Context()
	sr, err := h.svc.Assign(ctx, auth.ScopeFromContext(ctx), id, req.DoctorID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sr)
}

func (h *Handler) Review(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req struct {
		DoctorNotes    string `json:"doctor_notes"`
		DoctorResponse string `json:"doctor_response"`
		FollowUpDate   string `json:"follow_up_date"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	var followUp *time.Time
	if req.FollowUpDate != "" {
		d, err := time.Parse("2006-01-02", req.FollowUpDate)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "follow_up_date must be YYYY-MM-DD")
		}
		followUp = &d
	}
	ctx := c.Request().Context()
	scope := auth.ScopeFromContext(ctx)
	sr, err := h.svc.Review(ctx, scope, id, scope.UserID, req.DoctorNotes, req.DoctorResponse, followUp)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sr)
}

func (h *Handler) SetFollowUp(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req struct {
		FollowUpDate string `json:"follow_up_date"`
		Notes        string `json:"notes"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	date, err := time.Parse("2006-01-02", req.FollowUpDate)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "follow_up_date must be YYYY-MM-DD")
	}
	ctx := c.Request().Context()
	sr, err := h.svc.SetFollowUp(ctx, auth.ScopeFromContext(ctx), id, date, req.Notes)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sr)
}

func (h *Handler) SetStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	ctx := c.Request().Context()
	sr, err := h.svc.SetStatus(ctx, auth.ScopeFromContext(ctx), id, req.Status)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sr)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "symptom report not found")
	case errors.Is(err, ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
