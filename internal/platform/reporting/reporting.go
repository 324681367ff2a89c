package reporting

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/clinicore/clinic-server/internal/platform/auth"
)

// MeasureDefinition defines a reporting measure with its SQL query.
// SummarySQL reduces the measure to a single number for the monthly report
// log line.
type MeasureDefinition struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	SQL         string `json:"sql"`
	SummarySQL  string `json:"-"`
}

// MeasureReport holds the results of evaluating a measure.
type MeasureReport struct {
	MeasureID   string                   `json:"measure_id"`
	MeasureName string                   `json:"measure_name"`
	GeneratedAt time.Time                `json:"generated_at"`
	Results     []map[string]interface{} `json:"results"`
}

// PredefinedMeasures is the list of available reporting measures.
var PredefinedMeasures = []MeasureDefinition{
	{
		ID:          "appointment-volume-by-status",
		Name:        "Appointment Volume by Status",
		Description: "Number of appointments grouped by lifecycle status",
		SQL:         `SELECT status, COUNT(*) AS total FROM appointment GROUP BY status ORDER BY total DESC`,
		SummarySQL:  `SELECT COUNT(*) FROM appointment`,
	},
	{
		ID:          "reports-by-severity",
		Name:        "Symptom Reports by Severity",
		Description: "Number of symptom reports grouped by severity",
		SQL:         `SELECT severity, COUNT(*) AS total FROM symptom_report GROUP BY severity ORDER BY total DESC`,
		SummarySQL:  `SELECT COUNT(*) FROM symptom_report`,
	},
	{
		ID:          "urgent-backlog",
		Name:        "Urgent Triage Backlog",
		Description: "Severe and critical symptom reports still pending review",
		SQL:         `SELECT severity, COUNT(*) AS total FROM symptom_report WHERE severity IN ('SEVERE','CRITICAL') AND status = 'PENDING' GROUP BY severity`,
		SummarySQL:  `SELECT COUNT(*) FROM symptom_report WHERE severity IN ('SEVERE','CRITICAL') AND status = 'PENDING'`,
	},
	{
		ID:          "notification-volume",
		Name:        "Notification Volume",
		Description: "Number of notifications grouped by type, with unread share",
		SQL:         `SELECT type, COUNT(*) AS total, COUNT(*) FILTER (WHERE NOT is_read) AS unread FROM notification GROUP BY type ORDER BY total DESC`,
		SummarySQL:  `SELECT COUNT(*) FROM notification`,
	},
}

// FindMeasure looks up a measure by ID.
func FindMeasure(id string) *MeasureDefinition {
	for i := range PredefinedMeasures {
		if PredefinedMeasures[i].ID == id {
			return &PredefinedMeasures[i]
		}
	}
	return nil
}

// Service evaluates measures against the clinic schema.
type Service struct {
	pool *pgxpool.Pool
}

func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// Evaluate executes a measure's SQL and returns the row set.
func (s *Service) Evaluate(ctx context.Context, id string) (*MeasureReport, error) {
	measure := FindMeasure(id)
	if measure == nil {
		return nil, fmt.Errorf("unknown measure %q", id)
	}
	results, err := s.executeSQL(ctx, measure.SQL)
	if err != nil {
		return nil, err
	}
	return &MeasureReport{
		MeasureID:   measure.ID,
		MeasureName: measure.Name,
		GeneratedAt: time.Now(),
		Results:     results,
	}, nil
}

// EvaluateAll reduces every measure to its summary number. Used by the
// monthly report sweep.
func (s *Service) EvaluateAll(ctx context.Context) (map[string]int64, error) {
	out := make(map[string]int64, len(PredefinedMeasures))
	for _, m := range PredefinedMeasures {
		var value int64
		if err := s.pool.QueryRow(ctx, m.SummarySQL).Scan(&value); err != nil {
			return nil, fmt.Errorf("measure %s: %w", m.ID, err)
		}
		out[m.ID] = value
	}
	return out, nil
}

func (s *Service) executeSQL(ctx context.Context, sql string) ([]map[string]interface{}, error) {
	rows, err := s.pool.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	var results []map[string]interface{}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]interface{}, len(fieldDescs))
		for i, fd := range fieldDescs {
			row[string(fd.Name)] = values[i]
		}
		results = append(results, row)
	}

	if results == nil {
		results = []map[string]interface{}{}
	}
	return results, rows.Err()
}

// Handler provides HTTP handlers for the reporting API.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/reports", auth.RequireRole(auth.RoleStaff, auth.RoleManager))
	g.GET("/measures", h.ListMeasures)
	g.GET("/measures/:id/evaluate", h.EvaluateMeasure)
}

// ListMeasures returns all available measure definitions.
func (h *Handler) ListMeasures(c echo.Context) error {
	return c.JSON(http.StatusOK, PredefinedMeasures)
}

// EvaluateMeasure executes a measure's SQL and returns the results.
func (h *Handler) EvaluateMeasure(c echo.Context) error {
	if FindMeasure(c.Param("id")) == nil {
		return echo.NewHTTPError(http.StatusNotFound, "measure not found")
	}
	report, err := h.svc.Evaluate(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("query failed: %v", err))
	}
	return c.JSON(http.StatusOK, report)
}
