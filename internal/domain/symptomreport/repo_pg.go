package symptomreport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/clinic-server/internal/platform/auth"
	"github.com/clinicore/clinic-server/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const reportCols = `id, patient_id, report_title, symptoms, description, severity, status,
	pain_level, duration_days, temperature, blood_pressure, additional_notes,
	reviewed_by_doctor_id, doctor_notes, doctor_response, reviewed_at,
	follow_up_required, follow_up_date, priority_level, version_id, created_at, updated_at`

func (r *repoPG) scan(row pgx.Row) (*SymptomReport, error) {
	var sr SymptomReport
	err := row.Scan(&sr.ID, &sr.PatientID, &sr.Title, &sr.Symptoms, &sr.Description, &sr.Severity, &sr.Status,
		&sr.PainLevel, &sr.DurationDays, &sr.Temperature, &sr.BloodPressure, &sr.AdditionalNotes,
		&sr.DoctorID, &sr.DoctorNotes, &sr.DoctorResponse, &sr.ReviewedAt,
		&sr.FollowUpNeeded, &sr.FollowUpDate, &sr.PriorityLevel, &sr.VersionID, &sr.CreatedAt, &sr.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	sr.ComputeUrgent()
	return &sr, nil
}

// scopeClause narrows a query to rows the caller may see. Patients see their
// own reports. Doctors see reports assigned to them plus the shared
// unassigned triage queue.
func scopeClause(scope auth.AccessScope, idx int) (string, []interface{}) {
	switch {
	case scope.IsPatient():
		return fmt.Sprintf(` AND patient_id = $%d`, idx), []interface{}{scope.UserID}
	case scope.IsDoctor():
		return fmt.Sprintf(` AND (reviewed_by_doctor_id = $%d OR reviewed_by_doctor_id IS NULL)`, idx),
			[]interface{}{scope.UserID}
	}
	return ``, nil
}

const urgentClause = ` AND severity IN ('SEVERE','CRITICAL') AND status = 'PENDING'`

func (r *repoPG) Create(ctx context.Context, sr *SymptomReport) error {
	sr.ID = uuid.New()
	sr.VersionID = 1
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO symptom_report (id, patient_id, report_title, symptoms, description, severity,
			status, pain_level, duration_days, temperature, blood_pressure, additional_notes,
			reviewed_by_doctor_id, priority_level, version_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING created_at, updated_at`,
		sr.ID, sr.PatientID, sr.Title, sr.Symptoms, sr.Description, sr.Severity,
		sr.Status, sr.PainLevel, sr.DurationDays, sr.Temperature, sr.BloodPressure, sr.AdditionalNotes,
		sr.DoctorID, sr.PriorityLevel, sr.VersionID,
	).Scan(&sr.CreatedAt, &sr.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, scope auth.AccessScope, id uuid.UUID) (*SymptomReport, error) {
	query := `SELECT ` + reportCols + ` FROM symptom_report WHERE 1=1 AND id = $1`
	args := []interface{}{id}
	clause, extra := scopeClause(scope, 2)
	query += clause
	args = append(args, extra...)
	return r.scan(r.conn(ctx).QueryRow(ctx, query, args...))
}

func (r *repoPG) Update(ctx context.Context, sr *SymptomReport) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE symptom_report SET
			report_title=$3, symptoms=$4, description=$5, status=$6,
			pain_level=$7, duration_days=$8, temperature=$9, blood_pressure=$10,
			additional_notes=$11, reviewed_by_doctor_id=$12, doctor_notes=$13,
			doctor_response=$14, reviewed_at=$15, follow_up_required=$16, follow_up_date=$17,
			version_id=version_id+1, updated_at=NOW()
		WHERE id = $1 AND version_id = $2`,
		sr.ID, sr.VersionID,
		sr.Title, sr.Symptoms, sr.Description, sr.Status,
		sr.PainLevel, sr.DurationDays, sr.Temperature, sr.BloodPressure,
		sr.AdditionalNotes, sr.DoctorID, sr.DoctorNotes,
		sr.DoctorResponse, sr.ReviewedAt, sr.FollowUpNeeded, sr.FollowUpDate)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.conn(ctx).QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM symptom_report WHERE id = $1)`, sr.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrConflict
	}
	sr.VersionID++
	return nil
}

func (r *repoPG) List(ctx context.Context, scope auth.AccessScope, f Filter, limit, offset int) ([]*SymptomReport, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1

	clause, extra := scopeClause(scope, idx)
	where += clause
	args = append(args, extra...)
	idx += len(extra)

	if f.Keyword != "" {
		where += fmt.Sprintf(` AND (report_title ILIKE $%d OR symptoms ILIKE $%d
			OR COALESCE(description, '') ILIKE $%d
			OR EXISTS (SELECT 1 FROM app_user u WHERE u.id = symptom_report.patient_id AND u.full_name ILIKE $%d))`,
			idx, idx, idx, idx)
		args = append(args, "%"+f.Keyword+"%")
		idx++
	}
	if f.PatientID != uuid.Nil {
		where += fmt.Sprintf(` AND patient_id = $%d`, idx)
		args = append(args, f.PatientID)
		idx++
	}
	if f.DoctorID != uuid.Nil {
		where += fmt.Sprintf(` AND reviewed_by_doctor_id = $%d`, idx)
		args = append(args, f.DoctorID)
		idx++
	}
	if f.Status != "" {
		where += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, f.Status)
		idx++
	}
	if f.Severity != "" {
		where += fmt.Sprintf(` AND severity = $%d`, idx)
		args = append(args, f.Severity)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM symptom_report`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + reportCols + ` FROM symptom_report` + where +
		fmt.Sprintf(` ORDER BY priority_level DESC, created_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	items, err := r.queryMany(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *repoPG) ListUrgent(ctx context.Context, scope auth.AccessScope) ([]*SymptomReport, error) {
	query := `SELECT ` + reportCols + ` FROM symptom_report WHERE 1=1` + urgentClause
	var args []interface{}
	clause, extra := scopeClause(scope, 1)
	query += clause
	args = append(args, extra...)
	query += ` ORDER BY priority_level DESC, created_at ASC`
	return r.queryMany(ctx, query, args...)
}

func (r *repoPG) ListPending(ctx context.Context, scope auth.AccessScope, limit, offset int) ([]*SymptomReport, int, error) {
	return r.List(ctx, scope, Filter{Status: StatusPending}, limit, offset)
}

func (r *repoPG) ListFollowUpDue(ctx context.Context, scope auth.AccessScope, by time.Time) ([]*SymptomReport, error) {
	query := `SELECT ` + reportCols + ` FROM symptom_report WHERE 1=1
		AND follow_up_required AND follow_up_date <= $1`
	args := []interface{}{by}
	clause, extra := scopeClause(scope, 2)
	query += clause
	args = append(args, extra...)
	query += ` ORDER BY follow_up_date ASC`
	return r.queryMany(ctx, query, args...)
}

func (r *repoPG) Counts(ctx context.Context, scope auth.AccessScope) (*StatusCounts, error) {
	query := `SELECT
		COUNT(*) FILTER (WHERE status = 'PENDING'),
		COUNT(*) FILTER (WHERE status = 'IN_PROGRESS'),
		COUNT(*) FILTER (WHERE status = 'REVIEWED'),
		COUNT(*) FILTER (WHERE status = 'RESOLVED'),
		COUNT(*) FILTER (WHERE severity IN ('SEVERE','CRITICAL') AND status = 'PENDING')
		FROM symptom_report WHERE 1=1`
	var args []interface{}
	clause, extra := scopeClause(scope, 1)
	query += clause
	args = append(args, extra...)

	var c StatusCounts
	err := r.conn(ctx).QueryRow(ctx, query, args...).
		Scan(&c.Pending, &c.InProgress, &c.Reviewed, &c.Resolved, &c.Urgent)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repoPG) queryMany(ctx context.Context, query string, args ...interface{}) ([]*SymptomReport, error) {
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*SymptomReport
	for rows.Next() {
		sr, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, sr)
	}
	return items, rows.Err()
}
