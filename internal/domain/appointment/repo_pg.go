package appointment

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

const apptCols = `id, patient_id, doctor_id, appointment_date, appointment_time, status,
	appointment_type, notes, is_anonymous, cancellation_reason, reschedule_reason,
	version_id, created_at, updated_at`

func (r *repoPG) scan(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.Date, &a.Time, &a.Status,
		&a.Type, &a.Notes, &a.IsAnonymous, &a.CancellationReason, &a.RescheduleReason,
		&a.VersionID, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &a, err
}

// scopeClause narrows a query to rows the caller may see. Patients see their
// own appointments, doctors the ones assigned to them. The fragment always
// starts with " AND" so it composes with a "WHERE 1=1" query.
func scopeClause(scope auth.AccessScope, idx int) (string, []interface{}) {
	switch {
	case scope.IsPatient():
		return fmt.Sprintf(` AND patient_id = $%d`, idx), []interface{}{scope.UserID}
	case scope.IsDoctor():
		return fmt.Sprintf(` AND doctor_id = $%d`, idx), []interface{}{scope.UserID}
	}
	return ``, nil
}

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	a.VersionID = 1
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointment (id, patient_id, doctor_id, appointment_date, appointment_time,
			status, appointment_type, notes, is_anonymous, version_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.DoctorID, a.Date, a.Time,
		a.Status, a.Type, a.Notes, a.IsAnonymous, a.VersionID,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, scope auth.AccessScope, id uuid.UUID) (*Appointment, error) {
	query := `SELECT ` + apptCols + ` FROM appointment WHERE 1=1 AND id = $1`
	args := []interface{}{id}
	clause, extra := scopeClause(scope, 2)
	query += clause
	args = append(args, extra...)
	return r.scan(r.conn(ctx).QueryRow(ctx, query, args...))
}

func (r *repoPG) Update(ctx context.Context, a *Appointment) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointment SET
			appointment_date=$3, appointment_time=$4, status=$5, appointment_type=$6,
			notes=$7, is_anonymous=$8, cancellation_reason=$9, reschedule_reason=$10,
			version_id=version_id+1, updated_at=NOW()
		WHERE id = $1 AND version_id = $2`,
		a.ID, a.VersionID,
		a.Date, a.Time, a.Status, a.Type,
		a.Notes, a.IsAnonymous, a.CancellationReason, a.RescheduleReason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.conn(ctx).QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM appointment WHERE id = $1)`, a.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrConflict
	}
	a.VersionID++
	return nil
}

func (r *repoPG) List(ctx context.Context, scope auth.AccessScope, f Filter, limit, offset int) ([]*Appointment, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1

	clause, extra := scopeClause(scope, idx)
	where += clause
	args = append(args, extra...)
	idx += len(extra)

	if f.PatientID != uuid.Nil {
		where += fmt.Sprintf(` AND patient_id = $%d`, idx)
		args = append(args, f.PatientID)
		idx++
	}
	if f.DoctorID != uuid.Nil {
		where += fmt.Sprintf(` AND doctor_id = $%d`, idx)
		args = append(args, f.DoctorID)
		idx++
	}
	if f.Status != "" {
		where += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, f.Status)
		idx++
	}
	if f.Date != nil {
		where += fmt.Sprintf(` AND appointment_date = $%d`, idx)
		args = append(args, *f.Date)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM appointment`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + apptCols + ` FROM appointment` + where +
		fmt.Sprintf(` ORDER BY appointment_date DESC, appointment_time DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	items, err := r.queryMany(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *repoPG) ListUpcoming(ctx context.Context, scope auth.AccessScope, after time.Time, limit int) ([]*Appointment, error) {
	query := `SELECT ` + apptCols + ` FROM appointment WHERE 1=1 AND appointment_date > $1
		AND status NOT IN ('CANCELLED','NO_SHOW','COMPLETED')`
	args := []interface{}{after}
	clause, extra := scopeClause(scope, 2)
	query += clause
	args = append(args, extra...)
	query += fmt.Sprintf(` ORDER BY appointment_date ASC, appointment_time ASC LIMIT $%d`, len(args)+1)
	args = append(args, limit)
	return r.queryMany(ctx, query, args...)
}

func (r *repoPG) ListOn(ctx context.Context, scope auth.AccessScope, date time.Time) ([]*Appointment, error) {
	query := `SELECT ` + apptCols + ` FROM appointment WHERE 1=1 AND appointment_date = $1`
	args := []interface{}{date}
	clause, extra := scopeClause(scope, 2)
	query += clause
	args = append(args, extra...)
	query += ` ORDER BY appointment_time ASC`
	return r.queryMany(ctx, query, args...)
}

func (r *repoPG) ListUrgentOn(ctx context.Context, scope auth.AccessScope, date time.Time) ([]*Appointment, error) {
	query := `SELECT ` + apptCols + ` FROM appointment WHERE 1=1
		AND appointment_date = $1 AND appointment_type = $2
		AND status NOT IN ('CANCELLED','NO_SHOW','COMPLETED')`
	args := []interface{}{date, TypeEmergency}
	clause, extra := scopeClause(scope, 3)
	query += clause
	args = append(args, extra...)
	query += ` ORDER BY appointment_time ASC`
	return r.queryMany(ctx, query, args...)
}

func (r *repoPG) ListConfirmedOn(ctx context.Context, date time.Time) ([]*Appointment, error) {
	return r.queryMany(ctx, `SELECT `+apptCols+` FROM appointment
		WHERE appointment_date = $1 AND status = $2
		ORDER BY appointment_time ASC`, date, StatusConfirmed)
}

func (r *repoPG) CountByDoctorOn(ctx context.Context, doctorID uuid.UUID, date time.Time) (int, error) {
	var count int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM appointment
		WHERE doctor_id = $1 AND appointment_date = $2`, doctorID, date).Scan(&count)
	return count, err
}

func (r *repoPG) queryMany(ctx context.Context, query string, args ...interface{}) ([]*Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}
