package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kazemman/InvoTechClinic-WhatsApp-sub000/internal/appointment"
	"github.com/kazemman/InvoTechClinic-WhatsApp-sub000/internal/db"
)

const entryColumns = `id, patient_id, check_in_id, doctor_id, status, priority, entered_at, started_at, completed_at`

type PgRepository struct {
	pool db.DBTX
}

func NewPgRepository(pool db.DBTX) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	var status string
	var priority int16

	err := row.Scan(
		&e.ID,
		&e.PatientID,
		&e.CheckInID,
		&e.DoctorID,
		&status,
		&priority,
		&e.EnteredAt,
		&e.StartedAt,
		&e.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}

	st, ok := ParseStatus(status)
	if !ok {
		return nil, fmt.Errorf("queue entry %s has unknown status %q", e.ID, status)
	}
	e.Status = st
	e.Priority = Priority(priority)
	return &e, nil
}

const checkInAppointmentFK = "checkins_appointment_id_fkey"

func (r *PgRepository) InsertCheckIn(ctx context.Context, c CheckIn) (*CheckIn, error) {
	return insertCheckIn(ctx, r.pool, c)
}

func (r *PgRepository) InsertQueueEntry(ctx context.Context, e Entry) (*Entry, error) {
	return insertQueueEntry(ctx, r.pool, e)
}

// InsertCheckInWithEntry writes the check-in and its queue entry in one
// transaction.
func (r *PgRepository) InsertCheckInWithEntry(ctx context.Context, c CheckIn, e Entry) (*CheckIn, *Entry, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin check-in: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	checkIn, err := insertCheckIn(ctx, tx, c)
	if err != nil {
		return nil, nil, err
	}
	e.CheckInID = checkIn.ID
	entry, err := insertQueueEntry(ctx, tx, e)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit check-in: %w", err)
	}
	return checkIn, entry, nil
}

func insertCheckIn(ctx context.Context, conn db.DBTX, c CheckIn) (*CheckIn, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}

	_, err := conn.Exec(ctx, `
		INSERT INTO checkins (id, patient_id, doctor_id, appointment_id, checked_in_at)
		VALUES ($1, $2, $3, $4, $5)
	`, c.ID, c.PatientID, c.DoctorID, c.AppointmentID, c.CheckedInAt)
	if err != nil {
		if name, ok := db.ForeignKeyConstraint(err); ok {
			if name == checkInAppointmentFK {
				return nil, appointment.ErrAppointmentNotFound
			}
			return nil, appointment.ErrDoctorNotFound
		}
		return nil, fmt.Errorf("insert check-in: %w", err)
	}
	return &c, nil
}

func insertQueueEntry(ctx context.Context, conn db.DBTX, e Entry) (*Entry, error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}

	row := conn.QueryRow(ctx, `
		INSERT INTO queue_entries (id, patient_id, check_in_id, doctor_id, status, priority, entered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+entryColumns+`
	`, e.ID, e.PatientID, e.CheckInID, e.DoctorID, string(e.Status), int16(e.Priority), e.EnteredAt)

	created, err := scanEntry(row)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return nil, ErrCheckInNotFound
		}
		return nil, err
	}
	return created, nil
}

func (r *PgRepository) GetQueueEntry(ctx context.Context, id uuid.UUID) (*Entry, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM queue_entries
		WHERE id = $1
	`, id)
	return scanEntry(row)
}

func (r *PgRepository) UpdateQueueEntry(ctx context.Context, e Entry, from Status) (*Entry, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE queue_entries
		SET status = $2,
		    started_at = $3,
		    completed_at = $4
		WHERE id = $1
		  AND status = $5
		RETURNING `+entryColumns+`
	`, e.ID, string(e.Status), e.StartedAt, e.CompletedAt, string(from))
	return scanEntry(row)
}

func (r *PgRepository) DeleteQueueEntry(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM queue_entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete queue entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (r *PgRepository) ListActiveQueue(ctx context.Context, doctorID *uuid.UUID) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+entryColumns+`
		FROM queue_entries
		WHERE status IN ('waiting', 'in_progress')
		  AND ($1::uuid IS NULL OR doctor_id = $1)
		ORDER BY entered_at ASC, priority DESC, id ASC
	`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
