package queue

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/kazemman/InvoTechClinic-WhatsApp-sub000/internal/apperr"
	"github.com/kazemman/InvoTechClinic-WhatsApp-sub000/internal/appointment"
)

var (
	ErrEntryNotFound   = fmt.Errorf("queue entry %w", apperr.ErrNotFound)
	ErrCheckInNotFound = fmt.Errorf("check-in %w", apperr.ErrNotFound)
)

type Repository interface {
	InsertCheckIn(ctx context.Context, c CheckIn) (*CheckIn, error)
	// InsertCheckInWithEntry writes a check-in and its queue entry
	// atomically; e.CheckInID is set from c.
	InsertCheckInWithEntry(ctx context.Context, c CheckIn, e Entry) (*CheckIn, *Entry, error)

	InsertQueueEntry(ctx context.Context, e Entry) (*Entry, error)
	GetQueueEntry(ctx context.Context, id uuid.UUID) (*Entry, error)
	// UpdateQueueEntry writes status and timestamps only while the row is
	// still in from; otherwise it returns ErrEntryNotFound.
	UpdateQueueEntry(ctx context.Context, e Entry, from Status) (*Entry, error)
	DeleteQueueEntry(ctx context.Context, id uuid.UUID) error

	// ListActiveQueue returns waiting and in_progress entries in queue order,
	// optionally for one doctor.
	ListActiveQueue(ctx context.Context, doctorID *uuid.UUID) ([]Entry, error)
}

// Directory resolves the doctors and appointments a check-in refers to.
// appointment.Repository implementations satisfy it.
type Directory interface {
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*appointment.Doctor, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
}
