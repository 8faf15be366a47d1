package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kazemman/InvoTechClinic-WhatsApp-sub000/internal/apperr"
)

var (
	ErrDoctorNotFound      = fmt.Errorf("doctor %w", apperr.ErrNotFound)
	ErrAppointmentNotFound = fmt.Errorf("appointment %w", apperr.ErrNotFound)
	ErrBlockNotFound       = fmt.Errorf("unavailability block %w", apperr.ErrNotFound)

	// ErrSlotTaken is returned both by the advisory check and by storage when
	// the (doctor, slot) uniqueness rule rejects a write.
	ErrSlotTaken = fmt.Errorf("doctor already has an appointment in this slot: %w", apperr.ErrConflict)
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	ListActiveDoctors(ctx context.Context) ([]Doctor, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error)

	// For conflict checks and availability. Cancelled rows are never returned.
	FindAppointmentsByDoctorAndWindow(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]Appointment, error)

	// Writes must honour the live (doctor_id, slot_start) uniqueness rule and
	// report violations as ErrSlotTaken.
	InsertAppointment(ctx context.Context, a Appointment) (*Appointment, error)
	UpdateAppointment(ctx context.Context, a Appointment) (*Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus, at time.Time) (*Appointment, error)
}

// UnavailabilityRepository stores doctor blocks.
type UnavailabilityRepository interface {
	InsertBlock(ctx context.Context, b Block) (*Block, error)
	DeleteBlock(ctx context.Context, id uuid.UUID) error
	FindUnavailabilityBlocks(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Block, error)
}
