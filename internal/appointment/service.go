package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kazemman/InvoTechClinic-WhatsApp-sub000/internal/apperr"
	"github.com/kazemman/InvoTechClinic-WhatsApp-sub000/internal/audit"
	"github.com/kazemman/InvoTechClinic-WhatsApp-sub000/internal/calendar"
	"github.com/kazemman/InvoTechClinic-WhatsApp-sub000/internal/clock"
	"github.com/kazemman/InvoTechClinic-WhatsApp-sub000/internal/metrics"
)

const (
	EventAppointmentScheduled   = "APPOINTMENT_SCHEDULED"
	EventAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
	EventAppointmentStatus      = "APPOINTMENT_STATUS_CHANGED"
	EventAppointmentCancelled   = "APPOINTMENT_CANCELLED"
	EventUnavailabilityCreated  = "UNAVAILABILITY_CREATED"
	EventUnavailabilityDeleted  = "UNAVAILABILITY_DELETED"
)

var tracer = otel.Tracer("clinic.internal.appointment")

type Option func(*Service)

func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

func WithRecorder(r *audit.Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

func WithMetrics(m *metrics.SchedulingMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithOpeningHours toggles the calendar and block check on writes. Reads
// always honour both.
func WithOpeningHours(enforce bool) Option {
	return func(s *Service) { s.enforceHours = enforce }
}

type Service struct {
	repo         Repository
	blocks       UnavailabilityRepository
	guard        *ConflictGuard
	resolver     *Resolver
	loc          *time.Location
	enforceHours bool

	clock    clock.Clock
	recorder *audit.Recorder
	metrics  *metrics.SchedulingMetrics
	logger   zerolog.Logger
}

func NewService(repo Repository, blocks UnavailabilityRepository, loc *time.Location, opts ...Option) *Service {
	if loc == nil {
		loc = time.UTC
	}
	s := &Service{
		repo:         repo,
		blocks:       blocks,
		guard:        NewConflictGuard(repo),
		resolver:     NewResolver(repo, blocks, loc),
		loc:          loc,
		enforceHours: true,
		clock:        clock.Real(),
		logger:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.resolver.clock = s.clock
	s.resolver.metrics = s.metrics
	return s
}

func (s *Service) Location() *time.Location { return s.loc }

// Schedule books a new appointment in status scheduled. Two requests racing
// for the same doctor and slot both pass the advisory check at worst; storage
// lets exactly one insert through and the other gets ErrSlotTaken.
func (s *Service) Schedule(ctx context.Context, in ScheduleInput) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointment.Schedule", trace.WithAttributes(
		attribute.String("clinic.doctor_id", in.DoctorID.String()),
	))
	defer span.End()

	appt, err := s.schedule(ctx, in)
	s.metrics.ObserveBooking("schedule", outcome(err))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return appt, nil
}

func (s *Service) schedule(ctx context.Context, in ScheduleInput) (*Appointment, error) {
	slot, err := NormalizeSlot(in.SlotStart.In(s.loc))
	if err != nil {
		return nil, err
	}
	if in.PatientID == uuid.Nil {
		return nil, apperr.Validation("patient_id", "is required")
	}
	if in.DoctorID == uuid.Nil {
		return nil, apperr.Validation("doctor_id", "is required")
	}

	if _, err := s.resolver.activeDoctor(ctx, in.DoctorID); err != nil {
		return nil, err
	}
	if err := s.checkBookable(ctx, in.DoctorID, slot); err != nil {
		return nil, err
	}

	conflict, err := s.guard.HasConflict(ctx, in.DoctorID, slot, nil)
	if err != nil {
		return nil, err
	}
	if conflict {
		return nil, ErrSlotTaken
	}

	now := s.clock.Now().UTC()
	created, err := s.repo.InsertAppointment(ctx, Appointment{
		ID:              uuid.New(),
		PatientID:       in.PatientID,
		DoctorID:        in.DoctorID,
		SlotStart:       slot,
		Status:          StatusScheduled,
		AppointmentType: in.AppointmentType,
		Notes:           in.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		return nil, apperr.Upstream("insert appointment", err)
	}

	s.recorder.Record(ctx, "appointment", created.ID, EventAppointmentScheduled, map[string]any{
		"patient_id": created.PatientID.String(),
		"doctor_id":  created.DoctorID.String(),
		"slot_start": created.SlotStart,
	})
	return s.localize(created), nil
}

// Reschedule applies patch. The conflict check only runs when the doctor or
// slot changes, and always excludes the appointment itself.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, patch Patch) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointment.Reschedule", trace.WithAttributes(
		attribute.String("clinic.appointment_id", id.String()),
	))
	defer span.End()

	appt, err := s.reschedule(ctx, id, patch)
	s.metrics.ObserveBooking("reschedule", outcome(err))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return appt, nil
}

func (s *Service) reschedule(ctx context.Context, id uuid.UUID, patch Patch) (*Appointment, error) {
	current, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, apperr.Upstream("load appointment", err)
	}
	if current.Status.Terminal() {
		return nil, fmt.Errorf("reschedule %s appointment: %w", current.Status, apperr.ErrInvalidState)
	}

	next := *current
	if patch.AppointmentType != nil {
		next.AppointmentType = *patch.AppointmentType
	}
	if patch.Notes != nil {
		next.Notes = *patch.Notes
	}

	if patch.movesSlot() {
		if patch.DoctorID != nil {
			if *patch.DoctorID == uuid.Nil {
				return nil, apperr.Validation("doctor_id", "must not be empty")
			}
			next.DoctorID = *patch.DoctorID
		}
		if patch.SlotStart != nil {
			slot, err := NormalizeSlot(patch.SlotStart.In(s.loc))
			if err != nil {
				return nil, err
			}
			next.SlotStart = slot
		}

		moved := next.DoctorID != current.DoctorID || !next.SlotStart.Equal(current.SlotStart)
		if next.DoctorID != current.DoctorID {
			if _, err := s.resolver.activeDoctor(ctx, next.DoctorID); err != nil {
				return nil, err
			}
		}
		if moved {
			if err := s.checkBookable(ctx, next.DoctorID, next.SlotStart); err != nil {
				return nil, err
			}
		}

		conflict, err := s.guard.HasConflict(ctx, next.DoctorID, next.SlotStart, &id)
		if err != nil {
			return nil, err
		}
		if conflict {
			return nil, ErrSlotTaken
		}
	}

	next.UpdatedAt = s.clock.Now().UTC()
	updated, err := s.repo.UpdateAppointment(ctx, next)
	if err != nil {
		return nil, apperr.Upstream("update appointment", err)
	}

	s.recorder.Record(ctx, "appointment", updated.ID, EventAppointmentRescheduled, map[string]any{
		"from_doctor_id":  current.DoctorID.String(),
		"from_slot_start": current.SlotStart,
		"doctor_id":       updated.DoctorID.String(),
		"slot_start":      updated.SlotStart,
	})
	return s.localize(updated), nil
}

// Cancel frees the slot. Cancelling a cancelled appointment is a no-op.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.cancel(ctx, id)
	s.metrics.ObserveBooking("cancel", outcome(err))
	return appt, err
}

func (s *Service) cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	current, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, apperr.Upstream("load appointment", err)
	}
	if current.Status == StatusCancelled {
		return s.localize(current), nil
	}
	if !ValidTransition(current.Status, StatusCancelled) {
		return nil, fmt.Errorf("cancel %s appointment: %w", current.Status, apperr.ErrInvalidState)
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, id, current.Status, StatusCancelled, s.clock.Now().UTC())
	if errors.Is(err, ErrAppointmentNotFound) {
		reloaded, rerr := s.repo.GetAppointmentByID(ctx, id)
		if rerr == nil && reloaded.Status == StatusCancelled {
			return s.localize(reloaded), nil
		}
		return nil, s.racedTransition(ctx, id)
	}
	if err != nil {
		return nil, apperr.Upstream("cancel appointment", err)
	}

	s.recorder.Record(ctx, "appointment", id, EventAppointmentCancelled, map[string]any{
		"from": string(current.Status),
	})
	return s.localize(updated), nil
}

// Transition moves an appointment one step forward. Cancelled targets go
// through Cancel so they stay idempotent.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, target AppointmentStatus) (*Appointment, error) {
	if _, ok := ParseStatus(string(target)); !ok {
		return nil, apperr.Validation("status", fmt.Sprintf("unknown status %q", target))
	}
	if target == StatusCancelled {
		return s.Cancel(ctx, id)
	}

	current, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, apperr.Upstream("load appointment", err)
	}
	if !ValidTransition(current.Status, target) {
		return nil, fmt.Errorf("%s -> %s: %w", current.Status, target, apperr.ErrInvalidState)
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, id, current.Status, target, s.clock.Now().UTC())
	if errors.Is(err, ErrAppointmentNotFound) {
		return nil, s.racedTransition(ctx, id)
	}
	if err != nil {
		return nil, apperr.Upstream("update appointment status", err)
	}

	s.recorder.Record(ctx, "appointment", id, EventAppointmentStatus, map[string]any{
		"from": string(current.Status),
		"to":   string(target),
	})
	return s.localize(updated), nil
}

// racedTransition explains a conditional update that matched no row.
func (s *Service) racedTransition(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.GetAppointmentByID(ctx, id); err != nil {
		return apperr.Upstream("reload appointment", err)
	}
	s.logger.Warn().Str("appointment_id", id.String()).Msg("conditional status update lost a race")
	return fmt.Errorf("appointment changed concurrently: %w", apperr.ErrInvalidState)
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, apperr.Upstream("get appointment", err)
	}
	return s.localize(appt), nil
}

// ListAppointmentsByPatient retrieves appointments for a specific patient
func (s *Service) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	if limit <= 0 {
		limit = 20 // default
	}
	if limit > 100 {
		limit = 100 // max
	}
	if offset < 0 {
		offset = 0
	}

	appointments, err := s.repo.ListAppointmentsByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, apperr.Upstream("list appointments by patient", err)
	}
	for i := range appointments {
		appointments[i].SlotStart = appointments[i].SlotStart.In(s.loc)
	}
	return appointments, nil
}

func (s *Service) ListDoctors(ctx context.Context) ([]Doctor, error) {
	doctors, err := s.repo.ListActiveDoctors(ctx)
	if err != nil {
		return nil, apperr.Upstream("list doctors", err)
	}
	return doctors, nil
}

func (s *Service) AvailableSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]time.Time, error) {
	return s.resolver.AvailableSlots(ctx, doctorID, date)
}

func (s *Service) AvailableSlotsAllDoctors(ctx context.Context, date time.Time) ([]DoctorSlots, error) {
	return s.resolver.AvailableSlotsAllDoctors(ctx, date)
}

func (s *Service) CreateBlock(ctx context.Context, in BlockInput) (*Block, error) {
	if in.DoctorID == uuid.Nil {
		return nil, apperr.Validation("doctor_id", "is required")
	}
	if err := validateBlock(in); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetDoctorByID(ctx, in.DoctorID); err != nil {
		return nil, apperr.Upstream("load doctor", err)
	}

	b := Block{
		ID:        uuid.New(),
		DoctorID:  in.DoctorID,
		Date:      calendar.StartOfDay(in.Date, s.loc),
		Kind:      in.Kind,
		Reason:    in.Reason,
		CreatedAt: s.clock.Now().UTC(),
	}
	if in.Kind == BlockTimeSlot {
		b.Start, b.End = in.Start, in.End
	}

	created, err := s.blocks.InsertBlock(ctx, b)
	if err != nil {
		return nil, apperr.Upstream("insert unavailability block", err)
	}

	s.recorder.Record(ctx, "doctor_unavailability", created.ID, EventUnavailabilityCreated, map[string]any{
		"doctor_id": created.DoctorID.String(),
		"date":      created.Date.Format(time.DateOnly),
		"kind":      string(created.Kind),
	})
	return created, nil
}

func (s *Service) DeleteBlock(ctx context.Context, id uuid.UUID) error {
	if err := s.blocks.DeleteBlock(ctx, id); err != nil {
		return apperr.Upstream("delete unavailability block", err)
	}
	s.recorder.Record(ctx, "doctor_unavailability", id, EventUnavailabilityDeleted, nil)
	return nil
}

func (s *Service) ListBlocks(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Block, error) {
	blocks, err := s.blocks.FindUnavailabilityBlocks(ctx, doctorID, calendar.StartOfDay(date, s.loc))
	if err != nil {
		return nil, apperr.Upstream("list unavailability blocks", err)
	}
	return blocks, nil
}

func (s *Service) checkBookable(ctx context.Context, doctorID uuid.UUID, slot time.Time) error {
	if !s.enforceHours {
		return nil
	}
	ok, err := s.resolver.Bookable(ctx, doctorID, slot)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Validation("slot_start", "outside opening hours or blocked for this doctor")
	}
	return nil
}

func (s *Service) localize(a *Appointment) *Appointment {
	a.SlotStart = a.SlotStart.In(s.loc)
	return a
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperr.ErrConflict):
		return "conflict"
	case errors.Is(err, apperr.ErrValidation):
		return "invalid"
	case errors.Is(err, apperr.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperr.ErrInvalidState):
		return "invalid_state"
	}
	return "error"
}
