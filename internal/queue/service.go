package queue

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
	"github.com/kazemman/InvoTechClinic-WhatsApp-sub000/internal/appointment"
	"github.com/kazemman/InvoTechClinic-WhatsApp-sub000/internal/audit"
	"github.com/kazemman/InvoTechClinic-WhatsApp-sub000/internal/clock"
	"github.com/kazemman/InvoTechClinic-WhatsApp-sub000/internal/metrics"
	"github.com/kazemman/InvoTechClinic-WhatsApp-sub000/internal/notify"
)

const (
	EventPatientCheckedIn      = "PATIENT_CHECKED_IN"
	EventQueueEntryCreated     = "QUEUE_ENTRY_CREATED"
	EventQueueEntryAdvanced    = "QUEUE_ENTRY_ADVANCED"
	EventQueueEntryRemoved     = "QUEUE_ENTRY_REMOVED"
	EventConsultationCompleted = "QUEUE_CONSULTATION_COMPLETED"

	DefaultAvgConsult = 15 * time.Minute
)

var tracer = otel.Tracer("clinic.internal.queue")

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

// WithAvgConsult sets the per-patient duration used for estimated waits.
func WithAvgConsult(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.avgConsult = d
		}
	}
}

// Service owns the waiting line. Every successful enqueue, advance and removal
// publishes exactly one queue_update event.
type Service struct {
	repo       Repository
	directory  Directory
	publisher  notify.Publisher
	avgConsult time.Duration

	clock    clock.Clock
	recorder *audit.Recorder
	metrics  *metrics.SchedulingMetrics
	logger   zerolog.Logger
}

func NewService(repo Repository, directory Directory, publisher notify.Publisher, opts ...Option) *Service {
	s := &Service{
		repo:       repo,
		directory:  directory,
		publisher:  publisher,
		avgConsult: DefaultAvgConsult,
		clock:      clock.Real(),
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enqueue adds a waiting entry for an existing check-in.
func (s *Service) Enqueue(ctx context.Context, in EnqueueInput) (*Entry, error) {
	if err := validateIDs(in.PatientID, in.DoctorID); err != nil {
		return nil, err
	}
	if in.CheckInID == uuid.Nil {
		return nil, apperr.Validation("check_in_id", "is required")
	}
	if !in.Priority.Valid() {
		return nil, apperr.Validation("priority", "must be 0 (normal), 1 (high) or 2 (urgent)")
	}
	if err := s.requireDoctor(ctx, in.DoctorID); err != nil {
		return nil, err
	}

	entry, err := s.enqueue(ctx, in)
	if err != nil {
		return nil, err
	}
	s.changed(ctx, "enqueue")
	return entry, nil
}

func (s *Service) enqueue(ctx context.Context, in EnqueueInput) (*Entry, error) {
	created, err := s.repo.InsertQueueEntry(ctx, s.newEntry(in))
	if err != nil {
		return nil, apperr.Upstream("insert queue entry", err)
	}
	s.recordEntryCreated(ctx, created)
	return created, nil
}

func (s *Service) newEntry(in EnqueueInput) Entry {
	return Entry{
		ID:        uuid.New(),
		PatientID: in.PatientID,
		CheckInID: in.CheckInID,
		DoctorID:  in.DoctorID,
		Status:    StatusWaiting,
		Priority:  in.Priority,
		EnteredAt: s.clock.Now().UTC(),
	}
}

func (s *Service) recordEntryCreated(ctx context.Context, e *Entry) {
	s.recorder.Record(ctx, "queue_entry", e.ID, EventQueueEntryCreated, map[string]any{
		"patient_id":  e.PatientID.String(),
		"doctor_id":   e.DoctorID.String(),
		"check_in_id": e.CheckInID.String(),
		"priority":    int(e.Priority),
	})
}

// CheckIn records the patient's arrival and puts them in the doctor's queue.
// A referenced appointment must belong to the patient and still be scheduled
// or confirmed; its status is not changed here.
func (s *Service) CheckIn(ctx context.Context, in CheckInInput) (*CheckInResult, error) {
	if err := validateIDs(in.PatientID, in.DoctorID); err != nil {
		return nil, err
	}
	if !in.Priority.Valid() {
		return nil, apperr.Validation("priority", "must be 0 (normal), 1 (high) or 2 (urgent)")
	}
	if err := s.requireDoctor(ctx, in.DoctorID); err != nil {
		return nil, err
	}

	if in.AppointmentID != nil {
		appt, err := s.directory.GetAppointmentByID(ctx, *in.AppointmentID)
		if err != nil {
			return nil, apperr.Upstream("load appointment", err)
		}
		if appt.PatientID != in.PatientID {
			return nil, apperr.Validation("appointment_id", "belongs to a different patient")
		}
		if appt.Status != appointment.StatusScheduled && appt.Status != appointment.StatusConfirmed {
			return nil, fmt.Errorf("check in against %s appointment: %w", appt.Status, apperr.ErrInvalidState)
		}
	}

	checkIn, entry, err := s.repo.InsertCheckInWithEntry(ctx, CheckIn{
		ID:            uuid.New(),
		PatientID:     in.PatientID,
		DoctorID:      in.DoctorID,
		AppointmentID: in.AppointmentID,
		CheckedInAt:   s.clock.Now().UTC(),
	}, s.newEntry(EnqueueInput{
		PatientID: in.PatientID,
		DoctorID:  in.DoctorID,
		Priority:  in.Priority,
	}))
	if err != nil {
		return nil, apperr.Upstream("insert check-in", err)
	}
	s.recorder.Record(ctx, "checkin", checkIn.ID, EventPatientCheckedIn, map[string]any{
		"patient_id": checkIn.PatientID.String(),
		"doctor_id":  checkIn.DoctorID.String(),
	})
	s.recordEntryCreated(ctx, entry)

	s.changed(ctx, "enqueue")
	return &CheckInResult{CheckIn: *checkIn, Entry: *entry}, nil
}

// Advance moves an entry to target. Entering in_progress stamps StartedAt,
// entering completed stamps CompletedAt. Pausing back to waiting clears
// StartedAt so a waiting entry never carries one. Completed entries cannot
// move again.
func (s *Service) Advance(ctx context.Context, id uuid.UUID, target Status) (*Entry, error) {
	ctx, span := tracer.Start(ctx, "queue.Advance", trace.WithAttributes(
		attribute.String("clinic.queue_entry_id", id.String()),
		attribute.String("clinic.queue_target", string(target)),
	))
	defer span.End()

	entry, err := s.advance(ctx, id, target)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.changed(ctx, "advance_"+string(target))
	return entry, nil
}

func (s *Service) advance(ctx context.Context, id uuid.UUID, target Status) (*Entry, error) {
	if _, ok := ParseStatus(string(target)); !ok {
		return nil, apperr.Validation("status", fmt.Sprintf("unknown queue status %q", target))
	}

	current, err := s.repo.GetQueueEntry(ctx, id)
	if err != nil {
		return nil, apperr.Upstream("load queue entry", err)
	}
	if !ValidTransition(current.Status, target) {
		return nil, fmt.Errorf("%s -> %s: %w", current.Status, target, apperr.ErrInvalidState)
	}

	now := s.clock.Now().UTC()
	next := *current
	next.Status = target
	switch target {
	case StatusInProgress:
		next.StartedAt = &now
	case StatusCompleted:
		next.CompletedAt = &now
	case StatusWaiting:
		next.StartedAt = nil
	}

	updated, err := s.repo.UpdateQueueEntry(ctx, next, current.Status)
	if errors.Is(err, ErrEntryNotFound) {
		if _, rerr := s.repo.GetQueueEntry(ctx, id); rerr != nil {
			return nil, apperr.Upstream("reload queue entry", rerr)
		}
		return nil, fmt.Errorf("queue entry changed concurrently: %w", apperr.ErrInvalidState)
	}
	if err != nil {
		return nil, apperr.Upstream("update queue entry", err)
	}

	s.recorder.Record(ctx, "queue_entry", id, EventQueueEntryAdvanced, map[string]any{
		"from": string(current.Status),
		"to":   string(target),
	})
	return updated, nil
}

// Remove hard-deletes an entry regardless of its status.
func (s *Service) Remove(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteQueueEntry(ctx, id); err != nil {
		return apperr.Upstream("delete queue entry", err)
	}
	s.recorder.Record(ctx, "queue_entry", id, EventQueueEntryRemoved, nil)
	s.changed(ctx, "remove")
	return nil
}

// CompleteConsultation retires the entry a finished consultation used.
func (s *Service) CompleteConsultation(ctx context.Context, id uuid.UUID) error {
	entry, err := s.repo.GetQueueEntry(ctx, id)
	if err != nil {
		return apperr.Upstream("load queue entry", err)
	}
	if err := s.repo.DeleteQueueEntry(ctx, id); err != nil {
		return apperr.Upstream("delete queue entry", err)
	}

	s.recorder.Record(ctx, "queue_entry", id, EventConsultationCompleted, map[string]any{
		"patient_id": entry.PatientID.String(),
		"status":     string(entry.Status),
	})
	s.changed(ctx, "consultation_complete")
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*View, error) {
	entry, err := s.repo.GetQueueEntry(ctx, id)
	if err != nil {
		return nil, apperr.Upstream("get queue entry", err)
	}
	v := s.view(*entry, 0, 0)
	return &v, nil
}

// ActiveQueue returns waiting and in_progress entries in FIFO order, with
// wait figures computed against the current clock.
func (s *Service) ActiveQueue(ctx context.Context, doctorID *uuid.UUID) ([]View, error) {
	entries, err := s.repo.ListActiveQueue(ctx, doctorID)
	if err != nil {
		return nil, apperr.Upstream("list active queue", err)
	}

	ahead := make(map[uuid.UUID]int)
	views := make([]View, 0, len(entries))
	for _, e := range entries {
		n := ahead[e.DoctorID]
		views = append(views, s.view(e, n+1, n))
		ahead[e.DoctorID] = n + 1
	}
	return views, nil
}

func (s *Service) view(e Entry, position, entriesAhead int) View {
	v := View{Entry: e, Position: position}

	switch {
	case e.StartedAt != nil:
		actual := wholeMinutes(e.StartedAt.Sub(e.EnteredAt))
		v.WaitMinutes = actual
		v.ActualWaitMinutes = &actual
	case e.CompletedAt != nil:
		actual := wholeMinutes(e.CompletedAt.Sub(e.EnteredAt))
		v.WaitMinutes = actual
		v.ActualWaitMinutes = &actual
	default:
		v.WaitMinutes = wholeMinutes(s.clock.Now().Sub(e.EnteredAt))
		v.EstimatedWaitMinutes = wholeMinutes(time.Duration(entriesAhead) * s.avgConsult)
	}
	return v
}

func wholeMinutes(d time.Duration) int {
	if d < 0 {
		return 0
	}
	return int(d / time.Minute)
}

func (s *Service) requireDoctor(ctx context.Context, id uuid.UUID) error {
	d, err := s.directory.GetDoctorByID(ctx, id)
	if err != nil {
		return apperr.Upstream("load doctor", err)
	}
	if !d.Active {
		return appointment.ErrDoctorNotFound
	}
	return nil
}

// changed publishes the queue_update. A failed publish is logged; the
// mutation has already been stored.
func (s *Service) changed(ctx context.Context, kind string) {
	s.metrics.ObserveQueue(kind)
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, notify.QueueUpdate(s.clock.Now())); err != nil {
		s.logger.Warn().Err(err).Str("change", kind).Msg("failed to publish queue update")
	}
}

func validateIDs(patientID, doctorID uuid.UUID) error {
	if patientID == uuid.Nil {
		return apperr.Validation("patient_id", "is required")
	}
	if doctorID == uuid.Nil {
		return apperr.Validation("doctor_id", "is required")
	}
	return nil
}
