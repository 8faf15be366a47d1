package appointment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazemman/InvoTechClinic-WhatsApp-sub000/internal/apperr"
	"github.com/kazemman/InvoTechClinic-WhatsApp-sub000/internal/audit"
	"github.com/kazemman/InvoTechClinic-WhatsApp-sub000/internal/clock"
)

var sast = time.FixedZone("SAST", 2*60*60)

func at(y int, m time.Month, d, h, min int) time.Time {
	return time.Date(y, m, d, h, min, 0, 0, sast)
}

func newTestService(t *testing.T, opts ...Option) (*Service, *MemoryRepository, Doctor) {
	t.Helper()

	repo := NewMemoryRepository()
	doc := repo.AddDoctor(Doctor{Name: "Dr Naidoo", Active: true})
	clk := clock.NewManual(at(2025, time.June, 16, 7, 0))

	svc := NewService(repo, repo, sast, append([]Option{WithClock(clk)}, opts...)...)
	return svc, repo, doc
}

func scheduleAt(t *testing.T, svc *Service, doctorID uuid.UUID, slot time.Time) *Appointment {
	t.Helper()
	appt, err := svc.Schedule(context.Background(), ScheduleInput{
		PatientID:       uuid.New(),
		DoctorID:        doctorID,
		SlotStart:       slot,
		AppointmentType: "consultation",
	})
	require.NoError(t, err)
	return appt
}

func TestScheduleRejectsOffGridMinutes(t *testing.T) {
	svc, _, doc := newTestService(t)

	for minute := 0; minute < 60; minute++ {
		if minute == 0 || minute == 30 {
			continue
		}
		_, err := svc.Schedule(context.Background(), ScheduleInput{
			PatientID: uuid.New(),
			DoctorID:  doc.ID,
			SlotStart: at(2025, time.June, 17, 9, minute),
		})
		require.ErrorIs(t, err, apperr.ErrValidation, "minute %d", minute)
		assert.Equal(t, "slot_start", apperr.FieldOf(err))
	}
}

func TestScheduleNormalizesSeconds(t *testing.T) {
	svc, _, doc := newTestService(t)

	raw := time.Date(2025, time.June, 17, 8, 30, 45, 123456789, sast)
	appt := scheduleAt(t, svc, doc.ID, raw)

	assert.True(t, appt.SlotStart.Equal(at(2025, time.June, 17, 8, 30)))
	assert.Equal(t, StatusScheduled, appt.Status)
	assert.Equal(t, 0, appt.SlotStart.Second())
	assert.Equal(t, 0, appt.SlotStart.Nanosecond())
}

func TestScheduleSameSlotConflicts(t *testing.T) {
	svc, _, doc := newTestService(t)
	slot := at(2025, time.June, 17, 8, 30)
	scheduleAt(t, svc, doc.ID, slot)

	_, err := svc.Schedule(context.Background(), ScheduleInput{PatientID: uuid.New(), DoctorID: doc.ID, SlotStart: slot})
	require.ErrorIs(t, err, ErrSlotTaken)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	// neighbouring slots are independent
	scheduleAt(t, svc, doc.ID, at(2025, time.June, 17, 8, 0))
	scheduleAt(t, svc, doc.ID, at(2025, time.June, 17, 9, 0))
}

func TestScheduleSameSlotOtherDoctorAllowed(t *testing.T) {
	svc, repo, doc := newTestService(t)
	other := repo.AddDoctor(Doctor{Name: "Dr Mokoena", Active: true})
	slot := at(2025, time.June, 17, 10, 0)

	scheduleAt(t, svc, doc.ID, slot)
	scheduleAt(t, svc, other.ID, slot)
}

func TestConcurrentScheduleExactlyOneWins(t *testing.T) {
	svc, _, doc := newTestService(t)
	slot := at(2025, time.June, 17, 11, 0)

	const n = 25
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
		other     []error
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.Schedule(context.Background(), ScheduleInput{PatientID: uuid.New(), DoctorID: doc.ID, SlotStart: slot})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, apperr.ErrConflict):
				conflicts++
			default:
				other = append(other, err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Empty(t, other)
	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, conflicts)
}

func TestScheduleValidatesIdentifiers(t *testing.T) {
	svc, _, doc := newTestService(t)
	slot := at(2025, time.June, 17, 8, 0)

	_, err := svc.Schedule(context.Background(), ScheduleInput{DoctorID: doc.ID, SlotStart: slot})
	require.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, "patient_id", apperr.FieldOf(err))

	_, err = svc.Schedule(context.Background(), ScheduleInput{PatientID: uuid.New(), DoctorID: uuid.New(), SlotStart: slot})
	assert.ErrorIs(t, err, ErrDoctorNotFound)
}

func TestScheduleInactiveDoctorNotFound(t *testing.T) {
	svc, repo, _ := newTestService(t)
	retired := repo.AddDoctor(Doctor{Name: "Dr Retired", Active: false})

	_, err := svc.Schedule(context.Background(), ScheduleInput{PatientID: uuid.New(), DoctorID: retired.ID, SlotStart: at(2025, time.June, 17, 8, 0)})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestScheduleHonoursOpeningHours(t *testing.T) {
	svc, _, doc := newTestService(t)

	cases := map[string]time.Time{
		"sunday":        at(2025, time.June, 22, 9, 0),
		"good friday":   at(2025, time.April, 18, 9, 0),
		"after closing": at(2025, time.June, 17, 17, 0),
		"saturday noon": at(2025, time.June, 21, 13, 0),
		"before open":   at(2025, time.June, 17, 7, 30),
	}
	for name, slot := range cases {
		_, err := svc.Schedule(context.Background(), ScheduleInput{PatientID: uuid.New(), DoctorID: doc.ID, SlotStart: slot})
		require.ErrorIs(t, err, apperr.ErrValidation, name)
		assert.Equal(t, "slot_start", apperr.FieldOf(err), name)
	}

	scheduleAt(t, svc, doc.ID, at(2025, time.June, 21, 12, 30))
	scheduleAt(t, svc, doc.ID, at(2025, time.June, 17, 16, 30))
}

func TestScheduleWithoutOpeningHoursEnforcement(t *testing.T) {
	svc, _, doc := newTestService(t, WithOpeningHours(false))
	appt := scheduleAt(t, svc, doc.ID, at(2025, time.June, 22, 9, 0))
	assert.Equal(t, time.Sunday, appt.SlotStart.Weekday())
}

func TestScheduleRejectsBlockedSlot(t *testing.T) {
	svc, _, doc := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateBlock(ctx, BlockInput{
		DoctorID: doc.ID,
		Date:     at(2025, time.June, 17, 0, 0),
		Kind:     BlockTimeSlot,
		Start:    10 * time.Hour,
		End:      11 * time.Hour,
		Reason:   "ward round",
	})
	require.NoError(t, err)

	_, err = svc.Schedule(ctx, ScheduleInput{PatientID: uuid.New(), DoctorID: doc.ID, SlotStart: at(2025, time.June, 17, 10, 30)})
	require.ErrorIs(t, err, apperr.ErrValidation)

	scheduleAt(t, svc, doc.ID, at(2025, time.June, 17, 11, 0))
}

func TestRescheduleToOwnSlotSucceeds(t *testing.T) {
	svc, _, doc := newTestService(t)
	appt := scheduleAt(t, svc, doc.ID, at(2025, time.June, 17, 9, 0))

	same := appt.SlotStart
	docID := appt.DoctorID
	updated, err := svc.Reschedule(context.Background(), appt.ID, Patch{DoctorID: &docID, SlotStart: &same})
	require.NoError(t, err)
	assert.True(t, updated.SlotStart.Equal(same))
}

func TestRescheduleMovesSlot(t *testing.T) {
	svc, _, doc := newTestService(t)
	ctx := context.Background()
	appt := scheduleAt(t, svc, doc.ID, at(2025, time.June, 17, 9, 0))

	target := at(2025, time.June, 17, 14, 30)
	updated, err := svc.Reschedule(ctx, appt.ID, Patch{SlotStart: &target})
	require.NoError(t, err)
	assert.True(t, updated.SlotStart.Equal(target))

	// the old slot is free again
	scheduleAt(t, svc, doc.ID, at(2025, time.June, 17, 9, 0))
}

func TestRescheduleIntoTakenSlotConflicts(t *testing.T) {
	svc, _, doc := newTestService(t)
	first := scheduleAt(t, svc, doc.ID, at(2025, time.June, 17, 9, 0))
	second := scheduleAt(t, svc, doc.ID, at(2025, time.June, 17, 9, 30))

	target := first.SlotStart
	_, err := svc.Reschedule(context.Background(), second.ID, Patch{SlotStart: &target})
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestRescheduleNotesOnly(t *testing.T) {
	svc, _, doc := newTestService(t)
	appt := scheduleAt(t, svc, doc.ID, at(2025, time.June, 17, 9, 0))

	notes := "bring referral letter"
	updated, err := svc.Reschedule(context.Background(), appt.ID, Patch{Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, notes, updated.Notes)
	assert.True(t, updated.SlotStart.Equal(appt.SlotStart))
}

// cancelDuringUpdate cancels the row just before the field update lands, as
// a concurrent Cancel between Reschedule's read and write would.
type cancelDuringUpdate struct {
	*MemoryRepository
}

func (r cancelDuringUpdate) UpdateAppointment(ctx context.Context, a Appointment) (*Appointment, error) {
	if _, err := r.UpdateAppointmentStatus(ctx, a.ID, StatusScheduled, StatusCancelled, a.UpdatedAt); err != nil {
		return nil, err
	}
	return r.MemoryRepository.UpdateAppointment(ctx, a)
}

func TestRescheduleKeepsConcurrentCancel(t *testing.T) {
	repo := NewMemoryRepository()
	doc := repo.AddDoctor(Doctor{Name: "Dr Naidoo", Active: true})
	clk := clock.NewManual(at(2025, time.June, 16, 7, 0))
	racing := cancelDuringUpdate{repo}
	svc := NewService(racing, repo, sast, WithClock(clk))
	ctx := context.Background()

	appt := scheduleAt(t, svc, doc.ID, at(2025, time.June, 17, 9, 0))

	notes := "x"
	_, err := svc.Reschedule(ctx, appt.ID, Patch{Notes: &notes})
	require.NoError(t, err)

	got, err := repo.GetAppointmentByID(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.Equal(t, "x", got.Notes)

	// The slot stays free for a new booking.
	scheduleAt(t, svc, doc.ID, at(2025, time.June, 17, 9, 0))
}

func TestRescheduleRejectsTerminalAndMissing(t *testing.T) {
	svc, _, doc := newTestService(t)
	ctx := context.Background()
	appt := scheduleAt(t, svc, doc.ID, at(2025, time.June, 17, 9, 0))
	_, err := svc.Cancel(ctx, appt.ID)
	require.NoError(t, err)

	target := at(2025, time.June, 17, 10, 0)
	_, err = svc.Reschedule(ctx, appt.ID, Patch{SlotStart: &target})
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	_, err = svc.Reschedule(ctx, uuid.New(), Patch{SlotStart: &target})
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestCancelThenRebookSameSlot(t *testing.T) {
	svc, _, doc := newTestService(t)
	slot := at(2025, time.June, 17, 15, 0)
	appt := scheduleAt(t, svc, doc.ID, slot)

	cancelled, err := svc.Cancel(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)

	rebooked := scheduleAt(t, svc, doc.ID, slot)
	assert.NotEqual(t, appt.ID, rebooked.ID)
}

func TestCancelIsIdempotent(t *testing.T) {
	svc, _, doc := newTestService(t)
	appt := scheduleAt(t, svc, doc.ID, at(2025, time.June, 17, 15, 0))

	_, err := svc.Cancel(context.Background(), appt.ID)
	require.NoError(t, err)
	again, err := svc.Cancel(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, again.Status)
}

func TestTransitionsMoveForwardOnly(t *testing.T) {
	svc, _, doc := newTestService(t)
	ctx := context.Background()
	appt := scheduleAt(t, svc, doc.ID, at(2025, time.June, 17, 8, 0))

	_, err := svc.Transition(ctx, appt.ID, StatusInProgress)
	require.ErrorIs(t, err, apperr.ErrInvalidState)

	for _, next := range []AppointmentStatus{StatusConfirmed, StatusInProgress, StatusCompleted} {
		updated, err := svc.Transition(ctx, appt.ID, next)
		require.NoError(t, err)
		assert.Equal(t, next, updated.Status)
	}

	_, err = svc.Transition(ctx, appt.ID, StatusInProgress)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
	_, err = svc.Cancel(ctx, appt.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	_, err = svc.Transition(ctx, appt.ID, AppointmentStatus("archived"))
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestTransitionToCancelledFromConfirmed(t *testing.T) {
	svc, _, doc := newTestService(t)
	ctx := context.Background()
	appt := scheduleAt(t, svc, doc.ID, at(2025, time.June, 17, 8, 0))

	_, err := svc.Transition(ctx, appt.ID, StatusConfirmed)
	require.NoError(t, err)
	updated, err := svc.Transition(ctx, appt.ID, StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, updated.Status)
}

func TestServiceRecordsAuditEvents(t *testing.T) {
	sink := audit.NewMemorySink()
	stamp := clock.NewManual(at(2025, time.June, 16, 7, 0))
	svc, _, doc := newTestService(t, WithRecorder(audit.NewRecorder(sink, zerolog.Nop(), stamp)))
	ctx := context.Background()

	appt := scheduleAt(t, svc, doc.ID, at(2025, time.June, 17, 8, 0))
	_, err := svc.Transition(ctx, appt.ID, StatusConfirmed)
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, appt.ID)
	require.NoError(t, err)

	events := sink.Events()
	require.Len(t, events, 3)
	assert.Equal(t, EventAppointmentScheduled, events[0].EventType)
	assert.Equal(t, EventAppointmentStatus, events[1].EventType)
	assert.Equal(t, EventAppointmentCancelled, events[2].EventType)
	assert.Equal(t, appt.ID, *events[2].EntityID)
	for _, ev := range events {
		assert.True(t, ev.CreatedAt.Equal(stamp.Now()))
	}
}

func TestListAppointmentsByPatient(t *testing.T) {
	svc, _, doc := newTestService(t)
	ctx := context.Background()
	patient := uuid.New()

	for _, h := range []int{8, 9, 10} {
		_, err := svc.Schedule(ctx, ScheduleInput{PatientID: patient, DoctorID: doc.ID, SlotStart: at(2025, time.June, 17, h, 0)})
		require.NoError(t, err)
	}
	scheduleAt(t, svc, doc.ID, at(2025, time.June, 17, 11, 0))

	list, err := svc.ListAppointmentsByPatient(ctx, patient, 2, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 10, list[0].SlotStart.Hour())
	assert.Equal(t, 9, list[1].SlotStart.Hour())

	rest, err := svc.ListAppointmentsByPatient(ctx, patient, 2, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, 8, rest[0].SlotStart.Hour())
}

func TestBlockLifecycle(t *testing.T) {
	svc, _, doc := newTestService(t)
	ctx := context.Background()
	date := at(2025, time.June, 17, 0, 0)

	_, err := svc.CreateBlock(ctx, BlockInput{DoctorID: doc.ID, Date: date, Kind: BlockTimeSlot, Start: 11 * time.Hour, End: 10 * time.Hour})
	require.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.CreateBlock(ctx, BlockInput{DoctorID: doc.ID, Date: date, Kind: BlockTimeSlot, Start: 10*time.Hour + 15*time.Minute, End: 11 * time.Hour})
	require.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.CreateBlock(ctx, BlockInput{DoctorID: doc.ID, Date: date, Kind: "half_day"})
	require.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, "kind", apperr.FieldOf(err))

	_, err = svc.CreateBlock(ctx, BlockInput{DoctorID: uuid.New(), Date: date, Kind: BlockFullDay})
	require.ErrorIs(t, err, ErrDoctorNotFound)

	b, err := svc.CreateBlock(ctx, BlockInput{DoctorID: doc.ID, Date: date, Kind: BlockFullDay, Reason: "leave"})
	require.NoError(t, err)

	blocks, err := svc.ListBlocks(ctx, doc.ID, date)
	require.NoError(t, err)
	require.Len(t, blocks, 1)

	require.NoError(t, svc.DeleteBlock(ctx, b.ID))
	assert.ErrorIs(t, svc.DeleteBlock(ctx, b.ID), apperr.ErrNotFound)
}
