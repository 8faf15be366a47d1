package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazemman/InvoTechClinic-WhatsApp-sub000/internal/apperr"
)

func clockTimes(slots []time.Time) []string {
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = s.Format("15:04")
	}
	return out
}

func TestAvailableSlotsSaturday(t *testing.T) {
	svc, _, doc := newTestService(t)

	slots, err := svc.AvailableSlots(context.Background(), doc.ID, at(2025, time.June, 21, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"08:00", "08:30", "09:00", "09:30", "10:00",
		"10:30", "11:00", "11:30", "12:00", "12:30",
	}, clockTimes(slots))
}

func TestAvailableSlotsWeekday(t *testing.T) {
	svc, _, doc := newTestService(t)

	slots, err := svc.AvailableSlots(context.Background(), doc.ID, at(2025, time.June, 17, 14, 45))
	require.NoError(t, err)
	require.Len(t, slots, 18)
	assert.Equal(t, "08:00", slots[0].Format("15:04"))
	assert.Equal(t, "16:30", slots[len(slots)-1].Format("15:04"))
}

func TestAvailableSlotsClosedDays(t *testing.T) {
	svc, _, doc := newTestService(t)

	closed := []time.Time{
		at(2025, time.June, 22, 0, 0),     // Sunday
		at(2025, time.April, 18, 0, 0),    // Good Friday
		at(2025, time.April, 21, 0, 0),    // Family Day
		at(2025, time.June, 16, 0, 0),     // Youth Day
		at(2025, time.December, 25, 0, 0), // Christmas
	}
	for _, date := range closed {
		slots, err := svc.AvailableSlots(context.Background(), doc.ID, date)
		require.NoError(t, err)
		assert.Empty(t, slots, date.Format(time.DateOnly))
	}

	// closed days answer before the doctor is looked up
	slots, err := svc.AvailableSlots(context.Background(), uuid.New(), at(2025, time.June, 22, 0, 0))
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestAvailableSlotsFullDayBlock(t *testing.T) {
	svc, _, doc := newTestService(t)
	ctx := context.Background()
	date := at(2025, time.June, 18, 0, 0)

	_, err := svc.CreateBlock(ctx, BlockInput{DoctorID: doc.ID, Date: date, Kind: BlockFullDay, Reason: "conference"})
	require.NoError(t, err)

	slots, err := svc.AvailableSlots(ctx, doc.ID, date)
	require.NoError(t, err)
	assert.Empty(t, slots)

	next, err := svc.AvailableSlots(ctx, doc.ID, at(2025, time.June, 19, 0, 0))
	require.NoError(t, err)
	assert.Len(t, next, 18)
}

func TestAvailableSlotsTimeSlotBlocksAndBookings(t *testing.T) {
	svc, _, doc := newTestService(t)
	ctx := context.Background()
	date := at(2025, time.June, 21, 0, 0)

	_, err := svc.CreateBlock(ctx, BlockInput{DoctorID: doc.ID, Date: date, Kind: BlockTimeSlot, Start: 10 * time.Hour, End: 11 * time.Hour})
	require.NoError(t, err)
	// overlapping block is redundant, not an error
	_, err = svc.CreateBlock(ctx, BlockInput{DoctorID: doc.ID, Date: date, Kind: BlockTimeSlot, Start: 10*time.Hour + 30*time.Minute, End: 11 * time.Hour})
	require.NoError(t, err)

	booked := scheduleAt(t, svc, doc.ID, at(2025, time.June, 21, 8, 30))
	cancelled := scheduleAt(t, svc, doc.ID, at(2025, time.June, 21, 12, 0))
	_, err = svc.Cancel(ctx, cancelled.ID)
	require.NoError(t, err)

	slots, err := svc.AvailableSlots(ctx, doc.ID, date)
	require.NoError(t, err)
	assert.Equal(t, []string{"08:00", "09:00", "09:30", "11:00", "11:30", "12:00", "12:30"}, clockTimes(slots))
	assert.NotContains(t, clockTimes(slots), booked.SlotStart.Format("15:04"))
}

func TestAvailableSlotsUnknownDoctor(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.AvailableSlots(context.Background(), uuid.New(), at(2025, time.June, 17, 0, 0))
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestAvailableSlotsAllDoctors(t *testing.T) {
	svc, repo, doc := newTestService(t)
	ctx := context.Background()
	other := repo.AddDoctor(Doctor{Name: "Dr Mokoena", Active: true})
	repo.AddDoctor(Doctor{Name: "Dr Retired", Active: false})

	scheduleAt(t, svc, other.ID, at(2025, time.June, 21, 9, 0))

	all, err := svc.AvailableSlotsAllDoctors(ctx, at(2025, time.June, 21, 0, 0))
	require.NoError(t, err)
	require.Len(t, all, 2)

	byDoctor := map[uuid.UUID]int{}
	for _, ds := range all {
		byDoctor[ds.DoctorID] = len(ds.Slots)
	}
	assert.Equal(t, 10, byDoctor[doc.ID])
	assert.Equal(t, 9, byDoctor[other.ID])

	sunday, err := svc.AvailableSlotsAllDoctors(ctx, at(2025, time.June, 22, 0, 0))
	require.NoError(t, err)
	require.Len(t, sunday, 2)
	for _, ds := range sunday {
		assert.Empty(t, ds.Slots)
	}
}
