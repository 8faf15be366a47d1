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

func TestNormalizeSlot(t *testing.T) {
	cases := []struct {
		in   time.Time
		want time.Time
		ok   bool
	}{
		{time.Date(2025, 6, 17, 9, 0, 0, 0, sast), at(2025, time.June, 17, 9, 0), true},
		{time.Date(2025, 6, 17, 9, 30, 59, 999, sast), at(2025, time.June, 17, 9, 30), true},
		{time.Date(2025, 6, 17, 9, 15, 0, 0, sast), time.Time{}, false},
		{time.Date(2025, 6, 17, 9, 59, 0, 0, sast), time.Time{}, false},
		{time.Time{}, time.Time{}, false},
	}

	for _, tt := range cases {
		got, err := NormalizeSlot(tt.in)
		if !tt.ok {
			assert.ErrorIs(t, err, apperr.ErrValidation, tt.in.String())
			continue
		}
		require.NoError(t, err)
		assert.True(t, got.Equal(tt.want), "NormalizeSlot(%s)=%s", tt.in, got)
	}
}

func TestHasConflict(t *testing.T) {
	repo := NewMemoryRepository()
	doc := repo.AddDoctor(Doctor{Name: "Dr Naidoo", Active: true})
	guard := NewConflictGuard(repo)
	ctx := context.Background()

	held, err := repo.InsertAppointment(ctx, Appointment{
		ID:        uuid.New(),
		PatientID: uuid.New(),
		DoctorID:  doc.ID,
		SlotStart: at(2025, time.June, 17, 9, 0),
		Status:    StatusConfirmed,
	})
	require.NoError(t, err)

	conflict, err := guard.HasConflict(ctx, doc.ID, time.Date(2025, 6, 17, 9, 0, 12, 0, sast), nil)
	require.NoError(t, err)
	assert.True(t, conflict)

	conflict, err = guard.HasConflict(ctx, doc.ID, held.SlotStart, &held.ID)
	require.NoError(t, err)
	assert.False(t, conflict, "an appointment never conflicts with itself")

	for _, adjacent := range []time.Time{at(2025, time.June, 17, 8, 30), at(2025, time.June, 17, 9, 30)} {
		conflict, err = guard.HasConflict(ctx, doc.ID, adjacent, nil)
		require.NoError(t, err)
		assert.False(t, conflict)
	}

	conflict, err = guard.HasConflict(ctx, uuid.New(), held.SlotStart, nil)
	require.NoError(t, err)
	assert.False(t, conflict)

	_, err = guard.HasConflict(ctx, doc.ID, at(2025, time.June, 17, 9, 10), nil)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestBlockCovers(t *testing.T) {
	date := time.Date(2025, 6, 17, 0, 0, 0, 0, time.UTC)
	slotBlock := Block{Date: date, Kind: BlockTimeSlot, Start: 10 * time.Hour, End: 11 * time.Hour}
	dayBlock := Block{Date: date, Kind: BlockFullDay}

	assert.False(t, slotBlock.Covers(at(2025, time.June, 17, 9, 30)))
	assert.True(t, slotBlock.Covers(at(2025, time.June, 17, 10, 0)))
	assert.True(t, slotBlock.Covers(at(2025, time.June, 17, 10, 30)))
	assert.False(t, slotBlock.Covers(at(2025, time.June, 17, 11, 0)), "end bound is exclusive")
	assert.False(t, slotBlock.Covers(at(2025, time.June, 18, 10, 0)))

	assert.True(t, dayBlock.Covers(at(2025, time.June, 17, 16, 30)))
	assert.False(t, dayBlock.Covers(at(2025, time.June, 18, 8, 0)))
	assert.True(t, Blocked([]Block{slotBlock, dayBlock}, at(2025, time.June, 17, 8, 0)))
}

func TestParseAndFormatClock(t *testing.T) {
	d, err := ParseClock("13:30")
	require.NoError(t, err)
	assert.Equal(t, 13*time.Hour+30*time.Minute, d)
	assert.Equal(t, "13:30", FormatClock(d))

	end, err := ParseClock("24:00")
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, end)

	_, err = ParseClock("1pm")
	assert.Error(t, err)
}
