package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazemman/InvoTechClinic-WhatsApp-sub000/internal/clock"
	"github.com/kazemman/InvoTechClinic-WhatsApp-sub000/internal/identity"
)

func TestRecorderAttributesActor(t *testing.T) {
	sink := NewMemorySink()
	rec := NewRecorder(sink, zerolog.Nop(), clock.NewManual(time.Date(2025, 6, 16, 9, 30, 0, 0, time.UTC)))

	ctx := identity.WithActor(context.Background(), identity.Actor{UserID: "u-9", Role: "reception"})
	id := uuid.New()
	rec.Record(ctx, "appointment", id, "APPOINTMENT_CREATED", map[string]any{"slot_start": "2025-06-17T08:00:00Z"})

	events := sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "u-9", events[0].ActorID)
	assert.Equal(t, "reception", events[0].ActorRole)
	assert.Equal(t, id, *events[0].EntityID)
	assert.JSONEq(t, `{"slot_start":"2025-06-17T08:00:00Z"}`, string(events[0].Payload))
	assert.True(t, events[0].CreatedAt.Equal(time.Date(2025, 6, 16, 9, 30, 0, 0, time.UTC)))
}

type failingSink struct{}

func (failingSink) InsertEvent(context.Context, EventLog) error { return errors.New("db down") }

func TestRecorderSwallowsSinkErrors(t *testing.T) {
	rec := NewRecorder(failingSink{}, zerolog.Nop(), nil)
	assert.NotPanics(t, func() {
		rec.Record(context.Background(), "queue_entry", uuid.New(), "QUEUE_ENTRY_REMOVED", nil)
	})

	var nilRec *Recorder
	assert.NotPanics(t, func() {
		nilRec.Record(context.Background(), "queue_entry", uuid.New(), "QUEUE_ENTRY_REMOVED", nil)
	})
}

func TestPgSinkInsertEvent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	ev := EventLog{EventType: "APPOINTMENT_CANCELLED", EntityType: "appointment", EntityID: &id, ActorID: "u-1", ActorRole: "admin"}

	mock.ExpectExec("INSERT INTO event_logs").
		WithArgs("APPOINTMENT_CANCELLED", "appointment", &id, "u-1", "admin", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, NewPgSink(mock).InsertEvent(context.Background(), ev))
	require.NoError(t, mock.ExpectationsWereMet())
}
