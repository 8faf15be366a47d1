package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kazemman/InvoTechClinic-WhatsApp-sub000/internal/clock"
	"github.com/kazemman/InvoTechClinic-WhatsApp-sub000/internal/db"
	"github.com/kazemman/InvoTechClinic-WhatsApp-sub000/internal/identity"
)

type EventLog struct {
	ID         int64
	EventType  string
	EntityType string
	EntityID   *uuid.UUID
	ActorID    string
	ActorRole  string
	Payload    []byte
	CreatedAt  time.Time
}

type Sink interface {
	InsertEvent(ctx context.Context, ev EventLog) error
}

// Recorder writes activity events. A failed write is logged and swallowed:
// the mutation it describes has already been committed.
type Recorder struct {
	sink   Sink
	logger zerolog.Logger
	clock  clock.Clock
}

// NewRecorder stamps events with clk; nil uses the wall clock.
func NewRecorder(sink Sink, logger zerolog.Logger, clk clock.Clock) *Recorder {
	if clk == nil {
		clk = clock.Real()
	}
	return &Recorder{sink: sink, logger: logger, clock: clk}
}

func (r *Recorder) Record(ctx context.Context, entityType string, entityID uuid.UUID, eventType string, payload map[string]any) {
	if r == nil || r.sink == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		r.logger.Warn().Err(err).Str("event_type", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	actor := identity.ActorFrom(ctx)
	id := entityID
	ev := EventLog{
		EventType:  eventType,
		EntityType: entityType,
		EntityID:   &id,
		ActorID:    actor.UserID,
		ActorRole:  actor.Role,
		Payload:    data,
		CreatedAt:  r.clock.Now().UTC(),
	}

	if err := r.sink.InsertEvent(ctx, ev); err != nil {
		r.logger.Error().Err(err).
			Str("event_type", eventType).
			Str("entity_id", entityID.String()).
			Msg("failed to insert event log")
	}
}

type PgSink struct {
	db db.DBTX
}

func NewPgSink(conn db.DBTX) *PgSink {
	return &PgSink{db: conn}
}

func (s *PgSink) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO event_logs (event_type, entity_type, entity_id, actor_id, actor_role, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, now()))
	`, ev.EventType, ev.EntityType, ev.EntityID, ev.ActorID, ev.ActorRole, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// MemorySink keeps events in process, for the memory store driver and tests.
type MemorySink struct {
	mu     sync.Mutex
	events []EventLog
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) InsertEvent(_ context.Context, ev EventLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev.ID = int64(len(s.events) + 1)
	s.events = append(s.events, ev)
	return nil
}

func (s *MemorySink) Events() []EventLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]EventLog, len(s.events))
	copy(out, s.events)
	return out
}
