package queue

import (
	"bytes"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

func ParseStatus(s string) (Status, bool) {
	switch st := Status(s); st {
	case StatusWaiting, StatusInProgress, StatusCompleted:
		return st, true
	}
	return "", false
}

func (s Status) Active() bool {
	return s == StatusWaiting || s == StatusInProgress
}

type Priority int

const (
	PriorityNormal Priority = 0
	PriorityHigh   Priority = 1
	PriorityUrgent Priority = 2
)

func (p Priority) Valid() bool {
	return p >= PriorityNormal && p <= PriorityUrgent
}

func (p Priority) String() string {
	switch p {
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityUrgent:
		return "urgent"
	}
	return "unknown"
}

// Entry is one patient's place in a doctor's waiting line. StartedAt is nil
// while waiting and CompletedAt is nil until completed.
type Entry struct {
	ID          uuid.UUID
	PatientID   uuid.UUID
	CheckInID   uuid.UUID
	DoctorID    uuid.UUID
	Status      Status
	Priority    Priority
	EnteredAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// View is an Entry with the wait figures derived at read time.
type View struct {
	Entry
	Position             int
	WaitMinutes          int
	EstimatedWaitMinutes int
	ActualWaitMinutes    *int
}

// CheckIn is the admission event a queue entry is created from.
type CheckIn struct {
	ID            uuid.UUID
	PatientID     uuid.UUID
	DoctorID      uuid.UUID
	AppointmentID *uuid.UUID
	CheckedInAt   time.Time
}

type EnqueueInput struct {
	PatientID uuid.UUID
	CheckInID uuid.UUID
	DoctorID  uuid.UUID
	Priority  Priority
}

type CheckInInput struct {
	PatientID     uuid.UUID
	DoctorID      uuid.UUID
	AppointmentID *uuid.UUID
	Priority      Priority
}

type CheckInResult struct {
	CheckIn CheckIn
	Entry   Entry
}

// activeLess orders the active queue: arrival first, priority only breaks
// exact ties, then id for a stable order. A later urgent arrival does not
// overtake an earlier normal one.
func activeLess(a, b Entry) bool {
	if !a.EnteredAt.Equal(b.EnteredAt) {
		return a.EnteredAt.Before(b.EnteredAt)
	}
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return bytes.Compare(a.ID[:], b.ID[:]) < 0
}
