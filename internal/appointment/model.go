package appointment

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusScheduled  AppointmentStatus = "scheduled"
	StatusConfirmed  AppointmentStatus = "confirmed"
	StatusInProgress AppointmentStatus = "in_progress"
	StatusCompleted  AppointmentStatus = "completed"
	StatusCancelled  AppointmentStatus = "cancelled"
)

func ParseStatus(s string) (AppointmentStatus, bool) {
	switch st := AppointmentStatus(s); st {
	case StatusScheduled, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled:
		return st, true
	}
	return "", false
}

// Terminal statuses accept no further transitions or reschedules.
func (s AppointmentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type Doctor struct {
	ID        uuid.UUID
	Name      string
	Specialty *string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Appointment occupies one 30-minute slot of one doctor. SlotStart is always
// normalised: zero seconds and a minute of 0 or 30.
type Appointment struct {
	ID              uuid.UUID
	PatientID       uuid.UUID
	DoctorID        uuid.UUID
	SlotStart       time.Time
	Status          AppointmentStatus
	AppointmentType string
	Notes           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type ScheduleInput struct {
	PatientID       uuid.UUID
	DoctorID        uuid.UUID
	SlotStart       time.Time
	AppointmentType string
	Notes           string
}

// Patch holds the fields a reschedule may change. Nil fields are left alone.
type Patch struct {
	DoctorID        *uuid.UUID
	SlotStart       *time.Time
	AppointmentType *string
	Notes           *string
}

func (p Patch) movesSlot() bool {
	return p.DoctorID != nil || p.SlotStart != nil
}

type BlockKind string

const (
	BlockFullDay  BlockKind = "full_day"
	BlockTimeSlot BlockKind = "time_slot"
)

// Block is a staff-entered exclusion of a doctor's time on one calendar day.
// Start and End are offsets from midnight and only apply to time_slot blocks;
// the range is half-open.
type Block struct {
	ID        uuid.UUID
	DoctorID  uuid.UUID
	Date      time.Time
	Kind      BlockKind
	Start     time.Duration
	End       time.Duration
	Reason    string
	CreatedAt time.Time
}

type BlockInput struct {
	DoctorID uuid.UUID
	Date     time.Time
	Kind     BlockKind
	Start    time.Duration
	End      time.Duration
	Reason   string
}

type DoctorSlots struct {
	DoctorID   uuid.UUID
	DoctorName string
	Slots      []time.Time
}
