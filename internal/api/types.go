package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/kazemman/InvoTechClinic-WhatsApp-sub000/internal/appointment"
	"github.com/kazemman/InvoTechClinic-WhatsApp-sub000/internal/queue"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Field   string `json:"field,omitempty"`
}

type CreateAppointmentRequest struct {
	PatientID       string    `json:"patient_id"`
	DoctorID        string    `json:"doctor_id"`
	SlotStart       time.Time `json:"slot_start"`
	AppointmentType string    `json:"appointment_type"`
	Notes           string    `json:"notes"`
}

type RescheduleRequest struct {
	DoctorID        *string    `json:"doctor_id"`
	SlotStart       *time.Time `json:"slot_start"`
	AppointmentType *string    `json:"appointment_type"`
	Notes           *string    `json:"notes"`
}

type StatusRequest struct {
	Status string `json:"status"`
}

type AppointmentResponse struct {
	ID              uuid.UUID `json:"id"`
	PatientID       uuid.UUID `json:"patient_id"`
	DoctorID        uuid.UUID `json:"doctor_id"`
	SlotStart       time.Time `json:"slot_start"`
	Status          string    `json:"status"`
	AppointmentType string    `json:"appointment_type,omitempty"`
	Notes           string    `json:"notes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:              a.ID,
		PatientID:       a.PatientID,
		DoctorID:        a.DoctorID,
		SlotStart:       a.SlotStart,
		Status:          string(a.Status),
		AppointmentType: a.AppointmentType,
		Notes:           a.Notes,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

type DoctorResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Specialty *string   `json:"specialty,omitempty"`
}

type AvailabilityResponse struct {
	DoctorID   uuid.UUID   `json:"doctor_id"`
	DoctorName string      `json:"doctor_name,omitempty"`
	Date       string      `json:"date"`
	Slots      []time.Time `json:"slots"`
}

type AllDoctorsAvailabilityResponse struct {
	Date    string                 `json:"date"`
	Doctors []AvailabilityResponse `json:"doctors"`
}

type CreateBlockRequest struct {
	Date      string `json:"date"`
	Kind      string `json:"kind"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Reason    string `json:"reason"`
}

type BlockResponse struct {
	ID        uuid.UUID `json:"id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	Date      string    `json:"date"`
	Kind      string    `json:"kind"`
	StartTime string    `json:"start_time,omitempty"`
	EndTime   string    `json:"end_time,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

func toBlockResponse(b appointment.Block) BlockResponse {
	resp := BlockResponse{
		ID:       b.ID,
		DoctorID: b.DoctorID,
		Date:     b.Date.Format(time.DateOnly),
		Kind:     string(b.Kind),
		Reason:   b.Reason,
	}
	if b.Kind == appointment.BlockTimeSlot {
		resp.StartTime = appointment.FormatClock(b.Start)
		resp.EndTime = appointment.FormatClock(b.End)
	}
	return resp
}

type EnqueueRequest struct {
	PatientID string `json:"patient_id"`
	CheckInID string `json:"check_in_id"`
	DoctorID  string `json:"doctor_id"`
	Priority  int    `json:"priority"`
}

type CheckInRequest struct {
	PatientID     string  `json:"patient_id"`
	DoctorID      string  `json:"doctor_id"`
	AppointmentID *string `json:"appointment_id"`
	Priority      int     `json:"priority"`
}

type QueueEntryResponse struct {
	ID                   uuid.UUID  `json:"id"`
	PatientID            uuid.UUID  `json:"patient_id"`
	CheckInID            uuid.UUID  `json:"check_in_id"`
	DoctorID             uuid.UUID  `json:"doctor_id"`
	Status               string     `json:"status"`
	Priority             int        `json:"priority"`
	PriorityLabel        string     `json:"priority_label"`
	EnteredAt            time.Time  `json:"entered_at"`
	StartedAt            *time.Time `json:"started_at,omitempty"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
	Position             int        `json:"position,omitempty"`
	WaitMinutes          int        `json:"wait_minutes"`
	EstimatedWaitMinutes int        `json:"estimated_wait_minutes"`
	ActualWaitMinutes    *int       `json:"actual_wait_minutes,omitempty"`
}

func toQueueEntryResponse(e queue.Entry) QueueEntryResponse {
	return QueueEntryResponse{
		ID:            e.ID,
		PatientID:     e.PatientID,
		CheckInID:     e.CheckInID,
		DoctorID:      e.DoctorID,
		Status:        string(e.Status),
		Priority:      int(e.Priority),
		PriorityLabel: e.Priority.String(),
		EnteredAt:     e.EnteredAt,
		StartedAt:     e.StartedAt,
		CompletedAt:   e.CompletedAt,
	}
}

func toQueueViewResponse(v queue.View) QueueEntryResponse {
	resp := toQueueEntryResponse(v.Entry)
	resp.Position = v.Position
	resp.WaitMinutes = v.WaitMinutes
	resp.EstimatedWaitMinutes = v.EstimatedWaitMinutes
	resp.ActualWaitMinutes = v.ActualWaitMinutes
	return resp
}

type CheckInResponse struct {
	CheckInID     uuid.UUID          `json:"check_in_id"`
	AppointmentID *uuid.UUID         `json:"appointment_id,omitempty"`
	CheckedInAt   time.Time          `json:"checked_in_at"`
	Entry         QueueEntryResponse `json:"entry"`
}

type CalendarDayResponse struct {
	Date      string `json:"date"`
	Open      bool   `json:"open"`
	StartHour int    `json:"start_hour,omitempty"`
	EndHour   int    `json:"end_hour,omitempty"`
	Holiday   string `json:"holiday,omitempty"`
}

type HolidayResponse struct {
	Name string `json:"name"`
	Date string `json:"date"`
}
