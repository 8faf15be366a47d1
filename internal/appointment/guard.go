package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kazemman/InvoTechClinic-WhatsApp-sub000/internal/apperr"
	"github.com/kazemman/InvoTechClinic-WhatsApp-sub000/internal/calendar"
)

// NormalizeSlot zeroes seconds and sub-seconds and requires the minute to be
// 0 or 30, read in t's location.
func NormalizeSlot(t time.Time) (time.Time, error) {
	if t.IsZero() {
		return time.Time{}, apperr.Validation("slot_start", "is required")
	}
	y, m, d := t.Date()
	slot := time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, t.Location())
	if slot.Minute() != 0 && slot.Minute() != 30 {
		return time.Time{}, apperr.Validation("slot_start", "minute must be 0 or 30")
	}
	return slot, nil
}

// ConflictGuard is the advisory half of the one-appointment-per-doctor-per-slot
// rule. The unique index behind Repository writes is the authoritative half.
type ConflictGuard struct {
	repo Repository
}

func NewConflictGuard(repo Repository) *ConflictGuard {
	return &ConflictGuard{repo: repo}
}

// HasConflict reports whether a live appointment other than exclude already
// holds candidate for doctorID. Only the exact instant matters; neighbouring
// slots never conflict.
func (g *ConflictGuard) HasConflict(ctx context.Context, doctorID uuid.UUID, candidate time.Time, exclude *uuid.UUID) (bool, error) {
	slot, err := NormalizeSlot(candidate)
	if err != nil {
		return false, err
	}

	existing, err := g.repo.FindAppointmentsByDoctorAndWindow(ctx, doctorID, slot, slot.Add(calendar.SlotLength))
	if err != nil {
		return false, apperr.Upstream("find appointments for slot", err)
	}

	for _, a := range existing {
		if a.Status == StatusCancelled || !a.SlotStart.Equal(slot) {
			continue
		}
		if exclude != nil && a.ID == *exclude {
			continue
		}
		return true, nil
	}
	return false, nil
}
