package appointment

import (
	"fmt"
	"time"

	"github.com/kazemman/InvoTechClinic-WhatsApp-sub000/internal/apperr"
	"github.com/kazemman/InvoTechClinic-WhatsApp-sub000/internal/calendar"
)

const day = 24 * time.Hour

// Covers reports whether slot (in facility time) falls inside the block.
func (b Block) Covers(slot time.Time) bool {
	if !sameDate(b.Date, slot) {
		return false
	}
	if b.Kind == BlockFullDay {
		return true
	}
	offset := time.Duration(slot.Hour())*time.Hour + time.Duration(slot.Minute())*time.Minute
	return offset >= b.Start && offset < b.End
}

// Blocked reports whether any of blocks covers slot. Overlapping blocks are
// harmless.
func Blocked(blocks []Block, slot time.Time) bool {
	for _, b := range blocks {
		if b.Covers(slot) {
			return true
		}
	}
	return false
}

func validateBlock(in BlockInput) error {
	if in.Date.IsZero() {
		return apperr.Validation("date", "is required")
	}
	switch in.Kind {
	case BlockFullDay:
		return nil
	case BlockTimeSlot:
	default:
		return apperr.Validation("kind", "must be full_day or time_slot")
	}

	if in.Start < 0 || in.End > day {
		return apperr.Validation("start_time", "must lie within the day")
	}
	if in.Start%calendar.SlotLength != 0 || in.End%calendar.SlotLength != 0 {
		return apperr.Validation("start_time", "block bounds must sit on the 30-minute grid")
	}
	if in.End <= in.Start {
		return apperr.Validation("end_time", "must be after start_time")
	}
	return nil
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// ParseClock parses "HH:MM" into an offset from midnight. "24:00" is allowed
// as an end bound.
func ParseClock(s string) (time.Duration, error) {
	if s == "24:00" {
		return day, nil
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

func FormatClock(d time.Duration) string {
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	return fmt.Sprintf("%02d:%02d", h, m)
}
