package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kazemman/InvoTechClinic-WhatsApp-sub000/internal/apperr"
	"github.com/kazemman/InvoTechClinic-WhatsApp-sub000/internal/calendar"
	"github.com/kazemman/InvoTechClinic-WhatsApp-sub000/internal/clock"
	"github.com/kazemman/InvoTechClinic-WhatsApp-sub000/internal/metrics"
)

// Resolver lists the bookable slot starts of a doctor on a facility day.
type Resolver struct {
	repo    Repository
	blocks  UnavailabilityRepository
	loc     *time.Location
	clock   clock.Clock
	metrics *metrics.SchedulingMetrics
}

func NewResolver(repo Repository, blocks UnavailabilityRepository, loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	return &Resolver{repo: repo, blocks: blocks, loc: loc, clock: clock.Real()}
}

// AvailableSlots returns the free slot starts for doctorID on date, ascending.
// Closed days return an empty list without touching storage.
func (r *Resolver) AvailableSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]time.Time, error) {
	start := r.clock.Now()
	defer func() {
		r.metrics.ObserveAvailability("doctor", r.clock.Now().Sub(start).Seconds())
	}()

	grid := calendar.SlotStarts(date, r.loc)
	if len(grid) == 0 {
		return []time.Time{}, nil
	}

	if _, err := r.activeDoctor(ctx, doctorID); err != nil {
		return nil, err
	}
	return r.freeSlots(ctx, doctorID, grid)
}

// AvailableSlotsAllDoctors maps AvailableSlots across every active doctor.
func (r *Resolver) AvailableSlotsAllDoctors(ctx context.Context, date time.Time) ([]DoctorSlots, error) {
	start := r.clock.Now()
	defer func() {
		r.metrics.ObserveAvailability("all", r.clock.Now().Sub(start).Seconds())
	}()

	doctors, err := r.repo.ListActiveDoctors(ctx)
	if err != nil {
		return nil, apperr.Upstream("list active doctors", err)
	}

	grid := calendar.SlotStarts(date, r.loc)
	out := make([]DoctorSlots, 0, len(doctors))
	for _, d := range doctors {
		slots := []time.Time{}
		if len(grid) > 0 {
			slots, err = r.freeSlots(ctx, d.ID, grid)
			if err != nil {
				return nil, err
			}
		}
		out = append(out, DoctorSlots{DoctorID: d.ID, DoctorName: d.Name, Slots: slots})
	}
	return out, nil
}

// Bookable reports whether slot is inside opening hours and not covered by
// one of the doctor's blocks. Existing appointments are ConflictGuard's job.
func (r *Resolver) Bookable(ctx context.Context, doctorID uuid.UUID, slot time.Time) (bool, error) {
	local := slot.In(r.loc)
	if !calendar.WithinHours(local) {
		return false, nil
	}
	blocks, err := r.blocks.FindUnavailabilityBlocks(ctx, doctorID, calendar.StartOfDay(local, r.loc))
	if err != nil {
		return false, apperr.Upstream("find unavailability blocks", err)
	}
	return !Blocked(blocks, local), nil
}

func (r *Resolver) activeDoctor(ctx context.Context, doctorID uuid.UUID) (*Doctor, error) {
	d, err := r.repo.GetDoctorByID(ctx, doctorID)
	if err != nil {
		return nil, apperr.Upstream("load doctor", err)
	}
	if !d.Active {
		return nil, ErrDoctorNotFound
	}
	return d, nil
}

// freeSlots runs one blocks query and one window query for the day, then
// filters the grid in memory.
func (r *Resolver) freeSlots(ctx context.Context, doctorID uuid.UUID, grid []time.Time) ([]time.Time, error) {
	day := calendar.StartOfDay(grid[0], r.loc)

	blocks, err := r.blocks.FindUnavailabilityBlocks(ctx, doctorID, day)
	if err != nil {
		return nil, apperr.Upstream("find unavailability blocks", err)
	}

	booked, err := r.repo.FindAppointmentsByDoctorAndWindow(ctx, doctorID, grid[0], grid[len(grid)-1].Add(calendar.SlotLength))
	if err != nil {
		return nil, apperr.Upstream("find appointments for day", err)
	}
	taken := make(map[int64]struct{}, len(booked))
	for _, a := range booked {
		if a.Status != StatusCancelled {
			taken[a.SlotStart.Unix()] = struct{}{}
		}
	}

	free := make([]time.Time, 0, len(grid))
	for _, slot := range grid {
		if Blocked(blocks, slot) {
			continue
		}
		if _, ok := taken[slot.Unix()]; ok {
			continue
		}
		free = append(free, slot)
	}
	return free, nil
}
