package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps everything in process. It enforces the same live
// (doctor, slot) uniqueness as the Postgres partial index, under its mutex,
// so it is safe to share across request goroutines.
type MemoryRepository struct {
	mu           sync.RWMutex
	doctors      map[uuid.UUID]Doctor
	appointments map[uuid.UUID]Appointment
	blocks       map[uuid.UUID]Block
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		doctors:      make(map[uuid.UUID]Doctor),
		appointments: make(map[uuid.UUID]Appointment),
		blocks:       make(map[uuid.UUID]Block),
	}
}

// AddDoctor registers a doctor; a nil ID gets a fresh one.
func (r *MemoryRepository) AddDoctor(d Doctor) Doctor {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	r.doctors[d.ID] = d
	return d
}

func (r *MemoryRepository) GetDoctorByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return &d, nil
}

func (r *MemoryRepository) ListActiveDoctors(_ context.Context) ([]Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Doctor, 0, len(r.doctors))
	for _, d := range r.doctors {
		if d.Active {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (r *MemoryRepository) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *MemoryRepository) ListAppointmentsByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []Appointment
	for _, a := range r.appointments {
		if a.PatientID == patientID {
			all = append(all, a)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].SlotStart.After(all[j].SlotStart) })

	if offset >= len(all) {
		return []Appointment{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r *MemoryRepository) FindAppointmentsByDoctorAndWindow(_ context.Context, doctorID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Appointment
	for _, a := range r.appointments {
		if a.DoctorID != doctorID || a.Status == StatusCancelled {
			continue
		}
		if a.SlotStart.Before(from) || !a.SlotStart.Before(to) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SlotStart.Before(out[j].SlotStart) })
	return out, nil
}

func (r *MemoryRepository) InsertAppointment(_ context.Context, a Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.doctors[a.DoctorID]; !ok {
		return nil, ErrDoctorNotFound
	}
	if r.slotHeldLocked(a.DoctorID, a.SlotStart, a.ID) {
		return nil, ErrSlotTaken
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	r.appointments[a.ID] = a
	return &a, nil
}

func (r *MemoryRepository) UpdateAppointment(_ context.Context, a Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.appointments[a.ID]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if _, ok := r.doctors[a.DoctorID]; !ok {
		return nil, ErrDoctorNotFound
	}
	if stored.Status != StatusCancelled && r.slotHeldLocked(a.DoctorID, a.SlotStart, a.ID) {
		return nil, ErrSlotTaken
	}

	// Status only moves through UpdateAppointmentStatus.
	stored.DoctorID = a.DoctorID
	stored.SlotStart = a.SlotStart
	stored.AppointmentType = a.AppointmentType
	stored.Notes = a.Notes
	stored.UpdatedAt = a.UpdatedAt
	r.appointments[a.ID] = stored
	return &stored, nil
}

// UpdateAppointmentStatus only applies when the row is still in from.
func (r *MemoryRepository) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to AppointmentStatus, at time.Time) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	a.UpdatedAt = at
	r.appointments[id] = a
	return &a, nil
}

func (r *MemoryRepository) slotHeldLocked(doctorID uuid.UUID, slot time.Time, self uuid.UUID) bool {
	for _, other := range r.appointments {
		if other.ID == self || other.Status == StatusCancelled {
			continue
		}
		if other.DoctorID == doctorID && other.SlotStart.Equal(slot) {
			return true
		}
	}
	return false
}

func (r *MemoryRepository) InsertBlock(_ context.Context, b Block) (*Block, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.doctors[b.DoctorID]; !ok {
		return nil, ErrDoctorNotFound
	}
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	r.blocks[b.ID] = b
	return &b, nil
}

func (r *MemoryRepository) DeleteBlock(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.blocks[id]; !ok {
		return ErrBlockNotFound
	}
	delete(r.blocks, id)
	return nil
}

func (r *MemoryRepository) FindUnavailabilityBlocks(_ context.Context, doctorID uuid.UUID, date time.Time) ([]Block, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Block
	for _, b := range r.blocks {
		if b.DoctorID == doctorID && sameDate(b.Date, date) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out, nil
}
