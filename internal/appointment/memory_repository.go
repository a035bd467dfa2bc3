package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-appointment-booking/internal/provider"
	"github.com/hackgods/clinic-appointment-booking/internal/schedule"
)

// MemoryRepository keeps appointments in process. Writes hold one mutex, so the
// occupied-slot check and the write are atomic just as with the Postgres index.
type MemoryRepository struct {
	mu           sync.RWMutex
	appointments map[uuid.UUID]*Appointment
	seq          map[uuid.UUID]int64
	patients     map[string]struct{}
	events       []EventLog
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		appointments: make(map[uuid.UUID]*Appointment),
		seq:          make(map[uuid.UUID]int64),
		patients:     make(map[string]struct{}),
	}
}

func cloneAppointment(a *Appointment) *Appointment {
	out := *a
	if a.Reschedule != nil {
		target := *a.Reschedule
		out.Reschedule = &target
	}
	return &out
}

// occupiedLocked returns a non-canceled appointment other than skip holding slot.
func (r *MemoryRepository) occupiedLocked(ref provider.Ref, slot schedule.Slot, skip uuid.UUID) *Appointment {
	for id, a := range r.appointments {
		if id == skip || a.Status == StatusCanceled {
			continue
		}
		if a.Provider == ref && a.EffectiveSlot() == slot {
			return a
		}
	}
	return nil
}

func (r *MemoryRepository) Insert(_ context.Context, a *Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a.Status != StatusCanceled && r.occupiedLocked(a.Provider, a.EffectiveSlot(), uuid.Nil) != nil {
		return nil, ErrSlotAlreadyTaken
	}
	stored := cloneAppointment(a)
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	now := time.Now().UTC()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	r.appointments[stored.ID] = stored
	r.seq[stored.ID] = int64(len(r.seq) + 1)
	return cloneAppointment(stored), nil
}

func (r *MemoryRepository) FindByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return cloneAppointment(a), nil
}

func (r *MemoryRepository) FindByPatient(ctx context.Context, patientID string) ([]Appointment, error) {
	return r.List(ctx, Query{PatientID: patientID})
}

func (r *MemoryRepository) FindByProvider(ctx context.Context, ref provider.Ref) ([]Appointment, error) {
	return r.List(ctx, Query{Provider: &ref})
}

func (r *MemoryRepository) List(_ context.Context, q Query) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Appointment
	for _, a := range r.appointments {
		if q.PatientID != "" && a.Patient.ID != q.PatientID {
			continue
		}
		if q.Provider != nil && a.Provider != *q.Provider {
			continue
		}
		d := a.EffectiveSlot().Date
		if q.From != "" && d.Before(q.From) {
			continue
		}
		if q.To != "" && d.After(q.To) {
			continue
		}
		out = append(out, *cloneAppointment(a))
	}
	sort.Slice(out, func(i, j int) bool {
		return r.seq[out[i].ID] > r.seq[out[j].ID]
	})
	return out, nil
}

func (r *MemoryRepository) FindActiveBySlot(_ context.Context, ref provider.Ref, slot schedule.Slot) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if a := r.occupiedLocked(ref, slot, uuid.Nil); a != nil {
		return cloneAppointment(a), nil
	}
	return nil, ErrAppointmentNotFound
}

func (r *MemoryRepository) UpdateStatus(_ context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrStatusConflict
	}
	a.Status = to
	a.UpdatedAt = time.Now().UTC()
	return cloneAppointment(a), nil
}

func (r *MemoryRepository) UpdateReschedule(_ context.Context, id uuid.UUID, from AppointmentStatus, target schedule.Slot) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrStatusConflict
	}
	if r.occupiedLocked(a.Provider, target, id) != nil {
		return nil, ErrSlotAlreadyTaken
	}
	a.Status = StatusRescheduled
	a.Reschedule = &target
	a.UpdatedAt = time.Now().UTC()
	return cloneAppointment(a), nil
}

func (r *MemoryRepository) RegisterPatient(_ context.Context, patientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patients[patientID] = struct{}{}
	return nil
}

func (r *MemoryRepository) CountPatients(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.patients)), nil
}

func (r *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev.ID = int64(len(r.events) + 1)
	r.events = append(r.events, ev)
	return nil
}

// Events returns the journal recorded so far.
func (r *MemoryRepository) Events() []EventLog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]EventLog(nil), r.events...)
}
