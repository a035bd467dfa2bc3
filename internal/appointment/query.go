package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-appointment-booking/internal/apperr"
	"github.com/hackgods/clinic-appointment-booking/internal/provider"
	"github.com/hackgods/clinic-appointment-booking/internal/schedule"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Filter narrows an admin listing. Status is matched against the projected
// status, so an elapsed pending appointment is found under completed.
type Filter struct {
	Query
	Status AppointmentStatus
	Limit  int
	Offset int
}

type Page struct {
	Items  []Appointment `json:"items"`
	Total  int           `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// Stats summarises appointments as they read right now.
type Stats struct {
	Total       int     `json:"total"`
	Pending     int     `json:"pending"`
	Confirmed   int     `json:"confirmed"`
	Rescheduled int     `json:"rescheduled"`
	Completed   int     `json:"completed"`
	Canceled    int     `json:"canceled"`
	Earnings    float64 `json:"earnings"`
}

type DashboardStats struct {
	Stats
	Patients int64 `json:"patients"`
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	projected := Project(*appt, s.clock.Now())
	return &projected, nil
}

// ListByPatient returns the authenticated patient's appointments, newest first.
func (s *Service) ListByPatient(ctx context.Context, patientID string) ([]Appointment, error) {
	if patientID == "" {
		return nil, ErrUnauthenticated
	}
	items, err := s.repo.FindByPatient(ctx, patientID)
	if err != nil {
		return nil, apperr.Infra("list patient appointments", err)
	}
	return s.project(items), nil
}

func (s *Service) ListByProvider(ctx context.Context, ref provider.Ref) ([]Appointment, error) {
	items, err := s.repo.FindByProvider(ctx, ref)
	if err != nil {
		return nil, apperr.Infra("list provider appointments", err)
	}
	return s.project(items), nil
}

func (s *Service) List(ctx context.Context, f Filter) (*Page, error) {
	if f.From != "" && f.To != "" && f.To.Before(f.From) {
		return nil, apperr.Invalid("to", "must not be before from")
	}
	if f.Offset < 0 {
		return nil, apperr.Invalid("offset", "must not be negative")
	}
	switch {
	case f.Limit <= 0:
		f.Limit = DefaultPageSize
	case f.Limit > MaxPageSize:
		f.Limit = MaxPageSize
	}

	items, err := s.repo.List(ctx, f.Query)
	if err != nil {
		return nil, apperr.Infra("list appointments", err)
	}
	items = s.project(items)
	if f.Status != "" {
		kept := items[:0]
		for _, a := range items {
			if a.Status == f.Status {
				kept = append(kept, a)
			}
		}
		items = kept
	}

	page := &Page{Total: len(items), Limit: f.Limit, Offset: f.Offset, Items: []Appointment{}}
	if f.Offset < len(items) {
		end := min(f.Offset+f.Limit, len(items))
		page.Items = items[f.Offset:end]
	}
	return page, nil
}

// ProviderStats counts one provider's appointments by projected status.
func (s *Service) ProviderStats(ctx context.Context, ref provider.Ref) (*Stats, error) {
	if _, err := s.providers.Get(ctx, ref); err != nil {
		if errors.Is(err, provider.ErrProviderNotFound) {
			return nil, err
		}
		return nil, apperr.Infra("load provider", err)
	}
	items, err := s.ListByProvider(ctx, ref)
	if err != nil {
		return nil, err
	}
	st := summarise(items)
	return &st, nil
}

// Agenda renders a provider's calendar in selection order. A slot is bookable
// only when it is still ahead, the provider accepts bookings and no active
// appointment occupies it.
func (s *Service) Agenda(ctx context.Context, ref provider.Ref) ([]schedule.DayView, error) {
	p, err := s.providers.Get(ctx, ref)
	if err != nil {
		if errors.Is(err, provider.ErrProviderNotFound) {
			return nil, err
		}
		return nil, apperr.Infra("load provider", err)
	}
	if p.Calendar == nil {
		return []schedule.DayView{}, nil
	}

	days := p.Calendar.Agenda(s.clock.Now())
	if !p.Bookable() {
		schedule.CloseBookings(days)
	}

	items, err := s.repo.FindByProvider(ctx, ref)
	if err != nil {
		return nil, apperr.Infra("list provider appointments", err)
	}
	taken := make(map[schedule.Slot]bool, len(items))
	for _, a := range items {
		if a.Status != StatusCanceled {
			taken[a.EffectiveSlot()] = true
		}
	}
	schedule.MarkTaken(days, taken)
	return days, nil
}

func (s *Service) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	items, err := s.repo.List(ctx, Query{})
	if err != nil {
		return nil, apperr.Infra("list appointments", err)
	}
	patients, err := s.repo.CountPatients(ctx)
	if err != nil {
		return nil, apperr.Infra("count patients", err)
	}
	return &DashboardStats{Stats: summarise(s.project(items)), Patients: patients}, nil
}

func (s *Service) project(items []Appointment) []Appointment {
	now := s.clock.Now()
	out := make([]Appointment, len(items))
	for i, a := range items {
		out[i] = Project(a, now)
	}
	return out
}

// summarise expects projected appointments. Earnings are the fees of
// completed appointments.
func summarise(items []Appointment) Stats {
	var st Stats
	for _, a := range items {
		st.Total++
		switch a.Status {
		case StatusPending:
			st.Pending++
		case StatusConfirmed:
			st.Confirmed++
		case StatusRescheduled:
			st.Rescheduled++
		case StatusCompleted:
			st.Completed++
			st.Earnings += a.Fee
		case StatusCanceled:
			st.Canceled++
		}
	}
	return st
}

// UpcomingForPatient keeps only appointments whose effective slot is today or later.
func UpcomingForPatient(items []Appointment, today schedule.Date) []Appointment {
	out := make([]Appointment, 0, len(items))
	for _, a := range items {
		if !a.EffectiveSlot().Date.Before(today) {
			out = append(out, a)
		}
	}
	return out
}

// Now is the service clock's current time.
func (s *Service) Now() time.Time {
	return s.clock.Now()
}
