package provider

import (
	"context"
	"errors"
	"strings"

	"github.com/hackgods/clinic-appointment-booking/internal/apperr"
	"github.com/hackgods/clinic-appointment-booking/internal/schedule"
	"github.com/hackgods/clinic-appointment-booking/pkg/logging"
)

// Service implements the admin use cases for provider records and slot calendars.
type Service struct {
	repo   Repository
	logger *logging.Logger
}

func NewService(repo Repository, logger *logging.Logger) *Service {
	if repo == nil {
		panic("provider: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, logger: logger}
}

func (s *Service) Get(ctx context.Context, ref Ref) (*Provider, error) {
	p, err := s.repo.Get(ctx, ref)
	if err != nil {
		return nil, storeErr("load provider", err)
	}
	return p, nil
}

func (s *Service) List(ctx context.Context, kind Kind) ([]Provider, error) {
	providers, err := s.repo.List(ctx, kind)
	if err != nil {
		return nil, storeErr("list providers", err)
	}
	return providers, nil
}

func (s *Service) Create(ctx context.Context, p Provider) (*Provider, error) {
	p.Name = strings.TrimSpace(p.Name)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.Calendar == nil {
		p.Calendar = schedule.NewCalendar()
	}
	created, err := s.repo.Create(ctx, &p)
	if err != nil {
		return nil, storeErr("create provider", err)
	}
	s.logger.Info("provider created", "provider_kind", created.Kind, "provider_id", created.ID, "name", created.Name)
	return created, nil
}

// Update replaces the editable attributes; the slot calendar is changed only through the calendar operations.
func (s *Service) Update(ctx context.Context, p Provider) (*Provider, error) {
	p.Name = strings.TrimSpace(p.Name)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	updated, err := s.repo.Update(ctx, &p)
	if err != nil {
		return nil, storeErr("update provider", err)
	}
	s.logger.Info("provider updated", "provider_kind", updated.Kind, "provider_id", updated.ID)
	return updated, nil
}

func (s *Service) SetAvailability(ctx context.Context, ref Ref, available bool) (*Provider, error) {
	updated, err := s.repo.SetAvailability(ctx, ref, available)
	if err != nil {
		return nil, storeErr("set availability", err)
	}
	s.logger.Info("provider availability changed", "provider_kind", ref.Kind, "provider_id", ref.ID, "available", available)
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, ref Ref) error {
	if err := s.repo.Delete(ctx, ref); err != nil {
		return storeErr("delete provider", err)
	}
	s.logger.Info("provider deleted", "provider_kind", ref.Kind, "provider_id", ref.ID)
	return nil
}

func (s *Service) AddDate(ctx context.Context, ref Ref, rawDate string) (*Provider, error) {
	d, err := schedule.ParseDate(rawDate)
	if err != nil {
		return nil, err
	}
	return s.mutateCalendar(ctx, ref, "add date", func(c *schedule.Calendar) error {
		return c.AddDate(d)
	})
}

func (s *Service) RemoveDate(ctx context.Context, ref Ref, rawDate string) (*Provider, error) {
	d, err := schedule.ParseDate(rawDate)
	if err != nil {
		return nil, err
	}
	return s.mutateCalendar(ctx, ref, "remove date", func(c *schedule.Calendar) error {
		c.RemoveDate(d)
		return nil
	})
}

// AddSlot adds a time under a date. With autoCreateDate the date is created
// when missing; otherwise a missing date is an error.
func (s *Service) AddSlot(ctx context.Context, ref Ref, rawDate, rawTime string, autoCreateDate bool) (*Provider, error) {
	slot, err := schedule.ParseSlot(rawDate, rawTime)
	if err != nil {
		return nil, err
	}
	return s.mutateCalendar(ctx, ref, "add slot", func(c *schedule.Calendar) error {
		if autoCreateDate {
			return c.EnsureSlot(slot.Date, slot.Time)
		}
		return c.AddSlot(slot.Date, slot.Time)
	})
}

func (s *Service) RemoveSlot(ctx context.Context, ref Ref, rawDate, rawTime string) (*Provider, error) {
	slot, err := schedule.ParseSlot(rawDate, rawTime)
	if err != nil {
		return nil, err
	}
	return s.mutateCalendar(ctx, ref, "remove slot", func(c *schedule.Calendar) error {
		c.RemoveSlot(slot.Date, slot.Time)
		return nil
	})
}

func (s *Service) mutateCalendar(ctx context.Context, ref Ref, op string, fn func(*schedule.Calendar) error) (*Provider, error) {
	updated, err := s.repo.UpdateCalendar(ctx, ref, fn)
	if err != nil {
		return nil, storeErr(op, err)
	}
	s.logger.Info("slot calendar changed", "op", op, "provider_kind", ref.Kind, "provider_id", ref.ID, "dates", updated.Calendar.Len())
	return updated, nil
}

func storeErr(op string, err error) error {
	switch {
	case errors.Is(err, ErrProviderNotFound),
		errors.Is(err, apperr.ErrValidation),
		errors.Is(err, schedule.ErrDuplicateDate),
		errors.Is(err, schedule.ErrDuplicateSlot),
		errors.Is(err, schedule.ErrUnknownDate):
		return err
	}
	return apperr.Infra(op, err)
}
