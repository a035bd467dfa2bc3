package provider

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-appointment-booking/internal/apperr"
	"github.com/hackgods/clinic-appointment-booking/internal/schedule"
	"github.com/hackgods/clinic-appointment-booking/pkg/logging"
)

func newTestService() (*Service, *MemoryRepository) {
	repo := NewMemoryRepository()
	return NewService(repo, logging.NewWithWriter(io.Discard, "error")), repo
}

func TestServiceCreateValidates(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Create(context.Background(), Provider{Kind: "nurse", Name: "  ", Fee: -1})

	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Fields, 3)
}

func TestServiceCalendarLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	p, err := svc.Create(ctx, Provider{Kind: KindDoctor, Name: "Dr. Mehta", Category: "Dermatology", Fee: 500, Available: true})
	require.NoError(t, err)
	ref := p.Ref()

	_, err = svc.AddSlot(ctx, ref, "2025-06-20", "10:00 AM", false)
	require.ErrorIs(t, err, schedule.ErrUnknownDate)

	_, err = svc.AddDate(ctx, ref, "2025-06-20")
	require.NoError(t, err)
	_, err = svc.AddDate(ctx, ref, "2025-06-20")
	require.ErrorIs(t, err, schedule.ErrDuplicateDate)

	_, err = svc.AddSlot(ctx, ref, "2025-06-20", "10:00 AM", false)
	require.NoError(t, err)
	_, err = svc.AddSlot(ctx, ref, "2025-06-20", "10:00", false)
	require.ErrorIs(t, err, schedule.ErrDuplicateSlot)

	p, err = svc.AddSlot(ctx, ref, "2025-06-10", "9:00 AM", true)
	require.NoError(t, err)
	assert.True(t, p.Calendar.HasSlot(schedule.MustDate("2025-06-10"), schedule.MustTime("09:00")))

	_, err = svc.AddSlot(ctx, ref, "10 Jun 2025", "9:00 AM", true)
	require.ErrorIs(t, err, apperr.ErrValidation)

	p, err = svc.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, []schedule.Date{"2025-06-10", "2025-06-20"}, p.Calendar.ListDatesOrdered(schedule.MustDate("2025-06-15")))

	p, err = svc.RemoveSlot(ctx, ref, "2025-06-10", "09:00")
	require.NoError(t, err)
	assert.True(t, p.Calendar.HasDate(schedule.MustDate("2025-06-10")))

	p, err = svc.RemoveDate(ctx, ref, "2025-06-10")
	require.NoError(t, err)
	assert.False(t, p.Calendar.HasDate(schedule.MustDate("2025-06-10")))
}

func TestServiceUpdateKeepsCalendar(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	cal := schedule.NewCalendar()
	require.NoError(t, cal.EnsureSlot(schedule.MustDate("2025-07-01"), schedule.MustTime("10:00")))
	p, err := svc.Create(ctx, Provider{Kind: KindService, Name: "MRI", Fee: 2500, Available: true, Calendar: cal})
	require.NoError(t, err)

	p.Fee = 3000
	p.Calendar = schedule.NewCalendar()
	updated, err := svc.Update(ctx, *p)
	require.NoError(t, err)
	assert.Equal(t, 3000.0, updated.Fee)
	assert.True(t, updated.Calendar.HasSlot(schedule.MustDate("2025-07-01"), schedule.MustTime("10:00")))

	off, err := svc.SetAvailability(ctx, p.Ref(), false)
	require.NoError(t, err)
	assert.False(t, off.Bookable())

	providers, err := svc.List(ctx, KindService)
	require.NoError(t, err)
	assert.Len(t, providers, 1)

	doctors, err := svc.List(ctx, KindDoctor)
	require.NoError(t, err)
	assert.Empty(t, doctors)
}

func TestServiceDeleteAndNotFound(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	p, err := svc.Create(ctx, Provider{Kind: KindDoctor, Name: "Dr. Iyer", Fee: 0, Available: true})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, p.Ref()))
	require.ErrorIs(t, svc.Delete(ctx, p.Ref()), ErrProviderNotFound)

	_, err = svc.Get(ctx, Ref{Kind: KindDoctor, ID: uuid.New()})
	require.ErrorIs(t, err, ErrProviderNotFound)
}

type failingRepo struct{ MemoryRepository }

func (f *failingRepo) Get(context.Context, Ref) (*Provider, error) {
	return nil, errors.New("connection refused")
}

func TestServiceWrapsStoreFailures(t *testing.T) {
	svc := NewService(&failingRepo{}, nil)

	_, err := svc.Get(context.Background(), Ref{Kind: KindDoctor, ID: uuid.New()})
	require.ErrorIs(t, err, apperr.ErrInfrastructure)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("Doctors")
	require.NoError(t, err)
	assert.Equal(t, KindDoctor, k)

	k, err = ParseKind("service")
	require.NoError(t, err)
	assert.Equal(t, KindService, k)

	_, err = ParseKind("clinic")
	require.ErrorIs(t, err, apperr.ErrValidation)
}
