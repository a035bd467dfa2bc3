package provider

import (
	"context"
	"errors"

	"github.com/hackgods/clinic-appointment-booking/internal/schedule"
)

var ErrProviderNotFound = errors.New("provider not found")

// Repository persists providers and their slot calendars.
type Repository interface {
	Get(ctx context.Context, ref Ref) (*Provider, error)
	List(ctx context.Context, kind Kind) ([]Provider, error)
	Create(ctx context.Context, p *Provider) (*Provider, error)
	Update(ctx context.Context, p *Provider) (*Provider, error)
	SetAvailability(ctx context.Context, ref Ref, available bool) (*Provider, error)
	Delete(ctx context.Context, ref Ref) error

	// UpdateCalendar applies fn to the stored calendar while holding the
	// provider exclusively, persisting only when fn succeeds.
	UpdateCalendar(ctx context.Context, ref Ref, fn func(*schedule.Calendar) error) (*Provider, error)
}
