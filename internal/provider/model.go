package provider

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-appointment-booking/internal/apperr"
	"github.com/hackgods/clinic-appointment-booking/internal/schedule"
)

// Kind distinguishes doctors from standalone services. The two are stored and
// booked separately and never merged.
type Kind string

const (
	KindDoctor  Kind = "doctor"
	KindService Kind = "service"
)

func ParseKind(raw string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(raw))) {
	case KindDoctor, "doctors":
		return KindDoctor, nil
	case KindService, "services":
		return KindService, nil
	}
	return "", apperr.Invalid("provider_kind", fmt.Sprintf("%q must be doctor or service", raw))
}

// Ref identifies one provider of a given kind.
type Ref struct {
	Kind Kind      `json:"kind"`
	ID   uuid.UUID `json:"id"`
}

func (r Ref) String() string {
	return string(r.Kind) + ":" + r.ID.String()
}

// Provider is a doctor or service offering bookable time.
type Provider struct {
	ID        uuid.UUID          `json:"id"`
	Kind      Kind               `json:"kind"`
	Name      string             `json:"name"`
	Category  string             `json:"category,omitempty"`
	Fee       float64            `json:"fee"`
	Available bool               `json:"available"`
	Calendar  *schedule.Calendar `json:"slot_calendar"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

func (p *Provider) Ref() Ref {
	return Ref{Kind: p.Kind, ID: p.ID}
}

// Bookable reports whether new appointments may be made at all.
func (p *Provider) Bookable() bool {
	return p.Available
}

func (p *Provider) clone() *Provider {
	out := *p
	out.Calendar = p.Calendar.Clone()
	return &out
}

// Validate checks the fields an admin supplies.
func (p *Provider) Validate() error {
	verr := &apperr.ValidationError{}
	if _, err := ParseKind(string(p.Kind)); err != nil {
		verr.Merge(err)
	}
	if strings.TrimSpace(p.Name) == "" {
		verr.Add("name", "is required")
	}
	if p.Fee < 0 {
		verr.Add("fee", "must not be negative")
	}
	return verr.OrNil()
}
