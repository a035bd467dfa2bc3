package appointment

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-appointment-booking/internal/apperr"
	"github.com/hackgods/clinic-appointment-booking/internal/provider"
	"github.com/hackgods/clinic-appointment-booking/internal/schedule"
)

type AppointmentStatus string

const (
	StatusPending     AppointmentStatus = "pending"
	StatusConfirmed   AppointmentStatus = "confirmed"
	StatusCompleted   AppointmentStatus = "completed"
	StatusCanceled    AppointmentStatus = "canceled"
	StatusRescheduled AppointmentStatus = "rescheduled"
)

func ParseStatus(raw string) (AppointmentStatus, error) {
	s := AppointmentStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCanceled, StatusRescheduled:
		return s, nil
	case "cancelled":
		return StatusCanceled, nil
	}
	return "", apperr.Invalid("status", fmt.Sprintf("%q is not a known status", raw))
}

// Terminal reports whether no transition may leave s.
func (s AppointmentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCanceled
}

type PaymentMethod string

const (
	PaymentCash          PaymentMethod = "Cash"
	PaymentNotApplicable PaymentMethod = "NotApplicable"
)

func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "cash":
		return PaymentCash, nil
	case "notapplicable", "not_applicable", "none":
		return PaymentNotApplicable, nil
	case "":
		return "", apperr.Invalid("payment_method", "is required")
	}
	return "", apperr.Invalid("payment_method", fmt.Sprintf("%q must be Cash or NotApplicable", raw))
}

// Patient holds the identity id plus the details typed in at booking time.
type Patient struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Age    int    `json:"age"`
	Gender string `json:"gender"`
	Mobile string `json:"mobile"`
}

// Validate enumerates every missing or malformed patient field.
func (p Patient) Validate() error {
	verr := &apperr.ValidationError{}
	if strings.TrimSpace(p.Name) == "" {
		verr.Add("name", "is required")
	}
	if !isTenDigits(p.Mobile) {
		verr.Add("mobile", "must be exactly 10 digits")
	}
	if p.Age <= 0 {
		verr.Add("age", "must be a positive integer")
	}
	if strings.TrimSpace(p.Gender) == "" {
		verr.Add("gender", "is required")
	}
	return verr.OrNil()
}

func isTenDigits(s string) bool {
	if len(s) != 10 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

type Appointment struct {
	ID            uuid.UUID         `json:"id"`
	Provider      provider.Ref      `json:"provider"`
	Patient       Patient           `json:"patient"`
	Slot          schedule.Slot     `json:"slot"`
	Fee           float64           `json:"fee"`
	PaymentMethod PaymentMethod     `json:"payment_method"`
	Status        AppointmentStatus `json:"status"`
	Reschedule    *schedule.Slot    `json:"reschedule,omitempty"`
	// StatusDerived is set when Status was projected at read time rather than stored.
	StatusDerived bool      `json:"status_derived,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// EffectiveSlot is where the appointment takes place: the reschedule target
// when one was recorded, otherwise the committed slot.
func (a Appointment) EffectiveSlot() schedule.Slot {
	if a.Reschedule != nil {
		return *a.Reschedule
	}
	return a.Slot
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
