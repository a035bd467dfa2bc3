package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-appointment-booking/internal/appointment"
	"github.com/hackgods/clinic-appointment-booking/internal/apperr"
	"github.com/hackgods/clinic-appointment-booking/internal/provider"
	"github.com/hackgods/clinic-appointment-booking/internal/schedule"
)

type PatientDetails struct {
	Name   string `json:"name"`
	Age    int    `json:"age"`
	Gender string `json:"gender"`
	Mobile string `json:"mobile"`
}

type CreateAppointmentRequest struct {
	ProviderKind  string         `json:"provider_kind"`
	ProviderID    string         `json:"provider_id"`
	Date          string         `json:"date"`
	Time          string         `json:"time"`
	Patient       PatientDetails `json:"patient"`
	PaymentMethod string         `json:"payment_method"`
	Fee           *float64       `json:"fee,omitempty"`
}

type AppointmentResponse struct {
	ID             uuid.UUID      `json:"id"`
	ProviderKind   string         `json:"provider_kind"`
	ProviderID     uuid.UUID      `json:"provider_id"`
	PatientID      string         `json:"patient_id"`
	Patient        PatientDetails `json:"patient"`
	Date           string         `json:"date"`
	Time           string         `json:"time"`
	Display        string         `json:"display"`
	RescheduleDate string         `json:"reschedule_date,omitempty"`
	RescheduleTime string         `json:"reschedule_time,omitempty"`
	Fee            float64        `json:"fee"`
	PaymentMethod  string         `json:"payment_method"`
	Status         string         `json:"status"`
	StatusDerived  bool           `json:"status_derived,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func toAppointmentResponse(a appointment.Appointment) AppointmentResponse {
	resp := AppointmentResponse{
		ID:           a.ID,
		ProviderKind: string(a.Provider.Kind),
		ProviderID:   a.Provider.ID,
		PatientID:    a.Patient.ID,
		Patient: PatientDetails{
			Name:   a.Patient.Name,
			Age:    a.Patient.Age,
			Gender: a.Patient.Gender,
			Mobile: a.Patient.Mobile,
		},
		Date:          a.Slot.Date.String(),
		Time:          a.Slot.Time.String(),
		Display:       a.EffectiveSlot().Display(),
		Fee:           a.Fee,
		PaymentMethod: string(a.PaymentMethod),
		Status:        string(a.Status),
		StatusDerived: a.StatusDerived,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
	if a.Reschedule != nil {
		resp.RescheduleDate = a.Reschedule.Date.String()
		resp.RescheduleTime = a.Reschedule.Time.String()
	}
	return resp
}

func toAppointmentResponses(items []appointment.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(items))
	for _, a := range items {
		out = append(out, toAppointmentResponse(a))
	}
	return out
}

type AppointmentPageResponse struct {
	Items  []AppointmentResponse `json:"items"`
	Total  int                   `json:"total"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
}

type ProviderRequest struct {
	Name      string  `json:"name"`
	Category  string  `json:"category"`
	Fee       float64 `json:"fee"`
	Available *bool   `json:"available,omitempty"`
}

type ProviderResponse struct {
	ID        uuid.UUID          `json:"id"`
	Kind      string             `json:"kind"`
	Name      string             `json:"name"`
	Category  string             `json:"category,omitempty"`
	Fee       float64            `json:"fee"`
	Available bool               `json:"available"`
	Calendar  *schedule.Calendar `json:"slot_calendar"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

func toProviderResponse(p provider.Provider) ProviderResponse {
	return ProviderResponse{
		ID:        p.ID,
		Kind:      string(p.Kind),
		Name:      p.Name,
		Category:  p.Category,
		Fee:       p.Fee,
		Available: p.Available,
		Calendar:  p.Calendar,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

type AvailabilityRequest struct {
	Available *bool `json:"available"`
}

type AddDateRequest struct {
	Date string `json:"date"`
}

type AddSlotRequest struct {
	Time           string `json:"time"`
	AutoCreateDate bool   `json:"auto_create_date"`
}

type TransitionRequest struct {
	Status string `json:"status"`
}

type RescheduleRequest struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

type ErrorResponse struct {
	Error   string              `json:"error"`
	Details string              `json:"details,omitempty"`
	Fields  []apperr.FieldError `json:"fields,omitempty"`
}
