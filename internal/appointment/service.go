package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hackgods/clinic-appointment-booking/internal/apperr"
	"github.com/hackgods/clinic-appointment-booking/internal/observability/metrics"
	"github.com/hackgods/clinic-appointment-booking/internal/provider"
	redisclient "github.com/hackgods/clinic-appointment-booking/internal/redis"
	"github.com/hackgods/clinic-appointment-booking/internal/schedule"
	"github.com/hackgods/clinic-appointment-booking/pkg/logging"
)

const (
	EventAppointmentCreated     = "APPOINTMENT_CREATED"
	EventAppointmentConfirmed   = "APPOINTMENT_CONFIRMED"
	EventAppointmentCanceled    = "APPOINTMENT_CANCELED"
	EventAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
	EventAppointmentCompleted   = "APPOINTMENT_COMPLETED"
)

var (
	ErrUnauthenticated      = errors.New("authenticated patient required")
	ErrProviderUnavailable  = errors.New("provider is not accepting bookings")
	ErrUnknownSlot          = errors.New("slot is not offered by provider")
	ErrSlotAlreadyTaken     = errors.New("slot already has an active appointment")
	ErrPatientCancelPending = errors.New("patients may only cancel pending appointments")
)

var tracer = otel.Tracer("clinic.internal.appointment")

// ProviderReader is the read side of the provider store the orchestrator needs.
type ProviderReader interface {
	Get(ctx context.Context, ref provider.Ref) (*provider.Provider, error)
}

type Service struct {
	repo      Repository
	providers ProviderReader
	locker    redisclient.Locker
	clock     schedule.Clock
	logger    *logging.Logger
	metrics   *metrics.BookingMetrics
}

func NewService(repo Repository, providers ProviderReader, locker redisclient.Locker, clock schedule.Clock, logger *logging.Logger, m *metrics.BookingMetrics) *Service {
	if repo == nil || providers == nil {
		panic("appointment: repository and provider reader required")
	}
	if locker == nil {
		locker = redisclient.NewLocalSlotLocker()
	}
	if clock == nil {
		clock = schedule.SystemClock{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:      repo,
		providers: providers,
		locker:    locker,
		clock:     clock,
		logger:    logger,
		metrics:   m,
	}
}

// CreateRequest carries raw booking input; the service normalises it.
type CreateRequest struct {
	Provider      provider.Ref
	Patient       Patient
	Date          string
	Time          string
	Fee           *float64
	PaymentMethod string
}

func slotKey(ref provider.Ref, slot schedule.Slot) string {
	return fmt.Sprintf("%s:%s:%s:%s", ref.Kind, ref.ID, slot.Date, slot.Time)
}

// CreateAppointment books a slot for the authenticated patient.
// The occupied-slot check and insert run under a per-slot lock, and the store
// rejects a duplicate active slot on its own, so concurrent requests for one
// slot yield exactly one appointment.
func (s *Service) CreateAppointment(ctx context.Context, patientID string, req CreateRequest) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointment.create")
	defer span.End()
	start := time.Now()
	defer func() { s.metrics.ObserveLatency("create", time.Since(start).Seconds()) }()

	appt, err := s.createAppointment(ctx, patientID, req)
	outcome := outcomeOf(err)
	s.metrics.ObserveBooking(kindLabel(req.Provider.Kind), outcome)
	if err != nil {
		span.RecordError(err)
		s.logger.Info("booking rejected",
			"provider_kind", req.Provider.Kind,
			"provider_id", req.Provider.ID,
			"outcome", outcome,
			"error", err.Error(),
		)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("clinic.appointment_id", appt.ID.String()),
		attribute.String("clinic.provider", req.Provider.String()),
	)
	return appt, nil
}

func (s *Service) createAppointment(ctx context.Context, patientID string, req CreateRequest) (*Appointment, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return nil, ErrUnauthenticated
	}

	verr := &apperr.ValidationError{}
	verr.Merge(req.Patient.Validate())
	if kind, err := provider.ParseKind(string(req.Provider.Kind)); err != nil {
		verr.Merge(err)
	} else {
		req.Provider.Kind = kind
	}
	if req.Provider.ID == uuid.Nil {
		verr.Add("provider_id", "is required")
	}
	slot, err := schedule.ParseSlot(req.Date, req.Time)
	verr.Merge(err)
	payment, err := ParsePaymentMethod(req.PaymentMethod)
	verr.Merge(err)
	if req.Fee != nil && *req.Fee < 0 {
		verr.Add("fee", "must not be negative")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	p, err := s.providers.Get(ctx, req.Provider)
	if err != nil {
		if errors.Is(err, provider.ErrProviderNotFound) {
			return nil, fmt.Errorf("%w: %s does not exist", ErrProviderUnavailable, req.Provider)
		}
		return nil, apperr.Infra("load provider", err)
	}
	if !p.Bookable() {
		return nil, fmt.Errorf("%w: %s", ErrProviderUnavailable, p.Name)
	}
	if req.Fee != nil && *req.Fee != p.Fee {
		return nil, apperr.Invalid("fee", fmt.Sprintf("%.2f does not match the current fee %.2f", *req.Fee, p.Fee))
	}
	if p.Calendar == nil || !p.Calendar.HasSlot(slot.Date, slot.Time) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSlot, slot)
	}

	now := s.clock.Now()
	if err := schedule.CheckBookable(slot, now); err != nil {
		return nil, err
	}

	req.Patient.ID = patientID
	req.Patient.Name = strings.TrimSpace(req.Patient.Name)
	req.Patient.Gender = strings.TrimSpace(req.Patient.Gender)
	candidate := &Appointment{
		ID:            uuid.New(),
		Provider:      p.Ref(),
		Patient:       req.Patient,
		Slot:          slot,
		Fee:           p.Fee,
		PaymentMethod: payment,
		Status:        StatusPending,
	}

	var created *Appointment
	err = s.locker.WithSlotLock(ctx, slotKey(candidate.Provider, slot), func(lockCtx context.Context) error {
		// Inside the critical section re-check for an active appointment on this slot
		existing, err := s.repo.FindActiveBySlot(lockCtx, candidate.Provider, slot)
		if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
			return apperr.Infra("check active appointment", err)
		}
		if existing != nil {
			return ErrSlotAlreadyTaken
		}

		appt, err := s.repo.Insert(lockCtx, candidate)
		if err != nil {
			if errors.Is(err, ErrSlotAlreadyTaken) {
				return err
			}
			return apperr.Infra("insert appointment", err)
		}
		created = appt
		return nil
	})
	if err != nil {
		return nil, s.lockErr(err)
	}

	if err := s.repo.RegisterPatient(ctx, patientID); err != nil {
		s.logger.Warn("failed to register patient", "patient_id", patientID, "error", err.Error())
	}

	s.logEvent(ctx, created.ID, EventAppointmentCreated, map[string]any{
		"provider_kind":  created.Provider.Kind,
		"provider_id":    created.Provider.ID.String(),
		"patient_id":     patientID,
		"slot":           created.Slot.String(),
		"fee":            created.Fee,
		"payment_method": created.PaymentMethod,
	})
	s.logger.Info("appointment created",
		"appointment_id", created.ID,
		"provider_kind", created.Provider.Kind,
		"provider_id", created.Provider.ID,
		"slot", created.Slot.String(),
	)

	projected := Project(*created, now)
	return &projected, nil
}

// lockErr maps locker failures. A lock still held after waiting means another
// request is booking the same slot, which the caller sees as taken.
func (s *Service) lockErr(err error) error {
	switch {
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		return fmt.Errorf("%w: slot is being booked by another request", ErrSlotAlreadyTaken)
	case errors.Is(err, ErrSlotAlreadyTaken), errors.Is(err, apperr.ErrInfrastructure):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return apperr.Infra("slot lock", err)
}

// AdminTransition applies an explicit status change. The caller is assumed to
// be authorised to manage the appointment.
func (s *Service) AdminTransition(ctx context.Context, id uuid.UUID, to AppointmentStatus, actingAdminID string) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointment.transition")
	defer span.End()
	span.SetAttributes(attribute.String("clinic.appointment_id", id.String()), attribute.String("clinic.to", string(to)))

	appt, err := s.transition(ctx, id, to, actingAdminID)
	s.metrics.ObserveTransition(statusLabel(to), outcomeOf(err))
	if err != nil {
		span.RecordError(err)
	}
	return appt, err
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, to AppointmentStatus, actor string) (*Appointment, error) {
	appt, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if err := CheckTransition(*appt, to, now); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateStatus(ctx, id, appt.Status, to)
	if err != nil {
		if errors.Is(err, ErrStatusConflict) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTransition, err)
		}
		return nil, apperr.Infra("update appointment status", err)
	}

	s.logEvent(ctx, id, eventFor(to), map[string]any{
		"from":  appt.Status,
		"to":    to,
		"actor": actor,
	})
	s.logger.Info("appointment status changed",
		"appointment_id", id,
		"from", appt.Status,
		"to", to,
		"actor", actor,
	)

	projected := Project(*updated, now)
	return &projected, nil
}

// Cancel cancels an appointment on behalf of an admin. Cancelling an already
// canceled appointment succeeds without change.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, actingAdminID string) (*Appointment, error) {
	appt, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.Status == StatusCanceled {
		return appt, nil
	}

	updated, err := s.AdminTransition(ctx, id, StatusCanceled, actingAdminID)
	if errors.Is(err, ErrInvalidTransition) {
		// Lost a race; another writer may have canceled first.
		if again, loadErr := s.load(ctx, id); loadErr == nil && again.Status == StatusCanceled {
			return again, nil
		}
	}
	return updated, err
}

// CancelByPatient lets a patient withdraw their own pending appointment.
func (s *Service) CancelByPatient(ctx context.Context, id uuid.UUID, patientID string) (*Appointment, error) {
	if strings.TrimSpace(patientID) == "" {
		return nil, ErrUnauthenticated
	}
	appt, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.Patient.ID != patientID {
		return nil, ErrAppointmentNotFound
	}
	if appt.Status == StatusCanceled {
		return appt, nil
	}
	if err := CheckTransition(*appt, StatusCanceled, s.clock.Now()); err != nil {
		return nil, err
	}
	if appt.Status != StatusPending {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTransition, ErrPatientCancelPending)
	}
	return s.AdminTransition(ctx, id, StatusCanceled, "patient:"+patientID)
}

// Reschedule moves a pending or confirmed appointment to a new date and time,
// keeping the committed slot and recording the target alongside it.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, rawDate, rawTime, actingAdminID string) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointment.reschedule")
	defer span.End()

	appt, err := s.reschedule(ctx, id, rawDate, rawTime, actingAdminID)
	s.metrics.ObserveTransition(string(StatusRescheduled), outcomeOf(err))
	if err != nil {
		span.RecordError(err)
	}
	return appt, err
}

func (s *Service) reschedule(ctx context.Context, id uuid.UUID, rawDate, rawTime, actor string) (*Appointment, error) {
	target, err := schedule.ParseSlot(rawDate, rawTime)
	if err != nil {
		return nil, err
	}
	appt, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if err := CheckReschedule(*appt, target, now); err != nil {
		return nil, err
	}

	var updated *Appointment
	err = s.locker.WithSlotLock(ctx, slotKey(appt.Provider, target), func(lockCtx context.Context) error {
		existing, err := s.repo.FindActiveBySlot(lockCtx, appt.Provider, target)
		if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
			return apperr.Infra("check active appointment", err)
		}
		if existing != nil && existing.ID != appt.ID {
			return ErrSlotAlreadyTaken
		}

		u, err := s.repo.UpdateReschedule(lockCtx, id, appt.Status, target)
		switch {
		case err == nil:
			updated = u
			return nil
		case errors.Is(err, ErrSlotAlreadyTaken):
			return err
		case errors.Is(err, ErrStatusConflict):
			return fmt.Errorf("%w: %v", ErrInvalidTransition, err)
		}
		return apperr.Infra("update reschedule", err)
	})
	if err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			return nil, err
		}
		return nil, s.lockErr(err)
	}

	s.logEvent(ctx, id, EventAppointmentRescheduled, map[string]any{
		"from":   appt.Status,
		"slot":   appt.Slot.String(),
		"target": target.String(),
		"actor":  actor,
	})
	s.logger.Info("appointment rescheduled",
		"appointment_id", id,
		"slot", appt.Slot.String(),
		"target", target.String(),
		"actor", actor,
	)

	projected := Project(*updated, now)
	return &projected, nil
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, apperr.Infra("load appointment", err)
	}
	return appt, nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("failed to marshal event payload", "event_type", eventType, "error", err.Error())
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.logger.Error("failed to insert event log", "event_type", eventType, "appointment_id", appointmentID, "error", err.Error())
	}
}

func eventFor(to AppointmentStatus) string {
	switch to {
	case StatusConfirmed:
		return EventAppointmentConfirmed
	case StatusCanceled:
		return EventAppointmentCanceled
	case StatusCompleted:
		return EventAppointmentCompleted
	default:
		return EventAppointmentRescheduled
	}
}

// kindLabel and statusLabel keep metric label values to the known set.
func kindLabel(k provider.Kind) string {
	kind, err := provider.ParseKind(string(k))
	if err != nil {
		return "invalid"
	}
	return string(kind)
}

func statusLabel(to AppointmentStatus) string {
	status, err := ParseStatus(string(to))
	if err != nil {
		return "invalid"
	}
	return string(status)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperr.ErrValidation):
		return "invalid"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrProviderUnavailable):
		return "provider_unavailable"
	case errors.Is(err, ErrUnknownSlot):
		return "unknown_slot"
	case errors.Is(err, schedule.ErrSlotInPast), errors.Is(err, ErrPastSlot):
		return "past"
	case errors.Is(err, ErrSlotAlreadyTaken):
		return "slot_taken"
	case errors.Is(err, ErrTerminalState):
		return "terminal"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrAppointmentNotFound):
		return "not_found"
	default:
		return "error"
	}
}
