package appointment

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-appointment-booking/internal/provider"
	"github.com/hackgods/clinic-appointment-booking/internal/schedule"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	// ErrStatusConflict means the stored status no longer matched the expected one.
	ErrStatusConflict = errors.New("appointment status changed concurrently")
)

// Query narrows a listing. Zero fields do not filter. From and To bound the
// effective date inclusively.
type Query struct {
	PatientID string
	Provider  *provider.Ref
	From      schedule.Date
	To        schedule.Date
}

// Repository contains all DB interactions needed by the service.
// Insert and UpdateReschedule must fail with ErrSlotAlreadyTaken when another
// non-canceled appointment of the same provider occupies the effective slot;
// this check is atomic with the write.
type Repository interface {
	Insert(ctx context.Context, a *Appointment) (*Appointment, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	FindByPatient(ctx context.Context, patientID string) ([]Appointment, error)
	FindByProvider(ctx context.Context, ref provider.Ref) ([]Appointment, error)
	List(ctx context.Context, q Query) ([]Appointment, error)

	// For conflict checks
	FindActiveBySlot(ctx context.Context, ref provider.Ref, slot schedule.Slot) (*Appointment, error)

	// Compare-and-set updates; ErrStatusConflict when the status moved underneath.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)
	UpdateReschedule(ctx context.Context, id uuid.UUID, from AppointmentStatus, target schedule.Slot) (*Appointment, error)

	// Patient registry
	RegisterPatient(ctx context.Context, patientID string) error
	CountPatients(ctx context.Context) (int64, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
