package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/clinic-appointment-booking/internal/db"
	"github.com/hackgods/clinic-appointment-booking/internal/provider"
	"github.com/hackgods/clinic-appointment-booking/internal/schedule"
)

// activeSlotIndex is the partial unique index over the effective slot of
// non-canceled appointments.
const activeSlotIndex = "appointments_active_slot_key"

const appointmentColumns = `id, provider_kind, provider_id, patient_id, patient_name, patient_age,
		patient_gender, patient_mobile, slot_date, slot_time, fee, payment_method, status,
		COALESCE(reschedule_date, ''), COALESCE(reschedule_time, ''), created_at, updated_at`

type PgRepository struct {
	db db.Conn
}

func NewPgRepository(conn db.Conn) *PgRepository {
	if conn == nil {
		panic("appointment: postgres connection required")
	}
	return &PgRepository{db: conn}
}

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var kind, slotDate, slotTime, payment, status, rescheduleDate, rescheduleTime string

	err := row.Scan(
		&a.ID,
		&kind,
		&a.Provider.ID,
		&a.Patient.ID,
		&a.Patient.Name,
		&a.Patient.Age,
		&a.Patient.Gender,
		&a.Patient.Mobile,
		&slotDate,
		&slotTime,
		&a.Fee,
		&payment,
		&status,
		&rescheduleDate,
		&rescheduleTime,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Provider.Kind = provider.Kind(kind)
	a.PaymentMethod = PaymentMethod(payment)
	a.Status = AppointmentStatus(status)

	slot, err := schedule.ParseSlot(slotDate, slotTime)
	if err != nil {
		return nil, fmt.Errorf("decode slot of appointment %s: %w", a.ID, err)
	}
	a.Slot = slot

	if rescheduleDate != "" {
		target, err := schedule.ParseSlot(rescheduleDate, rescheduleTime)
		if err != nil {
			return nil, fmt.Errorf("decode reschedule of appointment %s: %w", a.ID, err)
		}
		a.Reschedule = &target
	}
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Interface methods

func (r *PgRepository) Insert(ctx context.Context, a *Appointment) (*Appointment, error) {
	id := a.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO appointments (id, provider_kind, provider_id, patient_id, patient_name, patient_age,
			patient_gender, patient_mobile, slot_date, slot_time, fee, payment_method, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now(), now())
		RETURNING `+appointmentColumns,
		id, string(a.Provider.Kind), a.Provider.ID, a.Patient.ID, a.Patient.Name, a.Patient.Age,
		a.Patient.Gender, a.Patient.Mobile, a.Slot.Date.String(), a.Slot.Time.String(), a.Fee,
		string(a.PaymentMethod), string(a.Status))

	created, err := scanAppointment(row)
	if err != nil {
		if db.IsUniqueViolation(err, activeSlotIndex) {
			return nil, ErrSlotAlreadyTaken
		}
		return nil, fmt.Errorf("insert appointment: %w", err)
	}
	return created, nil
}

func (r *PgRepository) FindByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id)
	return scanAppointment(row)
}

func (r *PgRepository) FindByPatient(ctx context.Context, patientID string) ([]Appointment, error) {
	return r.List(ctx, Query{PatientID: patientID})
}

func (r *PgRepository) FindByProvider(ctx context.Context, ref provider.Ref) ([]Appointment, error) {
	return r.List(ctx, Query{Provider: &ref})
}

func (r *PgRepository) List(ctx context.Context, q Query) ([]Appointment, error) {
	var where []string
	var args []any
	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if q.PatientID != "" {
		add("patient_id = $%d", q.PatientID)
	}
	if q.Provider != nil {
		add("provider_kind = $%d", string(q.Provider.Kind))
		add("provider_id = $%d", q.Provider.ID)
	}
	if q.From != "" {
		add("effective_date >= $%d", q.From.String())
	}
	if q.To != "" {
		add("effective_date <= $%d", q.To.String())
	}

	sql := `SELECT ` + appointmentColumns + ` FROM appointments`
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	sql += ` ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return collectAppointments(rows)
}

func (r *PgRepository) FindActiveBySlot(ctx context.Context, ref provider.Ref, slot schedule.Slot) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE provider_kind = $1
		  AND provider_id = $2
		  AND effective_date = $3
		  AND effective_time = $4
		  AND status <> 'canceled'
		LIMIT 1
	`, string(ref.Kind), ref.ID, slot.Date.String(), slot.Time.String())
	return scanAppointment(row)
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns,
		id, string(to), string(from))

	updated, err := scanAppointment(row)
	if errors.Is(err, ErrAppointmentNotFound) {
		return nil, ErrStatusConflict
	}
	return updated, err
}

func (r *PgRepository) UpdateReschedule(ctx context.Context, id uuid.UUID, from AppointmentStatus, target schedule.Slot) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'rescheduled',
		    reschedule_date = $2,
		    reschedule_time = $3,
		    updated_at = now()
		WHERE id = $1
		  AND status = $4
		RETURNING `+appointmentColumns,
		id, target.Date.String(), target.Time.String(), string(from))

	updated, err := scanAppointment(row)
	switch {
	case errors.Is(err, ErrAppointmentNotFound):
		return nil, ErrStatusConflict
	case db.IsUniqueViolation(err, activeSlotIndex):
		return nil, ErrSlotAlreadyTaken
	}
	return updated, err
}

func (r *PgRepository) RegisterPatient(ctx context.Context, patientID string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO patients (id, created_at)
		VALUES ($1, now())
		ON CONFLICT (id) DO NOTHING
	`, patientID)
	if err != nil {
		return fmt.Errorf("register patient: %w", err)
	}
	return nil
}

func (r *PgRepository) CountPatients(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM patients`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count patients: %w", err)
	}
	return n, nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
