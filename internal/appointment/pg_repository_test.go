package appointment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-appointment-booking/internal/provider"
	"github.com/hackgods/clinic-appointment-booking/internal/schedule"
)

var appointmentRowColumns = []string{
	"id", "provider_kind", "provider_id", "patient_id", "patient_name", "patient_age",
	"patient_gender", "patient_mobile", "slot_date", "slot_time", "fee", "payment_method", "status",
	"reschedule_date", "reschedule_time", "created_at", "updated_at",
}

func sampleAppointment() *Appointment {
	return &Appointment{
		ID:            uuid.New(),
		Provider:      provider.Ref{Kind: provider.KindDoctor, ID: uuid.New()},
		Patient:       Patient{ID: "patient-1", Name: "Asha Verma", Age: 34, Gender: "female", Mobile: "9876543210"},
		Slot:          schedule.Slot{Date: schedule.MustDate("2025-06-20"), Time: schedule.MustTime("10:00")},
		Fee:           800,
		PaymentMethod: PaymentCash,
		Status:        StatusPending,
	}
}

func rowFor(a *Appointment, rescheduleDate, rescheduleTime string) *pgxmock.Rows {
	now := time.Now().UTC()
	return pgxmock.NewRows(appointmentRowColumns).AddRow(
		a.ID, string(a.Provider.Kind), a.Provider.ID, a.Patient.ID, a.Patient.Name, a.Patient.Age,
		a.Patient.Gender, a.Patient.Mobile, a.Slot.Date.String(), a.Slot.Time.String(), a.Fee,
		string(a.PaymentMethod), string(a.Status), rescheduleDate, rescheduleTime, now, now,
	)
}

func TestPgRepositoryInsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	a := sampleAppointment()
	mock.ExpectQuery(`INSERT INTO appointments`).
		WithArgs(a.ID, "doctor", a.Provider.ID, "patient-1", "Asha Verma", 34, "female", "9876543210",
			"2025-06-20", "10:00", 800.0, "Cash", "pending").
		WillReturnRows(rowFor(a, "", ""))

	got, err := NewPgRepository(mock).Insert(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, a.Slot, got.Slot)
	assert.Nil(t, got.Reschedule)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositoryInsertMapsActiveSlotViolation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`INSERT INTO appointments`).
		WithArgs(insertArgs()...).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: activeSlotIndex})

	_, err = NewPgRepository(mock).Insert(context.Background(), sampleAppointment())
	require.ErrorIs(t, err, ErrSlotAlreadyTaken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositoryInsertOtherUniqueViolation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`INSERT INTO appointments`).
		WithArgs(insertArgs()...).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "appointments_pkey"})

	_, err = NewPgRepository(mock).Insert(context.Background(), sampleAppointment())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrSlotAlreadyTaken))
	var pgErr *pgconn.PgError
	require.ErrorAs(t, err, &pgErr)
	assert.Equal(t, "appointments_pkey", pgErr.ConstraintName)
	require.NoError(t, mock.ExpectationsWereMet())
}

// insertArgs matches the thirteen columns written by Insert.
func insertArgs() []any {
	args := make([]any, 13)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func TestPgRepositoryFindByIDDecodesReschedule(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	a := sampleAppointment()
	a.Status = StatusRescheduled
	mock.ExpectQuery(`FROM appointments WHERE id = \$1`).
		WithArgs(a.ID).
		WillReturnRows(rowFor(a, "2025-06-22", "11:30"))

	got, err := NewPgRepository(mock).FindByID(context.Background(), a.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Reschedule)
	assert.Equal(t, schedule.MustTime("11:30"), got.Reschedule.Time)
	assert.Equal(t, schedule.MustDate("2025-06-22"), got.EffectiveSlot().Date)
}

func TestPgRepositoryFindByIDNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery(`FROM appointments WHERE id = \$1`).WithArgs(id).WillReturnError(pgx.ErrNoRows)

	_, err = NewPgRepository(mock).FindByID(context.Background(), id)
	require.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestPgRepositoryListBuildsFilters(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	a := sampleAppointment()
	mock.ExpectQuery(`WHERE provider_kind = \$1 AND provider_id = \$2 AND effective_date >= \$3 ORDER BY created_at DESC`).
		WithArgs("doctor", a.Provider.ID, "2025-06-01").
		WillReturnRows(rowFor(a, "", ""))

	ref := a.Provider
	got, err := NewPgRepository(mock).List(context.Background(), Query{Provider: &ref, From: schedule.MustDate("2025-06-01")})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositoryUpdateStatusConflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery(`UPDATE appointments`).
		WithArgs(id, "confirmed", "pending").
		WillReturnError(pgx.ErrNoRows)

	_, err = NewPgRepository(mock).UpdateStatus(context.Background(), id, StatusPending, StatusConfirmed)
	require.ErrorIs(t, err, ErrStatusConflict)
}

func TestPgRepositoryUpdateRescheduleTaken(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery(`UPDATE appointments`).
		WithArgs(id, "2025-06-22", "11:30", "confirmed").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: activeSlotIndex})

	target := schedule.Slot{Date: schedule.MustDate("2025-06-22"), Time: schedule.MustTime("11:30")}
	_, err = NewPgRepository(mock).UpdateReschedule(context.Background(), id, StatusConfirmed, target)
	require.ErrorIs(t, err, ErrSlotAlreadyTaken)
}

func TestPgRepositoryRegisterAndCountPatients(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO patients`).WithArgs("patient-1").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM patients`).WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(7)))

	repo := NewPgRepository(mock)
	require.NoError(t, repo.RegisterPatient(context.Background(), "patient-1"))
	n, err := repo.CountPatients(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 7, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositoryInsertEvent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectExec(`INSERT INTO event_logs`).
		WithArgs(EventAppointmentCreated, &id, []byte(`{}`), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = NewPgRepository(mock).InsertEvent(context.Background(), EventLog{
		EventType:     EventAppointmentCreated,
		AppointmentID: &id,
		Payload:       []byte(`{}`),
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
