package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-appointment-booking/internal/schedule"
)

var providerRowColumns = []string{"id", "name", "category", "fee", "available", "slot_calendar", "created_at", "updated_at"}

func TestPgRepositoryGetDecodesCalendar(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT id, name, category, fee, available, slot_calendar, created_at, updated_at FROM services WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(providerRowColumns).
			AddRow(id, "Blood Panel", "Diagnostics", 500.0, true, []byte(`{"2025-07-01":["10:00","09:00"]}`), now, now))

	repo := NewPgRepository(mock)
	p, err := repo.Get(context.Background(), Ref{Kind: KindService, ID: id})
	require.NoError(t, err)

	assert.Equal(t, KindService, p.Kind)
	assert.Equal(t, 500.0, p.Fee)
	assert.Equal(t,
		[]schedule.TimeOfDay{schedule.MustTime("09:00"), schedule.MustTime("10:00")},
		p.Calendar.Slots(schedule.MustDate("2025-07-01")))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositoryGetNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery(`FROM doctors WHERE id = \$1`).WithArgs(id).WillReturnError(pgx.ErrNoRows)

	_, err = NewPgRepository(mock).Get(context.Background(), Ref{Kind: KindDoctor, ID: id})
	require.ErrorIs(t, err, ErrProviderNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositoryUpdateCalendarCommits(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM doctors WHERE id = \$1 FOR UPDATE`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(providerRowColumns).
			AddRow(id, "Dr. Rao", "Cardiology", 800.0, true, []byte(`{}`), now, now))
	mock.ExpectQuery(`UPDATE doctors\s+SET slot_calendar = \$2`).
		WithArgs(id, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(providerRowColumns).
			AddRow(id, "Dr. Rao", "Cardiology", 800.0, true, []byte(`{"2025-07-01":[]}`), now, now))
	mock.ExpectCommit()

	repo := NewPgRepository(mock)
	p, err := repo.UpdateCalendar(context.Background(), Ref{Kind: KindDoctor, ID: id}, func(c *schedule.Calendar) error {
		return c.AddDate(schedule.MustDate("2025-07-01"))
	})
	require.NoError(t, err)
	assert.True(t, p.Calendar.HasDate(schedule.MustDate("2025-07-01")))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositoryUpdateCalendarRollsBackOnMutationError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(providerRowColumns).
			AddRow(id, "Dr. Rao", "", 800.0, true, []byte(`{"2025-07-01":[]}`), now, now))
	mock.ExpectRollback()

	_, err = NewPgRepository(mock).UpdateCalendar(context.Background(), Ref{Kind: KindDoctor, ID: id}, func(c *schedule.Calendar) error {
		return c.AddDate(schedule.MustDate("2025-07-01"))
	})
	require.ErrorIs(t, err, schedule.ErrDuplicateDate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositoryDelete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	found, missing := uuid.New(), uuid.New()
	mock.ExpectExec(`DELETE FROM services WHERE id = \$1`).WithArgs(found).WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM services WHERE id = \$1`).WithArgs(missing).WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`DELETE FROM services`).WithArgs(pgxmock.AnyArg()).WillReturnError(errors.New("conn reset"))

	repo := NewPgRepository(mock)
	require.NoError(t, repo.Delete(context.Background(), Ref{Kind: KindService, ID: found}))
	require.ErrorIs(t, repo.Delete(context.Background(), Ref{Kind: KindService, ID: missing}), ErrProviderNotFound)
	require.Error(t, repo.Delete(context.Background(), Ref{Kind: KindService, ID: uuid.New()}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositoryRejectsUnknownKind(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewPgRepository(mock).Get(context.Background(), Ref{Kind: "nurse", ID: uuid.New()})
	require.Error(t, err)
}
