package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/clinic-appointment-booking/internal/db"
	"github.com/hackgods/clinic-appointment-booking/internal/schedule"
)

var tables = map[Kind]string{
	KindDoctor:  "doctors",
	KindService: "services",
}

const providerColumns = `id, name, category, fee, available, slot_calendar, created_at, updated_at`

type PgRepository struct {
	db db.Conn
}

func NewPgRepository(conn db.Conn) *PgRepository {
	if conn == nil {
		panic("provider: postgres connection required")
	}
	return &PgRepository{db: conn}
}

func tableFor(kind Kind) (string, error) {
	table, ok := tables[kind]
	if !ok {
		return "", fmt.Errorf("unknown provider kind %q", kind)
	}
	return table, nil
}

func scanProvider(row pgx.Row, kind Kind) (*Provider, error) {
	var p Provider
	var calendar []byte

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Category,
		&p.Fee,
		&p.Available,
		&calendar,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProviderNotFound
		}
		return nil, err
	}

	p.Kind = kind
	p.Calendar = schedule.NewCalendar()
	if len(calendar) > 0 {
		if err := json.Unmarshal(calendar, p.Calendar); err != nil {
			return nil, fmt.Errorf("decode slot calendar for %s: %w", p.ID, err)
		}
	}
	return &p, nil
}

func encodeCalendar(c *schedule.Calendar) ([]byte, error) {
	if c == nil {
		c = schedule.NewCalendar()
	}
	return json.Marshal(c)
}

func (r *PgRepository) Get(ctx context.Context, ref Ref) (*Provider, error) {
	table, err := tableFor(ref.Kind)
	if err != nil {
		return nil, err
	}
	row := r.db.QueryRow(ctx, `SELECT `+providerColumns+` FROM `+table+` WHERE id = $1`, ref.ID)
	return scanProvider(row, ref.Kind)
}

func (r *PgRepository) List(ctx context.Context, kind Kind) ([]Provider, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, `SELECT `+providerColumns+` FROM `+table+` ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Provider
	for rows.Next() {
		p, err := scanProvider(rows, kind)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) Create(ctx context.Context, p *Provider) (*Provider, error) {
	table, err := tableFor(p.Kind)
	if err != nil {
		return nil, err
	}
	calendar, err := encodeCalendar(p.Calendar)
	if err != nil {
		return nil, fmt.Errorf("encode slot calendar: %w", err)
	}
	id := p.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO `+table+` (id, name, category, fee, available, slot_calendar, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		RETURNING `+providerColumns,
		id, p.Name, p.Category, p.Fee, p.Available, calendar)
	return scanProvider(row, p.Kind)
}

func (r *PgRepository) Update(ctx context.Context, p *Provider) (*Provider, error) {
	table, err := tableFor(p.Kind)
	if err != nil {
		return nil, err
	}
	row := r.db.QueryRow(ctx, `
		UPDATE `+table+`
		SET name = $2,
		    category = $3,
		    fee = $4,
		    available = $5,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+providerColumns,
		p.ID, p.Name, p.Category, p.Fee, p.Available)
	return scanProvider(row, p.Kind)
}

func (r *PgRepository) SetAvailability(ctx context.Context, ref Ref, available bool) (*Provider, error) {
	table, err := tableFor(ref.Kind)
	if err != nil {
		return nil, err
	}
	row := r.db.QueryRow(ctx, `
		UPDATE `+table+`
		SET available = $2,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+providerColumns,
		ref.ID, available)
	return scanProvider(row, ref.Kind)
}

func (r *PgRepository) Delete(ctx context.Context, ref Ref) error {
	table, err := tableFor(ref.Kind)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM `+table+` WHERE id = $1`, ref.ID)
	if err != nil {
		return fmt.Errorf("delete %s: %w", ref, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProviderNotFound
	}
	return nil
}

func (r *PgRepository) UpdateCalendar(ctx context.Context, ref Ref, fn func(*schedule.Calendar) error) (*Provider, error) {
	table, err := tableFor(ref.Kind)
	if err != nil {
		return nil, err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin calendar update: %w", err)
	}

	// Row lock keeps concurrent admin edits of one calendar from losing writes.
	row := tx.QueryRow(ctx, `SELECT `+providerColumns+` FROM `+table+` WHERE id = $1 FOR UPDATE`, ref.ID)
	current, err := scanProvider(row, ref.Kind)
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, err
	}

	if err := fn(current.Calendar); err != nil {
		_ = tx.Rollback(ctx)
		return nil, err
	}

	calendar, err := encodeCalendar(current.Calendar)
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("encode slot calendar: %w", err)
	}

	row = tx.QueryRow(ctx, `
		UPDATE `+table+`
		SET slot_calendar = $2,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+providerColumns,
		ref.ID, calendar)
	updated, err := scanProvider(row, ref.Kind)
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit calendar update: %w", err)
	}
	return updated, nil
}
