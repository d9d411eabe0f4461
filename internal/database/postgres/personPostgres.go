package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Kodanda10/iConnect-sub000/internal/dates"
	"github.com/Kodanda10/iConnect-sub000/internal/entity"
)

const personColumns = `id, name, mobile, dob, anniversary, ward, block, gram_panchayat, created_at, updated_at`

type personRepository struct {
	db  *sql.DB
	loc *time.Location
}

// NewPersonRepository needs the civil timezone to index timestamp dates.
func NewPersonRepository(db *sql.DB, loc *time.Location) PersonRepository {
	return &personRepository{db: db, loc: loc}
}

func (r *personRepository) Upsert(ctx context.Context, person *entity.Person) error {
	if strings.TrimSpace(person.ID) == "" || strings.TrimSpace(person.Name) == "" {
		return entity.ErrInvalidPerson
	}

	// index columns are rewritten on every write, NULL when the date is gone or invalid
	idx := person.Index(r.loc)

	query := `
		INSERT INTO persons (id, name, mobile, dob, anniversary, ward, block, gram_panchayat,
			dob_month, dob_day, anniversary_month, anniversary_day, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			mobile = EXCLUDED.mobile,
			dob = EXCLUDED.dob,
			anniversary = EXCLUDED.anniversary,
			ward = EXCLUDED.ward,
			block = EXCLUDED.block,
			gram_panchayat = EXCLUDED.gram_panchayat,
			dob_month = EXCLUDED.dob_month,
			dob_day = EXCLUDED.dob_day,
			anniversary_month = EXCLUDED.anniversary_month,
			anniversary_day = EXCLUDED.anniversary_day,
			updated_at = EXCLUDED.updated_at
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		person.ID,
		person.Name,
		person.Mobile,
		person.Dob,
		person.Anniversary,
		person.Ward,
		person.Block,
		person.GramPanchayat,
		idx.DobMonth,
		idx.DobDay,
		idx.AnniversaryMonth,
		idx.AnniversaryDay,
		time.Now(),
	).Scan(&person.CreatedAt, &person.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert person %s: %w", person.ID, err)
	}
	return nil
}

func (r *personRepository) GetByID(ctx context.Context, id string) (*entity.Person, error) {
	query := `SELECT ` + personColumns + ` FROM persons WHERE id = $1`

	person, err := scanPerson(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrPersonNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get person %s: %w", id, err)
	}
	return person, nil
}

func (r *personRepository) GetAll(ctx context.Context) ([]*entity.Person, error) {
	query := `SELECT ` + personColumns + ` FROM persons ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query persons: %w", err)
	}
	defer rows.Close()

	return scanPersons(rows)
}

// GetByMonthDay returns persons whose birthday or anniversary falls on any of days.
func (r *personRepository) GetByMonthDay(ctx context.Context, days []dates.MonthDay) ([]*entity.Person, error) {
	if len(days) == 0 {
		return nil, nil
	}

	conds := make([]string, 0, len(days)*2)
	args := make([]interface{}, 0, len(days)*2)
	for i, md := range days {
		m, d := i*2+1, i*2+2
		conds = append(conds,
			fmt.Sprintf("(dob_month = $%d AND dob_day = $%d)", m, d),
			fmt.Sprintf("(anniversary_month = $%d AND anniversary_day = $%d)", m, d),
		)
		args = append(args, int(md.Month), md.Day)
	}

	query := `SELECT ` + personColumns + ` FROM persons WHERE ` + strings.Join(conds, " OR ") + ` ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query persons by month/day: %w", err)
	}
	defer rows.Close()

	return scanPersons(rows)
}

// GetByAudience resolves a broadcast audience. Only persons with a mobile number are returned.
func (r *personRepository) GetByAudience(ctx context.Context, audience entity.AudienceType, value string) ([]*entity.Person, error) {
	query := `SELECT ` + personColumns + ` FROM persons WHERE mobile <> ''`
	var args []interface{}

	switch audience {
	case entity.AudienceAll:
	case entity.AudienceBlock:
		query += ` AND block = $1`
		args = append(args, value)
	case entity.AudienceGP:
		query += ` AND gram_panchayat = $1`
		args = append(args, value)
	default:
		return nil, fmt.Errorf("%w: unknown audience %q", entity.ErrInvalidInput, audience)
	}
	query += ` ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audience %s: %w", audience, err)
	}
	defer rows.Close()

	return scanPersons(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPerson(row rowScanner) (*entity.Person, error) {
	var p entity.Person
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Mobile,
		&p.Dob,
		&p.Anniversary,
		&p.Ward,
		&p.Block,
		&p.GramPanchayat,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanPersons(rows *sql.Rows) ([]*entity.Person, error) {
	var persons []*entity.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan person: %w", err)
		}
		persons = append(persons, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate persons: %w", err)
	}
	return persons, nil
}
