package patient

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

type postgresStore struct {
	db *sql.DB
}

// NewPostgresStore returns a Store backed by the patients table. A nil db
// is accepted so the service can start without a database; every lookup
// then reports ErrStoreUnavailable.
func NewPostgresStore(db *sql.DB) Store {
	return &postgresStore{db: db}
}

func (s *postgresStore) Lookup(ctx context.Context, id string) (*Profile, error) {
	if s.db == nil {
		return nil, fmt.Errorf("%w: no database connection", ErrStoreUnavailable)
	}

	query := `SELECT name, age, gender, conditions, medications, allergies, vitals, recent_labs FROM patients WHERE id = $1`

	var (
		rec                                            record
		age                                            sql.NullInt64
		gender, recentLabs                             sql.NullString
		conditionsJSON, medsJSON, allergiesJSON, vJSON []byte
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&rec.Name,
		&age,
		&gender,
		&conditionsJSON,
		&medsJSON,
		&allergiesJSON,
		&vJSON,
		&recentLabs,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	rec.Age = int(age.Int64)
	rec.Gender = gender.String
	rec.RecentLabs = recentLabs.String

	for _, col := range []struct {
		name string
		raw  []byte
		dst  any
	}{
		{"conditions", conditionsJSON, &rec.Conditions},
		{"medications", medsJSON, &rec.Medications},
		{"allergies", allergiesJSON, &rec.Allergies},
		{"vitals", vJSON, &rec.Vitals},
	} {
		if len(col.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(col.raw, col.dst); err != nil {
			return nil, fmt.Errorf("%w: failed to unmarshal %s: %w", ErrStoreUnavailable, col.name, err)
		}
	}

	return rec.profile(id), nil
}
