package patient

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// record is the on-disk shape of one entry in the patients file.
type record struct {
	Name        string         `json:"name"`
	Age         int            `json:"age"`
	Gender      string         `json:"gender"`
	Conditions  []string       `json:"conditions"`
	Medications []string       `json:"medications"`
	Allergies   []string       `json:"allergies"`
	Vitals      map[string]any `json:"vitals"`
	RecentLabs  string         `json:"recent_labs"`
}

func (r record) profile(id string) *Profile {
	p := &Profile{
		ID:          id,
		Name:        r.Name,
		Age:         r.Age,
		Gender:      r.Gender,
		Conditions:  r.Conditions,
		Medications: r.Medications,
		Allergies:   r.Allergies,
		Vitals:      r.Vitals,
		RecentLabs:  r.RecentLabs,
	}
	p.Normalize()
	return p
}

// FileStore reads a JSON object keyed by patient id. The file is read on
// every lookup so edits are picked up without a restart.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Lookup(ctx context.Context, id string) (*Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrStoreUnavailable, s.path, err)
	}

	var db map[string]record
	if err := json.Unmarshal(data, &db); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", ErrStoreUnavailable, s.path, err)
	}

	rec, ok := db[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec.profile(id), nil
}
