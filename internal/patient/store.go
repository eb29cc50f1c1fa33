// Package patient resolves patient identifiers into clinical profiles.
package patient

import (
	"context"
	"errors"
)

var (
	ErrNotFound         = errors.New("patient not found")
	ErrStoreUnavailable = errors.New("patient record store unavailable")
)

// Store looks up patient records. Implementations return ErrNotFound for an
// unknown identifier and wrap ErrStoreUnavailable when the backing store
// cannot be read.
type Store interface {
	Lookup(ctx context.Context, id string) (*Profile, error)
}
