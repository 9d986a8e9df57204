// Package lock serializes reservations of the same products so that the availability
// check and the insert of a rental are not interleaved with another writer.
package lock

import (
	"context"
	"sort"

	"musicstore-backend/internal/domain"
)

// Locker acquires every key or none. The returned release func must be called exactly once.
type Locker interface {
	Acquire(ctx context.Context, keys []string) (release func(), err error)
}

func contended(key string, cause error) error {
	return &domain.AppError{
		Type:    domain.ErrorTypeConflict,
		Message: "another reservation for the same equipment is in progress, please retry",
		Err:     &keyError{key: key, cause: cause},
	}
}

type keyError struct {
	key   string
	cause error
}

func (e *keyError) Error() string {
	if e.cause != nil {
		return domain.ErrReservationContended.Error() + " on " + e.key + ": " + e.cause.Error()
	}
	return domain.ErrReservationContended.Error() + " on " + e.key
}

func (e *keyError) Is(target error) bool {
	return target == domain.ErrReservationContended
}

func (e *keyError) Unwrap() error {
	return e.cause
}

// normalize sorts and de-duplicates keys so every caller locks in the same order
func normalize(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
