// Package storage provides byte-oriented backends for persisted partitions.
//
// A Store maps partition names to the raw payload bytes received from the
// upstream. Names are restricted to ASCII letters, digits, hyphens and
// underscores so every backend can use them verbatim as file names or keys.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrInvalidName is returned for names outside the allowed alphabet.
var ErrInvalidName = errors.New("invalid partition name")

type Store interface {
	// Get returns the stored bytes for name. found is false on a miss.
	Get(ctx context.Context, name string) (data []byte, found bool, err error)

	// Put stores data under name, replacing any previous value.
	Put(ctx context.Context, name string, data []byte) error

	// List returns the stored names starting with prefix, in no particular order.
	List(ctx context.Context, prefix string) ([]string, error)

	// Clear removes every stored partition.
	Clear(ctx context.Context) error
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name required", ErrInvalidName)
	}
	for _, c := range name {
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
			(c >= '0' && c <= '9') || c == '-' || c == '_') {
			return fmt.Errorf("%w %q: only alphanumeric, hyphens, and underscores allowed", ErrInvalidName, name)
		}
	}
	return nil
}
