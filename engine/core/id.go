package core

import (
	"fmt"
	"strings"

	"github.com/segmentio/ksuid"
)

// ID is a time-sortable unique identifier with a domain prefix, e.g.
// "idx_2bHq..." for indexes and "run_2bHr..." for generation runs.
type ID string

const (
	PrefixIndex = "idx"
	PrefixRun   = "run"
	PrefixDoc   = "doc"
)

// NewID generates a prefixed KSUID-based identifier.
func NewID(prefix string) (ID, error) {
	if strings.TrimSpace(prefix) == "" {
		return "", fmt.Errorf("core: id prefix is required")
	}
	uid, err := ksuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("core: generate id: %w", err)
	}
	return ID(prefix + "_" + uid.String()), nil
}

// MustNewID generates a prefixed identifier and panics on failure.
func MustNewID(prefix string) ID {
	id, err := NewID(prefix)
	if err != nil {
		panic(err)
	}
	return id
}

func (i ID) String() string {
	return string(i)
}

func (i ID) IsZero() bool {
	return i == ""
}

// Prefix returns the domain prefix portion of the identifier.
func (i ID) Prefix() string {
	if idx := strings.IndexByte(string(i), '_'); idx > 0 {
		return string(i)[:idx]
	}
	return ""
}
