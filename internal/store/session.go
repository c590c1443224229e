package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/cascade/internal/ir"
)

// Session describes one recorded run.
type Session struct {
	ID        string
	Name      string
	Mode      string
	StartedAt time.Time
	Meta      map[string]string

	// Entries and Windows are filled by ListSessions.
	Entries int
	Windows int
}

// SessionGenerator produces session IDs.
type SessionGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 session IDs.
// Stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

func marshalMeta(meta map[string]string) (string, error) {
	obj := make(map[string]any, len(meta))
	for k, v := range meta {
		obj[k] = v
	}
	data, err := ir.MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("marshal meta: %w", err)
	}
	return string(data), nil
}

func unmarshalMeta(s string) (map[string]string, error) {
	meta := map[string]string{}
	if err := json.Unmarshal([]byte(s), &meta); err != nil {
		return nil, fmt.Errorf("unmarshal meta: %w", err)
	}
	return meta, nil
}
