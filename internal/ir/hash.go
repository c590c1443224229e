package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix allows a future algorithm migration.
const (
	DomainEntry  = "cascade/entry/v1"
	DomainWindow = "cascade/window/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// EntryID computes a stable ID for an entry within a session. Writing the
// same entry twice yields the same ID, which the store uses for idempotency.
func EntryID(sessionID string, e Entry) (string, error) {
	canonical, err := MarshalCanonical(map[string]any{
		"session":   sessionID,
		"seq":       e.Seq,
		"message":   e.Message,
		"timestamp": int64(e.Timestamp),
		"severity":  string(e.Severity),
		"location":  e.Location,
		"component": e.Component,
	})
	if err != nil {
		return "", fmt.Errorf("EntryID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainEntry, canonical), nil
}

// WindowID computes a stable ID for a window within a session.
func WindowID(sessionID string, w Window) (string, error) {
	canonical, err := MarshalCanonical(map[string]any{
		"session": sessionID,
		"start":   int64(w.Start),
		"end":     int64(w.End),
		"label":   w.Label,
		"source":  string(w.Source),
	})
	if err != nil {
		return "", fmt.Errorf("WindowID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainWindow, canonical), nil
}
