// Package store is the key-value persistence boundary. The core always
// serializes its own JSON; the store moves opaque strings. A stored value
// that no longer parses is treated as absent, never as an error, so a
// corrupt blob cannot brick the client.
package store

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotFound is returned by Get when no value exists for the key.
var ErrNotFound = errors.New("key not found")

// Store is get/set/remove over opaque string values.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// LoadJSON reads key and unmarshals it into dst. Absence and malformed
// payloads both report found=false; only real store failures surface.
func LoadJSON(ctx context.Context, s Store, key string, dst any) (bool, error) {
	raw, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if json.Unmarshal([]byte(raw), dst) != nil {
		return false, nil
	}
	return true, nil
}

// SaveJSON marshals v and writes it under key.
func SaveJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Set(ctx, key, string(raw))
}
