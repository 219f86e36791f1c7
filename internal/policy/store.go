package policy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Dicklesworthstone/toolguard/internal/kv"
)

// SettingsKey is the KV key holding the user's settings override.
const SettingsKey = "security_settings"

// Store loads and saves SecuritySettings through a KV store.
type Store struct {
	kv kv.Store
}

// NewStore wraps a KV store.
func NewStore(store kv.Store) *Store {
	return &Store{kv: store}
}

// Load returns the saved settings, or the defaults when nothing is saved.
// Defaults are never written back. On a read or decode failure the defaults
// are returned together with the error.
func (s *Store) Load(ctx context.Context) (SecuritySettings, error) {
	if s == nil || s.kv == nil {
		return DefaultSettings(), nil
	}
	data, err := s.kv.Get(ctx, SettingsKey)
	if errors.Is(err, kv.ErrNotFound) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return DefaultSettings(), fmt.Errorf("loading security settings: %w", err)
	}

	// Fields missing from an older saved value keep their defaults.
	settings := DefaultSettings()
	if err := json.Unmarshal(data, &settings); err != nil {
		return DefaultSettings(), fmt.Errorf("decoding security settings: %w", err)
	}
	return settings, nil
}

// Save validates every pattern and persists the settings. Nothing is
// written if any pattern fails to compile; the returned error wraps
// ErrInvalidPattern with one entry per bad pattern.
func (s *Store) Save(ctx context.Context, settings SecuritySettings) error {
	if s == nil || s.kv == nil {
		return fmt.Errorf("saving security settings: no store configured")
	}
	if err := Validate(settings); err != nil {
		return err
	}
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encoding security settings: %w", err)
	}
	if err := s.kv.Set(ctx, SettingsKey, data); err != nil {
		return fmt.Errorf("saving security settings: %w", err)
	}
	return nil
}

// Reset deletes the saved override so Load returns the defaults again.
func (s *Store) Reset(ctx context.Context) error {
	if s == nil || s.kv == nil {
		return nil
	}
	if err := s.kv.Delete(ctx, SettingsKey); err != nil {
		return fmt.Errorf("resetting security settings: %w", err)
	}
	return nil
}

// Mutate loads the settings, applies fn and saves the result. A load
// failure aborts rather than overwriting the stored value with defaults.
func (s *Store) Mutate(ctx context.Context, fn func(*SecuritySettings) error) (SecuritySettings, error) {
	settings, err := s.Load(ctx)
	if err != nil {
		return settings, err
	}
	if err := fn(&settings); err != nil {
		return settings, err
	}
	if err := s.Save(ctx, settings); err != nil {
		return settings, err
	}
	return settings, nil
}

// Validate checks both pattern lists.
func Validate(settings SecuritySettings) error {
	var errs []error
	if err := JoinErrors(ValidatePatterns(settings.CommandAllowlist)); err != nil {
		errs = append(errs, fmt.Errorf("allowlist: %w", err))
	}
	if err := JoinErrors(ValidatePatterns(settings.CommandDenylist)); err != nil {
		errs = append(errs, fmt.Errorf("denylist: %w", err))
	}
	return errors.Join(errs...)
}
