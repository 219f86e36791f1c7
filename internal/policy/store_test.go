package policy_test

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/Dicklesworthstone/toolguard/internal/kv"
	"github.com/Dicklesworthstone/toolguard/internal/policy"
	"github.com/Dicklesworthstone/toolguard/internal/testutil"
)

func TestStoreLoadDefaultsWhenEmpty(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backing := testutil.NewTestKV(t)
	store := policy.NewStore(backing)

	got, err := store.Load(ctx)
	testutil.RequireNoError(t, err, "load")
	if !reflect.DeepEqual(got, policy.DefaultSettings()) {
		t.Fatalf("Load() = %+v, want defaults", got)
	}

	if _, err := backing.Get(ctx, policy.SettingsKey); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("defaults were written back: %v", err)
	}
}

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := policy.NewStore(testutil.NewTestKV(t))

	want := testutil.MakeSettings(
		testutil.WithAllow(`^make\b`),
		testutil.WithDeny(`\bshutdown\b`),
		testutil.WithAutoDenyCritical(true),
	)
	testutil.SaveSettings(t, store, want)

	got, err := store.Load(ctx)
	testutil.RequireNoError(t, err, "load")
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Load() = %+v, want %+v", got, want)
	}
}

func TestStoreSaveRejectsInvalidPatterns(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := policy.NewStore(kv.NewMemory())

	err := store.Save(ctx, testutil.MakeSettings(testutil.WithDeny("(unclosed")))
	if !errors.Is(err, policy.ErrInvalidPattern) {
		t.Fatalf("Save() error = %v, want ErrInvalidPattern", err)
	}

	got, err := store.Load(ctx)
	testutil.RequireNoError(t, err, "load")
	if !reflect.DeepEqual(got, policy.DefaultSettings()) {
		t.Fatal("invalid settings were persisted")
	}
}

func TestStoreResetRestoresDefaults(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := policy.NewStore(kv.NewMemory())
	testutil.SaveSettings(t, store, testutil.MakeSettings())

	testutil.RequireNoError(t, store.Reset(ctx), "reset")
	testutil.RequireNoError(t, store.Reset(ctx), "second reset")

	got, err := store.Load(ctx)
	testutil.RequireNoError(t, err, "load")
	if !reflect.DeepEqual(got, policy.DefaultSettings()) {
		t.Fatalf("Load() after reset = %+v, want defaults", got)
	}
}

func TestStoreLoadCorruptValue(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backing := kv.NewMemory()
	testutil.RequireNoError(t, backing.Set(ctx, policy.SettingsKey, []byte("{not json")), "set")

	got, err := policy.NewStore(backing).Load(ctx)
	if err == nil {
		t.Fatal("Load() of corrupt value returned no error")
	}
	if !reflect.DeepEqual(got, policy.DefaultSettings()) {
		t.Fatalf("Load() = %+v, want defaults alongside the error", got)
	}
}

func TestStoreLoadPartialValueKeepsDefaults(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backing := kv.NewMemory()
	data, err := json.Marshal(map[string]any{"autoDenyCritical": true})
	testutil.RequireNoError(t, err, "marshal")
	testutil.RequireNoError(t, backing.Set(ctx, policy.SettingsKey, data), "set")

	got, err := policy.NewStore(backing).Load(ctx)
	testutil.RequireNoError(t, err, "load")
	if !got.AutoDenyCritical || !got.AutoDenyPrivilegeEscalation || !got.RequireTypeToCritical {
		t.Fatalf("switches = %+v", got)
	}
	if len(got.CommandAllowlist) != len(policy.DefaultAllowlist) {
		t.Fatalf("allowlist = %v, want defaults", got.CommandAllowlist)
	}
}

func TestStoreLoadClosedBackend(t *testing.T) {
	t.Parallel()

	backing := kv.NewMemory()
	testutil.RequireNoError(t, backing.Close(), "close")

	got, err := policy.NewStore(backing).Load(context.Background())
	if err == nil {
		t.Fatal("Load() from closed store returned no error")
	}
	if !reflect.DeepEqual(got, policy.DefaultSettings()) {
		t.Fatal("Load() should fall back to defaults")
	}
}

func TestStoreMutate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := policy.NewStore(kv.NewMemory())

	got, err := store.Mutate(ctx, func(s *policy.SecuritySettings) error {
		s.CommandAllowlist = append(s.CommandAllowlist, `^make\b`)
		s.AutoDenyCritical = true
		return nil
	})
	testutil.RequireNoError(t, err, "mutate")
	testutil.RequireEqual(t, len(policy.DefaultAllowlist)+1, len(got.CommandAllowlist), "allowlist length")

	loaded, err := store.Load(ctx)
	testutil.RequireNoError(t, err, "load")
	if !reflect.DeepEqual(loaded, got) {
		t.Fatalf("Load() = %+v, want %+v", loaded, got)
	}

	stop := errors.New("stop")
	if _, err := store.Mutate(ctx, func(*policy.SecuritySettings) error { return stop }); !errors.Is(err, stop) {
		t.Fatalf("Mutate() error = %v, want %v", err, stop)
	}

	_, err = store.Mutate(ctx, func(s *policy.SecuritySettings) error {
		s.CommandDenylist = append(s.CommandDenylist, "[")
		return nil
	})
	if !errors.Is(err, policy.ErrInvalidPattern) {
		t.Fatalf("Mutate() error = %v, want ErrInvalidPattern", err)
	}
}
