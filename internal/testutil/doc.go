// Package testutil provides shared test helpers and fixtures for toolguard.
//
// Philosophy:
// - Prefer real SQLite (no mocks) for correctness.
// - Keep helpers small, composable, and deterministic.
// - Register cleanup via t.Cleanup so tests stay leak-free.
//
// Most packages should start with:
//
//	store := testutil.NewTestKV(t)
//	settings := testutil.MakeSettings(testutil.WithAllow(`^git\b`))
package testutil
