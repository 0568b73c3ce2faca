// Package test provides store helpers for package tests.
package test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/recordabot/recorda/internal/profile"
	"github.com/recordabot/recorda/store"
	"github.com/recordabot/recorda/store/db"
)

// NewTestStore creates a migrated sqlite-backed store in a temp directory.
func NewTestStore(ctx context.Context, t *testing.T) *store.Store {
	p := &profile.Profile{
		Mode:   "dev",
		Driver: "sqlite",
		Data:   t.TempDir(),
	}
	require.NoError(t, p.Validate())

	driver, err := db.NewDBDriver(p)
	require.NoError(t, err)

	st := store.New(driver, p)
	require.NoError(t, st.Migrate(ctx))

	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}
