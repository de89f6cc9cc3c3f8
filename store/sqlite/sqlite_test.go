package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/workforce-hub/store"
	"github.com/warp/workforce-hub/store/sqlite"
	"github.com/warp/workforce-hub/store/storetest"
)

func newMemoryStore(t *testing.T) store.Store {
	t.Helper()
	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestSQLite(t *testing.T) {
	storetest.Run(t, newMemoryStore)
}

func TestSQLite_SurvivesReopen(t *testing.T) {
	// GIVEN: a record written to a file-backed database
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "workforce.db")

	st, err := sqlite.New(path)
	require.NoError(t, err)
	require.NoError(t, st.SaveRecord(ctx, store.Record{
		ID: "rec-1", Kind: "overtime-requests", Status: "PENDING", IdempotencyKey: "sub-1",
		Payload: map[string]any{"totalHours": 4.5},
	}))
	require.NoError(t, st.Close())

	// WHEN: the database is reopened
	st, err = sqlite.New(path)
	require.NoError(t, err)
	defer st.Close()

	// THEN: the record and its key are still there
	got, err := st.GetRecord(ctx, "rec-1")
	require.NoError(t, err)
	assert.Equal(t, 4.5, got.Payload["totalHours"])

	exists, err := st.Exists(ctx, "sub-1")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, st.Reset(ctx))
	all, err := st.ListRecords(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, all)
}
