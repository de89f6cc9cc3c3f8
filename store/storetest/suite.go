// Package storetest holds the behaviour every store.Store must share.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/workforce-hub/store"
)

// Run exercises a fresh store returned by newStore.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("save and get", func(t *testing.T) {
		ctx := context.Background()
		st := newStore(t)

		rec := store.Record{
			ID:             "rec-1",
			Kind:           "leave-requests",
			Status:         "PENDING",
			IdempotencyKey: "sub-1",
			Payload:        map[string]any{"leaveType": "Annual Leave", "reason": "Family trip"},
			CreatedAt:      time.Date(2025, 5, 8, 9, 0, 0, 0, time.UTC),
		}
		require.NoError(t, st.SaveRecord(ctx, rec))

		got, err := st.GetRecord(ctx, "rec-1")
		require.NoError(t, err)
		assert.Equal(t, "leave-requests", got.Kind)
		assert.Equal(t, "sub-1", got.IdempotencyKey)
		assert.Equal(t, "Annual Leave", got.Payload["leaveType"])
		assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))

		_, err = st.GetRecord(ctx, "missing")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("duplicate idempotency key", func(t *testing.T) {
		// GIVEN: a record saved under key sub-1
		ctx := context.Background()
		st := newStore(t)
		require.NoError(t, st.SaveRecord(ctx, store.Record{ID: "a", Kind: "k", Status: "PENDING", IdempotencyKey: "sub-1"}))

		// WHEN: the same submission is replayed under a new record id
		err := st.SaveRecord(ctx, store.Record{ID: "b", Kind: "k", Status: "PENDING", IdempotencyKey: "sub-1"})

		// THEN: it is rejected and nothing is added
		assert.ErrorIs(t, err, store.ErrDuplicateIdempotencyKey)
		exists, err := st.Exists(ctx, "sub-1")
		require.NoError(t, err)
		assert.True(t, exists)
		all, err := st.ListRecords(ctx, "")
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("records without key never collide", func(t *testing.T) {
		ctx := context.Background()
		st := newStore(t)
		require.NoError(t, st.SaveRecord(ctx, store.Record{ID: "a", Kind: "k", Status: "PENDING"}))
		require.NoError(t, st.SaveRecord(ctx, store.Record{ID: "b", Kind: "k", Status: "PENDING"}))

		exists, err := st.Exists(ctx, "")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("list newest first by kind", func(t *testing.T) {
		ctx := context.Background()
		st := newStore(t)
		base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
		for i, kind := range []string{"leave-requests", "overtime-requests", "leave-requests"} {
			require.NoError(t, st.SaveRecord(ctx, store.Record{
				ID:        string(rune('a' + i)),
				Kind:      kind,
				Status:    "PENDING",
				CreatedAt: base.Add(time.Duration(i) * time.Hour),
			}))
		}

		leave, err := st.ListRecords(ctx, "leave-requests")
		require.NoError(t, err)
		require.Len(t, leave, 2)
		assert.Equal(t, "c", leave[0].ID)
		assert.Equal(t, "a", leave[1].ID)

		all, err := st.ListRecords(ctx, "")
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("reset clears records and keys", func(t *testing.T) {
		ctx := context.Background()
		st := newStore(t)
		require.NoError(t, st.SaveRecord(ctx, store.Record{ID: "r1", Kind: "leave-requests", IdempotencyKey: "k1", CreatedAt: time.Now()}))

		require.NoError(t, st.Reset(ctx))

		all, err := st.ListRecords(ctx, "")
		require.NoError(t, err)
		assert.Empty(t, all)
		exists, err := st.Exists(ctx, "k1")
		require.NoError(t, err)
		assert.False(t, exists)
		require.NoError(t, st.SaveRecord(ctx, store.Record{ID: "r1", Kind: "leave-requests", IdempotencyKey: "k1", CreatedAt: time.Now()}))
	})
}
