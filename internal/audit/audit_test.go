package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "audit.db")
	store, err := Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAssignsIDAndTimestamp(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	err := store.Record(ctx, Entry{Action: "enable_service", ServiceName: "files", StatusCode: 200})
	require.NoError(t, err)

	entries, err := store.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotEmpty(t, entries[0].ID)
	assert.WithinDuration(t, time.Now(), entries[0].Timestamp, 5*time.Second)
	assert.Equal(t, "enable_service", entries[0].Action)
	assert.Equal(t, "files", entries[0].ServiceName)
}

func TestListFiltersByActionAndService(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, Entry{Action: "enable_service", ServiceName: "files"}))
	require.NoError(t, store.Record(ctx, Entry{Action: "disable_service", ServiceName: "files"}))
	require.NoError(t, store.Record(ctx, Entry{Action: "enable_service", ServiceName: "billing"}))

	byAction, err := store.List(ctx, Filter{Action: "enable_service"})
	require.NoError(t, err)
	assert.Len(t, byAction, 2)

	byService, err := store.List(ctx, Filter{ServiceName: "files"})
	require.NoError(t, err)
	assert.Len(t, byService, 2)

	byBoth, err := store.List(ctx, Filter{Action: "enable_service", ServiceName: "billing"})
	require.NoError(t, err)
	require.Len(t, byBoth, 1)
	assert.Equal(t, "billing", byBoth[0].ServiceName)
}

func TestListOrdersMostRecentFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	older := Entry{ID: "e1", Action: "enable_service", Timestamp: time.Now().Add(-time.Hour)}
	newer := Entry{ID: "e2", Action: "disable_service", Timestamp: time.Now()}
	require.NoError(t, store.Record(ctx, older))
	require.NoError(t, store.Record(ctx, newer))

	entries, err := store.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "e2", entries[0].ID)
	assert.Equal(t, "e1", entries[1].ID)
}

func TestListRespectsLimit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Record(ctx, Entry{Action: "enable_service"}))
	}

	entries, err := store.List(ctx, Filter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
