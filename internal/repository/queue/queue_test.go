package queue

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/equipment-monitor/internal/config"
	domain "github.com/oshokin/equipment-monitor/internal/domain/equipment"
)

// newEvent builds a minimal event for queue tests.
func newEvent(equipmentID, state string) domain.Event {
	return domain.NewEvent(equipmentID, domain.SensorDoor, state, nil, time.Now().UTC())
}

// TestFileStore_LoadMissingAndCorrupt verifies missing or corrupt blobs yield an empty queue.
func TestFileStore_LoadMissingAndCorrupt(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	store := NewFileStore(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, store.Load(ctx))
	require.Zero(t, store.Len())

	path := filepath.Join(t.TempDir(), "corrupt.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), config.DefaultFilePermissions))

	store = NewFileStore(path)
	require.NoError(t, store.Load(ctx))
	require.Zero(t, store.Len())
}

// TestFileStore_AppendPersistsImmediately ensures an append survives a reload.
func TestFileStore_AppendPersistsImmediately(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "queue.json")

	store := NewFileStore(path)
	require.NoError(t, store.Load(ctx))

	e := newEvent("freezer-1", "on")
	require.NoError(t, store.Append(ctx, e))

	reloaded := NewFileStore(path)
	require.NoError(t, reloaded.Load(ctx))
	require.Equal(t, 1, reloaded.Len())

	got := reloaded.Snapshot()
	require.Equal(t, e.ID, got[0].ID)
	require.Equal(t, e.EquipmentID, got[0].EquipmentID)
}

// TestFileStore_SnapshotDoesNotClear verifies draining leaves the queue untouched.
func TestFileStore_SnapshotDoesNotClear(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "queue.json"))

	require.NoError(t, store.Append(ctx, newEvent("a", "on")))
	require.NoError(t, store.Append(ctx, newEvent("a", "off")))

	snapshot := store.Snapshot()
	require.Len(t, snapshot, 2)
	require.Equal(t, 2, store.Len())
}

// TestFileStore_CommitClearedKeepsLateAppends is the append-while-draining
// ordering rule: only the snapshotted prefix is removed.
func TestFileStore_CommitClearedKeepsLateAppends(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "queue.json")
	store := NewFileStore(path)

	require.NoError(t, store.Append(ctx, newEvent("a", "1")))
	require.NoError(t, store.Append(ctx, newEvent("a", "2")))

	snapshot := store.Snapshot()

	// Arrives between snapshot and commit.
	late := newEvent("a", "3")
	require.NoError(t, store.Append(ctx, late))

	require.NoError(t, store.CommitCleared(ctx, len(snapshot)))
	require.Equal(t, 1, store.Len())
	require.Equal(t, late.ID, store.Snapshot()[0].ID)

	// The persisted blob matches the in-memory queue.
	reloaded := NewFileStore(path)
	require.NoError(t, reloaded.Load(ctx))
	require.Equal(t, 1, reloaded.Len())
	require.Equal(t, late.ID, reloaded.Snapshot()[0].ID)
}

// TestFileStore_CommitClearedBounds checks negative and oversized counts.
func TestFileStore_CommitClearedBounds(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "queue.json"))

	require.Error(t, store.CommitCleared(ctx, -1))

	require.NoError(t, store.Append(ctx, newEvent("a", "1")))
	require.NoError(t, store.CommitCleared(ctx, 10))
	require.Zero(t, store.Len())
}

// TestFileStore_PersistFailureKeepsEvent verifies the in-memory queue stays
// the source of truth when the disk write fails.
func TestFileStore_PersistFailureKeepsEvent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	// A directory at the blob path makes WriteFile fail.
	dir := t.TempDir()
	store := NewFileStore(dir)

	e := newEvent("a", "1")
	require.Error(t, store.Append(ctx, e))
	require.Equal(t, 1, store.Len())
	require.Equal(t, e.ID, store.Snapshot()[0].ID)
}
