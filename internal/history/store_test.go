package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rconsole-project/rconsole/internal/events"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_appendAndRecent(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Append(Entry{Server: "127.0.0.1:27015", Command: "status", Reply: "ok\n", DurationMs: 12}))
	require.NoError(t, s.Append(Entry{Server: "127.0.0.1:27015", Command: "maps", Error: "timed out"}))

	entries, err := s.Recent(10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "maps", entries[0].Command, "newest first")
	assert.False(t, entries[0].OK())
	assert.Equal(t, "status", entries[1].Command)
	assert.True(t, entries[1].OK())
	assert.Equal(t, int64(12), entries[1].DurationMs)
	assert.False(t, entries[1].ExecutedAt.IsZero())
}

func TestStore_recentHonorsLimit(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Append(Entry{Server: "s", Command: "cmd"}))
	}

	entries, err := s.Recent(3)
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	n, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}

func TestStore_search(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Append(Entry{Server: "s", Command: "kick player1"}))
	require.NoError(t, s.Append(Entry{Server: "s", Command: "status"}))
	require.NoError(t, s.Append(Entry{Server: "s", Command: "kick player2"}))

	entries, err := s.Search("kick", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "kick player2", entries[0].Command)
}

func TestStore_prune(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Append(Entry{Server: "s", Command: "old", ExecutedAt: time.Now().Add(-48 * time.Hour)}))
	require.NoError(t, s.Append(Entry{Server: "s", Command: "fresh"}))

	removed, err := s.Prune(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	entries, err := s.Recent(10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "fresh", entries[0].Command)
}

func TestStore_attachRecordsBusEvents(t *testing.T) {
	s := newTestStore(t)
	bus := events.NewBus()
	s.Attach(bus)

	bus.Emit(context.Background(), events.Event{
		Type:   events.EventCommandExecuted,
		Source: "rcon",
		Payload: events.CommandPayload{
			Address:  "127.0.0.1:27015",
			Command:  "status",
			Reply:    "ok\n",
			Duration: 15 * time.Millisecond,
		},
	})
	bus.Emit(context.Background(), events.Event{
		Type:   events.EventCommandFailed,
		Source: "rcon",
		Payload: events.CommandPayload{
			Address: "127.0.0.1:27015",
			Command: "maps",
			Error:   "timed out",
		},
	})
	bus.Stop()

	entries, err := s.Recent(10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "maps", entries[0].Command)
	assert.Equal(t, "timed out", entries[0].Error)
	assert.Equal(t, "status", entries[1].Command)
	assert.Equal(t, int64(15), entries[1].DurationMs)
}
