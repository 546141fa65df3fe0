package ratelimit

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T, max int, window time.Duration) *Store {
	t.Helper()
	store, err := OpenStore(filepath.Join(t.TempDir(), "state.db"), max, window)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_AllowsWithinBudget(t *testing.T) {
	store := testStore(t, 3, time.Minute)

	for i := 0; i < 3; i++ {
		allowed, err := store.Allow("Stop")
		require.NoError(t, err)
		assert.True(t, allowed, "call %d should be allowed", i+1)
	}

	allowed, err := store.Allow("Stop")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestStore_WindowReset(t *testing.T) {
	store := testStore(t, 1, time.Minute)
	current := time.Unix(5000, 0)
	store.now = func() time.Time { return current }

	allowed, err := store.Allow("Stop")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = store.Allow("Stop")
	require.NoError(t, err)
	assert.False(t, allowed)

	current = current.Add(61 * time.Second)
	allowed, err = store.Allow("Stop")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestStore_CountersSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	store, err := OpenStore(path, 2, time.Minute)
	require.NoError(t, err)
	allowed, err := store.Allow("Stop")
	require.NoError(t, err)
	assert.True(t, allowed)
	allowed, err = store.Allow("Stop")
	require.NoError(t, err)
	assert.True(t, allowed)
	require.NoError(t, store.Close())

	// A fresh process sees the same window state
	store, err = OpenStore(path, 2, time.Minute)
	require.NoError(t, err)
	defer store.Close()

	allowed, err = store.Allow("Stop")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestStore_PerHookCounters(t *testing.T) {
	store := testStore(t, 1, time.Minute)

	allowed, _ := store.Allow("Stop")
	assert.True(t, allowed)
	allowed, _ = store.Allow("Stop")
	assert.False(t, allowed)
	allowed, _ = store.Allow("SessionStart")
	assert.True(t, allowed)
}
