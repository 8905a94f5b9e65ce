package sessions

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/services/browser"
)

func newTestPool(t *testing.T, maxSessions int) *Pool {
	t.Helper()
	pool := NewPool(&common.SessionsConfig{
		IdleTTL:       "5m",
		SweepInterval: "1m",
		MaxSessions:   maxSessions,
	}, arbor.NewLogger())
	t.Cleanup(pool.Stop)
	return pool
}

// newIdleDriver returns a driver that was never started; Close on it is safe,
// so pool bookkeeping can be exercised without a browser process.
func newIdleDriver() *browser.Driver {
	return browser.NewDriver(&common.CrawlerConfig{}, arbor.NewLogger())
}

func TestCreateGeneratesID(t *testing.T) {
	pool := newTestPool(t, 0)

	id, err := pool.Create("", newIdleDriver())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "sess_"))
	assert.Equal(t, 1, pool.Count())
}

func TestCreateWithExplicitID(t *testing.T) {
	pool := newTestPool(t, 0)

	id, err := pool.Create("sess_custom", newIdleDriver())
	require.NoError(t, err)
	assert.Equal(t, "sess_custom", id)

	info, err := pool.Get(id)
	require.NoError(t, err)
	assert.Equal(t, id, info.ID)
	assert.False(t, info.CreatedAt.IsZero())
}

func TestCreateOverExistingReplacesSession(t *testing.T) {
	pool := newTestPool(t, 0)

	_, err := pool.Create("sess_x", newIdleDriver())
	require.NoError(t, err)
	_, err = pool.Create("sess_x", newIdleDriver())
	require.NoError(t, err)
	assert.Equal(t, 1, pool.Count())
}

func TestPoolFull(t *testing.T) {
	pool := newTestPool(t, 1)

	_, err := pool.Create("", newIdleDriver())
	require.NoError(t, err)

	_, err = pool.Create("", newIdleDriver())
	assert.ErrorIs(t, err, ErrPoolFull)

	_, err = pool.Create("sess_y", newIdleDriver())
	assert.ErrorIs(t, err, ErrPoolFull)
}

func TestGetUnknownSession(t *testing.T) {
	pool := newTestPool(t, 0)

	_, err := pool.Get("sess_missing")
	assert.ErrorIs(t, err, ErrSessionGone)
}

func TestAcquireAndRelease(t *testing.T) {
	pool := newTestPool(t, 0)
	driver := newIdleDriver()

	id, err := pool.Create("", driver)
	require.NoError(t, err)

	got, release, err := pool.Acquire(id)
	require.NoError(t, err)
	assert.Same(t, driver, got)
	release()

	// the session is still live after release
	_, release, err = pool.Acquire(id)
	require.NoError(t, err)
	release()
}

func TestAcquireUnknownSession(t *testing.T) {
	pool := newTestPool(t, 0)

	_, _, err := pool.Acquire("sess_missing")
	assert.ErrorIs(t, err, ErrSessionGone)
}

func TestAcquireSerializesOperations(t *testing.T) {
	pool := newTestPool(t, 0)
	id, err := pool.Create("", newIdleDriver())
	require.NoError(t, err)

	_, release, err := pool.Acquire(id)
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		_, secondRelease, err := pool.Acquire(id)
		if err == nil {
			secondRelease()
		}
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire must block until the first release")
	case <-time.After(50 * time.Millisecond):
	}

	release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second acquire never completed after release")
	}
}

func TestUpdateMetadata(t *testing.T) {
	pool := newTestPool(t, 0)
	id, err := pool.Create("", newIdleDriver())
	require.NoError(t, err)

	require.NoError(t, pool.UpdateMetadata(id, map[string]interface{}{"login": "done"}))
	require.NoError(t, pool.UpdateMetadata(id, map[string]interface{}{"page": 3}))

	info, err := pool.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "done", info.Metadata["login"])
	assert.Equal(t, 3, info.Metadata["page"])

	assert.ErrorIs(t, pool.UpdateMetadata("sess_missing", nil), ErrSessionGone)
}

func TestCloseSession(t *testing.T) {
	pool := newTestPool(t, 0)
	id, err := pool.Create("", newIdleDriver())
	require.NoError(t, err)

	require.NoError(t, pool.Close(id))
	assert.Zero(t, pool.Count())

	_, err = pool.Get(id)
	assert.ErrorIs(t, err, ErrSessionGone)
	assert.ErrorIs(t, pool.Close(id), ErrSessionGone)
}

func TestCloseAll(t *testing.T) {
	pool := newTestPool(t, 0)
	for i := 0; i < 3; i++ {
		_, err := pool.Create("", newIdleDriver())
		require.NoError(t, err)
	}

	pool.CloseAll()
	assert.Zero(t, pool.Count())
}

func TestSweepEvictsIdleSessions(t *testing.T) {
	pool := newTestPool(t, 0)

	idle, err := pool.Create("", newIdleDriver())
	require.NoError(t, err)
	fresh, err := pool.Create("", newIdleDriver())
	require.NoError(t, err)

	// age only the idle session past the TTL
	pool.mu.Lock()
	pool.sessions[idle].info.LastUsedAt = time.Now().Add(-10 * time.Minute)
	pool.mu.Unlock()

	pool.sweep(time.Now())

	_, err = pool.Get(idle)
	assert.ErrorIs(t, err, ErrSessionGone)
	_, err = pool.Get(fresh)
	assert.NoError(t, err)
}

func TestGetBumpsLastUsed(t *testing.T) {
	pool := newTestPool(t, 0)
	id, err := pool.Create("", newIdleDriver())
	require.NoError(t, err)

	pool.mu.Lock()
	pool.sessions[id].info.LastUsedAt = time.Now().Add(-10 * time.Minute)
	pool.mu.Unlock()

	_, err = pool.Get(id)
	require.NoError(t, err)

	// the touch keeps the session alive through the next sweep
	pool.sweep(time.Now())
	_, err = pool.Get(id)
	assert.NoError(t, err)
}
