package monitor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/vburojevic/nginv/internal/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func appendTo(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func testSites(t *testing.T) ([]domain.Site, string, string) {
	t.Helper()
	dir := t.TempDir()
	access := filepath.Join(dir, "tangram_access.log")
	errLog := filepath.Join(dir, "tangram_error.log")
	appendTo(t, access, "")
	appendTo(t, errLog, "")
	return []domain.Site{
		{Label: "tangram", AccessPath: access, ErrorPath: errLog},
		{Label: "ghost", AccessPath: filepath.Join(dir, "missing.log")},
	}, access, errLog
}

func TestMonitorPollFeedsAggregator(t *testing.T) {
	sites, access, errLog := testSites(t)
	m := New(sites, Options{})
	m.Poll()

	appendTo(t, access, `10.0.0.1 - - [01/Mar/2025:12:00:00 +0000] "GET / HTTP/1.1" 200 512`+"\n")
	appendTo(t, access, `10.0.0.2 - - [01/Mar/2025:12:00:01 +0000] "GET /missing HTTP/1.1" 404 0`+"\n")
	appendTo(t, errLog, `2025/03/01 12:00:02 [error] 1#1: *7 open() failed`+"\n")
	m.Poll()

	snap := m.Tick()
	site, ok := snap.Site("tangram")
	require.True(t, ok)
	assert.Equal(t, int64(2), site.Interval.Requests)
	assert.Equal(t, int64(512), site.Interval.Bytes)
	assert.Equal(t, int64(2), site.Interval.Errors)
	assert.True(t, site.AccessAvailable)
	assert.True(t, site.ErrorAvailable)
	require.Len(t, site.RecentErrors, 2)
	assert.Equal(t, "[error] open() failed", site.RecentErrors[1].Summary)

	ghost, ok := snap.Site("ghost")
	require.True(t, ok)
	assert.False(t, ghost.AccessAvailable)
	assert.False(t, ghost.HasError)

	after, _ := m.Snapshot().Site("tangram")
	assert.Equal(t, domain.Counters{}, after.Interval)
	assert.Equal(t, int64(2), after.Totals.Requests)
}

func TestMonitorReset(t *testing.T) {
	sites, access, _ := testSites(t)
	m := New(sites, Options{})
	m.Poll()
	for i := 0; i < 10; i++ {
		appendTo(t, access, `10.0.0.1 - - [01/Mar/2025:12:00:00 +0000] "GET / HTTP/1.1" 500 1`+"\n")
	}
	m.Poll()

	m.Reset()
	site, _ := m.Snapshot().Site("tangram")
	assert.Equal(t, domain.Counters{}, site.Totals)
	assert.Empty(t, site.RecentErrors)
	assert.True(t, site.AccessAvailable)
}

func TestMonitorStates(t *testing.T) {
	sites, _, _ := testSites(t)
	m := New(sites, Options{})
	m.Poll()

	states := m.States()
	require.Len(t, states, 3)
	assert.True(t, states[0].Available)
	assert.True(t, states[1].Available)
	assert.False(t, states[2].Available)
}

func TestMonitorStartStop(t *testing.T) {
	sites, access, _ := testSites(t)
	m := New(sites, Options{PollInterval: 5 * time.Millisecond})

	require.NoError(t, m.Start(context.Background()))
	require.ErrorIs(t, m.Start(context.Background()), ErrAlreadyRunning)

	require.Eventually(t, func() bool {
		site, _ := m.Snapshot().Site("tangram")
		return site.AccessAvailable
	}, time.Second, 5*time.Millisecond)

	appendTo(t, access, `10.0.0.1 - - [01/Mar/2025:12:00:00 +0000] "GET / HTTP/1.1" 200 1`+"\n")
	require.Eventually(t, func() bool {
		return m.Snapshot().Grand.Totals.Requests == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, m.Stop())
	require.NoError(t, m.Stop(), "stopping twice is a no-op")
}

func TestMonitorStopsWithParentContext(t *testing.T) {
	sites, _, _ := testSites(t)
	m := New(sites, Options{PollInterval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, m.Start(ctx))
	cancel()
	require.NoError(t, m.Stop())
}
