package tailer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vburojevic/nginv/internal/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type ingested struct {
	label string
	kind  domain.SourceKind
	ev    domain.Event
}

type fakeSink struct {
	mu        sync.Mutex
	events    []ingested
	available map[domain.SourceKind]bool
	changes   int
}

func newFakeSink() *fakeSink {
	return &fakeSink{available: make(map[domain.SourceKind]bool)}
}

func (s *fakeSink) Ingest(label string, kind domain.SourceKind, ev domain.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ingested{label: label, kind: kind, ev: ev})
}

func (s *fakeSink) SetAvailable(_ string, kind domain.SourceKind, available bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.available[kind] = available
	s.changes++
}

func (s *fakeSink) paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, in := range s.events {
		if ev, ok := in.ev.(domain.AccessEvent); ok {
			out = append(out, ev.Path)
		}
	}
	return out
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func (s *fakeSink) isAvailable(kind domain.SourceKind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.available[kind]
}

func accessLine(path string) string {
	return `192.0.2.1 - - [01/Mar/2025:12:00:00 +0000] "GET ` + path + ` HTTP/1.1" 200 10` + "\n"
}

func appendTo(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func newTestTailer(t *testing.T, opts ...Option) (*Tailer, *fakeSink, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tangram_access.log")
	sink := newFakeSink()
	tl := New(domain.Source{Label: "tangram", Path: path, Kind: domain.SourceAccess}, sink, opts...)
	t.Cleanup(tl.Close)
	return tl, sink, path
}

func TestFirstOpenSkipsHistory(t *testing.T) {
	tl, sink, path := newTestTailer(t)
	appendTo(t, path, accessLine("/old"))

	tl.Poll()
	assert.Empty(t, sink.paths())
	assert.True(t, sink.isAvailable(domain.SourceAccess))

	appendTo(t, path, accessLine("/new"))
	tl.Poll()
	assert.Equal(t, []string{"/new"}, sink.paths())

	state := tl.State()
	assert.True(t, state.Available)
	assert.Equal(t, state.Size, state.Offset)
	assert.Equal(t, int64(1), state.Lines)
}

func TestPartialLinesAreHeldBack(t *testing.T) {
	tl, sink, path := newTestTailer(t)
	appendTo(t, path, "")
	tl.Poll()

	line := accessLine("/joined")
	appendTo(t, path, line[:20])
	tl.Poll()
	assert.Empty(t, sink.paths())
	assert.Equal(t, 20, tl.State().Partial)

	appendTo(t, path, line[20:])
	tl.Poll()
	assert.Equal(t, []string{"/joined"}, sink.paths())
	assert.Equal(t, 0, tl.State().Partial)
}

func TestCarriageReturnIsTrimmed(t *testing.T) {
	tl, sink, path := newTestTailer(t)
	appendTo(t, path, "")
	tl.Poll()

	appendTo(t, path, strings.TrimSuffix(accessLine("/crlf"), "\n")+"\r\n")
	tl.Poll()
	assert.Equal(t, []string{"/crlf"}, sink.paths())
}

func TestMalformedLinesDoNotStopTailing(t *testing.T) {
	tl, sink, path := newTestTailer(t)
	appendTo(t, path, "")
	tl.Poll()

	appendTo(t, path, "garbage\n\x00\xff\n"+accessLine("/after"))
	tl.Poll()

	assert.Equal(t, 3, sink.count())
	assert.Equal(t, []string{"/after"}, sink.paths())
	assert.Equal(t, int64(2), tl.State().Malformed)
}

func TestOversizedLinesAreDropped(t *testing.T) {
	tl, sink, path := newTestTailer(t, WithMaxLineBytes(16))
	appendTo(t, path, "")
	tl.Poll()

	appendTo(t, path, strings.Repeat("x", 40))
	tl.Poll()
	assert.Equal(t, 0, tl.State().Partial)

	appendTo(t, path, strings.Repeat("y", 10)+"\nshort\n")
	tl.Poll()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.events, 1, "only the short line survives")
}

func TestTruncationInPlace(t *testing.T) {
	tl, sink, path := newTestTailer(t)
	appendTo(t, path, "")
	tl.Poll()

	appendTo(t, path, accessLine("/one")+accessLine("/two"))
	tl.Poll()
	require.Equal(t, []string{"/one", "/two"}, sink.paths())

	require.NoError(t, os.WriteFile(path, []byte(accessLine("/x")), 0o644))
	tl.Poll()

	assert.Equal(t, []string{"/one", "/two", "/x"}, sink.paths())
	assert.Equal(t, 1, tl.State().Truncates)
}

func TestRotationContinuity(t *testing.T) {
	tl, sink, path := newTestTailer(t)
	appendTo(t, path, "")
	tl.Poll()

	appendTo(t, path, accessLine("/a"))
	tl.Poll()

	rotated := path + ".1"
	require.NoError(t, os.Rename(path, rotated))
	// written after the rename but before the next poll
	appendTo(t, rotated, accessLine("/b"))
	appendTo(t, path, accessLine("/c"))

	tl.Poll()
	assert.Equal(t, []string{"/a", "/b", "/c"}, sink.paths())
	assert.Equal(t, 1, tl.State().Rotations)
	assert.True(t, tl.State().Available)
}

func TestFileDisappearsAndReturns(t *testing.T) {
	tl, sink, path := newTestTailer(t)
	appendTo(t, path, "")
	tl.Poll()
	appendTo(t, path, accessLine("/a"))

	require.NoError(t, os.Remove(path))
	tl.Poll()
	assert.Equal(t, []string{"/a"}, sink.paths(), "unread lines of the removed file are drained")
	assert.False(t, sink.isAvailable(domain.SourceAccess))
	assert.False(t, tl.State().Available)

	tl.Poll()
	assert.False(t, sink.isAvailable(domain.SourceAccess))

	appendTo(t, path, accessLine("/b"))
	tl.Poll()
	assert.Equal(t, []string{"/a", "/b"}, sink.paths(), "a returning file is read from the start")
	assert.True(t, sink.isAvailable(domain.SourceAccess))
}

func TestMissingFileAtStart(t *testing.T) {
	tl, sink, path := newTestTailer(t)

	tl.Poll()
	tl.Poll()
	assert.False(t, tl.State().Available)
	assert.Equal(t, 0, sink.changes, "availability starts false and is only reported on change")

	appendTo(t, path, accessLine("/history"))
	tl.Poll()
	assert.True(t, sink.isAvailable(domain.SourceAccess))
	assert.Empty(t, sink.paths())

	appendTo(t, path, accessLine("/live"))
	tl.Poll()
	assert.Equal(t, []string{"/live"}, sink.paths())
}

func TestUnreadablePathIsRetried(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	dir := t.TempDir()
	parent := filepath.Join(dir, "tangram")
	appendTo(t, parent, "not a directory")
	path := filepath.Join(parent, "access.log")

	sink := newFakeSink()
	tl := New(domain.Source{Label: "tangram", Path: path, Kind: domain.SourceAccess}, sink, WithLogger(zap.New(core)))
	t.Cleanup(tl.Close)

	for i := 0; i < 3; i++ {
		tl.Poll()
	}
	assert.False(t, tl.State().Available)
	assert.Equal(t, 0, sink.changes, "an unreadable path is reported like a missing one")
	assert.Equal(t, 0, sink.count())

	warned := logs.FilterMessage("log file unreadable, retrying").All()
	require.Len(t, warned, 1, "the same failure is logged once")
	assert.Equal(t, zapcore.WarnLevel, warned[0].Level)
	assert.Equal(t, 0, logs.FilterMessage("log file not found, retrying").Len())

	require.NoError(t, os.Remove(parent))
	require.NoError(t, os.Mkdir(parent, 0o755))
	appendTo(t, path, accessLine("/history"))
	tl.Poll()
	assert.True(t, sink.isAvailable(domain.SourceAccess))
	assert.Empty(t, sink.paths())

	appendTo(t, path, accessLine("/live"))
	tl.Poll()
	assert.Equal(t, []string{"/live"}, sink.paths())
}

func TestDirectoryIsNotALogFile(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	path := filepath.Join(t.TempDir(), "tangram_access.log")
	require.NoError(t, os.Mkdir(path, 0o755))

	sink := newFakeSink()
	tl := New(domain.Source{Label: "tangram", Path: path, Kind: domain.SourceAccess}, sink, WithLogger(zap.New(core)))
	t.Cleanup(tl.Close)

	tl.Poll()
	tl.Poll()
	assert.False(t, tl.State().Available)
	assert.Equal(t, 0, sink.changes)
	assert.Equal(t, 1, logs.FilterMessage("log file unreadable, retrying").Len())

	require.NoError(t, os.Remove(path))
	appendTo(t, path, "")
	tl.Poll()
	assert.True(t, sink.isAvailable(domain.SourceAccess))
}

func TestFileReplacedByDirectory(t *testing.T) {
	tl, sink, path := newTestTailer(t)
	appendTo(t, path, "")
	tl.Poll()
	appendTo(t, path, accessLine("/a"))

	require.NoError(t, os.Remove(path))
	require.NoError(t, os.Mkdir(path, 0o755))
	tl.Poll()
	assert.Equal(t, []string{"/a"}, sink.paths(), "the old handle is drained")
	assert.False(t, sink.isAvailable(domain.SourceAccess))
	assert.False(t, tl.State().Available)
	assert.Equal(t, 1, tl.State().Rotations)
}

func TestRunStopsOnCancel(t *testing.T) {
	clk := clock.NewMock()
	tl, sink, path := newTestTailer(t, WithClock(clk), WithPollInterval(time.Second))
	appendTo(t, path, "")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- tl.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		return tl.State().Available
	}, time.Second, 5*time.Millisecond)

	appendTo(t, path, accessLine("/tick"))
	require.Eventually(t, func() bool {
		clk.Add(time.Second)
		return len(sink.paths()) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
