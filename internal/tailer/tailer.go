package tailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/vburojevic/nginv/internal/domain"
	"github.com/vburojevic/nginv/internal/parser"
)

const (
	// DefaultPollInterval is how often the file is stat'ed for growth, rotation and truncation
	DefaultPollInterval = 250 * time.Millisecond
	// DefaultMaxLineBytes bounds a held partial line; longer lines are dropped
	DefaultMaxLineBytes = 1024 * 1024

	readChunk = 64 * 1024
)

// Sink receives parsed events and availability changes for a source
type Sink interface {
	Ingest(label string, kind domain.SourceKind, ev domain.Event)
	SetAvailable(label string, kind domain.SourceKind, available bool)
}

// State is a point-in-time copy of the tailing state of one file
type State struct {
	Site      string            `json:"site"`
	Kind      domain.SourceKind `json:"kind"`
	Path      string            `json:"path"`
	Available bool              `json:"available"`
	Offset    int64             `json:"offset"`
	Size      int64             `json:"size"`
	Partial   int               `json:"partial_bytes"`
	Lines     int64             `json:"lines"`
	Malformed int64             `json:"malformed"`
	Rotations int               `json:"rotations"`
	Truncates int               `json:"truncations"`
}

// Tailer follows one log file. It survives rotation, truncation and
// temporary absence of the file, and hands every complete line through the
// parser to its sink.
type Tailer struct {
	source       domain.Source
	sink         Sink
	clk          clock.Clock
	interval     time.Duration
	maxLineBytes int
	logger       *zap.Logger

	mu        sync.Mutex
	file      *os.File
	info      os.FileInfo
	offset    int64
	size      int64
	partial   []byte
	dropping  bool
	available bool
	seen      bool
	lastErr   string
	lines     int64
	malformed int64
	rotations int
	truncates int
}

// Option configures a Tailer
type Option func(*Tailer)

// WithClock sets the clock driving the poll ticker
func WithClock(clk clock.Clock) Option {
	return func(t *Tailer) {
		t.clk = clk
	}
}

// WithPollInterval sets the poll interval
func WithPollInterval(d time.Duration) Option {
	return func(t *Tailer) {
		if d > 0 {
			t.interval = d
		}
	}
}

// WithLogger sets the diagnostics logger
func WithLogger(logger *zap.Logger) Option {
	return func(t *Tailer) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithMaxLineBytes bounds the partial line held between reads
func WithMaxLineBytes(n int) Option {
	return func(t *Tailer) {
		if n > 0 {
			t.maxLineBytes = n
		}
	}
}

// New creates a tailer for source. Nothing is opened until the first poll.
func New(source domain.Source, sink Sink, opts ...Option) *Tailer {
	t := &Tailer{
		source:       source,
		sink:         sink,
		clk:          clock.New(),
		interval:     DefaultPollInterval,
		maxLineBytes: DefaultMaxLineBytes,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With(
		zap.String("site", source.Label),
		zap.String("kind", string(source.Kind)),
		zap.String("path", source.Path),
	)
	return t
}

// Source returns the file this tailer follows
func (t *Tailer) Source() domain.Source {
	return t.source
}

// Run polls until ctx is cancelled, then closes the file handle
func (t *Tailer) Run(ctx context.Context) error {
	defer t.Close()

	ticker := t.clk.Ticker(t.interval)
	defer ticker.Stop()

	t.Poll()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			t.Poll()
		}
	}
}

// Poll runs one stat/read cycle and ingests every complete line found
func (t *Tailer) Poll() {
	t.mu.Lock()
	lines := t.poll()
	t.mu.Unlock()

	t.emit(lines)
}

// State returns a copy of the tailing state
func (t *Tailer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return State{
		Site:      t.source.Label,
		Kind:      t.source.Kind,
		Path:      t.source.Path,
		Available: t.available,
		Offset:    t.offset,
		Size:      t.size,
		Partial:   len(t.partial),
		Lines:     t.lines,
		Malformed: t.malformed,
		Rotations: t.rotations,
		Truncates: t.truncates,
	}
}

// Close releases the file handle
func (t *Tailer) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeFile()
}

func (t *Tailer) poll() []string {
	var lines []string

	info, err := os.Stat(t.source.Path)
	if err != nil {
		if t.file != nil {
			lines = t.drain()
			t.closeFile()
			t.rotations++
			t.logger.Debug("file removed, old handle drained", zap.Int("lines", len(lines)))
		}
		t.fail("stat", err)
		return lines
	}

	if t.file != nil && !os.SameFile(t.info, info) {
		lines = t.drain()
		t.closeFile()
		t.rotations++
		t.logger.Debug("file rotated", zap.Int("drained", len(lines)))
	}

	if t.file == nil {
		if err := t.open(); err != nil {
			t.fail("open", err)
			return lines
		}
	}

	current, err := t.file.Stat()
	if err != nil {
		t.fail("fstat", err)
		return lines
	}
	t.size = current.Size()
	t.lastErr = ""
	t.setAvailable(true)

	if t.size < t.offset {
		t.logger.Debug("file truncated", zap.Int64("offset", t.offset), zap.Int64("size", t.size))
		t.offset = 0
		t.partial = t.partial[:0]
		t.dropping = false
		t.truncates++
	}

	if t.size > t.offset {
		lines = t.read(t.size, lines)
	}
	return lines
}

// open opens the path. The first open of the process starts at the end of
// the file; a file that appears after having been seen is read from the start.
func (t *Tailer) open() error {
	f, err := os.Open(t.source.Path)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}
	if !info.Mode().IsRegular() {
		_ = f.Close()
		return fmt.Errorf("%s is not a regular file", t.source.Path)
	}

	t.file = f
	t.info = info
	t.size = info.Size()
	t.partial = t.partial[:0]
	t.dropping = false
	if t.seen {
		t.offset = 0
	} else {
		t.offset = info.Size()
	}
	t.seen = true
	t.logger.Debug("file opened", zap.Int64("offset", t.offset))
	return nil
}

// drain reads the complete lines still unread in the current handle
func (t *Tailer) drain() []string {
	info, err := t.file.Stat()
	if err != nil || info.Size() <= t.offset {
		return nil
	}
	return t.read(info.Size(), nil)
}

func (t *Tailer) read(limit int64, lines []string) []string {
	r := io.NewSectionReader(t.file, t.offset, limit-t.offset)
	buf := make([]byte, readChunk)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			t.offset += int64(n)
			lines = t.split(buf[:n], lines)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				t.logOnce("read", err)
			}
			return lines
		}
	}
}

// split appends the complete lines of chunk to lines and holds back the
// trailing partial line.
func (t *Tailer) split(chunk []byte, lines []string) []string {
	for len(chunk) > 0 {
		i := bytes.IndexByte(chunk, '\n')
		if i < 0 {
			if t.dropping {
				return lines
			}
			t.partial = append(t.partial, chunk...)
			if len(t.partial) > t.maxLineBytes {
				t.logger.Warn("line exceeds limit, dropping", zap.Int("limit", t.maxLineBytes))
				t.partial = t.partial[:0]
				t.dropping = true
			}
			return lines
		}

		if t.dropping {
			t.dropping = false
		} else if len(t.partial)+i > t.maxLineBytes {
			t.logger.Warn("line exceeds limit, dropping", zap.Int("limit", t.maxLineBytes))
		} else {
			line := append(t.partial, chunk[:i]...)
			lines = append(lines, string(bytes.TrimSuffix(line, []byte{'\r'})))
		}
		t.partial = t.partial[:0]
		chunk = chunk[i+1:]
	}
	return lines
}

func (t *Tailer) emit(lines []string) {
	var malformed int64
	for _, line := range lines {
		ev := parser.Parse(t.source.Kind, line)
		if _, bad := ev.(domain.Malformed); bad {
			malformed++
			t.logger.Debug("malformed line", zap.String("line", line))
		}
		t.sink.Ingest(t.source.Label, t.source.Kind, ev)
	}
	if len(lines) == 0 {
		return
	}

	t.mu.Lock()
	t.lines += int64(len(lines))
	t.malformed += malformed
	t.mu.Unlock()
}

// fail marks the source unavailable and logs the failure once until it changes
func (t *Tailer) fail(op string, err error) {
	t.setAvailable(false)
	t.logOnce(op, err)
}

func (t *Tailer) logOnce(op string, err error) {
	msg := op + ": " + err.Error()
	if msg == t.lastErr {
		return
	}
	t.lastErr = msg
	if errors.Is(err, os.ErrNotExist) {
		t.logger.Info("log file not found, retrying", zap.String("op", op))
		return
	}
	t.logger.Warn("log file unreadable, retrying", zap.String("op", op), zap.Error(err))
}

func (t *Tailer) setAvailable(available bool) {
	if t.available == available {
		return
	}
	t.available = available
	t.sink.SetAvailable(t.source.Label, t.source.Kind, available)
}

func (t *Tailer) closeFile() {
	if t.file == nil {
		return
	}
	_ = t.file.Close()
	t.file = nil
	t.info = nil
	t.partial = t.partial[:0]
	t.dropping = false
}
