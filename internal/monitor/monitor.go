package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vburojevic/nginv/internal/aggregator"
	"github.com/vburojevic/nginv/internal/domain"
	"github.com/vburojevic/nginv/internal/tailer"
)

// ErrAlreadyRunning is returned by Start on a running monitor
var ErrAlreadyRunning = errors.New("monitor already running")

// Options configures a Monitor
type Options struct {
	PollInterval time.Duration // Tailer poll interval (default 250ms)
	MaxLineBytes int           // Longest line held between reads (default 1 MiB)
	Clock        clock.Clock   // Time source for tailers and statistics
	Logger       *zap.Logger   // Diagnostics; nil discards
}

// Monitor runs one tailer per log file and feeds them into a shared
// aggregator. Renderers read it through Snapshot and Tick.
type Monitor struct {
	agg     *aggregator.Aggregator
	tailers []*tailer.Tailer
	logger  *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	group   *errgroup.Group
	running bool
}

// New creates a monitor for the given sites. Nothing is opened until Start.
func New(sites []domain.Site, opts Options) *Monitor {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	m := &Monitor{
		agg:    aggregator.New(sites, aggregator.WithClock(opts.Clock)),
		logger: opts.Logger,
	}

	tailerOpts := []tailer.Option{
		tailer.WithClock(opts.Clock),
		tailer.WithPollInterval(opts.PollInterval),
		tailer.WithLogger(opts.Logger),
		tailer.WithMaxLineBytes(opts.MaxLineBytes),
	}
	for _, site := range m.agg.Sites() {
		for _, src := range site.Sources() {
			m.tailers = append(m.tailers, tailer.New(src, m.agg, tailerOpts...))
		}
	}
	return m
}

// Start launches one tailer goroutine per file. The tailers stop when ctx is
// cancelled or Stop is called.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(runCtx)
	for _, t := range m.tailers {
		group.Go(func() error {
			return t.Run(groupCtx)
		})
	}

	m.cancel = cancel
	m.group = group
	m.running = true
	m.logger.Debug("monitor started", zap.Int("files", len(m.tailers)))
	return nil
}

// Stop cancels every tailer and waits for all of them to close their files
func (m *Monitor) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	cancel, group := m.cancel, m.group
	m.running = false
	m.cancel = nil
	m.group = nil
	m.mu.Unlock()

	cancel()
	err := group.Wait()
	m.logger.Debug("monitor stopped")
	return err
}

// Poll runs one cycle of every tailer synchronously
func (m *Monitor) Poll() {
	for _, t := range m.tailers {
		t.Poll()
	}
}

// Snapshot returns the current statistics without rotating the interval
func (m *Monitor) Snapshot() domain.Snapshot {
	return m.agg.Snapshot()
}

// Tick returns the statistics of the elapsed interval and starts a new one
func (m *Monitor) Tick() domain.Snapshot {
	return m.agg.Tick()
}

// RotateInterval starts a new interval without taking a snapshot
func (m *Monitor) RotateInterval() {
	m.agg.RotateInterval()
}

// Reset clears all statistics
func (m *Monitor) Reset() {
	m.logger.Info("statistics reset")
	m.agg.Reset()
}

// Sites returns the monitored sites in discovery order
func (m *Monitor) Sites() []domain.Site {
	return m.agg.Sites()
}

// States returns the tailing state of every file
func (m *Monitor) States() []tailer.State {
	out := make([]tailer.State, len(m.tailers))
	for i, t := range m.tailers {
		out[i] = t.State()
	}
	return out
}
