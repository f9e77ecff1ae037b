package aggregator

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/vburojevic/nginv/internal/domain"
)

const (
	maxPathSummary    = 80
	maxMessageSummary = 100
)

// Aggregator owns the statistics of every site. Each site has its own lock so
// unrelated sites never contend; no lock is held across I/O.
type Aggregator struct {
	clk     clock.Clock
	sites   []*siteState // discovery order
	byLabel map[string]*siteState
	seq     atomic.Uint64

	windowMu      sync.Mutex
	started       time.Time
	intervalStart time.Time
}

type window struct {
	counters domain.Counters
	ips      map[string]struct{}
}

func newWindow() window {
	return window{ips: make(map[string]struct{})}
}

func (w *window) addAccess(ev domain.AccessEvent) {
	w.counters.Requests++
	w.counters.Bytes += ev.Bytes
	w.counters.AddStatus(ev.Status)
	if ev.Status >= 400 {
		w.counters.Errors++
	}
	w.ips[ev.IP] = struct{}{}
}

func (w *window) view() domain.Counters {
	c := w.counters
	c.UniqueIPs = len(w.ips)
	return c
}

type siteState struct {
	mu              sync.Mutex
	site            domain.Site
	started         time.Time
	totals          window
	interval        window
	recent          *RingBuffer
	accessAvailable bool
	errorAvailable  bool
}

// Option configures an Aggregator
type Option func(*Aggregator)

// WithClock replaces the wall clock, mainly for tests
func WithClock(clk clock.Clock) Option {
	return func(a *Aggregator) {
		a.clk = clk
	}
}

// New creates an aggregator with zeroed statistics for every site.
// Sites sharing a label are merged into one.
func New(sites []domain.Site, opts ...Option) *Aggregator {
	a := &Aggregator{
		clk:     clock.New(),
		byLabel: make(map[string]*siteState, len(sites)),
	}
	for _, opt := range opts {
		opt(a)
	}

	now := a.clk.Now()
	a.started = now
	a.intervalStart = now

	for _, site := range sites {
		if existing, ok := a.byLabel[site.Label]; ok {
			if existing.site.AccessPath == "" {
				existing.site.AccessPath = site.AccessPath
			}
			if existing.site.ErrorPath == "" {
				existing.site.ErrorPath = site.ErrorPath
			}
			continue
		}
		s := &siteState{
			site:     site,
			started:  now,
			totals:   newWindow(),
			interval: newWindow(),
			recent:   NewRingBuffer(domain.MaxRecentErrors),
		}
		a.sites = append(a.sites, s)
		a.byLabel[site.Label] = s
	}
	return a
}

// Sites returns the sites in discovery order
func (a *Aggregator) Sites() []domain.Site {
	out := make([]domain.Site, 0, len(a.sites))
	for _, s := range a.sites {
		s.mu.Lock()
		out = append(out, s.site)
		s.mu.Unlock()
	}
	return out
}

// Ingest records one parsed event for a site. Malformed events and unknown
// sites are ignored.
func (a *Aggregator) Ingest(label string, kind domain.SourceKind, ev domain.Event) {
	s, ok := a.byLabel[label]
	if !ok {
		return
	}

	switch e := ev.(type) {
	case domain.AccessEvent:
		s.mu.Lock()
		s.totals.addAccess(e)
		s.interval.addAccess(e)
		if e.Status >= 400 {
			s.recent.Push(domain.RecentError{
				Site:    label,
				Kind:    kind,
				Time:    a.eventTime(e.Time),
				Summary: fmt.Sprintf("%d %s %s", e.Status, e.Method, truncate(e.Path, maxPathSummary)),
				Seq:     a.seq.Add(1),
			})
		}
		s.mu.Unlock()

	case domain.ErrorEvent:
		s.mu.Lock()
		s.totals.counters.Errors++
		s.interval.counters.Errors++
		s.recent.Push(domain.RecentError{
			Site:    label,
			Kind:    kind,
			Time:    a.eventTime(e.Time),
			Summary: fmt.Sprintf("[%s] %s", e.Severity, truncate(e.Message, maxMessageSummary)),
			Seq:     a.seq.Add(1),
		})
		s.mu.Unlock()
	}
}

// SetAvailable records whether the file of the given kind currently exists
func (a *Aggregator) SetAvailable(label string, kind domain.SourceKind, available bool) {
	s, ok := a.byLabel[label]
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if kind == domain.SourceError {
		s.errorAvailable = available
	} else {
		s.accessAvailable = available
	}
}

// Snapshot returns a deep copy of every site plus the derived grand totals.
// Interval counters are left untouched.
func (a *Aggregator) Snapshot() domain.Snapshot {
	return a.snapshot(false)
}

// Tick takes a snapshot and zeroes the interval counters of each site in the
// same critical section, so every ingest lands in exactly one interval.
func (a *Aggregator) Tick() domain.Snapshot {
	return a.snapshot(true)
}

// RotateInterval zeroes the interval counters of every site
func (a *Aggregator) RotateInterval() {
	now := a.clk.Now()
	for _, s := range a.sites {
		s.mu.Lock()
		s.interval = newWindow()
		s.mu.Unlock()
	}
	a.windowMu.Lock()
	a.intervalStart = now
	a.windowMu.Unlock()
}

// Reset zeroes totals, interval counters and recent errors of every site.
// Availability flags are kept.
func (a *Aggregator) Reset() {
	now := a.clk.Now()
	for _, s := range a.sites {
		s.mu.Lock()
		s.totals = newWindow()
		s.interval = newWindow()
		s.recent.Clear()
		s.started = now
		s.mu.Unlock()
	}
	a.windowMu.Lock()
	a.started = now
	a.intervalStart = now
	a.windowMu.Unlock()
}

func (a *Aggregator) snapshot(rotate bool) domain.Snapshot {
	now := a.clk.Now()

	a.windowMu.Lock()
	snap := domain.Snapshot{
		Taken:         now,
		Started:       a.started,
		IntervalStart: a.intervalStart,
		Sites:         make([]domain.SiteStats, 0, len(a.sites)),
	}
	if rotate {
		a.intervalStart = now
	}
	a.windowMu.Unlock()

	totalIPs := make(map[string]struct{})
	intervalIPs := make(map[string]struct{})
	var recent []domain.RecentError

	for _, s := range a.sites {
		s.mu.Lock()
		stats := domain.SiteStats{
			Label:           s.site.Label,
			Started:         s.started,
			Totals:          s.totals.view(),
			Interval:        s.interval.view(),
			RecentErrors:    s.recent.GetAll(),
			HasAccess:       s.site.AccessPath != "",
			HasError:        s.site.ErrorPath != "",
			AccessAvailable: s.accessAvailable,
			ErrorAvailable:  s.errorAvailable,
		}
		for ip := range s.totals.ips {
			totalIPs[ip] = struct{}{}
		}
		for ip := range s.interval.ips {
			intervalIPs[ip] = struct{}{}
		}
		if rotate {
			s.interval = newWindow()
		}
		s.mu.Unlock()

		snap.Grand.Totals.Add(stats.Totals)
		snap.Grand.Interval.Add(stats.Interval)
		recent = append(recent, stats.RecentErrors...)
		snap.Sites = append(snap.Sites, stats)
	}

	snap.Grand.Totals.UniqueIPs = len(totalIPs)
	snap.Grand.Interval.UniqueIPs = len(intervalIPs)
	snap.Grand.RecentErrors = lastRecent(recent, domain.MaxRecentErrors)

	if elapsed := now.Sub(snap.Started).Seconds(); elapsed > 0 {
		snap.Grand.RequestsPerSecond = float64(snap.Grand.Totals.Requests) / elapsed
	}
	if elapsed := now.Sub(snap.IntervalStart).Seconds(); elapsed > 0 {
		snap.Grand.BytesPerSecond = float64(snap.Grand.Interval.Bytes) / elapsed
	}

	return snap
}

func (a *Aggregator) eventTime(t time.Time) time.Time {
	if t.IsZero() {
		return a.clk.Now()
	}
	return t
}

// lastRecent returns the n most recently ingested entries, oldest first
func lastRecent(entries []domain.RecentError, n int) []domain.RecentError {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Seq < entries[j].Seq
	})
	if len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	out := make([]domain.RecentError, len(entries))
	copy(out, entries)
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
