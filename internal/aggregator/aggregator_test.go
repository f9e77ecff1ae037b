package aggregator

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vburojevic/nginv/internal/domain"
)

func newTestAggregator(t *testing.T, labels ...string) (*Aggregator, *clock.Mock) {
	t.Helper()
	clk := clock.NewMock()
	clk.Set(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	sites := make([]domain.Site, len(labels))
	for i, l := range labels {
		sites[i] = domain.Site{Label: l, AccessPath: "/var/log/nginx/" + l + "_access.log", ErrorPath: "/var/log/nginx/" + l + "_error.log"}
	}
	return New(sites, WithClock(clk)), clk
}

func access(ip string, status int, bytes int64) domain.AccessEvent {
	return domain.AccessEvent{
		IP:       ip,
		Method:   "GET",
		Path:     "/",
		Protocol: "HTTP/1.1",
		Status:   status,
		Bytes:    bytes,
		Time:     time.Date(2025, 3, 1, 11, 59, 0, 0, time.UTC),
	}
}

func mustSite(t *testing.T, snap domain.Snapshot, label string) domain.SiteStats {
	t.Helper()
	site, ok := snap.Site(label)
	require.True(t, ok, "site %q missing from snapshot", label)
	return site
}

func TestIngestAccessScenario(t *testing.T) {
	agg, _ := newTestAggregator(t, "tangram")

	agg.Ingest("tangram", domain.SourceAccess, access("10.0.0.1", 200, 512))
	agg.Ingest("tangram", domain.SourceAccess, access("10.0.0.2", 404, 0))

	site := mustSite(t, agg.Snapshot(), "tangram")
	assert.Equal(t, int64(2), site.Interval.Requests)
	assert.Equal(t, int64(512), site.Interval.Bytes)
	assert.Equal(t, int64(1), site.Interval.Status2xx)
	assert.Equal(t, int64(1), site.Interval.Status4xx)
	assert.Equal(t, int64(1), site.Interval.Errors)
	assert.Equal(t, 2, site.Interval.UniqueIPs)
	require.Len(t, site.RecentErrors, 1)
	assert.Equal(t, "404 GET /", site.RecentErrors[0].Summary)
	assert.Equal(t, domain.SourceAccess, site.RecentErrors[0].Kind)
	assert.Equal(t, site.Interval, site.Totals)
}

func TestIngestErrorEvent(t *testing.T) {
	agg, _ := newTestAggregator(t, "tangram")

	for _, sev := range []domain.Severity{domain.SeverityDebug, domain.SeverityWarn, domain.SeverityCrit} {
		agg.Ingest("tangram", domain.SourceError, domain.ErrorEvent{Severity: sev, Message: "boom"})
	}

	site := mustSite(t, agg.Snapshot(), "tangram")
	assert.Equal(t, int64(0), site.Totals.Requests, "error lines are not requests")
	assert.Equal(t, int64(3), site.Totals.Errors, "severity never gates counting")
	require.Len(t, site.RecentErrors, 3)
	assert.Equal(t, "[crit] boom", site.RecentErrors[2].Summary)
	assert.Equal(t, domain.SourceError, site.RecentErrors[2].Kind)
}

func TestIngestIgnoresMalformedAndUnknownSites(t *testing.T) {
	agg, _ := newTestAggregator(t, "tangram")
	before := agg.Snapshot()

	agg.Ingest("tangram", domain.SourceAccess, domain.Malformed{})
	agg.Ingest("nosuchsite", domain.SourceAccess, access("10.0.0.1", 500, 1))

	after := agg.Snapshot()
	assert.Equal(t, before.Sites, after.Sites)
}

func TestTotalsAreMonotonic(t *testing.T) {
	agg, _ := newTestAggregator(t, "tangram")

	var accessCount, errorCount int64
	prev := int64(0)
	statuses := []int{200, 301, 404, 500, 204, 418, 503, 200}
	for i := 0; i < 40; i++ {
		if i%5 == 4 {
			agg.Ingest("tangram", domain.SourceError, domain.ErrorEvent{Severity: domain.SeverityError, Message: "x"})
			errorCount++
		} else {
			status := statuses[i%len(statuses)]
			agg.Ingest("tangram", domain.SourceAccess, access("10.0.0.1", status, 10))
			accessCount++
			if status >= 400 {
				errorCount++
			}
		}
		if i%7 == 0 {
			agg.RotateInterval()
		}

		totals := mustSite(t, agg.Snapshot(), "tangram").Totals
		require.GreaterOrEqual(t, totals.Requests, prev)
		prev = totals.Requests
	}

	totals := mustSite(t, agg.Snapshot(), "tangram").Totals
	assert.Equal(t, accessCount, totals.Requests)
	assert.Equal(t, errorCount, totals.Errors)
}

func TestIntervalResetLaw(t *testing.T) {
	agg, _ := newTestAggregator(t, "tangram", "quill")
	agg.Ingest("tangram", domain.SourceAccess, access("10.0.0.1", 200, 100))
	agg.Ingest("quill", domain.SourceAccess, access("10.0.0.2", 502, 10))

	t.Run("snapshot then rotate", func(t *testing.T) {
		first := agg.Snapshot()
		agg.RotateInterval()
		second := agg.Snapshot()

		for _, label := range []string{"tangram", "quill"} {
			site := mustSite(t, second, label)
			assert.Equal(t, domain.Counters{}, site.Interval)
			assert.Equal(t, mustSite(t, first, label).Totals, site.Totals)
		}
	})

	t.Run("tick reports the elapsed interval", func(t *testing.T) {
		agg.Ingest("tangram", domain.SourceAccess, access("10.0.0.3", 200, 7))

		ticked := agg.Tick()
		assert.Equal(t, int64(1), mustSite(t, ticked, "tangram").Interval.Requests)

		after := agg.Snapshot()
		assert.Equal(t, domain.Counters{}, mustSite(t, after, "tangram").Interval)
		assert.Equal(t, int64(2), mustSite(t, after, "tangram").Totals.Requests)
	})
}

func TestRecentErrorsAreBounded(t *testing.T) {
	agg, _ := newTestAggregator(t, "tangram")

	for i := 1; i <= 8; i++ {
		ev := access("10.0.0.1", 500, 0)
		ev.Path = fmt.Sprintf("/p%d", i)
		agg.Ingest("tangram", domain.SourceAccess, ev)
	}

	site := mustSite(t, agg.Snapshot(), "tangram")
	require.Len(t, site.RecentErrors, domain.MaxRecentErrors)
	assert.Equal(t,
		[]string{"500 GET /p4", "500 GET /p5", "500 GET /p6", "500 GET /p7", "500 GET /p8"},
		summaries(site.RecentErrors))
}

func TestRecentErrorSummariesAreTruncated(t *testing.T) {
	agg, _ := newTestAggregator(t, "tangram")

	long := access("10.0.0.1", 404, 0)
	long.Path = "/" + string(make([]byte, 200))
	agg.Ingest("tangram", domain.SourceAccess, long)
	agg.Ingest("tangram", domain.SourceError, domain.ErrorEvent{Severity: domain.SeverityError, Message: fmt.Sprintf("%0300d", 1)})

	site := mustSite(t, agg.Snapshot(), "tangram")
	require.Len(t, site.RecentErrors, 2)
	assert.Len(t, site.RecentErrors[0].Summary, len("404 GET ")+maxPathSummary)
	assert.Len(t, site.RecentErrors[1].Summary, len("[error] ")+maxMessageSummary)
}

func TestResetClearsCountersButKeepsAvailability(t *testing.T) {
	agg, clk := newTestAggregator(t, "tangram")
	agg.SetAvailable("tangram", domain.SourceAccess, true)

	for i := 0; i < 100; i++ {
		agg.Ingest("tangram", domain.SourceAccess, access("10.0.0.1", 503, 1))
	}
	require.Equal(t, int64(100), mustSite(t, agg.Snapshot(), "tangram").Totals.Requests)

	clk.Add(time.Minute)
	agg.Reset()

	site := mustSite(t, agg.Snapshot(), "tangram")
	assert.Equal(t, int64(0), site.Totals.Requests)
	assert.Equal(t, domain.Counters{}, site.Totals)
	assert.Equal(t, domain.Counters{}, site.Interval)
	assert.Empty(t, site.RecentErrors)
	assert.True(t, site.AccessAvailable)
	assert.False(t, site.ErrorAvailable)
	assert.Equal(t, clk.Now(), site.Started)
}

func TestSetAvailable(t *testing.T) {
	agg, _ := newTestAggregator(t, "tangram")

	agg.SetAvailable("tangram", domain.SourceError, true)
	site := mustSite(t, agg.Snapshot(), "tangram")
	assert.True(t, site.ErrorAvailable)
	assert.False(t, site.AccessAvailable)

	agg.SetAvailable("tangram", domain.SourceError, false)
	assert.False(t, mustSite(t, agg.Snapshot(), "tangram").ErrorAvailable)
}

func TestSnapshotIsACopy(t *testing.T) {
	agg, _ := newTestAggregator(t, "tangram")
	agg.Ingest("tangram", domain.SourceAccess, access("10.0.0.1", 500, 1))

	snap := agg.Snapshot()
	snap.Sites[0].RecentErrors[0].Summary = "mutated"
	snap.Sites[0].Totals.Requests = 99

	site := mustSite(t, agg.Snapshot(), "tangram")
	assert.Equal(t, "500 GET /", site.RecentErrors[0].Summary)
	assert.Equal(t, int64(1), site.Totals.Requests)
}

func TestGrandTotals(t *testing.T) {
	agg, clk := newTestAggregator(t, "tangram", "quill")

	agg.Ingest("tangram", domain.SourceAccess, access("10.0.0.1", 200, 1000))
	agg.Ingest("tangram", domain.SourceAccess, access("10.0.0.2", 404, 0))
	agg.Ingest("quill", domain.SourceAccess, access("10.0.0.1", 200, 1000))
	agg.Ingest("quill", domain.SourceError, domain.ErrorEvent{Severity: domain.SeverityError, Message: "upstream"})
	clk.Add(10 * time.Second)

	grand := agg.Snapshot().Grand
	assert.Equal(t, int64(3), grand.Totals.Requests)
	assert.Equal(t, int64(2000), grand.Totals.Bytes)
	assert.Equal(t, int64(2), grand.Totals.Errors)
	assert.Equal(t, 2, grand.Totals.UniqueIPs, "unique IPs are a union across sites")
	assert.InDelta(t, 0.3, grand.RequestsPerSecond, 1e-9)
	assert.InDelta(t, 200.0, grand.BytesPerSecond, 1e-9)

	require.Len(t, grand.RecentErrors, 2)
	assert.Equal(t, "tangram", grand.RecentErrors[0].Site)
	assert.Equal(t, "quill", grand.RecentErrors[1].Site)
}

func TestGrandRecentErrorsKeepLatestAcrossSites(t *testing.T) {
	agg, _ := newTestAggregator(t, "a", "b")
	for i := 0; i < 4; i++ {
		agg.Ingest("a", domain.SourceAccess, access("10.0.0.1", 500, 0))
		agg.Ingest("b", domain.SourceError, domain.ErrorEvent{Severity: domain.SeverityError, Message: fmt.Sprint(i)})
	}

	recent := agg.Snapshot().Grand.RecentErrors
	require.Len(t, recent, domain.MaxRecentErrors)
	for i := 1; i < len(recent); i++ {
		assert.Less(t, recent[i-1].Seq, recent[i].Seq)
	}
	assert.Equal(t, "[error] 3", recent[len(recent)-1].Summary)
}

func TestDuplicateLabelsAreMerged(t *testing.T) {
	agg := New([]domain.Site{
		{Label: "tangram", AccessPath: "/a.log"},
		{Label: "tangram", ErrorPath: "/e.log"},
	})

	require.Len(t, agg.Sites(), 1)
	site := mustSite(t, agg.Snapshot(), "tangram")
	assert.True(t, site.HasAccess)
	assert.True(t, site.HasError)
}

func TestConcurrentIngestAndTick(t *testing.T) {
	agg, _ := newTestAggregator(t, "a", "b")

	const writers = 4
	const perWriter = 2000
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(label string) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				agg.Ingest(label, domain.SourceAccess, access("10.0.0.1", 200, 1))
			}
		}([]string{"a", "b"}[w%2])
	}

	var intervalSum int64
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for running := true; running; {
		select {
		case <-done:
			running = false
		default:
		}
		intervalSum += agg.Tick().Grand.Interval.Requests
	}
	intervalSum += agg.Tick().Grand.Interval.Requests

	assert.Equal(t, int64(writers*perWriter), intervalSum, "every ingest lands in exactly one interval")
	assert.Equal(t, int64(writers*perWriter), agg.Snapshot().Grand.Totals.Requests)
}
