package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/vburojevic/nginv/internal/domain"
	"github.com/vburojevic/nginv/internal/tailer"
)

const namespace = "nginv"

// Source provides the values exported on every scrape.
// Snapshot must not rotate the interval window.
type Source interface {
	Snapshot() domain.Snapshot
	States() []tailer.State
}

// Collector exports site statistics and tailer state as Prometheus metrics.
// Values are read from the source at scrape time, so nothing is duplicated
// between the aggregator and the registry.
type Collector struct {
	source Source

	requests    *prometheus.Desc
	bytes       *prometheus.Desc
	responses   *prometheus.Desc
	errors      *prometheus.Desc
	uniqueIPs   *prometheus.Desc
	available   *prometheus.Desc
	reqRate     *prometheus.Desc
	byteRate    *prometheus.Desc
	lines       *prometheus.Desc
	malformed   *prometheus.Desc
	rotations   *prometheus.Desc
	truncations *prometheus.Desc
	offset      *prometheus.Desc
}

// NewCollector creates a collector reading from source
func NewCollector(source Source) *Collector {
	siteLabels := []string{"site"}
	fileLabels := []string{"site", "kind"}

	return &Collector{
		source: source,
		requests: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "requests_total"),
			"Access log requests seen since start or last reset.", siteLabels, nil),
		bytes: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "response_bytes_total"),
			"Response body bytes seen since start or last reset.", siteLabels, nil),
		responses: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "responses_total"),
			"Access log requests by status class.", []string{"site", "class"}, nil),
		errors: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "errors_total"),
			"4xx/5xx responses plus error log entries.", siteLabels, nil),
		uniqueIPs: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "unique_ips"),
			"Distinct client addresses since start or last reset.", siteLabels, nil),
		available: prometheus.NewDesc(prometheus.BuildFQName(namespace, "log", "available"),
			"Whether the log file is currently readable.", fileLabels, nil),
		reqRate: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "requests_per_second"),
			"Requests per second across all sites since start or last reset.", nil, nil),
		byteRate: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "bytes_per_second"),
			"Response bytes per second across all sites over the current interval.", nil, nil),
		lines: prometheus.NewDesc(prometheus.BuildFQName(namespace, "tailer", "lines_total"),
			"Complete lines read from the log file.", fileLabels, nil),
		malformed: prometheus.NewDesc(prometheus.BuildFQName(namespace, "tailer", "malformed_lines_total"),
			"Lines that did not match the expected log format.", fileLabels, nil),
		rotations: prometheus.NewDesc(prometheus.BuildFQName(namespace, "tailer", "rotations_total"),
			"Times the log file was replaced.", fileLabels, nil),
		truncations: prometheus.NewDesc(prometheus.BuildFQName(namespace, "tailer", "truncations_total"),
			"Times the log file was truncated in place.", fileLabels, nil),
		offset: prometheus.NewDesc(prometheus.BuildFQName(namespace, "tailer", "offset_bytes"),
			"Read offset within the current log file.", fileLabels, nil),
	}
}

// Describe implements prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.requests, c.bytes, c.responses, c.errors, c.uniqueIPs, c.available,
		c.reqRate, c.byteRate, c.lines, c.malformed, c.rotations, c.truncations, c.offset,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.source.Snapshot()

	for _, s := range snap.Sites {
		t := s.Totals
		ch <- prometheus.MustNewConstMetric(c.errors, prometheus.CounterValue, float64(t.Errors), s.Label)
		if s.HasError {
			ch <- prometheus.MustNewConstMetric(c.available, prometheus.GaugeValue, boolValue(s.ErrorAvailable), s.Label, string(domain.SourceError))
		}
		if !s.HasAccess {
			continue
		}
		ch <- prometheus.MustNewConstMetric(c.available, prometheus.GaugeValue, boolValue(s.AccessAvailable), s.Label, string(domain.SourceAccess))
		ch <- prometheus.MustNewConstMetric(c.requests, prometheus.CounterValue, float64(t.Requests), s.Label)
		ch <- prometheus.MustNewConstMetric(c.bytes, prometheus.CounterValue, float64(t.Bytes), s.Label)
		ch <- prometheus.MustNewConstMetric(c.uniqueIPs, prometheus.GaugeValue, float64(t.UniqueIPs), s.Label)
		for class, n := range map[int]int64{2: t.Status2xx, 3: t.Status3xx, 4: t.Status4xx, 5: t.Status5xx} {
			ch <- prometheus.MustNewConstMetric(c.responses, prometheus.CounterValue, float64(n), s.Label, strconv.Itoa(class)+"xx")
		}
	}

	ch <- prometheus.MustNewConstMetric(c.reqRate, prometheus.GaugeValue, snap.Grand.RequestsPerSecond)
	ch <- prometheus.MustNewConstMetric(c.byteRate, prometheus.GaugeValue, snap.Grand.BytesPerSecond)

	for _, st := range c.source.States() {
		kind := string(st.Kind)
		ch <- prometheus.MustNewConstMetric(c.lines, prometheus.CounterValue, float64(st.Lines), st.Site, kind)
		ch <- prometheus.MustNewConstMetric(c.malformed, prometheus.CounterValue, float64(st.Malformed), st.Site, kind)
		ch <- prometheus.MustNewConstMetric(c.rotations, prometheus.CounterValue, float64(st.Rotations), st.Site, kind)
		ch <- prometheus.MustNewConstMetric(c.truncations, prometheus.CounterValue, float64(st.Truncates), st.Site, kind)
		ch <- prometheus.MustNewConstMetric(c.offset, prometheus.GaugeValue, float64(st.Offset), st.Site, kind)
	}
}

// NewRegistry returns a registry holding the nginv collector plus the
// standard Go runtime and process collectors
func NewRegistry(source Source) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		NewCollector(source),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
