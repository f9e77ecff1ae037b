package domain

import "time"

// MaxRecentErrors is the capacity of every recent errors buffer
const MaxRecentErrors = 5

// Counters is the counter shape shared by the totals and interval windows
type Counters struct {
	Requests  int64 `json:"requests"`
	Bytes     int64 `json:"bytes"`
	Status2xx int64 `json:"status_2xx"`
	Status3xx int64 `json:"status_3xx"`
	Status4xx int64 `json:"status_4xx"`
	Status5xx int64 `json:"status_5xx"`
	Errors    int64 `json:"errors"`
	UniqueIPs int   `json:"unique_ips"`
}

// AddStatus increments the bucket matching status. 1xx codes have no bucket.
func (c *Counters) AddStatus(status int) {
	switch StatusClass(status) {
	case 2:
		c.Status2xx++
	case 3:
		c.Status3xx++
	case 4:
		c.Status4xx++
	case 5:
		c.Status5xx++
	}
}

// Add sums other into c. UniqueIPs is left alone since IP sets cannot be summed.
func (c *Counters) Add(other Counters) {
	c.Requests += other.Requests
	c.Bytes += other.Bytes
	c.Status2xx += other.Status2xx
	c.Status3xx += other.Status3xx
	c.Status4xx += other.Status4xx
	c.Status5xx += other.Status5xx
	c.Errors += other.Errors
}

// RecentError is one entry of a recent errors buffer
type RecentError struct {
	Site    string     `json:"site"`
	Kind    SourceKind `json:"kind"`
	Time    time.Time  `json:"time"`
	Summary string     `json:"summary"`
	Seq     uint64     `json:"seq"` // process-wide arrival order
}

// SiteStats is a point-in-time copy of one site's statistics
type SiteStats struct {
	Label           string        `json:"label"`
	Started         time.Time     `json:"started"`
	Totals          Counters      `json:"totals"`
	Interval        Counters      `json:"interval"`
	RecentErrors    []RecentError `json:"recent_errors"`
	HasAccess       bool          `json:"has_access"`
	HasError        bool          `json:"has_error"`
	AccessAvailable bool          `json:"access_available"`
	ErrorAvailable  bool          `json:"error_available"`
}

// Available reports the availability flag for kind
func (s SiteStats) Available(kind SourceKind) bool {
	if kind == SourceError {
		return s.ErrorAvailable
	}
	return s.AccessAvailable
}

// GrandTotals is derived from all sites at snapshot time
type GrandTotals struct {
	Totals            Counters      `json:"totals"`
	Interval          Counters      `json:"interval"`
	RequestsPerSecond float64       `json:"requests_per_second"`
	BytesPerSecond    float64       `json:"bytes_per_second"`
	RecentErrors      []RecentError `json:"recent_errors"`
}

// Snapshot is an immutable view of every site handed to renderers
type Snapshot struct {
	Taken         time.Time   `json:"taken"`
	Started       time.Time   `json:"started"`
	IntervalStart time.Time   `json:"interval_start"`
	Sites         []SiteStats `json:"sites"`
	Grand         GrandTotals `json:"grand"`
}

// IntervalDuration returns the length of the window the interval counters cover
func (s Snapshot) IntervalDuration() time.Duration {
	return s.Taken.Sub(s.IntervalStart)
}

// Site returns the stats for label
func (s Snapshot) Site(label string) (SiteStats, bool) {
	for _, site := range s.Sites {
		if site.Label == label {
			return site, true
		}
	}
	return SiteStats{}, false
}
