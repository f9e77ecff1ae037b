package domain

import "time"

// SourceKind identifies which of a site's two log files a line came from
type SourceKind string

const (
	SourceAccess SourceKind = "access"
	SourceError  SourceKind = "error"
)

// Tag returns the short three-letter tag used in recent error listings
func (k SourceKind) Tag() string {
	if k == SourceError {
		return "ERR"
	}
	return "ACC"
}

// Severity is an error log level as written by nginx
type Severity string

const (
	SeverityDebug  Severity = "debug"
	SeverityInfo   Severity = "info"
	SeverityNotice Severity = "notice"
	SeverityWarn   Severity = "warn"
	SeverityError  Severity = "error"
	SeverityCrit   Severity = "crit"
	SeverityAlert  Severity = "alert"
	SeverityEmerg  Severity = "emerg"
)

// Priority returns the priority of a severity (higher = more severe)
func (s Severity) Priority() int {
	switch s {
	case SeverityDebug:
		return 0
	case SeverityInfo:
		return 1
	case SeverityNotice:
		return 2
	case SeverityWarn:
		return 3
	case SeverityError:
		return 4
	case SeverityCrit:
		return 5
	case SeverityAlert:
		return 6
	case SeverityEmerg:
		return 7
	default:
		return -1
	}
}

// ParseSeverity converts a level token to a Severity.
// The second return value is false for tokens nginx never writes.
func ParseSeverity(s string) (Severity, bool) {
	switch s {
	case "debug", "trace1", "trace2", "trace3", "trace4", "trace5", "trace6", "trace7", "trace8":
		return SeverityDebug, true
	case "info":
		return SeverityInfo, true
	case "notice":
		return SeverityNotice, true
	case "warn", "warning":
		return SeverityWarn, true
	case "error", "err":
		return SeverityError, true
	case "crit":
		return SeverityCrit, true
	case "alert":
		return SeverityAlert, true
	case "emerg":
		return SeverityEmerg, true
	default:
		return "", false
	}
}

// Event is the result of parsing one log line: an AccessEvent, an ErrorEvent
// or Malformed.
type Event interface {
	event()
}

// AccessEvent is one request line from an access log
type AccessEvent struct {
	IP       string    `json:"ip"`
	Method   string    `json:"method"`
	Path     string    `json:"path"`
	Protocol string    `json:"protocol"`
	Status   int       `json:"status"`
	Bytes    int64     `json:"bytes"`
	Time     time.Time `json:"time"`
}

// ErrorEvent is one line from an error log
type ErrorEvent struct {
	Severity   Severity  `json:"severity"`
	Message    string    `json:"message"`
	Connection string    `json:"connection,omitempty"` // nginx "*<id>" marker, without the star
	Time       time.Time `json:"time"`
}

// Malformed marks a line that matched neither grammar
type Malformed struct{}

func (AccessEvent) event() {}
func (ErrorEvent) event()  {}
func (Malformed) event()   {}

// StatusClass returns the hundreds digit of an HTTP status code (2 for 2xx)
func StatusClass(status int) int {
	return status / 100
}
