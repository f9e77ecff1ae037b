package parser

import (
	"errors"
	"fmt"
	"net/netip"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/vburojevic/nginv/internal/domain"
)

// ErrMalformed is wrapped by every parse failure
var ErrMalformed = errors.New("malformed log line")

// accessLinePattern matches the common/combined access log layout:
//
//	1.2.3.4 - user [10/Oct/2024:13:55:36 +0000] "GET /path HTTP/1.1" 200 2326 "ref" "ua"
//
// Identity and user fields are optional.
var accessLinePattern = regexp.MustCompile(
	`^(\S+)(?: \S+){0,2} \[([^\]]+)\] "([A-Za-z_-]+) (\S+) ([^"\s]+)" (\d{3}) (\d+|-)(?:\s|$)`,
)

// errorLinePattern matches nginx and Apache error lines:
//
//	2024/10/10 13:55:36 [error] 1234#0: *5 open() "/x" failed
//	[Thu Oct 10 13:55:36.123456 2024] [core:error] [pid 1234] message
var errorLinePattern = regexp.MustCompile(
	`^(\[[^\]]+\]|\d{4}/\d{2}/\d{2} \d{2}:\d{2}:\d{2}) \[(?:[\w-]+:)?([a-z0-9]+)\] ?(.*)$`,
)

var (
	workerPrefix     = regexp.MustCompile(`^\d+#\d+: `)
	connectionMarker = regexp.MustCompile(`^\*(\d+) `)
	apachePIDPrefix  = regexp.MustCompile(`^\[pid [^\]]*\] ?`)
)

const accessTimeLayout = "02/Jan/2006:15:04:05 -0700"

var errorTimeLayouts = []string{
	"2006/01/02 15:04:05",
	"Mon Jan 02 15:04:05.000000 2006",
	"Mon Jan 02 15:04:05 2006",
}

// Parse converts one line from a file of the given kind into an event.
// It never fails: lines that match neither grammar become domain.Malformed.
func Parse(kind domain.SourceKind, line string) domain.Event {
	switch kind {
	case domain.SourceAccess:
		ev, err := ParseAccess(line)
		if err != nil {
			return domain.Malformed{}
		}
		return ev
	case domain.SourceError:
		ev, err := ParseError(line)
		if err != nil {
			return domain.Malformed{}
		}
		return ev
	default:
		return domain.Malformed{}
	}
}

// ParseAccess parses a common/combined format access log line
func ParseAccess(line string) (domain.AccessEvent, error) {
	m := accessLinePattern.FindStringSubmatch(line)
	if m == nil {
		return domain.AccessEvent{}, fmt.Errorf("%w: not an access line", ErrMalformed)
	}

	addr, err := netip.ParseAddr(m[1])
	if err != nil {
		return domain.AccessEvent{}, fmt.Errorf("%w: client address %q", ErrMalformed, m[1])
	}

	ts, err := time.Parse(accessTimeLayout, m[2])
	if err != nil {
		return domain.AccessEvent{}, fmt.Errorf("%w: timestamp %q", ErrMalformed, m[2])
	}

	status, _ := strconv.Atoi(m[6]) // three digits, cannot fail
	if status < 100 || status > 599 {
		return domain.AccessEvent{}, fmt.Errorf("%w: status %d out of range", ErrMalformed, status)
	}

	var bytesSent int64
	if m[7] != "-" {
		bytesSent, err = strconv.ParseInt(m[7], 10, 64)
		if err != nil {
			return domain.AccessEvent{}, fmt.Errorf("%w: byte count %q", ErrMalformed, m[7])
		}
	}

	return domain.AccessEvent{
		IP:       addr.String(),
		Method:   m[3],
		Path:     m[4],
		Protocol: m[5],
		Status:   status,
		Bytes:    bytesSent,
		Time:     ts,
	}, nil
}

// ParseError parses an nginx (or Apache) error log line
func ParseError(line string) (domain.ErrorEvent, error) {
	line = strings.TrimRight(line, "\r\n")
	m := errorLinePattern.FindStringSubmatch(line)
	if m == nil {
		return domain.ErrorEvent{}, fmt.Errorf("%w: not an error line", ErrMalformed)
	}

	ts, err := parseErrorTimestamp(strings.Trim(m[1], "[]"))
	if err != nil {
		return domain.ErrorEvent{}, fmt.Errorf("%w: timestamp %q", ErrMalformed, m[1])
	}

	severity, ok := domain.ParseSeverity(m[2])
	if !ok {
		return domain.ErrorEvent{}, fmt.Errorf("%w: severity %q", ErrMalformed, m[2])
	}

	msg := workerPrefix.ReplaceAllString(m[3], "")
	msg = apachePIDPrefix.ReplaceAllString(msg, "")
	var conn string
	if cm := connectionMarker.FindStringSubmatch(msg); cm != nil {
		conn = cm[1]
		msg = msg[len(cm[0]):]
	}

	return domain.ErrorEvent{
		Severity:   severity,
		Message:    strings.TrimSpace(msg),
		Connection: conn,
		Time:       ts,
	}, nil
}

// parseErrorTimestamp handles the nginx and Apache error log timestamp forms.
// Neither carries a zone, so local time is assumed.
func parseErrorTimestamp(s string) (time.Time, error) {
	for _, layout := range errorTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
