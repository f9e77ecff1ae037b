package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vburojevic/nginv/internal/domain"
)

func TestParseAccess(t *testing.T) {
	t.Run("dash byte count is zero", func(t *testing.T) {
		ev, err := ParseAccess(`10.0.0.1 - - [01/Jan/2025:00:00:00 +0000] "GET / HTTP/1.1" 304 -`)
		require.NoError(t, err)
		assert.Equal(t, int64(0), ev.Bytes)
		assert.Equal(t, 304, ev.Status)
	})

	t.Run("ignores referer and user agent", func(t *testing.T) {
		ev, err := ParseAccess(`10.0.0.1 - - [01/Jan/2025:00:00:00 +0000] "GET /a?b=c HTTP/1.1" 200 17 "https://example.com/" "Mozilla/5.0 (X11; Linux x86_64)"`)
		require.NoError(t, err)
		assert.Equal(t, "/a?b=c", ev.Path)
		assert.Equal(t, int64(17), ev.Bytes)
	})

	malformed := []struct {
		name string
		line string
	}{
		{"empty", ""},
		{"garbage", "hello world"},
		{"missing quoted request", `10.0.0.1 - - [01/Jan/2025:00:00:00 +0000] GET / HTTP/1.1 200 17`},
		{"request without protocol", `10.0.0.1 - - [01/Jan/2025:00:00:00 +0000] "GET /" 200 17`},
		{"missing brackets", `10.0.0.1 - - 01/Jan/2025:00:00:00 +0000 "GET / HTTP/1.1" 200 17`},
		{"bad timestamp", `10.0.0.1 - - [yesterday] "GET / HTTP/1.1" 200 17`},
		{"status below range", `10.0.0.1 - - [01/Jan/2025:00:00:00 +0000] "GET / HTTP/1.1" 099 17`},
		{"status above range", `10.0.0.1 - - [01/Jan/2025:00:00:00 +0000] "GET / HTTP/1.1" 600 17`},
		{"non numeric status", `10.0.0.1 - - [01/Jan/2025:00:00:00 +0000] "GET / HTTP/1.1" abc 17`},
		{"byte count overflow", `10.0.0.1 - - [01/Jan/2025:00:00:00 +0000] "GET / HTTP/1.1" 200 99999999999999999999`},
		{"hostname instead of address", `example.com - - [01/Jan/2025:00:00:00 +0000] "GET / HTTP/1.1" 200 17`},
	}
	for _, tt := range malformed {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAccess(tt.line)
			require.ErrorIs(t, err, ErrMalformed)
			assert.Equal(t, domain.Malformed{}, Parse(domain.SourceAccess, tt.line))
		})
	}
}

func TestParseError(t *testing.T) {
	t.Run("bracketed nginx timestamp", func(t *testing.T) {
		ev, err := ParseError(`[2025/01/01 10:00:00] [alert] 7#7: worker process exited`)
		require.NoError(t, err)
		assert.Equal(t, domain.SeverityAlert, ev.Severity)
		assert.Equal(t, "worker process exited", ev.Message)
	})

	t.Run("warning alias", func(t *testing.T) {
		ev, err := ParseError(`[Wed Jan 01 10:00:00 2025] [ssl:warning] [pid 9] AH01909: certificate mismatch`)
		require.NoError(t, err)
		assert.Equal(t, domain.SeverityWarn, ev.Severity)
		assert.Equal(t, "AH01909: certificate mismatch", ev.Message)
	})

	t.Run("trailing carriage return", func(t *testing.T) {
		ev, err := ParseError("2025/01/01 10:00:00 [emerg] 1#1: bind() failed\r")
		require.NoError(t, err)
		assert.Equal(t, "bind() failed", ev.Message)
	})

	malformed := []struct {
		name string
		line string
	}{
		{"empty", ""},
		{"no severity", `2025/01/01 10:00:00 something happened`},
		{"unknown severity", `2025/01/01 10:00:00 [fatal] something happened`},
		{"no timestamp", `[error] something happened`},
		{"impossible date", `2025/13/45 10:00:00 [error] something happened`},
		{"access line", `10.0.0.1 - - [01/Jan/2025:00:00:00 +0000] "GET / HTTP/1.1" 200 17`},
	}
	for _, tt := range malformed {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseError(tt.line)
			require.ErrorIs(t, err, ErrMalformed)
			assert.Equal(t, domain.Malformed{}, Parse(domain.SourceError, tt.line))
		})
	}
}

func TestParseIsIdempotent(t *testing.T) {
	lines := []struct {
		kind domain.SourceKind
		line string
	}{
		{domain.SourceAccess, `203.0.113.7 - - [10/Oct/2024:13:55:36 -0700] "GET /index.html HTTP/1.1" 200 2326`},
		{domain.SourceError, `2024/10/10 13:55:36 [error] 1#1: *2 upstream timed out`},
		{domain.SourceAccess, `not a log line`},
	}
	for _, l := range lines {
		assert.Equal(t, Parse(l.kind, l.line), Parse(l.kind, l.line))
	}
}

func TestParseUnknownKind(t *testing.T) {
	assert.Equal(t, domain.Malformed{}, Parse(domain.SourceKind("journal"), "anything"))
}
