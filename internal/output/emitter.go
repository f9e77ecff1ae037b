package output

import (
	"io"
	"sync"
	"time"

	"github.com/vburojevic/nginv/internal/domain"
)

// Emitter writes periodic reports in either NDJSON or text format.
// Writes are serialized so the reporter loop and signal handlers can share it.
type Emitter struct {
	mu   sync.Mutex
	json *NDJSONWriter
	text *TextWriter
}

// NewEmitter creates an emitter; format "ndjson" selects NDJSON, anything else text
func NewEmitter(w io.Writer, format string) *Emitter {
	if format == "ndjson" {
		return &Emitter{json: NewNDJSONWriter(w)}
	}
	return &Emitter{text: NewTextWriter(w)}
}

// IsJSON reports whether the emitter writes NDJSON
func (e *Emitter) IsJSON() bool { return e.json != nil }

func (e *Emitter) Snapshot(snap domain.Snapshot) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.json != nil {
		return e.json.WriteSnapshot(snap)
	}
	return e.text.WriteSnapshot(snap)
}

func (e *Emitter) Info(message string, sites, files int, interval time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.json != nil {
		return e.json.WriteInfo(message, sites, files, interval)
	}
	return e.text.WriteInfo(message)
}

func (e *Emitter) Warning(message string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.json != nil {
		return e.json.WriteWarning(message)
	}
	return e.text.WriteWarning(message)
}

func (e *Emitter) Error(code, message string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.json != nil {
		return e.json.WriteError(code, message)
	}
	return e.text.WriteError(code, message)
}
