package output

import (
	"encoding/json"
	"io"
	"time"

	"github.com/vburojevic/nginv/internal/domain"
)

// NDJSONWriter writes records as NDJSON, one object per line
type NDJSONWriter struct {
	w       io.Writer
	encoder *json.Encoder
}

// NewNDJSONWriter creates a new NDJSON writer
func NewNDJSONWriter(w io.Writer) *NDJSONWriter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false) // request paths keep their & and < unescaped
	return &NDJSONWriter{
		w:       w,
		encoder: enc,
	}
}

// SnapshotOutput is one refresh worth of statistics
type SnapshotOutput struct {
	Type            string             `json:"type"` // Always "snapshot"
	SchemaVersion   int                `json:"schemaVersion"`
	Timestamp       string             `json:"timestamp"`
	Started         string             `json:"started"`
	IntervalStart   string             `json:"interval_start"`
	IntervalSeconds float64            `json:"interval_seconds"`
	Grand           domain.GrandTotals `json:"grand"`
	Sites           []domain.SiteStats `json:"sites"`
}

// SiteOutput describes one monitored site and the presence of its files
type SiteOutput struct {
	Type          string `json:"type"` // Always "site"
	SchemaVersion int    `json:"schemaVersion"`
	Label         string `json:"label"`
	Access        string `json:"access,omitempty"`
	Error         string `json:"error,omitempty"`
	AccessFound   bool   `json:"access_found"`
	ErrorFound    bool   `json:"error_found"`
}

// CheckOutput is one doctor check result
type CheckOutput struct {
	Type          string `json:"type"` // Always "check"
	SchemaVersion int    `json:"schemaVersion"`
	Name          string `json:"name"`
	Status        string `json:"status"` // ok, warn or fail
	Detail        string `json:"detail,omitempty"`
}

// ErrorOutput represents a command failure
type ErrorOutput struct {
	Type          string `json:"type"` // Always "error"
	SchemaVersion int    `json:"schemaVersion"`
	Code          string `json:"code"`
	Message       string `json:"message"`
	Hint          string `json:"hint,omitempty"`
}

// InfoOutput represents an informational message
type InfoOutput struct {
	Type          string `json:"type"` // Always "info"
	SchemaVersion int    `json:"schemaVersion"`
	Message       string `json:"message"`
	Sites         int    `json:"sites,omitempty"`
	Files         int    `json:"files,omitempty"`
	Interval      string `json:"interval,omitempty"`
}

// WarningOutput represents a warning message
type WarningOutput struct {
	Type          string `json:"type"` // Always "warning"
	SchemaVersion int    `json:"schemaVersion"`
	Message       string `json:"message"`
}

// MetadataOutput describes the running binary
type MetadataOutput struct {
	Type          string `json:"type"` // Always "metadata"
	SchemaVersion int    `json:"schemaVersion"`
	Version       string `json:"version"`
	Commit        string `json:"commit"`
	BuildDate     string `json:"build_date,omitempty"`
}

// TmuxOutput represents tmux session information
type TmuxOutput struct {
	Type          string `json:"type"` // Always "tmux"
	SchemaVersion int    `json:"schemaVersion"`
	Session       string `json:"session"`
	Attach        string `json:"attach"`
}

// NewSnapshotOutput converts a snapshot into its NDJSON record
func NewSnapshotOutput(snap domain.Snapshot) *SnapshotOutput {
	sites := snap.Sites
	if sites == nil {
		sites = []domain.SiteStats{}
	}
	return &SnapshotOutput{
		Type:            "snapshot",
		SchemaVersion:   SchemaVersion,
		Timestamp:       snap.Taken.Format(time.RFC3339Nano),
		Started:         snap.Started.Format(time.RFC3339Nano),
		IntervalStart:   snap.IntervalStart.Format(time.RFC3339Nano),
		IntervalSeconds: snap.IntervalDuration().Seconds(),
		Grand:           snap.Grand,
		Sites:           sites,
	}
}

// WriteSnapshot outputs one refresh of statistics
func (w *NDJSONWriter) WriteSnapshot(snap domain.Snapshot) error {
	return w.encoder.Encode(NewSnapshotOutput(snap))
}

// WriteSite outputs a site listing entry
func (w *NDJSONWriter) WriteSite(site domain.Site, accessFound, errorFound bool) error {
	return w.encoder.Encode(&SiteOutput{
		Type:          "site",
		SchemaVersion: SchemaVersion,
		Label:         site.Label,
		Access:        site.AccessPath,
		Error:         site.ErrorPath,
		AccessFound:   accessFound,
		ErrorFound:    errorFound,
	})
}

// WriteCheck outputs a doctor check result
func (w *NDJSONWriter) WriteCheck(name, status, detail string) error {
	return w.encoder.Encode(&CheckOutput{
		Type:          "check",
		SchemaVersion: SchemaVersion,
		Name:          name,
		Status:        status,
		Detail:        detail,
	})
}

// WriteError outputs an error
func (w *NDJSONWriter) WriteError(code, message string, hint ...string) error {
	out := &ErrorOutput{
		Type:          "error",
		SchemaVersion: SchemaVersion,
		Code:          code,
		Message:       message,
	}
	if len(hint) > 0 {
		out.Hint = hint[0]
	}
	return w.encoder.Encode(out)
}

// WriteInfo outputs an informational message
func (w *NDJSONWriter) WriteInfo(message string, sites, files int, interval time.Duration) error {
	out := &InfoOutput{
		Type:          "info",
		SchemaVersion: SchemaVersion,
		Message:       message,
		Sites:         sites,
		Files:         files,
	}
	if interval > 0 {
		out.Interval = interval.String()
	}
	return w.encoder.Encode(out)
}

// WriteWarning outputs a warning message
func (w *NDJSONWriter) WriteWarning(message string) error {
	return w.encoder.Encode(&WarningOutput{
		Type:          "warning",
		SchemaVersion: SchemaVersion,
		Message:       message,
	})
}

// WriteMetadata outputs build metadata
func (w *NDJSONWriter) WriteMetadata(version, commit, buildDate string) error {
	return w.encoder.Encode(&MetadataOutput{
		Type:          "metadata",
		SchemaVersion: SchemaVersion,
		Version:       version,
		Commit:        commit,
		BuildDate:     buildDate,
	})
}

// WriteTmux outputs tmux session information
func (w *NDJSONWriter) WriteTmux(session, attach string) error {
	return w.encoder.Encode(&TmuxOutput{
		Type:          "tmux",
		SchemaVersion: SchemaVersion,
		Session:       session,
		Attach:        attach,
	})
}

// WriteRaw outputs raw JSON data
func (w *NDJSONWriter) WriteRaw(v interface{}) error {
	return w.encoder.Encode(v)
}
