package tmux

import (
	"io"
	"os"
)

// OutputMode represents the report destination
type OutputMode int

const (
	OutputModeTmux   OutputMode = iota // Reports go to a tmux pane
	OutputModeStdout                   // Reports go to stdout
)

// OutputManager picks a report destination, falling back to stdout
type OutputManager struct {
	mode     OutputMode
	tmux     *Manager
	writer   io.Writer
	fallback error
}

// NewOutputManager tries tmux when preferred and falls back to stdout.
// The reason for a fallback is available from FallbackReason.
func NewOutputManager(preferTmux bool, cfg *Config) *OutputManager {
	om := &OutputManager{mode: OutputModeStdout, writer: os.Stdout}
	if !preferTmux {
		return om
	}

	mgr, err := NewManager(cfg)
	if err != nil {
		om.fallback = err
		return om
	}
	if err := mgr.GetOrCreateSession(); err != nil {
		om.fallback = err
		return om
	}

	om.mode = OutputModeTmux
	om.tmux = mgr
	om.writer = NewWriter(mgr)
	return om
}

// Writer returns the io.Writer for reports
func (om *OutputManager) Writer() io.Writer {
	return om.writer
}

// Mode returns the current output mode
func (om *OutputManager) Mode() OutputMode {
	return om.mode
}

// TmuxManager returns the tmux manager if in tmux mode
func (om *OutputManager) TmuxManager() *Manager {
	return om.tmux
}

// IsTmuxMode returns true if reports go to tmux
func (om *OutputManager) IsTmuxMode() bool {
	return om.mode == OutputModeTmux
}

// FallbackReason is the error that prevented tmux output, if any
func (om *OutputManager) FallbackReason() error {
	return om.fallback
}

// AttachCommand returns the tmux attach command if in tmux mode
func (om *OutputManager) AttachCommand() string {
	if om.tmux != nil {
		return om.tmux.AttachCommand()
	}
	return ""
}

// SessionName returns the tmux session name if in tmux mode
func (om *OutputManager) SessionName() string {
	if om.tmux != nil {
		return om.tmux.SessionName()
	}
	return ""
}

// Cleanup flushes pending output; the tmux session persists
func (om *OutputManager) Cleanup() error {
	if om.tmux == nil {
		return nil
	}
	var err error
	if w, ok := om.writer.(*Writer); ok {
		err = w.Flush()
	}
	om.tmux.Cleanup()
	return err
}

// ModeString returns a human-readable description of the output mode
func (om *OutputManager) ModeString() string {
	switch om.mode {
	case OutputModeTmux:
		return "tmux session: " + om.SessionName()
	case OutputModeStdout:
		return "stdout"
	default:
		return "unknown"
	}
}
