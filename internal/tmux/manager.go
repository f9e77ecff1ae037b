package tmux

import (
	"fmt"
	"os/exec"
	"sync"

	"github.com/GianlucaP106/gotmux/gotmux"
)

// DefaultSessionName is used when no session name is given
const DefaultSessionName = "nginv"

// Config holds tmux session configuration
type Config struct {
	SessionName    string // e.g., "nginv" or "nginv-web01"
	StartDirectory string
}

// commander runs raw tmux commands; *gotmux.Tmux satisfies it
type commander interface {
	Command(req ...string) (string, error)
}

// Manager owns the tmux session that headless reports are written into
type Manager struct {
	tmux    *gotmux.Tmux
	cmd     commander
	session *gotmux.Session
	pane    *gotmux.Pane
	config  *Config
	mu      sync.Mutex
}

// Errors
var (
	ErrTmuxNotInstalled = fmt.Errorf("tmux is not installed")
	ErrNoPaneAvailable  = fmt.Errorf("no tmux pane available")
)

// IsTmuxAvailable checks if tmux is installed
func IsTmuxAvailable() bool {
	_, err := exec.LookPath("tmux")
	return err == nil
}

// NewManager creates a new tmux manager instance
func NewManager(cfg *Config) (*Manager, error) {
	if !IsTmuxAvailable() {
		return nil, ErrTmuxNotInstalled
	}

	t, err := gotmux.DefaultTmux()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tmux: %w", err)
	}
	if cfg.SessionName == "" {
		cfg.SessionName = DefaultSessionName
	}

	return &Manager{
		tmux:   t,
		cmd:    t,
		config: cfg,
	}, nil
}

// GetOrCreateSession finds the existing report session or creates it
func (m *Manager) GetOrCreateSession() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessions, err := m.tmux.ListSessions()
	if err == nil {
		for _, s := range sessions {
			if s.Name == m.config.SessionName {
				m.session = s
				return m.selectFirstPane()
			}
		}
	}

	session, err := m.tmux.NewSession(&gotmux.SessionOptions{
		Name:           m.config.SessionName,
		StartDirectory: m.config.StartDirectory,
	})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	m.session = session
	return m.selectFirstPane()
}

func (m *Manager) selectFirstPane() error {
	windows, err := m.session.ListWindows()
	if err != nil {
		return fmt.Errorf("failed to list windows: %w", err)
	}
	if len(windows) == 0 {
		return ErrNoPaneAvailable
	}

	panes, err := windows[0].ListPanes()
	if err != nil {
		return fmt.Errorf("failed to list panes: %w", err)
	}
	if len(panes) == 0 {
		return ErrNoPaneAvailable
	}
	m.pane = panes[0]
	return nil
}

// SessionName returns the current session name
func (m *Manager) SessionName() string {
	return m.config.SessionName
}

// AttachCommand returns the command string for attaching to this session
func (m *Manager) AttachCommand() string {
	return AttachCommand(m.config.SessionName)
}

// AttachCommand returns the attach command for a session name
func AttachCommand(sessionName string) string {
	return fmt.Sprintf("tmux attach -t %s", sessionName)
}

// Cleanup drops internal references; the session itself keeps running
func (m *Manager) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.session = nil
	m.pane = nil
}
