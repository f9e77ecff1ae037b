package tmux

import (
	"fmt"
	"io"
	"strings"
	"time"
)

func (m *Manager) paneTarget() string {
	return m.config.SessionName + ":0.0"
}

// ClearPane clears the pane content and scrollback history
func (m *Manager) ClearPane() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pane == nil {
		return ErrNoPaneAvailable
	}
	target := m.paneTarget()

	if _, err := m.cmd.Command("send-keys", "-t", target, "-R"); err != nil {
		return fmt.Errorf("failed to reset terminal: %w", err)
	}
	if _, err := m.cmd.Command("clear-history", "-t", target); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	if _, err := m.cmd.Command("send-keys", "-t", target, "clear", "Enter"); err != nil {
		return fmt.Errorf("failed to clear screen: %w", err)
	}
	return nil
}

// ClearPaneWithBanner clears the pane and prints a start marker
func (m *Manager) ClearPaneWithBanner(message string, now time.Time) error {
	if err := m.ClearPane(); err != nil {
		return err
	}

	rule := strings.Repeat("═", 59)
	return m.WriteLines([]string{
		rule,
		"  nginv - " + message,
		fmt.Sprintf("  Session: %s | Started: %s", m.config.SessionName, now.Format("2006-01-02 15:04:05")),
		rule,
	})
}

// WriteLine prints a single line in the pane
func (m *Manager) WriteLine(line string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pane == nil {
		return ErrNoPaneAvailable
	}
	_, err := m.cmd.Command("send-keys", "-t", m.paneTarget(), printfCommand(line), "Enter")
	return err
}

// WriteLines writes multiple lines
func (m *Manager) WriteLines(lines []string) error {
	for _, line := range lines {
		if err := m.WriteLine(line); err != nil {
			return err
		}
	}
	return nil
}

// printfCommand builds a shell command that prints line verbatim
func printfCommand(line string) string {
	return fmt.Sprintf(`printf '%%s\n' '%s'`, strings.ReplaceAll(line, "'", `'"'"'`))
}

// Writer implements io.Writer over a tmux pane, one send-keys per complete line
type Writer struct {
	manager *Manager
	buffer  strings.Builder
}

// NewWriter creates a new writer that streams to the manager's pane
func NewWriter(manager *Manager) *Writer {
	return &Writer{manager: manager}
}

// Write buffers p and sends every complete line to the pane
func (w *Writer) Write(p []byte) (n int, err error) {
	w.buffer.Write(p)

	content := w.buffer.String()
	idx := strings.LastIndexByte(content, '\n')
	if idx < 0 {
		return len(p), nil
	}
	w.buffer.Reset()
	w.buffer.WriteString(content[idx+1:])

	for _, line := range strings.Split(content[:idx], "\n") {
		if line == "" {
			continue
		}
		if err := w.manager.WriteLine(line); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// Flush writes any remaining buffered content
func (w *Writer) Flush() error {
	if w.buffer.Len() == 0 {
		return nil
	}
	err := w.manager.WriteLine(w.buffer.String())
	w.buffer.Reset()
	return err
}

var _ io.Writer = (*Writer)(nil)
