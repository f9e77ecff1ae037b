package output

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/vburojevic/nginv/internal/domain"
)

// Styles holds all lipgloss styles for text output and the dashboard
var Styles = struct {
	// Severity styles
	Debug lipgloss.Style
	Info  lipgloss.Style
	Warn  lipgloss.Style
	Error lipgloss.Style
	Crit  lipgloss.Style

	// Status class styles
	Status2xx lipgloss.Style
	Status3xx lipgloss.Style
	Status4xx lipgloss.Style
	Status5xx lipgloss.Style

	// Component styles
	Timestamp lipgloss.Style
	Site      lipgloss.Style
	Message   lipgloss.Style

	// Summary styles
	Header  lipgloss.Style
	Label   lipgloss.Style
	Value   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Danger  lipgloss.Style

	// TUI styles
	Title     lipgloss.Style
	StatusBar lipgloss.Style
	Box       lipgloss.Style
	Help      lipgloss.Style
}{
	Debug: lipgloss.NewStyle().Foreground(lipgloss.Color("243")),                            // Gray
	Info:  lipgloss.NewStyle().Foreground(lipgloss.Color("39")),                             // Cyan
	Warn:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),                            // Orange
	Error: lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),                 // Red bold
	Crit:  lipgloss.NewStyle().Foreground(lipgloss.Color("201")).Bold(true).Underline(true), // Magenta bold underline

	Status2xx: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),  // Green
	Status3xx: lipgloss.NewStyle().Foreground(lipgloss.Color("39")),  // Cyan
	Status4xx: lipgloss.NewStyle().Foreground(lipgloss.Color("214")), // Orange
	Status5xx: lipgloss.NewStyle().Foreground(lipgloss.Color("196")), // Red

	Timestamp: lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
	Site:      lipgloss.NewStyle().Foreground(lipgloss.Color("33")).Bold(true),
	Message:   lipgloss.NewStyle(),

	Header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).BorderForeground(lipgloss.Color("239")),
	Label:   lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
	Value:   lipgloss.NewStyle().Bold(true),
	Success: lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
	Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
	Danger:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),

	Title:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).Padding(0, 1),
	StatusBar: lipgloss.NewStyle().Background(lipgloss.Color("236")).Foreground(lipgloss.Color("252")).Padding(0, 1),
	Box:       lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("239")).Padding(0, 1),
	Help:      lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
}

// SeverityStyle returns the style for an error log severity
func SeverityStyle(sev domain.Severity) lipgloss.Style {
	switch {
	case sev.Priority() >= domain.SeverityCrit.Priority():
		return Styles.Crit
	case sev == domain.SeverityError:
		return Styles.Error
	case sev == domain.SeverityWarn:
		return Styles.Warn
	case sev == domain.SeverityDebug:
		return Styles.Debug
	default:
		return Styles.Info
	}
}

// StatusClassStyle returns the style for a status class digit (2 for 2xx)
func StatusClassStyle(class int) lipgloss.Style {
	switch class {
	case 2:
		return Styles.Status2xx
	case 3:
		return Styles.Status3xx
	case 4:
		return Styles.Status4xx
	case 5:
		return Styles.Status5xx
	default:
		return Styles.Message
	}
}

// KindStyle returns the style for a recent error tag
func KindStyle(kind domain.SourceKind) lipgloss.Style {
	if kind == domain.SourceError {
		return Styles.Danger
	}
	return Styles.Warning
}

// Indicator returns the availability marker for a log file
func Indicator(found bool) string {
	if found {
		return Styles.Success.Render("●")
	}
	return Styles.Danger.Render("○")
}

// ErrorCountStyle colors an error counter by magnitude
func ErrorCountStyle(n int64) lipgloss.Style {
	switch {
	case n == 0:
		return Styles.Value
	case n < 10:
		return Styles.Warning
	default:
		return Styles.Danger
	}
}
