package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/vburojevic/nginv/internal/domain"
	"github.com/vburojevic/nginv/internal/output"
)

// Source is what the dashboard reads statistics from
type Source interface {
	Snapshot() domain.Snapshot
	Tick() domain.Snapshot
	Reset()
}

type keyMap struct {
	Quit   key.Binding
	Reset  key.Binding
	Up     key.Binding
	Down   key.Binding
	Top    key.Binding
	Bottom key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Quit, k.Reset, k.Up, k.Down}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Quit, k.Reset}, {k.Up, k.Down, k.Top, k.Bottom}}
}

var keys = keyMap{
	Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Reset:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reset")),
	Up:     key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "up")),
	Down:   key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "down")),
	Top:    key.NewBinding(key.WithKeys("g", "home"), key.WithHelp("g", "top")),
	Bottom: key.NewBinding(key.WithKeys("G", "end"), key.WithHelp("G", "bottom")),
}

// Model is the live dashboard
type Model struct {
	source   Source
	interval time.Duration
	snapshot domain.Snapshot
	viewport viewport.Model
	help     help.Model
	width    int
	height   int
	ready    bool
	resets   int
}

// TickMsg triggers a refresh: the elapsed interval is snapshotted and rotated
type TickMsg time.Time

// New creates a dashboard refreshing every interval
func New(source Source, interval time.Duration) Model {
	return Model{
		source:   source,
		interval: interval,
		snapshot: source.Snapshot(),
		help:     help.New(),
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tickCmd(m.interval)
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Reset):
			m.source.Reset()
			m.snapshot = m.source.Snapshot()
			m.resets++
			m.updateViewport()
		case key.Matches(msg, keys.Top):
			m.viewport.GotoTop()
		case key.Matches(msg, keys.Bottom):
			m.viewport.GotoBottom()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

		headerHeight := 2
		footerHeight := 1
		viewportHeight := max(m.height-headerHeight-footerHeight, 1)

		if !m.ready {
			m.viewport = viewport.New(m.width, viewportHeight)
			m.viewport.YPosition = headerHeight
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = viewportHeight
		}
		m.updateViewport()

	case TickMsg:
		m.snapshot = m.source.Tick()
		m.updateViewport()
		cmds = append(cmds, tickCmd(m.interval))
	}

	if m.ready {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// View renders the UI
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}
	return fmt.Sprintf("%s\n%s\n%s", m.renderHeader(), m.viewport.View(), m.help.View(keys))
}

func (m *Model) updateViewport() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderBody())
}

func (m *Model) renderHeader() string {
	titleStyle := output.Styles.StatusBar.Width(m.width)
	title := fmt.Sprintf("nginv  %s  refresh %s",
		m.snapshot.Taken.Local().Format("2006-01-02 15:04:05"), output.FormatDuration(m.interval))

	info := fmt.Sprintf("%d sites  window %s  up %s",
		len(m.snapshot.Sites),
		output.FormatDuration(m.snapshot.IntervalDuration()),
		output.FormatDuration(m.snapshot.Taken.Sub(m.snapshot.Started)))
	if m.resets > 0 {
		info += "  [reset]"
	}

	return titleStyle.Render(title) + "\n" + output.Styles.Help.Width(m.width).Render(info)
}

func (m *Model) renderBody() string {
	var b strings.Builder

	b.WriteString(output.Styles.Box.Render(strings.TrimRight(output.SummaryLines(m.snapshot), "\n")))
	b.WriteString("\n")

	if t := accessTable(m.snapshot.Sites); t != "" {
		b.WriteString(output.Styles.Title.Render("Access"))
		b.WriteString("\n")
		b.WriteString(t)
		b.WriteString("\n")
	}
	if t := errorTable(m.snapshot.Sites); t != "" {
		b.WriteString(output.Styles.Title.Render("Errors"))
		b.WriteString("\n")
		b.WriteString(t)
		b.WriteString("\n")
	}

	b.WriteString(output.RecentErrorLines(m.snapshot.Grand.RecentErrors))
	return b.String()
}

func accessTable(sites []domain.SiteStats) string {
	var rows [][]string
	for _, s := range sites {
		if !s.HasAccess {
			continue
		}
		rows = append(rows, []string{
			s.Label,
			output.Indicator(s.AccessAvailable),
			strconv.FormatInt(s.Interval.Requests, 10),
			strconv.FormatInt(s.Interval.Status2xx, 10),
			strconv.FormatInt(s.Interval.Status4xx, 10),
			strconv.FormatInt(s.Interval.Status5xx, 10),
			strconv.FormatInt(s.Totals.Requests, 10),
			strconv.FormatInt(s.Totals.Status2xx, 10),
			strconv.FormatInt(s.Totals.Errors, 10),
		})
	}
	if len(rows) == 0 {
		return ""
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("239"))).
		Headers("SITE", "", "REQ", "2XX", "4XX", "5XX", "TOTAL", "T.2XX", "T.ERR").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			style := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return style.Inherit(output.Styles.Label)
			}
			switch col {
			case 0:
				return style.Inherit(output.Styles.Site)
			case 3:
				return style.Inherit(output.Styles.Status2xx)
			case 4:
				return style.Inherit(output.Styles.Status4xx)
			case 5:
				return style.Inherit(output.Styles.Status5xx)
			}
			return style
		}).
		String()
}

func errorTable(sites []domain.SiteStats) string {
	var rows [][]string
	for _, s := range sites {
		if !s.HasError {
			continue
		}
		rows = append(rows, []string{
			s.Label,
			output.Indicator(s.ErrorAvailable),
			output.ErrorCountStyle(s.Interval.Errors).Render(strconv.FormatInt(s.Interval.Errors, 10)),
			strconv.FormatInt(s.Totals.Errors, 10),
		})
	}
	if len(rows) == 0 {
		return ""
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("239"))).
		Headers("SITE", "", "ERRORS", "TOTAL").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			style := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return style.Inherit(output.Styles.Label)
			}
			if col == 0 {
				return style.Inherit(output.Styles.Site)
			}
			return style
		}).
		String()
}

// tickCmd schedules the next refresh
func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// Run starts the dashboard on the alternate screen and blocks until the user
// quits or ctx is cancelled
func Run(ctx context.Context, source Source, interval time.Duration) error {
	p := tea.NewProgram(New(source, interval), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
