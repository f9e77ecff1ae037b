package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/vburojevic/nginv/internal/domain"
)

// TextWriter writes human-readable reports
type TextWriter struct {
	w io.Writer
}

// NewTextWriter creates a new text writer
func NewTextWriter(w io.Writer) *TextWriter {
	return &TextWriter{w: w}
}

// WriteSnapshot renders the summary, per-site tables and recent errors
func (w *TextWriter) WriteSnapshot(snap domain.Snapshot) error {
	var b strings.Builder

	b.WriteString(Styles.Header.Render(fmt.Sprintf("nginv %s  window %s",
		snap.Taken.Format("2006-01-02 15:04:05"), FormatDuration(snap.IntervalDuration()))))
	b.WriteString("\n")
	b.WriteString(SummaryLines(snap))
	b.WriteString("\n")

	if _, err := io.WriteString(w.w, b.String()); err != nil {
		return err
	}

	if err := w.writeAccessTable(snap); err != nil {
		return err
	}
	if err := w.writeErrorTable(snap); err != nil {
		return err
	}

	_, err := io.WriteString(w.w, RecentErrorLines(snap.Grand.RecentErrors)+"\n")
	return err
}

// SummaryLines renders the grand totals block shared by reports and the dashboard
func SummaryLines(snap domain.Snapshot) string {
	g := snap.Grand
	var b strings.Builder

	b.WriteString(Styles.Label.Render("Total: "))
	b.WriteString(Styles.Value.Render(strconv.FormatInt(g.Totals.Requests, 10)) + " req  ")
	b.WriteString(Styles.Value.Render(FormatBytes(float64(g.Totals.Bytes))) + "  ")
	b.WriteString(Styles.Value.Render(strconv.Itoa(g.Totals.UniqueIPs)) + " IPs  ")
	b.WriteString(ErrorCountStyle(g.Totals.Errors).Render(strconv.FormatInt(g.Totals.Errors, 10) + " errors"))
	b.WriteString("\n")

	b.WriteString(Styles.Label.Render("Rate:  "))
	b.WriteString(Styles.Value.Render(fmt.Sprintf("%.1f req/s", g.RequestsPerSecond)) + "  ")
	b.WriteString(Styles.Value.Render(FormatRate(g.BytesPerSecond)))
	b.WriteString(Styles.Label.Render("  Interval: "))
	b.WriteString(Styles.Value.Render(strconv.FormatInt(g.Interval.Requests, 10)) + " req  ")
	b.WriteString(Styles.Value.Render(strconv.Itoa(g.Interval.UniqueIPs)) + " IPs")
	b.WriteString("\n")

	b.WriteString(Styles.Label.Render("Codes: "))
	classes := []struct {
		class int
		n     int64
	}{
		{2, g.Interval.Status2xx},
		{3, g.Interval.Status3xx},
		{4, g.Interval.Status4xx},
		{5, g.Interval.Status5xx},
	}
	for i, c := range classes {
		if i > 0 {
			b.WriteString("  ")
		}
		b.WriteString(StatusClassStyle(c.class).Render(fmt.Sprintf("%dxx:%d", c.class, c.n)))
	}
	b.WriteString("\n")
	return b.String()
}

// RecentErrorLines renders the merged recent errors, oldest first
func RecentErrorLines(entries []domain.RecentError) string {
	var b strings.Builder
	b.WriteString(Styles.Header.Render(fmt.Sprintf("Recent errors (last %d)", domain.MaxRecentErrors)))
	b.WriteString("\n")
	if len(entries) == 0 {
		b.WriteString(Styles.Help.Render("  none"))
		b.WriteString("\n")
		return b.String()
	}
	for _, e := range entries {
		b.WriteString(RecentErrorLine(e))
		b.WriteString("\n")
	}
	return b.String()
}

// RecentErrorLine renders one recent error: "12:00:01 [ERR] site [error] message"
func RecentErrorLine(e domain.RecentError) string {
	return Styles.Timestamp.Render(e.Time.Local().Format(time.TimeOnly)) + " " +
		KindStyle(e.Kind).Render("["+e.Kind.Tag()+"]") + " " +
		Styles.Site.Render(e.Site) + " " +
		Styles.Message.Render(e.Summary)
}

func (w *TextWriter) writeAccessTable(snap domain.Snapshot) error {
	table := tablewriter.NewWriter(w.w)
	table.Header("Site", "", "Req", "2xx", "4xx", "5xx", "Total", "T.2xx", "T.Err")

	rows := 0
	for _, s := range snap.Sites {
		if !s.HasAccess {
			continue
		}
		rows++
		if err := table.Append([]string{
			s.Label,
			indicatorText(s.AccessAvailable),
			strconv.FormatInt(s.Interval.Requests, 10),
			strconv.FormatInt(s.Interval.Status2xx, 10),
			strconv.FormatInt(s.Interval.Status4xx, 10),
			strconv.FormatInt(s.Interval.Status5xx, 10),
			strconv.FormatInt(s.Totals.Requests, 10),
			strconv.FormatInt(s.Totals.Status2xx, 10),
			strconv.FormatInt(s.Totals.Errors, 10),
		}); err != nil {
			return err
		}
	}
	if rows == 0 {
		return nil
	}
	return table.Render()
}

func (w *TextWriter) writeErrorTable(snap domain.Snapshot) error {
	table := tablewriter.NewWriter(w.w)
	table.Header("Site", "", "Errors", "Total")

	rows := 0
	for _, s := range snap.Sites {
		if !s.HasError {
			continue
		}
		rows++
		if err := table.Append([]string{
			s.Label,
			indicatorText(s.ErrorAvailable),
			strconv.FormatInt(s.Interval.Errors, 10),
			strconv.FormatInt(s.Totals.Errors, 10),
		}); err != nil {
			return err
		}
	}
	if rows == 0 {
		return nil
	}
	return table.Render()
}

// WriteSites renders the site listing
func (w *TextWriter) WriteSites(sites []domain.Site, found func(path string) bool) error {
	table := tablewriter.NewWriter(w.w)
	table.Header("Site", "", "Access log", "", "Error log")
	for _, s := range sites {
		row := []string{s.Label, "", s.AccessPath, "", s.ErrorPath}
		if s.AccessPath != "" {
			row[1] = indicatorText(found(s.AccessPath))
		}
		if s.ErrorPath != "" {
			row[3] = indicatorText(found(s.ErrorPath))
		}
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}

// WriteCheck renders a doctor check result
func (w *TextWriter) WriteCheck(name, status, detail string) error {
	var mark string
	switch status {
	case "ok":
		mark = Styles.Success.Render("✓")
	case "warn":
		mark = Styles.Warning.Render("!")
	default:
		mark = Styles.Danger.Render("✗")
	}
	line := mark + " " + Styles.Value.Render(name)
	if detail != "" {
		line += Styles.Label.Render(" - " + detail)
	}
	_, err := io.WriteString(w.w, line+"\n")
	return err
}

// WriteError outputs a styled error
func (w *TextWriter) WriteError(code, message string) error {
	errorLabel := Styles.Danger.Render("Error")
	codeStr := Styles.Warning.Render("[" + code + "]")
	line := errorLabel + " " + codeStr + ": " + message + "\n"
	_, err := io.WriteString(w.w, line)
	return err
}

// WriteInfo outputs a plain informational line
func (w *TextWriter) WriteInfo(message string) error {
	_, err := io.WriteString(w.w, Styles.Info.Render(message)+"\n")
	return err
}

// WriteWarning outputs a styled warning line
func (w *TextWriter) WriteWarning(message string) error {
	_, err := io.WriteString(w.w, Styles.Warning.Render("Warning: ")+message+"\n")
	return err
}

// indicatorText is the unstyled availability marker; table cells stay
// free of escape sequences so column widths line up.
func indicatorText(found bool) string {
	if found {
		return "●"
	}
	return "○"
}
