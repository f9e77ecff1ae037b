package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/vburojevic/nginv/internal/config"
	"github.com/vburojevic/nginv/internal/output"
)

// CLI is the root command structure for nginv
type CLI struct {
	// Global flags
	Format  string `default:"${config_format}" enum:"auto,tui,text,ndjson" help:"Output format: auto picks the dashboard on a terminal and text otherwise"`
	Quiet   bool   `short:"q" help:"Suppress informational output (reports and errors only)"`
	Verbose bool   `short:"v" help:"Debug diagnostics (file opens, rotations, truncations)"`

	// Commands
	Watch   WatchCmd   `cmd:"" default:"withargs" help:"Tail nginx logs and show live statistics"`
	Sites   SitesCmd   `cmd:"" help:"List the sites and log files that would be monitored"`
	Doctor  DoctorCmd  `cmd:"" help:"Check configuration and log file access"`
	Config  ConfigCmd  `cmd:"" help:"Show or manage configuration"`
	Version VersionCmd `cmd:"" help:"Show version information"`
}

// Globals holds shared state for all commands
type Globals struct {
	Format  string
	Quiet   bool
	Verbose bool
	Stdout  io.Writer
	Stderr  io.Writer
	Config  *config.Config
}

// NewGlobalsWithConfig creates a new Globals instance with config fallbacks
func NewGlobalsWithConfig(cli *CLI, cfg *config.Config) *Globals {
	if cfg == nil {
		cfg = config.Default()
	}
	g := &Globals{
		Format:  cli.Format,
		Quiet:   cli.Quiet || cfg.Quiet,
		Verbose: cli.Verbose || cfg.Verbose,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Config:  cfg,
	}
	return g
}

// JSON reports whether command output is NDJSON
func (g *Globals) JSON() bool {
	return g.Format == "ndjson"
}

// Debug prints a debug message if verbose mode is enabled
func (g *Globals) Debug(format string, args ...interface{}) {
	if g.Verbose {
		fmt.Fprintf(g.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// isTerminal reports whether w is a terminal
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

// resolveFormat maps "auto" to the dashboard on a terminal and text
// otherwise. The dashboard is never used without a terminal.
func resolveFormat(g *Globals) string {
	switch g.Format {
	case "auto":
		if isTerminal(g.Stdout) {
			return "tui"
		}
		return "text"
	case "tui":
		if !isTerminal(g.Stdout) {
			return "text"
		}
	}
	return g.Format
}

// VersionCmd shows version information
type VersionCmd struct{}

// Run executes the version command
func (v *VersionCmd) Run(globals *Globals) error {
	if globals.JSON() {
		return output.NewNDJSONWriter(globals.Stdout).WriteMetadata(Version, Commit, BuildDate)
	}
	_, err := fmt.Fprintf(globals.Stdout, "nginv version %s (%s, built %s)\n", Version, Commit, BuildDate)
	return err
}

// Version information (set at build time)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)
