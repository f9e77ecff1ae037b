package cli

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/vburojevic/nginv/internal/config"
	"github.com/vburojevic/nginv/internal/output"
)

// DoctorCmd checks configuration and log file access
type DoctorCmd struct {
	SitesDir string   `short:"d" help:"nginx sites directory to scan (default from config: /etc/nginx/sites-enabled)"`
	Files    []string `short:"f" name:"files" help:"Log files to check instead of discovery (repeatable)"`
}

// checkResult represents a single diagnostic check
type checkResult struct {
	Name    string
	Status  string // "ok", "warn", "error"
	Message string
}

// Run executes the doctor command
func (c *DoctorCmd) Run(globals *Globals) error {
	sitesDir := c.SitesDir
	if sitesDir == "" {
		sitesDir = globals.Config.SitesDir
	}

	checks := []checkResult{c.checkConfig()}
	if len(c.Files) == 0 && len(globals.Config.Sites) == 0 {
		checks = append(checks, c.checkSitesDir(sitesDir))
	}
	checks = append(checks, c.checkLogFiles(globals, sitesDir)...)
	checks = append(checks, c.checkTmux())

	errorCount, warnCount := 0, 0
	for _, check := range checks {
		switch check.Status {
		case "error":
			errorCount++
		case "warn":
			warnCount++
		}
	}

	if globals.JSON() {
		w := output.NewNDJSONWriter(globals.Stdout)
		for _, check := range checks {
			if err := w.WriteCheck(check.Name, check.Status, check.Message); err != nil {
				return err
			}
		}
		if err := w.WriteRaw(map[string]interface{}{
			"type":          "doctor",
			"schemaVersion": output.SchemaVersion,
			"all_passed":    errorCount == 0,
			"error_count":   errorCount,
			"warn_count":    warnCount,
		}); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(globals.Stdout, "nginv doctor")
		fmt.Fprintln(globals.Stdout, "============")
		tw := output.NewTextWriter(globals.Stdout)
		for _, check := range checks {
			if err := tw.WriteCheck(check.Name, check.Status, check.Message); err != nil {
				return err
			}
		}
		fmt.Fprintln(globals.Stdout)
		if errorCount == 0 && warnCount == 0 {
			fmt.Fprintln(globals.Stdout, "All checks passed!")
		} else {
			fmt.Fprintf(globals.Stdout, "Errors: %d, Warnings: %d\n", errorCount, warnCount)
		}
	}

	if errorCount > 0 {
		return &CLIError{Code: "DOCTOR_FAILED", Message: fmt.Sprintf("%d checks failed", errorCount)}
	}
	return nil
}

func (c *DoctorCmd) checkConfig() checkResult {
	path := config.ConfigFile()
	if path == "" {
		return checkResult{Name: "config", Status: "ok", Message: "using defaults (no config file)"}
	}

	cfg, err := config.Load()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		return checkResult{Name: "config", Status: "error", Message: err.Error()}
	}
	abs, _ := filepath.Abs(path)
	return checkResult{Name: "config", Status: "ok", Message: "loaded from " + abs}
}

func (c *DoctorCmd) checkSitesDir(dir string) checkResult {
	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return checkResult{Name: "sites_dir", Status: "error", Message: dir + " does not exist"}
	case err != nil:
		return checkResult{Name: "sites_dir", Status: "error", Message: err.Error()}
	case !info.IsDir():
		return checkResult{Name: "sites_dir", Status: "error", Message: dir + " is not a directory"}
	}
	return checkResult{Name: "sites_dir", Status: "ok", Message: dir}
}

// checkLogFiles resolves sites the way watch does and opens every log file
func (c *DoctorCmd) checkLogFiles(globals *Globals, sitesDir string) []checkResult {
	sites, from, err := resolveSites(c.Files, globals.Config.Sites, sitesDir, zap.NewNop())
	if err != nil {
		return []checkResult{{Name: "sites", Status: "error", Message: err.Error()}}
	}

	checks := []checkResult{{
		Name:    "sites",
		Status:  "ok",
		Message: fmt.Sprintf("%d sites (%d files) from %s", len(sites), countFiles(sites), from),
	}}
	for _, s := range sites {
		for _, src := range s.Sources() {
			name := s.Label + " " + string(src.Kind)
			checks = append(checks, checkReadable(name, src.Path))
		}
	}
	return checks
}

func checkReadable(name, path string) checkResult {
	f, err := os.Open(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// watch keeps retrying, so a missing file is not fatal
		return checkResult{Name: name, Status: "warn", Message: path + " not found"}
	case err != nil:
		return checkResult{Name: name, Status: "error", Message: err.Error()}
	}
	defer f.Close()
	return checkResult{Name: name, Status: "ok", Message: path}
}

func (c *DoctorCmd) checkTmux() checkResult {
	path, err := exec.LookPath("tmux")
	if err != nil {
		return checkResult{Name: "tmux", Status: "warn", Message: "tmux not found (only needed for --tmux)"}
	}

	out, _ := exec.Command("tmux", "-V").Output()
	version := strings.TrimSpace(string(out))
	if version == "" {
		version = path
	}
	return checkResult{Name: "tmux", Status: "ok", Message: version}
}
