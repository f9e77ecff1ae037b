package cli

import (
	"fmt"

	"github.com/vburojevic/nginv/internal/config"
	"github.com/vburojevic/nginv/internal/output"
)

// ConfigCmd shows or manages configuration
type ConfigCmd struct {
	Show     ConfigShowCmd     `cmd:"" default:"withargs" help:"Show current configuration"`
	Path     ConfigPathCmd     `cmd:"" help:"Show configuration file path"`
	Generate ConfigGenerateCmd `cmd:"" help:"Generate sample configuration file"`
}

// ConfigShowCmd shows current configuration
type ConfigShowCmd struct{}

type configOutput struct {
	Type          string `json:"type"`
	SchemaVersion int    `json:"schemaVersion"`
	*config.Config
	File string `json:"file,omitempty"`
}

// Run executes the config show command
func (c *ConfigShowCmd) Run(globals *Globals) error {
	cfg := globals.Config
	if cfg == nil {
		cfg = config.Default()
	}
	path := config.ConfigFile()

	if globals.JSON() {
		return output.NewNDJSONWriter(globals.Stdout).WriteRaw(configOutput{
			Type:          "config",
			SchemaVersion: output.SchemaVersion,
			Config:        cfg,
			File:          path,
		})
	}

	w := globals.Stdout
	fmt.Fprintln(w, "Current Configuration:")
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "  format:           %s\n", cfg.Format)
	fmt.Fprintf(w, "  quiet:            %v\n", cfg.Quiet)
	fmt.Fprintf(w, "  verbose:          %v\n", cfg.Verbose)
	fmt.Fprintf(w, "  refresh_interval: %s\n", cfg.RefreshInterval)
	fmt.Fprintf(w, "  poll_interval:    %s\n", cfg.PollInterval)
	fmt.Fprintf(w, "  sites_dir:        %s\n", cfg.SitesDir)
	fmt.Fprintf(w, "  listen:           %s\n", cfg.Listen)
	fmt.Fprintf(w, "  log_file:         %s\n", cfg.LogFile)
	fmt.Fprintf(w, "  log_level:        %s\n", cfg.LogLevel)

	if len(cfg.Sites) > 0 {
		fmt.Fprintln(w, "")
		fmt.Fprintln(w, "Sites:")
		for _, s := range cfg.Sites {
			fmt.Fprintf(w, "  %s\n", s.Label)
			if s.AccessPath != "" {
				fmt.Fprintf(w, "    access: %s\n", s.AccessPath)
			}
			if s.ErrorPath != "" {
				fmt.Fprintf(w, "    error:  %s\n", s.ErrorPath)
			}
		}
	}

	if path != "" {
		fmt.Fprintln(w, "")
		fmt.Fprintf(w, "Loaded from: %s\n", path)
	}
	return nil
}

// ConfigPathCmd shows config file path
type ConfigPathCmd struct{}

// Run executes the config path command
func (c *ConfigPathCmd) Run(globals *Globals) error {
	path := config.ConfigFile()

	if globals.JSON() {
		return output.NewNDJSONWriter(globals.Stdout).WriteRaw(map[string]interface{}{
			"type":          "config_path",
			"schemaVersion": output.SchemaVersion,
			"path":          path,
			"search":        config.SearchPaths(),
		})
	}

	if path != "" {
		fmt.Fprintf(globals.Stdout, "Config file: %s\n", path)
		return nil
	}

	fmt.Fprintln(globals.Stdout, "No configuration file found")
	fmt.Fprintln(globals.Stdout, "")
	fmt.Fprintln(globals.Stdout, "Create one at:")
	for _, p := range config.SearchPaths() {
		fmt.Fprintf(globals.Stdout, "  %s\n", p)
	}
	return nil
}

// ConfigGenerateCmd generates a sample configuration file
type ConfigGenerateCmd struct{}

// Run executes the config generate command
func (c *ConfigGenerateCmd) Run(globals *Globals) error {
	_, err := fmt.Fprint(globals.Stdout, config.Sample)
	return err
}
