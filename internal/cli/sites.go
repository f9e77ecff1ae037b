package cli

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/vburojevic/nginv/internal/discovery"
	"github.com/vburojevic/nginv/internal/domain"
	"github.com/vburojevic/nginv/internal/output"
)

// errNoSites is returned when neither files, config nor discovery yield a site
var errNoSites = errors.New("no log files found")

// siteSource records where a site list came from
type siteSource string

const (
	sitesFromFiles     siteSource = "files"
	sitesFromConfig    siteSource = "config"
	sitesFromDiscovery siteSource = "discovery"
)

// resolveSites picks the monitored sites: explicit files first, then the
// sites listed in the config, then nginx config discovery.
func resolveSites(files []string, configured []domain.Site, sitesDir string, logger *zap.Logger) ([]domain.Site, siteSource, error) {
	if len(files) > 0 {
		return discovery.FromFiles(files), sitesFromFiles, nil
	}
	if len(configured) > 0 {
		return discovery.Disambiguate(configured), sitesFromConfig, nil
	}

	sites, err := discovery.Scan(sitesDir, logger)
	if err != nil {
		return nil, sitesFromDiscovery, err
	}
	if len(sites) == 0 {
		return nil, sitesFromDiscovery, fmt.Errorf("%w in %s", errNoSites, sitesDir)
	}
	return sites, sitesFromDiscovery, nil
}

// sitesError reports a resolveSites failure in the active format
func sitesError(globals *Globals, err error, sitesDir string) error {
	if errors.Is(err, errNoSites) {
		return outputErrorCommon(globals, "NO_SITES", err, hintForNoSites(sitesDir))
	}
	return outputErrorCommon(globals, "DISCOVERY_FAILED", err, hintForSites(err, sitesDir))
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func countFiles(sites []domain.Site) int {
	n := 0
	for _, s := range sites {
		n += len(s.Sources())
	}
	return n
}

// SitesCmd lists the sites that watch would monitor
type SitesCmd struct {
	SitesDir string   `short:"d" help:"nginx sites directory to scan (default from config: /etc/nginx/sites-enabled)"`
	Files    []string `short:"f" name:"files" help:"Log files to monitor instead of discovery (repeatable)"`
}

// Run executes the sites command
func (c *SitesCmd) Run(globals *Globals) error {
	sitesDir := c.SitesDir
	if sitesDir == "" {
		sitesDir = globals.Config.SitesDir
	}

	sites, from, err := resolveSites(c.Files, globals.Config.Sites, sitesDir, zap.NewNop())
	if err != nil {
		return sitesError(globals, err, sitesDir)
	}
	globals.Debug("%d sites from %s", len(sites), from)

	if globals.JSON() {
		w := output.NewNDJSONWriter(globals.Stdout)
		for _, s := range sites {
			if err := w.WriteSite(s, s.AccessPath != "" && fileExists(s.AccessPath), s.ErrorPath != "" && fileExists(s.ErrorPath)); err != nil {
				return err
			}
		}
		return nil
	}

	return output.NewTextWriter(globals.Stdout).WriteSites(sites, fileExists)
}
