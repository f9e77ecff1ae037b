package discovery

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/vburojevic/nginv/internal/domain"
)

// DefaultSitesDir is where nginx keeps enabled virtual host configs
const DefaultSitesDir = "/etc/nginx/sites-enabled"

// ErrSitesDirNotFound is returned when the sites directory does not exist
var ErrSitesDirNotFound = errors.New("sites directory not found")

var (
	directivePattern = regexp.MustCompile(`^\s*(server_name|access_log|error_log)\s+([^\s;]+)`)

	commonTLDs = map[string]bool{
		"com": true, "org": true, "net": true, "io": true, "ninja": true, "co": true, "app": true,
		"dev": true, "xyz": true, "gg": true, "uk": true, "us": true, "eu": true,
	}
)

// config holds the directives of interest found in one nginx config file
type config struct {
	file       string
	serverName string
	access     []string
	errors     []string
}

// Scan reads every regular file in dir (sorted by name) and builds one site
// per config file from its server_name, access_log and error_log directives.
// Unreadable files are skipped with a warning.
func Scan(dir string, logger *zap.Logger) ([]domain.Site, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSitesDirNotFound, dir)
		}
		return nil, fmt.Errorf("failed to stat sites directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrSitesDirNotFound, dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read sites directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	seen := make(map[string]bool)
	var sites []domain.Site
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		// sites-enabled entries are usually symlinks; os.Stat follows them
		fi, err := os.Stat(path)
		if err != nil || !fi.Mode().IsRegular() {
			continue
		}

		cfg, err := parseConfig(path)
		if err != nil {
			logger.Warn("could not read nginx config", zap.String("file", path), zap.Error(err))
			continue
		}
		sites = append(sites, cfg.sites(seen)...)
	}

	return Disambiguate(sites), nil
}

func parseConfig(path string) (config, error) {
	f, err := os.Open(path)
	if err != nil {
		return config{}, err
	}
	defer func() { _ = f.Close() }()

	cfg := config{file: filepath.Base(path)}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		m := directivePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		value := strings.Trim(m[2], `"'`)
		switch m[1] {
		case "server_name":
			if cfg.serverName == "" && value != "_" {
				cfg.serverName = value
			}
		case "access_log":
			cfg.access = append(cfg.access, value)
		case "error_log":
			cfg.errors = append(cfg.errors, value)
		}
	}
	return cfg, scanner.Err()
}

// sites pairs the access and error logs of one config in order of
// appearance. Paths already claimed by an earlier config are skipped.
func (c config) sites(seen map[string]bool) []domain.Site {
	label := ShortName(c.serverName)
	if label == "" {
		label = ShortName(c.file)
	}

	access := usablePaths(c.access, seen)
	errs := usablePaths(c.errors, seen)

	n := max(len(access), len(errs))
	sites := make([]domain.Site, 0, n)
	for i := 0; i < n; i++ {
		site := domain.Site{Label: label}
		if i < len(access) {
			site.AccessPath = access[i]
		}
		if i < len(errs) {
			site.ErrorPath = errs[i]
		}
		sites = append(sites, site)
	}
	return sites
}

// usablePaths drops disabled, non-file and duplicate log targets
func usablePaths(paths []string, seen map[string]bool) []string {
	var out []string
	for _, p := range paths {
		switch {
		case p == "off", p == "stderr", p == "/dev/null":
			continue
		case strings.HasPrefix(p, "syslog:"), strings.HasPrefix(p, "memory:"):
			continue
		case strings.Contains(p, "$"):
			continue
		case seen[p]:
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// ShortName turns a server name into a short display label: "www." and
// "api." are dropped, then the first dot-separated part that is not a
// common TLD and is longer than two characters wins.
func ShortName(serverName string) string {
	if serverName == "" {
		return ""
	}
	name := strings.ToLower(serverName)
	name = strings.ReplaceAll(name, "www.", "")
	name = strings.ReplaceAll(name, "api.", "")

	parts := strings.Split(name, ".")
	for _, part := range parts {
		if !commonTLDs[part] && len(part) > 2 {
			return part
		}
	}
	if parts[0] != "" {
		return parts[0]
	}
	return serverName
}

// FromFiles builds sites from explicitly listed log files. A file whose base
// name contains "error" is an error log; the label is the base name without
// its extension and access/error suffix. Files sharing a label share a site.
func FromFiles(paths []string) []domain.Site {
	var sites []domain.Site
	index := make(map[string]int)

	for _, p := range paths {
		kind := KindFromName(p)
		label := LabelFromName(p)

		i, ok := index[label]
		if ok && sites[i].Path(kind) != "" {
			ok = false
		}
		if !ok {
			sites = append(sites, domain.Site{Label: label})
			i = len(sites) - 1
			index[label] = i
		}
		if kind == domain.SourceError {
			sites[i].ErrorPath = p
		} else {
			sites[i].AccessPath = p
		}
	}
	return Disambiguate(sites)
}

// KindFromName guesses the log kind from a file name
func KindFromName(path string) domain.SourceKind {
	if strings.Contains(strings.ToLower(filepath.Base(path)), "error") {
		return domain.SourceError
	}
	return domain.SourceAccess
}

// LabelFromName derives a site label from a log file name:
// "/var/log/nginx/shop_access.log" gives "shop", "error.log" gives "default".
func LabelFromName(path string) string {
	base := strings.ToLower(filepath.Base(path))
	for _, ext := range []string{".gz", ".1", ".log"} {
		base = strings.TrimSuffix(base, ext)
	}
	for _, suffix := range []string{"access", "error"} {
		if strings.HasSuffix(base, suffix) {
			base = strings.TrimSuffix(base, suffix)
			base = strings.TrimRight(base, "_-.")
			break
		}
	}
	if base == "" {
		return "default"
	}
	return base
}

// Disambiguate renames repeated labels to label-2, label-3 and so on,
// keeping the first occurrence unchanged.
func Disambiguate(sites []domain.Site) []domain.Site {
	used := make(map[string]bool, len(sites))
	for _, s := range sites {
		used[s.Label] = true
	}

	counts := make(map[string]int, len(sites))
	out := make([]domain.Site, len(sites))
	for i, s := range sites {
		counts[s.Label]++
		if counts[s.Label] > 1 {
			label := s.Label
			for n := counts[s.Label]; ; n++ {
				candidate := label + "-" + strconv.Itoa(n)
				if !used[candidate] {
					s.Label = candidate
					used[candidate] = true
					counts[label] = n
					break
				}
			}
		}
		out[i] = s
	}
	return out
}
