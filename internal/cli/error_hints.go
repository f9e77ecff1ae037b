package cli

import (
	"errors"
	"os"

	"github.com/vburojevic/nginv/internal/discovery"
)

func hintForSites(err error, sitesDir string) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, discovery.ErrSitesDirNotFound):
		return "Pass --sites-dir, list log files with -f, or add sites to the config (`nginv config generate`)"
	case errors.Is(err, os.ErrPermission):
		return "Run with a user that can read " + sitesDir + " (e.g. a member of the adm group)"
	}
	return ""
}

func hintForNoSites(sitesDir string) string {
	return "No access_log/error_log directives found in " + sitesDir + "; pass log files with -f"
}

func hintForListen(err error) string {
	if err == nil {
		return ""
	}
	return "Choose another address with --listen, e.g. 127.0.0.1:9113"
}
