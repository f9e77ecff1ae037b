package cli

import (
	"github.com/vburojevic/nginv/internal/output"
)

// emitWarning respects format/quiet.
func emitWarning(globals *Globals, msg string) {
	if globals.Quiet {
		return
	}
	if globals.JSON() {
		_ = output.NewNDJSONWriter(globals.Stdout).WriteWarning(msg)
		return
	}
	_ = output.NewTextWriter(globals.Stderr).WriteWarning(msg)
}
