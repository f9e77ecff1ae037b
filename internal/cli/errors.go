package cli

import (
	"fmt"

	"github.com/vburojevic/nginv/internal/output"
)

// outputErrorCommon normalizes error emission across commands, respecting
// ndjson vs text formats so scripts always get machine-readable failures.
// The returned *CLIError wraps err.
func outputErrorCommon(globals *Globals, code string, err error, hint string) error {
	message := err.Error()
	cliErr := &CLIError{Code: code, Message: message, Hint: hint, Err: err}
	if globals == nil {
		return cliErr
	}

	if globals.JSON() {
		if hint != "" {
			_ = output.NewNDJSONWriter(globals.Stdout).WriteError(code, message, hint)
		} else {
			_ = output.NewNDJSONWriter(globals.Stdout).WriteError(code, message)
		}
		return cliErr
	}

	_ = output.NewTextWriter(globals.Stderr).WriteError(code, message)
	if hint != "" {
		fmt.Fprintf(globals.Stderr, "Hint: %s\n", hint)
	}
	return cliErr
}
