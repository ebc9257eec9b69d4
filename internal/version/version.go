// Package version carries build metadata injected at link time.
package version

import (
	"fmt"
	"runtime"
)

// Set via -ldflags "-X github.com/obiente/whisperbridge/internal/version.Version=..."
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Info renders a single-line build description.
func Info() string {
	return fmt.Sprintf("whisperbridge %s (commit %s, built %s, %s)", Version, Commit, Date, runtime.Version())
}
