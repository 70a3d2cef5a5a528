// Package version provides build-time version information for the ixado
// CLI, generalizing the teacher's internal/version package.
package version

import (
	"fmt"
	"runtime"
)

// Build-time variables set via ldflags, e.g.:
//
//	go build -ldflags="-X github.com/ixado-dev/ixado/internal/version.Version=v1.0.0"
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// Short returns the version string alone (e.g. "v1.2.3" or "dev").
func Short() string {
	return Version
}

// Info returns a single-line version string with commit, build date, and
// Go runtime version.
func Info() string {
	commitShort := Commit
	if len(commitShort) > 7 {
		commitShort = commitShort[:7]
	}
	return fmt.Sprintf("ixado %s (commit: %s, built: %s, go: %s)", Version, commitShort, BuildDate, runtime.Version())
}
