// Package version reports the taskbatch release.
package version

import (
	_ "embed"
	"fmt"
	"runtime"
	"strings"
)

//go:embed VERSION
var versionContent string

// Commit and Date are set at link time with -ldflags "-X".
var (
	Commit = "unknown"
	Date   = "unknown"
)

// Get returns the current version, with whitespace trimmed
func Get() string {
	return strings.TrimSpace(versionContent)
}

// String returns the version with build metadata.
func String() string {
	return fmt.Sprintf("taskbatch %s (commit %s, built %s, %s/%s)", Get(), Commit, Date, runtime.GOOS, runtime.GOARCH)
}
