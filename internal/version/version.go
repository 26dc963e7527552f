// Package version carries build metadata stamped in by the linker.
package version

import (
	"fmt"
	"runtime"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func String() string {
	return fmt.Sprintf("sauti %s (commit=%s, date=%s, go=%s)", Version, Commit, Date, runtime.Version())
}

// UserAgent identifies sauti to remote speech services.
func UserAgent() string {
	return fmt.Sprintf("sauti/%s (%s/%s)", Version, runtime.GOOS, runtime.GOARCH)
}
