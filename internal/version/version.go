// Package version holds build information set through -ldflags, e.g.
//
//	go build -ldflags "-X github.com/abdul-hamid-achik/av-pairtree/internal/version.Version=1.2.0"
package version

import (
	"fmt"
	"runtime"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func Full() string {
	return fmt.Sprintf("%s (commit %s, built %s, %s)", Version, Commit, BuildDate, runtime.Version())
}

func Short() string {
	return Version
}
