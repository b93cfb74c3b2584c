package opusmeta

import "runtime"

// Version is the semantic version of the opusmeta library.
const Version = "0.1.0"

// DefaultVendor is the vendor string callers can use when creating a
// comment header from scratch.
const DefaultVendor = "opusmeta " + Version

// GetVersion returns the current version string.
func GetVersion() string {
	return Version
}

// VersionInfo contains detailed version information.
type VersionInfo struct {
	Version   string
	GitCommit string
	BuildTime string
	GoVersion string
}

// GetVersionInfo returns detailed version information.
//
// GitCommit and BuildTime are set at build time:
//
//	go build -ldflags="-X github.com/simonhull/opusmeta.gitCommit=$(git rev-parse HEAD) \
//	  -X github.com/simonhull/opusmeta.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:   Version,
		GitCommit: gitCommit,
		BuildTime: buildTime,
		GoVersion: runtime.Version(),
	}
}

// Variables populated at build time via -ldflags.
var (
	gitCommit = "unknown"
	buildTime = "unknown"
)
