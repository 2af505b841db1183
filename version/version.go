// Package version carries build metadata stamped in via ldflags.
package version

import (
	"fmt"
	"runtime"
	"strings"
)

// Build information. These variables are set at build time via ldflags.
var (
	// CommitHash is the git commit hash when the binary was built
	CommitHash = "dev"

	// BuildTime is when the binary was built
	BuildTime = "unknown"

	// Version is the semantic version (if tagged)
	Version = "dev"
)

// Info contains version and build information
type Info struct {
	CommitHash string `json:"commit_hash"`
	BuildTime  string `json:"build_time"`
	Version    string `json:"version"`
	GoVersion  string `json:"go_version"`
	Platform   string `json:"platform"`
}

// Get returns the current version information
func Get() Info {
	return Info{
		CommitHash: CommitHash,
		BuildTime:  BuildTime,
		Version:    Version,
		GoVersion:  runtime.Version(),
		Platform:   fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// String returns a human-readable version string
func (i Info) String() string {
	if i.Version != "dev" {
		return fmt.Sprintf("pyrunner %s (commit %s, built %s)", i.Version, i.CommitHash, i.BuildTime)
	}
	return fmt.Sprintf("pyrunner dev (commit %s, built %s)", i.CommitHash, i.BuildTime)
}

// PythonBanner formats the line shown to a terminal once a session's
// interpreter is up, e.g. "[Python Runner] <Python 3.12.1>".
// Only the first line of sys.version is kept.
func PythonBanner(pythonVersion string) string {
	first, _, _ := strings.Cut(pythonVersion, "\n")
	return fmt.Sprintf("[Python Runner] <Python %s>\r\n", strings.TrimSpace(first))
}
