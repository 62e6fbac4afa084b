// Package version provides build and version information for servicereport.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Version is the current version of servicereport.
// Set via ldflags: -X github.com/Aman-CERP/servicereport/pkg/version.Version=$(VERSION)
var Version = "dev"

// Build information set via ldflags at build time.
var (
	// Commit is the git commit hash.
	Commit = "unknown"

	// Date is the build date in RFC3339 format.
	Date = "unknown"

	// GoVersion is the Go version used to build the binary (set at runtime).
	GoVersion = runtime.Version()
)

func init() {
	if Commit != "unknown" {
		return
	}
	// go install builds carry VCS stamps instead of ldflags.
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, kv := range info.Settings {
		switch kv.Key {
		case "vcs.revision":
			Commit = shortRevision(kv.Value)
		case "vcs.time":
			Date = kv.Value
		}
	}
}

func shortRevision(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}

// Tool is the program name shown in banners.
const Tool = "ServiceReport"

// BuildInfo is structured version information for JSON output.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// String returns a formatted version string with all build info.
func String() string {
	return fmt.Sprintf("servicereport %s (commit: %s, built: %s, go: %s)",
		Version, Commit, Date, GoVersion)
}

// Banner is the line printed at the start of every run.
func Banner() string {
	return Tool + " " + Version
}

// GetInfo returns structured version information.
func GetInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}
