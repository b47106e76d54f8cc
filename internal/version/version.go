// Package version reports build metadata injected with -ldflags.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	// Version is the application version, set via ldflags during build.
	Version = "dev"
	// GitCommit is the git commit hash, set via ldflags during build.
	GitCommit = "unknown"
	// BuildDate is the build timestamp, set via ldflags during build.
	BuildDate = "unknown"
)

// Info contains version and build metadata.
type Info struct {
	Version   string   `json:"version" example:"1.2.0" doc:"Application version"`
	GitCommit string   `json:"git_commit" doc:"Source revision"`
	BuildDate string   `json:"build_date" doc:"Build timestamp"`
	GoVersion string   `json:"go_version" doc:"Go toolchain version"`
	Platform  string   `json:"platform" example:"linux/arm64" doc:"Target OS and architecture"`
	Features  []string `json:"features,omitempty" doc:"Optional capabilities compiled in"`
}

// Get returns version and build information. Features are the optional
// capabilities of this build, for example "gocv".
func Get(features ...string) Info {
	info := Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
		Features:  features,
	}

	// Fall back to VCS stamping when ldflags were not set
	if info.GitCommit == "unknown" {
		if bi, ok := debug.ReadBuildInfo(); ok {
			for _, s := range bi.Settings {
				if s.Key == "vcs.revision" && s.Value != "" {
					info.GitCommit = s.Value
				}
			}
		}
	}
	return info
}

// String returns the application version string.
func String() string {
	return Version
}
