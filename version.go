// Package compass identifies the build of the Compass inference service.
package compass

import (
	"fmt"
	"runtime"
)

// Version is the service release. BuildDate and GitCommit stay "unknown" in
// local builds; release builds stamp them through -ldflags -X.
var (
	Version   = "1.0.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// BuildInfo describes the running binary for the version command and the
// server info payload.
type BuildInfo struct {
	Version   string `json:"version"`
	BuildDate string `json:"build_date"`
	GitCommit string `json:"git_commit"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// GetVersion combines the stamped release identifiers with details of the
// toolchain that produced the binary.
func GetVersion() BuildInfo {
	return BuildInfo{
		Version:   Version,
		BuildDate: BuildDate,
		GitCommit: GitCommit,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func (b BuildInfo) String() string {
	return fmt.Sprintf("Compass %s (built %s, commit %s, %s %s)",
		b.Version, b.BuildDate, b.GitCommit, b.GoVersion, b.Platform)
}
