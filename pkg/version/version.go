// Package version holds build metadata, set at link time with
// -ldflags "-X github.com/supporttools/GoSQLRestore/pkg/version.Version=...".
package version

import (
	"fmt"
	"runtime"
)

var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

type VersionInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
}

// Get returns the metadata of the running binary
func Get() VersionInfo {
	return VersionInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}
}

func (v VersionInfo) String() string {
	return fmt.Sprintf("Version: %s\nGitCommit: %s\nBuildTime: %s\nGoVersion: %s",
		v.Version, v.GitCommit, v.BuildTime, v.GoVersion)
}

// Short is the one-line form used in logs and the CLI --version flag
func (v VersionInfo) Short() string {
	return fmt.Sprintf("%s (%s)", v.Version, v.GitCommit)
}
