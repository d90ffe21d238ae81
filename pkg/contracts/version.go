// Package contracts holds the types shared between the CLI and the
// pipeline packages.
package contracts

import (
	"fmt"
	"runtime"
)

// Version is the current version of the tool. DataFormatVersion changes
// whenever the workbook layout does.
const (
	Version           = "0.1.0"
	DataFormatVersion = "v1"
)

var (
	// GitCommit is set during build using ldflags
	GitCommit = "unknown"

	// BuildTime is set during build using ldflags
	BuildTime = "unknown"
)

// VersionInfo contains detailed version information
type VersionInfo struct {
	Version    string `json:"version"`
	GitCommit  string `json:"git_commit"`
	BuildTime  string `json:"build_time"`
	GoVersion  string `json:"go_version"`
	Platform   string `json:"platform"`
	DataFormat string `json:"data_format"`
}

// GetVersionInfo returns detailed version information
func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:    Version,
		GitCommit:  GitCommit,
		BuildTime:  BuildTime,
		GoVersion:  runtime.Version(),
		Platform:   runtime.GOOS + "/" + runtime.GOARCH,
		DataFormat: DataFormatVersion,
	}
}

// GetFullVersionString returns the version line printed by --version.
func GetFullVersionString() string {
	info := GetVersionInfo()
	return fmt.Sprintf("%s (commit: %s, built: %s, %s, %s, workbook format %s)",
		info.Version, info.GitCommit, info.BuildTime, info.GoVersion, info.Platform, info.DataFormat)
}
