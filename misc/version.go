// Package misc keeps program identity: name, version and source revision.
package misc

import (
	"runtime/debug"
)

// Set at build time with -ldflags "-X jitcss/misc.version=... -X jitcss/misc.gitHash=...".
var (
	appName = "jitcss"
	version = "dev"
	gitHash = ""
)

// GetAppName returns program name used for logger, temporary and report files.
func GetAppName() string {
	return appName
}

// GetVersion returns program version.
func GetVersion() string {
	if version != "dev" {
		return version
	}
	if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		return bi.Main.Version
	}
	return version
}

// GetGitHash returns source revision program was built from.
func GetGitHash() string {
	if gitHash != "" {
		return gitHash
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" {
				return s.Value
			}
		}
	}
	return "unknown"
}
