// Package version reports the build version of the wifiprov binaries.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"
)

// Set at build time:
//
//	go build -ldflags="-X github.com/muurk/wifiprov/internal/version.Version=v1.2.3 \
//	                   -X github.com/muurk/wifiprov/internal/version.Commit=abc123"
//
// Unset values come from the VCS stamp in the build info, falling back to
// "dev-<date>" and "unknown".
var (
	Version = ""
	Commit  = ""
)

func init() {
	if Version == "" || Commit == "" {
		version, commit := fromBuildInfo()
		if Version == "" {
			Version = version
		}
		if Commit == "" {
			Commit = commit
		}
	}
	if Version == "" {
		Version = fmt.Sprintf("dev-%s", time.Now().Format("20060102-150405"))
	}
	if Commit == "" {
		Commit = "unknown"
	}
}

func fromBuildInfo() (version, commit string) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "", ""
	}
	if v := info.Main.Version; v != "" && v != "(devel)" {
		version = v
	}

	settings := make(map[string]string, len(info.Settings))
	for _, s := range info.Settings {
		settings[s.Key] = s.Value
	}
	return versionFrom(version, settings), commitFrom(settings)
}

// commitFrom returns the short VCS revision, marked when the tree was dirty.
func commitFrom(settings map[string]string) string {
	rev := settings["vcs.revision"]
	if rev == "" {
		return ""
	}
	if len(rev) > 7 {
		rev = rev[:7]
	}
	if settings["vcs.modified"] == "true" {
		rev += "-dirty"
	}
	return rev
}

// versionFrom prefers a module version, then a dev version from the commit date.
func versionFrom(module string, settings map[string]string) string {
	if module != "" {
		return module
	}
	if t, err := time.Parse(time.RFC3339, settings["vcs.time"]); err == nil {
		return fmt.Sprintf("dev-%s", t.Format("20060102"))
	}
	return ""
}

// Info is the version as reported by the status API.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	GoVersion string `json:"go_version"`
}

// Get returns the current build info.
func Get() Info {
	return Info{Version: Version, Commit: Commit, GoVersion: runtime.Version()}
}

// Full returns the full version string including commit
func Full() string {
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}
