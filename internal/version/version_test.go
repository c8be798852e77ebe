package version

import (
	"strings"
	"testing"
)

func TestCommitFrom(t *testing.T) {
	tests := []struct {
		name     string
		settings map[string]string
		want     string
	}{
		{"none", map[string]string{}, ""},
		{"short hash", map[string]string{"vcs.revision": "0123456789abcdef"}, "0123456"},
		{"dirty", map[string]string{"vcs.revision": "0123456789abcdef", "vcs.modified": "true"}, "0123456-dirty"},
		{"already short", map[string]string{"vcs.revision": "abc"}, "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := commitFrom(tt.settings); got != tt.want {
				t.Errorf("commitFrom() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestVersionFrom(t *testing.T) {
	if got := versionFrom("v1.4.0", nil); got != "v1.4.0" {
		t.Errorf("versionFrom(module) = %q", got)
	}
	if got := versionFrom("", map[string]string{"vcs.time": "2025-03-04T10:00:00Z"}); got != "dev-20250304" {
		t.Errorf("versionFrom(vcs.time) = %q", got)
	}
	if got := versionFrom("", map[string]string{}); got != "" {
		t.Errorf("versionFrom(empty) = %q", got)
	}
}

func TestFull(t *testing.T) {
	if Version == "" || Commit == "" {
		t.Fatal("init left Version or Commit empty")
	}
	if !strings.Contains(Full(), "(commit: "+Commit+")") {
		t.Errorf("Full() = %q", Full())
	}
	if Get().GoVersion == "" {
		t.Error("Get().GoVersion is empty")
	}
}
