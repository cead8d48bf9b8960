// Package version reports how the sitekit binary was built. Release builds
// set the variables below with -ldflags; development builds fall back to the
// VCS stamp the Go toolchain embeds.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

// Set with -ldflags "-X github.com/conneroisu/sitekit/internal/version.Version=v1.2.3".
var (
	Version   = "dev"
	GitCommit = ""
	BuildTime = ""
)

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version   string    `json:"version" yaml:"version"`
	GitCommit string    `json:"git_commit,omitempty" yaml:"git_commit,omitempty"`
	BuildTime time.Time `json:"build_time,omitempty" yaml:"build_time,omitempty"`
	GoVersion string    `json:"go_version" yaml:"go_version"`
	Platform  string    `json:"platform" yaml:"platform"`
	Dirty     bool      `json:"dirty" yaml:"dirty"`
	Release   bool      `json:"release" yaml:"release"`
}

type vcsStamp struct {
	revision string
	time     time.Time
	modified bool
}

func readVCS() vcsStamp {
	var s vcsStamp
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return s
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			s.revision = setting.Value
		case "vcs.time":
			s.time, _ = time.Parse(time.RFC3339, setting.Value)
		case "vcs.modified":
			s.modified = setting.Value == "true"
		}
	}
	return s
}

// Get collects the build information.
func Get() BuildInfo {
	vcs := readVCS()

	commit := GitCommit
	if commit == "" {
		commit = vcs.revision
	}
	built := vcs.time
	if BuildTime != "" {
		if t, err := time.Parse(time.RFC3339, BuildTime); err == nil {
			built = t
		}
	}

	v := GetVersion()
	return BuildInfo{
		Version:   v,
		GitCommit: commit,
		BuildTime: built,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		Dirty:     vcs.modified,
		Release:   isRelease(v),
	}
}

// GetVersion returns the release version, the module version when installed
// with go install, or dev-<short commit>.
func GetVersion() string {
	if Version != "" && Version != "dev" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	if rev := readVCS().revision; len(rev) >= 7 {
		return "dev-" + rev[:7]
	}
	return "dev"
}

func isRelease(v string) bool {
	return v != "dev" && !strings.HasPrefix(v, "dev-")
}

// ShortCommit returns the first seven characters of the commit, or "".
func (b BuildInfo) ShortCommit() string {
	if len(b.GitCommit) < 7 {
		return b.GitCommit
	}
	return b.GitCommit[:7]
}

// String renders a one line summary, e.g. "sitekit v1.2.0 (abc1234) go1.24 linux/amd64".
func (b BuildInfo) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "sitekit %s", b.Version)
	if c := b.ShortCommit(); c != "" && !strings.HasSuffix(b.Version, c) {
		fmt.Fprintf(&sb, " (%s)", c)
	}
	if b.Dirty {
		sb.WriteString(" (dirty)")
	}
	fmt.Fprintf(&sb, " %s %s", b.GoVersion, b.Platform)
	return sb.String()
}
