package domain

import (
	"runtime"
	"strings"

	"go.trai.ch/zerr"
)

// knownTargets is the supported target quadruple. External dependency
// resolution records one content hash per entry.
var knownTargets = []string{"linux_x64", "linux_arm64", "macos_x64", "macos_arm64"}

// Target is a validated compilation target triple.
type Target struct {
	triple string
}

// KnownTargets returns the names of all supported targets, in a fixed order.
func KnownTargets() []string {
	out := make([]string, len(knownTargets))
	copy(out, knownTargets)
	return out
}

// ParseTarget validates a user-supplied target string.
func ParseTarget(s string) (Target, error) {
	for _, known := range knownTargets {
		if s == known {
			return Target{triple: s}, nil
		}
	}
	err := WithDetail(ErrUnsupportedTarget, "target", s)
	return Target{}, zerr.With(err, "known", strings.Join(knownTargets, ", "))
}

// HostTarget maps the current OS/arch to a target triple.
func HostTarget() (Target, error) {
	var triple string
	switch {
	case runtime.GOOS == "linux" && runtime.GOARCH == "amd64":
		triple = "linux_x64"
	case runtime.GOOS == "linux" && runtime.GOARCH == "arm64":
		triple = "linux_arm64"
	case runtime.GOOS == "darwin" && runtime.GOARCH == "amd64":
		triple = "macos_x64"
	case runtime.GOOS == "darwin" && runtime.GOARCH == "arm64":
		triple = "macos_arm64"
	default:
		err := WithDetail(ErrUnsupportedHost, "os", runtime.GOOS)
		return Target{}, zerr.With(err, "arch", runtime.GOARCH)
	}
	return Target{triple: triple}, nil
}

// String returns the target triple, e.g. "linux_x64".
func (t Target) String() string { return t.triple }

// MavenSuffix returns the artifact-id suffix used by Maven coordinates,
// which is the triple with underscores removed (linux_x64 -> linuxx64).
func (t Target) MavenSuffix() string {
	return strings.ReplaceAll(t.triple, "_", "")
}

// IsHost reports whether this target matches the current host platform.
func (t Target) IsHost() (bool, error) {
	host, err := HostTarget()
	if err != nil {
		return false, err
	}
	return t == host, nil
}

// Profile selects the optimization and test mode of a build. Test profiles
// must never share cache entries with their non-test counterparts.
type Profile string

const (
	// ProfileDebug is the default development profile.
	ProfileDebug Profile = "debug"
	// ProfileRelease enables compiler optimizations.
	ProfileRelease Profile = "release"
	// ProfileDebugTest is the debug profile with test sources included.
	ProfileDebugTest Profile = "debug-test"
	// ProfileReleaseTest is the release profile with test sources included.
	ProfileReleaseTest Profile = "release-test"
)

// ParseProfile validates a profile string.
func ParseProfile(s string) (Profile, error) {
	switch Profile(s) {
	case ProfileDebug, ProfileRelease, ProfileDebugTest, ProfileReleaseTest:
		return Profile(s), nil
	}
	err := zerr.With(zerr.New("unknown build profile"), "profile", s)
	return "", zerr.With(err, "known", "debug, release, debug-test, release-test")
}

// IsTest reports whether this profile includes test sources.
func (p Profile) IsTest() bool {
	return p == ProfileDebugTest || p == ProfileReleaseTest
}

// IsRelease reports whether this profile enables optimizations.
func (p Profile) IsRelease() bool {
	return p == ProfileRelease || p == ProfileReleaseTest
}

// String returns the profile name, which doubles as the output dir component.
func (p Profile) String() string { return string(p) }
