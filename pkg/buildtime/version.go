package buildtime

import (
	"runtime/debug"
)

// version of this build. Release builds set it with
//
//	-ldflags "-X github.com/virtual-closet/closet/pkg/buildtime.version=v1.0.0"
var version = "dev"

// version string when this closet has been built.
func VERSION() string {
	return version
}

// GIT_REVISION is the vcs revision embedded by go build, or "unknown".
func GIT_REVISION() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	rev, dirty := "unknown", false
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if dirty {
		rev += "-dirty"
	}
	return rev
}

func VersionString() string {
	return VERSION() + " (commit: " + GIT_REVISION() + ")"
}
