// Package buildinfo exposes the VCS information embedded by the Go toolchain.
package buildinfo

import (
	"log/slog"
	"runtime/debug"
	"time"
)

var (
	Revision      = "unknown"
	RevisionTime  = time.Time{}
	LocalModified = "unknown"
)

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	Revision, RevisionTime, LocalModified = fromSettings(info.Settings)
}

func fromSettings(settings []debug.BuildSetting) (string, time.Time, string) {
	var (
		revision = "unknown"
		revTime  time.Time
		modified = "unknown"
	)

	for _, setting := range settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.time":
			// An unparsable time is left zero, it's not worth failing startup for.
			t, err := time.Parse(time.RFC3339, setting.Value)
			if err == nil {
				revTime = t
			}
		case "vcs.modified":
			modified = setting.Value
		}
	}

	return revision, revTime, modified
}

// LogAttr returns the build information as a log attribute group.
func LogAttr() slog.Attr {
	return slog.Group("build",
		slog.String("revision", Revision),
		slog.Time("time", RevisionTime),
		slog.String("modified", LocalModified),
	)
}
