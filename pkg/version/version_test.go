package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyBuildInfo(t *testing.T) {
	Version, Commit, Date = "dev", "none", "unknown"

	t.Cleanup(func() { Version, Commit, Date = "dev", "none", "unknown" })

	applyBuildInfo(&debug.BuildInfo{
		Main: debug.Module{Version: "v0.4.1"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "abc123"},
			{Key: "vcs.time", Value: "2024-05-01T10:00:00Z"},
		},
	})

	assert.Equal(t, "topicofchange v0.4.1 (commit: abc123, built: 2024-05-01T10:00:00Z)", String())
}

func TestApplyBuildInfo_KeepsLinkerValues(t *testing.T) {
	Version, Commit, Date = "v1.0.0", "fff", "yesterday"

	t.Cleanup(func() { Version, Commit, Date = "dev", "none", "unknown" })

	applyBuildInfo(&debug.BuildInfo{
		Main:     debug.Module{Version: "(devel)"},
		Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "abc123"}},
	})

	assert.Equal(t, "v1.0.0", Version)
	assert.Equal(t, "fff", Commit)
	assert.Equal(t, "yesterday", Date)
}
