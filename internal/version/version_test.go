package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/require"
)

func withLDFlags(t *testing.T, version, commit, date string) {
	t.Helper()
	prev := [3]string{Version, Commit, Date}
	t.Cleanup(func() { Version, Commit, Date = prev[0], prev[1], prev[2] })
	Version, Commit, Date = version, commit, date
}

func buildInfo(version string, settings ...debug.BuildSetting) func() (*debug.BuildInfo, bool) {
	return func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{Main: debug.Module{Version: version}, Settings: settings}, true
	}
}

func TestResolvePrefersLDFlags(t *testing.T) {
	withLDFlags(t, "1.2.3", "abc123", "2026-02-18")

	info := resolve(buildInfo("v9.9.9", debug.BuildSetting{Key: "vcs.revision", Value: "fff"}))
	require.Equal(t, "1.2.3", info.Version)
	require.Equal(t, "abc123", info.Commit)
	require.Equal(t, "2026-02-18", info.Date)

	got := info.String()
	require.Contains(t, got, "dpt 1.2.3")
	require.Contains(t, got, "commit=abc123")
	require.Contains(t, got, "go=")
}

func TestResolveFallsBackToBuildInfo(t *testing.T) {
	withLDFlags(t, "dev", "", "")

	info := resolve(buildInfo("v0.4.0",
		debug.BuildSetting{Key: "vcs.revision", Value: "0123456789abcdef0123"},
		debug.BuildSetting{Key: "vcs.time", Value: "2026-10-01T09:00:00Z"},
		debug.BuildSetting{Key: "vcs.modified", Value: "true"},
	))
	require.Equal(t, "v0.4.0", info.Version)
	require.True(t, info.Modified)
	require.Equal(t, "dpt v0.4.0 (commit=0123456789ab+dirty, date=2026-10-01T09:00:00Z, go="+info.Go+")", info.String())
}

func TestResolveWithoutBuildInfo(t *testing.T) {
	withLDFlags(t, "dev", "", "")

	info := resolve(func() (*debug.BuildInfo, bool) { return nil, false })
	require.Contains(t, info.String(), "dpt dev (commit=none, date=unknown")

	info = resolve(buildInfo("(devel)"))
	require.Equal(t, "dev", info.Version)
}
