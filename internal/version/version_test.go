package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

func TestApplyBuildSettings(t *testing.T) {
	settings := []debug.BuildSetting{
		{Key: "vcs.revision", Value: "0123456789abcdef0123"},
		{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
		{Key: "GOARCH", Value: "arm64"},
	}

	tests := []struct {
		name       string
		info       Info
		wantCommit string
		wantDate   string
	}{
		{"fills unknown fields", Info{GitCommit: "unknown", BuildDate: "unknown"}, "0123456789ab", "2026-01-02T03:04:05Z"},
		{"keeps ldflags values", Info{GitCommit: "abc1234", BuildDate: "yesterday"}, "abc1234", "yesterday"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := tt.info
			applyBuildSettings(&info, settings)
			if info.GitCommit != tt.wantCommit || info.BuildDate != tt.wantDate {
				t.Errorf("got commit %q date %q, want %q %q", info.GitCommit, info.BuildDate, tt.wantCommit, tt.wantDate)
			}
		})
	}
}

func TestGet(t *testing.T) {
	info := Get()
	if info.Version != Version || info.GoVersion == "" || !strings.Contains(info.Platform, "/") {
		t.Errorf("Get() = %+v", info)
	}
	if !strings.HasPrefix(Short(), Version+" (") {
		t.Errorf("Short() = %q", Short())
	}
}
