package infrastructure

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/steampack-go/internal/domain"
)

func checkerConfig(t *testing.T) *domain.Config {
	cfg := domain.DefaultConfig()
	cfg.Paths.BaseDir = t.TempDir()
	return cfg
}

func findItem(report *CheckReport, name string) *CheckItem {
	for i := range report.Items {
		if report.Items[i].Name == name {
			return &report.Items[i]
		}
	}
	return nil
}

func TestSystemChecker_ReportsMissingBinaries(t *testing.T) {
	cfg := checkerConfig(t)
	cfg.Steam.Binary = "steampack-test-no-such-binary"
	cfg.Steam.CandidatePaths = nil
	cfg.Archive.Binary = "steampack-test-no-such-7z"

	report := NewSystemChecker(cfg, zap.NewNop()).Check()

	assert.False(t, report.Healthy)
	require.NotNil(t, findItem(report, "steamcmd"))
	assert.Equal(t, CheckUnfixable, findItem(report, "steamcmd").Status)
	assert.Equal(t, CheckUnfixable, findItem(report, "7z").Status)
}

func TestSystemChecker_CreatesMissingDirectories(t *testing.T) {
	cfg := checkerConfig(t)

	report := NewSystemChecker(cfg, zap.NewNop()).Check()

	item := findItem(report, "directories")
	require.NotNil(t, item)
	assert.Equal(t, CheckFixed, item.Status)
	assert.DirExists(t, cfg.Paths.WorkDir())
	assert.DirExists(t, cfg.Paths.OutputDir())

	// Second run finds everything in place.
	report = NewSystemChecker(cfg, zap.NewNop()).Check()
	assert.Equal(t, CheckOK, findItem(report, "directories").Status)
}

func TestSystemChecker_RestoresExecutableBit(t *testing.T) {
	cfg := checkerConfig(t)
	binary := filepath.Join(t.TempDir(), "steamcmd.sh")
	require.NoError(t, os.WriteFile(binary, []byte("#!/bin/sh\n"), 0644))
	cfg.Steam.Binary = binary
	cfg.Steam.CandidatePaths = nil

	report := NewSystemChecker(cfg, zap.NewNop()).Check()

	item := findItem(report, "steamcmd")
	require.NotNil(t, item)
	assert.Equal(t, CheckFixed, item.Status)

	info, err := os.Stat(binary)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&0111)
}

func TestSystemChecker_InstallScriptRepairsMissingBinary(t *testing.T) {
	cfg := checkerConfig(t)
	binary := filepath.Join(t.TempDir(), "steamcmd.sh")
	cfg.Steam.Binary = binary
	cfg.Steam.CandidatePaths = nil
	cfg.Steam.InstallScript = writeScript(t, "install.sh", fmt.Sprintf(`
printf '#!/bin/sh\n' > %s
chmod +x %s
`, binary, binary))

	report := NewSystemChecker(cfg, zap.NewNop()).Check()

	item := findItem(report, "steamcmd")
	require.NotNil(t, item)
	assert.Equal(t, CheckFixed, item.Status)
	assert.Contains(t, item.Detail, "install script")
	assert.FileExists(t, binary)
}

func TestSystemChecker_InstallScriptFailureIsUnfixable(t *testing.T) {
	cfg := checkerConfig(t)
	cfg.Steam.Binary = filepath.Join(t.TempDir(), "steamcmd.sh")
	cfg.Steam.CandidatePaths = nil
	cfg.Steam.InstallScript = writeScript(t, "install.sh", `
echo "mirror unreachable" >&2
exit 1
`)

	report := NewSystemChecker(cfg, zap.NewNop()).Check()

	item := findItem(report, "steamcmd")
	require.NotNil(t, item)
	assert.Equal(t, CheckUnfixable, item.Status)
	assert.Contains(t, item.Detail, "install script failed")
}

func TestSystemChecker_WriteProbe(t *testing.T) {
	cfg := checkerConfig(t)

	report := NewSystemChecker(cfg, zap.NewNop()).Check()

	item := findItem(report, "write_access")
	require.NotNil(t, item)
	assert.Equal(t, CheckOK, item.Status)

	// No probe files left behind.
	entries, err := os.ReadDir(cfg.Paths.WorkDir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSystemChecker_NeverPanicsOnBrokenBase(t *testing.T) {
	cfg := checkerConfig(t)
	cfg.Paths.BaseDir = "/proc/steampack-cannot-exist/base"

	assert.NotPanics(t, func() {
		report := NewSystemChecker(cfg, zap.NewNop()).Check()
		assert.False(t, report.Healthy)
	})
}

func TestFreeSpace_ProbesNearestAncestor(t *testing.T) {
	free, err := FreeSpace(filepath.Join(t.TempDir(), "not", "created", "yet"))
	require.NoError(t, err)
	assert.Greater(t, free, uint64(0))
}

func TestSystemChecker_Disk(t *testing.T) {
	cfg := checkerConfig(t)

	report, err := NewSystemChecker(cfg, zap.NewNop()).Disk()
	require.NoError(t, err)
	assert.Equal(t, cfg.Paths.BaseDir, report.Path)
	assert.Greater(t, report.FreeBytes, uint64(0))
	assert.NotEmpty(t, report.Total)
}
