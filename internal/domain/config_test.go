package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.NotNil(t, config)
	assert.Equal(t, "localhost", config.Server.Host)
	assert.Equal(t, 7860, config.Server.Port)
	assert.Equal(t, 3, config.Steam.LoginAttempts)
	assert.Equal(t, 60*time.Second, config.Steam.LoginTimeout)
	assert.Equal(t, 10*time.Second, config.Steam.LoginBackoff)
	assert.Equal(t, 120*time.Second, config.Steam.AppInfoTimeout)
	assert.Equal(t, uint64(10<<30), config.Steam.MinFreeSpace)
	assert.Equal(t, "7z", config.Archive.Binary)
	assert.Equal(t, "4g", config.Archive.VolumeSize)
	assert.Equal(t, 100, config.Queue.StatusLogCap)
	assert.Equal(t, "info", config.Logging.Level)
}

func TestPathsConfig_Layout(t *testing.T) {
	paths := PathsConfig{BaseDir: "/srv/steampack"}

	assert.Equal(t, "/srv/steampack/work", paths.WorkDir())
	assert.Equal(t, "/srv/steampack/output", paths.OutputDir())
	assert.Equal(t, "/srv/steampack/logs", paths.LogsDir())
	assert.Equal(t, "/srv/steampack/config", paths.ConfigDir())
	assert.Equal(t, "/srv/steampack/output/app_440.7z", paths.DefaultOutputPath("440"))
}
