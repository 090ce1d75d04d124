package domain

import (
	"path/filepath"
	"time"
)

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Steam        SteamConfig        `mapstructure:"steam"`
	Archive      ArchiveConfig      `mapstructure:"archive"`
	Paths        PathsConfig        `mapstructure:"paths"`
	Queue        QueueConfig        `mapstructure:"queue"`
	Notification NotificationConfig `mapstructure:"notification"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// SteamConfig contains SteamCMD invocation configuration
type SteamConfig struct {
	Binary         string        `mapstructure:"binary"`
	CandidatePaths []string      `mapstructure:"candidate_paths"`
	InstallScript  string        `mapstructure:"install_script"`
	LoginAttempts  int           `mapstructure:"login_attempts"`
	LoginTimeout   time.Duration `mapstructure:"login_timeout"`
	LoginBackoff   time.Duration `mapstructure:"login_backoff"`
	PostLoginDelay time.Duration `mapstructure:"post_login_delay"`
	AppInfoTimeout time.Duration `mapstructure:"app_info_timeout"`
	MinFreeSpace   uint64        `mapstructure:"min_free_space"`
}

// ArchiveConfig contains 7-Zip invocation configuration
type ArchiveConfig struct {
	Binary     string `mapstructure:"binary"`
	Format     string `mapstructure:"format"`
	VolumeSize string `mapstructure:"volume_size"`
}

// PathsConfig contains the directory layout
type PathsConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// WorkDir returns the directory holding per-app in-flight content
func (p PathsConfig) WorkDir() string {
	return filepath.Join(p.BaseDir, "work")
}

// OutputDir returns the directory for finished archives
func (p PathsConfig) OutputDir() string {
	return filepath.Join(p.BaseDir, "output")
}

// LogsDir returns the directory for rotating log files
func (p PathsConfig) LogsDir() string {
	return filepath.Join(p.BaseDir, "logs")
}

// ConfigDir returns the directory for config and queue state
func (p PathsConfig) ConfigDir() string {
	return filepath.Join(p.BaseDir, "config")
}

// DefaultOutputPath returns the output archive path used when a request does
// not name one
func (p PathsConfig) DefaultOutputPath(appID string) string {
	return filepath.Join(p.OutputDir(), "app_"+appID+".7z")
}

// QueueConfig contains queue-related configuration
type QueueConfig struct {
	DatabasePath  string        `mapstructure:"database_path"`
	CheckInterval time.Duration `mapstructure:"check_interval"`
	StatusLogCap  int           `mapstructure:"status_log_cap"`
}

// NotificationConfig contains notification-related configuration
type NotificationConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Method  string `mapstructure:"method"` // osascript, notify-send
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, or file path
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 7860,
		},
		Steam: SteamConfig{
			Binary: "./steamcmd/steamcmd.sh",
			CandidatePaths: []string{
				"./steamcmd/steamcmd.sh",
				"/usr/games/steamcmd",
				"/usr/local/bin/steamcmd",
			},
			InstallScript:  "",
			LoginAttempts:  3,
			LoginTimeout:   60 * time.Second,
			LoginBackoff:   10 * time.Second,
			PostLoginDelay: 20 * time.Second,
			AppInfoTimeout: 120 * time.Second,
			MinFreeSpace:   10 << 30, // 10 GiB, advisory only
		},
		Archive: ArchiveConfig{
			Binary:     "7z",
			Format:     "7z",
			VolumeSize: "4g",
		},
		Paths: PathsConfig{
			BaseDir: "$HOME/steampack",
		},
		Queue: QueueConfig{
			DatabasePath:  "$HOME/steampack/config/queue.db",
			CheckInterval: 2 * time.Second,
			StatusLogCap:  100,
		},
		Notification: NotificationConfig{
			Enabled: false,
			Method:  "notify-send",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stdout",
		},
	}
}
