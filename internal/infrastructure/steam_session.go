package infrastructure

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/yourusername/steampack-go/internal/domain"
	"github.com/yourusername/steampack-go/pkg/logger"
)

// Login output markers, matched as literal substrings. SteamCMD has no
// structured exit contract, so classification is substring-based and
// centralized in ClassifyLoginOutput.
const (
	loginReadyMarker     = "Waiting for user info...OK"
	appInfoFailureMarker = "Failed to request AppInfo update"
)

var (
	guardMarkers   = []string{"Steam Guard", "Two-factor code"}
	invalidMarkers = []string{"Invalid Password", "Login Failure"}

	sizeOnDiskPattern   = regexp.MustCompile(`"SizeOnDisk"\s+"(\d+)"`)
	sizeFallbackPattern = regexp.MustCompile(`"size"\s+"(\d+)"`)
)

// ClassifyLoginOutput inspects raw login output and returns nil on success
// or a classified error. Kept in one place so the fragile substring rules
// can change without touching callers.
func ClassifyLoginOutput(output string) *domain.SessionError {
	if strings.Contains(output, loginReadyMarker) {
		return nil
	}
	for _, marker := range guardMarkers {
		if strings.Contains(output, marker) {
			return domain.NewSessionError(domain.FailureAuthChallenge,
				"Steam Guard code required or invalid. Check your email or authenticator.")
		}
	}
	for _, marker := range invalidMarkers {
		if strings.Contains(output, marker) {
			return domain.NewSessionError(domain.FailureInvalidCredentials,
				"Invalid username or password.")
		}
	}
	return domain.NewSessionError(domain.FailureUnclassifiedLogin,
		"Login failed: "+strings.TrimSpace(output))
}

// SteamSession runs the authenticate-download-compress pipeline against the
// external SteamCMD and 7z binaries. Each app gets its own working
// directory under the work root, so queue-driven and direct invocations of
// different apps never share in-flight content.
type SteamSession struct {
	steam   domain.SteamConfig
	archive domain.ArchiveConfig
	paths   domain.PathsConfig
	runner  CommandRunner
	ml      *logger.MultiLogger
	logger  *zap.Logger
}

// NewSteamSession creates a session runner. ml may be nil in tests.
func NewSteamSession(cfg *domain.Config, runner CommandRunner, ml *logger.MultiLogger, log *zap.Logger) *SteamSession {
	return &SteamSession{
		steam:   cfg.Steam,
		archive: cfg.Archive,
		paths:   cfg.Paths,
		runner:  runner,
		ml:      ml,
		logger:  log,
	}
}

// WorkDirFor returns the per-app working directory
func (s *SteamSession) WorkDirFor(appID string) string {
	return filepath.Join(s.paths.WorkDir(), "app_"+appID)
}

// Run executes the full pipeline for one task. Every stage failure
// short-circuits and is returned as a classified error next to the partial
// status log; Run itself never panics or returns a bare error.
func (s *SteamSession) Run(ctx context.Context, task *domain.DownloadTask, creds domain.Credentials) *domain.SessionResult {
	result := &domain.SessionResult{}

	s.logger.Info("Starting session",
		zap.String("task_id", task.ID),
		zap.String("app_id", task.AppID),
		zap.Bool("anonymous", creds.IsAnonymous()),
		zap.Bool("resume", task.Resume))

	if serr := s.verifyOutputPath(task.OutputPath, result); serr != nil {
		result.Err = serr
		return result
	}

	s.warnDiskSpace(result)

	if serr := s.login(ctx, task.ID, creds, result); serr != nil {
		result.Err = serr
		return result
	}

	s.refreshAppInfo(ctx, result)
	s.estimateSize(ctx, task.AppID, result)

	workDir := s.WorkDirFor(task.AppID)
	if serr := s.prepareWorkDir(workDir, task.Resume, result); serr != nil {
		result.Err = serr
		return result
	}

	if serr := s.download(ctx, task, creds, workDir, result); serr != nil {
		result.Err = serr
		return result
	}

	if serr := s.compress(ctx, task, workDir, result); serr != nil {
		result.Err = serr
		return result
	}

	s.cleanup(workDir, result)

	volumes := ListArchiveVolumes(task.OutputPath)
	result.ArchivePath = task.OutputPath
	result.Volumes = volumes
	if len(volumes) > 1 {
		result.Append(fmt.Sprintf("Completed! Files saved as %s.001, %s.002, ...", task.OutputPath, task.OutputPath))
	} else {
		result.Append(fmt.Sprintf("Completed! File saved as %s", task.OutputPath))
	}

	s.logger.Info("Session completed",
		zap.String("task_id", task.ID),
		zap.Strings("volumes", volumes))
	return result
}

// VerifyLogin runs only the login stage, for the standalone auth check
func (s *SteamSession) VerifyLogin(ctx context.Context, creds domain.Credentials) *domain.SessionResult {
	result := &domain.SessionResult{}
	if serr := s.login(ctx, "login-check", creds, result); serr != nil {
		result.Err = serr
	}
	return result
}

func (s *SteamSession) verifyOutputPath(outputPath string, result *domain.SessionResult) *domain.SessionError {
	result.Append("Verifying output path...")
	if !filepath.IsAbs(outputPath) {
		return domain.NewSessionError(domain.FailurePathNotWritable, "output path must be absolute")
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return domain.NewSessionError(domain.FailurePathNotWritable,
			fmt.Sprintf("could not create output directory: %v", err))
	}
	result.Append("Output path verified successfully.")
	return nil
}

// warnDiskSpace is advisory only; a shortfall never blocks the download
func (s *SteamSession) warnDiskSpace(result *domain.SessionResult) {
	free, err := FreeSpace(s.paths.BaseDir)
	if err != nil {
		s.logger.Warn("Could not query free disk space", zap.Error(err))
		return
	}
	result.Append(fmt.Sprintf("Available disk space: %s", humanize.Bytes(free)))
	if free < s.steam.MinFreeSpace {
		result.Append(fmt.Sprintf("Warning: less than %s available on disk. Download may fail.",
			humanize.Bytes(s.steam.MinFreeSpace)))
	}
}

func (s *SteamSession) loginArgs(creds domain.Credentials) []string {
	if creds.IsAnonymous() {
		return []string{"+login", "anonymous", "+quit"}
	}
	var args []string
	if creds.GuardCode != "" {
		args = append(args, "+set_steam_guard_code", creds.GuardCode)
	}
	return append(args, "+login", creds.Username, creds.Password, "+quit")
}

// login retries up to the configured attempt count with a fixed backoff,
// failing with the last classified reason once attempts are exhausted
func (s *SteamSession) login(ctx context.Context, sessionID string, creds domain.Credentials, result *domain.SessionResult) *domain.SessionError {
	attempts := s.steam.LoginAttempts
	if attempts < 1 {
		attempts = 1
	}

	spec := CommandSpec{
		Binary:  s.steam.Binary,
		Args:    s.loginArgs(creds),
		Timeout: s.steam.LoginTimeout,
	}
	if !creds.IsAnonymous() {
		spec.Redact = creds.Username
	}

	if creds.IsAnonymous() {
		result.Append("Using anonymous login.")
	}

	var lastErr *domain.SessionError
	for attempt := 1; attempt <= attempts; attempt++ {
		result.Append(fmt.Sprintf("Login attempt %d...", attempt))
		s.writeSessionHeader(sessionID, spec)

		output, runResult, err := RunCollect(ctx, s.runner, spec)
		if s.ml != nil {
			s.ml.WriteSessionLine(output)
		}

		switch {
		case err != nil:
			lastErr = domain.NewSessionError(domain.FailureUnclassifiedLogin, err.Error())
		case runResult.TimedOut:
			lastErr = domain.NewSessionError(domain.FailureTimeout,
				fmt.Sprintf("login did not finish within %s", s.steam.LoginTimeout))
		default:
			lastErr = ClassifyLoginOutput(output)
		}

		if lastErr == nil {
			if s.steam.PostLoginDelay > 0 {
				// SteamCMD keeps finalizing account state briefly after
				// reporting ready; acting immediately can fail the next call.
				sleepCtx(ctx, s.steam.PostLoginDelay)
			}
			result.Append("Steam login verified successfully.")
			return nil
		}

		s.logger.Warn("Login attempt failed",
			zap.Int("attempt", attempt),
			zap.String("kind", string(lastErr.Kind)))

		if attempt < attempts {
			result.Append("Retrying login...")
			if !sleepCtx(ctx, s.steam.LoginBackoff) {
				return lastErr
			}
		}
	}
	return lastErr
}

// refreshAppInfo asks SteamCMD to refresh its app metadata cache before the
// size estimate and download. Best-effort with a bounded retry.
func (s *SteamSession) refreshAppInfo(ctx context.Context, result *domain.SessionResult) {
	spec := CommandSpec{
		Binary:  s.steam.Binary,
		Args:    []string{"+app_info_update", "1", "+quit"},
		Timeout: s.steam.AppInfoTimeout,
	}

	for attempt := 1; attempt <= 3; attempt++ {
		output, runResult, err := RunCollect(ctx, s.runner, spec)
		if err == nil && !runResult.TimedOut && !strings.Contains(output, appInfoFailureMarker) {
			return
		}
		s.logger.Warn("AppInfo update failed, retrying", zap.Int("attempt", attempt))
		if !sleepCtx(ctx, s.steam.LoginBackoff/2) {
			return
		}
	}
	result.Append("Warning: could not refresh app info; proceeding anyway.")
}

// estimateSize queries the app metadata for SizeOnDisk. Best-effort: any
// failure just means the pipeline proceeds without an estimate.
func (s *SteamSession) estimateSize(ctx context.Context, appID string, result *domain.SessionResult) {
	spec := CommandSpec{
		Binary:  s.steam.Binary,
		Args:    []string{"+app_info_update", "1", "+app_info_print", appID, "+quit"},
		Timeout: s.steam.AppInfoTimeout,
	}

	output, runResult, err := RunCollect(ctx, s.runner, spec)
	if err != nil || runResult.TimedOut || runResult.ExitCode != 0 {
		result.Append("Could not determine content size. Proceeding without size estimation.")
		return
	}

	m := sizeOnDiskPattern.FindStringSubmatch(output)
	if m == nil {
		m = sizeFallbackPattern.FindStringSubmatch(output)
	}
	if m == nil {
		result.Append("Could not determine content size. Proceeding without size estimation.")
		return
	}

	size, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		result.Append("Could not determine content size. Proceeding without size estimation.")
		return
	}
	result.Append(fmt.Sprintf("Estimated content size: %s", humanize.Bytes(size)))
}

func (s *SteamSession) prepareWorkDir(workDir string, resume bool, result *domain.SessionResult) *domain.SessionError {
	if !resume {
		if err := os.RemoveAll(workDir); err != nil {
			return domain.NewSessionError(domain.FailurePathNotWritable,
				fmt.Sprintf("could not clear working directory: %v", err))
		}
	}
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return domain.NewSessionError(domain.FailurePathNotWritable,
			fmt.Sprintf("could not create working directory: %v", err))
	}
	if resume {
		result.Append("Resuming: existing partial content kept in place.")
	}
	return nil
}

func (s *SteamSession) download(ctx context.Context, task *domain.DownloadTask, creds domain.Credentials, workDir string, result *domain.SessionResult) *domain.SessionError {
	result.Append("Starting download...")

	spec := CommandSpec{
		Binary: s.steam.Binary,
		Args: append(s.loginStatePrefix(creds),
			"+force_install_dir", workDir,
			"+app_update", task.AppID, "validate",
			"+quit"),
	}
	if !creds.IsAnonymous() {
		spec.Redact = creds.Username
	}
	s.writeSessionHeader(task.ID, spec)

	runResult, err := s.streamWithProgress(ctx, spec, "Downloading", result)
	if err != nil {
		return domain.NewSessionError(domain.FailureDownload, err.Error())
	}
	if runResult.ExitCode != 0 {
		return domain.NewSessionError(domain.FailureDownload,
			fmt.Sprintf("download failed with exit code %d: %s", runResult.ExitCode, strings.TrimSpace(runResult.Stderr)))
	}
	return nil
}

// loginStatePrefix rebuilds the login arguments for the download call;
// SteamCMD needs the credentials on every invocation
func (s *SteamSession) loginStatePrefix(creds domain.Credentials) []string {
	if creds.IsAnonymous() {
		return []string{"+login", "anonymous"}
	}
	var args []string
	if creds.GuardCode != "" {
		args = append(args, "+set_steam_guard_code", creds.GuardCode)
	}
	return append(args, "+login", creds.Username, creds.Password)
}

func (s *SteamSession) compress(ctx context.Context, task *domain.DownloadTask, workDir string, result *domain.SessionResult) *domain.SessionError {
	result.Append("Starting compression...")

	args := []string{"a", "-t" + s.archive.Format}
	if s.archive.VolumeSize != "" {
		args = append(args, "-v"+s.archive.VolumeSize)
	}
	args = append(args, task.OutputPath, workDir)

	spec := CommandSpec{Binary: s.archive.Binary, Args: args}
	s.writeSessionHeader(task.ID, spec)

	runResult, err := s.streamWithProgress(ctx, spec, "Compressing", result)
	if err != nil {
		return domain.NewSessionError(domain.FailureCompression, err.Error())
	}
	if runResult.ExitCode != 0 {
		return domain.NewSessionError(domain.FailureCompression,
			fmt.Sprintf("compression failed with exit code %d: %s", runResult.ExitCode, strings.TrimSpace(runResult.Stderr)))
	}
	return nil
}

// cleanup is best-effort: the archive already exists, so a leftover working
// directory is logged and swallowed
func (s *SteamSession) cleanup(workDir string, result *domain.SessionResult) {
	if err := os.RemoveAll(workDir); err != nil {
		s.logger.Warn("Failed to remove working directory",
			zap.String("dir", workDir),
			zap.Error(err))
		result.Append(fmt.Sprintf("Warning: could not remove working directory: %v", err))
	}
}

// streamWithProgress runs a long command, feeding each output line to the
// session transcript and folding recognized progress into status lines
func (s *SteamSession) streamWithProgress(ctx context.Context, spec CommandSpec, stage string, result *domain.SessionResult) (*RunResult, error) {
	tracker := NewProgressTracker()
	return s.runner.Run(ctx, spec, func(line string) {
		if s.ml != nil {
			s.ml.WriteSessionLine(line)
		}
		if sample := ParseProgress(line); sample != nil {
			tracker.Observe(*sample)
			result.Append(tracker.StatusLine(stage))
		} else if trimmed := strings.TrimSpace(line); trimmed != "" {
			result.Append(trimmed)
		}
	})
}

func (s *SteamSession) writeSessionHeader(sessionID string, spec CommandSpec) {
	if s.ml == nil {
		return
	}
	// Redact the credential arguments from the transcript header.
	display := make([]string, len(spec.Args))
	copy(display, spec.Args)
	for i := 0; i < len(display); i++ {
		if display[i] == "+login" && i+2 < len(display) && display[i+1] != "anonymous" {
			display[i+1] = "<user>"
			display[i+2] = "<password>"
		}
		if display[i] == "+set_steam_guard_code" && i+1 < len(display) {
			display[i+1] = "<code>"
		}
	}
	s.ml.WriteSessionHeader(sessionID, ShellEscapeCommand(spec.Binary, display...))
}

// sleepCtx sleeps for d unless the context ends first; returns false when
// interrupted
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
