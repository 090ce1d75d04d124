package infrastructure

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/steampack-go/internal/domain"
)

func TestClassifyLoginOutput(t *testing.T) {
	tests := []struct {
		name   string
		output string
		kind   domain.FailureKind
	}{
		{
			name:   "success marker",
			output: "Logging in...\nWaiting for user info...OK\n",
		},
		{
			name:   "steam guard challenge",
			output: "This account is protected by Steam Guard.\nEnter the code sent to your email:",
			kind:   domain.FailureAuthChallenge,
		},
		{
			name:   "two factor challenge",
			output: "Two-factor code:FAILED (Account Logon Denied)",
			kind:   domain.FailureAuthChallenge,
		},
		{
			name:   "invalid password",
			output: "FAILED login with result code Invalid Password",
			kind:   domain.FailureInvalidCredentials,
		},
		{
			name:   "generic login failure",
			output: "Login Failure: No Connection",
			kind:   domain.FailureInvalidCredentials,
		},
		{
			name:   "unrecognized output",
			output: "Segmentation fault (core dumped)",
			kind:   domain.FailureUnclassifiedLogin,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			serr := ClassifyLoginOutput(tt.output)
			if tt.kind == "" {
				assert.Nil(t, serr)
				return
			}
			require.NotNil(t, serr)
			assert.Equal(t, tt.kind, serr.Kind)
		})
	}
}

// scriptedRunner plays back canned subprocess behavior, routed by the
// command arguments the session builds
type scriptedRunner struct {
	archiveBinary string

	loginOutputs []string
	loginTimeout bool
	loginCalls   int

	downloadLines []string
	downloadExit  int
	appInfoOutput string
	compressExit  int

	calls []string
}

func hasArg(args []string, want string) bool {
	for _, a := range args {
		if a == want {
			return true
		}
	}
	return false
}

func (s *scriptedRunner) Run(_ context.Context, spec CommandSpec, onLine func(string)) (*RunResult, error) {
	emit := func(lines ...string) {
		for _, line := range lines {
			if onLine != nil {
				onLine(line)
			}
		}
	}

	switch {
	case spec.Binary == s.archiveBinary:
		s.calls = append(s.calls, "compress")
		emit("  0%", " 50%", "100%")
		return &RunResult{ExitCode: s.compressExit}, nil
	case hasArg(spec.Args, "+app_update"):
		s.calls = append(s.calls, "download")
		emit(s.downloadLines...)
		return &RunResult{ExitCode: s.downloadExit}, nil
	case hasArg(spec.Args, "+app_info_print"):
		s.calls = append(s.calls, "appinfo_print")
		emit(s.appInfoOutput)
		return &RunResult{}, nil
	case hasArg(spec.Args, "+app_info_update"):
		s.calls = append(s.calls, "appinfo_update")
		return &RunResult{}, nil
	default:
		s.calls = append(s.calls, "login")
		idx := s.loginCalls
		if idx >= len(s.loginOutputs) {
			idx = len(s.loginOutputs) - 1
		}
		s.loginCalls++
		if s.loginTimeout {
			return &RunResult{TimedOut: true, ExitCode: -1}, nil
		}
		emit(s.loginOutputs[idx])
		return &RunResult{}, nil
	}
}

func testSessionConfig(t *testing.T) *domain.Config {
	cfg := domain.DefaultConfig()
	cfg.Paths.BaseDir = t.TempDir()
	cfg.Steam.Binary = "steamcmd"
	cfg.Steam.LoginAttempts = 3
	cfg.Steam.LoginBackoff = time.Millisecond
	cfg.Steam.PostLoginDelay = 0
	return cfg
}

func newScriptedSession(t *testing.T, runner *scriptedRunner) (*SteamSession, *domain.Config) {
	cfg := testSessionConfig(t)
	runner.archiveBinary = cfg.Archive.Binary
	return NewSteamSession(cfg, runner, nil, zap.NewNop()), cfg
}

func loginOK() string {
	return "Connecting anonymously to Steam Public...\nWaiting for user info...OK"
}

func TestSteamSession_RunHappyPath(t *testing.T) {
	runner := &scriptedRunner{
		loginOutputs: []string{loginOK()},
		downloadLines: []string{
			" Update state (0x61) downloading, progress: 25.00 (2500 / 10000)",
			" Update state (0x61) downloading, progress: 100.00 (10000 / 10000)",
			"Success! App '730' fully installed.",
		},
		appInfoOutput: `"730" { "SizeOnDisk" "34359738368" }`,
	}
	session, cfg := newScriptedSession(t, runner)

	task := domain.NewDownloadTask("730", "", cfg.Paths.DefaultOutputPath("730"), domain.Credentials{}, false)
	result := session.Run(context.Background(), task, domain.Credentials{})

	require.Nil(t, result.Err, "pipeline failed: %v", result.Err)
	assert.Equal(t, []string{"login", "appinfo_update", "appinfo_print", "download", "compress"}, runner.calls)

	joined := strings.Join(result.Log, "\n")
	assert.Contains(t, joined, "Using anonymous login.")
	assert.Contains(t, joined, "Steam login verified successfully.")
	assert.Contains(t, joined, "Estimated content size: 34 GB")
	assert.Contains(t, joined, "Completed!")
}

func TestSteamSession_LoginSucceedsOnSecondAttempt(t *testing.T) {
	runner := &scriptedRunner{
		loginOutputs: []string{"Connection to Steam servers lost.", loginOK()},
	}
	session, _ := newScriptedSession(t, runner)

	result := session.VerifyLogin(context.Background(), domain.Credentials{})
	assert.Nil(t, result.Err)
	assert.Equal(t, 2, runner.loginCalls)
}

func TestSteamSession_LoginRetriesExhausted(t *testing.T) {
	runner := &scriptedRunner{
		loginOutputs: []string{"Connection to Steam servers lost."},
	}
	session, _ := newScriptedSession(t, runner)

	result := session.VerifyLogin(context.Background(), domain.Credentials{})
	require.NotNil(t, result.Err)
	assert.Equal(t, domain.FailureUnclassifiedLogin, result.Err.Kind)
	assert.Equal(t, 3, runner.loginCalls)
}

func TestSteamSession_LoginTimeoutClassified(t *testing.T) {
	runner := &scriptedRunner{
		loginOutputs: []string{""},
		loginTimeout: true,
	}
	session, _ := newScriptedSession(t, runner)

	result := session.VerifyLogin(context.Background(), domain.Credentials{})
	require.NotNil(t, result.Err)
	assert.Equal(t, domain.FailureTimeout, result.Err.Kind)
}

func TestSteamSession_InvalidCredentialsAbortBeforeDownload(t *testing.T) {
	runner := &scriptedRunner{
		loginOutputs: []string{"FAILED login with result code Invalid Password"},
	}
	session, cfg := newScriptedSession(t, runner)

	creds := domain.Credentials{Username: "alice", Password: "wrong"}
	task := domain.NewDownloadTask("730", "", cfg.Paths.DefaultOutputPath("730"), creds, false)
	result := session.Run(context.Background(), task, creds)

	require.NotNil(t, result.Err)
	assert.Equal(t, domain.FailureInvalidCredentials, result.Err.Kind)
	assert.NotContains(t, runner.calls, "download")
	assert.NotContains(t, runner.calls, "compress")
}

func TestSteamSession_DownloadFailure(t *testing.T) {
	runner := &scriptedRunner{
		loginOutputs:  []string{loginOK()},
		downloadLines: []string{"Error! App '730' state is 0x602 after update job."},
		downloadExit:  8,
	}
	session, cfg := newScriptedSession(t, runner)

	task := domain.NewDownloadTask("730", "", cfg.Paths.DefaultOutputPath("730"), domain.Credentials{}, false)
	result := session.Run(context.Background(), task, domain.Credentials{})

	require.NotNil(t, result.Err)
	assert.Equal(t, domain.FailureDownload, result.Err.Kind)
	assert.Contains(t, result.Err.Message, "exit code 8")
	assert.NotContains(t, runner.calls, "compress")
}

func TestSteamSession_CompressFailure(t *testing.T) {
	runner := &scriptedRunner{
		loginOutputs:  []string{loginOK()},
		downloadLines: []string{"Success! App '730' fully installed."},
		compressExit:  2,
	}
	session, cfg := newScriptedSession(t, runner)

	task := domain.NewDownloadTask("730", "", cfg.Paths.DefaultOutputPath("730"), domain.Credentials{}, false)
	result := session.Run(context.Background(), task, domain.Credentials{})

	require.NotNil(t, result.Err)
	assert.Equal(t, domain.FailureCompression, result.Err.Kind)
}

func TestSteamSession_RelativeOutputPathRejected(t *testing.T) {
	runner := &scriptedRunner{loginOutputs: []string{loginOK()}}
	session, _ := newScriptedSession(t, runner)

	task := domain.NewDownloadTask("730", "", "relative/app_730.7z", domain.Credentials{}, false)
	result := session.Run(context.Background(), task, domain.Credentials{})

	require.NotNil(t, result.Err)
	assert.Equal(t, domain.FailurePathNotWritable, result.Err.Kind)
	assert.Zero(t, runner.loginCalls)
}

func TestSteamSession_WorkDirIsolatedPerApp(t *testing.T) {
	session, cfg := newScriptedSession(t, &scriptedRunner{})

	a := session.WorkDirFor("730")
	b := session.WorkDirFor("440")
	assert.NotEqual(t, a, b)
	assert.Equal(t, filepath.Join(cfg.Paths.WorkDir(), "app_730"), a)
}

func TestSteamSession_CredentialArgs(t *testing.T) {
	session, _ := newScriptedSession(t, &scriptedRunner{})

	anon := session.loginArgs(domain.Credentials{})
	assert.Equal(t, []string{"+login", "anonymous", "+quit"}, anon)

	full := session.loginArgs(domain.Credentials{
		Username:  "alice",
		Password:  "hunter2",
		GuardCode: "ABC12",
	})
	assert.Equal(t, []string{"+set_steam_guard_code", "ABC12", "+login", "alice", "hunter2", "+quit"}, full)
}
