//go:build integration

package integration

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/steampack-go/internal/app"
	"github.com/yourusername/steampack-go/internal/domain"
	"github.com/yourusername/steampack-go/internal/infrastructure"
)

// fakeSteamCmd mimics just enough of steamcmd: it reports a successful
// login, and when asked to install an app it drops a content file into the
// install dir and prints progress lines.
const fakeSteamCmd = `#!/bin/sh
dir=""
prev=""
for a in "$@"; do
  if [ "$prev" = "+force_install_dir" ]; then dir="$a"; fi
  prev="$a"
done
echo "Connecting anonymously to Steam Public...Logged in OK"
echo "Waiting for user info...OK"
if [ -n "$dir" ]; then
  mkdir -p "$dir"
  echo "game content" > "$dir/content.bin"
  echo " Update state (0x61) downloading, progress: 50.00 (500 / 1000)"
  echo " Update state (0x61) downloading, progress: 100.00 (1000 / 1000)"
  echo "Success! App fully installed."
fi
`

// fakeSevenZip writes a file at the output path (second-to-last argument)
const fakeSevenZip = `#!/bin/sh
out=""
prev=""
for a in "$@"; do
  out="$prev"
  prev="$a"
done
echo " 50%"
echo "fake archive" > "$out"
echo "100%"
echo "Everything is Ok"
`

type testEnv struct {
	cfg      *domain.Config
	repo     *infrastructure.SQLiteTaskRepository
	session  *infrastructure.SteamSession
	checker  *infrastructure.SystemChecker
	queueMgr *app.QueueManager
}

func writeFakeBinary(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0755))
	return path
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	base := t.TempDir()
	binDir := t.TempDir()

	cfg := domain.DefaultConfig()
	cfg.Paths.BaseDir = base
	cfg.Queue.DatabasePath = filepath.Join(base, "queue.db")
	cfg.Queue.CheckInterval = 20 * time.Millisecond
	cfg.Steam.Binary = writeFakeBinary(t, binDir, "steamcmd", fakeSteamCmd)
	cfg.Steam.CandidatePaths = nil
	cfg.Steam.LoginBackoff = 10 * time.Millisecond
	cfg.Steam.PostLoginDelay = 0
	cfg.Archive.Binary = writeFakeBinary(t, binDir, "7z", fakeSevenZip)
	cfg.Archive.VolumeSize = ""

	for _, dir := range []string{cfg.Paths.WorkDir(), cfg.Paths.OutputDir(), cfg.Paths.LogsDir(), cfg.Paths.ConfigDir()} {
		require.NoError(t, os.MkdirAll(dir, 0755))
	}

	repo, err := infrastructure.NewSQLiteTaskRepository(cfg.Queue.DatabasePath)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	log := zap.NewNop()
	runner := infrastructure.NewExecRunner(infrastructure.NewProcessTable(), log)
	session := infrastructure.NewSteamSession(cfg, runner, nil, log)
	checker := infrastructure.NewSystemChecker(cfg, log)
	queueMgr := app.NewQueueManager(repo, session, nil, &cfg.Queue, cfg.Paths, nil, log)

	return &testEnv{
		cfg:      cfg,
		repo:     repo,
		session:  session,
		checker:  checker,
		queueMgr: queueMgr,
	}
}
