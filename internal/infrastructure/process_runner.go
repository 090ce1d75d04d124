package infrastructure

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// CommandSpec describes one external command invocation
type CommandSpec struct {
	Binary  string
	Args    []string
	Dir     string
	Timeout time.Duration // zero means no timeout
	Redact  string        // lines containing this literal are suppressed from streaming
}

// RunResult is the outcome of a finished command
type RunResult struct {
	ExitCode int
	Stderr   string
	TimedOut bool
}

// CommandRunner runs an external command, delivering stdout line by line to
// onLine as it is produced. The line sequence is finite and not replayable.
// A non-zero exit or timeout is reported in RunResult, not as an error;
// the returned error covers only failures to start or stream.
type CommandRunner interface {
	Run(ctx context.Context, spec CommandSpec, onLine func(line string)) (*RunResult, error)
}

// ProcessTable tracks every spawned child process so an external shutdown
// can terminate all of them
type ProcessTable struct {
	mu    sync.Mutex
	procs map[int]*os.Process
}

// NewProcessTable creates an empty process table
func NewProcessTable() *ProcessTable {
	return &ProcessTable{procs: make(map[int]*os.Process)}
}

func (pt *ProcessTable) register(p *os.Process) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.procs[p.Pid] = p
}

func (pt *ProcessTable) unregister(pid int) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	delete(pt.procs, pid)
}

// Len returns the number of outstanding child processes
func (pt *ProcessTable) Len() int {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	return len(pt.procs)
}

// KillAll sends SIGTERM to every outstanding child, waits up to grace, then
// SIGKILLs whatever is still alive
func (pt *ProcessTable) KillAll(grace time.Duration) {
	pt.mu.Lock()
	procs := make([]*os.Process, 0, len(pt.procs))
	for _, p := range pt.procs {
		procs = append(procs, p)
	}
	pt.mu.Unlock()

	for _, p := range procs {
		signalGroup(p.Pid, syscall.SIGTERM)
	}

	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if pt.Len() == 0 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}

	for _, p := range procs {
		signalGroup(p.Pid, syscall.SIGKILL)
	}
}

// ExecRunner is the exec-based CommandRunner used in production
type ExecRunner struct {
	table  *ProcessTable
	logger *zap.Logger
}

// NewExecRunner creates a runner that registers children in table
func NewExecRunner(table *ProcessTable, logger *zap.Logger) *ExecRunner {
	return &ExecRunner{table: table, logger: logger}
}

// Run starts the command and streams its stdout lines to onLine. Stderr is
// captured separately for error reporting. On timeout the process is
// force-killed and TimedOut is set.
func (r *ExecRunner) Run(ctx context.Context, spec CommandSpec, onLine func(line string)) (*RunResult, error) {
	cmd := exec.Command(spec.Binary, spec.Args...)
	cmd.Dir = spec.Dir
	setProcessGroup(cmd)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", spec.Binary, err)
	}

	r.table.register(cmd.Process)
	defer r.table.unregister(cmd.Process.Pid)

	r.logger.Debug("Started process",
		zap.String("binary", spec.Binary),
		zap.Int("pid", cmd.Process.Pid))

	var timedOut atomic.Bool
	if spec.Timeout > 0 {
		timer := time.AfterFunc(spec.Timeout, func() {
			timedOut.Store(true)
			signalGroup(cmd.Process.Pid, syscall.SIGKILL)
		})
		defer timer.Stop()
	}

	// Kill the child if the context is cancelled while it runs.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			signalGroup(cmd.Process.Pid, syscall.SIGKILL)
		case <-watchDone:
		}
	}()

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if spec.Redact != "" && strings.Contains(line, spec.Redact) {
			continue
		}
		if onLine != nil {
			onLine(line)
		}
	}
	scanErr := scanner.Err()

	waitErr := cmd.Wait()

	result := &RunResult{
		Stderr:   stderr.String(),
		TimedOut: timedOut.Load(),
	}
	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
		} else {
			return nil, fmt.Errorf("wait failed for %s: %w", spec.Binary, waitErr)
		}
	}

	if scanErr != nil && !timedOut.Load() && ctx.Err() == nil {
		return nil, fmt.Errorf("failed to read output of %s: %w", spec.Binary, scanErr)
	}

	r.logger.Debug("Process finished",
		zap.String("binary", spec.Binary),
		zap.Int("exit_code", result.ExitCode),
		zap.Bool("timed_out", result.TimedOut))

	return result, nil
}

// RunCollect runs the command and returns all (non-redacted) stdout lines
// joined, for short commands whose full output is classified afterwards
func RunCollect(ctx context.Context, r CommandRunner, spec CommandSpec) (string, *RunResult, error) {
	var lines []string
	result, err := r.Run(ctx, spec, func(line string) {
		lines = append(lines, line)
	})
	if err != nil {
		return "", nil, err
	}
	return strings.Join(lines, "\n"), result, nil
}
