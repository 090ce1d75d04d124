package infrastructure

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/disk"
	"go.uber.org/zap"

	"github.com/yourusername/steampack-go/internal/domain"
)

// FreeSpace reports the free bytes on the filesystem holding path. The path
// does not need to exist yet; the nearest existing ancestor is probed.
func FreeSpace(path string) (uint64, error) {
	probe := path
	for {
		if _, err := os.Stat(probe); err == nil {
			break
		}
		parent := filepath.Dir(probe)
		if parent == probe {
			break
		}
		probe = parent
	}
	usage, err := disk.Usage(probe)
	if err != nil {
		return 0, fmt.Errorf("failed to query disk usage for %s: %w", probe, err)
	}
	return usage.Free, nil
}

// CheckStatus describes the outcome of one environment check
type CheckStatus string

const (
	CheckOK        CheckStatus = "ok"
	CheckFixed     CheckStatus = "fixed"
	CheckWarning   CheckStatus = "warning"
	CheckUnfixable CheckStatus = "unfixable"
)

// CheckItem is one line of a CheckReport
type CheckItem struct {
	Name   string      `json:"name"`
	Status CheckStatus `json:"status"`
	Detail string      `json:"detail"`
}

// CheckReport summarizes environment readiness. Healthy is false only when
// an unfixable problem remains.
type CheckReport struct {
	Healthy bool        `json:"healthy"`
	Items   []CheckItem `json:"items"`
}

func (r *CheckReport) add(name string, status CheckStatus, detail string) {
	r.Items = append(r.Items, CheckItem{Name: name, Status: status, Detail: detail})
	if status == CheckUnfixable {
		r.Healthy = false
	}
}

// DiskReport is the free-space view exposed over the API
type DiskReport struct {
	Path      string `json:"path"`
	FreeBytes uint64 `json:"free_bytes"`
	Free      string `json:"free"`
	Total     string `json:"total"`
	UsedPct   string `json:"used_percent"`
	Low       bool   `json:"low"`
}

// SystemChecker inspects and repairs the runtime environment: the SteamCMD
// and 7z binaries, the data directory tree, and write access to it.
type SystemChecker struct {
	cfg    *domain.Config
	logger *zap.Logger
}

func NewSystemChecker(cfg *domain.Config, log *zap.Logger) *SystemChecker {
	return &SystemChecker{cfg: cfg, logger: log}
}

// Check runs every probe and reports findings. It repairs what it can
// (directory creation, executable bits) and never returns an error; an
// unhealthy environment is still a valid report.
func (c *SystemChecker) Check() *CheckReport {
	report := &CheckReport{Healthy: true}

	c.checkSteamBinary(report)
	c.checkArchiveBinary(report)
	c.checkDirectories(report)
	c.checkWriteAccess(report)
	c.checkDiskSpace(report)

	c.logger.Info("System check finished",
		zap.Bool("healthy", report.Healthy),
		zap.Int("items", len(report.Items)))
	return report
}

func (c *SystemChecker) checkSteamBinary(report *CheckReport) {
	candidates := append([]string{c.cfg.Steam.Binary}, c.cfg.Steam.CandidatePaths...)
	if status, detail, found := c.probeSteamBinary(candidates); found {
		report.add("steamcmd", status, detail)
		return
	}

	if c.cfg.Steam.InstallScript != "" {
		if err := c.runInstallScript(); err != nil {
			report.add("steamcmd", CheckUnfixable,
				fmt.Sprintf("not found and install script failed: %v", err))
			return
		}
		if _, detail, found := c.probeSteamBinary(candidates); found {
			report.add("steamcmd", CheckFixed, detail+" after running install script")
			return
		}
		report.add("steamcmd", CheckUnfixable,
			"install script ran but no steamcmd binary appeared")
		return
	}

	report.add("steamcmd", CheckUnfixable,
		fmt.Sprintf("not found (searched %q and PATH)", candidates))
}

// probeSteamBinary looks for a usable steamcmd among candidates, repairing a
// missing executable bit when it can. found is false when nothing matched.
func (c *SystemChecker) probeSteamBinary(candidates []string) (CheckStatus, string, bool) {
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		resolved, err := exec.LookPath(candidate)
		if err == nil {
			return CheckOK, "found at " + resolved, true
		}
		info, statErr := os.Stat(candidate)
		if statErr != nil || info.IsDir() {
			continue
		}
		// Present but not executable. A tarball unpacked without -p is the
		// usual cause, so try to restore the bit.
		if chmodErr := os.Chmod(candidate, info.Mode()|0111); chmodErr == nil {
			return CheckFixed, "restored executable bit on " + candidate, true
		}
		return CheckUnfixable, candidate + " exists but is not executable", true
	}
	return CheckUnfixable, "", false
}

func (c *SystemChecker) runInstallScript() error {
	script := c.cfg.Steam.InstallScript
	if _, err := os.Stat(script); err != nil {
		return err
	}
	c.logger.Info("Running steamcmd install script", zap.String("script", script))
	out, err := exec.Command("/bin/sh", script).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (c *SystemChecker) checkArchiveBinary(report *CheckReport) {
	resolved, err := exec.LookPath(c.cfg.Archive.Binary)
	if err != nil {
		report.add("7z", CheckUnfixable, c.cfg.Archive.Binary+" not found on PATH")
		return
	}
	report.add("7z", CheckOK, "found at "+resolved)
}

func (c *SystemChecker) checkDirectories(report *CheckReport) {
	dirs := []string{
		c.cfg.Paths.WorkDir(),
		c.cfg.Paths.OutputDir(),
		c.cfg.Paths.LogsDir(),
		c.cfg.Paths.ConfigDir(),
	}
	created := 0
	for _, dir := range dirs {
		if _, err := os.Stat(dir); err == nil {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			report.add("directories", CheckUnfixable,
				fmt.Sprintf("could not create %s: %v", dir, err))
			return
		}
		created++
	}
	if created > 0 {
		report.add("directories", CheckFixed, fmt.Sprintf("created %d missing directories", created))
		return
	}
	report.add("directories", CheckOK, "all data directories present")
}

// checkWriteAccess probes each writable directory with a throwaway file; a
// stat alone cannot see read-only mounts
func (c *SystemChecker) checkWriteAccess(report *CheckReport) {
	for _, dir := range []string{c.cfg.Paths.WorkDir(), c.cfg.Paths.OutputDir()} {
		probe := filepath.Join(dir, ".probe-"+uuid.New().String())
		if err := os.WriteFile(probe, []byte("ok"), 0644); err != nil {
			report.add("write_access", CheckUnfixable,
				fmt.Sprintf("%s is not writable: %v", dir, err))
			return
		}
		os.Remove(probe)
	}
	report.add("write_access", CheckOK, "work and output directories are writable")
}

func (c *SystemChecker) checkDiskSpace(report *CheckReport) {
	free, err := FreeSpace(c.cfg.Paths.BaseDir)
	if err != nil {
		report.add("disk_space", CheckWarning, "could not query free space: "+err.Error())
		return
	}
	if free < c.cfg.Steam.MinFreeSpace {
		report.add("disk_space", CheckWarning,
			fmt.Sprintf("only %d bytes free; downloads may fail", free))
		return
	}
	report.add("disk_space", CheckOK, fmt.Sprintf("%d bytes free", free))
}

// Disk returns the free-space report for the data directory
func (c *SystemChecker) Disk() (*DiskReport, error) {
	probe := c.cfg.Paths.BaseDir
	if _, err := os.Stat(probe); err != nil {
		probe = filepath.Dir(probe)
	}
	usage, err := disk.Usage(probe)
	if err != nil {
		return nil, fmt.Errorf("failed to query disk usage: %w", err)
	}
	return &DiskReport{
		Path:      c.cfg.Paths.BaseDir,
		FreeBytes: usage.Free,
		Free:      fmt.Sprintf("%.2f GB", float64(usage.Free)/(1<<30)),
		Total:     fmt.Sprintf("%.2f GB", float64(usage.Total)/(1<<30)),
		UsedPct:   fmt.Sprintf("%.1f%%", usage.UsedPercent),
		Low:       usage.Free < c.cfg.Steam.MinFreeSpace,
	}, nil
}
