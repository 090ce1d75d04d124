package infrastructure

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/yourusername/steampack-go/internal/domain"
)

var (
	// SteamCMD update lines: "... progress: 12.34 (1234 / 10000)"
	byteProgressPattern = regexp.MustCompile(`progress:\s*([0-9]+(?:\.[0-9]+)?)\s*\(\s*(\d+)\s*/\s*(\d+)\s*\)`)
	// 7z and older SteamCMD builds print a bare percentage
	barePercentPattern = regexp.MustCompile(`(\d+)%`)
)

// ParseProgress extracts a progress sample from one line of subprocess
// output. Returns nil for lines carrying no recognizable progress.
func ParseProgress(line string) *domain.ProgressSample {
	if m := byteProgressPattern.FindStringSubmatch(line); m != nil {
		percent, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return nil
		}
		done, err1 := strconv.ParseInt(m[2], 10, 64)
		total, err2 := strconv.ParseInt(m[3], 10, 64)
		if err1 != nil || err2 != nil {
			return nil
		}
		return &domain.ProgressSample{
			Percent:    percent,
			BytesDone:  done,
			BytesTotal: total,
			HasBytes:   true,
		}
	}
	if m := barePercentPattern.FindStringSubmatch(line); m != nil {
		percent, err := strconv.ParseFloat(m[1], 64)
		if err != nil || percent > 100 {
			return nil
		}
		return &domain.ProgressSample{Percent: percent}
	}
	return nil
}

const speedWindowSize = 10

// ProgressTracker turns a stream of progress samples into smoothed transfer
// speed and ETA estimates. Speed is sampled at most once per second of wall
// clock and averaged over a rolling window of the last ten non-zero samples.
// Bare-percent samples update the percentage but never the estimator.
type ProgressTracker struct {
	now        func() time.Time
	lastAt     time.Time
	lastBytes  int64
	speeds     []float64
	percent    float64
	bytesTotal int64
	bytesDone  int64
}

// NewProgressTracker creates a tracker using wall-clock time
func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{now: time.Now}
}

// newProgressTrackerAt creates a tracker with an injectable clock, for tests
func newProgressTrackerAt(now func() time.Time) *ProgressTracker {
	return &ProgressTracker{now: now}
}

// Observe feeds one sample into the tracker
func (t *ProgressTracker) Observe(sample domain.ProgressSample) {
	t.percent = sample.Percent
	if !sample.HasBytes {
		return
	}
	t.bytesDone = sample.BytesDone
	t.bytesTotal = sample.BytesTotal

	now := t.now()
	if t.lastAt.IsZero() {
		t.lastAt = now
		t.lastBytes = sample.BytesDone
		return
	}

	elapsed := now.Sub(t.lastAt).Seconds()
	if elapsed < 1 {
		return
	}

	speed := float64(sample.BytesDone-t.lastBytes) / elapsed
	t.lastAt = now
	t.lastBytes = sample.BytesDone

	if speed <= 0 {
		return
	}
	t.speeds = append(t.speeds, speed)
	if len(t.speeds) > speedWindowSize {
		t.speeds = t.speeds[len(t.speeds)-speedWindowSize:]
	}
}

// Percent returns the latest observed completion percentage
func (t *ProgressTracker) Percent() float64 {
	return t.percent
}

// AverageSpeed returns the rolling-average transfer speed in bytes per
// second, or zero when no samples have accumulated yet
func (t *ProgressTracker) AverageSpeed() float64 {
	if len(t.speeds) == 0 {
		return 0
	}
	var sum float64
	for _, s := range t.speeds {
		sum += s
	}
	return sum / float64(len(t.speeds))
}

// ETA returns the estimated remaining time. ok is false when the estimator
// has no usable speed yet, in which case the ETA must be omitted rather
// than rendered as infinite.
func (t *ProgressTracker) ETA() (time.Duration, bool) {
	speed := t.AverageSpeed()
	if speed <= 0 || t.bytesTotal <= 0 {
		return 0, false
	}
	remaining := float64(t.bytesTotal - t.bytesDone)
	if remaining < 0 {
		remaining = 0
	}
	return time.Duration(remaining / speed * float64(time.Second)), true
}

// StatusLine renders a human-readable progress line for the status log,
// e.g. "Downloading: 42.0% complete (1.2 GB / 2.9 GB, 15 MB/s, ~2m 10s remaining)"
func (t *ProgressTracker) StatusLine(stage string) string {
	line := fmt.Sprintf("%s: %.1f%% complete", stage, t.percent)
	if t.bytesTotal > 0 {
		line += fmt.Sprintf(" (%s / %s", humanize.Bytes(uint64(t.bytesDone)), humanize.Bytes(uint64(t.bytesTotal)))
		if speed := t.AverageSpeed(); speed > 0 {
			line += fmt.Sprintf(", %s/s", humanize.Bytes(uint64(speed)))
		}
		if eta, ok := t.ETA(); ok {
			line += fmt.Sprintf(", ~%s remaining", FormatETA(eta))
		}
		line += ")"
	}
	return line
}

// FormatETA formats a duration as seconds under a minute, minutes and
// seconds under an hour, and hours and minutes beyond that
func FormatETA(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Round(time.Second).Seconds())
	switch {
	case total < 60:
		return fmt.Sprintf("%ds", total)
	case total < 3600:
		return fmt.Sprintf("%dm %ds", total/60, total%60)
	default:
		return fmt.Sprintf("%dh %dm", total/3600, (total%3600)/60)
	}
}
