package diskmanager

import (
	"context"
	"os"
	"time"

	"github.com/dashcamv2/control-go/internal/logging"
	"github.com/dashcamv2/control-go/internal/metrics"
)

// Cleaner runs the retention sweep spec.md §4.J describes: "given an
// auto_clean_threshold in percent and auto_clean_days, if free space
// falls below threshold, delete every clip strictly older than
// now - days and remove its database row (within a single transaction
// per file)."
type Cleaner struct {
	clips  ClipStore
	usage  UsageProbe
	logger *logging.Logger
}

// NewCleaner builds a Cleaner over clips and usage.
func NewCleaner(clips ClipStore, usage UsageProbe, logger *logging.Logger) *Cleaner {
	return &Cleaner{clips: clips, usage: usage, logger: logger}
}

// Sweep runs one retention pass against mountPath using settings,
// returning the clips deleted and bytes freed. A no-op (zero-value
// report, nil error) when auto-clean is disabled or free space is above
// threshold.
func (c *Cleaner) Sweep(ctx context.Context, mountPath string, settings Settings, now time.Time) (CleanupReport, error) {
	var report CleanupReport
	if !settings.AutoCleanEnabled {
		return report, nil
	}

	usedPercent, err := c.usage.UsedPercent(mountPath)
	if err != nil {
		return report, err
	}
	freePercent := 100 - usedPercent
	if freePercent >= settings.AutoCleanThreshold {
		return report, nil
	}

	cutoff := now.AddDate(0, 0, -settings.AutoCleanDays)
	clips, err := c.clips.ClipsOlderThan(ctx, cutoff)
	if err != nil {
		return report, err
	}

	for _, clip := range clips {
		freed, err := deleteClipFiles(clip)
		if err != nil {
			c.logger.WithError(err).WithFields(logging.Fields{"clip_id": clip.ID}).
				Warn("failed to remove clip file during retention sweep")
			report.Errors = append(report.Errors, err)
			continue
		}
		if err := c.clips.DeleteClip(ctx, clip.ID); err != nil {
			c.logger.WithError(err).WithFields(logging.Fields{"clip_id": clip.ID}).
				Warn("failed to remove clip row during retention sweep")
			report.Errors = append(report.Errors, err)
			continue
		}
		report.DeletedClips++
		report.FreedBytes += freed
	}

	if report.DeletedClips > 0 {
		metrics.DiskManagerCleanupDeletedClipsTotal.Add(float64(report.DeletedClips))
		metrics.DiskManagerCleanupFreedBytesTotal.Add(float64(report.FreedBytes))
	}

	return report, nil
}

func deleteClipFiles(clip ClipRecord) (int64, error) {
	var freed int64
	for _, path := range []string{clip.RoadVideoFile, clip.InteriorVideoFile} {
		if path == "" {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return freed, err
		}
		if err := os.Remove(path); err != nil {
			return freed, err
		}
		freed += info.Size()
	}
	return freed, nil
}
