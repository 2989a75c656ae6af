package diskmanager

import (
	"context"
	"time"
)

// BlockDevice is one enumerated top-level block device (e.g. /dev/sda),
// with the sysfs-reported `removable` flag and its partitions.
type BlockDevice struct {
	Name       string
	DevicePath string
	Removable  bool
	SizeBytes  uint64
	Partitions []Partition
}

// Partition is one partition of a BlockDevice (e.g. /dev/sda1).
type Partition struct {
	Name       string
	DevicePath string
	SizeBytes  uint64
}

// MountResult reports the outcome of a mount attempt, including which
// strategy in the fallback chain succeeded.
type MountResult struct {
	MountPoint   string
	Filesystem   string
	UsedSudo     bool
	UsedUserspace bool
}

// ClipRecord is the subset of a persisted video clip the retention sweep
// needs: its id for the database delete and the file paths to remove.
type ClipRecord struct {
	ID                int64
	TripID            int64
	StartTime         time.Time
	RoadVideoFile     string
	InteriorVideoFile string
}

// ClipStore is the narrow Trip Store collaborator retention cleanup
// needs: find clips older than a cutoff, and remove one by id. Satisfied
// by TripClipStore, which adapts internal/tripstore.Store.
type ClipStore interface {
	ClipsOlderThan(ctx context.Context, cutoff time.Time) ([]ClipRecord, error)
	DeleteClip(ctx context.Context, id int64) error
}

// UsageProbe reports a filesystem's used-space percentage, abstracting
// gopsutil's disk.Usage so retention logic is testable without real
// mounts.
type UsageProbe interface {
	UsedPercent(path string) (float64, error)
}

// Settings mirrors storage_settings.json exactly (spec.md §6): the
// persisted auto-clean and mount configuration, round-tripped by
// LoadSettings/SaveSettings.
type Settings struct {
	AutoCleanEnabled  bool   `json:"autoCleanEnabled"`
	AutoCleanThreshold float64 `json:"autoCleanThreshold"`
	AutoCleanDays     int    `json:"autoCleanDays"`
	MainDrive         string `json:"mainDrive"`
	MountPoint        string `json:"mountPoint"`
	AutoDetectDrives  bool   `json:"autoDetectDrives"`
}

// CleanupReport summarizes one retention sweep, per spec.md §4.J:
// "Report deleted count and freed bytes."
type CleanupReport struct {
	DeletedClips int
	FreedBytes   int64
	Errors       []error
}
