package diskmanager

import (
	"github.com/shirou/gopsutil/v3/disk"
)

// GopsutilUsageProbe reports disk usage via gopsutil, the teacher's own
// choice for host-resource metrics (internal/mediamtx's
// system_metrics_manager.go calls disk.Usage for its storage-info API;
// diskmanager reuses the v3 module path already a direct dependency here).
type GopsutilUsageProbe struct{}

// UsedPercent returns the used-space percentage for the filesystem
// containing path.
func (GopsutilUsageProbe) UsedPercent(path string) (float64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}
	return usage.UsedPercent, nil
}
