package diskmanager

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// sysBlockRoot is where Linux exposes block-device metadata, including the
// `removable` flag spec.md §4.J keys USB/removable detection off of.
const sysBlockRoot = "/sys/block"

// sectorSize is the fixed 512-byte unit /sys/block/*/size reports in.
const sectorSize = 512

// EnumerateBlockDevices lists every block device under /sys/block,
// reporting its removable flag, size, and partitions. Loop and ram
// devices are skipped since they are never eject/mount candidates.
func EnumerateBlockDevices() ([]BlockDevice, error) {
	return enumerateBlockDevicesAt(sysBlockRoot)
}

// enumerateBlockDevicesAt is EnumerateBlockDevices parameterized over the
// sysfs root, so tests can point it at a fixture directory instead of the
// real /sys/block.
func enumerateBlockDevicesAt(root string) ([]BlockDevice, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("diskmanager: read %s: %w", root, err)
	}

	var devices []BlockDevice
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, "loop") || strings.HasPrefix(name, "ram") {
			continue
		}

		dev := BlockDevice{
			Name:       name,
			DevicePath: "/dev/" + name,
			Removable:  readRemovableFlag(root, name),
			SizeBytes:  readSizeBytes(filepath.Join(root, name, "size")),
		}
		dev.Partitions = readPartitions(root, name)
		devices = append(devices, dev)
	}
	return devices, nil
}

func readRemovableFlag(root, deviceName string) bool {
	data, err := os.ReadFile(filepath.Join(root, deviceName, "removable"))
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(data)) == "1"
}

func readSizeBytes(path string) uint64 {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	sectors, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0
	}
	return sectors * sectorSize
}

func readPartitions(root, deviceName string) []Partition {
	deviceDir := filepath.Join(root, deviceName)
	entries, err := os.ReadDir(deviceDir)
	if err != nil {
		return nil
	}

	var partitions []Partition
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, deviceName) {
			continue
		}
		if _, err := os.Stat(filepath.Join(deviceDir, name, "partition")); err != nil {
			continue
		}
		partitions = append(partitions, Partition{
			Name:       name,
			DevicePath: "/dev/" + name,
			SizeBytes:  readSizeBytes(filepath.Join(deviceDir, name, "size")),
		})
	}
	return partitions
}
