package diskmanager

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// CommandRunner abstracts running a short-lived external command to
// completion, so the mount/probe/eject chain is testable without
// invoking real blkid/mount/umount binaries, following the same
// process-abstraction convention internal/camera.ProcessRunner uses for
// long-lived encoder children.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (stdout string, err error)
}

// ExecRunner runs real child processes via os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	return string(out), err
}

// ntfsUserspaceFS is the filesystem type that requires a user-space
// driver rather than the kernel mount path, per spec.md §4.J: "for NTFS
// require a user-space driver."
const ntfsUserspaceFS = "ntfs"

// ProbeFilesystem runs a blkid-style probe to determine devicePath's
// filesystem type, per spec.md §4.J: "detect filesystem via a
// blkid-style probe."
func ProbeFilesystem(ctx context.Context, runner CommandRunner, devicePath string) (string, error) {
	out, err := runner.Run(ctx, "blkid", "-o", "value", "-s", "TYPE", devicePath)
	if err != nil {
		return "", fmt.Errorf("diskmanager: probe filesystem for %s: %w", devicePath, err)
	}
	fsType := strings.TrimSpace(out)
	if fsType == "" {
		return "", fmt.Errorf("diskmanager: probe filesystem for %s: no filesystem detected", devicePath)
	}
	return fsType, nil
}

// Mount mounts devicePath at mountPoint, following spec.md §4.J's mount
// plan: NTFS requires the user-space driver (ntfs-3g); every other
// filesystem uses a standard mount, retried with sudo if the first
// attempt fails for any reason.
func Mount(ctx context.Context, runner CommandRunner, devicePath, mountPoint string) (MountResult, error) {
	fsType, err := ProbeFilesystem(ctx, runner, devicePath)
	if err != nil {
		return MountResult{}, err
	}

	if fsType == ntfsUserspaceFS {
		if _, err := runner.Run(ctx, "ntfs-3g", devicePath, mountPoint); err != nil {
			return MountResult{}, fmt.Errorf("diskmanager: ntfs-3g mount %s at %s: %w", devicePath, mountPoint, err)
		}
		return MountResult{MountPoint: mountPoint, Filesystem: fsType, UsedUserspace: true}, nil
	}

	if _, err := runner.Run(ctx, "mount", "-t", fsType, devicePath, mountPoint); err == nil {
		return MountResult{MountPoint: mountPoint, Filesystem: fsType}, nil
	}

	if _, err := runner.Run(ctx, "sudo", "mount", "-t", fsType, devicePath, mountPoint); err != nil {
		return MountResult{}, fmt.Errorf("diskmanager: mount %s at %s: %w", devicePath, mountPoint, err)
	}
	return MountResult{MountPoint: mountPoint, Filesystem: fsType, UsedSudo: true}, nil
}

// Unmount mirrors Mount: a plain umount, falling back to sudo umount on
// failure.
func Unmount(ctx context.Context, runner CommandRunner, mountPoint string) error {
	if _, err := runner.Run(ctx, "umount", mountPoint); err == nil {
		return nil
	}
	if _, err := runner.Run(ctx, "sudo", "umount", mountPoint); err != nil {
		return fmt.Errorf("diskmanager: unmount %s: %w", mountPoint, err)
	}
	return nil
}

// SafeEject unmounts every mount point in mountPoints, then requests
// power-off of devicePath via udisksctl if available, per spec.md §4.J:
// "Safe-eject first unmounts every mounted partition then requests
// power-off via the device-management daemon if available." A missing
// udisksctl is not an error: the device is already safely unmounted.
func SafeEject(ctx context.Context, runner CommandRunner, devicePath string, mountPoints []string) error {
	for _, mp := range mountPoints {
		if err := Unmount(ctx, runner, mp); err != nil {
			return err
		}
	}
	if _, err := runner.Run(ctx, "udisksctl", "power-off", "-b", devicePath); err != nil {
		return nil
	}
	return nil
}
