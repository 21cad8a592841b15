//go:build !linux && !darwin && !windows

package platform

import (
	"context"

	utilexec "k8s.io/utils/exec"
)

// unsupportedHost answers every inventory query with an error, which the classifier treats as unsafe
type unsupportedHost struct{}

func newHost(utilexec.Interface) Host { return unsupportedHost{} }

func (unsupportedHost) ListPhysicalDevices() ([]PhysicalDevice, error) {
	return []PhysicalDevice{}, probeErr("devices", ErrNotSupported)
}

func (unsupportedHost) ListPartitions() ([]Partition, error) {
	return []Partition{}, probeErr("partitions", ErrNotSupported)
}

func (unsupportedHost) MountedPartitions() ([]MountedPartition, error) {
	return mountTable(ParentByName)
}

func (unsupportedHost) SystemDevices() ([]string, error) {
	return nil, probeErr("system devices", ErrNotSupported)
}

func (unsupportedHost) ProtectedMountpoints() []string {
	return []string{"/", "/boot", "/usr", "/var", "/etc", "/bin", "/sbin"}
}

func (unsupportedHost) IsRemovable(string) bool { return false }

func (unsupportedHost) Canonical(id string) (string, error) { return CanonicalDevice(id) }

func (unsupportedHost) Filesystems() []Filesystem { return nil }

func (unsupportedHost) Format(context.Context, string, Filesystem, string) error {
	return ErrNotSupported
}

func (unsupportedHost) Unmount(context.Context, string) error { return ErrNotSupported }

func (unsupportedHost) MountVolume(context.Context, string, string) (string, error) {
	return "", ErrNotSupported
}

func (unsupportedHost) UnmountPath(context.Context, string) error { return ErrNotSupported }

func (unsupportedHost) AttachImage(context.Context, string) (string, error) {
	return "", ErrNotSupported
}

func (unsupportedHost) DetachImage(context.Context, string) error { return ErrNotSupported }

func (unsupportedHost) InstallBootloader(context.Context, string) error { return nil }

func (unsupportedHost) OpenRaw(device string) (RawDevice, error) { return OpenRawFile(device) }
