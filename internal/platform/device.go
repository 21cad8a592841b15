package platform

import (
	"context"

	utilexec "k8s.io/utils/exec"
)

// PhysicalDevice represents a whole physical storage device
type PhysicalDevice struct {
	Path      string `json:"path"`
	Size      uint64 `json:"size"`
	Model     string `json:"model"`
	Vendor    string `json:"vendor,omitempty"`
	Transport string `json:"transport,omitempty"`
	Removable bool   `json:"removable"`
}

// Partition represents a partition or volume. Nil pointers mean the value is unknown.
type Partition struct {
	Path        string   `json:"path"`
	Parent      string   `json:"parent,omitempty"`
	Size        uint64   `json:"size"`
	Label       string   `json:"label,omitempty"`
	FSType      *string  `json:"fstype"`
	Mountpoint  *string  `json:"mountpoint"`
	Used        *uint64  `json:"used"`
	Free        *uint64  `json:"free"`
	PercentUsed *float64 `json:"percent_used"`
}

// MountedPartition is one row of the live mount table
type MountedPartition struct {
	Device     string `json:"device"`
	Mountpoint string `json:"mountpoint"`
	FSType     string `json:"fstype"`
	// Parent is the whole-disk identity, when the platform can tell
	Parent string `json:"parent,omitempty"`
}

// Probe enumerates storage devices and partitions. Every call is a fresh scan.
type Probe interface {
	ListPhysicalDevices() ([]PhysicalDevice, error)
	ListPartitions() ([]Partition, error)
}

// MountTable reads the live mount table
type MountTable interface {
	MountedPartitions() ([]MountedPartition, error)
}

// SystemSource reports the devices and mountpoints the running OS depends on
type SystemSource interface {
	SystemDevices() ([]string, error)
	ProtectedMountpoints() []string
	IsRemovable(device string) bool
	// Canonical resolves an identity to the device node it names
	Canonical(id string) (string, error)
}

// DiskUtility performs the mutating operations on a device
type DiskUtility interface {
	// Filesystems lists the filesystems Format accepts on this platform
	Filesystems() []Filesystem
	Format(ctx context.Context, device string, fs Filesystem, label string) error
	// Unmount unmounts every mounted partition of device
	Unmount(ctx context.Context, device string) error
	MountVolume(ctx context.Context, device, dir string) (string, error)
	UnmountPath(ctx context.Context, mountpoint string) error
	// AttachImage mounts an image read-only and returns the mount location
	AttachImage(ctx context.Context, image string) (string, error)
	DetachImage(ctx context.Context, mountpoint string) error
	InstallBootloader(ctx context.Context, device string) error
	OpenRaw(device string) (RawDevice, error)
}

// Host bundles every platform capability
type Host interface {
	Probe
	MountTable
	SystemSource
	DiskUtility
}

// NewHost creates the host implementation for the running OS
func NewHost() Host {
	return newHost(utilexec.New())
}

// NewHostWithExec creates the host implementation with a custom command executor
func NewHostWithExec(exec utilexec.Interface) Host {
	return newHost(exec)
}
