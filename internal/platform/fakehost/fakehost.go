// Package fakehost provides an in-memory platform.Host for tests.
package fakehost

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/utkarshgautam22/DiskForge/internal/platform"
)

// FormatCall records one Format invocation
type FormatCall struct {
	Device     string
	Filesystem platform.Filesystem
	Label      string
}

// Host is a scripted platform.Host. Zero values describe an empty machine.
type Host struct {
	mu sync.Mutex

	Devices    []platform.PhysicalDevice
	Partitions []platform.Partition
	Mounts     []platform.MountedPartition
	System     []string
	Protected  []string
	Removable  map[string]bool
	FS         []platform.Filesystem

	// ProbeErr fails every inventory and mount table query
	ProbeErr   error
	FormatErr  error
	UnmountErr error
	// AttachDir is returned by AttachImage; empty means attaching is unsupported
	AttachDir string
	// Missing lists /dev paths that Canonical refuses to resolve
	Missing []string

	formats  []FormatCall
	unmounts []string
	mounted  []string
}

var _ platform.Host = (*Host)(nil)

// New returns a Linux-like host with the usual protected mountpoints and filesystems
func New() *Host {
	return &Host{
		Protected: []string{"/", "/boot", "/boot/efi", "/efi", "/usr", "/var", "/etc", "/bin", "/sbin"},
		Removable: map[string]bool{},
		FS:        []platform.Filesystem{platform.FSExt4, platform.FSFAT32, platform.FSNTFS, platform.FSExFAT},
	}
}

func (h *Host) ListPhysicalDevices() ([]platform.PhysicalDevice, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ProbeErr != nil {
		return []platform.PhysicalDevice{}, &platform.ProbeError{Op: "devices", Err: h.ProbeErr}
	}
	return append([]platform.PhysicalDevice{}, h.Devices...), nil
}

func (h *Host) ListPartitions() ([]platform.Partition, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ProbeErr != nil {
		return []platform.Partition{}, &platform.ProbeError{Op: "partitions", Err: h.ProbeErr}
	}
	return append([]platform.Partition{}, h.Partitions...), nil
}

func (h *Host) MountedPartitions() ([]platform.MountedPartition, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ProbeErr != nil {
		return nil, &platform.ProbeError{Op: "mount table", Err: h.ProbeErr}
	}
	return append([]platform.MountedPartition{}, h.Mounts...), nil
}

func (h *Host) SystemDevices() ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ProbeErr != nil {
		return nil, &platform.ProbeError{Op: "system devices", Err: h.ProbeErr}
	}
	return append([]string{}, h.System...), nil
}

func (h *Host) ProtectedMountpoints() []string {
	return append([]string{}, h.Protected...)
}

func (h *Host) IsRemovable(device string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.Removable[device]
}

// Canonical resolves real files and symlinks like the OS hosts do. Fixture devices do not
// exist on the test machine, so any absolute path that ends up under /dev/ is accepted as is.
func (h *Host) Canonical(id string) (string, error) {
	p := strings.TrimSpace(id)
	if h.isMissing(p) {
		return "", fmt.Errorf("%w: %s", platform.ErrUnresolvedDevice, id)
	}
	if real, err := platform.CanonicalDevice(p); err == nil {
		return real, nil
	}
	if !filepath.IsAbs(p) {
		return "", fmt.Errorf("%w: %s", platform.ErrUnresolvedDevice, id)
	}
	for i := 0; i < 8; i++ {
		target, err := os.Readlink(p)
		if err != nil {
			break
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(p), target)
		}
		p = filepath.Clean(target)
	}
	if !strings.HasPrefix(p, "/dev/") || h.isMissing(p) {
		return "", fmt.Errorf("%w: %s", platform.ErrUnresolvedDevice, id)
	}
	return platform.NormalizeDevice(p), nil
}

func (h *Host) isMissing(p string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, m := range h.Missing {
		if m == p {
			return true
		}
	}
	return false
}

func (h *Host) Filesystems() []platform.Filesystem {
	return h.FS
}

func (h *Host) Format(ctx context.Context, device string, fs platform.Filesystem, label string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.formats = append(h.formats, FormatCall{Device: device, Filesystem: fs, Label: label})
	return h.FormatErr
}

func (h *Host) Unmount(ctx context.Context, device string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unmounts = append(h.unmounts, device)
	return h.UnmountErr
}

// MountVolume creates dir and pretends device is mounted there
func (h *Host) MountVolume(ctx context.Context, device, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.mounted = append(h.mounted, dir)
	return dir, nil
}

func (h *Host) UnmountPath(ctx context.Context, mountpoint string) error {
	return nil
}

func (h *Host) AttachImage(ctx context.Context, image string) (string, error) {
	if h.AttachDir == "" {
		return "", platform.ErrNotSupported
	}
	return h.AttachDir, nil
}

func (h *Host) DetachImage(ctx context.Context, mountpoint string) error {
	return nil
}

func (h *Host) InstallBootloader(ctx context.Context, device string) error {
	return nil
}

// OpenRaw opens device as a regular file
func (h *Host) OpenRaw(device string) (platform.RawDevice, error) {
	return platform.OpenRawFile(device)
}

// Formats returns the recorded Format calls
func (h *Host) Formats() []FormatCall {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]FormatCall{}, h.formats...)
}

// Unmounts returns the devices Unmount was called with
func (h *Host) Unmounts() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string{}, h.unmounts...)
}

// Mounted returns the directories MountVolume handed out
func (h *Host) Mounted() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string{}, h.mounted...)
}
