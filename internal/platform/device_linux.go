//go:build linux
// +build linux

package platform

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"k8s.io/mount-utils"
	utilexec "k8s.io/utils/exec"
)

type linuxHost struct {
	runner
	sys     sysfs
	mounter mount.Interface
}

func newHost(exec utilexec.Interface) Host {
	return &linuxHost{
		runner:  runner{exec: exec},
		sys:     sysfs{root: "/"},
		mounter: mount.New(""),
	}
}

func (h *linuxHost) lsblk() ([]lsblkNode, []lsblkNode, error) {
	out, err := h.output(context.Background(), "lsblk", "-J", "-b", "-o", lsblkColumns)
	if err != nil {
		return nil, nil, probeErr("lsblk", err)
	}
	disks, parts, err := parseLsblk(out)
	if err != nil {
		return nil, nil, probeErr("lsblk", err)
	}
	return disks, parts, nil
}

func (h *linuxHost) ListPhysicalDevices() ([]PhysicalDevice, error) {
	disks, _, err := h.lsblk()
	if err != nil {
		return []PhysicalDevice{}, err
	}

	devices := []PhysicalDevice{}
	for _, d := range disks {
		if IsVirtualDevice(d.Path) {
			continue
		}
		dev := d.device()
		// the kernel flag is authoritative when lsblk omits RM
		dev.Removable = dev.Removable || h.sys.removable(d.Path)
		if dev.Model == "" {
			dev.Model = h.sys.readAttr("sys", "block", filepath.Base(d.Path), "device", "model")
		}
		devices = append(devices, dev)
	}
	return devices, nil
}

func (h *linuxHost) ListPartitions() ([]Partition, error) {
	_, nodes, err := h.lsblk()
	if err != nil {
		return []Partition{}, err
	}

	parts := []Partition{}
	for _, n := range nodes {
		if IsVirtualDevice(n.Path) || IsVirtualDevice(n.Parent) || IsPseudoFilesystem(n.FSType) {
			continue
		}
		parts = append(parts, n.partition())
	}

	if mounts, err := h.MountedPartitions(); err == nil {
		parts = mergeMounted(parts, mounts)
	} else {
		log.WithError(err).Warn("Failed to read mount table, partition list may be incomplete")
	}
	fillUsage(parts)
	return parts, nil
}

func (h *linuxHost) MountedPartitions() ([]MountedPartition, error) {
	mps, err := h.mounter.List()
	if err != nil {
		return mountTable(h.sys.parent)
	}
	mounts := []MountedPartition{}
	for _, mp := range mps {
		if !strings.HasPrefix(mp.Device, "/dev/") || IsPseudoFilesystem(mp.Type) {
			continue
		}
		mounts = append(mounts, MountedPartition{
			Device:     mp.Device,
			Mountpoint: mp.Path,
			FSType:     mp.Type,
			Parent:     h.sys.parent(mp.Device),
		})
	}
	return mounts, nil
}

// SystemDevices returns the devices backing /, /boot and the EFI partition, plus their disks.
// Stacked devices (LVM, LUKS, md) are followed down to the physical disks.
func (h *linuxHost) SystemDevices() ([]string, error) {
	mounts, err := h.MountedPartitions()
	if err != nil {
		return nil, err
	}
	var devices []string
	addOne := func(dev string) {
		devices = append(devices, dev)
		if parent := h.sys.parent(dev); parent != dev {
			devices = append(devices, parent)
		}
	}
	add := func(dev string) {
		if dev == "" {
			return
		}
		addOne(dev)
		for _, lower := range h.sys.backing(dev) {
			addOne(lower)
		}
	}
	for _, m := range mounts {
		if isBootMountpoint(m.Mountpoint) {
			add(m.Device)
		}
	}
	add(h.sys.kernelRoot())
	return devices, nil
}

func isBootMountpoint(mp string) bool {
	return mp == "/" || mp == "/boot" || strings.HasPrefix(mp, "/boot/") || mp == "/efi" || strings.HasPrefix(mp, "/efi/")
}

func (h *linuxHost) ProtectedMountpoints() []string {
	return []string{"/", "/boot", "/boot/efi", "/efi", "/usr", "/var", "/etc", "/bin", "/sbin"}
}

func (h *linuxHost) IsRemovable(device string) bool {
	return h.sys.removable(device) || h.sys.removable(h.sys.parent(device))
}

func (h *linuxHost) Canonical(id string) (string, error) {
	return CanonicalDevice(id)
}

func (h *linuxHost) Filesystems() []Filesystem {
	return []Filesystem{FSExt4, FSFAT32, FSNTFS, FSExFAT}
}

func (h *linuxHost) Format(ctx context.Context, device string, fs Filesystem, label string) error {
	var args []string
	var tool string
	switch fs {
	case FSExt4:
		tool, args = "mkfs.ext4", []string{"-F"}
		if label != "" {
			args = append(args, "-L", label)
		}
	case FSFAT32:
		tool, args = "mkfs.vfat", []string{"-F", "32", "-I"}
		if label != "" {
			args = append(args, "-n", strings.ToUpper(label))
		}
	case FSNTFS:
		tool, args = "mkfs.ntfs", []string{"-f"}
		if label != "" {
			args = append(args, "-L", label)
		}
	case FSExFAT:
		tool = "mkfs.exfat"
		if label != "" {
			args = append(args, "-n", label)
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFilesystem, fs)
	}
	return h.run(ctx, tool, append(args, device)...)
}

// Unmount unmounts every mounted partition of device. All are attempted; the first failure is returned.
func (h *linuxHost) Unmount(ctx context.Context, device string) error {
	mounts, err := h.MountedPartitions()
	if err != nil {
		return err
	}
	var first error
	for _, m := range mounts {
		if !Related(m.Device, device) && m.Parent != device {
			continue
		}
		if err := h.mounter.Unmount(m.Mountpoint); err != nil {
			log.WithFields(log.Fields{"device": m.Device, "mountpoint": m.Mountpoint}).WithError(err).Warn("Failed to unmount partition")
			if first == nil {
				first = &UnmountError{Mountpoint: m.Mountpoint, Err: err}
			}
			continue
		}
		log.WithFields(log.Fields{"device": m.Device, "mountpoint": m.Mountpoint}).Info("Unmounted partition")
	}
	return first
}

func (h *linuxHost) MountVolume(ctx context.Context, device, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	if err := h.mounter.Mount(device, dir, "", nil); err != nil {
		return "", fmt.Errorf("mount %s: %w", device, err)
	}
	return dir, nil
}

func (h *linuxHost) UnmountPath(ctx context.Context, mountpoint string) error {
	if err := h.mounter.Unmount(mountpoint); err != nil {
		return &UnmountError{Mountpoint: mountpoint, Err: err}
	}
	return nil
}

func (h *linuxHost) AttachImage(ctx context.Context, image string) (string, error) {
	dir, err := os.MkdirTemp("", "diskforge-src-")
	if err != nil {
		return "", err
	}
	if err := h.mounter.Mount(image, dir, "", []string{"loop", "ro"}); err != nil {
		os.Remove(dir)
		return "", fmt.Errorf("attach %s: %w", image, err)
	}
	return dir, nil
}

func (h *linuxHost) DetachImage(ctx context.Context, mountpoint string) error {
	err := h.mounter.Unmount(mountpoint)
	os.Remove(mountpoint)
	return err
}

// InstallBootloader runs syslinux when it is installed; absence is not an error
func (h *linuxHost) InstallBootloader(ctx context.Context, device string) error {
	if !h.available("syslinux") {
		log.WithField("device", device).Debug("syslinux not found, skipping bootloader install")
		return nil
	}
	return h.run(ctx, "syslinux", "-i", device)
}

func (h *linuxHost) OpenRaw(device string) (RawDevice, error) {
	return OpenRawFile(device)
}
