//go:build darwin
// +build darwin

package platform

import (
	"context"
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	utilexec "k8s.io/utils/exec"
)

type macHost struct {
	runner
}

func newHost(exec utilexec.Interface) Host {
	return &macHost{runner: runner{exec: exec}}
}

func (h *macHost) info(ctx context.Context, target string) (*diskutilInfo, error) {
	out, err := h.output(ctx, "diskutil", "info", "-plist", target)
	if err != nil {
		return nil, err
	}
	return parseDiskutilInfo(out)
}

func (h *macHost) ListPhysicalDevices() ([]PhysicalDevice, error) {
	out, err := h.output(context.Background(), "diskutil", "list", "-plist", "physical")
	if err != nil {
		return []PhysicalDevice{}, probeErr("diskutil list", err)
	}
	list, err := parseDiskutilList(out)
	if err != nil {
		return []PhysicalDevice{}, probeErr("diskutil list", err)
	}

	// diskutil info is slow per disk; query them concurrently
	infos := make([]*diskutilInfo, len(list.WholeDisks))
	g, ctx := errgroup.WithContext(context.Background())
	for i, id := range list.WholeDisks {
		i, id := i, id
		g.Go(func() error {
			info, err := h.info(ctx, id)
			if err != nil {
				return err
			}
			infos[i] = info
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return []PhysicalDevice{}, probeErr("diskutil info", err)
	}

	devices := []PhysicalDevice{}
	for _, info := range infos {
		if info.virtual() {
			continue
		}
		devices = append(devices, info.device())
	}
	return devices, nil
}

func (h *macHost) ListPartitions() ([]Partition, error) {
	out, err := h.output(context.Background(), "diskutil", "list", "-plist")
	if err != nil {
		return []Partition{}, probeErr("diskutil list", err)
	}
	list, err := parseDiskutilList(out)
	if err != nil {
		return []Partition{}, probeErr("diskutil list", err)
	}
	parts := list.partitions()
	if mounts, err := h.MountedPartitions(); err == nil {
		parts = mergeMounted(parts, mounts)
	}
	fillUsage(parts)
	return parts, nil
}

func (h *macHost) MountedPartitions() ([]MountedPartition, error) {
	return mountTable(ParentByName)
}

// SystemDevices returns the APFS volume mounted at /, its synthesized container and the
// physical disk holding the container
func (h *macHost) SystemDevices() ([]string, error) {
	info, err := h.info(context.Background(), "/")
	if err != nil {
		return nil, probeErr("diskutil info /", err)
	}
	devices := info.systemDevices()
	if info.ParentWholeDisk == "" || len(info.APFSPhysicalStores) > 0 {
		return devices, nil
	}
	// the volume's info omits the stores on some releases; the container's info has them
	container, err := h.info(context.Background(), info.ParentWholeDisk)
	if err != nil {
		return nil, probeErr("diskutil info "+info.ParentWholeDisk, err)
	}
	for _, d := range container.systemDevices() {
		if d != container.DeviceNode {
			devices = append(devices, d)
		}
	}
	return devices, nil
}

func (h *macHost) ProtectedMountpoints() []string {
	return []string{"/", "/System/Volumes/Data", "/System/Volumes/Preboot", "/System/Volumes/VM", "/usr", "/var", "/etc", "/bin", "/sbin"}
}

func (h *macHost) Canonical(id string) (string, error) {
	return CanonicalDevice(id)
}

func (h *macHost) IsRemovable(device string) bool {
	info, err := h.info(context.Background(), device)
	if err != nil {
		return false
	}
	return info.removable()
}

func (h *macHost) Filesystems() []Filesystem {
	return []Filesystem{FSAPFS, FSHFS, FSFAT32, FSExFAT}
}

var diskutilPersonality = map[Filesystem]string{
	FSAPFS:  "APFS",
	FSHFS:   "JHFS+",
	FSFAT32: "MS-DOS FAT32",
	FSExFAT: "ExFAT",
}

func (h *macHost) Format(ctx context.Context, device string, fs Filesystem, label string) error {
	personality, ok := diskutilPersonality[fs]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedFilesystem, fs)
	}
	if label == "" {
		label = "Untitled"
	}
	if fs == FSFAT32 {
		label = strings.ToUpper(label)
	}
	id := strings.TrimPrefix(NormalizeDevice(device), "/dev/")
	if ParentByName(device) == device {
		return h.run(ctx, "diskutil", "eraseDisk", personality, label, "MBR", id)
	}
	return h.run(ctx, "diskutil", "eraseVolume", personality, label, id)
}

func (h *macHost) Unmount(ctx context.Context, device string) error {
	if err := h.run(ctx, "diskutil", "unmountDisk", NormalizeDevice(device)); err != nil {
		return &UnmountError{Mountpoint: device, Err: err}
	}
	return nil
}

// MountVolume mounts the first volume of device; macOS picks the mountpoint itself
func (h *macHost) MountVolume(ctx context.Context, device, dir string) (string, error) {
	target := NormalizeDevice(device)
	if ParentByName(target) == target {
		target += "s1"
	}
	if err := h.run(ctx, "diskutil", "mount", target); err != nil {
		return "", err
	}
	info, err := h.info(ctx, target)
	if err != nil {
		return "", err
	}
	if info.MountPoint == "" {
		return "", fmt.Errorf("%s mounted without a mountpoint", target)
	}
	return info.MountPoint, nil
}

func (h *macHost) UnmountPath(ctx context.Context, mountpoint string) error {
	if err := h.run(ctx, "diskutil", "unmount", mountpoint); err != nil {
		return &UnmountError{Mountpoint: mountpoint, Err: err}
	}
	return nil
}

func (h *macHost) AttachImage(ctx context.Context, image string) (string, error) {
	out, err := h.output(ctx, "hdiutil", "attach", "-nobrowse", "-readonly", "-plist", image)
	if err != nil {
		return "", err
	}
	return parseHdiutilAttach(out)
}

func (h *macHost) DetachImage(ctx context.Context, mountpoint string) error {
	return h.run(ctx, "hdiutil", "detach", mountpoint)
}

func (h *macHost) InstallBootloader(ctx context.Context, device string) error {
	return nil
}

// OpenRaw prefers the unbuffered /dev/rdiskN node
func (h *macHost) OpenRaw(device string) (RawDevice, error) {
	if strings.HasPrefix(device, "/dev/disk") {
		raw := "/dev/r" + strings.TrimPrefix(device, "/dev/")
		if _, err := os.Stat(raw); err == nil {
			log.WithFields(log.Fields{"device": device, "raw": raw}).Debug("Using raw device node")
			return OpenRawFile(raw)
		}
	}
	return OpenRawFile(device)
}
