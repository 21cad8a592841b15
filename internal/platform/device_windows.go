//go:build windows
// +build windows

package platform

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/yusufpapurcu/wmi"
	"golang.org/x/sys/windows"
	utilexec "k8s.io/utils/exec"
)

type windowsHost struct {
	runner
}

func newHost(exec utilexec.Interface) Host {
	return &windowsHost{runner: runner{exec: exec}}
}

type win32DiskDrive struct {
	DeviceID      string
	Index         uint32
	Model         string
	Size          uint64
	MediaType     string
	InterfaceType string
}

type win32LogicalDisk struct {
	DeviceID   string
	Size       uint64
	FreeSpace  uint64
	FileSystem string
	VolumeName string
	DriveType  uint32
}

type win32DiskPartition struct {
	DeviceID  string
	DiskIndex uint32
}

const (
	driveRemovable = 2
	driveFixed     = 3
)

func physicalDrive(index uint32) string {
	return fmt.Sprintf(`\\.\PHYSICALDRIVE%d`, index)
}

func (h *windowsHost) ListPhysicalDevices() ([]PhysicalDevice, error) {
	var drives []win32DiskDrive
	if err := wmi.Query(wmi.CreateQuery(&drives, ""), &drives); err != nil {
		return []PhysicalDevice{}, probeErr("Win32_DiskDrive", err)
	}
	devices := []PhysicalDevice{}
	for _, d := range drives {
		if strings.Contains(strings.ToLower(d.Model), "virtual disk") {
			continue
		}
		media := strings.ToLower(d.MediaType)
		devices = append(devices, PhysicalDevice{
			Path:      NormalizeDevice(d.DeviceID),
			Size:      d.Size,
			Model:     strings.TrimSpace(d.Model),
			Transport: d.InterfaceType,
			Removable: strings.Contains(media, "removable") || strings.Contains(media, "external"),
		})
	}
	return devices, nil
}

func (h *windowsHost) logicalDisks() ([]win32LogicalDisk, error) {
	var disks []win32LogicalDisk
	q := wmi.CreateQuery(&disks, fmt.Sprintf("WHERE DriveType = %d OR DriveType = %d", driveRemovable, driveFixed))
	if err := wmi.Query(q, &disks); err != nil {
		return nil, probeErr("Win32_LogicalDisk", err)
	}
	return disks, nil
}

// driveOf maps a drive letter to the physical drive holding it
func (h *windowsHost) driveOf(letter string) string {
	var parts []win32DiskPartition
	q := fmt.Sprintf("ASSOCIATORS OF {Win32_LogicalDisk.DeviceID='%s'} WHERE AssocClass=Win32_LogicalDiskToPartition", NormalizeDevice(letter))
	if err := wmi.Query(q, &parts); err != nil || len(parts) == 0 {
		return ""
	}
	return physicalDrive(parts[0].DiskIndex)
}

func (h *windowsHost) ListPartitions() ([]Partition, error) {
	disks, err := h.logicalDisks()
	if err != nil {
		return []Partition{}, err
	}
	parts := []Partition{}
	for _, d := range disks {
		if d.FileSystem == "" && d.Size == 0 {
			continue
		}
		mountpoint := d.DeviceID + `\`
		p := Partition{
			Path:       d.DeviceID,
			Parent:     h.driveOf(d.DeviceID),
			Size:       d.Size,
			Label:      d.VolumeName,
			FSType:     strPtr(d.FileSystem),
			Mountpoint: &mountpoint,
		}
		if d.Size > 0 {
			normalizeUsage(&p, d.Size, d.Size-d.FreeSpace)
		}
		parts = append(parts, p)
	}
	return parts, nil
}

func (h *windowsHost) MountedPartitions() ([]MountedPartition, error) {
	return mountTable(h.driveOf)
}

func systemDrive() string {
	if d := os.Getenv("SystemDrive"); d != "" {
		return NormalizeDevice(d)
	}
	return "C:"
}

// SystemDevices returns the system drive letter, any letter holding a Windows directory and their physical drives
func (h *windowsHost) SystemDevices() ([]string, error) {
	disks, err := h.logicalDisks()
	if err != nil {
		return nil, err
	}
	letters := []string{systemDrive()}
	for _, d := range disks {
		if d.DeviceID == letters[0] {
			continue
		}
		if info, err := os.Stat(filepath.Join(d.DeviceID+`\`, "Windows")); err == nil && info.IsDir() {
			letters = append(letters, d.DeviceID)
		}
	}
	devices := append([]string{}, letters...)
	for _, l := range letters {
		if drive := h.driveOf(l); drive != "" {
			devices = append(devices, drive)
		}
	}
	return devices, nil
}

func (h *windowsHost) ProtectedMountpoints() []string {
	sys := systemDrive()
	return []string{sys + `\`, sys + `\Windows`, sys + `\Program Files`}
}

func (h *windowsHost) Canonical(id string) (string, error) {
	return CanonicalDevice(id)
}

func (h *windowsHost) IsRemovable(device string) bool {
	devices, err := h.ListPhysicalDevices()
	if err != nil {
		return false
	}
	target := NormalizeDevice(device)
	if !strings.HasPrefix(target, `\\.\`) {
		target = h.driveOf(target)
	}
	for _, d := range devices {
		if d.Path == target {
			return d.Removable
		}
	}
	return false
}

func (h *windowsHost) Filesystems() []Filesystem {
	return []Filesystem{FSNTFS, FSFAT32, FSExFAT}
}

var windowsFSName = map[Filesystem]string{
	FSNTFS:  "NTFS",
	FSFAT32: "FAT32",
	FSExFAT: "exFAT",
}

// Format formats a drive letter with format.com, or a whole physical drive through diskpart
func (h *windowsHost) Format(ctx context.Context, device string, fs Filesystem, label string) error {
	name, ok := windowsFSName[fs]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedFilesystem, fs)
	}
	target := NormalizeDevice(device)
	if !strings.HasPrefix(target, `\\.\PHYSICALDRIVE`) {
		args := []string{target, "/FS:" + name, "/Q", "/Y"}
		if label != "" {
			args = append(args, "/V:"+label)
		}
		return h.run(ctx, "format", args...)
	}
	index := strings.TrimPrefix(target, `\\.\PHYSICALDRIVE`)
	script := fmt.Sprintf("select disk %s\nclean\ncreate partition primary\nformat fs=%s quick label=%q\nassign\nexit\n",
		index, strings.ToLower(name), label)
	return h.runWithInput(ctx, strings.NewReader(script), "diskpart")
}

func (h *windowsHost) Unmount(ctx context.Context, device string) error {
	log.WithField("device", device).Debug("Volumes are locked and dismounted when the drive is opened for writing, nothing to unmount")
	return &UnmountError{Mountpoint: device, Err: ErrNotSupported}
}

// MountVolume returns the drive letter Windows assigned to the first volume of device
func (h *windowsHost) MountVolume(ctx context.Context, device, dir string) (string, error) {
	target := NormalizeDevice(device)
	if !strings.HasPrefix(target, `\\.\`) {
		return target + `\`, nil
	}
	disks, err := h.logicalDisks()
	if err != nil {
		return "", err
	}
	for _, d := range disks {
		if h.driveOf(d.DeviceID) == target {
			return d.DeviceID + `\`, nil
		}
	}
	return "", fmt.Errorf("no drive letter assigned to %s", target)
}

func (h *windowsHost) UnmountPath(ctx context.Context, mountpoint string) error {
	return nil
}

func (h *windowsHost) AttachImage(ctx context.Context, image string) (string, error) {
	script := fmt.Sprintf("(Mount-DiskImage -ImagePath '%s' -PassThru | Get-Volume).DriveLetter", image)
	out, err := h.output(ctx, "powershell", "-NoProfile", "-Command", script)
	if err != nil {
		return "", err
	}
	letter := strings.TrimSpace(string(out))
	if letter == "" {
		return "", ErrNotSupported
	}
	return letter + `:\`, nil
}

func (h *windowsHost) DetachImage(ctx context.Context, mountpoint string) error {
	letter := strings.TrimSuffix(NormalizeDevice(mountpoint), ":")
	script := fmt.Sprintf("Get-Volume -DriveLetter %s | Get-DiskImage | Dismount-DiskImage", letter)
	return h.run(ctx, "powershell", "-NoProfile", "-Command", script)
}

func (h *windowsHost) InstallBootloader(ctx context.Context, device string) error {
	return nil
}

const (
	fsctlLockVolume     = 0x90018
	fsctlDismountVolume = 0x90020
)

// lockedDrive keeps the volumes of a physical drive locked until the drive is closed
type lockedDrive struct {
	RawDevice
	volumes []windows.Handle
}

func (d *lockedDrive) Close() error {
	err := d.RawDevice.Close()
	// closing a volume handle releases its lock
	releaseVolumes(d.volumes)
	return err
}

func releaseVolumes(volumes []windows.Handle) {
	for _, v := range volumes {
		windows.CloseHandle(v)
	}
}

// lockVolume takes exclusive access to a drive letter and dismounts its filesystem
func lockVolume(letter string) (windows.Handle, error) {
	name, err := windows.UTF16PtrFromString(`\\.\` + NormalizeDevice(letter))
	if err != nil {
		return windows.InvalidHandle, err
	}
	v, err := windows.CreateFile(name, windows.GENERIC_READ|windows.GENERIC_WRITE,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE, nil, windows.OPEN_EXISTING, 0, 0)
	if err != nil {
		return windows.InvalidHandle, err
	}
	var returned uint32
	for _, code := range []uint32{fsctlLockVolume, fsctlDismountVolume} {
		if err := windows.DeviceIoControl(v, code, nil, 0, nil, 0, &returned, nil); err != nil {
			windows.CloseHandle(v)
			return windows.InvalidHandle, err
		}
	}
	return v, nil
}

// OpenRaw opens a physical drive after locking and dismounting every volume on it,
// since Windows rejects writes to sectors owned by a mounted volume. Other paths open as files.
func (h *windowsHost) OpenRaw(device string) (RawDevice, error) {
	target := NormalizeDevice(device)
	if !strings.HasPrefix(target, `\\.\PHYSICALDRIVE`) {
		return OpenRawFile(device)
	}
	disks, err := h.logicalDisks()
	if err != nil {
		return nil, err
	}

	var volumes []windows.Handle
	for _, d := range disks {
		if h.driveOf(d.DeviceID) != target {
			continue
		}
		v, err := lockVolume(d.DeviceID)
		if err != nil {
			releaseVolumes(volumes)
			return nil, fmt.Errorf("failed to lock volume %s on %s: %w", d.DeviceID, target, err)
		}
		log.WithFields(log.Fields{"volume": d.DeviceID, "device": target}).Debug("Volume locked and dismounted")
		volumes = append(volumes, v)
	}

	raw, err := OpenRawFile(device)
	if err != nil {
		releaseVolumes(volumes)
		return nil, err
	}
	return &lockedDrive{RawDevice: raw, volumes: volumes}, nil
}
