package platform

import (
	"strings"

	"howett.net/plist"
)

type diskutilPartition struct {
	DeviceIdentifier string `plist:"DeviceIdentifier"`
	Size             uint64 `plist:"Size"`
	Content          string `plist:"Content"`
	VolumeName       string `plist:"VolumeName"`
	MountPoint       string `plist:"MountPoint"`
}

type diskutilDisk struct {
	DeviceIdentifier string              `plist:"DeviceIdentifier"`
	Size             uint64              `plist:"Size"`
	Content          string              `plist:"Content"`
	Partitions       []diskutilPartition `plist:"Partitions"`
	APFSVolumes      []diskutilPartition `plist:"APFSVolumes"`
}

type diskutilList struct {
	AllDisksAndPartitions []diskutilDisk `plist:"AllDisksAndPartitions"`
	WholeDisks            []string       `plist:"WholeDisks"`
}

// diskutilInfo is the subset of `diskutil info -plist` used here
type diskutilInfo struct {
	DeviceIdentifier  string `plist:"DeviceIdentifier"`
	DeviceNode        string `plist:"DeviceNode"`
	ParentWholeDisk   string `plist:"ParentWholeDisk"`
	DeviceModel       string `plist:"DeviceModel"`
	MediaName         string `plist:"MediaName"`
	BusProtocol       string `plist:"BusProtocol"`
	VirtualOrPhysical string `plist:"VirtualOrPhysical"`
	OpticalDeviceType string `plist:"OpticalDeviceType"`
	TotalSize         uint64 `plist:"TotalSize"`
	Size              uint64 `plist:"Size"`
	Ejectable         bool   `plist:"Ejectable"`
	RemovableMedia    bool   `plist:"RemovableMedia"`
	External          bool   `plist:"External"`
	MountPoint        string `plist:"MountPoint"`
	FilesystemType    string `plist:"FilesystemType"`
	VolumeName        string `plist:"VolumeName"`

	// APFSPhysicalStores names the partitions backing an APFS container, e.g. disk0s2
	APFSPhysicalStores []struct {
		APFSPhysicalStore string `plist:"APFSPhysicalStore"`
	} `plist:"APFSPhysicalStores"`
}

// hdiutilAttach is the subset of `hdiutil attach -plist` used here
type hdiutilAttach struct {
	SystemEntities []struct {
		DevEntry   string `plist:"dev-entry"`
		MountPoint string `plist:"mount-point"`
	} `plist:"system-entities"`
}

var skippedContent = map[string]bool{
	"Apple_APFS_Recovery": true,
	"EFI":                 true,
	"Apple_Boot":          true,
}

func parseDiskutilList(out []byte) (*diskutilList, error) {
	var list diskutilList
	if _, err := plist.Unmarshal(out, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func parseDiskutilInfo(out []byte) (*diskutilInfo, error) {
	var info diskutilInfo
	if _, err := plist.Unmarshal(out, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func parseHdiutilAttach(out []byte) (string, error) {
	var attach hdiutilAttach
	if _, err := plist.Unmarshal(out, &attach); err != nil {
		return "", err
	}
	for _, e := range attach.SystemEntities {
		if e.MountPoint != "" {
			return e.MountPoint, nil
		}
	}
	return "", ErrNotSupported
}

// systemDevices lists the volume, its container disk and the physical stores with their disks
func (i *diskutilInfo) systemDevices() []string {
	devices := []string{i.DeviceNode}
	if i.ParentWholeDisk != "" {
		devices = append(devices, "/dev/"+i.ParentWholeDisk)
	} else if parent := ParentByName(i.DeviceNode); parent != i.DeviceNode {
		devices = append(devices, parent)
	}
	for _, store := range i.APFSPhysicalStores {
		if store.APFSPhysicalStore == "" {
			continue
		}
		node := "/dev/" + store.APFSPhysicalStore
		devices = append(devices, node)
		if parent := ParentByName(node); parent != node {
			devices = append(devices, parent)
		}
	}
	return devices
}

func (i *diskutilInfo) removable() bool {
	return i.Ejectable || i.RemovableMedia || i.External
}

// virtual reports disk images, optical media and synthesized APFS containers
func (i *diskutilInfo) virtual() bool {
	return strings.EqualFold(i.VirtualOrPhysical, "Virtual") ||
		strings.EqualFold(i.BusProtocol, "Disk Image") ||
		i.OpticalDeviceType != ""
}

func (i *diskutilInfo) device() PhysicalDevice {
	size := i.TotalSize
	if size == 0 {
		size = i.Size
	}
	model := strings.TrimSpace(i.DeviceModel)
	if model == "" {
		model = strings.TrimSpace(i.MediaName)
	}
	return PhysicalDevice{
		Path:      "/dev/" + i.DeviceIdentifier,
		Size:      size,
		Model:     model,
		Transport: i.BusProtocol,
		Removable: i.removable(),
	}
}

// partitions flattens a diskutil list into partitions, skipping system containers
func (l *diskutilList) partitions() []Partition {
	parts := []Partition{}
	for _, d := range l.AllDisksAndPartitions {
		parent := "/dev/" + d.DeviceIdentifier
		for _, p := range append(append([]diskutilPartition{}, d.Partitions...), d.APFSVolumes...) {
			// APFS volumes carry no content type; keep them only when mounted
			if skippedContent[p.Content] || (p.Content == "" && p.MountPoint == "") {
				continue
			}
			parts = append(parts, Partition{
				Path:       "/dev/" + p.DeviceIdentifier,
				Parent:     parent,
				Size:       p.Size,
				Label:      p.VolumeName,
				FSType:     strPtr(p.Content),
				Mountpoint: strPtr(p.MountPoint),
			})
		}
	}
	return parts
}
