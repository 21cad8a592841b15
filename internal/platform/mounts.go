package platform

import (
	"github.com/shirou/gopsutil/v3/disk"
	log "github.com/sirupsen/logrus"
)

// mountTable reads mounted partitions through gopsutil. parent maps a device to its whole disk.
func mountTable(parent func(string) string) ([]MountedPartition, error) {
	stats, err := disk.Partitions(false)
	if err != nil {
		return nil, probeErr("mount table", err)
	}
	mounts := make([]MountedPartition, 0, len(stats))
	for _, s := range stats {
		if IsPseudoFilesystem(s.Fstype) {
			continue
		}
		mp := MountedPartition{Device: s.Device, Mountpoint: s.Mountpoint, FSType: s.Fstype}
		if parent != nil {
			mp.Parent = parent(s.Device)
		}
		mounts = append(mounts, mp)
	}
	return mounts, nil
}

// mergeMounted appends mounted partitions the inventory service did not report
func mergeMounted(parts []Partition, mounts []MountedPartition) []Partition {
	known := make(map[string]int, len(parts))
	for i, p := range parts {
		known[NormalizeDevice(p.Path)] = i
	}
	for _, m := range mounts {
		if IsVirtualDevice(m.Device) || IsPseudoFilesystem(m.FSType) {
			continue
		}
		if i, ok := known[NormalizeDevice(m.Device)]; ok {
			if parts[i].Mountpoint == nil {
				parts[i].Mountpoint = strPtr(m.Mountpoint)
			}
			continue
		}
		known[NormalizeDevice(m.Device)] = len(parts)
		parts = append(parts, Partition{
			Path:       m.Device,
			Parent:     m.Parent,
			FSType:     strPtr(m.FSType),
			Mountpoint: strPtr(m.Mountpoint),
		})
	}
	return parts
}

// fillUsage measures space usage for every mounted partition
func fillUsage(parts []Partition) {
	for i := range parts {
		p := &parts[i]
		if p.Mountpoint == nil {
			continue
		}
		usage, err := disk.Usage(*p.Mountpoint)
		if err != nil {
			log.WithFields(log.Fields{"partition": p.Path, "mountpoint": *p.Mountpoint}).WithError(err).Debug("Failed to read usage")
			continue
		}
		normalizeUsage(p, usage.Total, usage.Used)
	}
}
