package platform

import (
	"path/filepath"
	"strings"
)

var pseudoFilesystems = map[string]bool{
	"tmpfs": true, "devtmpfs": true, "devfs": true, "overlay": true,
	"squashfs": true, "proc": true, "sysfs": true, "cgroup": true,
	"cgroup2": true, "debugfs": true, "pstore": true, "bpf": true,
	"tracefs": true, "securityfs": true, "ramfs": true, "devpts": true,
	"efivarfs": true, "autofs": true, "hugetlbfs": true, "mqueue": true,
	"fusectl": true, "configfs": true, "binfmt_misc": true, "nsfs": true,
	"fuse.portal": true, "fuse.gvfsd-fuse": true, "none": true, "nullfs": true,
}

var virtualDevicePrefixes = []string{"loop", "ram", "zram", "dm-", "sr", "nbd"}

// IsPseudoFilesystem reports whether fstype is a kernel or memory backed filesystem
func IsPseudoFilesystem(fstype string) bool {
	return pseudoFilesystems[strings.ToLower(fstype)]
}

// IsVirtualDevice reports whether a device path names a loop, RAM, mapper or optical device
func IsVirtualDevice(path string) bool {
	if strings.HasPrefix(path, "/dev/mapper/") {
		return true
	}
	name := filepath.Base(path)
	for _, prefix := range virtualDevicePrefixes {
		if strings.HasPrefix(name, prefix) {
			// optical drives are sr0, sr1, ...
			rest := name[len(prefix):]
			if prefix == "sr" && (rest == "" || !isDigits(rest[:1])) {
				continue
			}
			return true
		}
	}
	return false
}

// IsPartitionOf reports whether part names a partition of disk, e.g. sda1 of sda,
// nvme0n1p2 of nvme0n1 or disk2s1 of disk2.
func IsPartitionOf(part, disk string) bool {
	part, disk = NormalizeDevice(part), NormalizeDevice(disk)
	if part == disk || !strings.HasPrefix(part, disk) {
		return false
	}
	suffix := part[len(disk):]
	if isDigits(suffix) {
		// nvme0n1 is not a partition of nvme0n
		return !endsWithDigit(disk)
	}
	if len(suffix) > 1 && (suffix[0] == 'p' || suffix[0] == 's') {
		return isDigits(suffix[1:])
	}
	return false
}

// Related reports whether a and b are the same device or one is a partition of the other
func Related(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if NormalizeDevice(a) == NormalizeDevice(b) {
		return true
	}
	return IsPartitionOf(a, b) || IsPartitionOf(b, a)
}

// NormalizeDevice folds platform aliases of the same device onto one identity
func NormalizeDevice(path string) string {
	path = strings.TrimSpace(path)
	if strings.HasPrefix(path, "/dev/rdisk") {
		return "/dev/disk" + strings.TrimPrefix(path, "/dev/rdisk")
	}
	if strings.HasPrefix(strings.ToUpper(path), `\\.\PHYSICALDRIVE`) {
		return strings.ToUpper(path)
	}
	if len(path) >= 2 && path[1] == ':' {
		return strings.ToUpper(path[:2])
	}
	return path
}

// ParentByName derives the whole-disk name from a partition name using kernel naming rules
func ParentByName(path string) string {
	dir, name := filepath.Split(path)
	if strings.HasPrefix(name, "disk") {
		// darwin: disk2s1 -> disk2
		if i := strings.Index(name[4:], "s"); i >= 0 {
			return dir + name[:4+i]
		}
		return path
	}
	trimmed := strings.TrimRight(name, "0123456789")
	if trimmed == name || trimmed == "" {
		return path
	}
	// nvme0n1p1, mmcblk0p1 -> strip the "p" separator
	if strings.HasSuffix(trimmed, "p") && endsWithDigit(trimmed[:len(trimmed)-1]) {
		return dir + trimmed[:len(trimmed)-1]
	}
	if strings.HasPrefix(name, "nvme") || strings.HasPrefix(name, "mmcblk") || endsWithDigit(trimmed) {
		return path
	}
	return dir + trimmed
}

// normalizeUsage fills the usage fields of p so that used + free equals the partition size
func normalizeUsage(p *Partition, total, used uint64) {
	if p.Size == 0 {
		p.Size = total
	}
	if p.Size == 0 {
		return
	}
	if used > p.Size {
		used = p.Size
	}
	free := p.Size - used
	pct := float64(used) / float64(p.Size) * 100
	p.Used, p.Free, p.PercentUsed = &used, &free, &pct
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func endsWithDigit(s string) bool {
	return s != "" && s[len(s)-1] >= '0' && s[len(s)-1] <= '9'
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
