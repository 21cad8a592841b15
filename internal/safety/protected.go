package safety

import (
	"strings"

	"github.com/utkarshgautam22/DiskForge/internal/platform"
)

// ProtectedSet holds the devices and mountpoints the running OS depends on.
// It is never modified after construction.
type ProtectedSet struct {
	devices     []string
	mountpoints []string
}

// NewProtectedSet builds a set from device identities and mountpoints; duplicates are dropped
func NewProtectedSet(devices, mountpoints []string) *ProtectedSet {
	s := &ProtectedSet{}
	seen := map[string]bool{}
	for _, d := range devices {
		d = platform.NormalizeDevice(d)
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		s.devices = append(s.devices, d)
	}
	seen = map[string]bool{}
	for _, mp := range mountpoints {
		mp = cleanMountpoint(mp)
		if mp == "" || seen[mp] {
			continue
		}
		seen[mp] = true
		s.mountpoints = append(s.mountpoints, mp)
	}
	return s
}

// Discover asks the OS which devices host the running system. Each device is kept under
// the name the OS reported and under its canonical node.
func Discover(src platform.SystemSource, extraMountpoints ...string) (*ProtectedSet, error) {
	mountpoints := append(src.ProtectedMountpoints(), extraMountpoints...)
	reported, err := src.SystemDevices()
	if err != nil {
		return NewProtectedSet(nil, mountpoints), err
	}
	devices := make([]string, 0, 2*len(reported))
	for _, d := range reported {
		devices = append(devices, d)
		if real, err := src.Canonical(d); err == nil {
			devices = append(devices, real)
		}
	}
	return NewProtectedSet(devices, mountpoints), nil
}

// Devices returns a copy of the protected device identities
func (s *ProtectedSet) Devices() []string {
	return append([]string{}, s.devices...)
}

// Mountpoints returns a copy of the protected mountpoints
func (s *ProtectedSet) Mountpoints() []string {
	return append([]string{}, s.mountpoints...)
}

// IsSystemDevice reports whether id is a protected device, a partition of one, or the disk holding one
func (s *ProtectedSet) IsSystemDevice(id string) bool {
	for _, d := range s.devices {
		if platform.Related(id, d) {
			return true
		}
	}
	return false
}

// IsProtectedMountpoint reports whether mp is exactly one of the protected mountpoints
func (s *ProtectedSet) IsProtectedMountpoint(mp string) bool {
	mp = cleanMountpoint(mp)
	for _, p := range s.mountpoints {
		if p == mp {
			return true
		}
	}
	return false
}

// cleanMountpoint drops trailing separators and folds drive letters so C:\ and c: compare equal
func cleanMountpoint(mp string) string {
	mp = strings.TrimSpace(mp)
	if len(mp) >= 2 && mp[1] == ':' {
		return strings.ToLower(strings.TrimRight(mp, `\/`))
	}
	if mp == "/" {
		return mp
	}
	return strings.TrimRight(mp, "/")
}
