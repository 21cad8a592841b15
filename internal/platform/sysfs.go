package platform

import (
	"os"
	"path/filepath"
	"strings"
)

// sysfs reads kernel block device attributes. root is "/" outside tests.
type sysfs struct {
	root string
}

func (s sysfs) path(elem ...string) string {
	return filepath.Join(append([]string{s.root}, elem...)...)
}

func (s sysfs) readAttr(elem ...string) string {
	data, err := os.ReadFile(s.path(elem...))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// removable reads /sys/block/<name>/removable
func (s sysfs) removable(device string) bool {
	return s.readAttr("sys", "block", filepath.Base(device), "removable") == "1"
}

// parent resolves the whole disk of a partition through /sys/class/block, falling back to naming rules
func (s sysfs) parent(device string) string {
	name := filepath.Base(device)
	if isDM(name) || strings.HasPrefix(name, "md") || strings.HasPrefix(device, "/dev/mapper/") {
		// stacked devices have no parent disk, their lower devices come from slaves
		return device
	}
	link := s.path("sys", "class", "block", name)
	if _, err := os.Stat(filepath.Join(link, "partition")); err == nil {
		if target, err := filepath.EvalSymlinks(link); err == nil {
			return "/dev/" + filepath.Base(filepath.Dir(target))
		}
	}
	if _, err := os.Stat(link); err == nil {
		// a block device without a partition attribute is a whole disk
		return device
	}
	return ParentByName(device)
}

// kernelName maps a device path to its name under /sys/class/block. Device mapper
// names such as /dev/mapper/vg-root are looked up through dm-N/dm/name.
func (s sysfs) kernelName(device string) string {
	name := filepath.Base(device)
	if !strings.HasPrefix(device, "/dev/mapper/") {
		return name
	}
	if target, err := os.Readlink(s.path("dev", "mapper", name)); err == nil {
		return filepath.Base(target)
	}
	dms, _ := filepath.Glob(s.path("sys", "block", "dm-*"))
	for _, dm := range dms {
		if s.readAttr("sys", "block", filepath.Base(dm), "dm", "name") == name {
			return filepath.Base(dm)
		}
	}
	return name
}

func isDM(name string) bool {
	return strings.HasPrefix(name, "dm-")
}

// slaves lists the devices directly underneath a stacked device (LVM, LUKS, md RAID)
func (s sysfs) slaves(name string) []string {
	for _, dir := range []string{s.path("sys", "class", "block", name, "slaves"), s.path("sys", "block", name, "slaves")} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		slaves := make([]string, 0, len(entries))
		for _, e := range entries {
			slaves = append(slaves, e.Name())
		}
		return slaves
	}
	return nil
}

// backing returns every device below device in the stack, down to the partitions holding it
func (s sysfs) backing(device string) []string {
	var devices []string
	seen := map[string]bool{}
	var walk func(name string, depth int)
	walk = func(name string, depth int) {
		if depth > 8 || seen[name] {
			return
		}
		seen[name] = true
		for _, slave := range s.slaves(name) {
			devices = append(devices, "/dev/"+slave)
			walk(slave, depth+1)
		}
	}
	name := s.kernelName(device)
	if isDM(name) && "/dev/"+name != device {
		devices = append(devices, "/dev/"+name)
	}
	walk(name, 0)
	return devices
}

// resolveLink maps a /dev/disk/by-* entry to the device node it points at
func (s sysfs) resolveLink(dir, name string) string {
	linkPath := s.path("dev", "disk", dir, name)
	target, err := os.Readlink(linkPath)
	if err != nil {
		return ""
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(linkPath), target)
	}
	target = filepath.Clean(target)
	rel, err := filepath.Rel(s.path("dev"), target)
	if err != nil || strings.HasPrefix(rel, "..") {
		return target
	}
	return "/dev/" + filepath.ToSlash(rel)
}

// resolveRootSpec turns a root= kernel argument into a device path
func (s sysfs) resolveRootSpec(spec string) string {
	switch {
	case strings.HasPrefix(spec, "/dev/"):
		return spec
	case strings.HasPrefix(spec, "UUID="):
		return s.resolveLink("by-uuid", strings.TrimPrefix(spec, "UUID="))
	case strings.HasPrefix(spec, "PARTUUID="):
		return s.resolveLink("by-partuuid", strings.TrimPrefix(spec, "PARTUUID="))
	case strings.HasPrefix(spec, "LABEL="):
		return s.resolveLink("by-label", strings.TrimPrefix(spec, "LABEL="))
	}
	return ""
}

// kernelRoot reads root= from /proc/cmdline
func (s sysfs) kernelRoot() string {
	for _, field := range strings.Fields(s.readAttr("proc", "cmdline")) {
		if spec, ok := strings.CutPrefix(field, "root="); ok {
			return s.resolveRootSpec(spec)
		}
	}
	return ""
}
