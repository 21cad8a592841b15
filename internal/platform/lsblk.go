package platform

import (
	"errors"
	"strings"

	"github.com/tidwall/gjson"
)

var lsblkColumns = "NAME,PATH,SIZE,TYPE,MODEL,VENDOR,TRAN,RM,FSTYPE,MOUNTPOINT,LABEL"

type lsblkNode struct {
	Path       string
	Parent     string
	Type       string
	Size       uint64
	Model      string
	Vendor     string
	Transport  string
	Removable  bool
	FSType     string
	Mountpoint string
	Label      string
}

// parseLsblk flattens `lsblk -J -b` output into whole disks and their partitions
func parseLsblk(out []byte) (disks, parts []lsblkNode, err error) {
	if !gjson.ValidBytes(out) {
		return nil, nil, errors.New("lsblk returned invalid JSON")
	}
	root := gjson.GetBytes(out, "blockdevices")
	if !root.IsArray() {
		return nil, nil, errors.New("lsblk output has no blockdevices")
	}

	var walk func(nodes gjson.Result, parent string)
	walk = func(nodes gjson.Result, parent string) {
		nodes.ForEach(func(_, v gjson.Result) bool {
			n := lsblkNode{
				Path:       v.Get("path").String(),
				Parent:     parent,
				Type:       v.Get("type").String(),
				Size:       v.Get("size").Uint(),
				Model:      strings.TrimSpace(v.Get("model").String()),
				Vendor:     strings.TrimSpace(v.Get("vendor").String()),
				Transport:  v.Get("tran").String(),
				Removable:  v.Get("rm").Bool(),
				FSType:     v.Get("fstype").String(),
				Mountpoint: v.Get("mountpoint").String(),
				Label:      v.Get("label").String(),
			}
			if n.Path == "" {
				n.Path = "/dev/" + v.Get("name").String()
			}
			switch n.Type {
			case "disk":
				if parent == "" {
					disks = append(disks, n)
				}
			case "part":
				parts = append(parts, n)
			}
			if children := v.Get("children"); children.IsArray() {
				walk(children, n.Path)
			}
			return true
		})
	}
	walk(root, "")
	return disks, parts, nil
}

func (n lsblkNode) device() PhysicalDevice {
	return PhysicalDevice{
		Path:      n.Path,
		Size:      n.Size,
		Model:     n.Model,
		Vendor:    n.Vendor,
		Transport: n.Transport,
		Removable: n.Removable,
	}
}

func (n lsblkNode) partition() Partition {
	return Partition{
		Path:       n.Path,
		Parent:     n.Parent,
		Size:       n.Size,
		Label:      n.Label,
		FSType:     strPtr(n.FSType),
		Mountpoint: strPtr(n.Mountpoint),
	}
}
