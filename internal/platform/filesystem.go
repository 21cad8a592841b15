package platform

import (
	"fmt"
	"strings"
)

// Filesystem is a filesystem type Format can create
type Filesystem string

const (
	FSExt4  Filesystem = "ext4"
	FSFAT32 Filesystem = "fat32"
	FSNTFS  Filesystem = "ntfs"
	FSExFAT Filesystem = "exfat"
	FSAPFS  Filesystem = "apfs"
	FSHFS   Filesystem = "hfs+"
)

var filesystemAliases = map[string]Filesystem{
	"ext4":  FSExt4,
	"fat32": FSFAT32,
	"vfat":  FSFAT32,
	"ntfs":  FSNTFS,
	"exfat": FSExFAT,
	"apfs":  FSAPFS,
	"hfs+":  FSHFS,
	"hfs":   FSHFS,
}

// ParseFilesystem maps a user supplied name to a Filesystem
func ParseFilesystem(name string) (Filesystem, error) {
	fs, ok := filesystemAliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFilesystem, name)
	}
	return fs, nil
}

// Supports reports whether fs is contained in list
func Supports(list []Filesystem, fs Filesystem) bool {
	for _, f := range list {
		if f == fs {
			return true
		}
	}
	return false
}
