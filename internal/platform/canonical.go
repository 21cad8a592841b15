package platform

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnresolvedDevice is returned when a device identity does not lead to a device node
var ErrUnresolvedDevice = errors.New("device path cannot be resolved")

// IsWindowsIdentity reports whether id is a drive letter or a \\.\ device namespace path
func IsWindowsIdentity(id string) bool {
	return strings.HasPrefix(id, `\\.\`) || strings.HasPrefix(id, `\\?\`) || (len(id) >= 2 && id[1] == ':')
}

// CanonicalDevice resolves relative names and symlinks such as /dev/disk/by-id entries
// to the device node they name. Windows identities are only normalized.
func CanonicalDevice(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%w: empty device", ErrUnresolvedDevice)
	}
	if IsWindowsIdentity(id) {
		return NormalizeDevice(id), nil
	}
	abs, err := filepath.Abs(id)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrUnresolvedDevice, id, err)
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrUnresolvedDevice, id, err)
	}
	return NormalizeDevice(real), nil
}
