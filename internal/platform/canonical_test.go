package platform

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalDeviceFollowsLinks(t *testing.T) {
	dir := t.TempDir()
	node := filepath.Join(dir, "sda")
	require.NoError(t, os.WriteFile(node, nil, 0644))
	byID := filepath.Join(dir, "by-id")
	require.NoError(t, os.MkdirAll(byID, 0755))
	link := filepath.Join(byID, "ata-VBOX_HARDDISK_VB1234")
	require.NoError(t, os.Symlink("../sda", link))

	want, err := filepath.EvalSymlinks(node)
	require.NoError(t, err)

	got, err := CanonicalDevice(link)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = CanonicalDevice(node)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestCanonicalDeviceResolvesRelativeNames(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sda"), nil, 0644))
	want, err := filepath.EvalSymlinks(filepath.Join(dir, "sda"))
	require.NoError(t, err)

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer func() { require.NoError(t, os.Chdir(wd)) }()

	got, err := CanonicalDevice("sda")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestCanonicalDeviceRejectsMissingNodes(t *testing.T) {
	_, err := CanonicalDevice(filepath.Join(t.TempDir(), "root"))
	assert.True(t, errors.Is(err, ErrUnresolvedDevice))

	_, err = CanonicalDevice("  ")
	assert.True(t, errors.Is(err, ErrUnresolvedDevice))
}

func TestCanonicalDeviceWindowsIdentities(t *testing.T) {
	got, err := CanonicalDevice(`\\.\PhysicalDrive1`)
	require.NoError(t, err)
	assert.Equal(t, `\\.\PHYSICALDRIVE1`, got)

	got, err = CanonicalDevice(`e:\`)
	require.NoError(t, err)
	assert.Equal(t, "E:", got)
}
