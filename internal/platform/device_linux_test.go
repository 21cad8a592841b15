//go:build linux

package platform

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/mount-utils"
	"k8s.io/utils/exec"
	testingexec "k8s.io/utils/exec/testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func outputCmd(out string, err error) testingexec.FakeCommandAction {
	fcmd := &testingexec.FakeCmd{
		OutputScript: []testingexec.FakeAction{
			func() ([]byte, []byte, error) { return []byte(out), nil, err },
		},
	}
	return func(cmd string, args ...string) exec.Cmd {
		return testingexec.InitFakeCmd(fcmd, cmd, args...)
	}
}

func newTestHost(t *testing.T, fexec *testingexec.FakeExec, mps []mount.MountPoint) (*linuxHost, string) {
	root := t.TempDir()
	return &linuxHost{
		runner:  runner{exec: fexec},
		sys:     sysfs{root: root},
		mounter: mount.NewFakeMounter(mps),
	}, root
}

const lsblkWithVirtual = `{"blockdevices": [
	{"name":"sda", "path":"/dev/sda", "size":1000, "type":"disk", "model":"", "rm":false,
	 "children":[{"name":"sda1", "path":"/dev/sda1", "size":1000, "type":"part", "fstype":"ext4", "mountpoint":"/"}]},
	{"name":"sdb", "path":"/dev/sdb", "size":2000, "type":"disk", "model":"Flash", "rm":false,
	 "children":[{"name":"sdb1", "path":"/dev/sdb1", "size":2000, "type":"part", "fstype":"vfat", "mountpoint":null}]},
	{"name":"zram0", "path":"/dev/zram0", "size":4000, "type":"disk", "rm":false, "fstype":"swap"},
	{"name":"loop3", "path":"/dev/loop3", "size":10, "type":"loop", "rm":false, "fstype":"squashfs", "mountpoint":"/snap/x"}
]}`

func TestListPhysicalDevicesExcludesVirtual(t *testing.T) {
	fexec := &testingexec.FakeExec{
		CommandScript: []testingexec.FakeCommandAction{outputCmd(lsblkWithVirtual, nil)},
	}
	host, root := newTestHost(t, fexec, nil)
	writeFile(t, filepath.Join(root, "sys/block/sdb/removable"), "1\n")
	writeFile(t, filepath.Join(root, "sys/block/sda/device/model"), "VBOX HARDDISK\n")

	devices, err := host.ListPhysicalDevices()
	require.NoError(t, err)
	require.Len(t, devices, 2)

	assert.Equal(t, "/dev/sda", devices[0].Path)
	assert.Equal(t, "VBOX HARDDISK", devices[0].Model)
	assert.False(t, devices[0].Removable)

	assert.Equal(t, "/dev/sdb", devices[1].Path)
	assert.True(t, devices[1].Removable)
	assert.Equal(t, 1, fexec.CommandCalls)
}

func TestListPhysicalDevicesProbeFailure(t *testing.T) {
	fexec := &testingexec.FakeExec{
		CommandScript: []testingexec.FakeCommandAction{outputCmd("", errors.New("lsblk: not found"))},
	}
	host, _ := newTestHost(t, fexec, nil)

	devices, err := host.ListPhysicalDevices()
	assert.Empty(t, devices)
	assert.NotNil(t, devices)
	assert.True(t, IsProbeError(err))
}

func TestListPartitionsMeasuresMountedUsage(t *testing.T) {
	mnt := t.TempDir()
	fixture := `{"blockdevices": [
		{"name":"sdc", "path":"/dev/sdc", "size":8000000000, "type":"disk",
		 "children":[
			{"name":"sdc1", "path":"/dev/sdc1", "size":8000000000, "type":"part", "fstype":"ext4", "mountpoint":null},
			{"name":"sdc2", "path":"/dev/sdc2", "size":1000, "type":"part", "fstype":null, "mountpoint":null}
		 ]}
	]}`
	fexec := &testingexec.FakeExec{
		CommandScript: []testingexec.FakeCommandAction{outputCmd(fixture, nil)},
	}
	host, _ := newTestHost(t, fexec, []mount.MountPoint{
		{Device: "/dev/sdc1", Path: mnt, Type: "ext4"},
		{Device: "tmpfs", Path: "/run", Type: "tmpfs"},
	})

	parts, err := host.ListPartitions()
	require.NoError(t, err)
	require.Len(t, parts, 2)

	mounted := parts[0]
	require.NotNil(t, mounted.Mountpoint)
	assert.Equal(t, mnt, *mounted.Mountpoint)
	require.NotNil(t, mounted.Used)
	require.NotNil(t, mounted.Free)
	assert.Equal(t, mounted.Size, *mounted.Used+*mounted.Free)

	unmounted := parts[1]
	assert.Nil(t, unmounted.Mountpoint)
	assert.Nil(t, unmounted.Used)
	assert.Nil(t, unmounted.Free)
	assert.Nil(t, unmounted.FSType)
}

func TestUnmountOnlyTouchesTargetPartitions(t *testing.T) {
	host, _ := newTestHost(t, &testingexec.FakeExec{}, []mount.MountPoint{
		{Device: "/dev/sda2", Path: "/", Type: "ext4"},
		{Device: "/dev/sdb1", Path: "/media/usb1", Type: "vfat"},
		{Device: "/dev/sdb2", Path: "/media/usb2", Type: "ext4"},
		{Device: "/dev/sdbb1", Path: "/media/other", Type: "ext4"},
	})

	require.NoError(t, host.Unmount(context.Background(), "/dev/sdb"))

	remaining, err := host.mounter.List()
	require.NoError(t, err)
	var paths []string
	for _, mp := range remaining {
		paths = append(paths, mp.Path)
	}
	assert.ElementsMatch(t, []string{"/", "/media/other"}, paths)
}

func TestFormatBuildsToolInvocation(t *testing.T) {
	cases := []struct {
		fs   Filesystem
		argv []string
	}{
		{FSExt4, []string{"mkfs.ext4", "-F", "-L", "data", "/dev/sdz"}},
		{FSFAT32, []string{"mkfs.vfat", "-F", "32", "-I", "-n", "DATA", "/dev/sdz"}},
		{FSNTFS, []string{"mkfs.ntfs", "-f", "-L", "data", "/dev/sdz"}},
		{FSExFAT, []string{"mkfs.exfat", "-n", "data", "/dev/sdz"}},
	}
	for _, c := range cases {
		fcmd := &testingexec.FakeCmd{
			CombinedOutputScript: []testingexec.FakeAction{
				func() ([]byte, []byte, error) { return nil, nil, nil },
			},
		}
		fexec := &testingexec.FakeExec{
			CommandScript: []testingexec.FakeCommandAction{
				func(cmd string, args ...string) exec.Cmd { return testingexec.InitFakeCmd(fcmd, cmd, args...) },
			},
		}
		host, _ := newTestHost(t, fexec, nil)

		require.NoError(t, host.Format(context.Background(), "/dev/sdz", c.fs, "data"))
		assert.Equal(t, c.argv, fcmd.CombinedOutputLog[0], string(c.fs))
	}
}

func TestFormatReportsToolOutput(t *testing.T) {
	fcmd := &testingexec.FakeCmd{
		CombinedOutputScript: []testingexec.FakeAction{
			func() ([]byte, []byte, error) {
				return []byte("mkfs.vfat: unable to open /dev/sdz"), nil, &testingexec.FakeExitError{Status: 1}
			},
		},
	}
	fexec := &testingexec.FakeExec{
		CommandScript: []testingexec.FakeCommandAction{
			func(cmd string, args ...string) exec.Cmd { return testingexec.InitFakeCmd(fcmd, cmd, args...) },
		},
	}
	host, _ := newTestHost(t, fexec, nil)

	err := host.Format(context.Background(), "/dev/sdz", FSFAT32, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unable to open /dev/sdz")

	err = host.Format(context.Background(), "/dev/sdz", FSAPFS, "")
	assert.ErrorIs(t, err, ErrUnsupportedFilesystem)
	assert.Equal(t, 1, fexec.CommandCalls)
}

func TestSystemDevicesIncludesParentsAndKernelRoot(t *testing.T) {
	host, root := newTestHost(t, &testingexec.FakeExec{}, []mount.MountPoint{
		{Device: "/dev/nvme0n1p2", Path: "/", Type: "ext4"},
		{Device: "/dev/nvme0n1p1", Path: "/boot/efi", Type: "vfat"},
		{Device: "/dev/sdb1", Path: "/media/usb", Type: "vfat"},
	})
	writeFile(t, filepath.Join(root, "proc/cmdline"), "BOOT_IMAGE=/vmlinuz root=UUID=1234-abcd ro quiet\n")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "dev/disk/by-uuid"), 0755))
	require.NoError(t, os.Symlink("../../sdc3", filepath.Join(root, "dev/disk/by-uuid/1234-abcd")))

	devices, err := host.SystemDevices()
	require.NoError(t, err)
	assert.Contains(t, devices, "/dev/nvme0n1p2")
	assert.Contains(t, devices, "/dev/nvme0n1p1")
	assert.Contains(t, devices, "/dev/nvme0n1")
	assert.Contains(t, devices, "/dev/sdc3")
	assert.Contains(t, devices, "/dev/sdc")
	assert.NotContains(t, devices, "/dev/sdb1")
	assert.NotContains(t, devices, "/dev/sdb")
}

func TestIsRemovableChecksParentDisk(t *testing.T) {
	host, root := newTestHost(t, &testingexec.FakeExec{}, nil)
	writeFile(t, filepath.Join(root, "sys/block/sdb/removable"), "1")
	writeFile(t, filepath.Join(root, "sys/block/sda/removable"), "0")

	assert.True(t, host.IsRemovable("/dev/sdb"))
	assert.True(t, host.IsRemovable("/dev/sdb1"))
	assert.False(t, host.IsRemovable("/dev/sda1"))
	assert.False(t, host.IsRemovable("/dev/sdq"))
}

func TestSystemDevicesFollowsDeviceMapperSlaves(t *testing.T) {
	host, root := newTestHost(t, &testingexec.FakeExec{}, []mount.MountPoint{
		{Device: "/dev/mapper/vg-root", Path: "/", Type: "ext4"},
		{Device: "/dev/nvme0n1p1", Path: "/boot/efi", Type: "vfat"},
	})
	writeFile(t, filepath.Join(root, "proc/cmdline"), "root=/dev/mapper/vg-root ro\n")
	// LVM on LUKS: vg-root (dm-1) sits on luks (dm-0), which sits on sda2
	writeFile(t, filepath.Join(root, "sys/block/dm-0/dm/name"), "luks-3f2a\n")
	writeFile(t, filepath.Join(root, "sys/block/dm-1/dm/name"), "vg-root\n")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sys/block/dm-1/slaves/dm-0"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sys/block/dm-0/slaves/sda2"), 0755))

	devices, err := host.SystemDevices()
	require.NoError(t, err)
	assert.Contains(t, devices, "/dev/mapper/vg-root")
	assert.Contains(t, devices, "/dev/dm-1")
	assert.Contains(t, devices, "/dev/dm-0")
	assert.Contains(t, devices, "/dev/sda2")
	assert.Contains(t, devices, "/dev/sda")
	assert.Contains(t, devices, "/dev/nvme0n1")
	assert.NotContains(t, devices, "/dev/dm-")
}

func TestSystemDevicesFollowsMapperLink(t *testing.T) {
	host, root := newTestHost(t, &testingexec.FakeExec{}, []mount.MountPoint{
		{Device: "/dev/mapper/cryptroot", Path: "/", Type: "btrfs"},
	})
	require.NoError(t, os.MkdirAll(filepath.Join(root, "dev/mapper"), 0755))
	require.NoError(t, os.Symlink("../dm-2", filepath.Join(root, "dev/mapper/cryptroot")))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sys/class/block/dm-2/slaves/nvme0n1p3"), 0755))

	devices, err := host.SystemDevices()
	require.NoError(t, err)
	assert.Contains(t, devices, "/dev/dm-2")
	assert.Contains(t, devices, "/dev/nvme0n1p3")
	assert.Contains(t, devices, "/dev/nvme0n1")
}
