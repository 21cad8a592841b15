package safety

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utkarshgautam22/DiskForge/internal/platform"
	"github.com/utkarshgautam22/DiskForge/internal/platform/fakehost"
)

func laptop() *fakehost.Host {
	h := fakehost.New()
	h.System = []string{"/dev/nvme0n1p2", "/dev/nvme0n1", "/dev/nvme0n1p1"}
	h.Mounts = []platform.MountedPartition{
		{Device: "/dev/nvme0n1p2", Mountpoint: "/", FSType: "ext4", Parent: "/dev/nvme0n1"},
		{Device: "/dev/nvme0n1p1", Mountpoint: "/boot/efi", FSType: "vfat", Parent: "/dev/nvme0n1"},
		{Device: "/dev/sda1", Mountpoint: "/home", FSType: "ext4", Parent: "/dev/sda"},
		{Device: "/dev/sdc1", Mountpoint: "/var", FSType: "xfs", Parent: "/dev/sdc"},
		{Device: "/dev/sdb1", Mountpoint: "/media/alex/STICK", FSType: "vfat", Parent: "/dev/sdb"},
	}
	h.Removable["/dev/sdb"] = true
	return h
}

func TestIsSafeDevice(t *testing.T) {
	c := NewClassifier(laptop())

	assert.False(t, c.IsSafeDevice("/dev/nvme0n1"), "root disk")
	assert.False(t, c.IsSafeDevice("/dev/nvme0n1p2"), "root partition")
	assert.False(t, c.IsSafeDevice("/dev/nvme0n1p3"), "unmounted partition of the system disk")
	assert.False(t, c.IsSafeDevice("/dev/sdc"), "disk with /var mounted")
	assert.False(t, c.IsSafeDevice("/dev/sdc1"), "partition mounted at /var")

	assert.True(t, c.IsSafeDevice("/dev/sdb"), "usb stick")
	assert.True(t, c.IsSafeDevice("/dev/sdd"), "clean unmounted disk")
	assert.True(t, c.IsSafeDevice("/dev/sda"), "home disk is not a system device")
}

func TestIsSafeDeviceIgnoresSimilarNames(t *testing.T) {
	h := fakehost.New()
	h.System = []string{"/dev/sda1", "/dev/sda"}
	h.Mounts = []platform.MountedPartition{{Device: "/dev/sda1", Mountpoint: "/"}}
	c := NewClassifier(h)

	assert.True(t, c.IsSafeDevice("/dev/sdaa"))
	assert.False(t, c.IsSafeDevice("/dev/sda"))
}

func TestAssessTiers(t *testing.T) {
	c := NewClassifier(laptop())

	root, err := c.Assess("/dev/nvme0n1")
	require.NoError(t, err)
	assert.Equal(t, RiskCritical, root.RiskTier)
	assert.True(t, root.IsSystemDevice)
	require.Len(t, root.MountedPartitions, 2)
	// order follows the mount table
	assert.Equal(t, "/", root.MountedPartitions[0].Mountpoint)
	assert.Equal(t, "/boot/efi", root.MountedPartitions[1].Mountpoint)

	home, err := c.Assess("/dev/sda")
	require.NoError(t, err)
	assert.Equal(t, RiskHigh, home.RiskTier)
	assert.False(t, home.IsSystemDevice)

	usrData, err := c.Assess("/dev/sdc")
	require.NoError(t, err)
	assert.Equal(t, RiskCritical, usrData.RiskTier)

	stick, err := c.Assess("/dev/sdb")
	require.NoError(t, err)
	assert.Equal(t, RiskLow, stick.RiskTier)
	assert.True(t, stick.IsRemovable)
	assert.Len(t, stick.MountedPartitions, 1)

	blank, err := c.Assess("/dev/sde")
	require.NoError(t, err)
	assert.Equal(t, RiskLow, blank.RiskTier)
	assert.False(t, blank.IsRemovable)
	assert.Empty(t, blank.MountedPartitions)
}

func TestAssessNestedUserDataIsHigh(t *testing.T) {
	h := fakehost.New()
	h.Mounts = []platform.MountedPartition{{Device: "/dev/sdf1", Mountpoint: "/home/alex/photos"}}
	c := NewClassifier(h, WithSensitive("/data"))

	a, err := c.Assess("/dev/sdf")
	require.NoError(t, err)
	assert.Equal(t, RiskHigh, a.RiskTier)

	h.Mounts = []platform.MountedPartition{{Device: "/dev/sdf1", Mountpoint: "/data"}}
	a, err = c.Assess("/dev/sdf")
	require.NoError(t, err)
	assert.Equal(t, RiskHigh, a.RiskTier)
}

func TestExtraProtectedMountpoint(t *testing.T) {
	h := fakehost.New()
	h.Mounts = []platform.MountedPartition{{Device: "/dev/sdg1", Mountpoint: "/srv/vm/"}}
	c := NewClassifier(h, WithExtraProtected("/srv/vm"))

	assert.False(t, c.IsSafeDevice("/dev/sdg"))
	a, err := c.Assess("/dev/sdg1")
	require.NoError(t, err)
	assert.Equal(t, RiskCritical, a.RiskTier)
}

func TestQueryFailureDegradesToUnsafe(t *testing.T) {
	h := laptop()
	h.ProbeErr = errors.New("permission denied")
	c := NewClassifier(h)

	assert.False(t, c.IsSafeDevice("/dev/sdb"))
	a, err := c.Assess("/dev/sdb")
	assert.True(t, platform.IsProbeError(err))
	assert.Equal(t, RiskCritical, a.RiskTier)
	assert.True(t, a.Degraded)

	h.ProbeErr = nil
	require.NoError(t, c.Refresh())
	assert.True(t, c.IsSafeDevice("/dev/sdb"))
}

func TestMountTableFailureAfterDiscovery(t *testing.T) {
	h := laptop()
	c := NewClassifier(h)
	h.ProbeErr = errors.New("mount table gone")

	assert.False(t, c.IsSafeDevice("/dev/sdb"))
	a, err := c.Assess("/dev/sdb")
	assert.Error(t, err)
	assert.Equal(t, RiskCritical, a.RiskTier)
}

func TestWindowsMountpoints(t *testing.T) {
	h := fakehost.New()
	h.Protected = []string{`C:\`, `C:\Windows`, `C:\Program Files`}
	h.System = []string{"C:", `\\.\PHYSICALDRIVE0`}
	h.Mounts = []platform.MountedPartition{
		{Device: "C:", Mountpoint: "C:", Parent: `\\.\PHYSICALDRIVE0`},
		{Device: "E:", Mountpoint: "E:", Parent: `\\.\PHYSICALDRIVE1`},
	}
	c := NewClassifier(h)

	assert.False(t, c.IsSafeDevice(`\\.\PhysicalDrive0`))
	assert.False(t, c.IsSafeDevice("c:"))
	assert.True(t, c.IsSafeDevice(`\\.\PHYSICALDRIVE1`))

	a, err := c.Assess(`\\.\PHYSICALDRIVE1`)
	require.NoError(t, err)
	require.Len(t, a.MountedPartitions, 1)
	assert.Equal(t, "E:", a.MountedPartitions[0].Device)
}

func TestProtectedSetIsACopy(t *testing.T) {
	c := NewClassifier(laptop())
	devices := c.ProtectedSet().Devices()
	devices[0] = "/dev/sdb"
	assert.False(t, c.ProtectedSet().IsSystemDevice("/dev/sdb"))
}

func TestValidate(t *testing.T) {
	c := NewClassifier(laptop())

	ok, reason := c.Validate("/dev/nvme0n1", "format")
	assert.False(t, ok)
	assert.Equal(t, "Operation blocked: Critical system device", reason)

	ok, reason = c.Validate("/dev/sdc", "format")
	assert.False(t, ok)
	assert.Contains(t, reason, "protected location")

	ok, reason = c.Validate("/dev/sdb", "write")
	assert.True(t, ok)
	assert.Equal(t, "Safe removable device", reason)

	ok, reason = c.Validate("/dev/sdd", "write")
	assert.True(t, ok)
	assert.Equal(t, "Requires confirmation", reason)
}

func TestAliasesOfSystemDiskAreUnsafe(t *testing.T) {
	h := fakehost.New()
	h.System = []string{"/dev/sda2", "/dev/sda"}
	h.Mounts = []platform.MountedPartition{{Device: "/dev/sda2", Mountpoint: "/", Parent: "/dev/sda"}}
	c := NewClassifier(h)

	byID := filepath.Join(t.TempDir(), "ata-Samsung_SSD_860_S3Z9NB0K")
	require.NoError(t, os.Symlink("/dev/sda", byID))

	assert.False(t, c.IsSafeDevice("/dev/sda"))
	assert.False(t, c.IsSafeDevice(byID))

	a, err := c.Assess(byID)
	require.NoError(t, err)
	assert.Equal(t, "/dev/sda", a.Device)
	assert.Equal(t, RiskCritical, a.RiskTier)
	assert.True(t, a.IsSystemDevice)
	assert.Equal(t, CriticalPhrase, a.ConfirmationPhrase())

	ok, _ := c.Validate(byID, "format")
	assert.False(t, ok)
}

func TestSystemDeviceReportedThroughLink(t *testing.T) {
	h := fakehost.New()
	root := filepath.Join(t.TempDir(), "vg-root")
	require.NoError(t, os.Symlink("/dev/dm-0", root))
	h.System = []string{root}
	c := NewClassifier(h)

	assert.False(t, c.IsSafeDevice("/dev/dm-0"))
	assert.True(t, c.IsSafeDevice("/dev/sdb"))
}

func TestUnresolvableIdentityIsUnsafe(t *testing.T) {
	h := fakehost.New()
	h.Missing = []string{"/dev/root"}
	c := NewClassifier(h)

	assert.False(t, c.IsSafeDevice("sda"), "relative name that resolves nowhere")
	assert.False(t, c.IsSafeDevice("/dev/root"))
	assert.False(t, c.IsSafeDevice(filepath.Join(t.TempDir(), "dangling")))

	a, err := c.Assess("sda")
	assert.True(t, errors.Is(err, platform.ErrUnresolvedDevice))
	assert.Equal(t, RiskCritical, a.RiskTier)
	assert.True(t, a.Degraded)

	ok, reason := c.Validate("/dev/root", "write")
	assert.False(t, ok)
	assert.Contains(t, reason, "unable to verify device safety")
}

func TestMountedAliasIsMatched(t *testing.T) {
	h := fakehost.New()
	label := filepath.Join(t.TempDir(), "by-label-DATA")
	require.NoError(t, os.Symlink("/dev/sdc1", label))
	h.Mounts = []platform.MountedPartition{{Device: label, Mountpoint: "/var"}}
	c := NewClassifier(h)

	assert.False(t, c.IsSafeDevice("/dev/sdc"))
	a, err := c.Assess("/dev/sdc")
	require.NoError(t, err)
	require.Len(t, a.MountedPartitions, 1)
	assert.Equal(t, "/dev/sdc1", a.MountedPartitions[0].Device)
}
