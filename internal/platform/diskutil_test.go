package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const diskutilListFixture = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>AllDisksAndPartitions</key>
	<array>
		<dict>
			<key>Content</key><string>GUID_partition_scheme</string>
			<key>DeviceIdentifier</key><string>disk0</string>
			<key>Size</key><integer>500277790720</integer>
			<key>Partitions</key>
			<array>
				<dict>
					<key>Content</key><string>EFI</string>
					<key>DeviceIdentifier</key><string>disk0s1</string>
					<key>Size</key><integer>314572800</integer>
				</dict>
				<dict>
					<key>Content</key><string>Apple_APFS</string>
					<key>DeviceIdentifier</key><string>disk0s2</string>
					<key>Size</key><integer>499963170816</integer>
				</dict>
			</array>
		</dict>
		<dict>
			<key>Content</key><string>FDisk_partition_scheme</string>
			<key>DeviceIdentifier</key><string>disk4</string>
			<key>Size</key><integer>15938355200</integer>
			<key>Partitions</key>
			<array>
				<dict>
					<key>Content</key><string>Windows_FAT_32</string>
					<key>DeviceIdentifier</key><string>disk4s1</string>
					<key>MountPoint</key><string>/Volumes/STICK</string>
					<key>Size</key><integer>15937306624</integer>
					<key>VolumeName</key><string>STICK</string>
				</dict>
			</array>
		</dict>
		<dict>
			<key>DeviceIdentifier</key><string>disk3</string>
			<key>Size</key><integer>499963170816</integer>
			<key>APFSVolumes</key>
			<array>
				<dict>
					<key>DeviceIdentifier</key><string>disk3s1</string>
					<key>MountPoint</key><string>/</string>
					<key>Size</key><integer>499963170816</integer>
					<key>VolumeName</key><string>Macintosh HD</string>
				</dict>
				<dict>
					<key>DeviceIdentifier</key><string>disk3s6</string>
					<key>Size</key><integer>499963170816</integer>
					<key>VolumeName</key><string>VM</string>
				</dict>
			</array>
		</dict>
	</array>
	<key>WholeDisks</key>
	<array>
		<string>disk0</string>
		<string>disk4</string>
	</array>
</dict>
</plist>`

const diskutilInfoFixture = `<?xml version="1.0" encoding="UTF-8"?>
<plist version="1.0">
<dict>
	<key>BusProtocol</key><string>USB</string>
	<key>DeviceIdentifier</key><string>disk4</string>
	<key>DeviceNode</key><string>/dev/disk4</string>
	<key>MediaName</key><string>SanDisk Cruzer Blade Media</string>
	<key>Ejectable</key><true/>
	<key>RemovableMedia</key><false/>
	<key>Internal</key><false/>
	<key>VirtualOrPhysical</key><string>Physical</string>
	<key>Size</key><integer>15938355200</integer>
</dict>
</plist>`

func TestParseDiskutilList(t *testing.T) {
	list, err := parseDiskutilList([]byte(diskutilListFixture))
	require.NoError(t, err)
	assert.Equal(t, []string{"disk0", "disk4"}, list.WholeDisks)

	parts := list.partitions()
	var paths []string
	for _, p := range parts {
		paths = append(paths, p.Path)
	}
	// EFI and unmounted APFS system volumes are dropped
	assert.Equal(t, []string{"/dev/disk0s2", "/dev/disk4s1", "/dev/disk3s1"}, paths)

	stick := parts[1]
	assert.Equal(t, "/dev/disk4", stick.Parent)
	assert.Equal(t, "STICK", stick.Label)
	require.NotNil(t, stick.Mountpoint)
	assert.Equal(t, "/Volumes/STICK", *stick.Mountpoint)
}

func TestParseDiskutilInfo(t *testing.T) {
	info, err := parseDiskutilInfo([]byte(diskutilInfoFixture))
	require.NoError(t, err)
	assert.False(t, info.virtual())

	dev := info.device()
	assert.Equal(t, "/dev/disk4", dev.Path)
	assert.Equal(t, uint64(15938355200), dev.Size)
	assert.Equal(t, "SanDisk Cruzer Blade Media", dev.Model)
	assert.True(t, dev.Removable)

	image := &diskutilInfo{BusProtocol: "Disk Image"}
	assert.True(t, image.virtual())
}

func TestParseHdiutilAttach(t *testing.T) {
	out := `<?xml version="1.0" encoding="UTF-8"?>
<plist version="1.0">
<dict>
	<key>system-entities</key>
	<array>
		<dict><key>dev-entry</key><string>/dev/disk5</string></dict>
		<dict><key>dev-entry</key><string>/dev/disk5s1</string><key>mount-point</key><string>/Volumes/CCCOMA_X64FRE</string></dict>
	</array>
</dict>
</plist>`
	mp, err := parseHdiutilAttach([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, "/Volumes/CCCOMA_X64FRE", mp)
}

const diskutilRootInfoFixture = `<?xml version="1.0" encoding="UTF-8"?>
<plist version="1.0">
<dict>
	<key>DeviceIdentifier</key><string>disk3s1s1</string>
	<key>DeviceNode</key><string>/dev/disk3s1s1</string>
	<key>ParentWholeDisk</key><string>disk3</string>
	<key>MountPoint</key><string>/</string>
	<key>FilesystemType</key><string>apfs</string>
	<key>APFSContainerReference</key><string>disk3</string>
	<key>APFSPhysicalStores</key>
	<array>
		<dict>
			<key>APFSPhysicalStore</key><string>disk0s2</string>
		</dict>
	</array>
	<key>VirtualOrPhysical</key><string>Virtual</string>
</dict>
</plist>`

func TestSystemDevicesReachPhysicalStore(t *testing.T) {
	info, err := parseDiskutilInfo([]byte(diskutilRootInfoFixture))
	require.NoError(t, err)

	devices := info.systemDevices()
	assert.Equal(t, []string{"/dev/disk3s1s1", "/dev/disk3", "/dev/disk0s2", "/dev/disk0"}, devices)
}

func TestSystemDevicesWithoutStores(t *testing.T) {
	info := &diskutilInfo{DeviceNode: "/dev/disk1s1"}
	assert.Equal(t, []string{"/dev/disk1s1", "/dev/disk1"}, info.systemDevices())
}
