package system

import (
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
	log "github.com/sirupsen/logrus"
	utilexec "k8s.io/utils/exec"
)

// requiredTools are the OS utilities the platform layer shells out to
var requiredTools = map[string][]string{
	"linux":   {"lsblk", "mkfs.ext4", "mkfs.vfat", "mkfs.ntfs", "mkfs.exfat", "syslinux", "isoinfo"},
	"darwin":  {"diskutil", "hdiutil", "isoinfo"},
	"windows": {"powershell", "diskpart", "format"},
}

// Tool is one external utility and where it was found
type Tool struct {
	Name  string `json:"name"`
	Path  string `json:"path,omitempty"`
	Found bool   `json:"found"`
}

// Info describes the machine DiskForge runs on
type Info struct {
	Hostname        string  `json:"hostname"`
	OS              string  `json:"os"`
	Platform        string  `json:"platform"`
	PlatformVersion string  `json:"platform_version"`
	KernelVersion   string  `json:"kernel_version"`
	Arch            string  `json:"arch"`
	Uptime          uint64  `json:"uptime"`
	CPUs            int     `json:"cpus"`
	MemoryTotal     uint64  `json:"memory_total"`
	MemoryUsed      uint64  `json:"memory_used"`
	MemoryPercent   float64 `json:"memory_percent"`
	Privileged      bool    `json:"privileged"`
	Tools           []Tool  `json:"tools"`
}

// Holder is a process with files open below a mountpoint
type Holder struct {
	PID        int32  `json:"pid"`
	Name       string `json:"name"`
	Mountpoint string `json:"mountpoint"`
}

type SystemMonitor struct {
	exec utilexec.Interface
}

func NewSystemMonitor(exec utilexec.Interface) *SystemMonitor {
	return &SystemMonitor{exec: exec}
}

// GetSystemInfo gathers host, memory and tool information. Sections that cannot be read are left empty.
func (sm *SystemMonitor) GetSystemInfo() (*Info, error) {
	info := &Info{
		OS:         runtime.GOOS,
		Arch:       runtime.GOARCH,
		Privileged: os.Geteuid() == 0,
	}

	if hostInfo, err := host.Info(); err == nil {
		info.Hostname = hostInfo.Hostname
		info.Platform = hostInfo.Platform
		info.PlatformVersion = hostInfo.PlatformVersion
		info.KernelVersion = hostInfo.KernelVersion
		info.Uptime = hostInfo.Uptime
	} else {
		log.WithError(err).Debug("Failed to read host info")
	}

	if memInfo, err := mem.VirtualMemory(); err == nil {
		info.MemoryTotal = memInfo.Total
		info.MemoryUsed = memInfo.Used
		info.MemoryPercent = memInfo.UsedPercent
	}

	if n, err := cpu.Counts(true); err == nil {
		info.CPUs = n
	}

	info.Tools = sm.Tools()
	return info, nil
}

// Tools reports which platform utilities are on PATH
func (sm *SystemMonitor) Tools() []Tool {
	tools := []Tool{}
	for _, name := range requiredTools[runtime.GOOS] {
		t := Tool{Name: name}
		if path, err := sm.exec.LookPath(name); err == nil {
			t.Path, t.Found = path, true
		}
		tools = append(tools, t)
	}
	return tools
}

// HoldingProcesses lists processes with open files below any of mountpoints
func (sm *SystemMonitor) HoldingProcesses(mountpoints []string) ([]Holder, error) {
	holders := []Holder{}
	if len(mountpoints) == 0 {
		return holders, nil
	}
	processes, err := process.Processes()
	if err != nil {
		return holders, err
	}

	for _, proc := range processes {
		files, err := proc.OpenFiles()
		if err != nil {
			continue
		}
		if mp := firstUnder(files, mountpoints); mp != "" {
			name, _ := proc.Name()
			holders = append(holders, Holder{PID: proc.Pid, Name: name, Mountpoint: mp})
		}
	}
	sort.Slice(holders, func(i, j int) bool { return holders[i].PID < holders[j].PID })
	return holders, nil
}

func firstUnder(files []process.OpenFilesStat, mountpoints []string) string {
	for _, f := range files {
		for _, mp := range mountpoints {
			if isUnder(f.Path, mp) {
				return mp
			}
		}
	}
	return ""
}

func isUnder(path, mountpoint string) bool {
	mountpoint = filepath.Clean(mountpoint)
	if mountpoint == "/" {
		return false
	}
	path = filepath.Clean(path)
	return path == mountpoint || strings.HasPrefix(path, mountpoint+string(filepath.Separator))
}
