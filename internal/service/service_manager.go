package service

import (
	"fmt"
	"os"
	"time"

	"github.com/kardianos/service"
	log "github.com/sirupsen/logrus"
)

const (
	ServiceName = "diskforge"
	stopTimeout = 30 * time.Second
)

type ServiceManager struct {
	service service.Service
	daemon  *Daemon
}

type program struct {
	daemon *Daemon
}

func (p *program) Start(s service.Service) error {
	log.Info("Starting diskforge service...")
	return p.daemon.Start()
}

func (p *program) Stop(s service.Service) error {
	log.Info("Stopping diskforge service...")
	return p.daemon.Stop(stopTimeout)
}

// NewServiceManager wraps run as a system service. args are passed to the
// executable after "service run" when the service manager launches it.
func NewServiceManager(run RunFunc, args ...string) (*ServiceManager, error) {
	execPath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %w", err)
	}

	svcConfig := &service.Config{
		Name:        ServiceName,
		DisplayName: "DiskForge",
		Description: "Disk imaging and formatting API with system disk protection",
		Executable:  execPath,
		Arguments:   append([]string{"service", "run"}, args...),
		Option: service.KeyValue{
			"RunAtLoad": true,
			"KeepAlive": true,
		},
	}

	daemon := NewDaemon(run)
	prg := &program{daemon: daemon}

	svc, err := service.New(prg, svcConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}

	return &ServiceManager{
		service: svc,
		daemon:  daemon,
	}, nil
}

func (sm *ServiceManager) Install() error {
	return sm.service.Install()
}

func (sm *ServiceManager) Uninstall() error {
	return sm.service.Uninstall()
}

func (sm *ServiceManager) Start() error {
	return sm.service.Start()
}

func (sm *ServiceManager) Stop() error {
	return sm.service.Stop()
}

func (sm *ServiceManager) Restart() error {
	return sm.service.Restart()
}

func (sm *ServiceManager) Status() (string, error) {
	status, err := sm.service.Status()
	if err != nil {
		return "Unknown", err
	}
	return statusName(status), nil
}

func statusName(status service.Status) string {
	switch status {
	case service.StatusRunning:
		return "Running"
	case service.StatusStopped:
		return "Stopped"
	case service.StatusUnknown:
		return "Unknown"
	default:
		return fmt.Sprintf("Status(%d)", int(status))
	}
}

// Run blocks until the service manager stops the service
func (sm *ServiceManager) Run() error {
	return sm.service.Run()
}

// GetServiceConfigPath returns platform-specific service config path
func GetServiceConfigPath() string {
	switch service.Platform() {
	case "linux-systemd":
		return "/etc/systemd/system/" + ServiceName + ".service"
	case "darwin-launchd":
		return "/Library/LaunchDaemons/" + ServiceName + ".plist"
	case "windows-service":
		return "Registry: HKEY_LOCAL_MACHINE\\SYSTEM\\CurrentControlSet\\Services\\" + ServiceName
	default:
		return "Unknown platform"
	}
}
