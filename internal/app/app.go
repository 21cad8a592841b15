package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	utilexec "k8s.io/utils/exec"

	"github.com/utkarshgautam22/DiskForge/internal/config"
	"github.com/utkarshgautam22/DiskForge/internal/imaging"
	"github.com/utkarshgautam22/DiskForge/internal/platform"
	"github.com/utkarshgautam22/DiskForge/internal/safety"
	"github.com/utkarshgautam22/DiskForge/internal/system"
)

// Options holds the global flags and the injectable dependencies of the commands
type Options struct {
	ConfigPath string
	LogLevel   string
	LogJSON    bool

	// Host, Exec and Watch replace the OS implementations when set
	Host  platform.Host
	Exec  utilexec.Interface
	Watch func(ctx context.Context, events chan<- platform.DeviceEvent) error
}

// AddFlags registers the global flags on the root command
func (o *Options) AddFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&o.ConfigPath, "config", "", "config file (default $"+config.EnvConfigFile+" or "+config.ConfigFile+")")
	cmd.PersistentFlags().StringVar(&o.LogLevel, "log-level", "", "log level: debug, info, warn, error")
	cmd.PersistentFlags().BoolVar(&o.LogJSON, "log-json", false, "log in JSON format")
}

// Runtime is the wired component graph for one invocation
type Runtime struct {
	Config     *config.Config
	ConfigPath string
	Host       platform.Host
	Classifier *safety.Classifier
	Engine     *imaging.Engine
	Selector   *imaging.Selector
	Monitor    *system.SystemMonitor
	Registry   *prometheus.Registry
	Watch      func(ctx context.Context, events chan<- platform.DeviceEvent) error
}

// Runtime loads the configuration and builds every component
func (o *Options) Runtime() (*Runtime, error) {
	path := config.Path(o.ConfigPath)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := configureLogging(cfg.Log, o); err != nil {
		return nil, err
	}

	exec := o.Exec
	if exec == nil {
		exec = utilexec.New()
	}
	host := o.Host
	if host == nil {
		host = platform.NewHostWithExec(exec)
	}
	watch := o.Watch
	if watch == nil {
		watch = platform.WatchDevices
	}

	classifier := safety.NewClassifier(host,
		safety.WithExtraProtected(cfg.Safety.ExtraProtected...),
		safety.WithSensitive(cfg.Safety.Sensitive...),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	selector := imaging.NewSelector(exec)
	engine := imaging.NewEngine(host, classifier, imaging.Options{
		BlockSize:    cfg.BlockSize(),
		PollInterval: cfg.PollInterval(),
		Verify:       cfg.Write.Verify,
		MountDir:     cfg.Write.MountDir,
		Label:        cfg.Write.Label,
		Selector:     selector,
		Metrics:      imaging.NewMetrics(reg),
	})

	return &Runtime{
		Config:     cfg,
		ConfigPath: path,
		Host:       host,
		Classifier: classifier,
		Engine:     engine,
		Selector:   selector,
		Monitor:    system.NewSystemMonitor(exec),
		Registry:   reg,
		Watch:      watch,
	}, nil
}

func configureLogging(cfg config.LogConfig, o *Options) error {
	level := cfg.Level
	if o.LogLevel != "" {
		level = o.LogLevel
	}
	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	log.SetLevel(lvl)
	if cfg.JSON || o.LogJSON {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}

// NewRootCommand assembles the diskforge command tree
func NewRootCommand(o *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "diskforge",
		Short:         "Inspect, format and write removable disks without touching the system disk",
		Long:          "DiskForge lists storage devices, grades how risky it is to modify each one, formats them and writes bootable images.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.CompletionOptions.DisableDefaultCmd = true
	o.AddFlags(cmd)
	cmd.AddCommand(
		NewListCommand(o),
		NewAssessCommand(o),
		NewFormatCommand(o),
		NewWriteCommand(o),
		NewInspectCommand(o),
		NewMountCommand(o),
		NewUnmountCommand(o),
		NewWatchCommand(o),
		NewInfoCommand(o),
		NewServeCommand(o),
		NewServiceCommand(o),
		NewConfigCommand(o),
	)
	return cmd
}
