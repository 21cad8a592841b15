package app

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/utkarshgautam22/DiskForge/internal/config"
	"github.com/utkarshgautam22/DiskForge/internal/service"
)

func NewServiceCommand(o *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage the diskforge API service",
	}

	s := &serveOptions{}
	manager := func() (*service.ServiceManager, error) {
		return service.NewServiceManager(s.runFunc(o), "--config", config.Path(o.ConfigPath))
	}
	action := func(use, short, done string, f func(*service.ServiceManager) error) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if runtime.GOOS != "windows" && os.Geteuid() != 0 {
					return fmt.Errorf("service %s must be run as root", use)
				}
				sm, err := manager()
				if err != nil {
					return err
				}
				if err := f(sm); err != nil {
					return fmt.Errorf("failed to %s service: %w", use, err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), done)
				return nil
			},
		}
	}

	cmd.AddCommand(
		action("install", "Install diskforge as a system service", "Service installed", (*service.ServiceManager).Install),
		action("uninstall", "Remove the system service", "Service uninstalled", (*service.ServiceManager).Uninstall),
		action("start", "Start the system service", "Service started", (*service.ServiceManager).Start),
		action("stop", "Stop the system service", "Service stopped", (*service.ServiceManager).Stop),
		action("restart", "Restart the system service", "Service restarted", (*service.ServiceManager).Restart),
		&cobra.Command{
			Use:   "status",
			Short: "Check service status",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				sm, err := manager()
				if err != nil {
					return err
				}
				status, err := sm.Status()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Service status: %s\n", status)
				fmt.Fprintf(cmd.OutOrStdout(), "Service file: %s\n", service.GetServiceConfigPath())
				return nil
			},
		},
		&cobra.Command{
			Use:    "run",
			Short:  "Run under the service manager",
			Hidden: true,
			Args:   cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				sm, err := manager()
				if err != nil {
					return err
				}
				return sm.Run()
			},
		},
	)
	return cmd
}
