package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/utkarshgautam22/DiskForge/internal/config"
)

func NewConfigCommand(o *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the configuration",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				path := config.Path(o.ConfigPath)
				cfg, err := config.Load(path)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "# %s\n", path)
				return printJSON(cmd.OutOrStdout(), cfg)
			},
		},
		&cobra.Command{
			Use:   "protect MOUNTPOINT",
			Short: "Never allow devices mounted at MOUNTPOINT to be modified",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return updateConfig(cmd, o, func(cfg *config.Config) (bool, string) {
					if !cfg.AddProtected(args[0]) {
						return false, fmt.Sprintf("%s is already protected", args[0])
					}
					return true, fmt.Sprintf("Protected %s", args[0])
				})
			},
		},
		&cobra.Command{
			Use:   "unprotect MOUNTPOINT",
			Short: "Remove a mountpoint added with protect",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return updateConfig(cmd, o, func(cfg *config.Config) (bool, string) {
					if !cfg.RemoveProtected(args[0]) {
						return false, fmt.Sprintf("%s is not in the protected list", args[0])
					}
					return true, fmt.Sprintf("Unprotected %s", args[0])
				})
			},
		},
	)
	return cmd
}

func updateConfig(cmd *cobra.Command, o *Options, change func(*config.Config) (bool, string)) error {
	path := config.Path(o.ConfigPath)
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	changed, msg := change(cfg)
	if changed {
		if err := config.Save(path, cfg); err != nil {
			return err
		}
	}
	fmt.Fprintln(cmd.OutOrStdout(), msg)
	return nil
}
