package app

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewMountCommand(o *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "mount DEVICE DIR",
		Short: "Mount a volume at a directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := o.Runtime()
			if err != nil {
				return err
			}
			mp, err := rt.Host.MountVolume(cmd.Context(), args[0], args[1])
			if err != nil {
				return fmt.Errorf("failed to mount %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Mounted %s at %s\n", args[0], mp)
			return nil
		},
	}
}

func NewUnmountCommand(o *Options) *cobra.Command {
	var showHolders bool
	cmd := &cobra.Command{
		Use:   "unmount DEVICE",
		Short: "Unmount every mounted partition of a device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			device := args[0]
			rt, err := o.Runtime()
			if err != nil {
				return err
			}
			if !rt.Classifier.IsSafeDevice(device) {
				return fmt.Errorf("refusing to unmount %s: device is protected", device)
			}
			if err := rt.Host.Unmount(cmd.Context(), device); err != nil {
				if showHolders {
					printHolders(cmd, rt, device)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Unmounted %s\n", device)
			return nil
		},
	}
	cmd.Flags().BoolVar(&showHolders, "holders", true, "list processes holding the device open when unmount fails")
	return cmd
}

func printHolders(cmd *cobra.Command, rt *Runtime, device string) {
	a, err := rt.Classifier.Assess(device)
	if err != nil || len(a.MountedPartitions) == 0 {
		return
	}
	mountpoints := make([]string, 0, len(a.MountedPartitions))
	for _, m := range a.MountedPartitions {
		mountpoints = append(mountpoints, m.Mountpoint)
	}
	holders, err := rt.Monitor.HoldingProcesses(mountpoints)
	if err != nil {
		return
	}
	for _, h := range holders {
		fmt.Fprintf(cmd.ErrOrStderr(), "  %s (pid %d) is using %s\n", h.Name, h.PID, h.Mountpoint)
	}
}
