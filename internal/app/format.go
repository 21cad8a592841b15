package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/utkarshgautam22/DiskForge/internal/platform"
)

func NewFormatCommand(o *Options) *cobra.Command {
	var filesystem, confirm string
	cmd := &cobra.Command{
		Use:   "format DEVICE",
		Short: "Erase a device and create a single filesystem on it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			device := args[0]
			fs, err := platform.ParseFilesystem(filesystem)
			if err != nil {
				return err
			}
			rt, err := o.Runtime()
			if err != nil {
				return err
			}
			if !platform.Supports(rt.Host.Filesystems(), fs) {
				return fmt.Errorf("%w: %s on this platform", platform.ErrUnsupportedFilesystem, fs)
			}
			if err := confirmDevice(cmd, rt, device, "format", confirm); err != nil {
				return err
			}

			if err := rt.Engine.Format(cmd.Context(), device, fs); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Formatted %s as %s\n", device, fs)
			return nil
		},
	}
	cmd.Flags().StringVarP(&filesystem, "filesystem", "f", "fat32", "filesystem: fat32, exfat, ntfs, ext4, apfs, hfs+")
	cmd.Flags().StringVar(&confirm, "confirm", "", "confirmation phrase, skips the interactive prompt")
	return cmd
}
