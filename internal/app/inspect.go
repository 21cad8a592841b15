package app

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/utkarshgautam22/DiskForge/internal/imaging"
)

type inspectResult struct {
	Image    string           `json:"image"`
	Markers  imaging.Markers  `json:"markers"`
	Strategy imaging.Strategy `json:"strategy"`
}

func NewInspectCommand(o *Options) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "inspect IMAGE",
		Short: "Show the boot markers found in an image and the write method auto selects",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := o.Runtime()
			if err != nil {
				return err
			}
			markers, err := rt.Selector.Inspect(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			res := inspectResult{Image: args[0], Markers: markers, Strategy: rt.Selector.Select(cmd.Context(), args[0])}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), res)
			}
			printTable(cmd.OutOrStdout(), res.Image, table.Row{"Check", "Result"}, []table.Row{
				{"OS installer payload", yesNo(markers.Installer)},
				{"EFI boot directory", yesNo(markers.EFIBoot)},
				{"ISOLINUX", yesNo(markers.Isolinux)},
				{"Write method", res.Strategy.String()},
			})
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
