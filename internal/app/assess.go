package app

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/utkarshgautam22/DiskForge/internal/platform"
)

func NewAssessCommand(o *Options) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "assess DEVICE",
		Short: "Show how risky it is to modify a device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := o.Runtime()
			if err != nil {
				return err
			}
			a, err := rt.Classifier.Assess(args[0])
			if err != nil && !platform.IsProbeError(err) {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), a)
			}

			mounts := make([]string, 0, len(a.MountedPartitions))
			for _, m := range a.MountedPartitions {
				mounts = append(mounts, fmt.Sprintf("%s on %s", m.Device, m.Mountpoint))
			}
			rows := []table.Row{
				{"Device", a.Device},
				{"Risk", strings.ToUpper(string(a.RiskTier))},
				{"System device", yesNo(a.IsSystemDevice)},
				{"Removable", yesNo(a.IsRemovable)},
				{"Mounted", strings.Join(mounts, "\n")},
				{"Safe to modify", yesNo(rt.Classifier.IsSafeDevice(a.Device))},
			}
			if len(a.Reasons) > 0 {
				rows = append(rows, table.Row{"Reasons", strings.Join(a.Reasons, "\n")})
			}
			printTable(cmd.OutOrStdout(), "Safety assessment", table.Row{"Field", "Value"}, rows)
			if a.Degraded {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: assessment degraded: %v\n", err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
