package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/utkarshgautam22/DiskForge/internal/system"
)

type infoResult struct {
	System      *system.Info `json:"system"`
	Protected   []string     `json:"protected_devices"`
	Mountpoints []string     `json:"protected_mountpoints"`
}

func NewInfoCommand(o *Options) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show host information, required tools and the protected devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := o.Runtime()
			if err != nil {
				return err
			}
			info, err := rt.Monitor.GetSystemInfo()
			if err != nil {
				return err
			}
			set := rt.Classifier.ProtectedSet()
			res := infoResult{System: info, Protected: set.Devices(), Mountpoints: set.Mountpoints()}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), res)
			}

			out := cmd.OutOrStdout()
			printTable(out, "System", table.Row{"Field", "Value"}, []table.Row{
				{"Hostname", info.Hostname},
				{"OS", fmt.Sprintf("%s %s (%s)", info.Platform, info.PlatformVersion, info.OS)},
				{"Kernel", info.KernelVersion},
				{"Arch", info.Arch},
				{"Uptime", (time.Duration(info.Uptime) * time.Second).String()},
				{"CPUs", info.CPUs},
				{"Memory", fmt.Sprintf("%s / %s (%.1f%%)", formatBytes(info.MemoryUsed), formatBytes(info.MemoryTotal), info.MemoryPercent)},
				{"Privileged", yesNo(info.Privileged)},
			})

			tools := make([]table.Row, 0, len(info.Tools))
			for _, t := range info.Tools {
				path := t.Path
				if !t.Found {
					path = "missing"
				}
				tools = append(tools, table.Row{t.Name, path})
			}
			printTable(out, "Tools", table.Row{"Tool", "Path"}, tools)

			printTable(out, "Protected", table.Row{"Devices", "Mountpoints"}, []table.Row{
				{strings.Join(res.Protected, "\n"), strings.Join(res.Mountpoints, "\n")},
			})
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
