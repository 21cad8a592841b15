package app

import (
	"fmt"

	"github.com/gobwas/glob"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/utkarshgautam22/DiskForge/internal/platform"
)

type listOptions struct {
	match string
	json  bool
}

func (l *listOptions) matcher() (glob.Glob, error) {
	if l.match == "" {
		return nil, nil
	}
	g, err := glob.Compile(l.match)
	if err != nil {
		return nil, fmt.Errorf("invalid --match pattern %q: %w", l.match, err)
	}
	return g, nil
}

func NewListCommand(o *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List storage devices and partitions",
	}
	cmd.AddCommand(newListDisksCommand(o), newListPartitionsCommand(o))
	return cmd
}

func newListDisksCommand(o *Options) *cobra.Command {
	l := &listOptions{}
	cmd := &cobra.Command{
		Use:     "disks",
		Aliases: []string{"devices"},
		Short:   "List physical storage devices",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := o.Runtime()
			if err != nil {
				return err
			}
			g, err := l.matcher()
			if err != nil {
				return err
			}
			devices, err := rt.Host.ListPhysicalDevices()
			if err != nil {
				return err
			}
			selected := []platform.PhysicalDevice{}
			for _, d := range devices {
				if g == nil || g.Match(d.Path) {
					selected = append(selected, d)
				}
			}
			if l.json {
				return printJSON(cmd.OutOrStdout(), selected)
			}

			rows := make([]table.Row, 0, len(selected))
			for _, d := range selected {
				safe := "no"
				if rt.Classifier.IsSafeDevice(d.Path) {
					safe = "yes"
				}
				rows = append(rows, table.Row{d.Path, formatBytes(d.Size), d.Model, d.Transport, yesNo(d.Removable), safe})
			}
			printTable(cmd.OutOrStdout(), "Disks", table.Row{"Device", "Size", "Model", "Transport", "Removable", "Safe"}, rows)
			return nil
		},
	}
	cmd.Flags().StringVar(&l.match, "match", "", "only show devices whose path matches this glob")
	cmd.Flags().BoolVar(&l.json, "json", false, "print JSON")
	return cmd
}

func newListPartitionsCommand(o *Options) *cobra.Command {
	l := &listOptions{}
	cmd := &cobra.Command{
		Use:   "partitions",
		Short: "List partitions with mountpoints and usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := o.Runtime()
			if err != nil {
				return err
			}
			g, err := l.matcher()
			if err != nil {
				return err
			}
			parts, err := rt.Host.ListPartitions()
			if err != nil {
				return err
			}
			selected := []platform.Partition{}
			for _, p := range parts {
				if g == nil || g.Match(p.Path) {
					selected = append(selected, p)
				}
			}
			if l.json {
				return printJSON(cmd.OutOrStdout(), selected)
			}

			rows := make([]table.Row, 0, len(selected))
			for _, p := range selected {
				usage := "-"
				if p.PercentUsed != nil {
					usage = fmt.Sprintf("%.1f%%", *p.PercentUsed)
				}
				rows = append(rows, table.Row{p.Path, formatBytes(p.Size), orDash(p.FSType), p.Label, orDash(p.Mountpoint), usage})
			}
			printTable(cmd.OutOrStdout(), "Partitions", table.Row{"Partition", "Size", "Filesystem", "Label", "Mountpoint", "Used"}, rows)
			return nil
		},
	}
	cmd.Flags().StringVar(&l.match, "match", "", "only show partitions whose path matches this glob")
	cmd.Flags().BoolVar(&l.json, "json", false, "print JSON")
	return cmd
}
