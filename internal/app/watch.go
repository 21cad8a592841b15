package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/utkarshgautam22/DiskForge/internal/platform"
)

func NewWatchCommand(o *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print device hotplug events until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := o.Runtime()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			fmt.Fprintln(cmd.ErrOrStderr(), "Watching for device changes, press Ctrl-C to stop")
			return watchDevices(ctx, rt, cmd.OutOrStdout())
		},
	}
}

// watchDevices refreshes the protected set on every event and echoes events to out when it is not nil
func watchDevices(ctx context.Context, rt *Runtime, out io.Writer) error {
	events := make(chan platform.DeviceEvent, 16)
	errCh := make(chan error, 1)
	go func() { errCh <- rt.Watch(ctx, events) }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			if err == nil || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("device watch failed: %w", err)
		case ev := <-events:
			if err := rt.Classifier.Refresh(); err != nil {
				log.WithError(err).Warn("Failed to refresh protected devices")
			}
			if out != nil {
				if ev.Device != "" {
					fmt.Fprintf(out, "%s %s\n", ev.Action, ev.Device)
				} else {
					fmt.Fprintln(out, ev.Action)
				}
			}
		}
	}
}
