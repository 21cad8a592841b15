package app

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/progress"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/utkarshgautam22/DiskForge/internal/imaging"
)

type writeOptions struct {
	method   string
	confirm  string
	progress bool
}

func NewWriteCommand(o *Options) *cobra.Command {
	w := &writeOptions{}
	cmd := &cobra.Command{
		Use:   "write IMAGE DEVICE",
		Short: "Write a disk image to a device",
		Long: `Write a disk image to a device.

The method is chosen from the image contents unless --method is given:
  raw        block-for-block copy, for hybrid and plain images
  extract    copy the image's files onto a fresh filesystem
  installer  like extract, labelled for OS installer media`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return w.run(cmd, o, args[0], args[1])
		},
	}
	cmd.Flags().StringVarP(&w.method, "method", "m", "auto", "write method: auto, raw, extract, installer")
	cmd.Flags().StringVar(&w.confirm, "confirm", "", "confirmation phrase, skips the interactive prompt")
	cmd.Flags().BoolVar(&w.progress, "progress", true, "show a progress bar")
	return cmd
}

func (w *writeOptions) run(cmd *cobra.Command, o *Options, image, device string) error {
	strategy, err := imaging.ParseStrategy(w.method)
	if err != nil {
		return err
	}
	rt, err := o.Runtime()
	if err != nil {
		return err
	}
	if err := confirmDevice(cmd, rt, device, "write an image to", w.confirm); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pw progress.Writer
	var tracker *progress.Tracker
	if w.progress {
		pw = progress.NewWriter()
		pw.SetOutputWriter(cmd.ErrOrStderr())
		pw.SetUpdateFrequency(100 * time.Millisecond)
		tracker = &progress.Tracker{Message: "Starting", Total: 100}
		pw.AppendTracker(tracker)
		go pw.Render()
	}
	onProgress := func(u imaging.Update) {
		if tracker == nil {
			return
		}
		tracker.UpdateMessage(u.Status)
		tracker.SetValue(int64(u.Progress))
	}

	job, err := rt.Engine.StartWrite(image, device, strategy, onProgress)
	if err != nil {
		if pw != nil {
			tracker.MarkAsErrored()
			pw.Stop()
		}
		return err
	}
	log.WithFields(log.Fields{"job": job.ID, "strategy": job.Strategy}).Debug("Write job started")

	select {
	case <-job.Done():
	case <-ctx.Done():
		log.Warn("Interrupted, cancelling write")
		rt.Engine.Cancel(job)
		<-job.Done()
	}

	if pw != nil {
		if job.State() == imaging.StateSucceeded {
			tracker.MarkAsDone()
		} else {
			tracker.MarkAsErrored()
		}
		// let the renderer draw the final state
		time.Sleep(150 * time.Millisecond)
		pw.Stop()
	}
	if err := job.Err(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s to %s using %s\n", image, device, job.Strategy)
	return nil
}
