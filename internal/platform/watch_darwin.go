//go:build darwin

package platform

import (
	"context"
	"path/filepath"
	"regexp"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

var wholeDiskNode = regexp.MustCompile(`^disk[0-9]+$`)

// WatchDevices reports whole-disk nodes appearing in or vanishing from /dev until ctx is done
func WatchDevices(ctx context.Context, events chan<- DeviceEvent) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add("/dev"); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !wholeDiskNode.MatchString(filepath.Base(ev.Name)) {
				continue
			}
			action := "change"
			switch {
			case ev.Op&fsnotify.Create != 0:
				action = "add"
			case ev.Op&fsnotify.Remove != 0:
				action = "remove"
			}
			log.WithFields(log.Fields{"action": action, "device": ev.Name}).Debug("Device node event")
			select {
			case events <- DeviceEvent{Action: action, Device: ev.Name}:
			case <-ctx.Done():
				return ctx.Err()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("Device watcher error")
		}
	}
}
