//go:build linux

package platform

import (
	"context"
	"fmt"

	"github.com/pilebones/go-udev/netlink"
	log "github.com/sirupsen/logrus"
)

func blockDeviceRule() netlink.Matcher {
	return &netlink.RuleDefinitions{
		Rules: []netlink.RuleDefinition{
			{
				Env: map[string]string{
					"SUBSYSTEM": "block",
					"DEVTYPE":   "disk",
				},
			},
		},
	}
}

// WatchDevices forwards udev add/remove/change events for whole disks until ctx is done
func WatchDevices(ctx context.Context, events chan<- DeviceEvent) error {
	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		log.WithError(err).Error("Failed to connect to netlink")
		return err
	}
	defer conn.Close()

	errChan := make(chan error, 1)
	eventChan := make(chan netlink.UEvent)
	quit := conn.Monitor(eventChan, errChan, blockDeviceRule())
	defer func() {
		select {
		case quit <- struct{}{}:
		default:
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-eventChan:
			if !ok {
				return fmt.Errorf("udev event channel closed")
			}
			de := DeviceEvent{Action: string(ev.Action), Device: ev.Env["DEVNAME"]}
			if de.Device != "" {
				de.Device = "/dev/" + de.Device
			}
			if IsVirtualDevice(de.Device) {
				continue
			}
			log.WithFields(log.Fields{"action": de.Action, "device": de.Device}).Debug("Block device event")
			select {
			case events <- de:
			case <-ctx.Done():
				return ctx.Err()
			}
		case err := <-errChan:
			log.WithError(err).Error("Monitor udev event error")
			return err
		}
	}
}
