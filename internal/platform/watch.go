package platform

import (
	"context"
	"reflect"
	"time"
)

// DeviceEvent signals that the device inventory may have changed.
// Consumers re-run a full probe; the event only names what triggered it.
type DeviceEvent struct {
	Action string `json:"action"`
	Device string `json:"device,omitempty"`
}

// PollDevices emits an event whenever successive scans of probe differ
func PollDevices(ctx context.Context, probe Probe, interval time.Duration, events chan<- DeviceEvent) error {
	last, _ := probe.ListPhysicalDevices()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			current, err := probe.ListPhysicalDevices()
			if err != nil {
				continue
			}
			if !reflect.DeepEqual(last, current) {
				last = current
				select {
				case events <- DeviceEvent{Action: "change"}:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}
