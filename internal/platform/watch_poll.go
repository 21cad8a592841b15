//go:build !linux && !darwin

package platform

import (
	"context"
	"time"
)

// WatchDevices rescans the inventory every two seconds and reports changes until ctx is done
func WatchDevices(ctx context.Context, events chan<- DeviceEvent) error {
	return PollDevices(ctx, NewHost(), 2*time.Second, events)
}
