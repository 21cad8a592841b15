package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// RunFunc is the long running work of the daemon; it returns once ctx is done
type RunFunc func(ctx context.Context) error

// Daemon runs a RunFunc in the background between Start and Stop
type Daemon struct {
	run RunFunc

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan error
}

func NewDaemon(run RunFunc) *Daemon {
	return &Daemon{run: run}
}

func (d *Daemon) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return fmt.Errorf("daemon already running")
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.done = make(chan error, 1)
	d.running = true
	log.Info("DiskForge daemon starting...")

	go func(done chan<- error) {
		err := d.run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Error("DiskForge daemon stopped with error")
		}
		done <- err
	}(d.done)
	return nil
}

// Stop cancels the daemon and waits up to timeout for it to exit
func (d *Daemon) Stop(timeout time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return fmt.Errorf("daemon not running")
	}

	log.Info("Stopping DiskForge daemon...")
	d.cancel()
	d.running = false
	select {
	case err := <-d.done:
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	case <-time.After(timeout):
		return fmt.Errorf("daemon did not stop within %s", timeout)
	}
}

// Running reports whether Start was called without a matching Stop
func (d *Daemon) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}
