package imaging

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of a write job
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Terminal reports whether no further transitions can happen
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateCancelled
}

// Update is one published progress change
type Update struct {
	JobID    string `json:"job_id"`
	Progress int    `json:"progress"`
	Status   string `json:"status"`
	State    State  `json:"state"`
}

// ProgressFunc receives updates from the job goroutine. Consecutive values may be coalesced.
type ProgressFunc func(Update)

// WriteJob is one image write running on its own goroutine
type WriteJob struct {
	ID       string
	Image    string
	Target   string
	Strategy Strategy
	Started  time.Time

	mu       sync.RWMutex
	progress int
	status   string
	state    State
	err      error

	cancel     context.CancelFunc
	done       chan struct{}
	onProgress ProgressFunc
}

// Snapshot is the serializable view of a job
type Snapshot struct {
	ID       string    `json:"id"`
	Image    string    `json:"image"`
	Target   string    `json:"target"`
	Strategy Strategy  `json:"strategy"`
	Progress int       `json:"progress"`
	Status   string    `json:"status"`
	State    State     `json:"state"`
	Error    string    `json:"error,omitempty"`
	Started  time.Time `json:"started"`
}

func newJob(image, target string, strategy Strategy, onProgress ProgressFunc) *WriteJob {
	return &WriteJob{
		ID:         uuid.New().String(),
		Image:      image,
		Target:     target,
		Strategy:   strategy,
		Started:    time.Now(),
		status:     "Starting",
		state:      StateRunning,
		done:       make(chan struct{}),
		onProgress: onProgress,
	}
}

// Progress returns the percentage, status line and state
func (j *WriteJob) Progress() (int, string, State) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.progress, j.status, j.state
}

func (j *WriteJob) State() State {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.state
}

// Err returns the terminal error: nil on success, ErrCancelled after Cancel
func (j *WriteJob) Err() error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.err
}

// Done is closed once the job goroutine has exited
func (j *WriteJob) Done() <-chan struct{} {
	return j.done
}

// Wait blocks until the job ends or ctx is done
func (j *WriteJob) Wait(ctx context.Context) error {
	select {
	case <-j.done:
		return j.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *WriteJob) Snapshot() Snapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()
	s := Snapshot{
		ID:       j.ID,
		Image:    j.Image,
		Target:   j.Target,
		Strategy: j.Strategy,
		Progress: j.progress,
		Status:   j.status,
		State:    j.state,
		Started:  j.Started,
	}
	if j.err != nil {
		s.Error = j.err.Error()
	}
	return s
}

// report publishes progress while running. Progress never decreases and stays below 100
// until finish; updates after Cancel are dropped.
func (j *WriteJob) report(progress int, status string) {
	j.mu.Lock()
	if j.state != StateRunning {
		j.mu.Unlock()
		return
	}
	if progress < j.progress {
		progress = j.progress
	}
	if progress > 99 {
		progress = 99
	}
	if status == "" {
		status = j.status
	}
	if progress == j.progress && status == j.status {
		j.mu.Unlock()
		return
	}
	j.progress, j.status = progress, status
	u := Update{JobID: j.ID, Progress: progress, Status: status, State: j.state}
	j.mu.Unlock()
	j.publish(u)
}

// markCancelled moves a running job to Cancelled, freezing its progress
func (j *WriteJob) markCancelled() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != StateRunning {
		return false
	}
	j.state = StateCancelled
	j.status = "Operation cancelled"
	j.err = ErrCancelled
	return true
}

// finish records the outcome, runs settled once the terminal state is visible,
// then publishes the final update and closes Done
func (j *WriteJob) finish(err error, settled func()) {
	final := j.settle(err)
	if settled != nil {
		settled()
	}
	j.close(final)
}

// settle moves a running job to its terminal state
func (j *WriteJob) settle(err error) Update {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state == StateRunning {
		switch {
		case err == nil:
			j.state, j.progress, j.status = StateSucceeded, 100, "Write completed successfully"
		case errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled):
			j.state, j.status, j.err = StateCancelled, "Operation cancelled", ErrCancelled
		default:
			j.state, j.status, j.err = StateFailed, err.Error(), err
		}
	}
	return Update{JobID: j.ID, Progress: j.progress, Status: j.status, State: j.state}
}

func (j *WriteJob) close(final Update) {
	j.publish(final)
	close(j.done)
}

func (j *WriteJob) publish(u Update) {
	if j.onProgress != nil {
		j.onProgress(u)
	}
}
