package imaging

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/utkarshgautam22/DiskForge/internal/platform"
)

const (
	DefaultBlockSize    = 4 << 20
	DefaultPollInterval = 250 * time.Millisecond
	DefaultLabel        = "DISKFORGE"
	DefaultJobHistory   = 32
)

// Guard decides whether a device may be mutated
type Guard interface {
	IsSafeDevice(id string) bool
}

// Options tunes the engine. Zero values select the defaults.
type Options struct {
	BlockSize    int
	PollInterval time.Duration
	// Verify reads a raw copy back and compares BLAKE2b digests before reporting success
	Verify   bool
	MountDir string
	Label    string
	Selector *Selector
	Metrics  *Metrics
	// JobHistory caps how many jobs Job can still look up; running jobs are never dropped
	JobHistory int
}

// Engine runs at most one write or format at a time
type Engine struct {
	util  platform.DiskUtility
	guard Guard
	opts  Options

	mu         sync.Mutex
	active     *WriteJob
	formatting bool
	jobs       map[string]*WriteJob
	order      []string
}

func NewEngine(util platform.DiskUtility, guard Guard, opts Options) *Engine {
	if opts.BlockSize <= 0 {
		opts.BlockSize = DefaultBlockSize
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.MountDir == "" {
		opts.MountDir = os.TempDir()
	}
	if opts.Label == "" {
		opts.Label = DefaultLabel
	}
	if opts.JobHistory <= 0 {
		opts.JobHistory = DefaultJobHistory
	}
	if opts.Selector == nil {
		opts.Selector = NewSelector(nil)
	}
	return &Engine{util: util, guard: guard, opts: opts, jobs: map[string]*WriteJob{}}
}

// busy reports whether a job is running or a format is in flight. Callers hold e.mu.
func (e *Engine) busy() bool {
	return e.formatting || (e.active != nil && e.active.State() == StateRunning)
}

// StartWrite validates the request and starts writing image to target on a new goroutine.
// Nothing is started when an error is returned.
func (e *Engine) StartWrite(image, target string, strategy Strategy, onProgress ProgressFunc) (*WriteJob, error) {
	if !strategy.valid() {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedStrategy, strategy)
	}
	if err := checkReadable(image); err != nil {
		return nil, err
	}
	if !e.guard.IsSafeDevice(target) {
		return nil, fmt.Errorf("%w: %s", ErrUnsafeTarget, target)
	}
	if strategy == StrategyAuto {
		strategy = e.opts.Selector.Select(context.Background(), image)
	}

	if err := e.lockIdle(); err != nil {
		return nil, err
	}
	defer e.mu.Unlock()

	job := newJob(image, target, strategy, onProgress)
	ctx, cancel := context.WithCancel(context.Background())
	job.cancel = cancel
	e.active = job
	e.remember(job)
	e.opts.Metrics.jobStarted()

	log.WithFields(log.Fields{"job": job.ID, "image": image, "device": target, "strategy": strategy}).Info("Write job started")
	go e.run(ctx, job)
	return job, nil
}

// lockIdle takes e.mu once nothing is running and the previous job goroutine has exited
func (e *Engine) lockIdle() error {
	for {
		e.mu.Lock()
		if e.busy() {
			e.mu.Unlock()
			return ErrEngineBusy
		}
		prev := e.active
		if prev == nil {
			return nil
		}
		select {
		case <-prev.Done():
			return nil
		default:
		}
		e.mu.Unlock()
		<-prev.Done()
	}
}

func checkReadable(image string) error {
	f, err := os.Open(image)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrImageUnreadable, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrImageUnreadable, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrImageUnreadable, image)
	}
	return nil
}

func (e *Engine) run(ctx context.Context, job *WriteJob) {
	defer job.cancel()
	written, err := e.execute(ctx, job)
	if err != nil && ctx.Err() != nil {
		err = ErrCancelled
	} else if err != nil {
		err = fmt.Errorf("%w: %w", ErrWriteFailure, err)
	}
	job.finish(err, func() { e.opts.Metrics.jobFinished(job, written) })

	entry := log.WithFields(log.Fields{"job": job.ID, "device": job.Target, "state": job.State(), "bytes": written})
	if err != nil && !errors.Is(err, ErrCancelled) {
		entry.WithError(err).Error("Write job failed")
		return
	}
	entry.Info("Write job finished")
}

func (e *Engine) execute(ctx context.Context, job *WriteJob) (int64, error) {
	job.report(0, "Unmounting target")
	e.unmount(ctx, job.Target)
	switch job.Strategy {
	case RawCopy:
		return e.rawCopy(ctx, job)
	case FilesystemExtract, OSInstallerExtract:
		return e.extract(ctx, job)
	}
	return 0, fmt.Errorf("%w: %v", ErrUnsupportedStrategy, job.Strategy)
}

// unmount releases every partition of target; failures are only logged
func (e *Engine) unmount(ctx context.Context, target string) {
	if isImageFile(target) {
		return
	}
	if err := e.util.Unmount(ctx, target); err != nil {
		var ue *platform.UnmountError
		if errors.As(err, &ue) {
			log.WithError(ue.Err).WithFields(log.Fields{"device": target, "mountpoint": ue.Mountpoint}).Warn("UnmountFailure, continuing")
			return
		}
		log.WithError(err).WithField("device", target).Warn("UnmountFailure, continuing")
	}
}

// Cancel stops job. Its progress stays at the last published value.
func (e *Engine) Cancel(job *WriteJob) {
	if job == nil {
		return
	}
	if job.markCancelled() {
		log.WithField("job", job.ID).Info("Cancelling write job")
	}
	if job.cancel != nil {
		job.cancel()
	}
}

// remember records job and forgets the oldest finished jobs beyond JobHistory. Callers hold e.mu.
func (e *Engine) remember(job *WriteJob) {
	e.jobs[job.ID] = job
	e.order = append(e.order, job.ID)
	for i := 0; len(e.order) > e.opts.JobHistory && i < len(e.order); {
		old := e.jobs[e.order[i]]
		if old == job || !old.State().Terminal() {
			i++
			continue
		}
		delete(e.jobs, old.ID)
		e.order = append(e.order[:i], e.order[i+1:]...)
	}
}

// Active returns the most recent job, or nil
func (e *Engine) Active() *WriteJob {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Job looks up a job started by this engine
func (e *Engine) Job(id string) (*WriteJob, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	job, ok := e.jobs[id]
	return job, ok
}

// Format erases target and creates fs on it synchronously
func (e *Engine) Format(ctx context.Context, target string, fs platform.Filesystem) error {
	if !platform.Supports(e.util.Filesystems(), fs) {
		return fmt.Errorf("%w: %s", platform.ErrUnsupportedFilesystem, fs)
	}
	if !e.guard.IsSafeDevice(target) {
		return fmt.Errorf("%w: %s", ErrUnsafeTarget, target)
	}

	if err := e.lockIdle(); err != nil {
		return err
	}
	e.formatting = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.formatting = false
		e.mu.Unlock()
	}()

	log.WithFields(log.Fields{"device": target, "filesystem": fs}).Info("Formatting device")
	e.unmount(ctx, target)
	err := e.util.Format(ctx, target, fs, e.opts.Label)
	e.opts.Metrics.formatDone(string(fs), err)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailure, err)
	}
	return nil
}
