package service

import (
	"context"
	"sync"
	"time"

	"github.com/marek/docmill/internal/domain"
	"github.com/marek/docmill/internal/logger"
	"github.com/marek/docmill/internal/remote"
)

// PollClient is the slice of the remote API the monitor needs.
type PollClient interface {
	JobStatus(ctx context.Context, jobID string) (*remote.StatusReport, error)
}

// Monitor watches one job at a time. A watch checks the status immediately,
// then on a fixed interval, and publishes a snapshot after every recognized
// status. The watch ends on a terminal status, on the first poll error, or
// when it is cancelled or superseded by a newer watch.
type Monitor struct {
	client   PollClient
	logger   *logger.Logger
	interval time.Duration

	mu      sync.Mutex
	session *watchSession
}

// watchSession is the handle to one running poll loop.
type watchSession struct {
	jobID  string
	cancel context.CancelFunc
	done   chan struct{} // closed when the loop has fully stopped
}

// MonitorConfig tunes the monitor.
type MonitorConfig struct {
	// Interval between status checks; zero falls back to domain.PollInterval.
	Interval time.Duration
}

// NewMonitor creates a monitor.
// Parameters:
//   - client: status transport.
//   - log: structured logger; nil uses the default.
//   - cfg: optional tuning; nil keeps the defaults.
//
// Returns:
//   - *Monitor: initialized monitor, idle.
func NewMonitor(client PollClient, log *logger.Logger, cfg *MonitorConfig) *Monitor {
	if log == nil {
		log = logger.GetDefault()
	}
	interval := domain.PollInterval
	if cfg != nil && cfg.Interval > 0 {
		interval = cfg.Interval
	}
	return &Monitor{
		client:   client,
		logger:   log.WithField(logger.FieldComponent, "monitor"),
		interval: interval,
	}
}

// Watch begins polling jobID and returns the snapshot stream. Starting a new
// watch tears the previous one down first; there is never more than one poll
// loop alive. The returned channel is closed when the watch ends for any
// reason.
func (m *Monitor) Watch(ctx context.Context, jobID string) <-chan domain.Snapshot {
	ctx, cancel := context.WithCancel(ctx)
	sess := &watchSession{jobID: jobID, cancel: cancel, done: make(chan struct{})}

	m.mu.Lock()
	prev := m.session
	m.session = sess
	m.mu.Unlock()

	if prev != nil {
		prev.cancel()
		<-prev.done
	}

	out := make(chan domain.Snapshot, 1)
	go m.run(ctx, sess, out)
	return out
}

// Cancel stops the active watch, if any. It returns as soon as the watch is
// detached: an in-flight status fetch may still resolve afterwards, but its
// result is discarded. Calling Cancel with no active watch is a no-op, so
// repeated calls are safe.
func (m *Monitor) Cancel() {
	m.mu.Lock()
	sess := m.session
	m.session = nil
	m.mu.Unlock()

	if sess != nil {
		sess.cancel()
	}
}

func (m *Monitor) run(ctx context.Context, sess *watchSession, out chan<- domain.Snapshot) {
	defer close(sess.done)
	defer close(out)
	defer sess.cancel()
	defer func() {
		m.mu.Lock()
		if m.session == sess {
			m.session = nil
		}
		m.mu.Unlock()
	}()

	log := m.logger.WithField(logger.FieldJobID, sess.jobID)

	var (
		progress int
		last     domain.JobStatus
	)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		report, err := m.client.JobStatus(ctx, sess.jobID)

		// A result that arrives after cancellation belongs to nobody.
		if ctx.Err() != nil {
			return
		}

		if err != nil {
			log.WithError(err).Error("status check failed, ending watch")
			send(ctx, out, domain.Snapshot{
				JobID:    sess.jobID,
				Status:   last,
				Progress: progress,
				Err:      err,
			})
			return
		}

		status, ok := domain.ParseStatus(report.Status)
		if !ok {
			// Unknown statuses leave the progress untouched and the watch
			// running; the service may know states this client does not.
			log.WithField(logger.FieldStatus, report.Status).
				Warn("unrecognized job status, continuing to poll")
		} else {
			last = status
			progress = domain.ProgressFor(status)

			snap := domain.Snapshot{
				JobID:    sess.jobID,
				Status:   status,
				Progress: progress,
			}
			switch status {
			case domain.StatusCompleted:
				snap.OutputFiles = report.OutputFiles
				snap.Downloads = domain.BuildDownloads(report.OutputFiles, nil)
			case domain.StatusFailed:
				snap.Err = &domain.JobFailedError{JobID: sess.jobID, Detail: report.Error}
			}

			if !send(ctx, out, snap) {
				return
			}
			if status.Terminal() {
				log.WithFields(logger.Fields{
					logger.FieldStatus: string(status),
					logger.FieldCount:  len(report.OutputFiles),
				}).Info("job settled")
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// send delivers a snapshot unless the watch is cancelled first.
func send(ctx context.Context, out chan<- domain.Snapshot, snap domain.Snapshot) bool {
	select {
	case out <- snap:
		return true
	case <-ctx.Done():
		return false
	}
}
