// Package controller ties submission, watching, and retrieval together
// behind one state container. Every mutation funnels through a single locked
// path and carries a generation number, so an update from a superseded
// submission can never clobber the state of a newer one.
package controller

import (
	"context"
	"sync"

	"github.com/marek/docmill/internal/domain"
	"github.com/marek/docmill/internal/logger"
	"github.com/marek/docmill/internal/service"
	"github.com/marek/docmill/internal/validate"
)

// State is the complete client-side view of the current job. The zero value
// means idle: nothing selected, nothing submitted.
type State struct {
	JobID       string
	Status      domain.JobStatus
	Progress    int
	OutputFiles []string
	Downloads   []domain.DownloadLink
	Selection   []domain.LocalFile
	Err         error
}

// Active reports whether a job is being tracked and has not settled yet.
func (s State) Active() bool {
	return s.JobID != "" && !s.Status.Terminal()
}

// clone copies the state deeply enough that callers can hold it without
// racing against later mutations.
func (s State) clone() State {
	out := s
	if s.OutputFiles != nil {
		out.OutputFiles = append([]string(nil), s.OutputFiles...)
	}
	if s.Downloads != nil {
		out.Downloads = append([]domain.DownloadLink(nil), s.Downloads...)
	}
	if s.Selection != nil {
		out.Selection = append([]domain.LocalFile(nil), s.Selection...)
	}
	return out
}

// Controller owns the job state. All methods are safe for concurrent use.
type Controller struct {
	submitter *service.Submitter
	monitor   *service.Monitor
	retriever *service.Retriever
	logger    *logger.Logger

	mu       sync.Mutex
	gen      uint64
	state    State
	listener func(State)
}

// New creates a controller in the idle state.
// Parameters:
//   - submitter: upload service.
//   - monitor: watch service.
//   - retriever: download service.
//   - log: structured logger; nil uses the default.
//
// Returns:
//   - *Controller: initialized controller.
func New(submitter *service.Submitter, monitor *service.Monitor, retriever *service.Retriever, log *logger.Logger) *Controller {
	if log == nil {
		log = logger.GetDefault()
	}
	return &Controller{
		submitter: submitter,
		monitor:   monitor,
		retriever: retriever,
		logger:    log.WithField(logger.FieldComponent, "controller"),
	}
}

// OnChange registers the listener invoked after every state change with a
// copy of the new state. The listener runs inside the update path and must
// not call back into the controller.
func (c *Controller) OnChange(fn func(State)) {
	c.mu.Lock()
	c.listener = fn
	c.mu.Unlock()
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Submit validates the batch, uploads it, and starts watching the assigned
// job. Validation failures reject the whole batch before any network
// traffic and leave a running session untouched. On success the previous
// session (if any) is torn down and a fresh one begins.
func (c *Controller) Submit(ctx context.Context, files []domain.LocalFile) error {
	if err := validate.Files(files); err != nil {
		c.logger.WithError(err).Warn("batch rejected before upload")
		c.update(func(s *State) { s.Err = err })
		return err
	}

	// The new submission supersedes whatever was in flight.
	c.monitor.Cancel()
	gen := c.begin(files)

	jobID, err := c.submitter.Submit(ctx, files)
	if err != nil {
		c.apply(gen, func(s *State) {
			s.Selection = nil
			s.Err = err
		})
		return err
	}

	snaps := c.monitor.Watch(ctx, jobID)
	c.apply(gen, func(s *State) {
		s.JobID = jobID
		s.Selection = nil
	})

	go c.consume(gen, snaps)
	return nil
}

// Cancel stops watching the current job and drops any update still in
// flight. The job itself keeps running server-side; only the local session
// ends. Safe to call at any time, repeatedly.
func (c *Controller) Cancel() {
	c.mu.Lock()
	c.gen++
	c.mu.Unlock()
	c.monitor.Cancel()
}

// RequestDownload fetches one output of the current job and saves it. An
// empty filename lets the service choose; when it answers with a file
// listing instead, the listing refreshes the download links and nothing is
// written to disk.
func (c *Controller) RequestDownload(ctx context.Context, filename string) (*service.Outcome, error) {
	c.mu.Lock()
	jobID := c.state.JobID
	gen := c.gen
	c.mu.Unlock()

	if jobID == "" {
		err := &domain.DownloadError{Message: "no job to download from"}
		c.update(func(s *State) { s.Err = err })
		return nil, err
	}

	outcome, err := c.retriever.DownloadOne(ctx, jobID, filename)
	if err != nil {
		c.apply(gen, func(s *State) { s.Err = err })
		return nil, err
	}

	if outcome.Listing() {
		c.apply(gen, func(s *State) {
			s.OutputFiles = outcome.Files
			s.Downloads = outcome.Links
		})
	}
	return outcome, nil
}

// RequestDownloadAll fetches the bundled archive of every output. It is
// only offered for jobs with more than one output file; a single output
// goes through RequestDownload.
func (c *Controller) RequestDownloadAll(ctx context.Context) (*service.Outcome, error) {
	c.mu.Lock()
	jobID := c.state.JobID
	outputs := len(c.state.OutputFiles)
	gen := c.gen
	c.mu.Unlock()

	if jobID == "" {
		err := &domain.DownloadError{Message: "no job to download from"}
		c.update(func(s *State) { s.Err = err })
		return nil, err
	}
	if outputs < 2 {
		err := &domain.DownloadError{Message: "bundled download needs more than one output file"}
		c.apply(gen, func(s *State) { s.Err = err })
		return nil, err
	}

	outcome, err := c.retriever.DownloadAll(ctx, jobID)
	if err != nil {
		c.apply(gen, func(s *State) { s.Err = err })
		return nil, err
	}
	return outcome, nil
}

// DismissError clears the recorded error without touching anything else.
// Only the newest error is ever kept, so dismissing simply makes room.
func (c *Controller) DismissError() {
	c.update(func(s *State) { s.Err = nil })
}

// begin opens a new generation: the state is reset to a fresh selection and
// every update still tagged with an older generation is dropped from here on.
func (c *Controller) begin(files []domain.LocalFile) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.state = State{Selection: files}
	c.notifyLocked()
	return c.gen
}

// apply is the single gated update path: the mutation runs only if gen is
// still the current generation.
func (c *Controller) apply(gen uint64, mutate func(*State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	mutate(&c.state)
	c.notifyLocked()
}

// update mutates the current state regardless of generation. Used for
// actions that always refer to "whatever is on screen now", like dismissing
// an error.
func (c *Controller) update(mutate func(*State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	mutate(&c.state)
	c.notifyLocked()
}

func (c *Controller) notifyLocked() {
	if c.listener != nil {
		c.listener(c.state.clone())
	}
}

// consume applies the watch's snapshots to the state until the stream ends.
func (c *Controller) consume(gen uint64, snaps <-chan domain.Snapshot) {
	for snap := range snaps {
		snap := snap
		c.apply(gen, func(s *State) {
			if snap.Status != "" {
				s.Status = snap.Status
			}
			s.Progress = snap.Progress
			if snap.OutputFiles != nil {
				s.OutputFiles = snap.OutputFiles
				s.Downloads = snap.Downloads
			}
			if snap.Err != nil {
				s.Err = snap.Err
			}
		})
	}
}
