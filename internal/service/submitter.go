// Package service contains the job lifecycle logic: submitting batches,
// watching a job until it settles, and retrieving what it produced. Each
// piece talks to the conversion service through a narrow client interface so
// tests can script the wire behavior.
package service

import (
	"context"
	"time"

	"github.com/marek/docmill/internal/domain"
	"github.com/marek/docmill/internal/logger"
)

// UploadClient is the slice of the remote API the submitter needs.
type UploadClient interface {
	SubmitFiles(ctx context.Context, files []domain.LocalFile) (string, error)
}

// Submitter uploads validated batches and hands back the job id.
type Submitter struct {
	client UploadClient
	logger *logger.Logger
}

// NewSubmitter creates a submitter.
// Parameters:
//   - client: upload transport.
//   - log: structured logger; nil uses the default.
//
// Returns:
//   - *Submitter: initialized submitter.
func NewSubmitter(client UploadClient, log *logger.Logger) *Submitter {
	if log == nil {
		log = logger.GetDefault()
	}
	return &Submitter{
		client: client,
		logger: log.WithField(logger.FieldComponent, "submitter"),
	}
}

// Submit uploads the batch in one request and returns the assigned job id.
// The batch is expected to have passed validation already; an empty batch is
// rejected here as a final guard.
func (s *Submitter) Submit(ctx context.Context, files []domain.LocalFile) (string, error) {
	if len(files) == 0 {
		return "", &domain.SubmissionError{Message: "nothing to submit"}
	}

	start := time.Now()
	jobID, err := s.client.SubmitFiles(ctx, files)
	if err != nil {
		s.logger.WithError(err).WithField(logger.FieldCount, len(files)).
			Error("batch upload failed")
		return "", err
	}

	s.logger.WithFields(logger.Fields{
		logger.FieldJobID:      jobID,
		logger.FieldCount:      len(files),
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
	}).Info("batch accepted")

	return jobID, nil
}
