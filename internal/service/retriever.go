package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/marek/docmill/internal/domain"
	"github.com/marek/docmill/internal/logger"
	"github.com/marek/docmill/internal/remote"
)

// FetchClient is the slice of the remote API the retriever needs.
type FetchClient interface {
	FetchFile(ctx context.Context, jobID, filename string) (*remote.FileResult, error)
	FetchArchive(ctx context.Context, jobID string) (*remote.FileResult, error)
}

// Retriever saves job outputs to the local output directory.
type Retriever struct {
	client FetchClient
	logger *logger.Logger
	outDir string
}

// Outcome is what a download produced: a file written to Path, or a fresh
// file listing when the service answered with one instead of bytes.
type Outcome struct {
	Path  string
	Files []string
	Links []domain.DownloadLink
}

// Listing reports whether the download resolved to a file listing rather
// than a saved file.
func (o *Outcome) Listing() bool { return o.Path == "" }

// NewRetriever creates a retriever writing into outputDir.
// Parameters:
//   - client: download transport.
//   - log: structured logger; nil uses the default.
//   - outputDir: directory for saved artifacts, created on demand.
//
// Returns:
//   - *Retriever: initialized retriever.
func NewRetriever(client FetchClient, log *logger.Logger, outputDir string) *Retriever {
	if log == nil {
		log = logger.GetDefault()
	}
	if outputDir == "" {
		outputDir = "."
	}
	return &Retriever{
		client: client,
		logger: log.WithField(logger.FieldComponent, "retriever"),
		outDir: outputDir,
	}
}

// DownloadOne fetches a single output of a job and saves it. An empty
// filename lets the service choose; if it answers with a file listing the
// outcome carries the listing and nothing is written.
func (r *Retriever) DownloadOne(ctx context.Context, jobID, filename string) (*Outcome, error) {
	res, err := r.client.FetchFile(ctx, jobID, filename)
	if err != nil {
		return nil, err
	}

	if res.FileList != nil {
		r.logger.WithFields(logger.Fields{
			logger.FieldJobID: jobID,
			logger.FieldCount: len(res.FileList.Files),
		}).Info("service answered with a file listing")
		return &Outcome{
			Files: res.FileList.Files,
			Links: domain.BuildDownloads(res.FileList.Files, res.FileList.URLs),
		}, nil
	}

	path, err := r.save(res.Filename, res.Data)
	if err != nil {
		return nil, err
	}

	r.logger.WithFields(logger.Fields{
		logger.FieldJobID:    jobID,
		logger.FieldFilename: res.Filename,
		logger.FieldSize:     len(res.Data),
	}).Info("artifact saved")

	return &Outcome{Path: path}, nil
}

// DownloadAll fetches the bundled archive of every output and saves it.
func (r *Retriever) DownloadAll(ctx context.Context, jobID string) (*Outcome, error) {
	start := time.Now()
	res, err := r.client.FetchArchive(ctx, jobID)
	if err != nil {
		return nil, err
	}

	path, err := r.save(res.Filename, res.Data)
	if err != nil {
		return nil, err
	}

	r.logger.WithFields(logger.Fields{
		logger.FieldJobID:      jobID,
		logger.FieldFilename:   res.Filename,
		logger.FieldSize:       len(res.Data),
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
	}).Info("archive saved")

	return &Outcome{Path: path}, nil
}

// save writes data under a temporary name and renames it into place, so a
// failed write never leaves a half-written artifact behind. The temporary
// file is removed on every failure path.
func (r *Retriever) save(name string, data []byte) (string, error) {
	if err := os.MkdirAll(r.outDir, 0o755); err != nil {
		return "", &domain.DownloadError{
			Message: fmt.Sprintf("create output directory: %v", err),
			Err:     err,
		}
	}

	// Base() keeps a hostile Content-Disposition from escaping the
	// output directory.
	target := filepath.Join(r.outDir, filepath.Base(name))

	tmp, err := os.CreateTemp(r.outDir, ".docmill-tmp-*")
	if err != nil {
		return "", &domain.DownloadError{
			Message: fmt.Sprintf("stage download: %v", err),
			Err:     err,
		}
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", &domain.DownloadError{
			Message: fmt.Sprintf("write %s: %v", filepath.Base(name), err),
			Err:     err,
		}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", &domain.DownloadError{
			Message: fmt.Sprintf("close %s: %v", filepath.Base(name), err),
			Err:     err,
		}
	}

	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return "", &domain.DownloadError{
			Message: fmt.Sprintf("chmod %s: %v", filepath.Base(name), err),
			Err:     err,
		}
	}

	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return "", &domain.DownloadError{
			Message: fmt.Sprintf("finalize %s: %v", filepath.Base(name), err),
			Err:     err,
		}
	}

	return target, nil
}
