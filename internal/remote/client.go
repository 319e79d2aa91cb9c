// Package remote is the HTTP client for the document conversion service.
// It speaks the service's wire protocol (multipart upload, status polling,
// artifact download) and maps every failure onto the domain error types.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/marek/docmill/internal/domain"
)

// uploadField is the multipart form field name the service expects. Every
// file in a batch is appended under this same key.
const uploadField = "files"

// Config holds connection settings for the conversion service.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client is a thin wrapper around resty bound to one service instance.
type Client struct {
	http *resty.Client
}

// NewClient creates a client for the service at cfg.BaseURL.
// Parameters:
//   - cfg: connection settings; a zero Timeout falls back to domain.RequestTimeout.
//
// Returns:
//   - *Client: initialized client.
func NewClient(cfg *Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = domain.RequestTimeout
	}

	client := resty.New()
	client.SetBaseURL(strings.TrimRight(cfg.BaseURL, "/"))
	// Set timeout to prevent hanging requests
	client.SetTimeout(timeout)

	return &Client{http: client}
}

type uploadResponse struct {
	JobID string `json:"job_id"`
}

// SubmitFiles uploads a batch of documents as one multipart request and
// returns the job id the service assigned. All files travel in a single
// request; the service either accepts the whole batch or none of it.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - files: local files to upload; paths must be readable.
//
// Returns:
//   - string: job id for the accepted batch.
//   - error: *domain.SubmissionError if the upload fails at any stage.
func (c *Client) SubmitFiles(ctx context.Context, files []domain.LocalFile) (string, error) {
	req := c.http.R().SetContext(ctx)

	handles := make([]*os.File, 0, len(files))
	defer func() {
		for _, fh := range handles {
			fh.Close()
		}
	}()

	for _, f := range files {
		fh, err := os.Open(f.Path)
		if err != nil {
			return "", &domain.SubmissionError{
				Message: fmt.Sprintf("cannot read %s: %v", f.Name, err),
				Err:     err,
			}
		}
		handles = append(handles, fh)
		req.SetFileReader(uploadField, f.Name, fh)
	}

	httpResp, err := req.Post("/upload-files/")
	if err != nil {
		return "", &domain.SubmissionError{Message: err.Error(), Err: err}
	}

	if httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		msg := NormalizeErrorBody(httpResp.Body(), fmt.Sprintf("HTTP %d", httpResp.StatusCode()))
		return "", &domain.SubmissionError{Message: msg}
	}

	var resp uploadResponse
	if err := json.Unmarshal(httpResp.Body(), &resp); err != nil {
		return "", &domain.SubmissionError{Message: "unreadable upload response", Err: err}
	}
	if resp.JobID == "" {
		return "", &domain.SubmissionError{Message: "upload response did not include a job id"}
	}

	return resp.JobID, nil
}

// StatusReport is the raw status payload for one job. Status is passed
// through untouched; interpretation (casing, whitespace, unknown values)
// belongs to the caller.
type StatusReport struct {
	Status      string   `json:"status"`
	OutputFiles []string `json:"output_files"`
	Error       string   `json:"error"`
}

// JobStatus fetches the current status of a job.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - jobID: id returned by SubmitFiles.
//
// Returns:
//   - *StatusReport: decoded payload.
//   - error: *domain.PollError on transport failure, non-2xx response, or a
//     body that is not valid JSON.
func (c *Client) JobStatus(ctx context.Context, jobID string) (*StatusReport, error) {
	httpResp, err := c.http.R().
		SetContext(ctx).
		Get("/job-status/" + url.PathEscape(jobID))

	if err != nil {
		return nil, &domain.PollError{Message: err.Error(), Err: err}
	}

	if httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		msg := NormalizeErrorBody(httpResp.Body(), fmt.Sprintf("HTTP %d", httpResp.StatusCode()))
		return nil, &domain.PollError{Message: msg}
	}

	var report StatusReport
	if err := json.Unmarshal(httpResp.Body(), &report); err != nil {
		return nil, &domain.PollError{Message: "unreadable status response", Err: err}
	}

	return &report, nil
}

// FileList is the JSON fallback the download endpoint answers with when it
// will not stream bytes directly (typically when a job produced several
// outputs and none was named).
type FileList struct {
	Files []string `json:"files"`
	URLs  []string `json:"download_urls"`
}

// FileResult is the outcome of a download request: either raw bytes with a
// resolved filename, or a FileList when the service answered with a listing.
// Exactly one of Data/FileList is meaningful.
type FileResult struct {
	Filename string
	Data     []byte
	FileList *FileList
}

// FetchFile downloads one output artifact of a job. When filename is empty
// the service decides what to send; it may answer with a JSON file listing
// instead of bytes, which is detected by content type and returned as a
// FileList rather than treated as an error.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - jobID: id of a completed job.
//   - filename: specific output to fetch; empty lets the service choose.
//
// Returns:
//   - *FileResult: bytes plus resolved filename, or a file listing.
//   - error: *domain.DownloadError on any failure.
func (c *Client) FetchFile(ctx context.Context, jobID, filename string) (*FileResult, error) {
	req := c.http.R().SetContext(ctx)
	if filename != "" {
		req.SetQueryParam("filename", filename)
	}

	httpResp, err := req.Get("/download/" + url.PathEscape(jobID))
	if err != nil {
		return nil, &domain.DownloadError{Message: err.Error(), Err: err}
	}

	if httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		msg := NormalizeErrorBody(httpResp.Body(), fmt.Sprintf("HTTP %d", httpResp.StatusCode()))
		return nil, &domain.DownloadError{Message: msg}
	}

	if isJSONResponse(httpResp) {
		var list FileList
		if err := json.Unmarshal(httpResp.Body(), &list); err != nil {
			return nil, &domain.DownloadError{Message: "unreadable file listing", Err: err}
		}
		return &FileResult{FileList: &list}, nil
	}

	name := filename
	if name == "" {
		name = filenameFromDisposition(httpResp.Header().Get("Content-Disposition"))
	}
	if name == "" {
		return nil, &domain.DownloadError{Message: "service did not name the downloaded file"}
	}

	return &FileResult{Filename: name, Data: httpResp.Body()}, nil
}

// FetchArchive downloads every output of a job bundled into one archive.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - jobID: id of a completed job.
//
// Returns:
//   - *FileResult: archive bytes; Filename comes from Content-Disposition or
//     falls back to domain.DefaultArchiveName.
//   - error: *domain.DownloadError on any failure.
func (c *Client) FetchArchive(ctx context.Context, jobID string) (*FileResult, error) {
	httpResp, err := c.http.R().
		SetContext(ctx).
		Get("/download-all/" + url.PathEscape(jobID))

	if err != nil {
		return nil, &domain.DownloadError{Message: err.Error(), Err: err}
	}

	if httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		msg := NormalizeErrorBody(httpResp.Body(), fmt.Sprintf("HTTP %d", httpResp.StatusCode()))
		return nil, &domain.DownloadError{Message: msg}
	}

	// The archive endpoint never answers with a listing; JSON here means the
	// service is telling us something went wrong.
	if isJSONResponse(httpResp) {
		msg := NormalizeErrorBody(httpResp.Body(), "unexpected response from archive download")
		return nil, &domain.DownloadError{Message: msg}
	}

	name := filenameFromDisposition(httpResp.Header().Get("Content-Disposition"))
	if name == "" {
		name = domain.DefaultArchiveName
	}

	return &FileResult{Filename: name, Data: httpResp.Body()}, nil
}

// isJSONResponse reports whether the response body is declared as JSON.
func isJSONResponse(resp *resty.Response) bool {
	mediaType, _, err := mime.ParseMediaType(resp.Header().Get("Content-Type"))
	if err != nil {
		return false
	}
	return mediaType == "application/json"
}

// filenameFromDisposition extracts the filename parameter from a
// Content-Disposition header. Returns "" when the header is missing or does
// not carry one.
func filenameFromDisposition(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return params["filename"]
}
