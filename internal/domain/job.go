package domain

import (
	"strings"
	"time"
)

// JobStatus represents the lifecycle state of a conversion job as reported
// by the service. Values include StatusPending, StatusProcessing,
// StatusCompleted, and StatusFailed.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

const (
	// PollInterval is the fixed period between status checks while a job
	// is being watched.
	PollInterval = 2 * time.Second

	// RequestTimeout bounds every individual HTTP request to the service.
	RequestTimeout = 30 * time.Second

	// MaxFileSize is the per-file upload limit enforced before any bytes
	// leave the machine.
	MaxFileSize = 10 << 20 // 10 MiB

	// DefaultArchiveName is used for the bundled download when the service
	// does not name the archive itself.
	DefaultArchiveName = "processed_files.zip"
)

// AllowedExtensions lists the document types the service accepts.
var AllowedExtensions = []string{".docx", ".pdf"}

// ParseStatus normalizes a status string from the wire into a JobStatus.
// Matching is case-insensitive and ignores surrounding whitespace, so
// "Completed", " COMPLETED " and "completed" are the same status. The second
// return value is false for anything the client does not recognize.
func ParseStatus(raw string) (JobStatus, bool) {
	switch JobStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusPending:
		return StatusPending, true
	case StatusProcessing:
		return StatusProcessing, true
	case StatusCompleted:
		return StatusCompleted, true
	case StatusFailed:
		return StatusFailed, true
	}
	return "", false
}

// Terminal reports whether a job in this status will never change again.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ProgressFor maps a recognized status onto the coarse progress scale shown
// to users. Unrecognized statuses never reach this function; the watcher
// keeps the previous value instead.
func ProgressFor(s JobStatus) int {
	switch s {
	case StatusPending:
		return 25
	case StatusProcessing:
		return 50
	case StatusCompleted:
		return 100
	case StatusFailed:
		return 0
	}
	return 0
}

// LocalFile describes a file on disk that is about to be submitted.
type LocalFile struct {
	Name string
	Path string
	Size int64
}

// DownloadLink pairs an output filename with the URL the service exposed
// for it, if any.
type DownloadLink struct {
	Filename string `json:"filename"`
	URL      string `json:"url,omitempty"`
}

// BuildDownloads zips output filenames with their per-file URLs. The URL
// list may be shorter than the file list (or nil); missing entries simply
// leave the link without a direct URL.
func BuildDownloads(files, urls []string) []DownloadLink {
	if len(files) == 0 {
		return nil
	}
	links := make([]DownloadLink, len(files))
	for i, f := range files {
		links[i] = DownloadLink{Filename: f}
		if i < len(urls) {
			links[i].URL = urls[i]
		}
	}
	return links
}

// Snapshot is one observation of a watched job: what the watcher knew right
// after a status check. Err carries the terminal failure when Status is
// StatusFailed, or the poll error that ended the watch.
type Snapshot struct {
	JobID       string
	Status      JobStatus
	Progress    int
	OutputFiles []string
	Downloads   []DownloadLink
	Err         error
}
