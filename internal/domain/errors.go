package domain

// The client surfaces every failure as one of the error types below, tagged
// by the stage that produced it. Message text is already normalized and safe
// to show to a user.

// ValidationError reports files rejected before any network traffic. Err
// aggregates one entry per offending file.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// SubmissionError means the upload itself failed and no job exists.
type SubmissionError struct {
	Message string
	Err     error
}

func (e *SubmissionError) Error() string {
	return "submit: " + e.Message
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// PollError means a status check failed or returned an unreadable body.
// A poll error ends the watch; the job may still be running server-side.
type PollError struct {
	Message string
	Err     error
}

func (e *PollError) Error() string {
	return "status check: " + e.Message
}

func (e *PollError) Unwrap() error { return e.Err }

// JobFailedError is the terminal failure of a job the service itself
// reported. Detail is the service's explanation and may be empty.
type JobFailedError struct {
	JobID  string
	Detail string
}

func (e *JobFailedError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return "conversion failed"
}

// DownloadError means fetching or saving an output artifact failed.
type DownloadError struct {
	Message string
	Err     error
}

func (e *DownloadError) Error() string {
	return "download: " + e.Message
}

func (e *DownloadError) Unwrap() error { return e.Err }
