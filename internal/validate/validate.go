// Package validate holds the pre-flight checks a batch of files must pass
// before it is submitted. The checks are pure predicates over file metadata;
// no file content is read and nothing touches the network.
package validate

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-multierror"

	"github.com/marek/docmill/internal/domain"
)

// Files checks every file in the batch against the service's constraints:
// the extension must be one of domain.AllowedExtensions and the size must
// not exceed domain.MaxFileSize. One offending file rejects the whole batch;
// the returned ValidationError lists every problem, not just the first.
func Files(files []domain.LocalFile) error {
	if len(files) == 0 {
		return &domain.ValidationError{Err: fmt.Errorf("no files selected")}
	}

	var merr *multierror.Error
	for _, f := range files {
		if !allowedExtension(f.Name) {
			merr = multierror.Append(merr, fmt.Errorf(
				"%s: unsupported file type %q (allowed: %s)",
				f.Name, filepath.Ext(f.Name), strings.Join(domain.AllowedExtensions, ", ")))
			continue
		}
		if f.Size > domain.MaxFileSize {
			merr = multierror.Append(merr, fmt.Errorf(
				"%s: %s exceeds the %s limit",
				f.Name, humanize.IBytes(uint64(f.Size)), humanize.IBytes(domain.MaxFileSize)))
		}
	}

	if err := merr.ErrorOrNil(); err != nil {
		return &domain.ValidationError{Err: err}
	}
	return nil
}

func allowedExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range domain.AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}
