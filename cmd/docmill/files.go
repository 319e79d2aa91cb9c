package main

import (
	"fmt"
	"os"

	"github.com/marek/docmill/internal/domain"
)

// gatherFiles resolves command-line paths to local files. Missing paths and
// directories are rejected here; extension and size rules are enforced by the
// submission pipeline.
func gatherFiles(paths []string) ([]domain.LocalFile, error) {
	files := make([]domain.LocalFile, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, &domain.ValidationError{Err: err}
		}
		if info.IsDir() {
			return nil, &domain.ValidationError{Err: fmt.Errorf("%s is a directory", p)}
		}
		files = append(files, domain.LocalFile{
			Name: info.Name(),
			Path: p,
			Size: info.Size(),
		})
	}
	return files, nil
}
