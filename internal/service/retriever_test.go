package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/marek/docmill/internal/domain"
	"github.com/marek/docmill/internal/remote"
)

// scriptedFetcher hands back canned download results.
type scriptedFetcher struct {
	file    *remote.FileResult
	archive *remote.FileResult
	err     error
}

func (f *scriptedFetcher) FetchFile(ctx context.Context, jobID, filename string) (*remote.FileResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.file, nil
}

func (f *scriptedFetcher) FetchArchive(ctx context.Context, jobID string) (*remote.FileResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.archive, nil
}

func assertNoStaleTempFiles(t *testing.T, dir string) {
	t.Helper()
	leftovers, err := filepath.Glob(filepath.Join(dir, ".docmill-tmp-*"))
	if err != nil {
		t.Fatal(err)
	}
	if len(leftovers) != 0 {
		t.Errorf("staging files left behind: %v", leftovers)
	}
}

func TestDownloadOneSavesFile(t *testing.T) {
	dir := t.TempDir()
	fetcher := &scriptedFetcher{
		file: &remote.FileResult{Filename: "report.pdf", Data: []byte("converted bytes")},
	}

	r := NewRetriever(fetcher, nil, dir)
	outcome, err := r.DownloadOne(context.Background(), "job-1", "report.pdf")
	if err != nil {
		t.Fatalf("DownloadOne: %v", err)
	}
	if outcome.Listing() {
		t.Fatal("outcome should be a saved file, not a listing")
	}

	want := filepath.Join(dir, "report.pdf")
	if outcome.Path != want {
		t.Errorf("Path = %q, want %q", outcome.Path, want)
	}

	data, err := os.ReadFile(outcome.Path)
	if err != nil {
		t.Fatalf("read saved file: %v", err)
	}
	if string(data) != "converted bytes" {
		t.Errorf("saved content = %q", data)
	}

	assertNoStaleTempFiles(t, dir)
}

func TestDownloadOneReturnsListing(t *testing.T) {
	dir := t.TempDir()
	fetcher := &scriptedFetcher{
		file: &remote.FileResult{FileList: &remote.FileList{
			Files: []string{"a.pdf", "b.pdf"},
			URLs:  []string{"/download/job-1?filename=a.pdf"},
		}},
	}

	r := NewRetriever(fetcher, nil, dir)
	outcome, err := r.DownloadOne(context.Background(), "job-1", "")
	if err != nil {
		t.Fatalf("DownloadOne: %v", err)
	}
	if !outcome.Listing() {
		t.Fatal("outcome should be a listing")
	}
	if len(outcome.Files) != 2 || len(outcome.Links) != 2 {
		t.Errorf("outcome = %+v", outcome)
	}
	if outcome.Links[1].URL != "" {
		t.Errorf("second link should have no URL, got %q", outcome.Links[1].URL)
	}

	// Nothing may be written for a listing.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("listing wrote files: %v", entries)
	}
}

func TestDownloadAllSavesArchive(t *testing.T) {
	dir := t.TempDir()
	fetcher := &scriptedFetcher{
		archive: &remote.FileResult{Filename: domain.DefaultArchiveName, Data: []byte("PK-fake")},
	}

	r := NewRetriever(fetcher, nil, dir)
	outcome, err := r.DownloadAll(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("DownloadAll: %v", err)
	}

	want := filepath.Join(dir, domain.DefaultArchiveName)
	if outcome.Path != want {
		t.Errorf("Path = %q, want %q", outcome.Path, want)
	}
	assertNoStaleTempFiles(t, dir)
}

func TestSaveStripsPathComponents(t *testing.T) {
	dir := t.TempDir()
	fetcher := &scriptedFetcher{
		file: &remote.FileResult{Filename: "../../escape.pdf", Data: []byte("x")},
	}

	r := NewRetriever(fetcher, nil, dir)
	outcome, err := r.DownloadOne(context.Background(), "job-1", "")
	if err != nil {
		t.Fatalf("DownloadOne: %v", err)
	}

	want := filepath.Join(dir, "escape.pdf")
	if outcome.Path != want {
		t.Errorf("Path = %q, the saved file must stay inside the output directory", outcome.Path)
	}
}

func TestDownloadOverwritesExistingFile(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "report.pdf")
	if err := os.WriteFile(existing, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	fetcher := &scriptedFetcher{
		file: &remote.FileResult{Filename: "report.pdf", Data: []byte("new")},
	}

	r := NewRetriever(fetcher, nil, dir)
	if _, err := r.DownloadOne(context.Background(), "job-1", "report.pdf"); err != nil {
		t.Fatalf("DownloadOne: %v", err)
	}

	data, _ := os.ReadFile(existing)
	if string(data) != "new" {
		t.Errorf("content = %q, want the fresh download", data)
	}
}

func TestSaveCleansUpWhenRenameFails(t *testing.T) {
	dir := t.TempDir()
	// A directory squatting on the target path makes the final rename fail.
	if err := os.Mkdir(filepath.Join(dir, "only.pdf"), 0o755); err != nil {
		t.Fatal(err)
	}

	fetcher := &scriptedFetcher{
		file: &remote.FileResult{Filename: "only.pdf", Data: []byte("x")},
	}

	r := NewRetriever(fetcher, nil, dir)
	_, err := r.DownloadOne(context.Background(), "job-1", "only.pdf")
	if err == nil {
		t.Fatal("expected the save to fail")
	}
	var derr *domain.DownloadError
	if !errors.As(err, &derr) {
		t.Fatalf("error = %T (%v), want *domain.DownloadError", err, err)
	}

	assertNoStaleTempFiles(t, dir)
}

func TestDownloadErrorPassesThrough(t *testing.T) {
	fetcher := &scriptedFetcher{err: &domain.DownloadError{Message: "job is not completed"}}

	r := NewRetriever(fetcher, nil, t.TempDir())
	_, err := r.DownloadOne(context.Background(), "job-1", "a.pdf")

	var derr *domain.DownloadError
	if !errors.As(err, &derr) {
		t.Fatalf("error = %T, want *domain.DownloadError", err)
	}
}
