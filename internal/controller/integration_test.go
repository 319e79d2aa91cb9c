package controller

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/marek/docmill/internal/domain"
	"github.com/marek/docmill/internal/remote"
	"github.com/marek/docmill/internal/service"
	"github.com/marek/docmill/internal/stub"
)

// startService boots the in-process stand-in service and returns a controller
// talking to it over real HTTP.
func startService(t *testing.T, outDir string) *Controller {
	t.Helper()

	store := stub.NewStore(&stub.StoreConfig{WorkDir: t.TempDir(), StepDelay: 5 * time.Millisecond}, nil)
	srv := httptest.NewServer(stub.SetupRouter(store, nil, "test", stub.CORSConfig{AllowAllOrigins: true}))
	t.Cleanup(srv.Close)

	client := remote.NewClient(&remote.Config{BaseURL: srv.URL, Timeout: 10 * time.Second})
	sub := service.NewSubmitter(client, nil)
	mon := service.NewMonitor(client, nil, &service.MonitorConfig{Interval: 10 * time.Millisecond})
	ret := service.NewRetriever(client, nil, outDir)
	return New(sub, mon, ret, nil)
}

func writeLocal(t *testing.T, dir, name, content string) domain.LocalFile {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return domain.LocalFile{Name: name, Path: path, Size: int64(len(content))}
}

func TestRoundTripAgainstService(t *testing.T) {
	inDir := t.TempDir()
	outDir := t.TempDir()
	c := startService(t, outDir)

	batch := []domain.LocalFile{
		writeLocal(t, inDir, "report.docx", "alpha"),
		writeLocal(t, inDir, "scan.pdf", "beta"),
	}
	if err := c.Submit(context.Background(), batch); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	final := waitFor(t, c, "completion", func(st State) bool {
		return st.Status == domain.StatusCompleted
	})
	if final.Progress != 100 {
		t.Errorf("Progress = %d, want 100", final.Progress)
	}
	outputs := append([]string(nil), final.OutputFiles...)
	sort.Strings(outputs)
	if len(outputs) != 2 || outputs[0] != "report.pdf" || outputs[1] != "scan.pdf" {
		t.Fatalf("OutputFiles = %v, want [report.pdf scan.pdf]", final.OutputFiles)
	}

	// Asking for the batch without a filename refreshes the download links
	// from the service's file listing.
	listing, err := c.RequestDownload(context.Background(), "")
	if err != nil {
		t.Fatalf("RequestDownload(listing): %v", err)
	}
	if !listing.Listing() {
		t.Fatal("expected a listing, not a saved file")
	}
	if len(listing.Links) != 2 {
		t.Fatalf("Links = %v, want two entries", listing.Links)
	}
	for _, l := range listing.Links {
		if !strings.Contains(l.URL, "filename=") {
			t.Errorf("link %q carries no filename query", l.URL)
		}
	}

	// A named download lands in the output directory with the converted bytes.
	saved, err := c.RequestDownload(context.Background(), "report.pdf")
	if err != nil {
		t.Fatalf("RequestDownload(report.pdf): %v", err)
	}
	data, err := os.ReadFile(saved.Path)
	if err != nil {
		t.Fatalf("read %s: %v", saved.Path, err)
	}
	if string(data) != "alpha" {
		t.Errorf("downloaded bytes = %q, want %q", data, "alpha")
	}

	// The bundled download is a readable archive with every output inside.
	bundle, err := c.RequestDownloadAll(context.Background())
	if err != nil {
		t.Fatalf("RequestDownloadAll: %v", err)
	}
	if filepath.Base(bundle.Path) != domain.DefaultArchiveName {
		t.Errorf("archive saved as %q, want %q", filepath.Base(bundle.Path), domain.DefaultArchiveName)
	}
	zipped, err := os.ReadFile(bundle.Path)
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(zipped), int64(len(zipped)))
	if err != nil {
		t.Fatalf("archive is not a zip: %v", err)
	}
	if len(zr.File) != 2 {
		t.Errorf("archive holds %d entries, want 2", len(zr.File))
	}
}

func TestFailedJobAgainstService(t *testing.T) {
	inDir := t.TempDir()
	c := startService(t, t.TempDir())

	batch := []domain.LocalFile{writeLocal(t, inDir, "fail-report.docx", "broken")}
	if err := c.Submit(context.Background(), batch); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	final := waitFor(t, c, "failure", func(st State) bool {
		return st.Status == domain.StatusFailed
	})
	if final.Progress != 0 {
		t.Errorf("Progress = %d, want 0", final.Progress)
	}
	if final.Err == nil || !strings.Contains(final.Err.Error(), "conversion error") {
		t.Errorf("Err = %v, want the service's failure detail", final.Err)
	}
}
