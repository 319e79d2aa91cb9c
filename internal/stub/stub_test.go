package stub

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

type testFile struct {
	name    string
	content string
}

func newTestRouter(t *testing.T, stepDelay time.Duration) *gin.Engine {
	t.Helper()
	store := NewStore(&StoreConfig{WorkDir: t.TempDir(), StepDelay: stepDelay}, nil)
	return SetupRouter(store, nil, "test", CORSConfig{AllowAllOrigins: true})
}

func do(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func uploadRequest(t *testing.T, files []testFile) *http.Request {
	t.Helper()
	body := new(bytes.Buffer)
	mw := multipart.NewWriter(body)
	for _, f := range files {
		fw, err := mw.CreateFormFile("files", f.name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write([]byte(f.content)); err != nil {
			t.Fatal(err)
		}
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/upload-files/", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func submit(t *testing.T, r *gin.Engine, files []testFile) string {
	t.Helper()
	w := do(r, uploadRequest(t, files))
	if w.Code != http.StatusOK {
		t.Fatalf("upload status = %d, body %s", w.Code, w.Body.String())
	}
	var resp struct {
		JobID string `json:"job_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	if resp.JobID == "" {
		t.Fatal("empty job id")
	}
	return resp.JobID
}

type statusResponse struct {
	Status      string   `json:"status"`
	OutputFiles []string `json:"output_files"`
	Error       string   `json:"error"`
}

func waitForTerminal(t *testing.T, r *gin.Engine, jobID string) statusResponse {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		w := do(r, httptest.NewRequest(http.MethodGet, "/job-status/"+jobID, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("status code = %d", w.Code)
		}
		var resp statusResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode status: %v", err)
		}
		if resp.Status == "completed" || resp.Status == "failed" {
			return resp
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("job never settled")
	return statusResponse{}
}

func TestUploadConvertDownloadFlow(t *testing.T) {
	r := newTestRouter(t, 0)

	jobID := submit(t, r, []testFile{
		{name: "report.docx", content: "report body"},
		{name: "scan.pdf", content: "scan body"},
	})

	resp := waitForTerminal(t, r, jobID)
	if resp.Status != "completed" {
		t.Fatalf("status = %q (%+v)", resp.Status, resp)
	}
	if len(resp.OutputFiles) != 2 {
		t.Fatalf("output_files = %v", resp.OutputFiles)
	}
	if resp.OutputFiles[0] != "report.pdf" || resp.OutputFiles[1] != "scan.pdf" {
		t.Errorf("output names = %v", resp.OutputFiles)
	}

	// A named download streams the converted bytes.
	w := do(r, httptest.NewRequest(http.MethodGet, "/download/"+jobID+"?filename=report.pdf", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("download status = %d", w.Code)
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), "report.pdf") {
		t.Errorf("Content-Disposition = %q", w.Header().Get("Content-Disposition"))
	}
	if w.Body.String() != "report body" {
		t.Errorf("downloaded bytes = %q", w.Body.String())
	}
}

func TestUploadWithoutFiles(t *testing.T) {
	r := newTestRouter(t, 0)

	body := new(bytes.Buffer)
	mw := multipart.NewWriter(body)
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/upload-files/", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	w := do(r, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["detail"] != "no files were uploaded" {
		t.Errorf("detail = %q", resp["detail"])
	}
}

func TestStatusForUnknownJob(t *testing.T) {
	r := newTestRouter(t, 0)

	w := do(r, httptest.NewRequest(http.MethodGet, "/job-status/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["detail"] != "job not found" {
		t.Errorf("detail = %q", resp["detail"])
	}
}

func TestFailingFilenameFailsTheJob(t *testing.T) {
	r := newTestRouter(t, 0)

	jobID := submit(t, r, []testFile{
		{name: "fine.docx", content: "ok"},
		{name: "fail-invoice.docx", content: "doomed"},
	})

	resp := waitForTerminal(t, r, jobID)
	if resp.Status != "failed" {
		t.Fatalf("status = %q, want failed", resp.Status)
	}
	if resp.Error != "conversion error" {
		t.Errorf("error = %q", resp.Error)
	}
	if len(resp.OutputFiles) != 0 {
		t.Errorf("a failed job must not expose outputs, got %v", resp.OutputFiles)
	}
}

func TestDownloadWithoutFilename(t *testing.T) {
	t.Run("single output streams directly", func(t *testing.T) {
		r := newTestRouter(t, 0)
		jobID := submit(t, r, []testFile{{name: "only.docx", content: "single"}})
		waitForTerminal(t, r, jobID)

		w := do(r, httptest.NewRequest(http.MethodGet, "/download/"+jobID, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		if ct := w.Header().Get("Content-Type"); strings.HasPrefix(ct, "application/json") {
			t.Fatalf("single output should stream bytes, got content type %q", ct)
		}
		if !strings.Contains(w.Header().Get("Content-Disposition"), "only.pdf") {
			t.Errorf("Content-Disposition = %q", w.Header().Get("Content-Disposition"))
		}
	})

	t.Run("several outputs answer with a listing", func(t *testing.T) {
		r := newTestRouter(t, 0)
		jobID := submit(t, r, []testFile{
			{name: "a.docx", content: "aa"},
			{name: "b.docx", content: "bb"},
		})
		waitForTerminal(t, r, jobID)

		w := do(r, httptest.NewRequest(http.MethodGet, "/download/"+jobID, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
			t.Fatalf("content type = %q, want JSON listing", ct)
		}

		var listing struct {
			Files []string `json:"files"`
			URLs  []string `json:"download_urls"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &listing); err != nil {
			t.Fatalf("decode listing: %v", err)
		}
		if len(listing.Files) != 2 || len(listing.URLs) != 2 {
			t.Fatalf("listing = %+v", listing)
		}

		// The advertised URLs must actually resolve.
		w = do(r, httptest.NewRequest(http.MethodGet, listing.URLs[0], nil))
		if w.Code != http.StatusOK {
			t.Errorf("following %q returned %d", listing.URLs[0], w.Code)
		}
		if w.Body.String() != "aa" {
			t.Errorf("followed URL body = %q", w.Body.String())
		}
	})
}

func TestDownloadUnknownFilename(t *testing.T) {
	r := newTestRouter(t, 0)
	jobID := submit(t, r, []testFile{{name: "a.docx", content: "aa"}})
	waitForTerminal(t, r, jobID)

	w := do(r, httptest.NewRequest(http.MethodGet, "/download/"+jobID+"?filename=ghost.pdf", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestDownloadBeforeCompletion(t *testing.T) {
	// A huge step delay keeps the job pending for the whole test.
	r := newTestRouter(t, time.Hour)
	jobID := submit(t, r, []testFile{{name: "slow.docx", content: "zz"}})

	w := do(r, httptest.NewRequest(http.MethodGet, "/download/"+jobID, nil))
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["detail"] != "job is not completed" {
		t.Errorf("detail = %q", resp["detail"])
	}
}

func TestDownloadAllBundlesEveryOutput(t *testing.T) {
	r := newTestRouter(t, 0)
	jobID := submit(t, r, []testFile{
		{name: "a.docx", content: "alpha"},
		{name: "b.docx", content: "beta"},
	})
	waitForTerminal(t, r, jobID)

	w := do(r, httptest.NewRequest(http.MethodGet, "/download-all/"+jobID, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), "processed_files.zip") {
		t.Errorf("Content-Disposition = %q", w.Header().Get("Content-Disposition"))
	}

	body := w.Body.Bytes()
	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	if len(zr.File) != 2 {
		t.Fatalf("archive holds %d files, want 2", len(zr.File))
	}

	contents := map[string]string{}
	for _, zf := range zr.File {
		rc, err := zf.Open()
		if err != nil {
			t.Fatal(err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatal(err)
		}
		contents[zf.Name] = string(data)
	}
	if contents["a.pdf"] != "alpha" || contents["b.pdf"] != "beta" {
		t.Errorf("archive contents = %v", contents)
	}
}
