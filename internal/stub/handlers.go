package stub

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/marek/docmill/internal/domain"
	"github.com/marek/docmill/internal/logger"
)

// Server wires the stub's HTTP handlers to a store.
type Server struct {
	store  *Store
	logger *logger.Logger
}

// NewServer creates a handler set backed by store.
func NewServer(store *Store, log *logger.Logger) *Server {
	if log == nil {
		log = logger.GetDefault()
	}
	return &Server{
		store:  store,
		logger: log.WithField(logger.FieldComponent, "stub-api"),
	}
}

// Health returns the health status of the stub.
func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// UploadFiles handles POST /upload-files/. Every part under the "files"
// field is stored and a new job id is returned.
func (s *Server) UploadFiles(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid multipart form"})
		return
	}

	headers := form.File["files"]
	if len(headers) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "no files were uploaded"})
		return
	}

	files := make([]UploadedFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to read upload"})
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to read upload"})
			return
		}
		files = append(files, UploadedFile{Name: fh.Filename, Data: data})
	}

	id, err := s.store.CreateJob(files)
	if err != nil {
		logger.CtxError(c.Request.Context(), "failed to store upload: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to store upload"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"job_id": id})
}

// JobStatus handles GET /job-status/:id.
func (s *Server) JobStatus(c *gin.Context) {
	j, ok := s.store.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "job not found"})
		return
	}

	resp := gin.H{"status": string(j.Status)}
	if j.Status == domain.StatusCompleted {
		resp["output_files"] = j.Outputs
	}
	if j.Status == domain.StatusFailed {
		resp["error"] = j.Error
	}
	c.JSON(http.StatusOK, resp)
}

// DownloadOne handles GET /download/:id. With a filename query it streams
// that output. Without one it streams the output directly when the job
// produced exactly one file, and answers with a JSON listing of files and
// their download URLs when there are several.
func (s *Server) DownloadOne(c *gin.Context) {
	id := c.Param("id")
	j, ok := s.store.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "job not found"})
		return
	}
	if j.Status != domain.StatusCompleted {
		logger.CtxWarn(c.Request.Context(), "download refused: job %s is %s", id, j.Status)
		c.JSON(http.StatusConflict, gin.H{"detail": "job is not completed"})
		return
	}

	filename := c.Query("filename")
	if filename == "" {
		if len(j.Outputs) != 1 {
			urls := make([]string, len(j.Outputs))
			for i, f := range j.Outputs {
				urls[i] = fmt.Sprintf("/download/%s?filename=%s", id, url.QueryEscape(f))
			}
			logger.CtxInfo(c.Request.Context(), "answering with a file listing: %d outputs", len(j.Outputs))
			c.JSON(http.StatusOK, gin.H{
				"files":         j.Outputs,
				"download_urls": urls,
			})
			return
		}
		filename = j.Outputs[0]
	}

	path, ok := s.store.OutputPath(id, filename)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "file not found"})
		return
	}
	c.FileAttachment(path, filename)
}

// DownloadAll handles GET /download-all/:id and bundles every output into
// one zip archive.
func (s *Server) DownloadAll(c *gin.Context) {
	id := c.Param("id")
	j, ok := s.store.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "job not found"})
		return
	}
	if j.Status != domain.StatusCompleted {
		logger.CtxWarn(c.Request.Context(), "download refused: job %s is %s", id, j.Status)
		c.JSON(http.StatusConflict, gin.H{"detail": "job is not completed"})
		return
	}

	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	for _, name := range j.Outputs {
		path, ok := s.store.OutputPath(id, name)
		if !ok {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			logger.CtxError(c.Request.Context(), "failed to read output %s: %v", name, err)
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to build archive"})
			return
		}
		w, err := zw.Create(name)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to build archive"})
			return
		}
		if _, err := w.Write(data); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to build archive"})
			return
		}
	}
	if err := zw.Close(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to build archive"})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", domain.DefaultArchiveName))
	c.Data(http.StatusOK, "application/zip", buf.Bytes())
}
