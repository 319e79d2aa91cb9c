package stub

import (
	"github.com/gin-gonic/gin"

	"github.com/marek/docmill/internal/logger"
)

// SetupRouter configures the Gin router with all stub routes.
func SetupRouter(store *Store, log *logger.Logger, mode string, cors CORSConfig) *gin.Engine {
	// Set Gin mode
	switch mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log))
	r.Use(CORS(cors))

	srv := NewServer(store, log)

	// Health check
	r.GET("/health", srv.Health)

	// Conversion protocol
	r.POST("/upload-files/", srv.UploadFiles)
	r.GET("/job-status/:id", srv.JobStatus)
	r.GET("/download/:id", srv.DownloadOne)
	r.GET("/download-all/:id", srv.DownloadAll)

	return r
}
