package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/presence/internal/api/handlers"
	"github.com/your-org/presence/internal/api/ws"
	"github.com/your-org/presence/internal/auth"
	"github.com/your-org/presence/internal/engine"
	"github.com/your-org/presence/internal/queue"
	"github.com/your-org/presence/internal/storage"
)

type RouterConfig struct {
	APIKey    string
	DB        *storage.PostgresStore
	MinIO     *storage.SnapshotArchive
	Producer  *queue.Producer
	Engine    *engine.Engine
	Hub       *ws.Hub
	Extractor engine.Extractor
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.DB, cfg.MinIO, cfg.Producer, cfg.Engine, cfg.Hub)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))

	// WebSocket: frame stream plus the kiosk command protocol
	wsH := ws.NewHandler(cfg.Hub, cfg.Engine, cfg.DB, cfg.Extractor)
	v1.GET("/ws", wsH.HandleWS)

	// Persons
	personH := handlers.NewPersonHandler(cfg.DB, cfg.Extractor, cfg.Engine)
	v1.POST("/persons", personH.Register)
	v1.GET("/persons", personH.List)
	v1.GET("/persons/:id", personH.Get)
	v1.PATCH("/persons/:id", personH.Update)
	v1.DELETE("/persons/:id", personH.Delete)

	// Attendance & recognition log
	attH := handlers.NewAttendanceHandler(cfg.DB, cfg.Engine)
	v1.GET("/attendance", attH.List)
	v1.GET("/attendance/summary", attH.Summary)
	v1.DELETE("/attendance", attH.Clear)
	v1.GET("/recognitions", attH.ListRecognitions)

	// Stranger snapshots
	snapH := handlers.NewSnapshotHandler(cfg.MinIO)
	v1.GET("/snapshots", snapH.List)
	v1.GET("/snapshots/:date/:file", snapH.Get)
	v1.DELETE("/snapshots/:date/:file", snapH.Delete)

	// Engine stats
	v1.GET("/stats", systemH.Stats)

	return r
}
