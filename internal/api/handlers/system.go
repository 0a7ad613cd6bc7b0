package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/presence/internal/engine"
	"github.com/your-org/presence/internal/queue"
	"github.com/your-org/presence/internal/storage"
)

// ClientCounter reports how many websocket clients are connected; the
// hub implements it.
type ClientCounter interface {
	ClientCount() int
}

type SystemHandler struct {
	db       *storage.PostgresStore
	minio    *storage.SnapshotArchive
	producer *queue.Producer
	engine   *engine.Engine
	clients  ClientCounter
}

func NewSystemHandler(db *storage.PostgresStore, minio *storage.SnapshotArchive, producer *queue.Producer, eng *engine.Engine, clients ClientCounter) *SystemHandler {
	return &SystemHandler{db: db, minio: minio, producer: producer, engine: eng, clients: clients}
}

func (h *SystemHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *SystemHandler) Readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if err := h.db.Ping(ctx); err != nil {
		checks["postgres"] = err.Error()
		healthy = false
	} else {
		checks["postgres"] = "ok"
	}

	if err := h.minio.Ping(ctx); err != nil {
		checks["minio"] = err.Error()
		healthy = false
	} else {
		checks["minio"] = "ok"
	}

	if err := h.producer.Ping(); err != nil {
		checks["nats"] = err.Error()
		healthy = false
	} else {
		checks["nats"] = "ok"
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"status": map[bool]string{true: "ready", false: "not ready"}[healthy],
		"checks": checks,
	})
}

// Stats exposes the engine's live counters alongside transport-level
// gauges: connected websocket clients and the recognition stream
// backlog.
func (h *SystemHandler) Stats(c *gin.Context) {
	out := gin.H{
		"engine":     h.engine.Stats(),
		"ws_clients": h.clients.ClientCount(),
	}

	if depth, err := h.producer.QueueDepth(c.Request.Context()); err == nil {
		out["queue_pending"] = depth
	}

	c.JSON(http.StatusOK, out)
}
