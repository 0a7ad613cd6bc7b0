package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/presence/internal/storage"
)

// SnapshotHandler serves the archived stranger snapshots: the frame that
// triggered each auto-registration, keyed by day and person.
type SnapshotHandler struct {
	archive *storage.SnapshotArchive
}

func NewSnapshotHandler(archive *storage.SnapshotArchive) *SnapshotHandler {
	return &SnapshotHandler{archive: archive}
}

func (h *SnapshotHandler) List(c *gin.Context) {
	prefix := c.Query("prefix")
	if prefix == "" {
		prefix = "strangers/"
	}

	keys, err := h.archive.ListSnapshots(c.Request.Context(), prefix)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list snapshots"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": keys, "total": len(keys)})
}

func (h *SnapshotHandler) Get(c *gin.Context) {
	data, err := h.archive.GetObject(c.Request.Context(), snapshotKey(c))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "snapshot not found"})
		return
	}
	c.Data(http.StatusOK, "image/jpeg", data)
}

func (h *SnapshotHandler) Delete(c *gin.Context) {
	key := snapshotKey(c)
	if err := h.archive.DeleteSnapshot(c.Request.Context(), key); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete snapshot"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "deleted": true})
}

// snapshotKey rebuilds the archive key from the route parameters,
// mirroring the layout the promotion path writes.
func snapshotKey(c *gin.Context) string {
	return fmt.Sprintf("strangers/%s/%s", c.Param("date"), c.Param("file"))
}
