package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/presence/internal/engine"
	"github.com/your-org/presence/internal/storage"
	"github.com/your-org/presence/pkg/dto"
)

// AttendanceHandler serves the attendance report and the recognition
// audit trail.
type AttendanceHandler struct {
	db     *storage.PostgresStore
	engine *engine.Engine
}

func NewAttendanceHandler(db *storage.PostgresStore, eng *engine.Engine) *AttendanceHandler {
	return &AttendanceHandler{db: db, engine: eng}
}

func (h *AttendanceHandler) List(c *gin.Context) {
	var q dto.AttendanceQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	records, err := h.db.QueryAttendance(c.Request.Context(), storage.AttendanceFilter{
		PersonID: q.PersonID,
		Name:     q.Name,
		Minutes:  q.Minutes,
		Limit:    q.Limit,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not query attendance"})
		return
	}

	now := time.Now()
	out := make([]dto.AttendanceRecordResponse, 0, len(records))
	var active int
	for _, r := range records {
		rec := dto.AttendanceRecordResponse{
			SessionID:   r.SessionID,
			PersonID:    r.PersonID,
			Name:        r.Name,
			Role:        string(r.Role),
			Department:  r.Department,
			Status:      string(r.Status),
			ArrivalTime: r.ArrivalTime.Format(time.RFC3339),
			LastSeenAt:  r.LastSeenAt.Format(time.RFC3339),
		}
		end := now
		if r.DepartureTime != nil {
			s := r.DepartureTime.Format(time.RFC3339)
			rec.DepartureTime = &s
			end = *r.DepartureTime
		} else {
			active++
		}
		rec.DurationSec = end.Sub(r.ArrivalTime).Seconds()
		out = append(out, rec)
	}

	c.JSON(http.StatusOK, dto.AttendanceListResponse{
		Records: out,
		Active:  active,
		Total:   len(out),
	})
}

// Summary reports headline counts for dashboards: active sessions,
// arrivals today and over the last week, plus who is currently in.
func (h *AttendanceHandler) Summary(c *gin.Context) {
	sum, err := h.db.Summary(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not build summary"})
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (h *AttendanceHandler) Clear(c *gin.Context) {
	cleared, err := h.db.ClearAttendance(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not clear attendance"})
		return
	}
	h.engine.ResetAttendance()

	c.JSON(http.StatusOK, gin.H{"cleared": cleared})
}

func (h *AttendanceHandler) ListRecognitions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	logs, err := h.db.ListRecognitionLogs(c.Request.Context(), c.Query("person_id"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list recognitions"})
		return
	}

	out := make([]dto.RecognitionLogResponse, 0, len(logs))
	for _, entry := range logs {
		out = append(out, dto.RecognitionLogResponse{
			PersonID:       entry.PersonID,
			RecognizedName: entry.RecognizedName,
			Confidence:     entry.Confidence,
			ImageSource:    entry.ImageSource,
			CreatedAt:      entry.CreatedAt.Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, gin.H{"recognitions": out, "total": len(out)})
}
