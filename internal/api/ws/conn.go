package ws

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/your-org/presence/internal/engine"
	"github.com/your-org/presence/internal/models"
	"github.com/your-org/presence/internal/storage"
	"github.com/your-org/presence/pkg/dto"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// Client is one live connection. Inbound messages are processed to
// completion, in order, before the next message is read; outbound
// traffic goes through the buffered send channel.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	// Counters below are touched only by the read loop.
	frames     int
	faces      int
	identified int
	uncertain  int
	unknown    int
}

// Handler serves the per-connection message protocol.
type Handler struct {
	hub       *Hub
	engine    *engine.Engine
	store     *storage.PostgresStore
	extractor engine.Extractor
}

func NewHandler(hub *Hub, eng *engine.Engine, store *storage.PostgresStore, extractor engine.Extractor) *Handler {
	return &Handler{
		hub:       hub,
		engine:    eng,
		store:     store,
		extractor: extractor,
	}
}

// HandleWS upgrades the request and runs the connection's read loop.
func (h *Handler) HandleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "error", err)
		return
	}

	client := &Client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, 64),
	}

	h.hub.register <- client

	go client.writePump()

	client.sendJSON(map[string]any{
		"type":    "connection_status",
		"status":  "connected",
		"conn_id": client.id,
	})

	h.readPump(c.Request.Context(), client)
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// readPump processes inbound messages sequentially. A malformed or
// failing message produces an error response on this connection only;
// the connection stays open.
func (h *Handler) readPump(ctx context.Context, client *Client) {
	defer func() {
		h.engine.ReleaseConnection(client.id)
		h.hub.unregister <- client
		client.conn.Close()
	}()

	for {
		_, raw, err := client.conn.ReadMessage()
		if err != nil {
			return
		}

		var req dto.WSRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			client.sendError("malformed message")
			continue
		}

		if err := h.dispatch(ctx, client, req); err != nil {
			client.sendError(err.Error())
		}
	}
}

func (h *Handler) dispatch(ctx context.Context, client *Client, req dto.WSRequest) error {
	switch req.Type {
	case "video_frame":
		return h.handleFrame(ctx, client, req)
	case "register_face":
		return h.handleRegister(ctx, client, req)
	case "get_persons":
		return h.handleGetPersons(ctx, client)
	case "update_person":
		return h.handleUpdatePerson(ctx, client, req)
	case "delete_person":
		return h.handleDeletePerson(ctx, client, req)
	case "get_attendance":
		return h.handleGetAttendance(ctx, client, req)
	case "clear_attendance":
		return h.handleClearAttendance(ctx, client)
	case "get_stats":
		return h.handleGetStats(client)
	default:
		return fmt.Errorf("unknown message type %q", req.Type)
	}
}

func (h *Handler) handleFrame(ctx context.Context, client *Client, req dto.WSRequest) error {
	image, err := base64.StdEncoding.DecodeString(req.Image)
	if err != nil {
		return errors.New("invalid frame encoding")
	}

	start := time.Now()
	verdict, err := h.engine.ProcessFrame(ctx, client.id, image)
	if errors.Is(err, engine.ErrFrameSkipped) {
		// Sampled out; no response keeps the wire quiet.
		return nil
	}
	if err != nil {
		return fmt.Errorf("frame processing failed: %v", err)
	}

	client.frames++
	client.faces += len(verdict.Faces)
	for _, face := range verdict.Faces {
		switch face.Band {
		case models.BandIdentified:
			client.identified++
		case models.BandUncertain:
			client.uncertain++
		default:
			client.unknown++
		}
	}

	client.sendJSON(dto.FrameResponse{
		Type:         "recognition_result",
		Faces:        verdict.Faces,
		ProcessingMs: float64(time.Since(start).Microseconds()) / 1000.0,
	})
	return nil
}

func (h *Handler) handleRegister(ctx context.Context, client *Client, req dto.WSRequest) error {
	role := models.Role(req.Role)
	if role != models.RoleEmployee && role != models.RoleVisitor {
		return errors.New("role must be employee or visitor")
	}
	if req.Name == "" {
		return errors.New("name is required")
	}

	image, err := base64.StdEncoding.DecodeString(req.Image)
	if err != nil {
		return errors.New("invalid image encoding")
	}

	faces, err := h.extractor.Extract(ctx, image)
	if err != nil {
		return fmt.Errorf("face extraction failed: %v", err)
	}
	if len(faces) == 0 {
		return errors.New("no face found in image")
	}

	personID := req.PersonID
	if personID == "" {
		personID = fmt.Sprintf("%s_%s", role, uuid.NewString()[:8])
	}

	identity := &models.Identity{
		PersonID:   personID,
		Name:       req.Name,
		Role:       role,
		Department: req.Department,
		EmployeeID: req.EmployeeID,
		Email:      req.Email,
		Embedding:  faces[0].Embedding,
		CreatedAt:  time.Now(),
	}
	if _, err := h.store.Register(ctx, identity); err != nil {
		return errors.New("registration failed")
	}

	client.sendJSON(dto.AckResponse{Type: "register_result", PersonID: personID})
	return nil
}

func (h *Handler) handleGetPersons(ctx context.Context, client *Client) error {
	profiles, err := h.store.ListProfiles(ctx)
	if err != nil {
		return errors.New("could not list persons")
	}

	persons := make([]dto.PersonResponse, 0, len(profiles))
	for _, p := range profiles {
		persons = append(persons, dto.PersonResponse{
			PersonID:   p.PersonID,
			Name:       p.Name,
			Role:       string(p.Role),
			Department: p.Department,
			EmployeeID: p.EmployeeID,
			Email:      p.Email,
			CreatedAt:  p.CreatedAt.Format(time.RFC3339),
		})
	}

	client.sendJSON(map[string]any{
		"type":    "persons",
		"persons": persons,
		"total":   len(persons),
	})
	return nil
}

func (h *Handler) handleUpdatePerson(ctx context.Context, client *Client, req dto.WSRequest) error {
	if req.PersonID == "" {
		return errors.New("person_id is required")
	}
	if err := h.store.UpdateProfile(ctx, req.PersonID, req.Name, req.Department, req.EmployeeID, req.Email); err != nil {
		return errors.New("update failed")
	}
	client.sendJSON(dto.AckResponse{Type: "person_updated", PersonID: req.PersonID})
	return nil
}

func (h *Handler) handleDeletePerson(ctx context.Context, client *Client, req dto.WSRequest) error {
	if req.PersonID == "" {
		return errors.New("person_id is required")
	}
	if err := h.store.Delete(ctx, req.PersonID); err != nil {
		return errors.New("delete failed")
	}
	client.sendJSON(dto.AckResponse{Type: "person_deleted", PersonID: req.PersonID})
	return nil
}

func (h *Handler) handleGetAttendance(ctx context.Context, client *Client, req dto.WSRequest) error {
	records, err := h.store.QueryAttendance(ctx, storage.AttendanceFilter{
		PersonID: req.PersonID,
		Name:     req.Name,
		Minutes:  req.Minutes,
		Limit:    req.Limit,
	})
	if err != nil {
		return errors.New("could not query attendance")
	}

	client.sendJSON(map[string]any{
		"type":    "attendance",
		"records": attendanceRecords(records),
		"active":  h.engine.Stats().ActiveSessions,
		"total":   len(records),
	})
	return nil
}

func (h *Handler) handleClearAttendance(ctx context.Context, client *Client) error {
	cleared, err := h.store.ClearAttendance(ctx)
	if err != nil {
		return errors.New("could not clear attendance")
	}
	h.engine.ResetAttendance()

	client.sendJSON(dto.AckResponse{Type: "attendance_cleared", Cleared: cleared})
	return nil
}

func (h *Handler) handleGetStats(client *Client) error {
	client.sendJSON(map[string]any{
		"type":   "stats",
		"engine": h.engine.Stats(),
		"connection": map[string]int{
			"frames":     client.frames,
			"faces":      client.faces,
			"identified": client.identified,
			"uncertain":  client.uncertain,
			"unknown":    client.unknown,
		},
	})
	return nil
}

// attendanceRecords converts store rows to wire records.
func attendanceRecords(records []storage.AttendanceRecord) []dto.AttendanceRecordResponse {
	now := time.Now()
	out := make([]dto.AttendanceRecordResponse, 0, len(records))
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
		}
		rec.DurationSec = end.Sub(r.ArrivalTime).Seconds()
		out = append(out, rec)
	}
	return out
}

func (c *Client) sendJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("marshal ws response", "error", err)
		return
	}
	select {
	case c.send <- data:
	default:
		slog.Warn("ws send buffer full, dropping response", "conn_id", c.id)
	}
}

func (c *Client) sendError(message string) {
	c.sendJSON(dto.ErrorResponse{Type: "error", Message: message})
}
