package handlers

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/presence/internal/engine"
	"github.com/your-org/presence/internal/models"
	"github.com/your-org/presence/internal/storage"
	"github.com/your-org/presence/pkg/dto"
)

// PersonHandler serves the face profile registry over REST. The same
// operations are available on the websocket protocol; kiosk clients use
// that, admin tooling uses this.
type PersonHandler struct {
	db        *storage.PostgresStore
	extractor engine.Extractor
	engine    *engine.Engine
}

func NewPersonHandler(db *storage.PostgresStore, extractor engine.Extractor, eng *engine.Engine) *PersonHandler {
	return &PersonHandler{db: db, extractor: extractor, engine: eng}
}

func (h *PersonHandler) Register(c *gin.Context) {
	var req dto.RegisterPersonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	role := models.Role(req.Role)
	if role != models.RoleEmployee && role != models.RoleVisitor {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role must be employee or visitor"})
		return
	}

	image, err := base64.StdEncoding.DecodeString(req.Image)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid image encoding"})
		return
	}

	faces, err := h.extractor.Extract(c.Request.Context(), image)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "face extraction failed"})
		return
	}
	if len(faces) == 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "no face found in image"})
		return
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
	if _, err := h.db.Register(c.Request.Context(), identity); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "registration failed"})
		return
	}

	c.JSON(http.StatusCreated, personResponse(identity))
}

func (h *PersonHandler) List(c *gin.Context) {
	profiles, err := h.db.ListProfiles(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list persons"})
		return
	}

	persons := make([]dto.PersonResponse, 0, len(profiles))
	for i := range profiles {
		persons = append(persons, personResponse(&profiles[i]))
	}
	c.JSON(http.StatusOK, dto.PersonListResponse{Persons: persons, Total: len(persons)})
}

func (h *PersonHandler) Get(c *gin.Context) {
	identity, err := h.db.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not get person"})
		return
	}
	if identity == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "person not found"})
		return
	}

	resp := personResponse(identity)
	if sess, ok := h.engine.ActiveSession(identity.PersonID); ok {
		resp.Present = true
		resp.SessionID = sess.ID.String()
	}
	c.JSON(http.StatusOK, resp)
}

func (h *PersonHandler) Update(c *gin.Context) {
	var req dto.UpdatePersonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	personID := c.Param("id")
	err := h.db.UpdateProfile(c.Request.Context(), personID, req.Name, req.Department, req.EmployeeID, req.Email)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "person not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"person_id": personID, "updated": true})
}

func (h *PersonHandler) Delete(c *gin.Context) {
	personID := c.Param("id")
	if err := h.db.Delete(c.Request.Context(), personID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "person not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"person_id": personID, "deleted": true})
}

func personResponse(id *models.Identity) dto.PersonResponse {
	return dto.PersonResponse{
		PersonID:   id.PersonID,
		Name:       id.Name,
		Role:       string(id.Role),
		Department: id.Department,
		EmployeeID: id.EmployeeID,
		Email:      id.Email,
		CreatedAt:  id.CreatedAt.Format(time.RFC3339),
	}
}
