package dto

import "github.com/your-org/presence/internal/models"

// WSRequest is one inbound message on a client connection. Type selects
// the operation; the remaining fields are per-type and optional.
type WSRequest struct {
	Type string `json:"type"`

	// video_frame, register_face: base64-encoded image bytes.
	Image string `json:"image,omitempty"`

	// register_face, update_person, delete_person, get_attendance.
	PersonID   string `json:"person_id,omitempty"`
	Name       string `json:"name,omitempty"`
	Role       string `json:"role,omitempty"`
	Department string `json:"department,omitempty"`
	EmployeeID string `json:"employee_id,omitempty"`
	Email      string `json:"email,omitempty"`

	// get_attendance.
	Minutes int `json:"minutes,omitempty"`
	Limit   int `json:"limit,omitempty"`
}

// FrameResponse answers a video_frame message.
type FrameResponse struct {
	Type         string              `json:"type"` // recognition_result
	Faces        []models.FaceResult `json:"faces"`
	ProcessingMs float64             `json:"processing_ms"`
}

// ErrorResponse answers any message that could not be served. The
// connection stays open.
type ErrorResponse struct {
	Type    string `json:"type"` // error
	Message string `json:"message"`
}

// AckResponse answers mutations that carry no payload back.
type AckResponse struct {
	Type     string `json:"type"`
	PersonID string `json:"person_id,omitempty"`
	Cleared  int    `json:"cleared,omitempty"`
}
