package dto

// RegisterPersonRequest registers a face profile through the REST API.
// Image carries base64-encoded bytes; the extractor computes the
// embedding server-side.
type RegisterPersonRequest struct {
	PersonID   string `json:"person_id"`
	Name       string `json:"name" binding:"required"`
	Role       string `json:"role" binding:"required"`
	Department string `json:"department"`
	EmployeeID string `json:"employee_id"`
	Email      string `json:"email"`
	Image      string `json:"image" binding:"required"`
}

type UpdatePersonRequest struct {
	Name       string `json:"name"`
	Department string `json:"department"`
	EmployeeID string `json:"employee_id"`
	Email      string `json:"email"`
}

type PersonResponse struct {
	PersonID   string `json:"person_id"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	Department string `json:"department"`
	EmployeeID string `json:"employee_id,omitempty"`
	Email      string `json:"email,omitempty"`
	CreatedAt  string `json:"created_at"`

	// Present and SessionID are populated on the person detail endpoint
	// when the person has an active attendance session.
	Present   bool   `json:"present,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

type PersonListResponse struct {
	Persons []PersonResponse `json:"persons"`
	Total   int              `json:"total"`
}
