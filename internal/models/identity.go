package models

import "time"

type Role string

const (
	RoleEmployee  Role = "employee"
	RoleVisitor   Role = "visitor"
	RoleTemporary Role = "temporary"
)

// Identity is a registered person in the face profile store.
type Identity struct {
	PersonID   string    `json:"person_id" db:"person_id"`
	Name       string    `json:"name" db:"name"`
	Role       Role      `json:"role" db:"role"`
	Department string    `json:"department" db:"department"`
	EmployeeID string    `json:"employee_id,omitempty" db:"employee_id"`
	Email      string    `json:"email,omitempty" db:"email"`
	Embedding  []float32 `json:"-" db:"face_embedding"`
	CreatedAt  time.Time `json:"created_at" db:"register_time"`
}

// Match is one candidate identity returned by the face matcher,
// ordered descending by confidence.
type Match struct {
	PersonID   string  `json:"person_id"`
	Name       string  `json:"name"`
	Role       Role    `json:"role"`
	Department string  `json:"department"`
	Confidence float64 `json:"confidence"`
}
