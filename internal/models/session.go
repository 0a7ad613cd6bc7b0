package models

import (
	"time"

	"github.com/google/uuid"
)

type SessionStatus string

const (
	SessionActive SessionStatus = "active"
	SessionEnded  SessionStatus = "ended"
)

// Session is one continuous presence interval for one identity.
// At most one active session exists per person at any instant.
type Session struct {
	ID            uuid.UUID     `json:"session_id" db:"session_uuid"`
	PersonID      string        `json:"person_id" db:"person_id"`
	Status        SessionStatus `json:"status" db:"status"`
	ArrivalTime   time.Time     `json:"arrival_time" db:"arrival_time"`
	LastSeenAt    time.Time     `json:"last_seen_at" db:"last_seen_at"`
	DepartureTime *time.Time    `json:"departure_time,omitempty" db:"departure_time"`
}

// Duration reports how long the session has lasted, up to now for
// active sessions.
func (s *Session) Duration(now time.Time) time.Duration {
	if s.DepartureTime != nil {
		return s.DepartureTime.Sub(s.ArrivalTime)
	}
	return now.Sub(s.ArrivalTime)
}
