package models

import "time"

// EventType enumerates the externally visible attendance events.
type EventType string

const (
	EventEmployeeDetected       EventType = "employee_detected"
	EventTempVisitorDetected    EventType = "temp_visitor_detected"
	EventStrangerAutoRegistered EventType = "stranger_auto_registered"
	EventTempVisitorDeparted    EventType = "temp_visitor_departed"
)

// Event is the structured payload delivered to webhook sinks and
// broadcast to live subscribers.
type Event struct {
	Event       EventType     `json:"event"`
	SessionID   string        `json:"session_id"`
	PersonID    string        `json:"person_id"`
	Name        string        `json:"name"`
	Role        Role          `json:"role"`
	Department  string        `json:"department"`
	Confidence  float64       `json:"confidence"`
	Status      SessionStatus `json:"status"`
	ArrivalTime time.Time     `json:"arrival_time"`
	LastSeenAt  time.Time     `json:"last_seen_at"`
	Timestamp   time.Time     `json:"timestamp"`
}
