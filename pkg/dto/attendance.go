package dto

// AttendanceQuery filters the attendance report.
type AttendanceQuery struct {
	PersonID string `form:"person_id"`
	Name     string `form:"name"`
	Minutes  int    `form:"minutes"`
	Limit    int    `form:"limit"`
}

type AttendanceRecordResponse struct {
	SessionID     string  `json:"session_id"`
	PersonID      string  `json:"person_id"`
	Name          string  `json:"name"`
	Role          string  `json:"role"`
	Department    string  `json:"department"`
	Status        string  `json:"status"`
	ArrivalTime   string  `json:"arrival_time"`
	LastSeenAt    string  `json:"last_seen_at"`
	DepartureTime *string `json:"departure_time,omitempty"`
	DurationSec   float64 `json:"duration_sec"`
}

type AttendanceListResponse struct {
	Records []AttendanceRecordResponse `json:"records"`
	Active  int                        `json:"active"`
	Total   int                        `json:"total"`
}

type RecognitionLogResponse struct {
	PersonID       string  `json:"person_id"`
	RecognizedName string  `json:"recognized_name"`
	Confidence     float64 `json:"confidence"`
	ImageSource    string  `json:"image_source"`
	CreatedAt      string  `json:"created_at"`
}
