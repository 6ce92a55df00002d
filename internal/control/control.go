package control

import "time"

// Control socket operations.
const (
	OpStatus = "status"
	OpHealth = "health"
)

type Request struct {
	Op string `json:"op"`
}

type Status struct {
	Running      bool         `json:"running"`
	UptimeSec    float64      `json:"uptime_sec"`
	Session      string       `json:"session,omitempty"`
	State        string       `json:"state"`
	QueueDepth   int          `json:"queue_depth"`
	LastHeardSec float64      `json:"last_heard_sec,omitempty"`
	Lines        []string     `json:"lines"`
	Transcripts  []Transcript `json:"transcripts"`
}

type SimpleResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Transcript is a closed line and when it was closed.
type Transcript struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}
