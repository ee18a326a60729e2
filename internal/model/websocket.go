package model

// WebSocket message types
const (
	WSMessageTypeProgress = "progress"
	WSMessageTypeComplete = "complete"
	WSMessageTypeError    = "error"
	WSMessageTypePing     = "ping"
	WSMessageTypePong     = "pong"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// WSProgressMessage is pushed after every persisted checkpoint
type WSProgressMessage struct {
	Type     string    `json:"type"`
	DateKey  string    `json:"dateKey"`
	JobID    string    `json:"jobId"`
	Progress int       `json:"progress"`
	Status   JobStatus `json:"status"`
	Step     string    `json:"step,omitempty"`
}

// WSCompleteMessage carries the artifact references of a finished job
type WSCompleteMessage struct {
	Type    string     `json:"type"`
	DateKey string     `json:"dateKey"`
	JobID   string     `json:"jobId"`
	Result  *JobResult `json:"result"`
}

// WSErrorMessage represents a failed job
type WSErrorMessage struct {
	Type    string  `json:"type"`
	DateKey string  `json:"dateKey"`
	JobID   string  `json:"jobId"`
	Error   WSError `json:"error"`
}

// WSError represents error details
type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
