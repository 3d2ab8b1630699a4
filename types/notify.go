package types

import "time"

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notifier is a fire-and-forget sink for user-visible notices.
type Notifier interface {
	Notify(severity Severity, text string)
}

type Notice struct {
	Severity  Severity  `json:"severity"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	ID        string    `json:"id"`
}
