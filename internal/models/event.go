package models

import "time"

// Event types recorded in the bridge log.
const (
	EventCommand      = "COMMAND"
	EventFaultRaised  = "FAULT_RAISED"
	EventFaultCleared = "FAULT_CLEARED"
	EventFailover     = "FAILOVER"
	EventLogin        = "LOGIN"
	EventNotice       = "NOTICE"
)

// FireplaceEvent is a single log entry.
type FireplaceEvent struct {
	EventID     string    `json:"event_id"`
	Serial      string    `json:"serial,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Metadata    any       `json:"metadata,omitempty"`
}

type User struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"` // don't expose hash
}
