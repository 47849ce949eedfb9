package domain

import "time"

// Event is one protocol telemetry event, serialized as JSON onto the event
// stream.
type Event struct {
	EventType string    `json:"eventType"`
	UserID    string    `json:"userId,omitempty"`
	DeviceID  string    `json:"deviceId,omitempty"`
	RPID      string    `json:"rpId,omitempty"`
	Outcome   string    `json:"outcome,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Source    string    `json:"source,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
