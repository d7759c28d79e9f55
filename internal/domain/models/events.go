package models

import "time"

type EventType string

const (
	EventSignalOpened    EventType = "signal.opened"
	EventSignalResolved  EventType = "signal.resolved"
	EventAutomationError EventType = "automation.error"
	EventAutomationState EventType = "automation.state"
)

type AutomationState string

const (
	StateIdle      AutomationState = "idle"
	StateSearching AutomationState = "searching"
	StateAdminWait AutomationState = "admin-wait"
	StateActive    AutomationState = "active"
)

// Event is what presentation layers and the event journal receive.
type Event struct {
	Type    EventType       `json:"type"`
	Signal  *Signal         `json:"signal,omitempty"`
	Message string          `json:"message,omitempty"`
	State   AutomationState `json:"state,omitempty"`
	Time    time.Time       `json:"time"`
}

// Key partitions events by signal id so a signal's events stay ordered.
func (e Event) Key() string {
	if e.Signal != nil {
		return e.Signal.ID
	}
	return string(e.Type)
}
