package models

import (
	"fmt"
	"strings"
)

// EventType discriminates the domain events routed through the consumer
type EventType string

const (
	EventUserRegistered EventType = "USER_REGISTERED"
	EventUserUpdated    EventType = "USER_UPDATED"
)

// ParseEventType parses a string into an EventType.
// Returns an error if the event type is unknown.
func ParseEventType(name string) (EventType, error) {
	name = strings.ToUpper(strings.TrimSpace(name))

	validTypes := []EventType{
		EventUserRegistered,
		EventUserUpdated,
	}

	for _, eventType := range validTypes {
		if string(eventType) == name {
			return eventType, nil
		}
	}

	return "", fmt.Errorf("unknown event type: %s", name)
}
