package model

import (
	"fmt"
	"time"
)

// Priority of an event announcement.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ParsePriority validates a wire value; empty means normal.
func ParsePriority(s string) (Priority, error) {
	switch p := Priority(s); p {
	case "":
		return PriorityNormal, nil
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return p, nil
	default:
		return "", fmt.Errorf("unknown priority %q, allowed: low, normal, high, urgent", s)
	}
}

// EventMessage is an announcement from the event manager to registered teams.
type EventMessage struct {
	ID          string
	EventID     string
	ManagerID   string
	ManagerName string
	Title       string
	Content     string
	Priority    Priority
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
