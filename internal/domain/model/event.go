package model

import "time"

// Event is the part of an event record tracking needs.
type Event struct {
	ID        string
	Title     string
	ManagerID string
	Status    string
	StartDate *time.Time
	EndDate   *time.Time
	CreatedAt time.Time
}

// Team is a registered group of members.
type Team struct {
	ID        string
	Name      string
	CreatedBy string
}

// MemberStatus is the invitation state of a team member.
type MemberStatus string

const (
	MemberPending  MemberStatus = "pending"
	MemberAccepted MemberStatus = "accepted"
	MemberDeclined MemberStatus = "declined"
)

// TeamMember belongs to exactly one team; identified for access checks by email.
type TeamMember struct {
	ID     string
	TeamID string
	UserID *string
	Email  string
	Name   *string
	Role   string
	Status MemberStatus
}

// DisplayName returns the member name, falling back to the email.
func (m *TeamMember) DisplayName() string {
	if m.Name != nil && *m.Name != "" {
		return *m.Name
	}
	return m.Email
}
