// Package rbac decides what an authenticated actor may do with an event.
//
// Roles form a closed, ordered set: user < manager < admin. Admins hold
// every capability. Other capabilities are granted per event, either to the
// owning manager or to accepted members of the team concerned.
package rbac

import "strings"

// Role is the global role of an actor.
type Role string

const (
	RoleUser    Role = "user"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

// roleWeight orders roles; higher means more privileges.
var roleWeight = map[Role]int{
	RoleUser:    1,
	RoleManager: 2,
	RoleAdmin:   3,
}

// ParseRole maps a claim value to a Role. Matching is case-insensitive.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	_, ok := roleWeight[r]
	return r, ok
}

// IsValidRole reports whether s names a known role.
func IsValidRole(s string) bool {
	_, ok := ParseRole(s)
	return ok
}

// AtLeast reports whether r carries at least the privileges of min.
func (r Role) AtLeast(min Role) bool {
	return roleWeight[r] >= roleWeight[min] && roleWeight[min] > 0
}

// HighestRole returns the strongest known role in roles.
// Unknown values are ignored; with no known role the result is RoleUser.
func HighestRole(roles []string) Role {
	highest := RoleUser
	for _, s := range roles {
		if r, ok := ParseRole(s); ok && roleWeight[r] > roleWeight[highest] {
			highest = r
		}
	}
	return highest
}

// Actor is the identity resolved from request credentials.
type Actor struct {
	UserID string
	Role   Role
	Email  string
	Name   string
}

// DisplayName returns Name, falling back to Email and then UserID.
func (a Actor) DisplayName() string {
	switch {
	case a.Name != "":
		return a.Name
	case a.Email != "":
		return a.Email
	default:
		return a.UserID
	}
}

// Capability is an action on an event.
type Capability string

const (
	IssueTracking    Capability = "tracking:issue"
	ScanTracking     Capability = "tracking:scan"
	ViewTeamCodes    Capability = "tracking:view"
	ViewSummary      Capability = "tracking:summary"
	PostAnnouncement Capability = "messages:post"
)

// grant describes who holds a capability below admin.
type grant struct {
	// minRole a non-admin owner must have
	minRole Role
	owner   bool
	member  bool
}

var capabilities = map[Capability]grant{
	IssueTracking:    {minRole: RoleManager, owner: true},
	ScanTracking:     {minRole: RoleManager, owner: true},
	ViewSummary:      {minRole: RoleManager, owner: true},
	PostAnnouncement: {minRole: RoleManager, owner: true},
	ViewTeamCodes:    {minRole: RoleManager, owner: true, member: true},
}

// Subject is the event-scoped context a capability is checked against.
type Subject struct {
	// EventManagerID is the owner of the event.
	EventManagerID string
	// AcceptedMember is true when the actor is an accepted member of the team concerned.
	AcceptedMember bool
}

// Can reports whether actor holds capability c on subject s.
func Can(actor Actor, c Capability, s Subject) bool {
	g, ok := capabilities[c]
	if !ok {
		return false
	}
	if actor.Role == RoleAdmin {
		return true
	}
	if g.owner && actor.Role.AtLeast(g.minRole) && IsOwner(actor, s.EventManagerID) {
		return true
	}
	return g.member && s.AcceptedMember
}

// IsOwner reports whether the actor owns the event, regardless of role.
func IsOwner(actor Actor, eventManagerID string) bool {
	return actor.UserID != "" && actor.UserID == eventManagerID
}
