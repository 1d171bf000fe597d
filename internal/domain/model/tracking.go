// Package model holds the domain types shared by the service and
// repository layers.
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// TrackingType is the closed set of things a QR code can stand for.
type TrackingType string

const (
	TrackingAttendance TrackingType = "attendance"
	TrackingFoodCoupon TrackingType = "food_coupon"
	TrackingCustom     TrackingType = "custom"
)

// Valid reports whether t is one of the known tracking types.
func (t TrackingType) Valid() bool {
	switch t {
	case TrackingAttendance, TrackingFoodCoupon, TrackingCustom:
		return true
	}
	return false
}

// ParseTrackingType validates a wire value.
func ParseTrackingType(s string) (TrackingType, error) {
	t := TrackingType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown tracking type %q, allowed: attendance, food_coupon, custom", s)
	}
	return t, nil
}

// Identity is the uniqueness key of a tracking record.
// MemberID is empty for team-scoped records.
type Identity struct {
	EventID      string
	TeamID       string
	MemberID     string
	TrackingType TrackingType
	Label        string
}

// TrackingRecord is one issued QR code.
// Stored in attendance_tracking.
type TrackingRecord struct {
	ID           string
	EventID      string
	TeamID       string
	MemberID     *string
	TrackingType TrackingType
	Label        string
	// QRCodeData is a PNG data URL. While QRPending is set it encodes the
	// placeholder tracking id and is re-rendered on finalize or first read.
	QRCodeData string
	QRPending  bool
	Metadata   json.RawMessage
	// ScannedAt and ScannedBy are set together, exactly once.
	ScannedAt     *time.Time
	ScannedBy     *string
	ScannedByName *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Identity returns the uniqueness key of the record.
func (r *TrackingRecord) Identity() Identity {
	id := Identity{
		EventID:      r.EventID,
		TeamID:       r.TeamID,
		TrackingType: r.TrackingType,
		Label:        r.Label,
	}
	if r.MemberID != nil {
		id.MemberID = *r.MemberID
	}
	return id
}

// State returns the scan state derived from ScannedAt.
func (r *TrackingRecord) State() ScanState {
	if r.ScannedAt != nil {
		return StateScanned
	}
	return StateUnscanned
}

// TrackingDetails is a record joined with the names needed for display
// and authorization.
type TrackingDetails struct {
	TrackingRecord
	TeamName       string
	EventManagerID string
	MemberName     *string
}

// Template is a (type, label) pair used by bulk issuance.
type Template struct {
	TrackingType TrackingType `json:"trackingType"`
	Label        string       `json:"label"`
}

// DefaultTemplates is issued when a bulk request names no templates.
func DefaultTemplates() []Template {
	return []Template{
		{TrackingType: TrackingAttendance, Label: "Event Attendance"},
		{TrackingType: TrackingFoodCoupon, Label: "Lunch Coupon"},
		{TrackingType: TrackingFoodCoupon, Label: "Dinner Coupon"},
	}
}

// TrackingTypeSummary counts issued and scanned records of one type.
type TrackingTypeSummary struct {
	TrackingType TrackingType `json:"trackingType"`
	Issued       int          `json:"issued"`
	Scanned      int          `json:"scanned"`
}
