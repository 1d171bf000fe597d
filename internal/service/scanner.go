// scanner.go - one-time scan verification.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kintsugi/eventsync/internal/domain/model"
	"github.com/kintsugi/eventsync/internal/domain/rbac"
	"github.com/kintsugi/eventsync/internal/qrpayload"
	"github.com/kintsugi/eventsync/internal/repository"
)

// ScanSummary is what the scanner sees after a successful scan.
type ScanSummary struct {
	ID           string
	TeamName     string
	MemberName   *string
	Label        string
	TrackingType model.TrackingType
	ScannedAt    time.Time
	ScannedBy    string
}

// Scan verifies a presented QR payload under eventID and consumes it.
//
// Checks run in order: payload decoding, record lookup, event match,
// authorization, scan state. A failed check changes nothing. Of concurrent
// scans of one record exactly one succeeds; the rest get AlreadyScannedError.
func (s *TrackingService) Scan(ctx context.Context, actor rbac.Actor, eventID, rawPayload string) (*ScanSummary, error) {
	summary, result, err := s.scan(ctx, actor, eventID, rawPayload)
	trackingScansTotal.WithLabelValues(result).Inc()
	if err != nil {
		return nil, err
	}

	s.logger.Info("Tracking record scanned",
		slog.String("tracking_id", summary.ID),
		slog.String("event_id", eventID),
		slog.String("scanned_by", actor.UserID),
	)
	return summary, nil
}

func (s *TrackingService) scan(ctx context.Context, actor rbac.Actor, eventID, rawPayload string) (*ScanSummary, string, error) {
	trackingID, err := qrpayload.Decode(rawPayload)
	if err != nil {
		return nil, scanResultMalformed, fmt.Errorf("%w: no tracking id in QR data", ErrMalformedPayload)
	}
	// Placeholder ids such as "temp" never resolve to a record.
	if !validUUID(trackingID) {
		return nil, scanResultNotFound, notFound("Tracking record not found", "tracking record %q", trackingID)
	}

	d, err := s.tracking.GetDetails(ctx, trackingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, scanResultNotFound, notFound("Tracking record not found", "tracking record %s", trackingID)
		}
		return nil, scanResultError, fmt.Errorf("load tracking record: %w", err)
	}

	if d.EventID != eventID {
		return nil, scanResultWrongEvent, fmt.Errorf("%w: record %s", ErrWrongEvent, trackingID)
	}
	if !rbac.Can(actor, rbac.ScanTracking, rbac.Subject{EventManagerID: d.EventManagerID}) {
		return nil, scanResultForbidden, fmt.Errorf("%w: scan on event %s", ErrForbidden, eventID)
	}
	if d.ScannedAt != nil {
		return nil, scanResultAlreadyScanned, alreadyScanned(&d.TrackingRecord)
	}

	scanner := actor.DisplayName()
	rec, err := s.tracking.MarkScanned(ctx, trackingID, s.now(), actor.UserID, scanner)
	if err != nil {
		if !errors.Is(err, repository.ErrConflict) {
			return nil, scanResultError, fmt.Errorf("mark scanned: %w", err)
		}
		// Lost the race: report the winning scan.
		again, gerr := s.tracking.GetDetails(ctx, trackingID)
		if gerr != nil {
			return nil, scanResultError, fmt.Errorf("reload tracking record: %w", gerr)
		}
		return nil, scanResultAlreadyScanned, alreadyScanned(&again.TrackingRecord)
	}

	return &ScanSummary{
		ID:           rec.ID,
		TeamName:     d.TeamName,
		MemberName:   d.MemberName,
		Label:        rec.Label,
		TrackingType: rec.TrackingType,
		ScannedAt:    *rec.ScannedAt,
		ScannedBy:    scanner,
	}, scanResultScanned, nil
}

func alreadyScanned(rec *model.TrackingRecord) error {
	e := &AlreadyScannedError{}
	if rec.ScannedAt != nil {
		e.ScannedAt = *rec.ScannedAt
	}
	switch {
	case rec.ScannedByName != nil && *rec.ScannedByName != "":
		e.ScannedBy = *rec.ScannedByName
	case rec.ScannedBy != nil:
		e.ScannedBy = *rec.ScannedBy
	}
	return e
}
