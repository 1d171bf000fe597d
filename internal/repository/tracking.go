package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kintsugi/eventsync/internal/domain/model"
)

type trackingRepo struct {
	db DBTX
}

// NewTrackingRepository creates the attendance_tracking repository.
func NewTrackingRepository(db DBTX) TrackingRepository {
	return &trackingRepo{db: db}
}

const trackingColumns = `
	t.id, t.event_id, t.team_id, t.member_id, t.tracking_type, t.label,
	t.qr_code_data, t.qr_pending, t.metadata, t.scanned_at, t.scanned_by, t.scanned_by_name,
	t.created_at, t.updated_at`

func scanTrackingRecord(row pgx.Row, extra ...any) (*model.TrackingRecord, error) {
	rec := &model.TrackingRecord{}
	var trackingType string
	dest := []any{
		&rec.ID, &rec.EventID, &rec.TeamID, &rec.MemberID, &trackingType, &rec.Label,
		&rec.QRCodeData, &rec.QRPending, &rec.Metadata, &rec.ScannedAt, &rec.ScannedBy, &rec.ScannedByName,
		&rec.CreatedAt, &rec.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	rec.TrackingType = model.TrackingType(trackingType)
	return rec, nil
}

func (r *trackingRepo) FindByIdentity(ctx context.Context, id model.Identity) (*model.TrackingRecord, error) {
	// IS NOT DISTINCT FROM matches a NULL member_id for team-scoped records.
	query := `
		SELECT ` + trackingColumns + `
		FROM attendance_tracking t
		WHERE t.event_id = $1 AND t.team_id = $2
			AND t.member_id IS NOT DISTINCT FROM $3
			AND t.tracking_type = $4 AND t.label = $5`

	rec, err := scanTrackingRecord(r.db.QueryRow(ctx, query,
		id.EventID, id.TeamID, nullIfEmpty(id.MemberID), string(id.TrackingType), id.Label,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find tracking record: %w", err)
	}
	return rec, nil
}

func (r *trackingRepo) Reserve(ctx context.Context, rec *model.TrackingRecord) error {
	// ON CONFLICT DO NOTHING yields no row for a duplicate identity,
	// which keeps concurrent issuers from failing the statement.
	query := `
		INSERT INTO attendance_tracking (event_id, team_id, member_id, tracking_type, label, qr_code_data, qr_pending, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, true, $7)
		ON CONFLICT ON CONSTRAINT uq_tracking_identity DO NOTHING
		RETURNING id, created_at, updated_at`

	var metadata any
	if len(rec.Metadata) > 0 {
		metadata = rec.Metadata
	}

	err := r.db.QueryRow(ctx, query,
		rec.EventID, rec.TeamID, rec.MemberID, string(rec.TrackingType), rec.Label,
		rec.QRCodeData, metadata,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isUniqueViolation(err) {
			return fmt.Errorf("%w: tracking identity already issued", ErrConflict)
		}
		return fmt.Errorf("reserve tracking record: %w", err)
	}
	rec.QRPending = true
	return nil
}

func (r *trackingRepo) SetQRCode(ctx context.Context, id, qrCodeData string) error {
	query := `
		UPDATE attendance_tracking
		SET qr_code_data = $2, qr_pending = false, updated_at = NOW()
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, qrCodeData)
	if err != nil {
		return fmt.Errorf("store QR code: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *trackingRepo) GetDetails(ctx context.Context, id string) (*model.TrackingDetails, error) {
	query := `
		SELECT ` + trackingColumns + `, tm.name, e.manager_id, m.name
		FROM attendance_tracking t
		JOIN teams tm ON tm.id = t.team_id
		JOIN events e ON e.id = t.event_id
		LEFT JOIN team_members m ON m.id = t.member_id
		WHERE t.id = $1`

	d := &model.TrackingDetails{}
	rec, err := scanTrackingRecord(r.db.QueryRow(ctx, query, id), &d.TeamName, &d.EventManagerID, &d.MemberName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get tracking record: %w", err)
	}
	d.TrackingRecord = *rec
	return d, nil
}

func (r *trackingRepo) MarkScanned(ctx context.Context, id string, at time.Time, by, byName string) (*model.TrackingRecord, error) {
	// The scanned_at IS NULL guard makes the transition one-time under concurrency.
	query := `
		UPDATE attendance_tracking t
		SET scanned_at = $2, scanned_by = $3, scanned_by_name = $4, updated_at = NOW()
		WHERE t.id = $1 AND t.scanned_at IS NULL
		RETURNING ` + trackingColumns

	rec, err := scanTrackingRecord(r.db.QueryRow(ctx, query, id, at, by, byName))
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("mark tracking record scanned: %w", err)
	}

	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM attendance_tracking WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check tracking record: %w", err)
	}
	if !exists {
		return nil, ErrNotFound
	}
	return nil, fmt.Errorf("%w: already scanned", ErrConflict)
}

func (r *trackingRepo) ListByTeam(ctx context.Context, eventID, teamID string) ([]*model.TrackingDetails, error) {
	query := `
		SELECT ` + trackingColumns + `, tm.name, e.manager_id, m.name
		FROM attendance_tracking t
		JOIN teams tm ON tm.id = t.team_id
		JOIN events e ON e.id = t.event_id
		LEFT JOIN team_members m ON m.id = t.member_id
		WHERE t.event_id = $1 AND t.team_id = $2
		ORDER BY t.created_at, t.label`

	rows, err := r.db.Query(ctx, query, eventID, teamID)
	if err != nil {
		return nil, fmt.Errorf("list tracking records: %w", err)
	}
	defer rows.Close()

	var result []*model.TrackingDetails
	for rows.Next() {
		d := &model.TrackingDetails{}
		rec, err := scanTrackingRecord(rows, &d.TeamName, &d.EventManagerID, &d.MemberName)
		if err != nil {
			return nil, fmt.Errorf("scan tracking record: %w", err)
		}
		d.TrackingRecord = *rec
		result = append(result, d)
	}
	return result, rows.Err()
}

func (r *trackingRepo) Summary(ctx context.Context, eventID string) ([]model.TrackingTypeSummary, error) {
	query := `
		SELECT tracking_type, COUNT(*), COUNT(scanned_at)
		FROM attendance_tracking
		WHERE event_id = $1
		GROUP BY tracking_type
		ORDER BY tracking_type`

	rows, err := r.db.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("summarize tracking records: %w", err)
	}
	defer rows.Close()

	var result []model.TrackingTypeSummary
	for rows.Next() {
		var s model.TrackingTypeSummary
		var trackingType string
		if err := rows.Scan(&trackingType, &s.Issued, &s.Scanned); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		s.TrackingType = model.TrackingType(trackingType)
		result = append(result, s)
	}
	return result, rows.Err()
}
