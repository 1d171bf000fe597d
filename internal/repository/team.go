package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/kintsugi/eventsync/internal/domain/model"
)

type teamRepo struct {
	db DBTX
}

// NewTeamRepository creates the teams/members/registrations repository.
func NewTeamRepository(db DBTX) TeamRepository {
	return &teamRepo{db: db}
}

func (r *teamRepo) GetByID(ctx context.Context, id string) (*model.Team, error) {
	t := &model.Team{}
	err := r.db.QueryRow(ctx,
		`SELECT id, name, created_by FROM teams WHERE id = $1`, id,
	).Scan(&t.ID, &t.Name, &t.CreatedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get team: %w", err)
	}
	return t, nil
}

func (r *teamRepo) IsRegistered(ctx context.Context, eventID, teamID string) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM registrations WHERE event_id = $1 AND team_id = $2)`,
		eventID, teamID,
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check registration: %w", err)
	}
	return ok, nil
}

func (r *teamRepo) ListRegistered(ctx context.Context, eventID string) ([]*model.Team, error) {
	query := `
		SELECT t.id, t.name, t.created_by
		FROM registrations reg
		JOIN teams t ON t.id = reg.team_id
		WHERE reg.event_id = $1
		ORDER BY reg.created_at, t.name`

	rows, err := r.db.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("list registered teams: %w", err)
	}
	defer rows.Close()

	var result []*model.Team
	for rows.Next() {
		t := &model.Team{}
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedBy); err != nil {
			return nil, fmt.Errorf("scan team: %w", err)
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

const memberColumns = `id, team_id, user_id, email, name, role, status`

func scanMember(row pgx.Row) (*model.TeamMember, error) {
	m := &model.TeamMember{}
	var status string
	if err := row.Scan(&m.ID, &m.TeamID, &m.UserID, &m.Email, &m.Name, &m.Role, &status); err != nil {
		return nil, err
	}
	m.Status = model.MemberStatus(status)
	return m, nil
}

func (r *teamRepo) GetMember(ctx context.Context, teamID, memberID string) (*model.TeamMember, error) {
	m, err := scanMember(r.db.QueryRow(ctx,
		`SELECT `+memberColumns+` FROM team_members WHERE team_id = $1 AND id = $2`,
		teamID, memberID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get team member: %w", err)
	}
	return m, nil
}

func (r *teamRepo) FindAcceptedMemberByEmail(ctx context.Context, teamID, email string) (*model.TeamMember, error) {
	m, err := scanMember(r.db.QueryRow(ctx,
		`SELECT `+memberColumns+` FROM team_members
		WHERE team_id = $1 AND LOWER(email) = LOWER($2) AND status = 'accepted'`,
		teamID, email,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find team member: %w", err)
	}
	return m, nil
}

func (r *teamRepo) ListAcceptedMembers(ctx context.Context, teamID string) ([]*model.TeamMember, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+memberColumns+` FROM team_members
		WHERE team_id = $1 AND status = 'accepted'
		ORDER BY created_at, email`,
		teamID,
	)
	if err != nil {
		return nil, fmt.Errorf("list team members: %w", err)
	}
	defer rows.Close()

	var result []*model.TeamMember
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan team member: %w", err)
		}
		result = append(result, m)
	}
	return result, rows.Err()
}
