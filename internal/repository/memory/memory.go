// Package memory implements the repository interfaces in process memory.
// All methods are safe for concurrent use and mirror the PostgreSQL
// semantics, including the identity uniqueness and the one-time scan guard.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kintsugi/eventsync/internal/domain/model"
	"github.com/kintsugi/eventsync/internal/repository"
)

// Store holds every table. Obtain typed views with Tracking, Events, Teams and Messages.
type Store struct {
	mu sync.RWMutex

	events        map[string]*model.Event
	teams         map[string]*model.Team
	members       map[string]*model.TeamMember
	registrations map[string][]string // eventID -> teamIDs in registration order
	tracking      map[string]*model.TrackingRecord
	byIdentity    map[model.Identity]string
	messages      []*model.EventMessage

	now func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		events:        make(map[string]*model.Event),
		teams:         make(map[string]*model.Team),
		members:       make(map[string]*model.TeamMember),
		registrations: make(map[string][]string),
		tracking:      make(map[string]*model.TrackingRecord),
		byIdentity:    make(map[model.Identity]string),
		now:           time.Now,
	}
}

// --- Seeding ---

// AddEvent inserts e, assigning an id when empty.
func (s *Store) AddEvent(e model.Event) *model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	s.events[e.ID] = &e
	return &e
}

// AddTeam inserts t, assigning an id when empty.
func (s *Store) AddTeam(t model.Team) *model.Team {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	s.teams[t.ID] = &t
	return &t
}

// AddMember inserts m, assigning an id when empty.
func (s *Store) AddMember(m model.TeamMember) *model.TeamMember {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Status == "" {
		m.Status = model.MemberPending
	}
	s.members[m.ID] = &m
	return &m
}

// Register registers a team for an event once.
func (s *Store) Register(eventID, teamID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.registrations[eventID] {
		if id == teamID {
			return
		}
	}
	s.registrations[eventID] = append(s.registrations[eventID], teamID)
}

// Tracking returns the TrackingRepository view.
func (s *Store) Tracking() repository.TrackingRepository { return (*trackingRepo)(s) }

// Events returns the EventRepository view.
func (s *Store) Events() repository.EventRepository { return (*eventRepo)(s) }

// Teams returns the TeamRepository view.
func (s *Store) Teams() repository.TeamRepository { return (*teamRepo)(s) }

// Messages returns the MessageRepository view.
func (s *Store) Messages() repository.MessageRepository { return (*messageRepo)(s) }

// --- Tracking ---

type trackingRepo Store

func cloneRecord(r *model.TrackingRecord) *model.TrackingRecord {
	c := *r
	return &c
}

func (r *trackingRepo) FindByIdentity(_ context.Context, id model.Identity) (*model.TrackingRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	recID, ok := r.byIdentity[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneRecord(r.tracking[recID]), nil
}

func (r *trackingRepo) Reserve(_ context.Context, rec *model.TrackingRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.events[rec.EventID]; !ok {
		return fmt.Errorf("reserve tracking record: unknown event %s", rec.EventID)
	}
	if _, ok := r.teams[rec.TeamID]; !ok {
		return fmt.Errorf("reserve tracking record: unknown team %s", rec.TeamID)
	}
	key := rec.Identity()
	if _, ok := r.byIdentity[key]; ok {
		return fmt.Errorf("%w: tracking identity already issued", repository.ErrConflict)
	}

	now := r.now()
	rec.ID = uuid.NewString()
	rec.QRPending = true
	rec.CreatedAt = now
	rec.UpdatedAt = now
	r.tracking[rec.ID] = cloneRecord(rec)
	r.byIdentity[key] = rec.ID
	return nil
}

func (r *trackingRepo) SetQRCode(_ context.Context, id, qrCodeData string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.tracking[id]
	if !ok {
		return repository.ErrNotFound
	}
	rec.QRCodeData = qrCodeData
	rec.QRPending = false
	rec.UpdatedAt = r.now()
	return nil
}

// details must be called with the lock held.
func (r *trackingRepo) details(rec *model.TrackingRecord) *model.TrackingDetails {
	d := &model.TrackingDetails{TrackingRecord: *rec}
	if t, ok := r.teams[rec.TeamID]; ok {
		d.TeamName = t.Name
	}
	if e, ok := r.events[rec.EventID]; ok {
		d.EventManagerID = e.ManagerID
	}
	if rec.MemberID != nil {
		if m, ok := r.members[*rec.MemberID]; ok && m.Name != nil {
			name := *m.Name
			d.MemberName = &name
		}
	}
	return d
}

func (r *trackingRepo) GetDetails(_ context.Context, id string) (*model.TrackingDetails, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.tracking[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.details(rec), nil
}

func (r *trackingRepo) MarkScanned(_ context.Context, id string, at time.Time, by, byName string) (*model.TrackingRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.tracking[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if err := model.ValidateTransition(rec.State(), model.StateScanned); err != nil {
		return nil, fmt.Errorf("%w: %v", repository.ErrConflict, err)
	}
	rec.ScannedAt = &at
	rec.ScannedBy = &by
	rec.ScannedByName = &byName
	rec.UpdatedAt = r.now()
	return cloneRecord(rec), nil
}

func (r *trackingRepo) ListByTeam(_ context.Context, eventID, teamID string) ([]*model.TrackingDetails, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []*model.TrackingDetails
	for _, rec := range r.tracking {
		if rec.EventID == eventID && rec.TeamID == teamID {
			result = append(result, r.details(rec))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].Label < result[j].Label
	})
	return result, nil
}

func (r *trackingRepo) Summary(_ context.Context, eventID string) ([]model.TrackingTypeSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[model.TrackingType]*model.TrackingTypeSummary)
	for _, rec := range r.tracking {
		if rec.EventID != eventID {
			continue
		}
		s, ok := counts[rec.TrackingType]
		if !ok {
			s = &model.TrackingTypeSummary{TrackingType: rec.TrackingType}
			counts[rec.TrackingType] = s
		}
		s.Issued++
		if rec.ScannedAt != nil {
			s.Scanned++
		}
	}
	result := make([]model.TrackingTypeSummary, 0, len(counts))
	for _, s := range counts {
		result = append(result, *s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].TrackingType < result[j].TrackingType })
	return result, nil
}

// --- Events ---

type eventRepo Store

func (r *eventRepo) GetByID(_ context.Context, id string) (*model.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.events[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *e
	return &c, nil
}

// --- Teams ---

type teamRepo Store

func (r *teamRepo) GetByID(_ context.Context, id string) (*model.Team, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.teams[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *t
	return &c, nil
}

func (r *teamRepo) IsRegistered(_ context.Context, eventID, teamID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.registrations[eventID] {
		if id == teamID {
			return true, nil
		}
	}
	return false, nil
}

func (r *teamRepo) ListRegistered(_ context.Context, eventID string) ([]*model.Team, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*model.Team, 0, len(r.registrations[eventID]))
	for _, id := range r.registrations[eventID] {
		if t, ok := r.teams[id]; ok {
			c := *t
			result = append(result, &c)
		}
	}
	return result, nil
}

func (r *teamRepo) GetMember(_ context.Context, teamID, memberID string) (*model.TeamMember, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.members[memberID]
	if !ok || m.TeamID != teamID {
		return nil, repository.ErrNotFound
	}
	c := *m
	return &c, nil
}

func (r *teamRepo) FindAcceptedMemberByEmail(_ context.Context, teamID, email string) (*model.TeamMember, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.members {
		if m.TeamID == teamID && m.Status == model.MemberAccepted && strings.EqualFold(m.Email, email) {
			c := *m
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *teamRepo) ListAcceptedMembers(_ context.Context, teamID string) ([]*model.TeamMember, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []*model.TeamMember
	for _, m := range r.members {
		if m.TeamID == teamID && m.Status == model.MemberAccepted {
			c := *m
			result = append(result, &c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Email < result[j].Email })
	return result, nil
}

// --- Messages ---

type messageRepo Store

func (r *messageRepo) Create(_ context.Context, m *model.EventMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.events[m.EventID]; !ok {
		return fmt.Errorf("create event message: unknown event %s", m.EventID)
	}
	now := r.now()
	m.ID = uuid.NewString()
	m.CreatedAt = now
	m.UpdatedAt = now
	c := *m
	r.messages = append(r.messages, &c)
	return nil
}

func (r *messageRepo) ListByEvent(_ context.Context, eventID string) ([]*model.EventMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []*model.EventMessage
	// Appended in creation order; walk backwards for newest first.
	for i := len(r.messages) - 1; i >= 0; i-- {
		if r.messages[i].EventID == eventID {
			c := *r.messages[i]
			result = append(result, &c)
		}
	}
	return result, nil
}
