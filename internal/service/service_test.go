package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kintsugi/eventsync/internal/domain/model"
	"github.com/kintsugi/eventsync/internal/domain/rbac"
	"github.com/kintsugi/eventsync/internal/qrpayload"
	"github.com/kintsugi/eventsync/internal/repository"
	"github.com/kintsugi/eventsync/internal/repository/memory"
)

// textRenderer "renders" the payload as plain text so tests can read it back.
// With fail set, only placeholder images render, so issuing stops after
// the reserve step.
type textRenderer struct {
	mu   sync.Mutex
	fail bool
}

const textPrefix = "qr:"

var placeholderField = `"trackingId":"` + qrpayload.PlaceholderTrackingID + `"`

func (r *textRenderer) Render(content string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail && !strings.Contains(content, placeholderField) {
		return "", errors.New("renderer unavailable")
	}
	return textPrefix + content, nil
}

func (r *textRenderer) setFail(v bool) {
	r.mu.Lock()
	r.fail = v
	r.mu.Unlock()
}

// payloadOf returns the scannable text embedded in a rendered code.
func payloadOf(t *testing.T, qr string) string {
	t.Helper()
	if !strings.HasPrefix(qr, textPrefix) {
		t.Fatalf("QR data %q was not rendered by textRenderer", qr)
	}
	return strings.TrimPrefix(qr, textPrefix)
}

type env struct {
	store    *memory.Store
	renderer *textRenderer
	tracking *TrackingService
	messages *MessageService

	event   *model.Event
	other   *model.Event
	team    *model.Team
	member  *model.TeamMember
	pending *model.TeamMember

	owner    rbac.Actor
	stranger rbac.Actor
	admin    rbac.Actor
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEnv(t *testing.T) *env {
	t.Helper()
	s := memory.NewStore()
	r := &textRenderer{}
	cache := NewEventCache(s.Events(), 16, time.Minute)

	e := &env{
		store:    s,
		renderer: r,
		tracking: NewTrackingService(s.Tracking(), s.Teams(), cache, qrpayload.NewCodec(r), testLogger()),
		messages: NewMessageService(s.Messages(), cache, testLogger()),
		owner:    rbac.Actor{UserID: "mgr-1", Role: rbac.RoleManager, Name: "Olga Manager"},
		stranger: rbac.Actor{UserID: "mgr-2", Role: rbac.RoleManager, Email: "other@x.io"},
		admin:    rbac.Actor{UserID: "root", Role: rbac.RoleAdmin, Email: "root@x.io"},
	}

	e.event = s.AddEvent(model.Event{Title: "Hackathon", ManagerID: "mgr-1"})
	e.other = s.AddEvent(model.Event{Title: "Meetup", ManagerID: "mgr-1"})
	e.team = s.AddTeam(model.Team{Name: "Rockets"})
	name := "Ada"
	e.member = s.AddMember(model.TeamMember{TeamID: e.team.ID, Email: "ada@x.io", Name: &name, Status: model.MemberAccepted})
	e.pending = s.AddMember(model.TeamMember{TeamID: e.team.ID, Email: "bob@x.io", Status: model.MemberPending})
	s.Register(e.event.ID, e.team.ID)
	s.Register(e.other.ID, e.team.ID)
	return e
}

func (e *env) issueAttendance(t *testing.T, eventID string) *model.TrackingRecord {
	t.Helper()
	out, err := e.tracking.IssueOne(context.Background(), e.owner, IssueRequest{
		EventID:      eventID,
		TeamID:       e.team.ID,
		TrackingType: model.TrackingAttendance,
		Label:        "Event Attendance",
	})
	if err != nil {
		t.Fatalf("IssueOne() error: %v", err)
	}
	return out.Record
}

func TestIssueForEvent_Scenario(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	first, err := e.tracking.IssueForEvent(ctx, e.owner, e.event.ID, nil, []string{e.team.ID})
	if err != nil {
		t.Fatalf("IssueForEvent() error: %v", err)
	}
	if first.CreatedCount != 3 || first.SkippedCount != 0 || first.TotalTeams != 1 {
		t.Fatalf("first run = created %d skipped %d teams %d, want 3/0/1",
			first.CreatedCount, first.SkippedCount, first.TotalTeams)
	}

	second, err := e.tracking.IssueForEvent(ctx, e.owner, e.event.ID, nil, []string{e.team.ID})
	if err != nil {
		t.Fatalf("IssueForEvent() second error: %v", err)
	}
	if second.CreatedCount != 0 || second.SkippedCount != 3 {
		t.Fatalf("second run = created %d skipped %d, want 0/3", second.CreatedCount, second.SkippedCount)
	}

	// Skipped outcomes carry the existing records.
	for i, out := range second.PerTeam[0].Results {
		if out.Record == nil || out.Record.ID != first.PerTeam[0].Results[i].Record.ID {
			t.Errorf("result %d does not reference the original record", i)
		}
	}

	// Scan one code once, then again.
	rec := first.PerTeam[0].Results[1].Record
	payload := payloadOf(t, rec.QRCodeData)
	sum, err := e.tracking.Scan(ctx, e.owner, e.event.ID, payload)
	if err != nil {
		t.Fatalf("Scan() error: %v", err)
	}
	if sum.Label != "Lunch Coupon" || sum.TeamName != "Rockets" || sum.ScannedBy != "Olga Manager" {
		t.Errorf("Scan() summary = %+v", sum)
	}

	_, err = e.tracking.Scan(ctx, e.admin, e.event.ID, payload)
	var already *AlreadyScannedError
	if !errors.As(err, &already) {
		t.Fatalf("second Scan() error = %v, want AlreadyScannedError", err)
	}
	if already.ScannedBy != "Olga Manager" || !already.ScannedAt.Equal(sum.ScannedAt) {
		t.Errorf("AlreadyScannedError = %+v, want original scan %v by Olga Manager", already, sum.ScannedAt)
	}
	if !errors.Is(err, ErrAlreadyScanned) {
		t.Error("errors.Is(err, ErrAlreadyScanned) = false")
	}
}

func TestIssueForEvent_Errors(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	empty := e.store.AddEvent(model.Event{ManagerID: "mgr-1"})
	unregistered := e.store.AddTeam(model.Team{Name: "Ghosts"})

	tests := []struct {
		name      string
		actor     rbac.Actor
		eventID   string
		templates []model.Template
		teamIDs   []string
		wantErr   error
	}{
		{name: "not owner", actor: e.stranger, eventID: e.event.ID, wantErr: ErrForbidden},
		{name: "owner without manager role", actor: rbac.Actor{UserID: "mgr-1", Role: rbac.RoleUser}, eventID: e.event.ID, wantErr: ErrForbidden},
		{name: "unknown event", actor: e.admin, eventID: "00000000-0000-0000-0000-000000000000", wantErr: ErrNotFound},
		{name: "no registered teams", actor: e.owner, eventID: empty.ID, wantErr: ErrNotFound},
		{name: "team not registered", actor: e.owner, eventID: e.event.ID, teamIDs: []string{unregistered.ID}, wantErr: ErrNotFound},
		{name: "team id not uuid", actor: e.owner, eventID: e.event.ID, teamIDs: []string{"t1"}, wantErr: ErrValidation},
		{
			name: "invalid template type", actor: e.owner, eventID: e.event.ID,
			templates: []model.Template{{TrackingType: "vip", Label: "VIP"}}, wantErr: ErrValidation,
		},
		{
			name: "empty template label", actor: e.owner, eventID: e.event.ID,
			templates: []model.Template{{TrackingType: model.TrackingCustom, Label: "  "}}, wantErr: ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.tracking.IssueForEvent(ctx, tt.actor, tt.eventID, tt.templates, tt.teamIDs)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("IssueForEvent() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestIssueForEvent_AdminAllRegisteredTeams(t *testing.T) {
	e := newEnv(t)
	second := e.store.AddTeam(model.Team{Name: "Comets"})
	e.store.Register(e.event.ID, second.ID)

	report, err := e.tracking.IssueForEvent(context.Background(), e.admin, e.event.ID,
		[]model.Template{
			{TrackingType: model.TrackingCustom, Label: "Swag Bag"},
			{TrackingType: model.TrackingCustom, Label: " Swag Bag "},
		}, nil)
	if err != nil {
		t.Fatalf("IssueForEvent() error: %v", err)
	}
	if report.TotalTeams != 2 || report.CreatedCount != 2 {
		t.Errorf("report = teams %d created %d, want 2/2 (duplicate templates collapse)", report.TotalTeams, report.CreatedCount)
	}
}

func TestIssueForEvent_ItemErrorsDoNotAbort(t *testing.T) {
	e := newEnv(t)
	e.renderer.setFail(true)

	report, err := e.tracking.IssueForEvent(context.Background(), e.owner, e.event.ID, nil, nil)
	if err != nil {
		t.Fatalf("IssueForEvent() error: %v", err)
	}
	if report.ErrorCount != 3 || report.CreatedCount != 0 {
		t.Fatalf("report = errors %d created %d, want 3/0", report.ErrorCount, report.CreatedCount)
	}
	for _, out := range report.PerTeam[0].Results {
		if out.Status != OutcomeError || out.Message == "" {
			t.Errorf("outcome = %+v, want error with message", out)
		}
	}

	// Rows were reserved; a re-run reports them as existing.
	e.renderer.setFail(false)
	again, err := e.tracking.IssueForEvent(context.Background(), e.owner, e.event.ID, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if again.SkippedCount != 3 {
		t.Errorf("re-run skipped = %d, want 3", again.SkippedCount)
	}
}

func TestIssueOne(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	req := IssueRequest{
		EventID:      e.event.ID,
		TeamID:       e.team.ID,
		MemberID:     e.member.ID,
		TrackingType: model.TrackingFoodCoupon,
		Label:        "  Breakfast ",
		Metadata:     []byte(`{"table":4}`),
	}
	out, err := e.tracking.IssueOne(ctx, e.owner, req)
	if err != nil {
		t.Fatalf("IssueOne() error: %v", err)
	}
	if out.Status != OutcomeCreated || out.Record.Label != "Breakfast" || out.MemberName != "Ada" {
		t.Fatalf("IssueOne() = %+v", out)
	}
	if out.Record.QRPending {
		t.Fatal("created record still carries the placeholder image")
	}
	id, err := qrpayload.Decode(payloadOf(t, out.Record.QRCodeData))
	if err != nil || id != out.Record.ID {
		t.Errorf("embedded tracking id = %q (%v), want %q", id, err, out.Record.ID)
	}

	again, err := e.tracking.IssueOne(ctx, e.owner, req)
	if err != nil {
		t.Fatalf("IssueOne() repeat error: %v", err)
	}
	if again.Status != OutcomeSkipped || again.Record.ID != out.Record.ID {
		t.Errorf("repeat = %+v, want skipped with the same record", again)
	}

	// Team-scoped record with the same type and label is a different identity.
	req.MemberID = ""
	team, err := e.tracking.IssueOne(ctx, e.owner, req)
	if err != nil || team.Status != OutcomeCreated {
		t.Errorf("team-scoped issue = %+v, %v", team, err)
	}
}

func TestIssueOne_Errors(t *testing.T) {
	e := newEnv(t)
	base := IssueRequest{EventID: e.event.ID, TeamID: e.team.ID, TrackingType: model.TrackingCustom, Label: "Badge"}

	tests := []struct {
		name    string
		actor   rbac.Actor
		mutate  func(r *IssueRequest)
		wantErr error
	}{
		{name: "stranger", actor: e.stranger, wantErr: ErrForbidden},
		{name: "bad type", actor: e.owner, mutate: func(r *IssueRequest) { r.TrackingType = "Attendance" }, wantErr: ErrValidation},
		{name: "long label", actor: e.owner, mutate: func(r *IssueRequest) { r.Label = strings.Repeat("x", MaxLabelLen+1) }, wantErr: ErrValidation},
		{name: "member not uuid", actor: e.owner, mutate: func(r *IssueRequest) { r.MemberID = "ada" }, wantErr: ErrValidation},
		{name: "pending member", actor: e.owner, mutate: func(r *IssueRequest) { r.MemberID = e.pending.ID }, wantErr: ErrValidation},
		{name: "unknown member", actor: e.owner, mutate: func(r *IssueRequest) { r.MemberID = "11111111-1111-1111-1111-111111111111" }, wantErr: ErrNotFound},
		{name: "metadata not object", actor: e.owner, mutate: func(r *IssueRequest) { r.Metadata = []byte(`[1,2]`) }, wantErr: ErrValidation},
		{name: "unknown team", actor: e.owner, mutate: func(r *IssueRequest) { r.TeamID = "22222222-2222-2222-2222-222222222222" }, wantErr: ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base
			if tt.mutate != nil {
				tt.mutate(&req)
			}
			_, err := e.tracking.IssueOne(context.Background(), tt.actor, req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("IssueOne() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// reserveSpy records the image each reserved row is inserted with.
type reserveSpy struct {
	repository.TrackingRepository
	mu       sync.Mutex
	reserved []model.TrackingRecord
}

func (s *reserveSpy) Reserve(ctx context.Context, rec *model.TrackingRecord) error {
	s.mu.Lock()
	s.reserved = append(s.reserved, *rec)
	s.mu.Unlock()
	return s.TrackingRepository.Reserve(ctx, rec)
}

func TestIssueOne_ReservesPlaceholderImage(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	spy := &reserveSpy{TrackingRepository: e.store.Tracking()}
	svc := NewTrackingService(spy, e.store.Teams(), NewEventCache(e.store.Events(), 16, time.Minute),
		qrpayload.NewCodec(e.renderer), testLogger())

	req := IssueRequest{
		EventID:      e.event.ID,
		TeamID:       e.team.ID,
		MemberID:     e.member.ID,
		TrackingType: model.TrackingFoodCoupon,
		Label:        "Lunch",
	}
	out, err := svc.IssueOne(ctx, e.owner, req)
	if err != nil {
		t.Fatalf("IssueOne() error: %v", err)
	}
	if len(spy.reserved) != 1 {
		t.Fatalf("Reserve called %d times, want 1", len(spy.reserved))
	}

	var first qrpayload.Payload
	if err := json.Unmarshal([]byte(payloadOf(t, spy.reserved[0].QRCodeData)), &first); err != nil {
		t.Fatalf("reserved image is not a payload document: %v", err)
	}
	want := qrpayload.Payload{
		TrackingID: qrpayload.PlaceholderTrackingID,
		EventID:    e.event.ID,
		TeamID:     e.team.ID,
		MemberID:   e.member.ID,
		Type:       string(model.TrackingFoodCoupon),
		Label:      "Lunch",
	}
	if first != want {
		t.Errorf("reserved payload = %+v, want %+v", first, want)
	}

	d, err := e.store.Tracking().GetDetails(ctx, out.Record.ID)
	if err != nil {
		t.Fatal(err)
	}
	if d.QRPending || d.QRCodeData != out.Record.QRCodeData {
		t.Errorf("stored record pending=%v, image replaced=%v", d.QRPending, d.QRCodeData == out.Record.QRCodeData)
	}
	if id, _ := qrpayload.Decode(payloadOf(t, d.QRCodeData)); id != out.Record.ID {
		t.Errorf("final image encodes %q, want %q", id, out.Record.ID)
	}

	// A failed final render leaves the placeholder row pending.
	e.renderer.setFail(true)
	req.Label = "Dinner"
	if _, err := svc.IssueOne(ctx, e.owner, req); err == nil {
		t.Fatal("IssueOne() with a failing renderer should fail")
	}
	e.renderer.setFail(false)
	key := model.Identity{EventID: e.event.ID, TeamID: e.team.ID, MemberID: e.member.ID,
		TrackingType: model.TrackingFoodCoupon, Label: "Dinner"}
	dinner, err := e.store.Tracking().FindByIdentity(ctx, key)
	if err != nil {
		t.Fatalf("reserved row missing: %v", err)
	}
	if !dinner.QRPending {
		t.Error("row with a placeholder image is not pending")
	}
	if id, _ := qrpayload.Decode(payloadOf(t, dinner.QRCodeData)); id != qrpayload.PlaceholderTrackingID {
		t.Errorf("pending image encodes %q, want the placeholder", id)
	}
}

func TestIssueOne_Concurrent(t *testing.T) {
	e := newEnv(t)
	req := IssueRequest{
		EventID:      e.event.ID,
		TeamID:       e.team.ID,
		TrackingType: model.TrackingCustom,
		Label:        "Swag Bag",
	}

	const workers = 20
	var wg sync.WaitGroup
	outs := make(chan *Outcome, workers)
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := e.tracking.IssueOne(context.Background(), e.owner, req)
			if err != nil {
				errs <- err
				return
			}
			outs <- out
		}()
	}
	wg.Wait()
	close(outs)
	close(errs)

	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}
	var created, skipped int
	ids := make(map[string]bool)
	for out := range outs {
		switch out.Status {
		case OutcomeCreated:
			created++
		case OutcomeSkipped:
			skipped++
		default:
			t.Errorf("outcome = %+v", out)
		}
		ids[out.Record.ID] = true
	}
	if created != 1 || skipped != workers-1 {
		t.Errorf("created=%d skipped=%d, want 1/%d", created, skipped, workers-1)
	}
	if len(ids) != 1 {
		t.Errorf("outcomes reference %d records, want 1", len(ids))
	}

	stored, err := e.store.Tracking().ListByTeam(context.Background(), e.event.ID, e.team.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 1 {
		t.Errorf("stored %d records, want 1", len(stored))
	}
}

func TestIssueForTeamMembers(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	report, err := e.tracking.IssueForTeamMembers(ctx, e.owner, e.event.ID, e.team.ID, nil)
	if err != nil {
		t.Fatalf("IssueForTeamMembers() error: %v", err)
	}
	// Only Ada is accepted.
	if report.CreatedCount != 3 || len(report.Results) != 3 {
		t.Fatalf("report = %+v, want 3 created", report)
	}
	want := map[string]bool{
		"Event Attendance - Ada": true,
		"Lunch Coupon - Ada":     true,
		"Dinner Coupon - Ada":    true,
	}
	for _, out := range report.Results {
		if !want[out.Label] || out.MemberID != e.member.ID || out.MemberName != "Ada" {
			t.Errorf("outcome = %+v", out)
		}
		if out.Record.MemberID == nil || *out.Record.MemberID != e.member.ID {
			t.Errorf("record %s is not member-scoped", out.Record.ID)
		}
	}

	again, err := e.tracking.IssueForTeamMembers(ctx, e.owner, e.event.ID, e.team.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	if again.SkippedCount != 3 || again.CreatedCount != 0 {
		t.Errorf("re-run = created %d skipped %d, want 0/3", again.CreatedCount, again.SkippedCount)
	}

	lonely := e.store.AddTeam(model.Team{Name: "Solo"})
	e.store.Register(e.event.ID, lonely.ID)
	if _, err := e.tracking.IssueForTeamMembers(ctx, e.owner, e.event.ID, lonely.ID, nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("team without accepted members error = %v, want ErrNotFound", err)
	}
	if _, err := e.tracking.IssueForTeamMembers(ctx, e.stranger, e.event.ID, e.team.ID, nil); !errors.Is(err, ErrForbidden) {
		t.Errorf("stranger error = %v, want ErrForbidden", err)
	}
}

func TestMemberLabelTruncation(t *testing.T) {
	got := memberLabel("Lunch Coupon", strings.Repeat("я", 300))
	if n := len([]rune(got)); n != MaxLabelLen {
		t.Errorf("memberLabel() length = %d runes, want %d", n, MaxLabelLen)
	}
	if !strings.HasPrefix(got, "Lunch Coupon - ") {
		t.Errorf("memberLabel() = %q", got[:20])
	}
}

func TestScan_Errors(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	rec := e.issueAttendance(t, e.event.ID)
	payload := payloadOf(t, rec.QRCodeData)

	tests := []struct {
		name    string
		actor   rbac.Actor
		eventID string
		payload string
		wantErr error
	}{
		{name: "empty payload", actor: e.owner, eventID: e.event.ID, payload: "   ", wantErr: ErrMalformedPayload},
		{name: "object without tracking id", actor: e.owner, eventID: e.event.ID, payload: `{"eventId":"x"}`, wantErr: ErrMalformedPayload},
		{name: "placeholder id", actor: e.owner, eventID: e.event.ID, payload: `{"trackingId":"temp"}`, wantErr: ErrNotFound},
		{name: "unknown id", actor: e.owner, eventID: e.event.ID, payload: "33333333-3333-3333-3333-333333333333", wantErr: ErrNotFound},
		{name: "other event", actor: e.admin, eventID: e.other.ID, payload: payload, wantErr: ErrWrongEvent},
		{name: "not owner", actor: e.stranger, eventID: e.event.ID, payload: payload, wantErr: ErrForbidden},
		{name: "team member", actor: rbac.Actor{UserID: "u-ada", Role: rbac.RoleUser, Email: "ada@x.io"}, eventID: e.event.ID, payload: payload, wantErr: ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.tracking.Scan(ctx, tt.actor, tt.eventID, tt.payload)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Scan() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	// None of the failures consumed the code.
	d, _ := e.store.Tracking().GetDetails(ctx, rec.ID)
	if d.ScannedAt != nil {
		t.Fatal("failed scans changed the record")
	}

	// Bare-string form with surrounding whitespace.
	if _, err := e.tracking.Scan(ctx, e.owner, e.event.ID, "  "+rec.ID+"\n"); err != nil {
		t.Errorf("Scan() bare id error: %v", err)
	}
}

func TestScan_Concurrent(t *testing.T) {
	e := newEnv(t)
	rec := e.issueAttendance(t, e.event.ID)
	payload := payloadOf(t, rec.QRCodeData)

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.tracking.Scan(context.Background(), e.owner, e.event.ID, payload)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, already int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrAlreadyScanned):
			already++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 || already != workers-1 {
		t.Errorf("ok=%d already=%d, want 1/%d", ok, already, workers-1)
	}
}

func TestListTeamCodes(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	rec := e.issueAttendance(t, e.event.ID)
	if _, err := e.tracking.Scan(ctx, e.owner, e.event.ID, rec.ID); err != nil {
		t.Fatal(err)
	}

	// A reserved record whose final image failed to render.
	e.renderer.setFail(true)
	_, _ = e.tracking.IssueOne(ctx, e.owner, IssueRequest{
		EventID: e.event.ID, TeamID: e.team.ID, TrackingType: model.TrackingFoodCoupon, Label: "Lunch Coupon",
	})
	e.renderer.setFail(false)

	tests := []struct {
		name    string
		actor   rbac.Actor
		wantErr error
	}{
		{name: "owner", actor: e.owner},
		{name: "admin", actor: e.admin},
		{name: "accepted member by email", actor: rbac.Actor{UserID: "u-ada", Role: rbac.RoleUser, Email: "ADA@x.io"}},
		{name: "pending member", actor: rbac.Actor{UserID: "u-bob", Role: rbac.RoleUser, Email: "bob@x.io"}, wantErr: ErrForbidden},
		{name: "no email", actor: rbac.Actor{UserID: "u-x", Role: rbac.RoleUser}, wantErr: ErrForbidden},
		{name: "other manager", actor: e.stranger, wantErr: ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codes, err := e.tracking.ListTeamCodes(ctx, tt.actor, e.event.ID, e.team.ID)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ListTeamCodes() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if len(codes) != 2 {
				t.Fatalf("ListTeamCodes() = %d codes, want 2", len(codes))
			}
			for _, c := range codes {
				if c.QRPending {
					t.Errorf("code %s still pending after read", c.ID)
				}
				if id, _ := qrpayload.Decode(payloadOf(t, c.QRCodeData)); id != c.ID {
					t.Errorf("code %s image encodes %q", c.ID, id)
				}
				if c.IsScanned != (c.ID == rec.ID) {
					t.Errorf("code %s IsScanned = %v", c.ID, c.IsScanned)
				}
			}
		})
	}

	// The lazily rendered image was persisted and scan state kept.
	codes, _ := e.store.Tracking().ListByTeam(ctx, e.event.ID, e.team.ID)
	for _, c := range codes {
		if c.QRPending {
			t.Errorf("record %s image not persisted", c.ID)
		}
		if (c.ScannedAt != nil) != (c.ID == rec.ID) {
			t.Errorf("record %s scan state changed by read", c.ID)
		}
	}

	unregistered := e.store.AddTeam(model.Team{Name: "Ghosts"})
	if _, err := e.tracking.ListTeamCodes(ctx, e.owner, e.event.ID, unregistered.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("unregistered team error = %v, want ErrNotFound", err)
	}
	// Outsiders get the same answer for registered and unregistered teams.
	outsider := rbac.Actor{UserID: "u-x", Role: rbac.RoleUser, Email: "x@x.io"}
	for _, teamID := range []string{e.team.ID, unregistered.ID, "33333333-3333-3333-3333-333333333333"} {
		if _, err := e.tracking.ListTeamCodes(ctx, outsider, e.event.ID, teamID); !errors.Is(err, ErrForbidden) {
			t.Errorf("outsider on team %s error = %v, want ErrForbidden", teamID, err)
		}
	}
}

func TestSummary(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	report, err := e.tracking.IssueForEvent(ctx, e.owner, e.event.ID, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	lunch := report.PerTeam[0].Results[1].Record
	if _, err := e.tracking.Scan(ctx, e.owner, e.event.ID, lunch.ID); err != nil {
		t.Fatal(err)
	}

	got, err := e.tracking.Summary(ctx, e.owner, e.event.ID)
	if err != nil {
		t.Fatalf("Summary() error: %v", err)
	}
	want := map[model.TrackingType][2]int{
		model.TrackingAttendance: {1, 0},
		model.TrackingFoodCoupon: {2, 1},
	}
	if len(got) != len(want) {
		t.Fatalf("Summary() = %+v", got)
	}
	for _, s := range got {
		if w := want[s.TrackingType]; s.Issued != w[0] || s.Scanned != w[1] {
			t.Errorf("%s = %d/%d, want %d/%d", s.TrackingType, s.Issued, s.Scanned, w[0], w[1])
		}
	}

	if _, err := e.tracking.Summary(ctx, e.stranger, e.event.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("stranger error = %v, want ErrForbidden", err)
	}
}

func TestMessageService(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	if _, err := e.messages.Post(ctx, e.owner, e.event.ID, PostRequest{Title: "Welcome", Content: "Doors open at 9"}); err != nil {
		t.Fatalf("Post() error: %v", err)
	}
	msg, err := e.messages.Post(ctx, e.admin, e.event.ID, PostRequest{Title: "Lunch", Content: "Moved to hall B", Priority: "urgent"})
	if err != nil {
		t.Fatalf("Post() error: %v", err)
	}
	if msg.Priority != model.PriorityUrgent || msg.ManagerName != "root@x.io" {
		t.Errorf("Post() = %+v", msg)
	}

	list, err := e.messages.List(ctx, e.event.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].Title != "Lunch" || list[1].Priority != model.PriorityNormal {
		t.Errorf("List() = %+v", list)
	}

	tests := []struct {
		name    string
		actor   rbac.Actor
		eventID string
		req     PostRequest
		wantErr error
	}{
		{name: "missing content", actor: e.owner, eventID: e.event.ID, req: PostRequest{Title: "x"}, wantErr: ErrValidation},
		{name: "bad priority", actor: e.owner, eventID: e.event.ID, req: PostRequest{Title: "x", Content: "y", Priority: "critical"}, wantErr: ErrValidation},
		{name: "stranger", actor: e.stranger, eventID: e.event.ID, req: PostRequest{Title: "x", Content: "y"}, wantErr: ErrForbidden},
		{name: "unknown event", actor: e.admin, eventID: "nope", req: PostRequest{Title: "x", Content: "y"}, wantErr: ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.messages.Post(ctx, tt.actor, tt.eventID, tt.req); !errors.Is(err, tt.wantErr) {
				t.Errorf("Post() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := e.messages.List(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("List(unknown) error = %v, want ErrNotFound", err)
	}
}

// countingEvents counts repository lookups behind the cache.
type countingEvents struct {
	repository.EventRepository
	mu    sync.Mutex
	calls int
}

func (c *countingEvents) GetByID(ctx context.Context, id string) (*model.Event, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.EventRepository.GetByID(ctx, id)
}

func TestEventCache(t *testing.T) {
	s := memory.NewStore()
	ev := s.AddEvent(model.Event{ManagerID: "m"})
	repo := &countingEvents{EventRepository: s.Events()}
	cache := NewEventCache(repo, 4, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := cache.Get(ctx, ev.ID); err != nil {
			t.Fatal(err)
		}
	}
	if repo.calls != 1 {
		t.Errorf("repository calls = %d, want 1", repo.calls)
	}

	for i := 0; i < 2; i++ {
		if _, err := cache.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
		}
	}
	if repo.calls != 3 {
		t.Errorf("misses must not be cached: calls = %d, want 3", repo.calls)
	}

	short := NewEventCache(repo, 4, 20*time.Millisecond)
	_, _ = short.Get(ctx, ev.ID)
	time.Sleep(60 * time.Millisecond)
	_, _ = short.Get(ctx, ev.ID)
	if repo.calls != 5 {
		t.Errorf("expired entry must be reloaded: calls = %d, want 5", repo.calls)
	}
}
