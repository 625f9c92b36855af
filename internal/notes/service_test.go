package notes

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/harborlight-hq/harborlight/internal/authz"
	"github.com/harborlight-hq/harborlight/internal/consent"
	"github.com/harborlight-hq/harborlight/internal/shared"
)

type memStore struct {
	notes []Note
}

func (m *memStore) Insert(_ context.Context, n Note) (Note, error) {
	n.CreatedAt = time.Now()
	m.notes = append(m.notes, n)
	return n, nil
}

func (m *memStore) ListForSubject(_ context.Context, subjectID uuid.UUID) ([]Note, error) {
	var out []Note
	for _, n := range m.notes {
		if n.SubjectID == subjectID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *memStore) CountForSubject(_ context.Context, subjectID uuid.UUID) (int, error) {
	count := 0
	for _, n := range m.notes {
		if n.SubjectID == subjectID {
			count++
		}
	}
	return count, nil
}

type stubAuthorizer struct {
	decisions map[string]authz.Decision // key -> decision
	holds     bool
}

func (s *stubAuthorizer) Authorize(_ context.Context, actor *shared.Actor, key string, _ authz.Subject) (authz.Decision, error) {
	if actor == nil {
		return authz.Decision{}, shared.ErrUnauthenticated
	}
	if d, ok := s.decisions[key]; ok {
		return d, nil
	}
	return authz.Decision{Outcome: authz.OutcomeDeny, Reason: authz.ReasonNoRole}, nil
}

func (s *stubAuthorizer) HoldsPermission(context.Context, int64, string) (bool, error) {
	return s.holds, nil
}

type stubPrograms struct{ programs []int64 }

func (s *stubPrograms) ProgramsFor(context.Context, int64) ([]int64, error) {
	return s.programs, nil
}

type stubAssignments struct{ assigned bool }

func (s *stubAssignments) IsAssigned(context.Context, int64, uuid.UUID) (bool, error) {
	return s.assigned, nil
}

type stubHistory struct {
	records map[uuid.UUID][]consent.Record
}

func (s *stubHistory) HistoryFor(_ context.Context, subjectID uuid.UUID) ([]consent.Record, error) {
	return s.records[subjectID], nil
}

func newTestFilter(records map[uuid.UUID][]consent.Record) *consent.Filter {
	return consent.NewFilter(&stubHistory{records: records}, slog.Default())
}

func TestCreateRequiresBody(t *testing.T) {
	svc := NewService(&memStore{}, &stubAuthorizer{}, newTestFilter(nil), &stubPrograms{}, &stubAssignments{})
	actor := &shared.Actor{ID: 1}

	_, err := svc.Create(context.Background(), actor, Note{SubjectID: uuid.New(), ProgramID: 1, Body: "   "})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "body", verr.Field)
}

func TestCreateDeniedWithoutPermission(t *testing.T) {
	svc := NewService(&memStore{}, &stubAuthorizer{}, newTestFilter(nil), &stubPrograms{}, &stubAssignments{})
	actor := &shared.Actor{ID: 1}

	_, err := svc.Create(context.Background(), actor, Note{SubjectID: uuid.New(), ProgramID: 1, Body: "seen at intake"})
	var denied *DeniedError
	require.ErrorAs(t, err, &denied)
}

func TestCreateScopedRequiresAssignment(t *testing.T) {
	auth := &stubAuthorizer{decisions: map[string]authz.Decision{
		authz.PermNotesEdit: {Outcome: authz.OutcomeScoped, Reason: authz.ReasonRole},
	}}
	store := &memStore{}
	svc := NewService(store, auth, newTestFilter(nil), &stubPrograms{}, &stubAssignments{assigned: false})
	actor := &shared.Actor{ID: 7}

	_, err := svc.Create(context.Background(), actor, Note{SubjectID: uuid.New(), ProgramID: 1, Body: "weekly check-in"})
	var denied *DeniedError
	require.ErrorAs(t, err, &denied)
	require.Empty(t, store.notes)
}

func TestListFiltersCrossProgramWithoutConsent(t *testing.T) {
	subject := uuid.New()
	store := &memStore{notes: []Note{
		{ID: uuid.New(), SubjectID: subject, ProgramID: 1, Category: CategoryGeneral, Body: "housing intake"},
		{ID: uuid.New(), SubjectID: subject, ProgramID: 2, Category: CategoryGeneral, Body: "counseling session"},
	}}
	auth := &stubAuthorizer{decisions: map[string]authz.Decision{
		authz.PermNotesView: {Outcome: authz.OutcomeAllow, Reason: authz.ReasonRole},
	}}
	// Viewer belongs to program 1 only; no consent covers program 2.
	svc := NewService(store, auth, newTestFilter(nil), &stubPrograms{programs: []int64{1}}, &stubAssignments{})

	views, err := svc.ListForSubject(context.Background(), &shared.Actor{ID: 7}, subject)
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.Equal(t, "housing intake", views[0].Note.Body)
}

func TestListIncludesConsentedCrossProgram(t *testing.T) {
	subject := uuid.New()
	store := &memStore{notes: []Note{
		{ID: uuid.New(), SubjectID: subject, ProgramID: 2, Category: CategoryGeneral, Body: "counseling session"},
	}}
	auth := &stubAuthorizer{decisions: map[string]authz.Decision{
		authz.PermNotesView: {Outcome: authz.OutcomeAllow, Reason: authz.ReasonRole},
	}}
	history := map[uuid.UUID][]consent.Record{
		subject: {{
			ID:        uuid.New(),
			SubjectID: subject,
			Scope:     consent.Scope{FromProgram: 2, ToProgram: 1},
			GrantedAt: time.Now().Add(-time.Hour),
			CreatedAt: time.Now().Add(-time.Hour),
		}},
	}
	svc := NewService(store, auth, newTestFilter(history), &stubPrograms{programs: []int64{1}}, &stubAssignments{})

	views, err := svc.ListForSubject(context.Background(), &shared.Actor{ID: 7}, subject)
	require.NoError(t, err)
	require.Len(t, views, 1)
}

func TestListGatedHealthNoteHasNoBody(t *testing.T) {
	subject := uuid.New()
	store := &memStore{notes: []Note{
		{ID: uuid.New(), SubjectID: subject, ProgramID: 1, Category: CategoryHealth, Body: "diagnosis details"},
	}}
	auth := &stubAuthorizer{decisions: map[string]authz.Decision{
		authz.PermNotesHealthView: {
			Outcome:  authz.OutcomeGated,
			Reason:   authz.ReasonGrantRequired,
			Guidance: "record a reason to unlock",
		},
	}}
	svc := NewService(store, auth, newTestFilter(nil), &stubPrograms{programs: []int64{1}}, &stubAssignments{})

	views, err := svc.ListForSubject(context.Background(), &shared.Actor{ID: 7}, subject)
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.True(t, views[0].Gated)
	require.Empty(t, views[0].Note.Body)
	require.NotEmpty(t, views[0].Guidance)
}

func TestListScopedWithoutAssignmentExcludes(t *testing.T) {
	subject := uuid.New()
	store := &memStore{notes: []Note{
		{ID: uuid.New(), SubjectID: subject, ProgramID: 1, Category: CategoryGeneral, Body: "case plan"},
	}}
	auth := &stubAuthorizer{decisions: map[string]authz.Decision{
		authz.PermNotesView: {Outcome: authz.OutcomeScoped, Reason: authz.ReasonRole},
	}}
	svc := NewService(store, auth, newTestFilter(nil), &stubPrograms{programs: []int64{1}}, &stubAssignments{assigned: false})

	views, err := svc.ListForSubject(context.Background(), &shared.Actor{ID: 7}, subject)
	require.NoError(t, err)
	require.Empty(t, views)
}

func TestCountBypassesConsentFilter(t *testing.T) {
	subject := uuid.New()
	store := &memStore{notes: []Note{
		{ID: uuid.New(), SubjectID: subject, ProgramID: 1, Body: "a"},
		{ID: uuid.New(), SubjectID: subject, ProgramID: 2, Body: "b"},
	}}
	svc := NewService(store, &stubAuthorizer{holds: true}, newTestFilter(nil), &stubPrograms{programs: []int64{1}}, &stubAssignments{})

	count, err := svc.CountForSubject(context.Background(), &shared.Actor{ID: 7}, subject)
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestCountForbiddenWithoutViewPermission(t *testing.T) {
	svc := NewService(&memStore{}, &stubAuthorizer{holds: false}, newTestFilter(nil), &stubPrograms{}, &stubAssignments{})

	_, err := svc.CountForSubject(context.Background(), &shared.Actor{ID: 7}, uuid.New())
	require.ErrorIs(t, err, shared.ErrForbidden)
}
