package participants

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/harborlight-hq/harborlight/internal/authz"
	"github.com/harborlight-hq/harborlight/internal/shared"
)

type memStore struct {
	participants map[uuid.UUID]Participant
	assignments  map[int64]map[uuid.UUID]bool
}

func newMemStore() *memStore {
	return &memStore{
		participants: make(map[uuid.UUID]Participant),
		assignments:  make(map[int64]map[uuid.UUID]bool),
	}
}

func (m *memStore) Insert(_ context.Context, p Participant) (Participant, error) {
	m.participants[p.ID] = p
	return p, nil
}

func (m *memStore) Get(_ context.Context, id uuid.UUID) (Participant, error) {
	p, ok := m.participants[id]
	if !ok {
		return Participant{}, shared.ErrNotFound
	}
	return p, nil
}

func (m *memStore) IsAssigned(_ context.Context, userID int64, subjectID uuid.UUID) (bool, error) {
	return m.assignments[userID][subjectID], nil
}

func (m *memStore) Assign(_ context.Context, userID int64, subjectID uuid.UUID) error {
	if m.assignments[userID] == nil {
		m.assignments[userID] = make(map[uuid.UUID]bool)
	}
	m.assignments[userID][subjectID] = true
	return nil
}

type stubAuthorizer struct {
	decision authz.Decision
	fields   map[string]authz.FieldVisibility
}

func (s *stubAuthorizer) Authorize(_ context.Context, actor *shared.Actor, _ string, _ authz.Subject) (authz.Decision, error) {
	if actor == nil {
		return authz.Decision{}, shared.ErrUnauthenticated
	}
	return s.decision, nil
}

func (s *stubAuthorizer) FieldVisibility(_ context.Context, _ *shared.Actor, _ authz.Subject, field string) (authz.FieldVisibility, error) {
	return s.fields[field], nil
}

func seed(store *memStore) Participant {
	p := Participant{
		ID:        uuid.New(),
		ProgramID: 1,
		FirstName: "Jordan",
		LastName:  "Reyes",
		Phone:     "555-0107",
		Email:     "jordan@example.org",
		Address:   "12 Harbor Lane",
	}
	store.participants[p.ID] = p
	return p
}

func TestGetDeniedWithoutRole(t *testing.T) {
	store := newMemStore()
	p := seed(store)
	svc := NewService(store, &stubAuthorizer{decision: authz.Decision{Outcome: authz.OutcomeDeny, Reason: authz.ReasonNoRole}})

	_, err := svc.Get(context.Background(), &shared.Actor{ID: 7}, p.ID)
	var denied *DeniedError
	require.ErrorAs(t, err, &denied)
	require.Equal(t, authz.ReasonNoRole, denied.Decision.Reason)
}

func TestGetScopedRequiresAssignment(t *testing.T) {
	store := newMemStore()
	p := seed(store)
	svc := NewService(store, &stubAuthorizer{decision: authz.Decision{Outcome: authz.OutcomeScoped, Reason: authz.ReasonRole}})
	actor := &shared.Actor{ID: 7}

	_, err := svc.Get(context.Background(), actor, p.ID)
	var denied *DeniedError
	require.ErrorAs(t, err, &denied)
	require.NotEmpty(t, denied.Decision.Guidance)

	require.NoError(t, store.Assign(context.Background(), actor.ID, p.ID))
	got, err := svc.Get(context.Background(), actor, p.ID)
	require.NoError(t, err)
	require.Equal(t, p.FirstName, got.FirstName)
}

func TestGetGatedSurfacesGrantFlow(t *testing.T) {
	store := newMemStore()
	p := seed(store)
	svc := NewService(store, &stubAuthorizer{decision: authz.Decision{
		Outcome:  authz.OutcomeGated,
		Reason:   authz.ReasonGrantRequired,
		Guidance: "record a reason to unlock",
	}})

	_, err := svc.Get(context.Background(), &shared.Actor{ID: 7}, p.ID)
	var gated *GateRequiredError
	require.ErrorAs(t, err, &gated)
	require.Equal(t, "record a reason to unlock", gated.Decision.Guidance)
}

func TestGetMasksHiddenFields(t *testing.T) {
	store := newMemStore()
	p := seed(store)
	svc := NewService(store, &stubAuthorizer{
		decision: authz.Decision{Outcome: authz.OutcomeAllow, Reason: authz.ReasonRole},
		fields: map[string]authz.FieldVisibility{
			FieldPhone:   authz.FieldHidden,
			FieldAddress: authz.FieldHidden,
		},
	})

	got, err := svc.Get(context.Background(), &shared.Actor{ID: 7}, p.ID)
	require.NoError(t, err)
	require.Empty(t, got.Phone)
	require.Empty(t, got.Address)
	require.Equal(t, "jordan@example.org", got.Email)
}

func TestCreateAuthorizesBeforeInsert(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, &stubAuthorizer{decision: authz.Decision{Outcome: authz.OutcomeDeny, Reason: authz.ReasonNoRole}})

	_, err := svc.Create(context.Background(), &shared.Actor{ID: 7}, Participant{ProgramID: 1, FirstName: "Sam"})
	var denied *DeniedError
	require.ErrorAs(t, err, &denied)
	require.Empty(t, store.participants)
}

func TestAssignCaseWorker(t *testing.T) {
	store := newMemStore()
	p := seed(store)
	svc := NewService(store, &stubAuthorizer{decision: authz.Decision{Outcome: authz.OutcomeAllow, Reason: authz.ReasonRole}})

	require.NoError(t, svc.AssignCaseWorker(context.Background(), &shared.Actor{ID: 1}, 7, p.ID))
	assigned, err := svc.IsAssigned(context.Background(), 7, p.ID)
	require.NoError(t, err)
	require.True(t, assigned)
}
