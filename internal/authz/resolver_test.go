package authz

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/harborlight-hq/harborlight/internal/audit"
	"github.com/harborlight-hq/harborlight/internal/grants"
	"github.com/harborlight-hq/harborlight/internal/shared"
)

type stubBlocks struct {
	blocked bool
	err     error
}

func (s *stubBlocks) IsBlocked(context.Context, int64, uuid.UUID) (bool, error) {
	return s.blocked, s.err
}

type stubGrants struct {
	grant grants.Grant
	ok    bool
}

func (s *stubGrants) ValidGrant(context.Context, int64, uuid.UUID) (grants.Grant, bool, error) {
	return s.grant, s.ok, nil
}

type stubRoles struct {
	roles    map[int64][]string // programID -> roles
	programs []int64
}

func (s *stubRoles) RolesFor(_ context.Context, _ int64, programID int64) ([]string, error) {
	return s.roles[programID], nil
}

func (s *stubRoles) ProgramsFor(context.Context, int64) ([]int64, error) {
	return s.programs, nil
}

type memSink struct {
	entries []audit.Entry
	fail    bool
}

func (m *memSink) Insert(_ context.Context, entry audit.Entry) error {
	if m.fail {
		return errors.New("audit db down")
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memSink) last(t *testing.T) audit.Entry {
	t.Helper()
	require.NotEmpty(t, m.entries)
	return m.entries[len(m.entries)-1]
}

type fixture struct {
	resolver *Resolver
	blocks   *stubBlocks
	grants   *stubGrants
	roles    *stubRoles
	sink     *memSink
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := LoadPolicyStore(writePolicy(t, testPolicy))
	require.NoError(t, err)
	f := &fixture{
		blocks: &stubBlocks{},
		grants: &stubGrants{},
		roles:  &stubRoles{roles: map[int64][]string{}},
		sink:   &memSink{},
	}
	recorder := audit.NewRecorder(f.sink, nil, nil)
	f.resolver = NewResolver(store, f.roles, f.blocks, f.grants, recorder, nil, nil)
	return f
}

func TestAuthorizeBlockBeatsEverything(t *testing.T) {
	f := newFixture(t)
	f.blocks.blocked = true
	// Widest possible role and the admin flag: neither matters.
	f.roles.roles[1] = []string{"program_manager"}
	actor := &shared.Actor{ID: 7, SystemAdmin: true}

	decision, err := f.resolver.Authorize(context.Background(), actor, PermParticipantsView, Subject{ID: uuid.New(), ProgramID: 1})
	require.NoError(t, err)
	require.Equal(t, OutcomeDeny, decision.Outcome)
	require.Equal(t, ReasonRestricted, decision.Reason)
	require.NotEmpty(t, decision.Guidance)

	// Denials are audited synchronously.
	entry := f.sink.last(t)
	require.Equal(t, "authz.decision", entry.Action)
	require.Equal(t, audit.DecisionDeny, entry.Decision)
}

func TestAuthorizeUnknownKeyFailsClosed(t *testing.T) {
	f := newFixture(t)
	f.roles.roles[1] = []string{"program_manager"}

	decision, err := f.resolver.Authorize(context.Background(), &shared.Actor{ID: 7}, "reports.generate", Subject{ID: uuid.New(), ProgramID: 1})
	require.NoError(t, err)
	require.Equal(t, OutcomeDeny, decision.Outcome)
	require.Equal(t, ReasonConfiguration, decision.Reason)
}

func TestAuthorizeAdminFlagGrantsNoSubjectData(t *testing.T) {
	f := newFixture(t)
	actor := &shared.Actor{ID: 7, SystemAdmin: true}

	decision, err := f.resolver.Authorize(context.Background(), actor, PermParticipantsView, Subject{ID: uuid.New(), ProgramID: 1})
	require.NoError(t, err)
	require.Equal(t, OutcomeDeny, decision.Outcome)
	require.Equal(t, ReasonNoRole, decision.Reason)
}

func TestAuthorizeScoped(t *testing.T) {
	f := newFixture(t)
	f.roles.roles[1] = []string{"case_worker"}

	decision, err := f.resolver.Authorize(context.Background(), &shared.Actor{ID: 7}, PermNotesView, Subject{ID: uuid.New(), ProgramID: 1})
	require.NoError(t, err)
	require.Equal(t, OutcomeScoped, decision.Outcome)
}

func TestAuthorizeGatedWithoutGrant(t *testing.T) {
	f := newFixture(t)
	f.roles.roles[1] = []string{"case_worker"}

	decision, err := f.resolver.Authorize(context.Background(), &shared.Actor{ID: 7}, PermNotesHealthView, Subject{ID: uuid.New(), ProgramID: 1})
	require.NoError(t, err)
	require.Equal(t, OutcomeGated, decision.Outcome)
	require.Equal(t, ReasonGrantRequired, decision.Reason)
	require.NotEmpty(t, decision.Guidance)

	entry := f.sink.last(t)
	require.Equal(t, audit.DecisionGated, entry.Decision)
}

func TestAuthorizeGatedWithGrantAllowsAndAuditsUse(t *testing.T) {
	f := newFixture(t)
	f.roles.roles[1] = []string{"case_worker"}
	f.grants.ok = true
	f.grants.grant = grants.Grant{ID: uuid.New(), ExpiresAt: time.Now().Add(time.Hour)}

	decision, err := f.resolver.Authorize(context.Background(), &shared.Actor{ID: 7}, PermNotesHealthView, Subject{ID: uuid.New(), ProgramID: 1})
	require.NoError(t, err)
	require.Equal(t, OutcomeAllow, decision.Outcome)
	require.Equal(t, ReasonGranted, decision.Reason)

	entry := f.sink.last(t)
	require.Equal(t, "grant.use", entry.Action)
	require.Equal(t, f.grants.grant.ID.String(), entry.ResourceID)
}

func TestAuthorizeDenyWithheldWhenAuditUnavailable(t *testing.T) {
	f := newFixture(t)
	f.blocks.blocked = true
	f.sink.fail = true

	_, err := f.resolver.Authorize(context.Background(), &shared.Actor{ID: 7}, PermParticipantsView, Subject{ID: uuid.New(), ProgramID: 1})
	require.Error(t, err)
}

func TestAuthorizeNilActor(t *testing.T) {
	f := newFixture(t)
	_, err := f.resolver.Authorize(context.Background(), nil, PermParticipantsView, Subject{ID: uuid.New(), ProgramID: 1})
	require.ErrorIs(t, err, shared.ErrUnauthenticated)
}

func TestHoldsPermissionAcrossPrograms(t *testing.T) {
	f := newFixture(t)
	f.roles.programs = []int64{1, 2}
	f.roles.roles[2] = []string{"program_manager"}

	holds, err := f.resolver.HoldsPermission(context.Background(), 7, PermAuditView)
	require.NoError(t, err)
	require.True(t, holds)

	holds, err = f.resolver.HoldsPermission(context.Background(), 7, PermBlocksManage)
	require.NoError(t, err)
	require.False(t, holds)
}

func TestFieldVisibilityRefinement(t *testing.T) {
	f := newFixture(t)
	f.roles.roles[1] = []string{"volunteer"}

	vis, err := f.resolver.FieldVisibility(context.Background(), &shared.Actor{ID: 7}, Subject{ID: uuid.New(), ProgramID: 1}, "participants.address")
	require.NoError(t, err)
	require.Equal(t, FieldHidden, vis)
}
