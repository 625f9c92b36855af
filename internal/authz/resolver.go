package authz

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/harborlight-hq/harborlight/internal/audit"
	"github.com/harborlight-hq/harborlight/internal/grants"
	"github.com/harborlight-hq/harborlight/internal/shared"
)

// BlockSource answers whether an absolute denial exists for a pair.
type BlockSource interface {
	IsBlocked(ctx context.Context, userID int64, subjectID uuid.UUID) (bool, error)
}

// GrantSource looks up a live just-in-time grant.
type GrantSource interface {
	ValidGrant(ctx context.Context, userID int64, subjectID uuid.UUID) (grants.Grant, bool, error)
}

// RoleSource reads role assignments. The kernel never writes them;
// they belong to the user-management workflow.
type RoleSource interface {
	RolesFor(ctx context.Context, userID, programID int64) ([]string, error)
	ProgramsFor(ctx context.Context, userID int64) ([]int64, error)
}

// Resolver computes the capability of a user for an action on a
// subject. Checks run in fixed precedence order: the negative block
// first and short-circuiting, then role membership, then the
// scoped/gated category. Reordering them is a correctness bug, not a
// tuning knob.
type Resolver struct {
	policy    *PolicyStore
	roles     RoleSource
	blocks    BlockSource
	grants    GrantSource
	recorder  *audit.Recorder
	logger    *slog.Logger
	decisions *prometheus.CounterVec
}

// NewResolver constructs a Resolver. The decisions counter may be nil.
func NewResolver(policy *PolicyStore, roles RoleSource, blocks BlockSource, grantSource GrantSource, recorder *audit.Recorder, logger *slog.Logger, decisions *prometheus.CounterVec) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		policy:    policy,
		roles:     roles,
		blocks:    blocks,
		grants:    grantSource,
		recorder:  recorder,
		logger:    logger,
		decisions: decisions,
	}
}

// Authorize decides whether actor may perform the keyed action against
// the subject. Deny and Gated outcomes are audited synchronously: if
// that audit write fails, no decision is returned at all.
func (r *Resolver) Authorize(ctx context.Context, actor *shared.Actor, key string, subject Subject) (Decision, error) {
	if actor == nil {
		return Decision{}, shared.ErrUnauthenticated
	}

	// 1. Negative access block. Nothing else matters if one exists:
	// not roles, not grants, not the admin flag.
	blocked, err := r.blocks.IsBlocked(ctx, actor.ID, subject.ID)
	if err != nil {
		return Decision{}, fmt.Errorf("authz: block check: %w", err)
	}
	if blocked {
		return r.deny(ctx, actor, key, subject, ReasonRestricted,
			"Access to this record is restricted. Contact a supervisor if you believe this is an error.")
	}

	policy := r.policy.Current()

	// 2. Role-derived permission set for the subject's program. The
	// system-admin flag is never consulted here: administrative
	// permission governs configuration, not subject data.
	if !policy.KnownKey(key) {
		r.logger.Error("unknown permission key, failing closed",
			slog.String("key", key),
			slog.Int64("actor", actor.ID),
		)
		return r.deny(ctx, actor, key, subject, ReasonConfiguration,
			"This action is not configured. Contact an administrator.")
	}
	roles, err := r.roles.RolesFor(ctx, actor.ID, subject.ProgramID)
	if err != nil {
		return Decision{}, fmt.Errorf("authz: role lookup: %w", err)
	}
	category := policy.CategoryFor(roles, key)
	if category == CategoryNone {
		return r.deny(ctx, actor, key, subject, ReasonNoRole,
			"You have no role in this participant's program that permits this action. Ask a program manager for access.")
	}

	// 3. Scoped: the caller still verifies individual assignment.
	if category == CategoryScoped {
		decision := Decision{Outcome: OutcomeScoped, Reason: ReasonRole}
		r.recordAsync(ctx, actor, key, subject, decision)
		return decision, nil
	}

	// 4. Gated: a live grant turns this into an allow, and the use
	// itself is part of the accountable trail.
	if category == CategoryGated {
		grant, ok, err := r.grants.ValidGrant(ctx, actor.ID, subject.ID)
		if err != nil {
			return Decision{}, fmt.Errorf("authz: grant lookup: %w", err)
		}
		if !ok {
			decision := Decision{
				Outcome: OutcomeGated,
				Reason:  ReasonGrantRequired,
				Guidance: "This information requires gated access. Record a reason code and a short written " +
					"justification to unlock it for a limited time.",
			}
			if err := r.recordDecision(ctx, actor, key, subject, decision, nil); err != nil {
				return Decision{}, err
			}
			r.count(decision.Outcome)
			return decision, nil
		}
		decision := Decision{Outcome: OutcomeAllow, Reason: ReasonGranted}
		grantID := grant.ID.String()
		r.recorder.Record(ctx, audit.Entry{
			ActorID:      actor.ID,
			Action:       "grant.use",
			ResourceType: "access_grant",
			ResourceID:   grantID,
			Decision:     audit.DecisionAllow,
			Meta:         decisionMeta(key, subject, decision),
		})
		r.count(decision.Outcome)
		return decision, nil
	}

	// 5. Plain allow.
	decision := Decision{Outcome: OutcomeAllow, Reason: ReasonRole}
	r.recordAsync(ctx, actor, key, subject, decision)
	return decision, nil
}

// FieldVisibility evaluates the per-field exception table. It is a
// refinement applied only after Authorize returned a non-deny outcome:
// it may widen what a reduced-scope role sees for one field, but it
// can never resurrect access that steps 1 or 2 already denied.
func (r *Resolver) FieldVisibility(ctx context.Context, actor *shared.Actor, subject Subject, field string) (FieldVisibility, error) {
	if actor == nil {
		return FieldHidden, shared.ErrUnauthenticated
	}
	roles, err := r.roles.RolesFor(ctx, actor.ID, subject.ProgramID)
	if err != nil {
		return FieldHidden, fmt.Errorf("authz: role lookup: %w", err)
	}
	return r.policy.Current().FieldVisibilityFor(roles, field), nil
}

// HoldsPermission reports whether any of the user's roles, in any
// program, carries the key. It serves configuration-level surfaces
// such as the audit timeline, which are not scoped to one subject.
func (r *Resolver) HoldsPermission(ctx context.Context, userID int64, key string) (bool, error) {
	policy := r.policy.Current()
	if !policy.KnownKey(key) {
		r.logger.Error("unknown permission key, failing closed", slog.String("key", key))
		return false, nil
	}
	programs, err := r.roles.ProgramsFor(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, programID := range programs {
		roles, err := r.roles.RolesFor(ctx, userID, programID)
		if err != nil {
			return false, err
		}
		if policy.CategoryFor(roles, key) != CategoryNone {
			return true, nil
		}
	}
	return false, nil
}

func (r *Resolver) deny(ctx context.Context, actor *shared.Actor, key string, subject Subject, reason, guidance string) (Decision, error) {
	decision := Decision{Outcome: OutcomeDeny, Reason: reason, Guidance: guidance}
	if err := r.recordDecision(ctx, actor, key, subject, decision, nil); err != nil {
		return Decision{}, err
	}
	r.count(decision.Outcome)
	return decision, nil
}

func (r *Resolver) recordDecision(ctx context.Context, actor *shared.Actor, key string, subject Subject, decision Decision, meta map[string]any) error {
	entry := audit.Entry{
		ActorID:      actor.ID,
		Action:       "authz.decision",
		ResourceType: "participant",
		ResourceID:   subject.ID.String(),
		Decision:     string(decision.Outcome),
		Meta:         decisionMeta(key, subject, decision),
	}
	if err := r.recorder.RecordDecision(ctx, entry); err != nil {
		return fmt.Errorf("authz: decision audit: %w", err)
	}
	return nil
}

func (r *Resolver) recordAsync(ctx context.Context, actor *shared.Actor, key string, subject Subject, decision Decision) {
	r.recorder.Record(ctx, audit.Entry{
		ActorID:      actor.ID,
		Action:       "authz.decision",
		ResourceType: "participant",
		ResourceID:   subject.ID.String(),
		Decision:     string(decision.Outcome),
		Meta:         decisionMeta(key, subject, decision),
	})
	r.count(decision.Outcome)
}

func (r *Resolver) count(outcome Outcome) {
	if r.decisions != nil {
		r.decisions.WithLabelValues(string(outcome)).Inc()
	}
}

func decisionMeta(key string, subject Subject, decision Decision) map[string]any {
	return map[string]any{
		"permission_key": key,
		"program_id":     subject.ProgramID,
		"reason":         decision.Reason,
	}
}
