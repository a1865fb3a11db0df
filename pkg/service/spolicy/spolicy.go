package spolicy

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/goccy/go-json"

	"github.com/bypptech/group-wallet-organizer/pkg/commitment"
	"github.com/bypptech/group-wallet-organizer/pkg/dbtime"
	"github.com/bypptech/group-wallet-organizer/pkg/errcode"
	"github.com/bypptech/group-wallet-organizer/pkg/idwrap"
	"github.com/bypptech/group-wallet-organizer/pkg/model/maudit"
	"github.com/bypptech/group-wallet-organizer/pkg/model/mescrow"
	"github.com/bypptech/group-wallet-organizer/pkg/model/mpolicy"
	"github.com/bypptech/group-wallet-organizer/pkg/model/mvault"
	"github.com/bypptech/group-wallet-organizer/pkg/service/saudit"
	"github.com/bypptech/group-wallet-organizer/pkg/service/svault"
	"github.com/bypptech/group-wallet-organizer/pkg/sqlc/gen"
	"github.com/bypptech/group-wallet-organizer/pkg/txutil"
)

var ErrNoPolicyFound = sql.ErrNoRows

// PolicyService owns policy definitions and their lifecycle: draft ->
// active <-> disabled, with archived terminal. Edits never mutate an active
// policy in place; they mint a new draft revision so in-flight escrows keep
// the threshold and timelock they were created under.
type PolicyService struct {
	db      *sql.DB
	queries *gen.Queries
	vs      svault.VaultService
	audit   saudit.AuditService
	now     func() time.Time
}

func New(db *sql.DB, queries *gen.Queries, vs svault.VaultService, audit saudit.AuditService) PolicyService {
	return PolicyService{
		db:      db,
		queries: queries,
		vs:      vs,
		audit:   audit,
		now:     dbtime.DBNow,
	}
}

// WithNow replaces the clock. Tests use it to step through cooldown and
// schedule windows.
func (ps PolicyService) WithNow(now func() time.Time) PolicyService {
	ps.now = now
	return ps
}

func (ps PolicyService) TX(tx *sql.Tx) PolicyService {
	return PolicyService{
		db:      ps.db,
		queries: ps.queries.WithTx(tx),
		vs:      ps.vs.TX(tx),
		audit:   ps.audit,
		now:     ps.now,
	}
}

func ConvertToModelPolicy(policy gen.Policy) *mpolicy.Policy {
	m := &mpolicy.Policy{
		ID:               policy.ID,
		VaultID:          policy.VaultID,
		Threshold:        policy.Threshold,
		TimelockSeconds:  policy.TimelockSeconds,
		MaxAmount:        policy.MaxAmount,
		CooldownSeconds:  policy.CooldownSeconds,
		RolesCommitment:  policy.RolesCommitment,
		OwnersCommitment: policy.OwnersCommitment,
		Status:           mpolicy.Status(policy.Status),
		ExpireReady:      policy.ExpireReady != 0,
		LastEditedAt:     dbtime.Unix(policy.LastEditedAt),
		CreatedAt:        dbtime.Unix(policy.CreatedAt),
	}
	if policy.RevisionOf != nil {
		id := idwrap.NewFromBytesMust(policy.RevisionOf)
		m.RevisionOf = &id
	}
	return m
}

func (ps PolicyService) Get(ctx context.Context, id idwrap.IDWrap) (*mpolicy.Policy, error) {
	policy, err := ps.queries.GetPolicy(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcode.Newf(errcode.CodeNotFound, "policy %s not found", id)
		}
		return nil, err
	}
	return ConvertToModelPolicy(policy), nil
}

func (ps PolicyService) ListByVault(ctx context.Context, vaultID idwrap.IDWrap) ([]*mpolicy.Policy, error) {
	rows, err := ps.queries.GetPoliciesByVaultID(ctx, vaultID)
	if err != nil {
		return nil, err
	}
	policies := make([]*mpolicy.Policy, 0, len(rows))
	for _, row := range rows {
		policies = append(policies, ConvertToModelPolicy(row))
	}
	return policies, nil
}

// buildCommitments derives the roles and owners commitments from the current
// roster. The roles tree commits every member; the owners tree commits only
// owner-role members.
func (ps PolicyService) buildCommitments(ctx context.Context, vaultID idwrap.IDWrap) (roles, owners []byte, err error) {
	members, err := ps.vs.GetMembersByVaultID(ctx, vaultID)
	if err != nil {
		return nil, nil, err
	}
	roleLeaves := make([]commitment.Leaf, 0, len(members))
	var ownerLeaves []commitment.Leaf
	for _, m := range members {
		leaf := commitment.Leaf{MemberID: m.ID, Role: m.Role, Weight: m.Weight}
		roleLeaves = append(roleLeaves, leaf)
		if m.Role == mvault.RoleOwner {
			ownerLeaves = append(ownerLeaves, leaf)
		}
	}
	return commitment.Build(roleLeaves).Root(), commitment.Build(ownerLeaves).Root(), nil
}

// Create validates params and stores a new draft policy.
func (ps PolicyService) Create(ctx context.Context, vaultID idwrap.IDWrap, params mpolicy.Params, actorID idwrap.IDWrap) (*mpolicy.Policy, error) {
	if !params.Validate() {
		return nil, errcode.New(errcode.CodeInvalidPolicy, "threshold and maxAmount must be positive, timelock and cooldown non-negative")
	}
	if _, err := ps.vs.Get(ctx, vaultID); err != nil {
		if errors.Is(err, svault.ErrNoVaultFound) {
			return nil, errcode.Newf(errcode.CodeNotFound, "vault %s not found", vaultID)
		}
		return nil, err
	}

	roles, owners, err := ps.buildCommitments(ctx, vaultID)
	if err != nil {
		return nil, err
	}

	now := ps.now()
	policy := &mpolicy.Policy{
		ID:               idwrap.NewNow(),
		VaultID:          vaultID,
		Threshold:        params.Threshold,
		TimelockSeconds:  params.TimelockSeconds,
		MaxAmount:        params.MaxAmount,
		CooldownSeconds:  params.CooldownSeconds,
		RolesCommitment:  roles,
		OwnersCommitment: owners,
		Status:           mpolicy.StatusDraft,
		ExpireReady:      params.ExpireReady,
		LastEditedAt:     now,
		CreatedAt:        now,
	}
	if err := ps.insert(ctx, policy, nil); err != nil {
		return nil, err
	}

	ps.audit.Emit(ctx, maudit.KindPolicyCreated, vaultID, policy.ID, &actorID, "", params)
	return policy, nil
}

func (ps PolicyService) insert(ctx context.Context, p *mpolicy.Policy, revisionOf *idwrap.IDWrap) error {
	var revisionBytes []byte
	if revisionOf != nil {
		revisionBytes = revisionOf.Bytes()
		p.RevisionOf = revisionOf
	}
	expireReady := int64(0)
	if p.ExpireReady {
		expireReady = 1
	}
	return ps.queries.CreatePolicy(ctx, gen.CreatePolicyParams{
		ID:               p.ID,
		VaultID:          p.VaultID,
		Threshold:        p.Threshold,
		TimelockSeconds:  p.TimelockSeconds,
		MaxAmount:        p.MaxAmount,
		CooldownSeconds:  p.CooldownSeconds,
		RolesCommitment:  p.RolesCommitment,
		OwnersCommitment: p.OwnersCommitment,
		Status:           int64(p.Status),
		ExpireReady:      expireReady,
		RevisionOf:       revisionBytes,
		LastEditedAt:     p.LastEditedAt.Unix(),
		CreatedAt:        p.CreatedAt.Unix(),
	})
}

// Activate promotes a draft to the vault's active policy. The previously
// active policy is demoted to disabled so it is no longer selectable for new
// escrows; escrows already bound to it keep governing themselves by its
// snapshot.
func (ps PolicyService) Activate(ctx context.Context, policyID, actorID idwrap.IDWrap) error {
	var vaultID idwrap.IDWrap
	err := txutil.WithTx(ctx, ps.db, func(tx *sql.Tx) error {
		tps := ps.TX(tx)
		policy, err := tps.Get(ctx, policyID)
		if err != nil {
			return err
		}
		if policy.Status != mpolicy.StatusDraft {
			return errcode.Newf(errcode.CodeInvalidTransition, "policy %s is %s, only draft can be activated", policyID, policy.Status)
		}
		vaultID = policy.VaultID
		return tps.promote(ctx, policy)
	})
	if err != nil {
		return err
	}
	ps.audit.Emit(ctx, maudit.KindPolicyActivated, vaultID, policyID, &actorID, "", nil)
	return nil
}

// promote makes a policy the vault's active one inside the caller's tx.
func (ps PolicyService) promote(ctx context.Context, policy *mpolicy.Policy) error {
	vault, err := ps.vs.Get(ctx, policy.VaultID)
	if err != nil {
		return err
	}
	now := ps.now().Unix()
	if vault.ActivePolicyID != nil && vault.ActivePolicyID.Compare(policy.ID) != 0 {
		if err := ps.queries.UpdatePolicyStatus(ctx, gen.UpdatePolicyStatusParams{
			Status:       int64(mpolicy.StatusDisabled),
			LastEditedAt: now,
			ID:           *vault.ActivePolicyID,
		}); err != nil {
			return err
		}
	}
	if err := ps.queries.UpdatePolicyStatus(ctx, gen.UpdatePolicyStatusParams{
		Status:       int64(mpolicy.StatusActive),
		LastEditedAt: now,
		ID:           policy.ID,
	}); err != nil {
		return err
	}
	return ps.vs.SetActivePolicy(ctx, policy.VaultID, policy.ID)
}

// Update is the normal edit path. It is cooldown-gated and never mutates the
// edited policy's gating parameters: it returns a new draft revision that
// must be activated separately.
func (ps PolicyService) Update(ctx context.Context, policyID idwrap.IDWrap, params mpolicy.Params, actorID idwrap.IDWrap) (*mpolicy.Policy, error) {
	if !params.Validate() {
		return nil, errcode.New(errcode.CodeInvalidPolicy, "threshold and maxAmount must be positive, timelock and cooldown non-negative")
	}

	var revision *mpolicy.Policy
	err := txutil.WithTx(ctx, ps.db, func(tx *sql.Tx) error {
		var err error
		revision, err = ps.TX(tx).revise(ctx, policyID, params)
		return err
	})
	if err != nil {
		return nil, err
	}

	ps.audit.Emit(ctx, maudit.KindPolicyUpdated, revision.VaultID, revision.ID, &actorID, "", params)
	return revision, nil
}

// revise runs the cooldown-gated edit inside the caller's transaction.
func (ps PolicyService) revise(ctx context.Context, policyID idwrap.IDWrap, params mpolicy.Params) (*mpolicy.Policy, error) {
	policy, err := ps.Get(ctx, policyID)
	if err != nil {
		return nil, err
	}
	if policy.Status == mpolicy.StatusArchived {
		return nil, errcode.Newf(errcode.CodeInvalidTransition, "policy %s is archived", policyID)
	}

	now := ps.now()
	elapsed := now.Sub(policy.LastEditedAt)
	if cooldown := time.Duration(policy.CooldownSeconds) * time.Second; elapsed < cooldown {
		return nil, errcode.Newf(errcode.CodeCooldownActive, "policy %s edited %s ago, cooldown is %s", policyID, elapsed, cooldown)
	}

	return ps.newRevision(ctx, policy, params, now)
}

// newRevision mints a draft revision of base and stamps base's edit time so
// the cooldown window restarts.
func (ps PolicyService) newRevision(ctx context.Context, base *mpolicy.Policy, params mpolicy.Params, now time.Time) (*mpolicy.Policy, error) {
	roles, owners, err := ps.buildCommitments(ctx, base.VaultID)
	if err != nil {
		return nil, err
	}

	revision := &mpolicy.Policy{
		ID:               idwrap.NewNow(),
		VaultID:          base.VaultID,
		Threshold:        params.Threshold,
		TimelockSeconds:  params.TimelockSeconds,
		MaxAmount:        params.MaxAmount,
		CooldownSeconds:  params.CooldownSeconds,
		RolesCommitment:  roles,
		OwnersCommitment: owners,
		Status:           mpolicy.StatusDraft,
		ExpireReady:      params.ExpireReady,
		LastEditedAt:     now,
		CreatedAt:        now,
	}
	if err := ps.insert(ctx, revision, &base.ID); err != nil {
		return nil, err
	}
	if err := ps.queries.UpdatePolicyStatus(ctx, gen.UpdatePolicyStatusParams{
		Status:       int64(base.Status),
		LastEditedAt: now.Unix(),
		ID:           base.ID,
	}); err != nil {
		return nil, err
	}
	return revision, nil
}

// ScheduleUpdate stores a pending revision that becomes applicable at
// effectiveAt. Scheduling guarantees timing, not bypass: applying it later
// still runs the full Update path, cooldown included.
func (ps PolicyService) ScheduleUpdate(ctx context.Context, policyID idwrap.IDWrap, params mpolicy.Params, effectiveAt time.Time, actorID idwrap.IDWrap) error {
	if !params.Validate() {
		return errcode.New(errcode.CodeInvalidPolicy, "threshold and maxAmount must be positive, timelock and cooldown non-negative")
	}
	now := ps.now()
	if !effectiveAt.After(now) {
		return errcode.Newf(errcode.CodeInvalidSchedule, "effectiveAt %s is not in the future", effectiveAt.UTC())
	}

	policy, err := ps.Get(ctx, policyID)
	if err != nil {
		return err
	}
	if policy.Status == mpolicy.StatusArchived {
		return errcode.Newf(errcode.CodeInvalidTransition, "policy %s is archived", policyID)
	}

	data, err := json.Marshal(params)
	if err != nil {
		return err
	}
	err = ps.queries.UpsertPolicySchedule(ctx, gen.UpsertPolicyScheduleParams{
		PolicyID:    policyID,
		Params:      string(data),
		EffectiveAt: effectiveAt.Unix(),
		CreatedBy:   actorID,
		CreatedAt:   now.Unix(),
	})
	if err != nil {
		return err
	}

	ps.audit.Emit(ctx, maudit.KindPolicyScheduled, policy.VaultID, policyID, &actorID, "", map[string]any{
		"params":       params,
		"effective_at": effectiveAt.Unix(),
	})
	return nil
}

// ProveMember builds the inclusion proof a member submits alongside an
// approval under this policy. The proof is rebuilt from the current roster,
// so it verifies only while the roster still matches what the policy
// committed; after a roster change the member needs a policy revision before
// a fresh proof can be issued.
func (ps PolicyService) ProveMember(ctx context.Context, policyID, memberID idwrap.IDWrap) ([]byte, error) {
	policy, err := ps.Get(ctx, policyID)
	if err != nil {
		return nil, err
	}
	members, err := ps.vs.GetMembersByVaultID(ctx, policy.VaultID)
	if err != nil {
		return nil, err
	}
	leaves := make([]commitment.Leaf, 0, len(members))
	var claim *commitment.MemberProof
	for _, m := range members {
		leaves = append(leaves, commitment.Leaf{MemberID: m.ID, Role: m.Role, Weight: m.Weight})
		if m.ID.Compare(memberID) == 0 {
			claim = &commitment.MemberProof{Role: m.Role, Weight: m.Weight}
		}
	}
	if claim == nil {
		return nil, errcode.Newf(errcode.CodeNotFound, "member %s not found in vault %s", memberID, policy.VaultID)
	}
	path, err := commitment.Build(leaves).Prove(memberID)
	if err != nil {
		return nil, err
	}
	claim.Path = path
	return claim.Marshal(), nil
}

// GetScheduledChange returns the pending revision, or nil when none exists.
func (ps PolicyService) GetScheduledChange(ctx context.Context, policyID idwrap.IDWrap) (*mpolicy.ScheduledChange, error) {
	row, err := ps.queries.GetPolicySchedule(ctx, policyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	var params mpolicy.Params
	if err := json.Unmarshal([]byte(row.Params), &params); err != nil {
		return nil, err
	}
	return &mpolicy.ScheduledChange{
		PolicyID:    row.PolicyID,
		Params:      params,
		EffectiveAt: dbtime.Unix(row.EffectiveAt),
		CreatedBy:   row.CreatedBy,
		CreatedAt:   dbtime.Unix(row.CreatedAt),
	}, nil
}

// ApplyDueScheduled materializes the pending revision once its effective
// time has arrived. It returns the new draft revision, or nil when nothing
// was due yet. The revision and the schedule deletion commit together, so a
// schedule is consumed exactly once: if the edit is refused (cooldown, for
// one) the schedule stays pending for a later attempt.
func (ps PolicyService) ApplyDueScheduled(ctx context.Context, policyID idwrap.IDWrap) (*mpolicy.Policy, error) {
	var revision *mpolicy.Policy
	var change *mpolicy.ScheduledChange
	err := txutil.WithTx(ctx, ps.db, func(tx *sql.Tx) error {
		tps := ps.TX(tx)
		var err error
		change, err = tps.GetScheduledChange(ctx, policyID)
		if err != nil {
			return err
		}
		if change == nil || tps.now().Before(change.EffectiveAt) {
			return nil
		}
		revision, err = tps.revise(ctx, policyID, change.Params)
		if err != nil {
			return err
		}
		return tps.queries.DeletePolicySchedule(ctx, policyID)
	})
	if err != nil {
		return nil, err
	}
	if revision == nil {
		return nil, nil
	}

	ps.audit.Emit(ctx, maudit.KindPolicyUpdated, revision.VaultID, revision.ID, &change.CreatedBy, "", change.Params)
	return revision, nil
}

// EmergencyUpdate bypasses the cooldown and activates the new parameters in
// one step. The caller must be an owner and must supply a reason; the audit
// trail marks the edit with a kind distinct from normal updates, forever.
// Escrows already past their timelock start are untouched because they are
// bound to their snapshot policy.
func (ps PolicyService) EmergencyUpdate(ctx context.Context, policyID idwrap.IDWrap, params mpolicy.Params, reason string, actorID idwrap.IDWrap) (*mpolicy.Policy, error) {
	if reason == "" {
		return nil, errcode.New(errcode.CodeInvalidPolicy, "emergency update requires a non-empty reason")
	}
	if !params.Validate() {
		return nil, errcode.New(errcode.CodeInvalidPolicy, "threshold and maxAmount must be positive, timelock and cooldown non-negative")
	}

	var revision *mpolicy.Policy
	err := txutil.WithTx(ctx, ps.db, func(tx *sql.Tx) error {
		tps := ps.TX(tx)
		policy, err := tps.Get(ctx, policyID)
		if err != nil {
			return err
		}
		if policy.Status == mpolicy.StatusArchived {
			return errcode.Newf(errcode.CodeInvalidTransition, "policy %s is archived", policyID)
		}

		member, err := tps.vs.ResolveMember(ctx, policy.VaultID, actorID)
		if err != nil {
			return err
		}
		if member.Role != mvault.RoleOwner {
			return errcode.Newf(errcode.CodeUnauthorized, "emergency update requires owner role, %s is %s", actorID, member.Role)
		}

		revision, err = tps.newRevision(ctx, policy, params, tps.now())
		if err != nil {
			return err
		}
		return tps.promote(ctx, revision)
	})
	if err != nil {
		return nil, err
	}
	revision.Status = mpolicy.StatusActive

	ps.audit.Emit(ctx, maudit.KindPolicyEmergency, revision.VaultID, revision.ID, &actorID, reason, params)
	return revision, nil
}

// Disable takes a policy out of service reversibly.
func (ps PolicyService) Disable(ctx context.Context, policyID, actorID idwrap.IDWrap) error {
	policy, err := ps.Get(ctx, policyID)
	if err != nil {
		return err
	}
	if !policy.Status.CanTransitionTo(mpolicy.StatusDisabled) {
		return errcode.Newf(errcode.CodeInvalidTransition, "policy %s is %s, cannot disable", policyID, policy.Status)
	}
	err = ps.queries.UpdatePolicyStatus(ctx, gen.UpdatePolicyStatusParams{
		Status:       int64(mpolicy.StatusDisabled),
		LastEditedAt: ps.now().Unix(),
		ID:           policyID,
	})
	if err != nil {
		return err
	}
	ps.audit.Emit(ctx, maudit.KindPolicyDisabled, policy.VaultID, policyID, &actorID, "", nil)
	return nil
}

// Enable re-activates a disabled policy and makes it the vault's selectable
// policy again.
func (ps PolicyService) Enable(ctx context.Context, policyID, actorID idwrap.IDWrap) error {
	var vaultID idwrap.IDWrap
	err := txutil.WithTx(ctx, ps.db, func(tx *sql.Tx) error {
		tps := ps.TX(tx)
		policy, err := tps.Get(ctx, policyID)
		if err != nil {
			return err
		}
		if policy.Status != mpolicy.StatusDisabled {
			return errcode.Newf(errcode.CodeInvalidTransition, "policy %s is %s, only disabled can be re-enabled", policyID, policy.Status)
		}
		vaultID = policy.VaultID
		return tps.promote(ctx, policy)
	})
	if err != nil {
		return err
	}
	ps.audit.Emit(ctx, maudit.KindPolicyEnabled, vaultID, policyID, &actorID, "", nil)
	return nil
}

// Archive is terminal. It is refused while any escrow bound to the policy is
// still pending or approved; the in-flight check runs inside the same
// transaction as the status flip so a racing submission cannot slip past it.
// Escrows past their deadline are expired on every read path even if no
// caller persisted the transition yet, so they never block an archive.
func (ps PolicyService) Archive(ctx context.Context, policyID, actorID idwrap.IDWrap) error {
	var vaultID idwrap.IDWrap
	err := txutil.WithTx(ctx, ps.db, func(tx *sql.Tx) error {
		tps := ps.TX(tx)
		policy, err := tps.Get(ctx, policyID)
		if err != nil {
			return err
		}
		vaultID = policy.VaultID
		if !policy.Status.CanTransitionTo(mpolicy.StatusArchived) {
			return errcode.Newf(errcode.CodeInvalidTransition, "policy %s is %s, cannot archive", policyID, policy.Status)
		}

		inflight, err := tps.queries.CountInFlightEscrowsByPolicy(ctx, gen.CountInFlightEscrowsByPolicyParams{
			PolicyID: policyID,
			Status:   int64(mescrow.StatusPending),
			Status_2: int64(mescrow.StatusApproved),
			Deadline: tps.now().Unix(),
		})
		if err != nil {
			return err
		}
		if inflight > 0 {
			return errcode.Newf(errcode.CodeInvalidTransition, "policy %s still governs %d in-flight escrows", policyID, inflight)
		}

		vault, err := tps.vs.Get(ctx, policy.VaultID)
		if err != nil {
			return err
		}
		if vault.ActivePolicyID != nil && vault.ActivePolicyID.Compare(policyID) == 0 {
			if err := tps.queries.SetVaultActivePolicy(ctx, gen.SetVaultActivePolicyParams{ActivePolicyID: nil, ID: policy.VaultID}); err != nil {
				return err
			}
		}
		if err := tps.queries.DeletePolicySchedule(ctx, policyID); err != nil {
			return err
		}
		return tps.queries.UpdatePolicyStatus(ctx, gen.UpdatePolicyStatusParams{
			Status:       int64(mpolicy.StatusArchived),
			LastEditedAt: tps.now().Unix(),
			ID:           policyID,
		})
	})
	if err != nil {
		return err
	}
	ps.audit.Emit(ctx, maudit.KindPolicyArchived, vaultID, policyID, &actorID, "", nil)
	return nil
}
