package sescrow

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/bypptech/group-wallet-organizer/pkg/dbtime"
	"github.com/bypptech/group-wallet-organizer/pkg/errcode"
	"github.com/bypptech/group-wallet-organizer/pkg/idwrap"
	"github.com/bypptech/group-wallet-organizer/pkg/keylock"
	"github.com/bypptech/group-wallet-organizer/pkg/model/mapproval"
	"github.com/bypptech/group-wallet-organizer/pkg/model/maudit"
	"github.com/bypptech/group-wallet-organizer/pkg/model/mescrow"
	"github.com/bypptech/group-wallet-organizer/pkg/model/mpolicy"
	"github.com/bypptech/group-wallet-organizer/pkg/model/mvault"
	"github.com/bypptech/group-wallet-organizer/pkg/payout"
	"github.com/bypptech/group-wallet-organizer/pkg/service/saudit"
	"github.com/bypptech/group-wallet-organizer/pkg/service/spolicy"
	"github.com/bypptech/group-wallet-organizer/pkg/service/svault"
	"github.com/bypptech/group-wallet-organizer/pkg/sqlc/gen"
	"github.com/bypptech/group-wallet-organizer/pkg/txutil"
)

var ErrNoEscrowFound = sql.ErrNoRows

// EscrowService owns the lifecycle of a spending request. Time-gated
// transitions (approved -> ready, -> expired) are computed lazily on every
// read; there is no background scheduler and correctness never depends on
// one.
type EscrowService struct {
	db         *sql.DB
	queries    *gen.Queries
	vs         svault.VaultService
	ps         spolicy.PolicyService
	locks      *keylock.KeyLock
	dispatcher payout.Dispatcher
	audit      saudit.AuditService
	now        func() time.Time
}

func New(db *sql.DB, queries *gen.Queries, vs svault.VaultService, ps spolicy.PolicyService, locks *keylock.KeyLock, dispatcher payout.Dispatcher, audit saudit.AuditService) EscrowService {
	return EscrowService{
		db:         db,
		queries:    queries,
		vs:         vs,
		ps:         ps,
		locks:      locks,
		dispatcher: dispatcher,
		audit:      audit,
		now:        dbtime.DBNow,
	}
}

func (es EscrowService) WithNow(now func() time.Time) EscrowService {
	es.now = now
	return es
}

func (es EscrowService) tx(tx *sql.Tx) EscrowService {
	es.queries = es.queries.WithTx(tx)
	es.vs = es.vs.TX(tx)
	es.ps = es.ps.TX(tx)
	return es
}

func ConvertToModelEscrow(escrow gen.Escrow) *mescrow.Escrow {
	m := &mescrow.Escrow{
		ID:              escrow.ID,
		VaultID:         escrow.VaultID,
		PolicyID:        escrow.PolicyID,
		Amount:          escrow.Amount,
		Recipient:       escrow.Recipient,
		Deadline:        dbtime.Unix(escrow.Deadline),
		Status:          mescrow.Status(escrow.Status),
		ReleaseAttempts: escrow.ReleaseAttempts,
		PayoutRef:       escrow.PayoutRef,
		CreatedBy:       escrow.CreatedBy,
		CreatedAt:       dbtime.Unix(escrow.CreatedAt),
	}
	if escrow.ReleaseRequestedAt != nil {
		t := dbtime.Unix(*escrow.ReleaseRequestedAt)
		m.ReleaseRequestedAt = &t
	}
	return m
}

// CreateDraft binds a new escrow to the vault's currently active policy.
// The binding is a snapshot: later policy edits never change the threshold
// or timelock this escrow is governed by.
func (es EscrowService) CreateDraft(ctx context.Context, vaultID idwrap.IDWrap, amount int64, recipient string, deadline time.Time, createdBy idwrap.IDWrap) (*mescrow.Escrow, error) {
	vault, err := es.vs.Get(ctx, vaultID)
	if err != nil {
		if errors.Is(err, svault.ErrNoVaultFound) {
			return nil, errcode.Newf(errcode.CodeNotFound, "vault %s not found", vaultID)
		}
		return nil, err
	}
	if vault.ActivePolicyID == nil {
		return nil, errcode.Newf(errcode.CodePolicyViolation, "vault %s has no active policy", vaultID)
	}
	if amount <= 0 {
		return nil, errcode.New(errcode.CodePolicyViolation, "amount must be positive")
	}

	escrow := &mescrow.Escrow{
		ID:        idwrap.NewNow(),
		VaultID:   vaultID,
		PolicyID:  *vault.ActivePolicyID,
		Amount:    amount,
		Recipient: recipient,
		Deadline:  dbtime.DBTime(deadline),
		Status:    mescrow.StatusDraft,
		CreatedBy: createdBy,
		CreatedAt: es.now(),
	}
	err = es.queries.CreateEscrow(ctx, gen.CreateEscrowParams{
		ID:        escrow.ID,
		VaultID:   escrow.VaultID,
		PolicyID:  escrow.PolicyID,
		Amount:    escrow.Amount,
		Recipient: escrow.Recipient,
		Deadline:  escrow.Deadline.Unix(),
		Status:    int64(escrow.Status),
		CreatedBy: escrow.CreatedBy,
		CreatedAt: escrow.CreatedAt.Unix(),
	})
	if err != nil {
		return nil, err
	}
	return escrow, nil
}

// get loads the raw stored escrow without lazy evaluation.
func (es EscrowService) get(ctx context.Context, id idwrap.IDWrap) (*mescrow.Escrow, error) {
	row, err := es.queries.GetEscrow(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcode.Newf(errcode.CodeNotFound, "escrow %s not found", id)
		}
		return nil, err
	}
	return ConvertToModelEscrow(row), nil
}

// effectiveStatus computes the time-gated status an escrow has right now,
// given its bound policy. Pure function of stored state and the clock.
func effectiveStatus(e *mescrow.Escrow, policy *mpolicy.Policy, now time.Time) mescrow.Status {
	switch e.Status {
	case mescrow.StatusPending:
		if e.DeadlinePassed(now) {
			return mescrow.StatusExpired
		}
	case mescrow.StatusApproved:
		timelock := time.Duration(policy.TimelockSeconds) * time.Second
		if e.TimelockSatisfied(timelock, now) {
			// the transitions replay in time order regardless of when a
			// caller persists them: ready only if the timelock matured
			// before the deadline cut the escrow off
			if readyAt := e.ReleaseRequestedAt.Add(timelock); readyAt.After(e.Deadline) {
				return mescrow.StatusExpired
			}
			if policy.ExpireReady && e.DeadlinePassed(now) {
				return mescrow.StatusExpired
			}
			return mescrow.StatusReady
		}
		if e.DeadlinePassed(now) {
			return mescrow.StatusExpired
		}
	case mescrow.StatusReady:
		// Ready is a stronger guarantee than the soft deadline; only a
		// policy that opted in via ExpireReady lets the deadline void it.
		if policy.ExpireReady && e.DeadlinePassed(now) {
			return mescrow.StatusExpired
		}
	}
	return e.Status
}

// Get returns the escrow with its lazily computed status. It does not
// persist the computed transition; Evaluate does that under the escrow lock.
func (es EscrowService) Get(ctx context.Context, id idwrap.IDWrap) (*mescrow.Escrow, error) {
	escrow, err := es.get(ctx, id)
	if err != nil {
		return nil, err
	}
	policy, err := es.ps.Get(ctx, escrow.PolicyID)
	if err != nil {
		return nil, err
	}
	escrow.Status = effectiveStatus(escrow, policy, es.now())
	return escrow, nil
}

func (es EscrowService) ListByVault(ctx context.Context, vaultID idwrap.IDWrap) ([]*mescrow.Escrow, error) {
	rows, err := es.queries.GetEscrowsByVaultID(ctx, vaultID)
	if err != nil {
		return nil, err
	}
	now := es.now()
	escrows := make([]*mescrow.Escrow, 0, len(rows))
	for _, row := range rows {
		escrow := ConvertToModelEscrow(row)
		policy, err := es.ps.Get(ctx, escrow.PolicyID)
		if err != nil {
			return nil, err
		}
		escrow.Status = effectiveStatus(escrow, policy, now)
		escrows = append(escrows, escrow)
	}
	return escrows, nil
}

// Submit moves a draft to pending. The bound policy must still be active,
// the amount within its cap, and the deadline not yet passed; all three
// gates fail with PolicyViolation.
func (es EscrowService) Submit(ctx context.Context, escrowID, actorID idwrap.IDWrap) (*mescrow.Escrow, error) {
	var escrow *mescrow.Escrow
	es.locks.Lock(escrowID.String())
	defer es.locks.Unlock(escrowID.String())

	err := txutil.WithTx(ctx, es.db, func(tx *sql.Tx) error {
		tes := es.tx(tx)
		var err error
		escrow, err = tes.get(ctx, escrowID)
		if err != nil {
			return err
		}
		if escrow.Status != mescrow.StatusDraft {
			return errcode.Newf(errcode.CodeInvalidTransition, "escrow %s is %s, only draft can be submitted", escrowID, escrow.Status)
		}
		policy, err := tes.ps.Get(ctx, escrow.PolicyID)
		if err != nil {
			return err
		}
		if policy.Status != mpolicy.StatusActive {
			return errcode.Newf(errcode.CodePolicyViolation, "policy %s is %s, not active", policy.ID, policy.Status)
		}
		if escrow.Amount > policy.MaxAmount {
			return errcode.Newf(errcode.CodePolicyViolation, "amount %d exceeds policy cap %d", escrow.Amount, policy.MaxAmount)
		}
		if escrow.DeadlinePassed(tes.now()) {
			return errcode.Newf(errcode.CodePolicyViolation, "deadline %s has already passed", escrow.Deadline.UTC())
		}

		escrow.Status = mescrow.StatusPending
		return tes.queries.UpdateEscrowStatus(ctx, gen.UpdateEscrowStatusParams{
			Status: int64(mescrow.StatusPending),
			ID:     escrowID,
		})
	})
	if err != nil {
		return nil, err
	}

	es.audit.Emit(ctx, maudit.KindEscrowSubmitted, escrow.VaultID, escrowID, &actorID, "", map[string]any{
		"amount":    escrow.Amount,
		"recipient": escrow.Recipient,
	})
	return escrow, nil
}

// Evaluate persists any time-gated transition that is due: approved ->
// ready once the timelock has elapsed, pending|approved -> expired past the
// deadline. Callers that want proactive notifications invoke it
// periodically, but nothing depends on that cadence.
func (es EscrowService) Evaluate(ctx context.Context, escrowID idwrap.IDWrap) (*mescrow.Escrow, error) {
	es.locks.Lock(escrowID.String())
	defer es.locks.Unlock(escrowID.String())
	return es.evaluateLocked(ctx, escrowID)
}

func (es EscrowService) evaluateLocked(ctx context.Context, escrowID idwrap.IDWrap) (*mescrow.Escrow, error) {
	var escrow *mescrow.Escrow
	var transition maudit.Kind
	err := txutil.WithTx(ctx, es.db, func(tx *sql.Tx) error {
		tes := es.tx(tx)
		var err error
		escrow, err = tes.get(ctx, escrowID)
		if err != nil {
			return err
		}
		policy, err := tes.ps.Get(ctx, escrow.PolicyID)
		if err != nil {
			return err
		}
		next := effectiveStatus(escrow, policy, tes.now())
		if next == escrow.Status {
			return nil
		}
		switch next {
		case mescrow.StatusReady:
			transition = maudit.KindEscrowReady
		case mescrow.StatusExpired:
			transition = maudit.KindEscrowExpired
		}
		escrow.Status = next
		return tes.queries.UpdateEscrowStatus(ctx, gen.UpdateEscrowStatusParams{
			Status: int64(next),
			ID:     escrowID,
		})
	})
	if err != nil {
		return nil, err
	}
	if transition != "" {
		es.audit.Emit(ctx, transition, escrow.VaultID, escrowID, nil, "", nil)
	}
	return escrow, nil
}

// ResolveForApprovalTx loads an escrow and its governing policy inside an
// outer transaction, with the time-effective status computed but not
// persisted. The approval ledger uses it to gate submissions without opening
// a second transaction.
func (es EscrowService) ResolveForApprovalTx(ctx context.Context, tx *sql.Tx, escrowID idwrap.IDWrap) (*mescrow.Escrow, *mpolicy.Policy, error) {
	tes := es.tx(tx)
	escrow, err := tes.get(ctx, escrowID)
	if err != nil {
		return nil, nil, err
	}
	policy, err := tes.ps.Get(ctx, escrow.PolicyID)
	if err != nil {
		return nil, nil, err
	}
	escrow.Status = effectiveStatus(escrow, policy, tes.now())
	return escrow, policy, nil
}

// ThresholdOutcome decides what cumulative approval totals force on an
// escrow. All comparisons are exact integer arithmetic.
//
// Crossing the threshold yields StatusApproved. A threshold that became
// mathematically unreachable (every undecided member approving would still
// not reach it) yields StatusRejected. A tally that fell back below the
// threshold after a member flipped to reject, while still reachable, yields
// StatusPending so a later re-crossing restamps the timelock.
func ThresholdOutcome(policy *mpolicy.Policy, totals mapproval.Totals, totalWeight int64) mescrow.Status {
	if totals.Approve >= policy.Threshold {
		return mescrow.StatusApproved
	}
	remaining := totalWeight - totals.Approve - totals.Reject
	if totals.Approve+remaining < policy.Threshold {
		return mescrow.StatusRejected
	}
	return mescrow.StatusPending
}

// ApplyThresholdTx applies a threshold outcome inside the approval ledger's
// transaction. The releaseRequestedAt stamp is written exactly once per
// crossing: the caller holds the per-escrow lock, so two concurrent
// submissions cannot both observe the pre-crossing state.
func (es EscrowService) ApplyThresholdTx(ctx context.Context, tx *sql.Tx, escrowID idwrap.IDWrap, totals mapproval.Totals, totalWeight int64) (*mescrow.Escrow, error) {
	tes := es.tx(tx)
	escrow, err := tes.get(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	policy, err := tes.ps.Get(ctx, escrow.PolicyID)
	if err != nil {
		return nil, err
	}

	outcome := ThresholdOutcome(policy, totals, totalWeight)
	now := tes.now()

	switch escrow.Status {
	case mescrow.StatusPending:
		switch outcome {
		case mescrow.StatusApproved:
			stamp := now.Unix()
			if err := tes.queries.MarkEscrowApproved(ctx, gen.MarkEscrowApprovedParams{
				Status:             int64(mescrow.StatusApproved),
				ReleaseRequestedAt: &stamp,
				ID:                 escrowID,
			}); err != nil {
				return nil, err
			}
			escrow.Status = mescrow.StatusApproved
			t := dbtime.Unix(stamp)
			escrow.ReleaseRequestedAt = &t
		case mescrow.StatusRejected:
			if err := tes.queries.UpdateEscrowStatus(ctx, gen.UpdateEscrowStatusParams{
				Status: int64(mescrow.StatusRejected),
				ID:     escrowID,
			}); err != nil {
				return nil, err
			}
			escrow.Status = mescrow.StatusRejected
		}
	case mescrow.StatusApproved:
		switch outcome {
		case mescrow.StatusRejected:
			if err := tes.queries.UpdateEscrowStatus(ctx, gen.UpdateEscrowStatusParams{
				Status: int64(mescrow.StatusRejected),
				ID:     escrowID,
			}); err != nil {
				return nil, err
			}
			escrow.Status = mescrow.StatusRejected
		case mescrow.StatusPending:
			// a flipped decision pulled the tally back under the
			// threshold; the timelock stamp is cleared with it
			if err := tes.queries.MarkEscrowApproved(ctx, gen.MarkEscrowApprovedParams{
				Status:             int64(mescrow.StatusPending),
				ReleaseRequestedAt: nil,
				ID:                 escrowID,
			}); err != nil {
				return nil, err
			}
			escrow.Status = mescrow.StatusPending
			escrow.ReleaseRequestedAt = nil
		}
	}
	return escrow, nil
}

// Cancel voids a pending or approved escrow. Only the creator or an owner
// may cancel; once the escrow is Ready or terminal the cancel fails. A
// cancel racing an approval is resolved by the per-escrow lock: whichever
// state-changing operation acquires it last sees the other's outcome.
func (es EscrowService) Cancel(ctx context.Context, escrowID, actorID idwrap.IDWrap, reason string) error {
	es.locks.Lock(escrowID.String())
	defer es.locks.Unlock(escrowID.String())

	var vaultID idwrap.IDWrap
	err := txutil.WithTx(ctx, es.db, func(tx *sql.Tx) error {
		tes := es.tx(tx)
		escrow, err := tes.get(ctx, escrowID)
		if err != nil {
			return err
		}
		vaultID = escrow.VaultID
		policy, err := tes.ps.Get(ctx, escrow.PolicyID)
		if err != nil {
			return err
		}

		if escrow.CreatedBy.Compare(actorID) != 0 {
			member, err := tes.vs.ResolveMember(ctx, escrow.VaultID, actorID)
			if err != nil {
				return err
			}
			if member.Role != mvault.RoleOwner {
				return errcode.Newf(errcode.CodeUnauthorized, "only the creator or an owner can cancel escrow %s", escrowID)
			}
		}

		status := effectiveStatus(escrow, policy, tes.now())
		if status.Terminal() {
			return errcode.Newf(errcode.CodeTerminalState, "escrow %s is already %s", escrowID, status)
		}
		if !status.Cancellable() && status != mescrow.StatusDraft {
			return errcode.Newf(errcode.CodeInvalidTransition, "escrow %s is %s, too late to cancel", escrowID, status)
		}

		return tes.queries.UpdateEscrowStatus(ctx, gen.UpdateEscrowStatusParams{
			Status: int64(mescrow.StatusCancelled),
			ID:     escrowID,
		})
	})
	if err != nil {
		return err
	}

	es.audit.Emit(ctx, maudit.KindEscrowCancelled, vaultID, escrowID, &actorID, reason, nil)
	return nil
}

// Release hands a Ready escrow to the payout dispatcher, exactly once per
// attempt. Dispatcher success finalizes the escrow as Released and the
// record becomes immutable. Dispatcher failure leaves it Ready and surfaces
// DispatchFailure; retrying is an explicit caller action, never automatic.
func (es EscrowService) Release(ctx context.Context, escrowID, actorID idwrap.IDWrap) (*mescrow.Escrow, error) {
	es.locks.Lock(escrowID.String())
	defer es.locks.Unlock(escrowID.String())

	var escrow *mescrow.Escrow
	var attempt int64
	err := txutil.WithTx(ctx, es.db, func(tx *sql.Tx) error {
		tes := es.tx(tx)
		var err error
		escrow, err = tes.get(ctx, escrowID)
		if err != nil {
			return err
		}
		policy, err := tes.ps.Get(ctx, escrow.PolicyID)
		if err != nil {
			return err
		}

		status := effectiveStatus(escrow, policy, tes.now())
		if status.Terminal() {
			return errcode.Newf(errcode.CodeTerminalState, "escrow %s is already %s", escrowID, status)
		}
		if status != mescrow.StatusReady {
			return errcode.Newf(errcode.CodeInvalidTransition, "escrow %s is %s, not ready for release", escrowID, status)
		}
		if escrow.Status != mescrow.StatusReady {
			if err := tes.queries.UpdateEscrowStatus(ctx, gen.UpdateEscrowStatusParams{
				Status: int64(mescrow.StatusReady),
				ID:     escrowID,
			}); err != nil {
				return err
			}
			escrow.Status = mescrow.StatusReady
		}

		attempt, err = tes.queries.IncrementEscrowReleaseAttempts(ctx, escrowID)
		return err
	})
	if err != nil {
		return nil, err
	}

	// The dispatcher call is the one operation allowed to block on an
	// external system. The per-escrow lock is held across it so a second
	// release attempt cannot start until this one has a recorded outcome.
	result, err := es.dispatcher.Execute(ctx, payout.Request{
		EscrowID:       escrowID,
		IdempotencyKey: payout.AttemptKey(escrowID, attempt),
		Recipient:      escrow.Recipient,
		Amount:         escrow.Amount,
	})
	if err != nil || !result.Success {
		reason := result.Reason
		if err != nil {
			reason = err.Error()
		}
		es.audit.Emit(ctx, maudit.KindEscrowDispatchErr, escrow.VaultID, escrowID, &actorID, reason, map[string]any{"attempt": attempt})
		return nil, errcode.Wrap(errcode.CodeDispatchFailure, reason, err)
	}

	err = txutil.WithTx(ctx, es.db, func(tx *sql.Tx) error {
		tes := es.tx(tx)
		return tes.queries.MarkEscrowReleased(ctx, gen.MarkEscrowReleasedParams{
			Status:    int64(mescrow.StatusReleased),
			PayoutRef: &result.Ref,
			ID:        escrowID,
		})
	})
	if err != nil {
		return nil, err
	}
	escrow.Status = mescrow.StatusReleased
	escrow.PayoutRef = &result.Ref
	escrow.ReleaseAttempts = attempt

	es.audit.Emit(ctx, maudit.KindEscrowReleased, escrow.VaultID, escrowID, &actorID, "", map[string]any{
		"ref":     result.Ref,
		"attempt": attempt,
	})
	return escrow, nil
}
