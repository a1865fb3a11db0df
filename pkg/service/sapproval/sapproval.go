package sapproval

import (
	"context"
	"database/sql"
	"time"

	"github.com/bypptech/group-wallet-organizer/pkg/commitment"
	"github.com/bypptech/group-wallet-organizer/pkg/dbtime"
	"github.com/bypptech/group-wallet-organizer/pkg/errcode"
	"github.com/bypptech/group-wallet-organizer/pkg/idwrap"
	"github.com/bypptech/group-wallet-organizer/pkg/keylock"
	"github.com/bypptech/group-wallet-organizer/pkg/model/mapproval"
	"github.com/bypptech/group-wallet-organizer/pkg/model/maudit"
	"github.com/bypptech/group-wallet-organizer/pkg/model/mescrow"
	"github.com/bypptech/group-wallet-organizer/pkg/service/saudit"
	"github.com/bypptech/group-wallet-organizer/pkg/service/sescrow"
	"github.com/bypptech/group-wallet-organizer/pkg/service/svault"
	"github.com/bypptech/group-wallet-organizer/pkg/sqlc/gen"
	"github.com/bypptech/group-wallet-organizer/pkg/txutil"
)

var ErrNoApprovalFound = sql.ErrNoRows

// ApprovalService owns the weighted approval ledger of an escrow. One row per
// (escrow, member); submitting again replaces the prior decision so tallies
// are always nets, never sums of a history.
//
// Every submission runs under the same per-escrow lock the escrow state
// machine uses, so a tally and the transition it forces commit atomically.
type ApprovalService struct {
	db       *sql.DB
	queries  *gen.Queries
	vs       svault.VaultService
	es       sescrow.EscrowService
	locks    *keylock.KeyLock
	verifier commitment.Verifier
	audit    saudit.AuditService
	now      func() time.Time
}

func New(db *sql.DB, queries *gen.Queries, vs svault.VaultService, es sescrow.EscrowService, locks *keylock.KeyLock, audit saudit.AuditService) ApprovalService {
	return ApprovalService{
		db:       db,
		queries:  queries,
		vs:       vs,
		es:       es,
		locks:    locks,
		verifier: commitment.NewMerkleVerifier(),
		audit:    audit,
		now:      dbtime.DBNow,
	}
}

func (s ApprovalService) WithNow(now func() time.Time) ApprovalService {
	s.now = now
	s.es = s.es.WithNow(now)
	return s
}

func ConvertToModelApproval(a gen.Approval) mapproval.Approval {
	return mapproval.Approval{
		EscrowID:    a.EscrowID,
		MemberID:    a.MemberID,
		Decision:    mapproval.Decision(a.Decision),
		Weight:      a.Weight,
		Proof:       a.Proof,
		SubmittedAt: dbtime.Unix(a.SubmittedAt),
	}
}

// Get returns one member's current decision on an escrow.
func (s ApprovalService) Get(ctx context.Context, escrowID, memberID idwrap.IDWrap) (mapproval.Approval, error) {
	row, err := s.queries.GetApproval(ctx, gen.GetApprovalParams{EscrowID: escrowID, MemberID: memberID})
	if err != nil {
		return mapproval.Approval{}, err
	}
	return ConvertToModelApproval(row), nil
}

// ListByEscrow returns the full ledger for an escrow, oldest first.
func (s ApprovalService) ListByEscrow(ctx context.Context, escrowID idwrap.IDWrap) ([]mapproval.Approval, error) {
	rows, err := s.queries.GetApprovalsByEscrowID(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	approvals := make([]mapproval.Approval, 0, len(rows))
	for _, row := range rows {
		approvals = append(approvals, ConvertToModelApproval(row))
	}
	return approvals, nil
}

// Totals returns the current weighted tally for an escrow.
func (s ApprovalService) Totals(ctx context.Context, escrowID idwrap.IDWrap) (mapproval.Totals, error) {
	approvals, err := s.ListByEscrow(ctx, escrowID)
	if err != nil {
		return mapproval.Totals{}, err
	}
	return mapproval.Sum(approvals), nil
}

// Submit records a member's decision and applies whatever transition the new
// tally forces on the escrow.
//
// Authorization is two checks with distinct failures. The proof carries the
// role and weight the member claims were committed; a claim the policy
// snapshot's commitment cannot verify is unauthorized. A claim the
// commitment does verify but the live member registry no longer agrees with
// is a stale role, and the member must obtain a fresh proof under a new
// policy revision.
func (s ApprovalService) Submit(ctx context.Context, escrowID, memberID idwrap.IDWrap, decision mapproval.Decision, proof []byte) (*mescrow.Escrow, error) {
	if decision != mapproval.DecisionApprove && decision != mapproval.DecisionReject {
		return nil, errcode.Newf(errcode.CodeInvalidTransition, "decision %d is not approve or reject", decision)
	}

	s.locks.Lock(escrowID.String())
	defer s.locks.Unlock(escrowID.String())

	var escrow *mescrow.Escrow
	var prior mescrow.Status
	var vaultID idwrap.IDWrap
	err := txutil.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		current, policy, err := s.es.ResolveForApprovalTx(ctx, tx, escrowID)
		if err != nil {
			return err
		}
		vaultID = current.VaultID
		prior = current.Status
		if current.Status.Terminal() {
			return errcode.Newf(errcode.CodeTerminalState, "escrow %s is %s and no longer accepts approvals", escrowID, current.Status)
		}
		switch current.Status {
		case mescrow.StatusDraft:
			return errcode.Newf(errcode.CodeInvalidTransition, "escrow %s has not been submitted", escrowID)
		case mescrow.StatusReady:
			return errcode.Newf(errcode.CodeInvalidTransition, "escrow %s already satisfied its timelock", escrowID)
		}

		claim, err := commitment.ParseMemberProof(proof)
		if err != nil {
			return errcode.Wrap(errcode.CodeUnauthorized, "approval proof is malformed", err)
		}
		if err := commitment.VerifyMember(s.verifier, policy.RolesCommitment, memberID, claim); err != nil {
			return errcode.Wrap(errcode.CodeUnauthorized, "proof does not verify against the policy's member commitment", err)
		}
		if !claim.Role.CanApprove() || claim.Weight <= 0 {
			return errcode.Newf(errcode.CodeUnauthorized, "role %s carries no approval weight", claim.Role)
		}

		tvs := s.vs.TX(tx)
		member, err := tvs.ResolveMember(ctx, current.VaultID, memberID)
		if err != nil {
			if errcode.HasCode(err, errcode.CodeNotFound) {
				return errcode.Newf(errcode.CodeStaleRole, "member %s left vault %s since the policy was committed", memberID, current.VaultID)
			}
			return err
		}
		if member.Role != claim.Role || member.Weight != claim.Weight {
			return errcode.Newf(errcode.CodeStaleRole, "member %s proof claims %s/%d but the registry holds %s/%d", memberID, claim.Role, claim.Weight, member.Role, member.Weight)
		}

		tq := s.queries.WithTx(tx)
		if err := tq.UpsertApproval(ctx, gen.UpsertApprovalParams{
			EscrowID:    escrowID,
			MemberID:    memberID,
			Decision:    int64(decision),
			Weight:      member.Weight,
			Proof:       proof,
			SubmittedAt: s.now().Unix(),
		}); err != nil {
			return err
		}

		rows, err := tq.GetApprovalsByEscrowID(ctx, escrowID)
		if err != nil {
			return err
		}
		approvals := make([]mapproval.Approval, 0, len(rows))
		for _, row := range rows {
			approvals = append(approvals, ConvertToModelApproval(row))
		}
		totals := mapproval.Sum(approvals)

		totalWeight, err := tvs.TotalWeight(ctx, current.VaultID)
		if err != nil {
			return err
		}

		escrow, err = s.es.ApplyThresholdTx(ctx, tx, escrowID, totals, totalWeight)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.audit.Emit(ctx, maudit.KindApprovalDecision, vaultID, escrowID, &memberID, "", map[string]any{
		"decision": decision.String(),
		"status":   escrow.Status.String(),
	})
	if escrow.Status != prior {
		switch escrow.Status {
		case mescrow.StatusApproved:
			s.audit.Emit(ctx, maudit.KindEscrowApproved, vaultID, escrowID, &memberID, "", nil)
		case mescrow.StatusRejected:
			s.audit.Emit(ctx, maudit.KindEscrowRejected, vaultID, escrowID, &memberID, "threshold unreachable", nil)
		}
	}
	return escrow, nil
}
