package scollection

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/bypptech/group-wallet-organizer/pkg/dbtime"
	"github.com/bypptech/group-wallet-organizer/pkg/errcode"
	"github.com/bypptech/group-wallet-organizer/pkg/idwrap"
	"github.com/bypptech/group-wallet-organizer/pkg/model/maudit"
	"github.com/bypptech/group-wallet-organizer/pkg/model/mcollection"
	"github.com/bypptech/group-wallet-organizer/pkg/service/saudit"
	"github.com/bypptech/group-wallet-organizer/pkg/sqlc/gen"
	"github.com/bypptech/group-wallet-organizer/pkg/txutil"
)

var ErrNoCollectionFound = sql.ErrNoRows

// CollectionService is the pay-first ledger: one payer pre-funds a pool and
// each participant reimburses a fixed allocation, possibly across several
// transfers. Payment status only ever moves forward (pending -> partial ->
// paid) and the cumulative confirmed amount never exceeds the allocation.
type CollectionService struct {
	db      *sql.DB
	queries *gen.Queries
	audit   saudit.AuditService
	now     func() time.Time
}

func New(db *sql.DB, queries *gen.Queries, audit saudit.AuditService) CollectionService {
	return CollectionService{
		db:      db,
		queries: queries,
		audit:   audit,
		now:     dbtime.DBNow,
	}
}

func (cs CollectionService) WithNow(now func() time.Time) CollectionService {
	cs.now = now
	return cs
}

func (cs CollectionService) TX(tx *sql.Tx) CollectionService {
	cs.queries = cs.queries.WithTx(tx)
	return cs
}

func ConvertToModelCollection(c gen.Collection) *mcollection.Collection {
	m := &mcollection.Collection{
		ID:        c.ID,
		VaultID:   c.VaultID,
		Name:      c.Name,
		CreatedBy: c.CreatedBy,
		CreatedAt: dbtime.Unix(c.CreatedAt),
	}
	if c.Deadline != nil {
		t := dbtime.Unix(*c.Deadline)
		m.Deadline = &t
	}
	return m
}

func ConvertToModelParticipant(p gen.Participant) *mcollection.Participant {
	return &mcollection.Participant{
		ID:              p.ID,
		CollectionID:    p.CollectionID,
		DisplayName:     p.DisplayName,
		AllocatedAmount: p.AllocatedAmount,
		WalletAddress:   p.WalletAddress,
		Status:          mcollection.ParticipantStatus(p.Status),
		PaymentTxRef:    p.PaymentTxRef,
	}
}

func ConvertToModelTransfer(t gen.ParticipantTransfer) mcollection.Transfer {
	return mcollection.Transfer{
		ID:            t.ID,
		ParticipantID: t.ParticipantID,
		Ref:           t.Ref,
		Amount:        t.Amount,
		RecordedAt:    dbtime.Unix(t.RecordedAt),
	}
}

func (cs CollectionService) Create(ctx context.Context, c *mcollection.Collection) error {
	if c.ID.IsZero() {
		c.ID = idwrap.NewNow()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = cs.now()
	}
	var deadline *int64
	if c.Deadline != nil {
		sec := c.Deadline.Unix()
		deadline = &sec
	}
	return cs.queries.CreateCollection(ctx, gen.CreateCollectionParams{
		ID:        c.ID,
		VaultID:   c.VaultID,
		Name:      c.Name,
		Deadline:  deadline,
		CreatedBy: c.CreatedBy,
		CreatedAt: c.CreatedAt.Unix(),
	})
}

func (cs CollectionService) Get(ctx context.Context, id idwrap.IDWrap) (*mcollection.Collection, error) {
	row, err := cs.queries.GetCollection(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcode.Newf(errcode.CodeNotFound, "collection %s not found", id)
		}
		return nil, err
	}
	return ConvertToModelCollection(row), nil
}

func (cs CollectionService) ListByVault(ctx context.Context, vaultID idwrap.IDWrap) ([]*mcollection.Collection, error) {
	rows, err := cs.queries.GetCollectionsByVaultID(ctx, vaultID)
	if err != nil {
		return nil, err
	}
	collections := make([]*mcollection.Collection, 0, len(rows))
	for _, row := range rows {
		collections = append(collections, ConvertToModelCollection(row))
	}
	return collections, nil
}

func (cs CollectionService) AddParticipant(ctx context.Context, p *mcollection.Participant) error {
	if p.AllocatedAmount <= 0 {
		return errcode.Newf(errcode.CodePolicyViolation, "allocated amount %d must be positive", p.AllocatedAmount)
	}
	if p.ID.IsZero() {
		p.ID = idwrap.NewNow()
	}
	p.Status = mcollection.ParticipantStatusPending
	return cs.queries.CreateParticipant(ctx, gen.CreateParticipantParams{
		ID:              p.ID,
		CollectionID:    p.CollectionID,
		DisplayName:     p.DisplayName,
		AllocatedAmount: p.AllocatedAmount,
		WalletAddress:   p.WalletAddress,
		Status:          int64(p.Status),
		PaymentTxRef:    nil,
	})
}

func (cs CollectionService) GetParticipant(ctx context.Context, id idwrap.IDWrap) (*mcollection.Participant, error) {
	row, err := cs.queries.GetParticipant(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcode.Newf(errcode.CodeNotFound, "participant %s not found", id)
		}
		return nil, err
	}
	return ConvertToModelParticipant(row), nil
}

func (cs CollectionService) ListParticipants(ctx context.Context, collectionID idwrap.IDWrap) ([]*mcollection.Participant, error) {
	rows, err := cs.queries.GetParticipantsByCollectionID(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	participants := make([]*mcollection.Participant, 0, len(rows))
	for _, row := range rows {
		participants = append(participants, ConvertToModelParticipant(row))
	}
	return participants, nil
}

func (cs CollectionService) ListTransfers(ctx context.Context, participantID idwrap.IDWrap) ([]mcollection.Transfer, error) {
	rows, err := cs.queries.GetTransfersByParticipantID(ctx, participantID)
	if err != nil {
		return nil, err
	}
	transfers := make([]mcollection.Transfer, 0, len(rows))
	for _, row := range rows {
		transfers = append(transfers, ConvertToModelTransfer(row))
	}
	return transfers, nil
}

// LinkWallet binds a participant to the wallet address their reimbursements
// arrive from. Relinking the same address is a no-op. Rebinding to a
// different address is allowed only while no payment has been recorded;
// afterwards it would make already-recorded transfers ambiguous.
func (cs CollectionService) LinkWallet(ctx context.Context, participantID idwrap.IDWrap, address string, actorID idwrap.IDWrap) (*mcollection.Participant, error) {
	if address == "" {
		return nil, errcode.New(errcode.CodeInvalidTransition, "wallet address must not be empty")
	}

	var participant *mcollection.Participant
	var linked bool
	err := txutil.WithTx(ctx, cs.db, func(tx *sql.Tx) error {
		tcs := cs.TX(tx)
		p, err := tcs.GetParticipant(ctx, participantID)
		if err != nil {
			return err
		}
		if p.WalletAddress != nil && *p.WalletAddress == address {
			participant = p
			return nil
		}
		if p.WalletAddress != nil && p.Status != mcollection.ParticipantStatusPending {
			return errcode.Newf(errcode.CodeWalletAlreadyLinked, "participant %s already has recorded payments from %s", participantID, *p.WalletAddress)
		}
		if err := tcs.queries.UpdateParticipantWallet(ctx, gen.UpdateParticipantWalletParams{
			WalletAddress: &address,
			ID:            participantID,
		}); err != nil {
			return err
		}
		p.WalletAddress = &address
		participant = p
		linked = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if linked {
		if collection, gerr := cs.Get(ctx, participant.CollectionID); gerr == nil {
			cs.audit.Emit(ctx, maudit.KindWalletLinked, collection.VaultID, participantID, &actorID, "", map[string]any{
				"address": address,
			})
		}
	}
	return participant, nil
}

// RecordPayment books one confirmed transfer toward a participant's
// allocation. The caller is expected to have confirmed the transfer on the
// external ledger first; this method only does the allocation arithmetic.
func (cs CollectionService) RecordPayment(ctx context.Context, participantID idwrap.IDWrap, ref string, amount int64, actorID idwrap.IDWrap) (*mcollection.Participant, error) {
	if amount <= 0 {
		return nil, errcode.Newf(errcode.CodePolicyViolation, "transfer amount %d must be positive", amount)
	}
	if ref == "" {
		return nil, errcode.New(errcode.CodePolicyViolation, "transfer reference must not be empty")
	}

	var participant *mcollection.Participant
	err := txutil.WithTx(ctx, cs.db, func(tx *sql.Tx) error {
		tcs := cs.TX(tx)
		p, err := tcs.GetParticipant(ctx, participantID)
		if err != nil {
			return err
		}

		transfers, err := tcs.ListTransfers(ctx, participantID)
		if err != nil {
			return err
		}
		var cumulative int64
		for _, t := range transfers {
			cumulative += t.Amount
		}
		if cumulative+amount > p.AllocatedAmount {
			return errcode.Newf(errcode.CodeAllocationExceeded, "transfer of %d would raise participant %s past allocation %d (already confirmed %d)", amount, participantID, p.AllocatedAmount, cumulative)
		}
		cumulative += amount

		if err := tcs.queries.CreateParticipantTransfer(ctx, gen.CreateParticipantTransferParams{
			ID:            idwrap.NewNow(),
			ParticipantID: participantID,
			Ref:           ref,
			Amount:        amount,
			RecordedAt:    tcs.now().Unix(),
		}); err != nil {
			return err
		}

		status := mcollection.ParticipantStatusPartial
		if cumulative == p.AllocatedAmount {
			status = mcollection.ParticipantStatusPaid
		}
		if err := tcs.queries.UpdateParticipantStatus(ctx, gen.UpdateParticipantStatusParams{
			Status:       int64(status),
			PaymentTxRef: &ref,
			ID:           participantID,
		}); err != nil {
			return err
		}
		p.Status = status
		p.PaymentTxRef = &ref
		participant = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	if collection, gerr := cs.Get(ctx, participant.CollectionID); gerr == nil {
		cs.audit.Emit(ctx, maudit.KindPaymentRecorded, collection.VaultID, participantID, &actorID, "", map[string]any{
			"ref":    ref,
			"amount": amount,
			"status": participant.Status.String(),
		})
	}
	return participant, nil
}
