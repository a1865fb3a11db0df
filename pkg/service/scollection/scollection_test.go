package scollection_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bypptech/group-wallet-organizer/pkg/errcode"
	"github.com/bypptech/group-wallet-organizer/pkg/idwrap"
	"github.com/bypptech/group-wallet-organizer/pkg/model/mcollection"
	"github.com/bypptech/group-wallet-organizer/pkg/model/mvault"
	"github.com/bypptech/group-wallet-organizer/pkg/testutil"
)

func seedParticipant(ctx context.Context, t *testing.T, svc testutil.BaseTestServices, allocated int64) (*mcollection.Collection, *mcollection.Participant, mvault.Member) {
	t.Helper()
	vault, members := testutil.SeedVault(ctx, t, svc.Vs, []mvault.Member{
		{DisplayName: "alice", Role: mvault.RoleOwner, Weight: 1},
	})
	collection := &mcollection.Collection{
		VaultID:   vault.ID,
		Name:      "ski trip",
		CreatedBy: members[0].ID,
	}
	require.NoError(t, svc.Cs.Create(ctx, collection))

	participant := &mcollection.Participant{
		CollectionID:    collection.ID,
		DisplayName:     "dave",
		AllocatedAmount: allocated,
	}
	require.NoError(t, svc.Cs.AddParticipant(ctx, participant))
	require.Equal(t, mcollection.ParticipantStatusPending, participant.Status)
	return collection, participant, members[0]
}

func TestPaymentLifecycle(t *testing.T) {
	ctx := context.Background()
	base := testutil.CreateBaseDB(ctx, t)
	defer base.Close()
	svc := base.GetBaseServices()
	_, participant, actor := seedParticipant(ctx, t, svc, 500)

	got, err := svc.Cs.RecordPayment(ctx, participant.ID, "tx-1", 200, actor.ID)
	require.NoError(t, err)
	require.Equal(t, mcollection.ParticipantStatusPartial, got.Status)

	got, err = svc.Cs.RecordPayment(ctx, participant.ID, "tx-2", 300, actor.ID)
	require.NoError(t, err)
	require.Equal(t, mcollection.ParticipantStatusPaid, got.Status)
	require.NotNil(t, got.PaymentTxRef)
	require.Equal(t, "tx-2", *got.PaymentTxRef)

	// the allocation is satisfied, any further transfer overshoots
	_, err = svc.Cs.RecordPayment(ctx, participant.ID, "tx-3", 1, actor.ID)
	require.True(t, errcode.HasCode(err, errcode.CodeAllocationExceeded))

	// and the status never regresses
	final, err := svc.Cs.GetParticipant(ctx, participant.ID)
	require.NoError(t, err)
	require.Equal(t, mcollection.ParticipantStatusPaid, final.Status)

	transfers, err := svc.Cs.ListTransfers(ctx, participant.ID)
	require.NoError(t, err)
	require.Len(t, transfers, 2)
}

func TestSingleTransferPaysInFull(t *testing.T) {
	ctx := context.Background()
	base := testutil.CreateBaseDB(ctx, t)
	defer base.Close()
	svc := base.GetBaseServices()
	_, participant, actor := seedParticipant(ctx, t, svc, 500)

	got, err := svc.Cs.RecordPayment(ctx, participant.ID, "tx-1", 500, actor.ID)
	require.NoError(t, err)
	require.Equal(t, mcollection.ParticipantStatusPaid, got.Status)
}

func TestOvershootRejectedUpfront(t *testing.T) {
	ctx := context.Background()
	base := testutil.CreateBaseDB(ctx, t)
	defer base.Close()
	svc := base.GetBaseServices()
	_, participant, actor := seedParticipant(ctx, t, svc, 500)

	_, err := svc.Cs.RecordPayment(ctx, participant.ID, "tx-1", 501, actor.ID)
	require.True(t, errcode.HasCode(err, errcode.CodeAllocationExceeded))

	got, err := svc.Cs.GetParticipant(ctx, participant.ID)
	require.NoError(t, err)
	require.Equal(t, mcollection.ParticipantStatusPending, got.Status)

	transfers, err := svc.Cs.ListTransfers(ctx, participant.ID)
	require.NoError(t, err)
	require.Empty(t, transfers)
}

func TestLinkWalletIdempotentAndGuarded(t *testing.T) {
	ctx := context.Background()
	base := testutil.CreateBaseDB(ctx, t)
	defer base.Close()
	svc := base.GetBaseServices()
	_, participant, actor := seedParticipant(ctx, t, svc, 500)

	got, err := svc.Cs.LinkWallet(ctx, participant.ID, "0xaaa", actor.ID)
	require.NoError(t, err)
	require.Equal(t, "0xaaa", *got.WalletAddress)

	// same address again is a no-op
	got, err = svc.Cs.LinkWallet(ctx, participant.ID, "0xaaa", actor.ID)
	require.NoError(t, err)
	require.Equal(t, "0xaaa", *got.WalletAddress)

	// rebinding is fine while nothing has been paid
	got, err = svc.Cs.LinkWallet(ctx, participant.ID, "0xbbb", actor.ID)
	require.NoError(t, err)
	require.Equal(t, "0xbbb", *got.WalletAddress)

	_, err = svc.Cs.RecordPayment(ctx, participant.ID, "tx-1", 100, actor.ID)
	require.NoError(t, err)

	// but not after a payment has been recorded
	_, err = svc.Cs.LinkWallet(ctx, participant.ID, "0xccc", actor.ID)
	require.True(t, errcode.HasCode(err, errcode.CodeWalletAlreadyLinked))

	// re-linking the recorded address is still a no-op
	got, err = svc.Cs.LinkWallet(ctx, participant.ID, "0xbbb", actor.ID)
	require.NoError(t, err)
	require.Equal(t, "0xbbb", *got.WalletAddress)
}

func TestRecordPaymentValidation(t *testing.T) {
	ctx := context.Background()
	base := testutil.CreateBaseDB(ctx, t)
	defer base.Close()
	svc := base.GetBaseServices()
	_, participant, actor := seedParticipant(ctx, t, svc, 500)

	_, err := svc.Cs.RecordPayment(ctx, participant.ID, "", 100, actor.ID)
	require.True(t, errcode.HasCode(err, errcode.CodePolicyViolation))

	_, err = svc.Cs.RecordPayment(ctx, participant.ID, "tx-1", 0, actor.ID)
	require.True(t, errcode.HasCode(err, errcode.CodePolicyViolation))

	_, err = svc.Cs.RecordPayment(ctx, idwrap.NewNow(), "tx-1", 100, actor.ID)
	require.True(t, errcode.HasCode(err, errcode.CodeNotFound))
}

func TestAddParticipantRejectsNonPositiveAllocation(t *testing.T) {
	ctx := context.Background()
	base := testutil.CreateBaseDB(ctx, t)
	defer base.Close()
	svc := base.GetBaseServices()
	collection, _, _ := seedParticipant(ctx, t, svc, 500)

	err := svc.Cs.AddParticipant(ctx, &mcollection.Participant{
		CollectionID:    collection.ID,
		DisplayName:     "erin",
		AllocatedAmount: 0,
	})
	require.True(t, errcode.HasCode(err, errcode.CodePolicyViolation))
}
