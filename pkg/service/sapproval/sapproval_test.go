package sapproval_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bypptech/group-wallet-organizer/pkg/errcode"
	"github.com/bypptech/group-wallet-organizer/pkg/model/mapproval"
	"github.com/bypptech/group-wallet-organizer/pkg/model/mescrow"
	"github.com/bypptech/group-wallet-organizer/pkg/model/mpolicy"
	"github.com/bypptech/group-wallet-organizer/pkg/model/mvault"
	"github.com/bypptech/group-wallet-organizer/pkg/testutil"
)

type fixture struct {
	svc     testutil.BaseTestServices
	vault   *mvault.Vault
	members []mvault.Member
	policy  *mpolicy.Policy
	escrow  *mescrow.Escrow
}

// newFixture seeds three members with weights [2,2,1] under a pending escrow
// governed by the given params.
func newFixture(ctx context.Context, t *testing.T, base *testutil.BaseDBQueries, params mpolicy.Params) fixture {
	t.Helper()
	svc := base.GetBaseServices()
	vault, members := testutil.SeedVault(ctx, t, svc.Vs, []mvault.Member{
		{DisplayName: "alice", Role: mvault.RoleOwner, Weight: 2},
		{DisplayName: "bob", Role: mvault.RoleGuardian, Weight: 2},
		{DisplayName: "carol", Role: mvault.RoleRequester, Weight: 1},
	})
	policy, err := svc.Ps.Create(ctx, vault.ID, params, members[0].ID)
	require.NoError(t, err)
	require.NoError(t, svc.Ps.Activate(ctx, policy.ID, members[0].ID))

	escrow, err := svc.Es.CreateDraft(ctx, vault.ID, 500, "0xrecipient", time.Now().Add(48*time.Hour), members[2].ID)
	require.NoError(t, err)
	_, err = svc.Es.Submit(ctx, escrow.ID, members[2].ID)
	require.NoError(t, err)

	return fixture{svc: svc, vault: vault, members: members, policy: policy, escrow: escrow}
}

func (f fixture) proof(ctx context.Context, t *testing.T, member mvault.Member) []byte {
	t.Helper()
	proof, err := f.svc.Ps.ProveMember(ctx, f.policy.ID, member.ID)
	require.NoError(t, err)
	return proof
}

func TestWeightedThresholdCrossing(t *testing.T) {
	ctx := context.Background()
	base := testutil.CreateBaseDB(ctx, t)
	defer base.Close()
	f := newFixture(ctx, t, base, mpolicy.Params{Threshold: 3, TimelockSeconds: 86400, MaxAmount: 1000})

	after, err := f.svc.Aps.Submit(ctx, f.escrow.ID, f.members[0].ID, mapproval.DecisionApprove, f.proof(ctx, t, f.members[0]))
	require.NoError(t, err)
	require.Equal(t, mescrow.StatusPending, after.Status)

	after, err = f.svc.Aps.Submit(ctx, f.escrow.ID, f.members[1].ID, mapproval.DecisionApprove, f.proof(ctx, t, f.members[1]))
	require.NoError(t, err)
	require.Equal(t, mescrow.StatusApproved, after.Status)
	require.NotNil(t, after.ReleaseRequestedAt)

	totals, err := f.svc.Aps.Totals(ctx, f.escrow.ID)
	require.NoError(t, err)
	require.Equal(t, int64(4), totals.Approve)
	require.Zero(t, totals.Reject)
}

func TestResubmissionReplacesNotDuplicates(t *testing.T) {
	ctx := context.Background()
	base := testutil.CreateBaseDB(ctx, t)
	defer base.Close()
	f := newFixture(ctx, t, base, mpolicy.Params{Threshold: 5, TimelockSeconds: 0, MaxAmount: 1000})

	proof := f.proof(ctx, t, f.members[0])
	for i := 0; i < 3; i++ {
		_, err := f.svc.Aps.Submit(ctx, f.escrow.ID, f.members[0].ID, mapproval.DecisionApprove, proof)
		require.NoError(t, err)
	}

	totals, err := f.svc.Aps.Totals(ctx, f.escrow.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), totals.Approve)

	approvals, err := f.svc.Aps.ListByEscrow(ctx, f.escrow.ID)
	require.NoError(t, err)
	require.Len(t, approvals, 1)
}

func TestFlippedDecisionRenetsTotals(t *testing.T) {
	ctx := context.Background()
	base := testutil.CreateBaseDB(ctx, t)
	defer base.Close()
	f := newFixture(ctx, t, base, mpolicy.Params{Threshold: 3, TimelockSeconds: 86400, MaxAmount: 1000})

	_, err := f.svc.Aps.Submit(ctx, f.escrow.ID, f.members[0].ID, mapproval.DecisionApprove, f.proof(ctx, t, f.members[0]))
	require.NoError(t, err)

	// reject by bob: approve 2, reject 2, remaining 1; 2+1 = 3 is still
	// reachable so the escrow stays pending
	after, err := f.svc.Aps.Submit(ctx, f.escrow.ID, f.members[1].ID, mapproval.DecisionReject, f.proof(ctx, t, f.members[1]))
	require.NoError(t, err)
	require.Equal(t, mescrow.StatusPending, after.Status)

	// carol rejecting leaves approve 2 with nothing undecided: unreachable
	after, err = f.svc.Aps.Submit(ctx, f.escrow.ID, f.members[2].ID, mapproval.DecisionReject, f.proof(ctx, t, f.members[2]))
	require.NoError(t, err)
	require.Equal(t, mescrow.StatusRejected, after.Status)
}

func TestFlipAfterApprovalDropsBackOrRejects(t *testing.T) {
	ctx := context.Background()
	base := testutil.CreateBaseDB(ctx, t)
	defer base.Close()
	f := newFixture(ctx, t, base, mpolicy.Params{Threshold: 3, TimelockSeconds: 86400, MaxAmount: 1000})

	_, err := f.svc.Aps.Submit(ctx, f.escrow.ID, f.members[0].ID, mapproval.DecisionApprove, f.proof(ctx, t, f.members[0]))
	require.NoError(t, err)
	after, err := f.svc.Aps.Submit(ctx, f.escrow.ID, f.members[1].ID, mapproval.DecisionApprove, f.proof(ctx, t, f.members[1]))
	require.NoError(t, err)
	require.Equal(t, mescrow.StatusApproved, after.Status)

	// bob flips to reject: approve 2, reject 2, remaining 1, still
	// reachable, so the approval is unwound and the timelock stamp cleared
	after, err = f.svc.Aps.Submit(ctx, f.escrow.ID, f.members[1].ID, mapproval.DecisionReject, f.proof(ctx, t, f.members[1]))
	require.NoError(t, err)
	require.Equal(t, mescrow.StatusPending, after.Status)
	require.Nil(t, after.ReleaseRequestedAt)

	// alice flips too: threshold is now unreachable
	after, err = f.svc.Aps.Submit(ctx, f.escrow.ID, f.members[0].ID, mapproval.DecisionReject, f.proof(ctx, t, f.members[0]))
	require.NoError(t, err)
	require.Equal(t, mescrow.StatusRejected, after.Status)
}

func TestForgedProofIsUnauthorized(t *testing.T) {
	ctx := context.Background()
	base := testutil.CreateBaseDB(ctx, t)
	defer base.Close()
	f := newFixture(ctx, t, base, mpolicy.Params{Threshold: 3, TimelockSeconds: 86400, MaxAmount: 1000})

	// garbage bytes
	_, err := f.svc.Aps.Submit(ctx, f.escrow.ID, f.members[0].ID, mapproval.DecisionApprove, []byte{1, 2, 3})
	require.True(t, errcode.HasCode(err, errcode.CodeUnauthorized))

	// someone else's genuine proof does not verify for this member
	_, err = f.svc.Aps.Submit(ctx, f.escrow.ID, f.members[0].ID, mapproval.DecisionApprove, f.proof(ctx, t, f.members[1]))
	require.True(t, errcode.HasCode(err, errcode.CodeUnauthorized))
}

func TestStaleRoleAfterRegistryChange(t *testing.T) {
	ctx := context.Background()
	base := testutil.CreateBaseDB(ctx, t)
	defer base.Close()
	f := newFixture(ctx, t, base, mpolicy.Params{Threshold: 3, TimelockSeconds: 86400, MaxAmount: 1000})

	proof := f.proof(ctx, t, f.members[1])

	// bob's weight changes after the proof was issued
	changed := f.members[1]
	changed.Weight = 10
	require.NoError(t, f.svc.Vs.UpdateMember(ctx, &changed))

	_, err := f.svc.Aps.Submit(ctx, f.escrow.ID, f.members[1].ID, mapproval.DecisionApprove, proof)
	require.True(t, errcode.HasCode(err, errcode.CodeStaleRole))
}

func TestViewerCannotApprove(t *testing.T) {
	ctx := context.Background()
	base := testutil.CreateBaseDB(ctx, t)
	defer base.Close()
	svc := base.GetBaseServices()
	vault, members := testutil.SeedVault(ctx, t, svc.Vs, []mvault.Member{
		{DisplayName: "alice", Role: mvault.RoleOwner, Weight: 2},
		{DisplayName: "victor", Role: mvault.RoleViewer, Weight: 0},
	})
	policy, err := svc.Ps.Create(ctx, vault.ID, mpolicy.Params{Threshold: 2, TimelockSeconds: 0, MaxAmount: 1000}, members[0].ID)
	require.NoError(t, err)
	require.NoError(t, svc.Ps.Activate(ctx, policy.ID, members[0].ID))

	escrow, err := svc.Es.CreateDraft(ctx, vault.ID, 100, "0xrecipient", time.Now().Add(time.Hour), members[0].ID)
	require.NoError(t, err)
	_, err = svc.Es.Submit(ctx, escrow.ID, members[0].ID)
	require.NoError(t, err)

	proof, err := svc.Ps.ProveMember(ctx, policy.ID, members[1].ID)
	require.NoError(t, err)
	_, err = svc.Aps.Submit(ctx, escrow.ID, members[1].ID, mapproval.DecisionApprove, proof)
	require.True(t, errcode.HasCode(err, errcode.CodeUnauthorized))
}

func TestApprovalRequiresSubmittedEscrow(t *testing.T) {
	ctx := context.Background()
	base := testutil.CreateBaseDB(ctx, t)
	defer base.Close()
	svc := base.GetBaseServices()
	vault, members := testutil.SeedVault(ctx, t, svc.Vs, []mvault.Member{
		{DisplayName: "alice", Role: mvault.RoleOwner, Weight: 2},
	})
	policy, err := svc.Ps.Create(ctx, vault.ID, mpolicy.Params{Threshold: 2, TimelockSeconds: 0, MaxAmount: 1000}, members[0].ID)
	require.NoError(t, err)
	require.NoError(t, svc.Ps.Activate(ctx, policy.ID, members[0].ID))

	escrow, err := svc.Es.CreateDraft(ctx, vault.ID, 100, "0xrecipient", time.Now().Add(time.Hour), members[0].ID)
	require.NoError(t, err)

	proof, err := svc.Ps.ProveMember(ctx, policy.ID, members[0].ID)
	require.NoError(t, err)
	_, err = svc.Aps.Submit(ctx, escrow.ID, members[0].ID, mapproval.DecisionApprove, proof)
	require.True(t, errcode.HasCode(err, errcode.CodeInvalidTransition))
}

func TestConcurrentApprovalsCrossThresholdOnce(t *testing.T) {
	ctx := context.Background()
	base := testutil.CreateBaseDB(ctx, t)
	defer base.Close()
	f := newFixture(ctx, t, base, mpolicy.Params{Threshold: 2, TimelockSeconds: 86400, MaxAmount: 1000})

	proofs := [][]byte{
		f.proof(ctx, t, f.members[0]),
		f.proof(ctx, t, f.members[1]),
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Aps.Submit(ctx, f.escrow.ID, f.members[i].ID, mapproval.DecisionApprove, proofs[i])
		}(i)
	}
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	got, err := f.svc.Es.Get(ctx, f.escrow.ID)
	require.NoError(t, err)
	require.Equal(t, mescrow.StatusApproved, got.Status)
	require.NotNil(t, got.ReleaseRequestedAt)

	// the stamp must come from the submission that crossed the threshold
	// and survive the second one unchanged
	first := *got.ReleaseRequestedAt
	again, err := f.svc.Es.Get(ctx, f.escrow.ID)
	require.NoError(t, err)
	require.Equal(t, first, *again.ReleaseRequestedAt)
}
