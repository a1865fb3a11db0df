package sescrow_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bypptech/group-wallet-organizer/pkg/errcode"
	"github.com/bypptech/group-wallet-organizer/pkg/idwrap"
	"github.com/bypptech/group-wallet-organizer/pkg/model/mapproval"
	"github.com/bypptech/group-wallet-organizer/pkg/model/mescrow"
	"github.com/bypptech/group-wallet-organizer/pkg/model/mpolicy"
	"github.com/bypptech/group-wallet-organizer/pkg/model/mvault"
	"github.com/bypptech/group-wallet-organizer/pkg/payout"
	"github.com/bypptech/group-wallet-organizer/pkg/testutil"
)

func seedActivePolicy(ctx context.Context, t *testing.T, svc testutil.BaseTestServices, params mpolicy.Params) (*mvault.Vault, []mvault.Member, *mpolicy.Policy) {
	t.Helper()
	vault, members := testutil.SeedVault(ctx, t, svc.Vs, []mvault.Member{
		{DisplayName: "alice", Role: mvault.RoleOwner, Weight: 2},
		{DisplayName: "bob", Role: mvault.RoleGuardian, Weight: 2},
		{DisplayName: "carol", Role: mvault.RoleRequester, Weight: 1},
	})
	policy, err := svc.Ps.Create(ctx, vault.ID, params, members[0].ID)
	require.NoError(t, err)
	require.NoError(t, svc.Ps.Activate(ctx, policy.ID, members[0].ID))
	return vault, members, policy
}

func defaultParams() mpolicy.Params {
	return mpolicy.Params{Threshold: 3, TimelockSeconds: 86400, MaxAmount: 1000}
}

func TestSubmitRejectsAmountOverCap(t *testing.T) {
	ctx := context.Background()
	base := testutil.CreateBaseDB(ctx, t)
	defer base.Close()
	svc := base.GetBaseServices()
	vault, members, _ := seedActivePolicy(ctx, t, svc, defaultParams())

	escrow, err := svc.Es.CreateDraft(ctx, vault.ID, 1500, "0xrecipient", time.Now().Add(48*time.Hour), members[2].ID)
	require.NoError(t, err)

	_, err = svc.Es.Submit(ctx, escrow.ID, members[2].ID)
	require.Error(t, err)
	require.True(t, errcode.HasCode(err, errcode.CodePolicyViolation))

	got, err := svc.Es.Get(ctx, escrow.ID)
	require.NoError(t, err)
	require.Equal(t, mescrow.StatusDraft, got.Status)
}

func TestCreateDraftRequiresActivePolicy(t *testing.T) {
	ctx := context.Background()
	base := testutil.CreateBaseDB(ctx, t)
	defer base.Close()
	svc := base.GetBaseServices()

	vault, members := testutil.SeedVault(ctx, t, svc.Vs, []mvault.Member{
		{DisplayName: "alice", Role: mvault.RoleOwner, Weight: 1},
	})
	_, err := svc.Es.CreateDraft(ctx, vault.ID, 100, "0xrecipient", time.Now().Add(time.Hour), members[0].ID)
	require.True(t, errcode.HasCode(err, errcode.CodePolicyViolation))
}

func TestTimelockGatesRelease(t *testing.T) {
	ctx := context.Background()
	base := testutil.CreateBaseDB(ctx, t)
	defer base.Close()
	svc := base.GetBaseServices()
	vault, members, policy := seedActivePolicy(ctx, t, svc, defaultParams())

	t0 := time.Now().UTC().Truncate(time.Second)
	current := t0
	clock := func() time.Time { return current }
	es := svc.Es.WithNow(clock)
	aps := svc.Aps.WithNow(clock)

	escrow, err := es.CreateDraft(ctx, vault.ID, 900, "0xrecipient", t0.Add(10*24*time.Hour), members[2].ID)
	require.NoError(t, err)
	_, err = es.Submit(ctx, escrow.ID, members[2].ID)
	require.NoError(t, err)

	for _, m := range members[:2] {
		proof, perr := svc.Ps.ProveMember(ctx, policy.ID, m.ID)
		require.NoError(t, perr)
		_, err = aps.Submit(ctx, escrow.ID, m.ID, mapproval.DecisionApprove, proof)
		require.NoError(t, err)
	}

	got, err := es.Get(ctx, escrow.ID)
	require.NoError(t, err)
	require.Equal(t, mescrow.StatusApproved, got.Status)
	require.NotNil(t, got.ReleaseRequestedAt)
	require.Equal(t, t0.Unix(), got.ReleaseRequestedAt.Unix())

	current = t0.Add(86399 * time.Second)
	_, err = es.Release(ctx, escrow.ID, members[0].ID)
	require.True(t, errcode.HasCode(err, errcode.CodeInvalidTransition))
	require.Zero(t, svc.Dispatcher.CallCount())

	current = t0.Add(86400 * time.Second)
	released, err := es.Release(ctx, escrow.ID, members[0].ID)
	require.NoError(t, err)
	require.Equal(t, mescrow.StatusReleased, released.Status)
	require.Equal(t, 1, svc.Dispatcher.CallCount())
	require.Equal(t, payout.AttemptKey(escrow.ID, 1), svc.Dispatcher.Requests()[0].IdempotencyKey)
}

func TestDispatchFailureKeepsEscrowReady(t *testing.T) {
	ctx := context.Background()
	base := testutil.CreateBaseDB(ctx, t)
	defer base.Close()
	svc := base.GetBaseServices()
	vault, members, policy := seedActivePolicy(ctx, t, svc, mpolicy.Params{Threshold: 2, TimelockSeconds: 0, MaxAmount: 1000})

	escrow, err := svc.Es.CreateDraft(ctx, vault.ID, 500, "0xrecipient", time.Now().Add(48*time.Hour), members[2].ID)
	require.NoError(t, err)
	_, err = svc.Es.Submit(ctx, escrow.ID, members[2].ID)
	require.NoError(t, err)

	proof, err := svc.Ps.ProveMember(ctx, policy.ID, members[0].ID)
	require.NoError(t, err)
	_, err = svc.Aps.Submit(ctx, escrow.ID, members[0].ID, mapproval.DecisionApprove, proof)
	require.NoError(t, err)

	svc.Dispatcher.Script(payout.Result{Success: false, Reason: "insufficient hot wallet balance"})

	_, err = svc.Es.Release(ctx, escrow.ID, members[0].ID)
	require.True(t, errcode.HasCode(err, errcode.CodeDispatchFailure))

	got, err := svc.Es.Get(ctx, escrow.ID)
	require.NoError(t, err)
	require.Equal(t, mescrow.StatusReady, got.Status)

	released, err := svc.Es.Release(ctx, escrow.ID, members[0].ID)
	require.NoError(t, err)
	require.Equal(t, mescrow.StatusReleased, released.Status)
	require.Equal(t, 2, svc.Dispatcher.CallCount())
	require.Equal(t, payout.AttemptKey(escrow.ID, 2), svc.Dispatcher.Requests()[1].IdempotencyKey)
}

func TestPolicyEditDoesNotTouchInFlightEscrow(t *testing.T) {
	ctx := context.Background()
	base := testutil.CreateBaseDB(ctx, t)
	defer base.Close()
	svc := base.GetBaseServices()
	vault, members, policy := seedActivePolicy(ctx, t, svc, mpolicy.Params{Threshold: 2, TimelockSeconds: 0, MaxAmount: 1000})

	escrow, err := svc.Es.CreateDraft(ctx, vault.ID, 500, "0xrecipient", time.Now().Add(48*time.Hour), members[2].ID)
	require.NoError(t, err)
	_, err = svc.Es.Submit(ctx, escrow.ID, members[2].ID)
	require.NoError(t, err)

	// an emergency edit raises the threshold on a NEW revision; the escrow
	// keeps its snapshot binding
	revision, err := svc.Ps.EmergencyUpdate(ctx, policy.ID, mpolicy.Params{Threshold: 5, TimelockSeconds: 0, MaxAmount: 1000}, "rotating owners", members[0].ID)
	require.NoError(t, err)
	require.NotEqual(t, policy.ID, revision.ID)

	got, err := svc.Es.Get(ctx, escrow.ID)
	require.NoError(t, err)
	require.Equal(t, policy.ID, got.PolicyID)

	// threshold 2 from the snapshot still decides the transition
	proof, err := svc.Ps.ProveMember(ctx, policy.ID, members[0].ID)
	require.NoError(t, err)
	after, err := svc.Aps.Submit(ctx, escrow.ID, members[0].ID, mapproval.DecisionApprove, proof)
	require.NoError(t, err)
	require.Equal(t, mescrow.StatusApproved, after.Status)
}

func TestReadySurvivesDeadlineByDefault(t *testing.T) {
	ctx := context.Background()
	base := testutil.CreateBaseDB(ctx, t)
	defer base.Close()
	svc := base.GetBaseServices()
	vault, members, policy := seedActivePolicy(ctx, t, svc, mpolicy.Params{Threshold: 2, TimelockSeconds: 0, MaxAmount: 1000})

	t0 := time.Now().UTC().Truncate(time.Second)
	current := t0
	clock := func() time.Time { return current }
	es := svc.Es.WithNow(clock)
	aps := svc.Aps.WithNow(clock)

	escrow, err := es.CreateDraft(ctx, vault.ID, 500, "0xrecipient", t0.Add(time.Hour), members[2].ID)
	require.NoError(t, err)
	_, err = es.Submit(ctx, escrow.ID, members[2].ID)
	require.NoError(t, err)

	proof, err := svc.Ps.ProveMember(ctx, policy.ID, members[0].ID)
	require.NoError(t, err)
	_, err = aps.Submit(ctx, escrow.ID, members[0].ID, mapproval.DecisionApprove, proof)
	require.NoError(t, err)

	got, err := es.Get(ctx, escrow.ID)
	require.NoError(t, err)
	require.Equal(t, mescrow.StatusReady, got.Status)

	// ready outlives the soft deadline unless the policy opted in
	current = t0.Add(2 * time.Hour)
	got, err = es.Get(ctx, escrow.ID)
	require.NoError(t, err)
	require.Equal(t, mescrow.StatusReady, got.Status)

	released, err := es.Release(ctx, escrow.ID, members[0].ID)
	require.NoError(t, err)
	require.Equal(t, mescrow.StatusReleased, released.Status)
}

func TestExpireReadyVoidsReadyAtDeadline(t *testing.T) {
	ctx := context.Background()
	base := testutil.CreateBaseDB(ctx, t)
	defer base.Close()
	svc := base.GetBaseServices()
	vault, members, policy := seedActivePolicy(ctx, t, svc, mpolicy.Params{Threshold: 2, TimelockSeconds: 0, MaxAmount: 1000, ExpireReady: true})

	t0 := time.Now().UTC().Truncate(time.Second)
	current := t0
	clock := func() time.Time { return current }
	es := svc.Es.WithNow(clock)
	aps := svc.Aps.WithNow(clock)

	escrow, err := es.CreateDraft(ctx, vault.ID, 500, "0xrecipient", t0.Add(time.Hour), members[2].ID)
	require.NoError(t, err)
	_, err = es.Submit(ctx, escrow.ID, members[2].ID)
	require.NoError(t, err)

	proof, err := svc.Ps.ProveMember(ctx, policy.ID, members[0].ID)
	require.NoError(t, err)
	_, err = aps.Submit(ctx, escrow.ID, members[0].ID, mapproval.DecisionApprove, proof)
	require.NoError(t, err)

	got, err := es.Get(ctx, escrow.ID)
	require.NoError(t, err)
	require.Equal(t, mescrow.StatusReady, got.Status)

	current = t0.Add(2 * time.Hour)
	got, err = es.Get(ctx, escrow.ID)
	require.NoError(t, err)
	require.Equal(t, mescrow.StatusExpired, got.Status)

	evaluated, err := es.Evaluate(ctx, escrow.ID)
	require.NoError(t, err)
	require.Equal(t, mescrow.StatusExpired, evaluated.Status)

	_, err = es.Release(ctx, escrow.ID, members[0].ID)
	require.True(t, errcode.HasCode(err, errcode.CodeTerminalState))
	require.Zero(t, svc.Dispatcher.CallCount())
}

func TestSubmitRejectsPastDeadline(t *testing.T) {
	ctx := context.Background()
	base := testutil.CreateBaseDB(ctx, t)
	defer base.Close()
	svc := base.GetBaseServices()
	vault, members, _ := seedActivePolicy(ctx, t, svc, defaultParams())

	t0 := time.Now().UTC().Truncate(time.Second)
	current := t0
	es := svc.Es.WithNow(func() time.Time { return current })

	escrow, err := es.CreateDraft(ctx, vault.ID, 500, "0xrecipient", t0.Add(time.Hour), members[2].ID)
	require.NoError(t, err)

	current = t0.Add(2 * time.Hour)
	_, err = es.Submit(ctx, escrow.ID, members[2].ID)
	require.True(t, errcode.HasCode(err, errcode.CodePolicyViolation))

	got, err := es.Get(ctx, escrow.ID)
	require.NoError(t, err)
	require.Equal(t, mescrow.StatusDraft, got.Status)
}

func TestDeadlineExpiryIsLazy(t *testing.T) {
	ctx := context.Background()
	base := testutil.CreateBaseDB(ctx, t)
	defer base.Close()
	svc := base.GetBaseServices()
	vault, members, _ := seedActivePolicy(ctx, t, svc, defaultParams())

	t0 := time.Now().UTC().Truncate(time.Second)
	current := t0
	es := svc.Es.WithNow(func() time.Time { return current })

	escrow, err := es.CreateDraft(ctx, vault.ID, 500, "0xrecipient", t0.Add(time.Hour), members[2].ID)
	require.NoError(t, err)
	_, err = es.Submit(ctx, escrow.ID, members[2].ID)
	require.NoError(t, err)

	current = t0.Add(2 * time.Hour)
	got, err := es.Get(ctx, escrow.ID)
	require.NoError(t, err)
	require.Equal(t, mescrow.StatusExpired, got.Status)

	evaluated, err := es.Evaluate(ctx, escrow.ID)
	require.NoError(t, err)
	require.Equal(t, mescrow.StatusExpired, evaluated.Status)

	// expired is terminal
	err = es.Cancel(ctx, escrow.ID, members[2].ID, "too late")
	require.True(t, errcode.HasCode(err, errcode.CodeTerminalState))
}

func TestCancelRules(t *testing.T) {
	ctx := context.Background()
	base := testutil.CreateBaseDB(ctx, t)
	defer base.Close()
	svc := base.GetBaseServices()
	vault, members, _ := seedActivePolicy(ctx, t, svc, defaultParams())

	escrow, err := svc.Es.CreateDraft(ctx, vault.ID, 500, "0xrecipient", time.Now().Add(48*time.Hour), members[2].ID)
	require.NoError(t, err)
	_, err = svc.Es.Submit(ctx, escrow.ID, members[2].ID)
	require.NoError(t, err)

	// a guardian who is not the creator cannot cancel
	err = svc.Es.Cancel(ctx, escrow.ID, members[1].ID, "not mine")
	require.True(t, errcode.HasCode(err, errcode.CodeUnauthorized))

	// an owner can
	require.NoError(t, svc.Es.Cancel(ctx, escrow.ID, members[0].ID, "budget cut"))

	got, err := svc.Es.Get(ctx, escrow.ID)
	require.NoError(t, err)
	require.Equal(t, mescrow.StatusCancelled, got.Status)

	err = svc.Es.Cancel(ctx, escrow.ID, members[0].ID, "again")
	require.True(t, errcode.HasCode(err, errcode.CodeTerminalState))
}

func TestCancelTooLateOnceReady(t *testing.T) {
	ctx := context.Background()
	base := testutil.CreateBaseDB(ctx, t)
	defer base.Close()
	svc := base.GetBaseServices()
	vault, members, policy := seedActivePolicy(ctx, t, svc, mpolicy.Params{Threshold: 2, TimelockSeconds: 0, MaxAmount: 1000})

	escrow, err := svc.Es.CreateDraft(ctx, vault.ID, 500, "0xrecipient", time.Now().Add(48*time.Hour), members[2].ID)
	require.NoError(t, err)
	_, err = svc.Es.Submit(ctx, escrow.ID, members[2].ID)
	require.NoError(t, err)

	proof, err := svc.Ps.ProveMember(ctx, policy.ID, members[0].ID)
	require.NoError(t, err)
	_, err = svc.Aps.Submit(ctx, escrow.ID, members[0].ID, mapproval.DecisionApprove, proof)
	require.NoError(t, err)

	// zero timelock, so the escrow is effectively ready the moment the
	// threshold is crossed
	err = svc.Es.Cancel(ctx, escrow.ID, members[2].ID, "changed my mind")
	require.True(t, errcode.HasCode(err, errcode.CodeInvalidTransition))
}

func TestReleasedEscrowIsImmutable(t *testing.T) {
	ctx := context.Background()
	base := testutil.CreateBaseDB(ctx, t)
	defer base.Close()
	svc := base.GetBaseServices()
	vault, members, policy := seedActivePolicy(ctx, t, svc, mpolicy.Params{Threshold: 2, TimelockSeconds: 0, MaxAmount: 1000})

	escrow, err := svc.Es.CreateDraft(ctx, vault.ID, 500, "0xrecipient", time.Now().Add(48*time.Hour), members[2].ID)
	require.NoError(t, err)
	_, err = svc.Es.Submit(ctx, escrow.ID, members[2].ID)
	require.NoError(t, err)

	proof, err := svc.Ps.ProveMember(ctx, policy.ID, members[0].ID)
	require.NoError(t, err)
	_, err = svc.Aps.Submit(ctx, escrow.ID, members[0].ID, mapproval.DecisionApprove, proof)
	require.NoError(t, err)

	released, err := svc.Es.Release(ctx, escrow.ID, members[0].ID)
	require.NoError(t, err)
	require.Equal(t, mescrow.StatusReleased, released.Status)
	require.NotNil(t, released.PayoutRef)

	_, err = svc.Es.Release(ctx, escrow.ID, members[0].ID)
	require.True(t, errcode.HasCode(err, errcode.CodeTerminalState))

	_, err = svc.Aps.Submit(ctx, escrow.ID, members[1].ID, mapproval.DecisionReject, proof)
	require.True(t, errcode.HasCode(err, errcode.CodeTerminalState))
}

func TestGetUnknownEscrow(t *testing.T) {
	ctx := context.Background()
	base := testutil.CreateBaseDB(ctx, t)
	defer base.Close()
	svc := base.GetBaseServices()

	_, err := svc.Es.Get(ctx, idwrap.NewNow())
	require.True(t, errcode.HasCode(err, errcode.CodeNotFound))
}
