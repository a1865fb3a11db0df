package svault

import (
	"context"
	"database/sql"
	"errors"

	"github.com/bypptech/group-wallet-organizer/pkg/dbtime"
	"github.com/bypptech/group-wallet-organizer/pkg/errcode"
	"github.com/bypptech/group-wallet-organizer/pkg/idwrap"
	"github.com/bypptech/group-wallet-organizer/pkg/model/mvault"
	"github.com/bypptech/group-wallet-organizer/pkg/sqlc/gen"
)

var ErrNoVaultFound = sql.ErrNoRows

type VaultService struct {
	queries *gen.Queries
}

func New(queries *gen.Queries) VaultService {
	return VaultService{queries: queries}
}

func (vs VaultService) TX(tx *sql.Tx) VaultService {
	return VaultService{queries: vs.queries.WithTx(tx)}
}

func ConvertToModelVault(vault gen.Vault) *mvault.Vault {
	m := &mvault.Vault{
		ID:        vault.ID,
		Name:      vault.Name,
		CreatedAt: dbtime.Unix(vault.CreatedAt),
	}
	if vault.ActivePolicyID != nil {
		id := idwrap.NewFromBytesMust(vault.ActivePolicyID)
		m.ActivePolicyID = &id
	}
	return m
}

func ConvertToModelMember(member gen.VaultMember) mvault.Member {
	return mvault.Member{
		ID:          member.ID,
		VaultID:     member.VaultID,
		DisplayName: member.DisplayName,
		Role:        mvault.Role(member.Role),
		Weight:      member.Weight,
	}
}

func (vs VaultService) Create(ctx context.Context, v *mvault.Vault) error {
	var activePolicyID []byte
	if v.ActivePolicyID != nil {
		activePolicyID = v.ActivePolicyID.Bytes()
	}
	return vs.queries.CreateVault(ctx, gen.CreateVaultParams{
		ID:             v.ID,
		Name:           v.Name,
		ActivePolicyID: activePolicyID,
		CreatedAt:      v.CreatedAt.Unix(),
	})
}

func (vs VaultService) Get(ctx context.Context, id idwrap.IDWrap) (*mvault.Vault, error) {
	vault, err := vs.queries.GetVault(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoVaultFound
		}
		return nil, err
	}
	return ConvertToModelVault(vault), nil
}

func (vs VaultService) SetActivePolicy(ctx context.Context, vaultID, policyID idwrap.IDWrap) error {
	return vs.queries.SetVaultActivePolicy(ctx, gen.SetVaultActivePolicyParams{
		ActivePolicyID: policyID.Bytes(),
		ID:             vaultID,
	})
}

// CreateMember adds a member. Viewers are stored with weight 0 regardless of
// the requested weight; they never carry approval power.
func (vs VaultService) CreateMember(ctx context.Context, m *mvault.Member) error {
	weight := m.Weight
	if m.Role == mvault.RoleViewer {
		weight = 0
		m.Weight = 0
	}
	return vs.queries.CreateVaultMember(ctx, gen.CreateVaultMemberParams{
		ID:          m.ID,
		VaultID:     m.VaultID,
		DisplayName: m.DisplayName,
		Role:        int64(m.Role),
		Weight:      weight,
	})
}

func (vs VaultService) UpdateMember(ctx context.Context, m *mvault.Member) error {
	weight := m.Weight
	if m.Role == mvault.RoleViewer {
		weight = 0
		m.Weight = 0
	}
	return vs.queries.UpdateVaultMember(ctx, gen.UpdateVaultMemberParams{
		DisplayName: m.DisplayName,
		Role:        int64(m.Role),
		Weight:      weight,
		ID:          m.ID,
	})
}

func (vs VaultService) DeleteMember(ctx context.Context, id idwrap.IDWrap) error {
	return vs.queries.DeleteVaultMember(ctx, id)
}

func (vs VaultService) GetMembersByVaultID(ctx context.Context, vaultID idwrap.IDWrap) ([]mvault.Member, error) {
	rows, err := vs.queries.GetVaultMembersByVaultID(ctx, vaultID)
	if err != nil {
		return nil, err
	}
	members := make([]mvault.Member, 0, len(rows))
	for _, row := range rows {
		members = append(members, ConvertToModelMember(row))
	}
	return members, nil
}

// ResolveMember is the Member Registry contract: member identity in, role
// and weight out. Lookups are local facts, never remote calls.
func (vs VaultService) ResolveMember(ctx context.Context, vaultID, memberID idwrap.IDWrap) (mvault.Member, error) {
	row, err := vs.queries.GetVaultMember(ctx, gen.GetVaultMemberParams{VaultID: vaultID, ID: memberID})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return mvault.Member{}, errcode.Newf(errcode.CodeNotFound, "member %s not found in vault %s", memberID, vaultID)
		}
		return mvault.Member{}, err
	}
	return ConvertToModelMember(row), nil
}

// TotalWeight sums all member weights in a vault with exact integer
// arithmetic. The approval ledger uses it to decide when a threshold has
// become unreachable.
func (vs VaultService) TotalWeight(ctx context.Context, vaultID idwrap.IDWrap) (int64, error) {
	members, err := vs.GetMembersByVaultID(ctx, vaultID)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, m := range members {
		total += m.Weight
	}
	return total, nil
}
