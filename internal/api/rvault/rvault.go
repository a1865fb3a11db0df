//nolint:revive // exported
package rvault

import (
	"errors"
	"net/http"
	"time"

	"github.com/bypptech/group-wallet-organizer/internal/api"
	"github.com/bypptech/group-wallet-organizer/pkg/errcode"
	"github.com/bypptech/group-wallet-organizer/pkg/idwrap"
	"github.com/bypptech/group-wallet-organizer/pkg/model/mvault"
	"github.com/bypptech/group-wallet-organizer/pkg/service/svault"
)

type VaultHandler struct {
	vs svault.VaultService
}

func New(vs svault.VaultService) VaultHandler {
	return VaultHandler{vs: vs}
}

func CreateService(srv VaultHandler, middleware ...func(http.Handler) http.Handler) []api.Service {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/vaults", srv.Create)
	mux.HandleFunc("GET /v1/vaults/{id}", srv.Get)
	mux.HandleFunc("POST /v1/vaults/{id}/members", srv.AddMember)
	mux.HandleFunc("GET /v1/vaults/{id}/members", srv.ListMembers)
	mux.HandleFunc("PUT /v1/vaults/{id}/members/{memberID}", srv.UpdateMember)
	mux.HandleFunc("DELETE /v1/vaults/{id}/members/{memberID}", srv.RemoveMember)
	handler := api.Chain(mux, middleware...)
	return []api.Service{
		{Path: "/v1/vaults", Handler: handler},
		{Path: "/v1/vaults/", Handler: handler},
	}
}

type vaultResponse struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	ActivePolicyID *string `json:"active_policy_id,omitempty"`
	CreatedAt      int64   `json:"created_at"`
}

func serializeVault(v *mvault.Vault) vaultResponse {
	resp := vaultResponse{
		ID:        v.ID.String(),
		Name:      v.Name,
		CreatedAt: v.CreatedAt.Unix(),
	}
	if v.ActivePolicyID != nil {
		s := v.ActivePolicyID.String()
		resp.ActivePolicyID = &s
	}
	return resp
}

type memberResponse struct {
	ID          string `json:"id"`
	VaultID     string `json:"vault_id"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	Weight      int64  `json:"weight"`
}

func serializeMember(m mvault.Member) memberResponse {
	return memberResponse{
		ID:          m.ID.String(),
		VaultID:     m.VaultID.String(),
		DisplayName: m.DisplayName,
		Role:        m.Role.String(),
		Weight:      m.Weight,
	}
}

func pathID(r *http.Request, key string) (idwrap.IDWrap, error) {
	return idwrap.NewText(r.PathValue(key))
}

func (h VaultHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := api.ReadJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "name must not be empty", http.StatusBadRequest)
		return
	}
	vault := &mvault.Vault{
		ID:        idwrap.NewNow(),
		Name:      req.Name,
		CreatedAt: time.Now(),
	}
	if err := h.vs.Create(r.Context(), vault); err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, serializeVault(vault))
}

func (h VaultHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	vault, err := h.vs.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, svault.ErrNoVaultFound) {
			api.WriteError(w, errcode.Newf(errcode.CodeNotFound, "vault %s not found", id))
			return
		}
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, serializeVault(vault))
}

func (h VaultHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	vaultID, err := pathID(r, "id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req struct {
		DisplayName string `json:"display_name"`
		Role        string `json:"role"`
		Weight      int64  `json:"weight"`
	}
	if err := api.ReadJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	role := mvault.ParseRole(req.Role)
	if role == mvault.RoleUnknown {
		http.Error(w, "unknown role", http.StatusBadRequest)
		return
	}
	member := &mvault.Member{
		ID:          idwrap.NewNow(),
		VaultID:     vaultID,
		DisplayName: req.DisplayName,
		Role:        role,
		Weight:      req.Weight,
	}
	if err := h.vs.CreateMember(r.Context(), member); err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, serializeMember(*member))
}

func (h VaultHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	vaultID, err := pathID(r, "id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	members, err := h.vs.GetMembersByVaultID(r.Context(), vaultID)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	out := make([]memberResponse, 0, len(members))
	for _, m := range members {
		out = append(out, serializeMember(m))
	}
	api.WriteJSON(w, http.StatusOK, out)
}

func (h VaultHandler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	vaultID, err := pathID(r, "id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	memberID, err := pathID(r, "memberID")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req struct {
		DisplayName string `json:"display_name"`
		Role        string `json:"role"`
		Weight      int64  `json:"weight"`
	}
	if err := api.ReadJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	role := mvault.ParseRole(req.Role)
	if role == mvault.RoleUnknown {
		http.Error(w, "unknown role", http.StatusBadRequest)
		return
	}
	member := &mvault.Member{
		ID:          memberID,
		VaultID:     vaultID,
		DisplayName: req.DisplayName,
		Role:        role,
		Weight:      req.Weight,
	}
	if err := h.vs.UpdateMember(r.Context(), member); err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, serializeMember(*member))
}

func (h VaultHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	memberID, err := pathID(r, "memberID")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.vs.DeleteMember(r.Context(), memberID); err != nil {
		api.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
