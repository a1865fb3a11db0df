//nolint:revive // exported
package rpolicy

import (
	"encoding/base64"
	"net/http"
	"time"

	"github.com/bypptech/group-wallet-organizer/internal/api"
	"github.com/bypptech/group-wallet-organizer/internal/api/middleware/mwauth"
	"github.com/bypptech/group-wallet-organizer/pkg/idwrap"
	"github.com/bypptech/group-wallet-organizer/pkg/model/mpolicy"
	"github.com/bypptech/group-wallet-organizer/pkg/service/spolicy"
)

type PolicyHandler struct {
	ps spolicy.PolicyService
}

func New(ps spolicy.PolicyService) PolicyHandler {
	return PolicyHandler{ps: ps}
}

func CreateService(srv PolicyHandler, middleware ...func(http.Handler) http.Handler) []api.Service {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/policies", srv.Create)
	mux.HandleFunc("GET /v1/policies", srv.ListByVault)
	mux.HandleFunc("GET /v1/policies/{id}", srv.Get)
	mux.HandleFunc("POST /v1/policies/{id}/activate", srv.Activate)
	mux.HandleFunc("POST /v1/policies/{id}/update", srv.Update)
	mux.HandleFunc("POST /v1/policies/{id}/schedule", srv.Schedule)
	mux.HandleFunc("GET /v1/policies/{id}/schedule", srv.GetSchedule)
	mux.HandleFunc("POST /v1/policies/{id}/apply-due", srv.ApplyDue)
	mux.HandleFunc("POST /v1/policies/{id}/emergency", srv.Emergency)
	mux.HandleFunc("POST /v1/policies/{id}/disable", srv.Disable)
	mux.HandleFunc("POST /v1/policies/{id}/enable", srv.Enable)
	mux.HandleFunc("POST /v1/policies/{id}/archive", srv.Archive)
	mux.HandleFunc("GET /v1/policies/{id}/proof/{memberID}", srv.Proof)
	handler := api.Chain(mux, middleware...)
	return []api.Service{
		{Path: "/v1/policies", Handler: handler},
		{Path: "/v1/policies/", Handler: handler},
	}
}

type paramsRequest struct {
	Threshold       int64 `json:"threshold"`
	TimelockSeconds int64 `json:"timelock_seconds"`
	MaxAmount       int64 `json:"max_amount"`
	CooldownSeconds int64 `json:"cooldown_seconds"`
	ExpireReady     bool  `json:"expire_ready"`
}

func (p paramsRequest) model() mpolicy.Params {
	return mpolicy.Params{
		Threshold:       p.Threshold,
		TimelockSeconds: p.TimelockSeconds,
		MaxAmount:       p.MaxAmount,
		CooldownSeconds: p.CooldownSeconds,
		ExpireReady:     p.ExpireReady,
	}
}

type policyResponse struct {
	ID               string  `json:"id"`
	VaultID          string  `json:"vault_id"`
	Threshold        int64   `json:"threshold"`
	TimelockSeconds  int64   `json:"timelock_seconds"`
	MaxAmount        int64   `json:"max_amount"`
	CooldownSeconds  int64   `json:"cooldown_seconds"`
	ExpireReady      bool    `json:"expire_ready"`
	Status           string  `json:"status"`
	RevisionOf       *string `json:"revision_of,omitempty"`
	RolesCommitment  string  `json:"roles_commitment"`
	OwnersCommitment string  `json:"owners_commitment"`
	LastEditedAt     int64   `json:"last_edited_at"`
	CreatedAt        int64   `json:"created_at"`
}

func serializePolicy(p *mpolicy.Policy) policyResponse {
	resp := policyResponse{
		ID:               p.ID.String(),
		VaultID:          p.VaultID.String(),
		Threshold:        p.Threshold,
		TimelockSeconds:  p.TimelockSeconds,
		MaxAmount:        p.MaxAmount,
		CooldownSeconds:  p.CooldownSeconds,
		ExpireReady:      p.ExpireReady,
		Status:           p.Status.String(),
		RolesCommitment:  base64.StdEncoding.EncodeToString(p.RolesCommitment),
		OwnersCommitment: base64.StdEncoding.EncodeToString(p.OwnersCommitment),
		LastEditedAt:     p.LastEditedAt.Unix(),
		CreatedAt:        p.CreatedAt.Unix(),
	}
	if p.RevisionOf != nil {
		s := p.RevisionOf.String()
		resp.RevisionOf = &s
	}
	return resp
}

func (h PolicyHandler) Create(w http.ResponseWriter, r *http.Request) {
	actorID, err := mwauth.GetContextMemberID(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	var req struct {
		paramsRequest
		VaultID string `json:"vault_id"`
	}
	if err := api.ReadJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	vaultID, err := idwrap.NewText(req.VaultID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	policy, err := h.ps.Create(r.Context(), vaultID, req.model(), actorID)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, serializePolicy(policy))
}

func (h PolicyHandler) ListByVault(w http.ResponseWriter, r *http.Request) {
	vaultID, err := idwrap.NewText(r.URL.Query().Get("vault_id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	policies, err := h.ps.ListByVault(r.Context(), vaultID)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	out := make([]policyResponse, 0, len(policies))
	for _, p := range policies {
		out = append(out, serializePolicy(p))
	}
	api.WriteJSON(w, http.StatusOK, out)
}

func (h PolicyHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idwrap.NewText(r.PathValue("id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	policy, err := h.ps.Get(r.Context(), id)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, serializePolicy(policy))
}

func (h PolicyHandler) Activate(w http.ResponseWriter, r *http.Request) {
	id, actorID, ok := h.idAndActor(w, r)
	if !ok {
		return
	}
	if err := h.ps.Activate(r.Context(), id, actorID); err != nil {
		api.WriteError(w, err)
		return
	}
	h.respondWithPolicy(w, r, id)
}

func (h PolicyHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, actorID, ok := h.idAndActor(w, r)
	if !ok {
		return
	}
	var req paramsRequest
	if err := api.ReadJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	revision, err := h.ps.Update(r.Context(), id, req.model(), actorID)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, serializePolicy(revision))
}

func (h PolicyHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	id, actorID, ok := h.idAndActor(w, r)
	if !ok {
		return
	}
	var req struct {
		paramsRequest
		EffectiveAt int64 `json:"effective_at"`
	}
	if err := api.ReadJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.ps.ScheduleUpdate(r.Context(), id, req.model(), time.Unix(req.EffectiveAt, 0).UTC(), actorID); err != nil {
		api.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

type scheduleResponse struct {
	PolicyID    string        `json:"policy_id"`
	Params      paramsRequest `json:"params"`
	EffectiveAt int64         `json:"effective_at"`
	CreatedBy   string        `json:"created_by"`
	CreatedAt   int64         `json:"created_at"`
}

func (h PolicyHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := idwrap.NewText(r.PathValue("id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	change, err := h.ps.GetScheduledChange(r.Context(), id)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	if change == nil {
		http.Error(w, "no scheduled change", http.StatusNotFound)
		return
	}
	api.WriteJSON(w, http.StatusOK, scheduleResponse{
		PolicyID: change.PolicyID.String(),
		Params: paramsRequest{
			Threshold:       change.Params.Threshold,
			TimelockSeconds: change.Params.TimelockSeconds,
			MaxAmount:       change.Params.MaxAmount,
			CooldownSeconds: change.Params.CooldownSeconds,
			ExpireReady:     change.Params.ExpireReady,
		},
		EffectiveAt: change.EffectiveAt.Unix(),
		CreatedBy:   change.CreatedBy.String(),
		CreatedAt:   change.CreatedAt.Unix(),
	})
}

func (h PolicyHandler) ApplyDue(w http.ResponseWriter, r *http.Request) {
	id, err := idwrap.NewText(r.PathValue("id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	revision, err := h.ps.ApplyDueScheduled(r.Context(), id)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	if revision == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	api.WriteJSON(w, http.StatusCreated, serializePolicy(revision))
}

func (h PolicyHandler) Emergency(w http.ResponseWriter, r *http.Request) {
	id, actorID, ok := h.idAndActor(w, r)
	if !ok {
		return
	}
	var req struct {
		paramsRequest
		Reason string `json:"reason"`
	}
	if err := api.ReadJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	revision, err := h.ps.EmergencyUpdate(r.Context(), id, req.model(), req.Reason, actorID)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, serializePolicy(revision))
}

func (h PolicyHandler) Disable(w http.ResponseWriter, r *http.Request) {
	id, actorID, ok := h.idAndActor(w, r)
	if !ok {
		return
	}
	if err := h.ps.Disable(r.Context(), id, actorID); err != nil {
		api.WriteError(w, err)
		return
	}
	h.respondWithPolicy(w, r, id)
}

func (h PolicyHandler) Enable(w http.ResponseWriter, r *http.Request) {
	id, actorID, ok := h.idAndActor(w, r)
	if !ok {
		return
	}
	if err := h.ps.Enable(r.Context(), id, actorID); err != nil {
		api.WriteError(w, err)
		return
	}
	h.respondWithPolicy(w, r, id)
}

func (h PolicyHandler) Archive(w http.ResponseWriter, r *http.Request) {
	id, actorID, ok := h.idAndActor(w, r)
	if !ok {
		return
	}
	if err := h.ps.Archive(r.Context(), id, actorID); err != nil {
		api.WriteError(w, err)
		return
	}
	h.respondWithPolicy(w, r, id)
}

func (h PolicyHandler) Proof(w http.ResponseWriter, r *http.Request) {
	id, err := idwrap.NewText(r.PathValue("id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	memberID, err := idwrap.NewText(r.PathValue("memberID"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	proof, err := h.ps.ProveMember(r.Context(), id, memberID)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]string{
		"proof": base64.StdEncoding.EncodeToString(proof),
	})
}

func (h PolicyHandler) idAndActor(w http.ResponseWriter, r *http.Request) (idwrap.IDWrap, idwrap.IDWrap, bool) {
	id, err := idwrap.NewText(r.PathValue("id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return idwrap.IDWrap{}, idwrap.IDWrap{}, false
	}
	actorID, err := mwauth.GetContextMemberID(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return idwrap.IDWrap{}, idwrap.IDWrap{}, false
	}
	return id, actorID, true
}

func (h PolicyHandler) respondWithPolicy(w http.ResponseWriter, r *http.Request, id idwrap.IDWrap) {
	policy, err := h.ps.Get(r.Context(), id)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, serializePolicy(policy))
}
