//nolint:revive // exported
package rescrow

import (
	"encoding/base64"
	"net/http"
	"time"

	"github.com/bypptech/group-wallet-organizer/internal/api"
	"github.com/bypptech/group-wallet-organizer/internal/api/middleware/mwauth"
	"github.com/bypptech/group-wallet-organizer/pkg/idwrap"
	"github.com/bypptech/group-wallet-organizer/pkg/model/mapproval"
	"github.com/bypptech/group-wallet-organizer/pkg/model/mescrow"
	"github.com/bypptech/group-wallet-organizer/pkg/service/sapproval"
	"github.com/bypptech/group-wallet-organizer/pkg/service/sescrow"
)

type EscrowHandler struct {
	es sescrow.EscrowService
	as sapproval.ApprovalService
}

func New(es sescrow.EscrowService, as sapproval.ApprovalService) EscrowHandler {
	return EscrowHandler{es: es, as: as}
}

func CreateService(srv EscrowHandler, middleware ...func(http.Handler) http.Handler) []api.Service {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/escrows", srv.Create)
	mux.HandleFunc("GET /v1/escrows", srv.ListByVault)
	mux.HandleFunc("GET /v1/escrows/{id}", srv.Get)
	mux.HandleFunc("POST /v1/escrows/{id}/submit", srv.Submit)
	mux.HandleFunc("POST /v1/escrows/{id}/approvals", srv.SubmitApproval)
	mux.HandleFunc("GET /v1/escrows/{id}/approvals", srv.ListApprovals)
	mux.HandleFunc("POST /v1/escrows/{id}/evaluate", srv.Evaluate)
	mux.HandleFunc("POST /v1/escrows/{id}/cancel", srv.Cancel)
	mux.HandleFunc("POST /v1/escrows/{id}/release", srv.Release)
	handler := api.Chain(mux, middleware...)
	return []api.Service{
		{Path: "/v1/escrows", Handler: handler},
		{Path: "/v1/escrows/", Handler: handler},
	}
}

type escrowResponse struct {
	ID                 string  `json:"id"`
	VaultID            string  `json:"vault_id"`
	PolicyID           string  `json:"policy_id"`
	Amount             int64   `json:"amount"`
	Recipient          string  `json:"recipient"`
	Deadline           int64   `json:"deadline"`
	Status             string  `json:"status"`
	ReleaseRequestedAt *int64  `json:"release_requested_at,omitempty"`
	ReleaseAttempts    int64   `json:"release_attempts"`
	PayoutRef          *string `json:"payout_ref,omitempty"`
	CreatedBy          string  `json:"created_by"`
	CreatedAt          int64   `json:"created_at"`
}

func serializeEscrow(e *mescrow.Escrow) escrowResponse {
	resp := escrowResponse{
		ID:              e.ID.String(),
		VaultID:         e.VaultID.String(),
		PolicyID:        e.PolicyID.String(),
		Amount:          e.Amount,
		Recipient:       e.Recipient,
		Deadline:        e.Deadline.Unix(),
		Status:          e.Status.String(),
		ReleaseAttempts: e.ReleaseAttempts,
		PayoutRef:       e.PayoutRef,
		CreatedBy:       e.CreatedBy.String(),
		CreatedAt:       e.CreatedAt.Unix(),
	}
	if e.ReleaseRequestedAt != nil {
		sec := e.ReleaseRequestedAt.Unix()
		resp.ReleaseRequestedAt = &sec
	}
	return resp
}

type approvalResponse struct {
	EscrowID    string `json:"escrow_id"`
	MemberID    string `json:"member_id"`
	Decision    string `json:"decision"`
	Weight      int64  `json:"weight"`
	SubmittedAt int64  `json:"submitted_at"`
}

func serializeApproval(a mapproval.Approval) approvalResponse {
	return approvalResponse{
		EscrowID:    a.EscrowID.String(),
		MemberID:    a.MemberID.String(),
		Decision:    a.Decision.String(),
		Weight:      a.Weight,
		SubmittedAt: a.SubmittedAt.Unix(),
	}
}

func (h EscrowHandler) Create(w http.ResponseWriter, r *http.Request) {
	actorID, err := mwauth.GetContextMemberID(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	var req struct {
		VaultID   string `json:"vault_id"`
		Amount    int64  `json:"amount"`
		Recipient string `json:"recipient"`
		Deadline  int64  `json:"deadline"`
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
	escrow, err := h.es.CreateDraft(r.Context(), vaultID, req.Amount, req.Recipient, time.Unix(req.Deadline, 0).UTC(), actorID)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, serializeEscrow(escrow))
}

func (h EscrowHandler) ListByVault(w http.ResponseWriter, r *http.Request) {
	vaultID, err := idwrap.NewText(r.URL.Query().Get("vault_id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	escrows, err := h.es.ListByVault(r.Context(), vaultID)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	out := make([]escrowResponse, 0, len(escrows))
	for _, e := range escrows {
		out = append(out, serializeEscrow(e))
	}
	api.WriteJSON(w, http.StatusOK, out)
}

func (h EscrowHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idwrap.NewText(r.PathValue("id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	escrow, err := h.es.Get(r.Context(), id)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, serializeEscrow(escrow))
}

func (h EscrowHandler) Submit(w http.ResponseWriter, r *http.Request) {
	id, actorID, ok := idAndActor(w, r)
	if !ok {
		return
	}
	escrow, err := h.es.Submit(r.Context(), id, actorID)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, serializeEscrow(escrow))
}

func (h EscrowHandler) SubmitApproval(w http.ResponseWriter, r *http.Request) {
	id, actorID, ok := idAndActor(w, r)
	if !ok {
		return
	}
	var req struct {
		Decision string `json:"decision"`
		Proof    string `json:"proof"`
	}
	if err := api.ReadJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var decision mapproval.Decision
	switch req.Decision {
	case "approve":
		decision = mapproval.DecisionApprove
	case "reject":
		decision = mapproval.DecisionReject
	default:
		http.Error(w, "decision must be approve or reject", http.StatusBadRequest)
		return
	}
	proof, err := base64.StdEncoding.DecodeString(req.Proof)
	if err != nil {
		http.Error(w, "proof must be base64", http.StatusBadRequest)
		return
	}
	escrow, err := h.as.Submit(r.Context(), id, actorID, decision, proof)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, serializeEscrow(escrow))
}

func (h EscrowHandler) ListApprovals(w http.ResponseWriter, r *http.Request) {
	id, err := idwrap.NewText(r.PathValue("id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	approvals, err := h.as.ListByEscrow(r.Context(), id)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	out := make([]approvalResponse, 0, len(approvals))
	for _, a := range approvals {
		out = append(out, serializeApproval(a))
	}
	api.WriteJSON(w, http.StatusOK, out)
}

func (h EscrowHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	id, err := idwrap.NewText(r.PathValue("id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	escrow, err := h.es.Evaluate(r.Context(), id)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, serializeEscrow(escrow))
}

func (h EscrowHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, actorID, ok := idAndActor(w, r)
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if err := api.ReadJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.es.Cancel(r.Context(), id, actorID, req.Reason); err != nil {
		api.WriteError(w, err)
		return
	}
	escrow, err := h.es.Get(r.Context(), id)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, serializeEscrow(escrow))
}

func (h EscrowHandler) Release(w http.ResponseWriter, r *http.Request) {
	id, actorID, ok := idAndActor(w, r)
	if !ok {
		return
	}
	escrow, err := h.es.Release(r.Context(), id, actorID)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, serializeEscrow(escrow))
}

func idAndActor(w http.ResponseWriter, r *http.Request) (idwrap.IDWrap, idwrap.IDWrap, bool) {
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
