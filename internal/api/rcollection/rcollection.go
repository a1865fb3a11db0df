//nolint:revive // exported
package rcollection

import (
	"net/http"
	"time"

	"github.com/bypptech/group-wallet-organizer/internal/api"
	"github.com/bypptech/group-wallet-organizer/internal/api/middleware/mwauth"
	"github.com/bypptech/group-wallet-organizer/pkg/idwrap"
	"github.com/bypptech/group-wallet-organizer/pkg/model/mcollection"
	"github.com/bypptech/group-wallet-organizer/pkg/service/scollection"
)

type CollectionHandler struct {
	cs scollection.CollectionService
}

func New(cs scollection.CollectionService) CollectionHandler {
	return CollectionHandler{cs: cs}
}

func CreateService(srv CollectionHandler, middleware ...func(http.Handler) http.Handler) []api.Service {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/collections", srv.Create)
	mux.HandleFunc("GET /v1/collections", srv.ListByVault)
	mux.HandleFunc("GET /v1/collections/{id}", srv.Get)
	mux.HandleFunc("POST /v1/collections/{id}/participants", srv.AddParticipant)
	mux.HandleFunc("GET /v1/collections/{id}/participants", srv.ListParticipants)
	mux.HandleFunc("GET /v1/participants/{id}", srv.GetParticipant)
	mux.HandleFunc("POST /v1/participants/{id}/wallet", srv.LinkWallet)
	mux.HandleFunc("POST /v1/participants/{id}/payments", srv.RecordPayment)
	mux.HandleFunc("GET /v1/participants/{id}/transfers", srv.ListTransfers)
	handler := api.Chain(mux, middleware...)
	return []api.Service{
		{Path: "/v1/collections", Handler: handler},
		{Path: "/v1/collections/", Handler: handler},
		{Path: "/v1/participants/", Handler: handler},
	}
}

type collectionResponse struct {
	ID        string `json:"id"`
	VaultID   string `json:"vault_id"`
	Name      string `json:"name"`
	Deadline  *int64 `json:"deadline,omitempty"`
	CreatedBy string `json:"created_by"`
	CreatedAt int64  `json:"created_at"`
}

func serializeCollection(c *mcollection.Collection) collectionResponse {
	resp := collectionResponse{
		ID:        c.ID.String(),
		VaultID:   c.VaultID.String(),
		Name:      c.Name,
		CreatedBy: c.CreatedBy.String(),
		CreatedAt: c.CreatedAt.Unix(),
	}
	if c.Deadline != nil {
		sec := c.Deadline.Unix()
		resp.Deadline = &sec
	}
	return resp
}

type participantResponse struct {
	ID              string  `json:"id"`
	CollectionID    string  `json:"collection_id"`
	DisplayName     string  `json:"display_name"`
	AllocatedAmount int64   `json:"allocated_amount"`
	WalletAddress   *string `json:"wallet_address,omitempty"`
	Status          string  `json:"status"`
	PaymentTxRef    *string `json:"payment_tx_ref,omitempty"`
}

func serializeParticipant(p *mcollection.Participant) participantResponse {
	return participantResponse{
		ID:              p.ID.String(),
		CollectionID:    p.CollectionID.String(),
		DisplayName:     p.DisplayName,
		AllocatedAmount: p.AllocatedAmount,
		WalletAddress:   p.WalletAddress,
		Status:          p.Status.String(),
		PaymentTxRef:    p.PaymentTxRef,
	}
}

type transferResponse struct {
	ID            string `json:"id"`
	ParticipantID string `json:"participant_id"`
	Ref           string `json:"ref"`
	Amount        int64  `json:"amount"`
	RecordedAt    int64  `json:"recorded_at"`
}

func (h CollectionHandler) Create(w http.ResponseWriter, r *http.Request) {
	actorID, err := mwauth.GetContextMemberID(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	var req struct {
		VaultID  string `json:"vault_id"`
		Name     string `json:"name"`
		Deadline *int64 `json:"deadline"`
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
	collection := &mcollection.Collection{
		VaultID:   vaultID,
		Name:      req.Name,
		CreatedBy: actorID,
	}
	if req.Deadline != nil {
		t := time.Unix(*req.Deadline, 0).UTC()
		collection.Deadline = &t
	}
	if err := h.cs.Create(r.Context(), collection); err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, serializeCollection(collection))
}

func (h CollectionHandler) ListByVault(w http.ResponseWriter, r *http.Request) {
	vaultID, err := idwrap.NewText(r.URL.Query().Get("vault_id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	collections, err := h.cs.ListByVault(r.Context(), vaultID)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	out := make([]collectionResponse, 0, len(collections))
	for _, c := range collections {
		out = append(out, serializeCollection(c))
	}
	api.WriteJSON(w, http.StatusOK, out)
}

func (h CollectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idwrap.NewText(r.PathValue("id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	collection, err := h.cs.Get(r.Context(), id)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, serializeCollection(collection))
}

func (h CollectionHandler) AddParticipant(w http.ResponseWriter, r *http.Request) {
	id, err := idwrap.NewText(r.PathValue("id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req struct {
		DisplayName     string `json:"display_name"`
		AllocatedAmount int64  `json:"allocated_amount"`
	}
	if err := api.ReadJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	participant := &mcollection.Participant{
		CollectionID:    id,
		DisplayName:     req.DisplayName,
		AllocatedAmount: req.AllocatedAmount,
	}
	if err := h.cs.AddParticipant(r.Context(), participant); err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, serializeParticipant(participant))
}

func (h CollectionHandler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	id, err := idwrap.NewText(r.PathValue("id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	participants, err := h.cs.ListParticipants(r.Context(), id)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	out := make([]participantResponse, 0, len(participants))
	for _, p := range participants {
		out = append(out, serializeParticipant(p))
	}
	api.WriteJSON(w, http.StatusOK, out)
}

func (h CollectionHandler) GetParticipant(w http.ResponseWriter, r *http.Request) {
	id, err := idwrap.NewText(r.PathValue("id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	participant, err := h.cs.GetParticipant(r.Context(), id)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, serializeParticipant(participant))
}

func (h CollectionHandler) LinkWallet(w http.ResponseWriter, r *http.Request) {
	id, actorID, ok := idAndActor(w, r)
	if !ok {
		return
	}
	var req struct {
		Address string `json:"address"`
	}
	if err := api.ReadJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	participant, err := h.cs.LinkWallet(r.Context(), id, req.Address, actorID)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, serializeParticipant(participant))
}

func (h CollectionHandler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	id, actorID, ok := idAndActor(w, r)
	if !ok {
		return
	}
	var req struct {
		Ref    string `json:"ref"`
		Amount int64  `json:"amount"`
	}
	if err := api.ReadJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	participant, err := h.cs.RecordPayment(r.Context(), id, req.Ref, req.Amount, actorID)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, serializeParticipant(participant))
}

func (h CollectionHandler) ListTransfers(w http.ResponseWriter, r *http.Request) {
	id, err := idwrap.NewText(r.PathValue("id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	transfers, err := h.cs.ListTransfers(r.Context(), id)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	out := make([]transferResponse, 0, len(transfers))
	for _, t := range transfers {
		out = append(out, transferResponse{
			ID:            t.ID.String(),
			ParticipantID: t.ParticipantID.String(),
			Ref:           t.Ref,
			Amount:        t.Amount,
			RecordedAt:    t.RecordedAt.Unix(),
		})
	}
	api.WriteJSON(w, http.StatusOK, out)
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
