//nolint:revive // exported
package raudit

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/coder/websocket"
	json "github.com/goccy/go-json"

	"github.com/bypptech/group-wallet-organizer/internal/api"
	"github.com/bypptech/group-wallet-organizer/pkg/idwrap"
	"github.com/bypptech/group-wallet-organizer/pkg/model/maudit"
	"github.com/bypptech/group-wallet-organizer/pkg/service/saudit"
)

type AuditHandler struct {
	as saudit.AuditService
}

func New(as saudit.AuditService) AuditHandler {
	return AuditHandler{as: as}
}

func CreateService(srv AuditHandler, middleware ...func(http.Handler) http.Handler) []api.Service {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/audit", srv.List)
	mux.HandleFunc("GET /v1/audit/stream", srv.Stream)
	handler := api.Chain(mux, middleware...)
	return []api.Service{
		{Path: "/v1/audit", Handler: handler},
		{Path: "/v1/audit/", Handler: handler},
	}
}

type eventResponse struct {
	ID        string `json:"id"`
	UUID      string `json:"uuid"`
	Kind      string `json:"kind"`
	VaultID   string `json:"vault_id"`
	EntityID  string `json:"entity_id"`
	ActorID   string `json:"actor_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Detail    string `json:"detail,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

func serializeEvent(e maudit.Event) eventResponse {
	resp := eventResponse{
		ID:        e.ID.String(),
		UUID:      e.UUID,
		Kind:      string(e.Kind),
		VaultID:   e.VaultID.String(),
		EntityID:  e.EntityID.String(),
		Reason:    e.Reason,
		Detail:    e.Detail,
		CreatedAt: e.CreatedAt.Unix(),
	}
	if e.ActorID != nil {
		resp.ActorID = e.ActorID.String()
	}
	return resp
}

func (h AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	vaultID, err := idwrap.NewText(r.URL.Query().Get("vault_id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	limit := int64(100)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	events, err := h.as.ListByVault(r.Context(), vaultID, limit)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	out := make([]eventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, serializeEvent(e))
	}
	api.WriteJSON(w, http.StatusOK, out)
}

// Stream pushes a vault's audit events over a websocket as they happen.
// Events emitted before the subscription was set up are not replayed; use
// List for history.
func (h AuditHandler) Stream(w http.ResponseWriter, r *http.Request) {
	vaultID, err := idwrap.NewText(r.URL.Query().Get("vault_id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		slog.Error("Failed to accept websocket", "error", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx := r.Context()
	events, err := h.as.Subscribe(ctx, vaultID)
	if err != nil {
		conn.Close(websocket.StatusInternalError, "subscribe failed")
		return
	}

	for event := range events {
		payload, err := json.Marshal(serializeEvent(event.Payload))
		if err != nil {
			slog.Error("Failed to encode audit event", "error", err)
			continue
		}
		if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
			return
		}
	}
}
