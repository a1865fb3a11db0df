//nolint:revive // exported
package rhealth

import (
	"net/http"

	"github.com/bypptech/group-wallet-organizer/internal/api"
)

type HealthHandler struct{}

func New() HealthHandler {
	return HealthHandler{}
}

func CreateService(srv HealthHandler) []api.Service {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/health", srv.Check)
	return []api.Service{{Path: "/v1/health", Handler: mux}}
}

func (HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
