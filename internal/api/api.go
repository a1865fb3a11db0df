//nolint:revive // exported
package api

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/bypptech/group-wallet-organizer/pkg/errcode"
)

type Service struct {
	Handler http.Handler
	Path    string
}

func newCORS() *cors.Cors {
	return cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
		},
		AllowOriginFunc: func(origin string) bool {
			return true
		},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{
			"Accept",
			"Accept-Encoding",
			"Content-Encoding",
			"Content-Type",
		},
		MaxAge: int(time.Second),
	})
}

// Server mode constants
const (
	ServerModeUDS = "uds"
	ServerModeTCP = "tcp"
)

func newH2CServer(mux *http.ServeMux) *http.Server {
	return &http.Server{
		Addr:              "group-wallet-organizer:0",
		ReadHeaderTimeout: 10 * time.Second,
		// INFO: Use h2c so we can serve HTTP/2 without TLS.
		Handler: h2c.NewHandler(newCORS().Handler(mux), &http2.Server{
			IdleTimeout:          0,
			MaxConcurrentStreams: 100000,
			MaxHandlers:          0,
		}),
	}
}

// ListenServices starts the server listening on either a Unix socket or TCP port.
//
// Environment variables:
//   - SERVER_MODE: "uds" (default) or "tcp"
//   - SERVER_SOCKET_PATH: custom socket path (uds mode, defaults to /tmp/group-wallet-organizer/server.socket)
//   - PORT: port number (tcp mode, defaults to 8080)
func ListenServices(services []Service, port string) error {
	mux := http.NewServeMux()

	for _, service := range services {
		slog.Info("Registering service", "path", service.Path)
		mux.Handle(service.Path, service.Handler)
	}

	mode := os.Getenv("SERVER_MODE")
	if mode == "" {
		mode = ServerModeUDS
	}

	switch mode {
	case ServerModeTCP:
		return listenTCP(mux, port)
	case ServerModeUDS:
		return listenIPC(mux)
	default:
		slog.Warn("Unknown SERVER_MODE, falling back to uds", "mode", mode)
		return listenIPC(mux)
	}
}

func listenTCP(mux *http.ServeMux, port string) error {
	srv := newH2CServer(mux)
	srv.Addr = ":" + port

	slog.Info("Server listening on TCP", "port", port)
	return srv.ListenAndServe()
}

// Chain wraps a handler in middleware, first entry outermost.
func Chain(h http.Handler, middleware ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middleware) - 1; i >= 0; i-- {
		h = middleware[i](h)
	}
	return h
}

// WriteJSON encodes v as the response body. Encoding failures after the
// header has been written can only be logged.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError maps a domain error to its HTTP status and a stable JSON body.
func WriteError(w http.ResponseWriter, err error) {
	code := errcode.CodeOf(err)
	WriteJSON(w, errcode.HTTPStatus(code), errorBody{
		Code:    string(code),
		Message: err.Error(),
	})
}

// ReadJSON decodes the request body into v.
func ReadJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
