//nolint:revive // exported
package mwauth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bypptech/group-wallet-organizer/pkg/idwrap"
	"github.com/bypptech/group-wallet-organizer/pkg/stoken"
)

type ContextKey int

const (
	MemberIDKeyCtx ContextKey = iota
)

const LocalDummyIDStr = "00000000000000000000000000"

var LocalDummyID = idwrap.NewTextMust(LocalDummyIDStr)

func CreateAuthedContext(ctx context.Context, memberID idwrap.IDWrap) context.Context {
	return context.WithValue(ctx, MemberIDKeyCtx, memberID)
}

func GetContextMemberID(ctx context.Context) (idwrap.IDWrap, error) {
	id, ok := ctx.Value(MemberIDKeyCtx).(idwrap.IDWrap)
	if !ok {
		return id, errors.New("member id not found in context")
	}
	return id, nil
}

// New validates the bearer token on every request and stores the member id
// in the request context.
func New(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			headerValue := r.Header.Get("Authorization")
			if headerValue == "" {
				http.Error(w, "no token provided", http.StatusUnauthorized)
				return
			}

			tokenRaw := strings.Split(headerValue, "Bearer ")
			if len(tokenRaw) != 2 {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			memberID, err := stoken.Validate(tokenRaw[1], secret)
			if err != nil {
				slog.ErrorContext(r.Context(), "Error validating token", "error", err)
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(CreateAuthedContext(r.Context(), memberID)))
		})
	}
}

// NewLocal skips token validation and authenticates every request as the
// local dummy member. Single-user local mode only.
func NewLocal() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(CreateAuthedContext(r.Context(), LocalDummyID)))
		})
	}
}
