//nolint:revive // exported
package stoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bypptech/group-wallet-organizer/pkg/idwrap"
)

var (
	ErrInvalidToken = errors.New("stoken: invalid token")
	ErrNoMemberID   = errors.New("stoken: token carries no member id")
)

type Claims struct {
	jwt.RegisteredClaims
	MemberID string `json:"member_id"`
}

// New mints a bearer token for a member. Identity is always an explicit
// member id; there is no ambient session state anywhere in the core.
func New(memberID idwrap.IDWrap, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		MemberID: memberID.String(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// Validate parses and verifies a token and returns the member id it carries.
func Validate(tokenStr string, secret []byte) (idwrap.IDWrap, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	})
	if err != nil {
		return idwrap.IDWrap{}, err
	}
	if !token.Valid {
		return idwrap.IDWrap{}, ErrInvalidToken
	}
	if claims.MemberID == "" {
		return idwrap.IDWrap{}, ErrNoMemberID
	}
	return idwrap.NewText(claims.MemberID)
}
