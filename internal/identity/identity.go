// Package identity carries the caller's user id and role through a request
// so mutations can be attributed in the audit trail. It does not authorise.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type Actor struct {
	UserID string
	Role   string
}

// Anonymous is used when a request carries no token.
var Anonymous = Actor{UserID: "anonymous", Role: "anonymous"}

var ErrInvalidToken = errors.New("invalid identity token")

type ctxKey struct{}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

func ActorFrom(ctx context.Context) Actor {
	if a, ok := ctx.Value(ctxKey{}).(Actor); ok {
		return a
	}
	return Anonymous
}

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Parser validates HS256 bearer tokens.
type Parser struct {
	secret []byte
}

func NewParser(secret string) *Parser {
	return &Parser{secret: []byte(secret)}
}

func (p *Parser) Parse(raw string) (Actor, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return p.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return Actor{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return Actor{UserID: claims.Subject, Role: claims.Role}, nil
}

// Sign issues a token for a; used by tooling and tests.
func (p *Parser) Sign(a Actor, claims jwt.RegisteredClaims) (string, error) {
	claims.Subject = a.UserID
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Role: a.Role, RegisteredClaims: claims})
	return token.SignedString(p.secret)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
