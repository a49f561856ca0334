// Package auth defines the acting user passed into every workflow call and
// the bearer token verification that produces it.
package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pesio-ai/be-sow-approvals/internal/errors"
)

// Role is the closed set of roles the approval engine understands.
type Role int

const (
	RoleOther Role = iota
	RoleManager
	RoleDirector
	RoleVP
	RoleAdmin
)

var roleNames = map[Role]string{
	RoleOther:    "other",
	RoleManager:  "manager",
	RoleDirector: "director",
	RoleVP:       "vp",
	RoleAdmin:    "admin",
}

// ParseRole maps a role claim or stage assignment onto a Role. Unknown names
// become RoleOther.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "manager":
		return RoleManager
	case "director":
		return RoleDirector
	case "vp":
		return RoleVP
	case "admin":
		return RoleAdmin
	default:
		return RoleOther
	}
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "other"
}

// Actor is the authenticated caller.
type Actor struct {
	ID    string
	Role  Role
	Admin bool
}

// IsAdmin reports whether the actor holds admin rights, either through the
// admin role or an explicit admin claim.
func (a Actor) IsAdmin() bool {
	return a.Admin || a.Role == RoleAdmin
}

type actorKey struct{}

// WithActor stores the actor in ctx.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor stored by WithActor.
func ActorFromContext(ctx context.Context) (Actor, error) {
	actor, ok := ctx.Value(actorKey{}).(Actor)
	if !ok || actor.ID == "" {
		return Actor{}, errors.Unauthenticated("no authenticated actor")
	}
	return actor, nil
}

// Claims is the JWT payload issued by the identity provider.
type Claims struct {
	Role  string `json:"role"`
	Admin bool   `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

// Verifier validates HMAC-signed bearer tokens.
type Verifier struct {
	secret []byte
	issuer string
}

// NewVerifier creates a Verifier. An empty issuer disables the issuer check.
func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer}
}

// Verify parses a raw token (with or without the "Bearer " prefix).
func (v *Verifier) Verify(raw string) (Actor, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Actor{}, errors.Unauthenticated("missing bearer token")
	}
	if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
		raw = strings.TrimSpace(raw[7:])
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return Actor{}, errors.Wrap(err, errors.ErrCodeUnauthenticated, "invalid bearer token")
	}
	if claims.Subject == "" {
		return Actor{}, errors.Unauthenticated("token has no subject")
	}

	return Actor{ID: claims.Subject, Role: ParseRole(claims.Role), Admin: claims.Admin}, nil
}

// Issue signs a token for actor. Used by tooling and tests.
func (v *Verifier) Issue(actor Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role:  actor.Role.String(),
		Admin: actor.Admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}
