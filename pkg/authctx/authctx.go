/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package authctx verifies the system-admin bearer token carried on
// calls that bypass per-org RBAC (quota overrides, cross-org migration
// tooling), and threads the verified claims through a context.Context
// for downstream handlers to consult.
package authctx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/jamerrors"
)

// ServiceClaims are the JWT claims carried on a system-admin call,
// signed and verified with the deployment's SERVICE_KEY.
type ServiceClaims struct {
	jwt.RegisteredClaims
	// Admin is true when the token authorizes system-admin operations
	// (quota overrides, cross-org table migration) rather than just
	// identifying an internal service-to-service caller.
	Admin bool `json:"admin"`
}

type contextKey struct{}

// Authenticator issues and verifies ServiceClaims tokens using the
// deployment's SERVICE_KEY as an HMAC signing secret.
type Authenticator struct {
	secret []byte
	issuer string
}

// NewAuthenticator builds an Authenticator from the raw SERVICE_KEY.
func NewAuthenticator(serviceKey []byte, issuer string) (*Authenticator, error) {
	if len(serviceKey) == 0 {
		return nil, errors.New("authctx: SERVICE_KEY must not be empty")
	}
	return &Authenticator{secret: serviceKey, issuer: issuer}, nil
}

// IssueToken mints a system-admin token valid for ttl, for internal
// tooling and tests that need to call admin-only operations.
func (a *Authenticator) IssueToken(subject string, admin bool, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := ServiceClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Admin: admin,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// Verify parses and validates a bearer token, returning the claims it
// carries. Rejects anything not signed with HS256 under our own secret.
func (a *Authenticator) Verify(tokenString string) (*ServiceClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ServiceClaims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, jamerrors.Wrap(jamerrors.Unauthenticated, err, "service token expired")
		}
		return nil, jamerrors.Wrap(jamerrors.Unauthenticated, err, "invalid service token")
	}

	claims, ok := token.Claims.(*ServiceClaims)
	if !ok || !token.Valid {
		return nil, jamerrors.New(jamerrors.Unauthenticated, "invalid service token")
	}

	return claims, nil
}

// RequireAdmin verifies tokenString and additionally requires the
// Admin claim, for operations restricted to system administrators.
func (a *Authenticator) RequireAdmin(tokenString string) (*ServiceClaims, error) {
	claims, err := a.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	if !claims.Admin {
		return nil, jamerrors.New(jamerrors.Forbidden, "service token does not carry admin privileges")
	}
	return claims, nil
}

// WithServiceClaims returns a context carrying the verified claims, for
// handlers downstream of authentication to consult without reparsing
// the token.
func WithServiceClaims(ctx context.Context, claims *ServiceClaims) context.Context {
	return context.WithValue(ctx, contextKey{}, claims)
}

// ServiceClaimsFromContext retrieves claims previously attached with
// WithServiceClaims.
func ServiceClaimsFromContext(ctx context.Context) (*ServiceClaims, bool) {
	claims, ok := ctx.Value(contextKey{}).(*ServiceClaims)
	return claims, ok
}

// IsSystemAdmin reports whether ctx carries claims authorizing
// system-admin operations.
func IsSystemAdmin(ctx context.Context) bool {
	claims, ok := ServiceClaimsFromContext(ctx)
	return ok && claims.Admin
}
