// Copyright 2025 Lumen Education
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package auth validates bearer tokens on the HTTP surface.
//
// Tokens are JWTs signed with HMAC-SHA256 under the shared SIGNING_KEY
// secret; there is no key distribution to manage because the district
// integration layer that mints tokens and this service read the same
// secret. Validated claims ride the request context so handlers and the
// request log can attribute calls to a caller.
package auth

import (
	"context"
	"errors"
	"slices"
)

// Sentinel errors returned by token validation.
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// Claims are the validated claims of a caller's token. Role is one of
// teacher, counselor, or admin. DistrictID scopes the caller to one school
// district in multi-district deployments; it is carried for audit logging,
// not enforced here.
type Claims struct {
	Subject    string         `json:"sub"`
	Email      string         `json:"email,omitempty"`
	Role       string         `json:"role,omitempty"`
	DistrictID string         `json:"district_id,omitempty"`
	Custom     map[string]any `json:"-"`
}

// HasAnyRole reports whether the caller holds one of the given roles.
func (c *Claims) HasAnyRole(roles ...string) bool {
	return slices.Contains(roles, c.Role)
}

type claimsKey struct{}

// ClaimsFromContext extracts claims from a context, nil if absent.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsKey{}).(*Claims)
	return claims
}

// ContextWithClaims returns a new context carrying the given claims.
func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}
