package auth

import (
	"errors"
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Validator verifies HS256 tokens against the shared signing key.
type Validator struct {
	key      jwk.Key
	issuer   string
	audience string
}

// NewValidator builds a Validator around the signing key. Issuer and
// audience are checked only when non-empty.
func NewValidator(signingKey []byte, issuer, audience string) (*Validator, error) {
	if len(signingKey) == 0 {
		return nil, fmt.Errorf("signing key is required")
	}

	key, err := jwk.FromRaw(signingKey)
	if err != nil {
		return nil, fmt.Errorf("build verification key: %w", err)
	}

	return &Validator{key: key, issuer: issuer, audience: audience}, nil
}

// Validate parses and verifies a raw token, returning its claims.
// Signature, expiration, and (when configured) issuer and audience are
// all checked; any failure comes back wrapped in ErrInvalidToken, expiry
// as ErrTokenExpired.
func (v *Validator) Validate(raw string) (*Claims, error) {
	opts := []jwt.ParseOption{
		jwt.WithKey(jwa.HS256, v.key),
		jwt.WithValidate(true),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	token, err := jwt.Parse([]byte(raw), opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired()) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims := &Claims{
		Subject: token.Subject(),
		Custom:  make(map[string]any),
	}
	for key, value := range token.PrivateClaims() {
		switch key {
		case "email":
			if s, ok := value.(string); ok {
				claims.Email = s
			}
		case "role":
			if s, ok := value.(string); ok {
				claims.Role = s
			}
		case "district_id":
			if s, ok := value.(string); ok {
				claims.DistrictID = s
			}
		default:
			claims.Custom[key] = value
		}
	}

	return claims, nil
}
