package session

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ClaimNames selects which claims populate an Identity.
type ClaimNames struct {
	// Principal defaults to "sub".
	Principal string

	// Dealer defaults to "dealer".
	Dealer string

	// Roles defaults to "roles".
	Roles string
}

func (c ClaimNames) withDefaults() ClaimNames {
	if c.Principal == "" {
		c.Principal = "sub"
	}
	if c.Dealer == "" {
		c.Dealer = "dealer"
	}
	if c.Roles == "" {
		c.Roles = "roles"
	}
	return c
}

// ParseIdentity decodes the claims of a JWT without verifying its signature.
func ParseIdentity(token string, names ClaimNames) (*Identity, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return nil, ErrNoToken
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	return buildIdentity(claims, names.withDefaults()), nil
}

func buildIdentity(claims jwt.MapClaims, names ClaimNames) *Identity {
	id := &Identity{Claims: make(map[string]any, len(claims))}
	for k, v := range claims {
		id.Claims[k] = v
	}

	if principal, ok := claims[names.Principal].(string); ok {
		id.Principal = principal
	}
	if dealer, ok := claims[names.Dealer].(string); ok {
		id.DealerID = dealer
	}

	switch roles := claims[names.Roles].(type) {
	case []any:
		id.Roles = make([]string, 0, len(roles))
		for _, r := range roles {
			if s, ok := r.(string); ok {
				id.Roles = append(id.Roles, s)
			}
		}
	case string:
		id.Roles = strings.Fields(roles)
	}

	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		id.ExpiresAt = exp.Time
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		id.IssuedAt = iat.Time
	}
	return id
}
