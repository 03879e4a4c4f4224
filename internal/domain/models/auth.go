package models

import (
	"github.com/golang-jwt/jwt/v5"

	"infostore/internal/domain/models/infostore"
)

// Claims is the JWT claim set issued to infostore callers. The subject is
// informational; authorization keys on the numeric context and user ids.
type Claims struct {
	jwt.RegisteredClaims        // Standard JWT claims (sub, iss, aud, exp, iat, etc.)
	ContextID            int64  `json:"context_id"`
	UserID               int64  `json:"user_id"`
	Role                 string `json:"role"` // "authenticated" or "anon"
}

// Caller returns the acting identity carried by the token.
func (c *Claims) Caller() infostore.Caller {
	return infostore.Caller{ContextID: c.ContextID, UserID: c.UserID}
}
