package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"infostore/internal/domain"
	"infostore/internal/domain/models"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// JWKSVerifier implements JWTVerifier using keys from a JWKS endpoint.
type JWKSVerifier struct {
	keyfunc jwt.Keyfunc
	logger  *slog.Logger
}

// NewJWTVerifier creates a new JWT verifier that fetches public keys from the JWKS endpoint.
// The JWKS keys are cached and automatically refreshed based on HTTP cache headers.
func NewJWTVerifier(jwksURL string, logger *slog.Logger) (JWTVerifier, error) {
	if jwksURL == "" {
		return nil, errors.New("JWKS URL cannot be empty")
	}

	// keyfunc v3 automatically handles caching and refresh based on HTTP cache headers
	jwks, err := keyfunc.NewDefaultCtx(context.Background(), []string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("failed to create JWKS client: %w", err)
	}

	logger.Info("JWT verifier initialized", "jwks_url", jwksURL)
	return newVerifier(jwks.Keyfunc, logger), nil
}

func newVerifier(kf jwt.Keyfunc, logger *slog.Logger) *JWKSVerifier {
	return &JWKSVerifier{keyfunc: kf, logger: logger}
}

// VerifyToken validates a JWT token and extracts the caller claims.
// Returns an error if the token is invalid, expired, or has incorrect claims.
func (v *JWKSVerifier) VerifyToken(tokenString string) (*models.Claims, error) {
	// Only asymmetric algorithms are accepted; this also guards against
	// algorithm confusion attacks.
	token, err := jwt.ParseWithClaims(tokenString, &models.Claims{}, v.keyfunc,
		jwt.WithValidMethods([]string{"RS256", "ES256"}))
	if err != nil {
		v.logger.Debug("token parse failed", "error", err.Error())
		return nil, domain.ErrUnauthorized
	}

	if !token.Valid {
		v.logger.Debug("token is invalid after parsing")
		return nil, domain.ErrUnauthorized
	}

	claims, ok := token.Claims.(*models.Claims)
	if !ok {
		v.logger.Error("Failed to extract claims from token")
		return nil, domain.ErrUnauthorized
	}

	// Every request is scoped to exactly one context
	if claims.ContextID <= 0 || claims.UserID <= 0 {
		v.logger.Debug("token missing context or user id",
			"context_id", claims.ContextID,
			"user_id", claims.UserID,
		)
		return nil, domain.ErrUnauthorized
	}

	// Validate role is "authenticated" (reject anonymous tokens)
	if claims.Role != "authenticated" {
		v.logger.Warn("token has invalid role",
			"role", claims.Role,
			"expected", "authenticated",
			"user_id", claims.UserID,
		)
		return nil, domain.ErrUnauthorized
	}

	return claims, nil
}

// Close releases resources held by the JWT verifier.
// In keyfunc v3, the library manages its own resources based on HTTP cache headers,
// so this is a no-op for graceful shutdown compatibility.
func (v *JWKSVerifier) Close() error {
	v.logger.Info("JWT verifier closed")
	return nil
}
