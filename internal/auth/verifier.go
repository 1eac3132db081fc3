// Package auth validates bearer credentials on inbound requests. Tokens
// are minted and revoked by the user service; the gateway only verifies
// signature, expiry and revocation, then attaches the claims to the
// request context. Downstream services receive the original token
// untouched.
package auth

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"cloudgateway/internal/core"
	"cloudgateway/internal/storage"
	"cloudgateway/pkg/errors"
)

// revocationKeyPrefix matches the key space the user service writes
// blacklisted tokens into.
const revocationKeyPrefix = "blacklist:"

// Verifier validates bearer tokens
type Verifier struct {
	secret []byte
	store  storage.Store
	logger *slog.Logger
}

// NewVerifier creates a token verifier. The store holds the shared
// revocation set; it may be nil when revocation checking is disabled.
func NewVerifier(secret string, store storage.Store, logger *slog.Logger) *Verifier {
	return &Verifier{
		secret: []byte(secret),
		store:  store,
		logger: logger.With("component", "auth"),
	}
}

// Verify validates a raw bearer token and returns its claims.
// It is a pure check: no state is mutated anywhere.
func (v *Verifier) Verify(ctx context.Context, rawToken string) (*core.AuthContext, error) {
	if rawToken == "" {
		return nil, errors.NewError(errors.ErrorTypeUnauthorized, errors.CodeMissingCredential, "authorization required")
	}

	if err := v.checkRevoked(ctx, rawToken); err != nil {
		return nil, err
	}

	token, err := jwt.Parse(rawToken, v.keyFunc, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.NewError(errors.ErrorTypeUnauthorized, errors.CodeExpiredToken, "token has expired").WithCause(err)
		}
		return nil, errors.NewError(errors.ErrorTypeUnauthorized, errors.CodeMalformedToken, "invalid token").WithCause(err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.NewError(errors.ErrorTypeUnauthorized, errors.CodeMalformedToken, "invalid token")
	}

	subject, _ := claims["sub"].(string)
	if subject == "" {
		return nil, errors.NewError(errors.ErrorTypeUnauthorized, errors.CodeMalformedToken, "missing subject claim")
	}

	authCtx := &core.AuthContext{
		Subject: subject,
		Claims:  map[string]any(claims),
	}
	if role, ok := claims["role"].(string); ok {
		authCtx.Role = role
	}
	if exp, ok := claims["exp"].(float64); ok {
		authCtx.ExpiresAt = time.Unix(int64(exp), 0)
	}

	return authCtx, nil
}

// checkRevoked consults the shared revocation set. A failing store does
// not block authentication; signature and expiry checks still apply.
func (v *Verifier) checkRevoked(ctx context.Context, rawToken string) error {
	if v.store == nil {
		return nil
	}

	revoked, err := v.store.Exists(ctx, revocationKeyPrefix+rawToken)
	if err != nil {
		v.logger.Warn("revocation check failed, proceeding without it", "error", err)
		return nil
	}
	if revoked {
		return errors.NewError(errors.ErrorTypeUnauthorized, errors.CodeRevokedToken, "token has been revoked")
	}
	return nil
}

func (v *Verifier) keyFunc(token *jwt.Token) (any, error) {
	return v.secret, nil
}

// FromAuthorizationHeader extracts the bearer token from request headers.
// Returns the empty string when no usable credential is present.
func FromAuthorizationHeader(headers map[string][]string) string {
	values, ok := headers["Authorization"]
	if !ok || len(values) == 0 {
		return ""
	}

	parts := strings.SplitN(values[0], " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
