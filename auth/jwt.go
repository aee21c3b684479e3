// Package auth verifies the bearer tokens issued by the notes API so the
// collaboration server can bind each connection to a user id.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/0reilly/modern-note-app/domain"
)

var _ domain.Verifier = (*JWTVerifier)(nil)

// Claims mirrors the payload the notes API signs: userId and email, plus
// the registered claims. Older tokens carry the id only in "sub".
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

type JWTVerifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewJWTVerifier accepts HS256 tokens signed with secret. When issuer is
// non-empty the iss claim must match it.
func NewJWTVerifier(secret []byte, issuer string) *JWTVerifier {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	return &JWTVerifier{secret: secret, parser: jwt.NewParser(opts...)}
}

func (v *JWTVerifier) Verify(ctx context.Context, credential string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	claims := &Claims{}
	_, err := v.parser.ParseWithClaims(credential, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrAuth, err)
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return "", fmt.Errorf("%w: token has no user id", domain.ErrAuth)
	}
	return userID, nil
}

// Credential extracts the token from the "token" query parameter or, failing
// that, an "Authorization: Bearer" header.
func Credential(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// IsAuthError reports whether err rejects the credential, as opposed to the
// verification itself failing (for example a cancelled context).
func IsAuthError(err error) bool {
	return errors.Is(err, domain.ErrAuth)
}
