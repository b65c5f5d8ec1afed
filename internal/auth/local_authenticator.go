package auth

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// LocalAuthenticator validates HS256 tokens signed with a shared key.
// Meant for single-tenant and on-premises deployments without an identity
// provider.
type LocalAuthenticator struct {
	signingKey []byte
}

func NewLocalAuthenticator(signingKey []byte) (*LocalAuthenticator, error) {
	if len(signingKey) == 0 {
		return nil, errors.New("local authentication requires a signing key")
	}
	return &LocalAuthenticator{signingKey: signingKey}, nil
}

func (l *LocalAuthenticator) Authenticate(token string) (User, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
	t, err := parser.Parse(token, func(t *jwt.Token) (any, error) {
		return l.signingKey, nil
	})
	if err != nil {
		return User{}, fmt.Errorf("failed to authenticate token: %w", err)
	}

	return userFromToken(t)
}

func (l *LocalAuthenticator) Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accessToken, ok := bearerToken(r)
		if !ok {
			http.Error(w, "No token provided", http.StatusUnauthorized)
			return
		}

		user, err := l.Authenticate(accessToken)
		if err != nil {
			zap.S().Named("auth").Warnw("authentication failed", "error", err)
			http.Error(w, "authentication failed", http.StatusUnauthorized)
			return
		}

		ctx := NewUserContext(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
