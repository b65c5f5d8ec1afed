package auth

import (
	"net/http"

	"github.com/AgriAutomate/rocky-web-studio-sub002/internal/config"
	"go.uber.org/zap"
)

type Authenticator interface {
	Authenticator(next http.Handler) http.Handler
}

const (
	SsoAuthentication   string = "sso"
	LocalAuthentication string = "local"
	NoneAuthentication  string = "none"
)

func NewAuthenticator(authConfig config.Auth) (Authenticator, error) {
	zap.S().Named("auth").Infof("authentication: '%s'", authConfig.AuthenticationType)

	switch authConfig.AuthenticationType {
	case SsoAuthentication:
		return NewSsoAuthenticator(authConfig.JwkCertURL)
	case LocalAuthentication:
		return NewLocalAuthenticator([]byte(authConfig.LocalSigningKey))
	default:
		return NewNoneAuthenticator()
	}
}
