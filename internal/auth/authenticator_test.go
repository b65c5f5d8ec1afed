package auth_test

import (
	"crypto/rand"
	"crypto/rsa"
	"time"

	"github.com/AgriAutomate/rocky-web-studio-sub002/internal/auth"
	"github.com/golang-jwt/jwt/v5"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("sso authentication", func() {
	It("successfully validates the token", func() {
		sToken, keyFn := generateValidToken()
		authenticator, err := auth.NewSsoAuthenticatorWithKeyFn(keyFn)
		Expect(err).To(BeNil())

		user, err := authenticator.Authenticate(sToken)
		Expect(err).To(BeNil())
		Expect(user.Username).To(Equal("batman"))
		Expect(user.Organization).To(Equal("GothamCity"))
	})

	It("fails to authenticate -- missing org claim", func() {
		sToken, keyFn := generateCustomToken("batman", "")
		authenticator, err := auth.NewSsoAuthenticatorWithKeyFn(keyFn)
		Expect(err).To(BeNil())

		_, err = authenticator.Authenticate(sToken)
		Expect(err).ToNot(BeNil())
	})

	It("fails to authenticate -- garbage token", func() {
		_, keyFn := generateValidToken()
		authenticator, err := auth.NewSsoAuthenticatorWithKeyFn(keyFn)
		Expect(err).To(BeNil())

		_, err = authenticator.Authenticate("not-a-token")
		Expect(err).ToNot(BeNil())
	})
})

var _ = Describe("local authentication", func() {
	It("successfully validates a token signed with the shared key", func() {
		key := []byte("local-test-key")
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"preferred_username": "robin",
			"org_id":             "GothamCity",
		})
		sToken, err := token.SignedString(key)
		Expect(err).To(BeNil())

		authenticator, err := auth.NewLocalAuthenticator(key)
		Expect(err).To(BeNil())

		user, err := authenticator.Authenticate(sToken)
		Expect(err).To(BeNil())
		Expect(user.Username).To(Equal("robin"))
		Expect(user.Organization).To(Equal("GothamCity"))
	})

	It("rejects a token signed with another key", func() {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"preferred_username": "robin",
			"org_id":             "GothamCity",
		})
		sToken, err := token.SignedString([]byte("another-key"))
		Expect(err).To(BeNil())

		authenticator, err := auth.NewLocalAuthenticator([]byte("local-test-key"))
		Expect(err).To(BeNil())

		_, err = authenticator.Authenticate(sToken)
		Expect(err).ToNot(BeNil())
	})

	It("refuses an empty signing key", func() {
		_, err := auth.NewLocalAuthenticator(nil)
		Expect(err).ToNot(BeNil())
	})
})

func generateValidToken() (string, func(t *jwt.Token) (any, error)) {
	return generateCustomToken("batman", "GothamCity")
}

func generateCustomToken(username, orgID string) (string, func(t *jwt.Token) (any, error)) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	Expect(err).To(BeNil())

	claims := jwt.MapClaims{
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	if username != "" {
		claims["preferred_username"] = username
	}
	if orgID != "" {
		claims["org_id"] = orgID
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	sToken, err := token.SignedString(privateKey)
	Expect(err).To(BeNil())

	return sToken, func(t *jwt.Token) (any, error) {
		return &privateKey.PublicKey, nil
	}
}
