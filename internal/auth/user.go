package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
)

type usernameKeyType struct{}

var (
	usernameKey usernameKeyType
)

type User struct {
	Username     string
	Organization string
	Token        *jwt.Token
}

func UserFromContext(ctx context.Context) (User, bool) {
	val := ctx.Value(usernameKey)
	if val == nil {
		return User{}, false
	}
	return val.(User), true
}

// MustHaveUser returns the user stored by the authenticator middleware and
// panics if there is none. Handlers behind the middleware may rely on it.
func MustHaveUser(ctx context.Context) User {
	user, found := UserFromContext(ctx)
	if !found {
		panic("no user found in context")
	}
	return user
}

func NewUserContext(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, usernameKey, u)
}
