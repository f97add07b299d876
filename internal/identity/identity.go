package identity

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/NaveedAfraz/swapsphere-sync/pkg/apperrors"
)

// UserIDFromToken extracts the current user id from the bearer credential.
// The token is parsed unverified: signature validation is the server's job,
// the engine only needs to know who it is acting as. Accepts either a
// user_id claim or the standard sub.
func UserIDFromToken(token string) (string, error) {
	if token == "" {
		return "", apperrors.Auth("empty bearer token")
	}
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return "", apperrors.Auth("malformed bearer token: " + err.Error())
	}
	if id, ok := claims["user_id"].(string); ok && id != "" {
		return id, nil
	}
	if sub, ok := claims["sub"].(string); ok && sub != "" {
		return sub, nil
	}
	return "", apperrors.Auth("bearer token carries no user id")
}
