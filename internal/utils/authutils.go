package utils

import (
	"errors"
	"fmt"
	"strings"

	"notekeep/internal/domain/entity"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// ParseSessionToken validates the bearer token minted by the auth layer and
// extracts the session it carries. Tokens are HMAC-signed; anything else is
// rejected outright.
func ParseSessionToken(secret []byte, tokenString string) (*entity.Session, error) {
	clean := sanitizeToken(tokenString)
	token, err := jwt.Parse(clean, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	if !token.Valid {
		return nil, errors.New("token is not valid")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid claims format")
	}

	userID := getInt64(claims, "uid")
	if userID <= 0 {
		return nil, errors.New("token carries no user id")
	}

	return &entity.Session{
		UserID:  userID,
		IsAdmin: getBool(claims, "admin"),
	}, nil
}

func ParseSessionTokenCtx(ctx echo.Context, secret []byte) (*entity.Session, error) {
	token := ctx.Request().Header.Get(echo.HeaderAuthorization)
	return ParseSessionToken(secret, token)
}

func sanitizeToken(token string) string {
	return strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
}

func getBool(claims jwt.MapClaims, key string) bool {
	val, ok := claims[key].(bool)
	return ok && val
}

func getInt64(claims jwt.MapClaims, key string) int64 {
	val, ok := claims[key]
	if !ok {
		return 0
	}
	if f, ok := val.(float64); ok {
		return int64(f)
	}
	if i, ok := val.(int64); ok {
		return i
	}
	return 0
}
