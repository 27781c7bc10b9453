package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/marcelprats/TFM/internal/owner"
)

// OwnerFromContext authenticates the request from the access cookie and
// resolves the principal through the closed discriminator set. A token
// whose role is outside that set is a configuration error, not a 401.
func OwnerFromContext(c echo.Context, jwtSecret []byte, resolver *owner.Resolver) (owner.Owner, error) {
	cookie, err := c.Cookie("accessToken")
	if err != nil {
		return owner.Owner{}, echo.NewHTTPError(http.StatusUnauthorized, "missing auth cookie")
	}
	tokenString := cookie.Value
	if tokenString == "" {
		return owner.Owner{}, echo.NewHTTPError(http.StatusUnauthorized, "empty token")
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return jwtSecret, nil
	})
	if err != nil {
		return owner.Owner{}, echo.NewHTTPError(http.StatusUnauthorized, "invalid token: "+err.Error())
	}
	if !token.Valid {
		return owner.Owner{}, echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return owner.Owner{}, echo.NewHTTPError(http.StatusUnauthorized, "invalid token claims")
	}
	subRaw, ok := claims["sub"].(float64)
	if !ok {
		return owner.Owner{}, echo.NewHTTPError(http.StatusUnauthorized, "invalid subject claim")
	}
	role, ok := claims["role"].(string)
	if !ok {
		return owner.Owner{}, echo.NewHTTPError(http.StatusUnauthorized, "invalid role claim")
	}

	ow, err := resolver.Resolve(uint(subRaw), role)
	if err != nil {
		return owner.Owner{}, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return ow, nil
}

// SignAccessToken issues the HS256 token the cookie auth relies on.
func SignAccessToken(ow owner.Owner, secret []byte, exp time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub":  ow.ID,
		"role": string(ow.Kind),
		"exp":  exp.Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func SignRefreshToken(ow owner.Owner, secret []byte, exp time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub":  ow.ID,
		"role": string(ow.Kind),
		"exp":  exp.Unix(),
		"typ":  "refresh",
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func CreateCookie(name, value, path string, expTime time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Expires:  expTime,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}
