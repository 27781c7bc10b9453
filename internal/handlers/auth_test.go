package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/marcelprats/TFM/internal/config"
	"github.com/marcelprats/TFM/internal/models"
	"github.com/marcelprats/TFM/internal/owner"
)

func newAuthEnv(t *testing.T) (*echo.Echo, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, config.Migrate(db))

	h := &AuthHandler{
		DB:            db,
		JWTSecret:     []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
		Resolver:      owner.DefaultResolver(),
	}
	e := echo.New()
	e.POST("/register", h.Register)
	e.POST("/register-vendor", h.RegisterVendor)
	e.POST("/login", h.Login)
	e.POST("/logout", h.LogOut)
	e.GET("/me", h.Me)
	return e, db
}

func postJSON(t *testing.T, e *echo.Echo, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRegisterAndLogin(t *testing.T) {
	e, db := newAuthEnv(t)

	rec := postJSON(t, e, "/register", `{"name":"Marcel","email":"m@example.com","password":"secret1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	// Duplicate email is a conflict.
	rec = postJSON(t, e, "/register", `{"name":"Marcel","email":"m@example.com","password":"secret1"}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = postJSON(t, e, "/login", `{"email":"m@example.com","password":"secret1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "user", body["role"])
	require.Equal(t, "Marcel", body["name"])
	require.NotEmpty(t, body["access_token"])

	var cookieNames []string
	for _, ck := range rec.Result().Cookies() {
		cookieNames = append(cookieNames, ck.Name)
	}
	require.Contains(t, cookieNames, "accessToken")
	require.Contains(t, cookieNames, "refreshToken")

	var tokens int64
	require.NoError(t, db.Model(&models.RefreshToken{}).Count(&tokens).Error)
	require.EqualValues(t, 1, tokens)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	e, _ := newAuthEnv(t)

	rec := postJSON(t, e, "/register", `{"name":"Marcel","email":"m@example.com","password":"secret1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = postJSON(t, e, "/login", `{"email":"m@example.com","password":"wrong"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postJSON(t, e, "/login", `{"email":"absent@example.com","password":"whatever"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterValidation(t *testing.T) {
	e, _ := newAuthEnv(t)

	rec := postJSON(t, e, "/register", `{"name":"","email":"m@example.com","password":"secret1"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = postJSON(t, e, "/register", `{"name":"Marcel","email":"m@example.com","password":"short"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestVendorLoginCarriesVendorRole(t *testing.T) {
	e, _ := newAuthEnv(t)

	rec := postJSON(t, e, "/register-vendor", `{"name":"Botiguer","email":"v@example.com","password":"secret1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = postJSON(t, e, "/login", `{"email":"v@example.com","password":"secret1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "vendor", body["role"])
}

func TestMe(t *testing.T) {
	e, _ := newAuthEnv(t)

	rec := postJSON(t, e, "/register", `{"name":"Marcel","email":"m@example.com","password":"secret1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = postJSON(t, e, "/login", `{"email":"m@example.com","password":"secret1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var access *http.Cookie
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == "accessToken" {
			access = ck
		}
	}
	require.NotNil(t, access)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(access)
	meRec := httptest.NewRecorder()
	e.ServeHTTP(meRec, req)
	require.Equal(t, http.StatusOK, meRec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(meRec.Body.Bytes(), &body))
	require.Equal(t, "user", body["role"])
	user := body["user"].(map[string]any)
	require.Equal(t, "m@example.com", user["email"])

}

func TestLogOutRevokesRefreshToken(t *testing.T) {
	e, db := newAuthEnv(t)

	rec := postJSON(t, e, "/register", `{"name":"Marcel","email":"m@example.com","password":"secret1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = postJSON(t, e, "/login", `{"email":"m@example.com","password":"secret1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var refresh *http.Cookie
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == "refreshToken" {
			refresh = ck
		}
	}
	require.NotNil(t, refresh)

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(refresh)
	outRec := httptest.NewRecorder()
	e.ServeHTTP(outRec, req)
	require.Equal(t, http.StatusOK, outRec.Code)

	var stored models.RefreshToken
	require.NoError(t, db.Where("token = ?", refresh.Value).First(&stored).Error)
	require.True(t, stored.Revoked)
}
