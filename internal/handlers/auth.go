package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/marcelprats/TFM/internal/hash"
	"github.com/marcelprats/TFM/internal/models"
	"github.com/marcelprats/TFM/internal/mykafka"
	"github.com/marcelprats/TFM/internal/owner"
)

const (
	accessTokenTTL  = 15 * time.Minute
	refreshTokenTTL = 7 * 24 * time.Hour
)

type AuthHandler struct {
	DB            *gorm.DB
	JWTSecret     []byte
	RefreshSecret []byte
	Producer      *mykafka.Producer
	Resolver      *owner.Resolver
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *registerRequest) validate() error {
	if r.Name == "" || r.Email == "" {
		return fmt.Errorf("name and email are required")
	}
	if len(r.Password) < 6 {
		return fmt.Errorf("password must be at least 6 characters")
	}
	return nil
}

func (h *AuthHandler) publish(c echo.Context, topic string, event map[string]any) {
	if h.Producer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, topic, fmt.Sprint(event["ownerID"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

// Register creates a buyer account.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := req.validate(); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	var existing models.User
	if err := h.DB.Where("email = ?", req.Email).First(&existing).Error; err == nil {
		return echo.NewHTTPError(http.StatusConflict, "user already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	user := models.User{Name: req.Name, Email: req.Email, PasswordHash: pwHash}
	if err := h.DB.Create(&user).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.publish(c, "user_events", map[string]any{
		"type":    "user_registered",
		"ownerID": user.ID,
		"kind":    string(owner.KindUser),
		"email":   user.Email,
	})
	return c.JSON(http.StatusCreated, user)
}

// RegisterVendor creates a vendor account.
func (h *AuthHandler) RegisterVendor(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := req.validate(); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	var existing models.Vendor
	if err := h.DB.Where("email = ?", req.Email).First(&existing).Error; err == nil {
		return echo.NewHTTPError(http.StatusConflict, "vendor already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	vendor := models.Vendor{Name: req.Name, Email: req.Email, PasswordHash: pwHash}
	if err := h.DB.Create(&vendor).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.publish(c, "user_events", map[string]any{
		"type":    "vendor_registered",
		"ownerID": vendor.ID,
		"kind":    string(owner.KindVendor),
		"email":   vendor.Email,
	})
	return c.JSON(http.StatusCreated, vendor)
}

// Login authenticates either a user or a vendor by email and issues the
// cookie pair. The resolved kind travels in the token's role claim.
func (h *AuthHandler) Login(c echo.Context) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var (
		ow     owner.Owner
		pwHash string
		name   string
	)
	var user models.User
	err := h.DB.Where("email = ?", req.Email).First(&user).Error
	switch {
	case err == nil:
		ow = owner.Owner{Kind: owner.KindUser, ID: user.ID}
		pwHash, name = user.PasswordHash, user.Name
	case errors.Is(err, gorm.ErrRecordNotFound):
		var vendor models.Vendor
		if err := h.DB.Where("email = ?", req.Email).First(&vendor).Error; err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
		}
		ow = owner.Owner{Kind: owner.KindVendor, ID: vendor.ID}
		pwHash, name = vendor.PasswordHash, vendor.Name
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if !hash.CheckPassword(pwHash, req.Password) {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}

	accessExp := time.Now().Add(accessTokenTTL)
	accessToken, err := SignAccessToken(ow, h.JWTSecret, accessExp)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	refreshExp := time.Now().Add(refreshTokenTTL)
	refreshToken, err := SignRefreshToken(ow, h.RefreshSecret, refreshExp)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	refreshModel := models.RefreshToken{
		Token:     refreshToken,
		OwnerID:   ow.ID,
		OwnerKind: string(ow.Kind),
		ExpiresAt: refreshExp,
	}
	if err := h.DB.Create(&refreshModel).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	c.SetCookie(CreateCookie("accessToken", accessToken, "/", accessExp))
	c.SetCookie(CreateCookie("refreshToken", refreshToken, "/", refreshExp))

	h.publish(c, "user_events", map[string]any{
		"type":    "logged_in",
		"ownerID": ow.ID,
		"kind":    string(ow.Kind),
	})

	return c.JSON(http.StatusOK, echo.Map{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"role":          string(ow.Kind),
		"name":          name,
	})
}

func (h *AuthHandler) LogOut(c echo.Context) error {
	refreshCookie, err := c.Cookie("refreshToken")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "refresh token missing")
	}

	if err := h.DB.Model(&models.RefreshToken{}).
		Where("token = ?", refreshCookie.Value).
		Update("revoked", true).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	expired := time.Now().Add(-1 * time.Hour)
	c.SetCookie(CreateCookie("accessToken", "", "/", expired))
	c.SetCookie(CreateCookie("refreshToken", "", "/", expired))
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

// Me returns the authenticated principal.
func (h *AuthHandler) Me(c echo.Context) error {
	ow, err := OwnerFromContext(c, h.JWTSecret, h.Resolver)
	if err != nil {
		return err
	}

	if ow.Kind == owner.KindVendor {
		var vendor models.Vendor
		if err := h.DB.First(&vendor, ow.ID).Error; err != nil {
			return echo.NewHTTPError(http.StatusNotFound, "vendor not found")
		}
		return c.JSON(http.StatusOK, echo.Map{"role": string(ow.Kind), "vendor": vendor})
	}
	var user models.User
	if err := h.DB.First(&user, ow.ID).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}
	return c.JSON(http.StatusOK, echo.Map{"role": string(ow.Kind), "user": user})
}
