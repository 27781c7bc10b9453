package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/marcelprats/TFM/internal/models"
	"github.com/marcelprats/TFM/internal/owner"
)

type BotigaHandler struct {
	DB        *gorm.DB
	JWTSecret []byte
	Resolver  *owner.Resolver
}

func (h *BotigaHandler) GetBotigues(c echo.Context) error {
	var botigues []models.Botiga
	if err := h.DB.Order("id ASC").Find(&botigues).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, botigues)
}

func (h *BotigaHandler) GetBotiga(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var botiga models.Botiga
	if err := h.DB.First(&botiga, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "botiga not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, botiga)
}

type botigaRequest struct {
	Nom        *string `json:"nom"`
	Descripcio *string `json:"descripcio"`
}

func (h *BotigaHandler) CreateBotiga(c echo.Context) error {
	ow, err := OwnerFromContext(c, h.JWTSecret, h.Resolver)
	if err != nil {
		return err
	}
	if ow.Kind != owner.KindVendor {
		return echo.NewHTTPError(http.StatusForbidden, "only vendors can create botigues")
	}

	var req botigaRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Nom == nil || *req.Nom == "" {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "nom is required")
	}

	botiga := models.Botiga{Nom: *req.Nom, VendorID: ow.ID}
	if req.Descripcio != nil {
		botiga.Descripcio = *req.Descripcio
	}
	if err := h.DB.Create(&botiga).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, botiga)
}

func (h *BotigaHandler) UpdateBotiga(c echo.Context) error {
	ow, err := OwnerFromContext(c, h.JWTSecret, h.Resolver)
	if err != nil {
		return err
	}
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var botiga models.Botiga
	if err := h.DB.First(&botiga, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "botiga not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if ow.Kind != owner.KindVendor || botiga.VendorID != ow.ID {
		return echo.NewHTTPError(http.StatusForbidden, "not your botiga")
	}

	var req botigaRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Nom != nil {
		botiga.Nom = *req.Nom
	}
	if req.Descripcio != nil {
		botiga.Descripcio = *req.Descripcio
	}
	if err := h.DB.Save(&botiga).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, botiga)
}

func (h *BotigaHandler) DeleteBotiga(c echo.Context) error {
	ow, err := OwnerFromContext(c, h.JWTSecret, h.Resolver)
	if err != nil {
		return err
	}
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var botiga models.Botiga
	if err := h.DB.First(&botiga, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "botiga not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if ow.Kind != owner.KindVendor || botiga.VendorID != ow.ID {
		return echo.NewHTTPError(http.StatusForbidden, "not your botiga")
	}

	if err := h.DB.Delete(&botiga).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
