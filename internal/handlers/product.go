package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/marcelprats/TFM/internal/models"
	"github.com/marcelprats/TFM/internal/mykafka"
	"github.com/marcelprats/TFM/internal/owner"
	"github.com/marcelprats/TFM/internal/service/search"
	"github.com/marcelprats/TFM/internal/util"
)

type ProductHandler struct {
	DB        *gorm.DB
	Producer  *mykafka.Producer
	ES        *elasticsearch.Client
	ESIndex   string
	JWTSecret []byte
	Resolver  *owner.Resolver
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}

func (h *ProductHandler) publish(c echo.Context, event map[string]any) {
	if h.Producer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "product_events", fmt.Sprint(event["productID"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

func (h *ProductHandler) index(c echo.Context, p *models.Producte) {
	if h.ES == nil {
		return
	}
	if err := search.IndexProduct(c.Request().Context(), h.ES, h.ESIndex, p); err != nil {
		c.Logger().Errorf("ES index error: %v", err)
	}
}

func (h *ProductHandler) GetProduct(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var product models.Producte
	if err := h.DB.Preload("Botiga").First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) GetProducts(c echo.Context) error {
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), 0)
	offset, limit := util.Calculate(page, size)

	var total int64
	if err := h.DB.Model(&models.Producte{}).Count(&total).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	var items []models.Producte
	if err := h.DB.Preload("Botiga").Order("id ASC").
		Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, echo.Map{"total": total, "products": items})
}

type productRequest struct {
	Nom        *string  `json:"nom"`
	Descripcio *string  `json:"descripcio"`
	Preu       *float64 `json:"preu"`
	Stock      *int     `json:"stock"`
	BotigaID   *uint    `json:"botiga_id"`
}

func (h *ProductHandler) CreateProduct(c echo.Context) error {
	ow, err := OwnerFromContext(c, h.JWTSecret, h.Resolver)
	if err != nil {
		return err
	}
	if ow.Kind != owner.KindVendor {
		return echo.NewHTTPError(http.StatusForbidden, "only vendors can create products")
	}

	var req productRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Nom == nil || *req.Nom == "" || req.Preu == nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "nom and preu are required")
	}
	if req.Preu != nil && *req.Preu < 0 {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "preu must be non-negative")
	}
	if req.Stock != nil && *req.Stock < 0 {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "stock must be non-negative")
	}
	if req.BotigaID != nil {
		var botiga models.Botiga
		if err := h.DB.First(&botiga, *req.BotigaID).Error; err != nil {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, "botiga does not exist")
		}
		if botiga.VendorID != ow.ID {
			return echo.NewHTTPError(http.StatusForbidden, "botiga belongs to another vendor")
		}
	}

	product := models.Producte{
		Nom:      *req.Nom,
		Preu:     *req.Preu,
		VendorID: ow.ID,
		BotigaID: req.BotigaID,
	}
	if req.Descripcio != nil {
		product.Descripcio = *req.Descripcio
	}
	if req.Stock != nil {
		product.Stock = *req.Stock
	}
	if err := h.DB.Create(&product).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.index(c, &product)
	h.publish(c, map[string]any{
		"type":      "product_created",
		"productID": product.ID,
		"vendorID":  ow.ID,
	})
	return c.JSON(http.StatusCreated, product)
}

func (h *ProductHandler) UpdateProduct(c echo.Context) error {
	ow, err := OwnerFromContext(c, h.JWTSecret, h.Resolver)
	if err != nil {
		return err
	}
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var product models.Producte
	if err := h.DB.First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if ow.Kind != owner.KindVendor || product.VendorID != ow.ID {
		return echo.NewHTTPError(http.StatusForbidden, "not your product")
	}

	var req productRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Nom != nil {
		product.Nom = *req.Nom
	}
	if req.Descripcio != nil {
		product.Descripcio = *req.Descripcio
	}
	if req.Preu != nil {
		if *req.Preu < 0 {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, "preu must be non-negative")
		}
		product.Preu = *req.Preu
	}
	if req.Stock != nil {
		if *req.Stock < 0 {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, "stock must be non-negative")
		}
		product.Stock = *req.Stock
	}
	if req.BotigaID != nil {
		var botiga models.Botiga
		if err := h.DB.First(&botiga, *req.BotigaID).Error; err != nil {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, "botiga does not exist")
		}
		if botiga.VendorID != ow.ID {
			return echo.NewHTTPError(http.StatusForbidden, "botiga belongs to another vendor")
		}
		product.BotigaID = req.BotigaID
	}

	if err := h.DB.Save(&product).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.index(c, &product)
	h.publish(c, map[string]any{
		"type":      "product_updated",
		"productID": product.ID,
		"vendorID":  ow.ID,
	})
	return c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) DeleteProduct(c echo.Context) error {
	ow, err := OwnerFromContext(c, h.JWTSecret, h.Resolver)
	if err != nil {
		return err
	}
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var product models.Producte
	if err := h.DB.First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if ow.Kind != owner.KindVendor || product.VendorID != ow.ID {
		return echo.NewHTTPError(http.StatusForbidden, "not your product")
	}

	if err := h.DB.Delete(&product).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if h.ES != nil {
		if err := search.DeleteProduct(c.Request().Context(), h.ES, h.ESIndex, product.ID); err != nil {
			c.Logger().Errorf("ES delete error: %v", err)
		}
	}
	h.publish(c, map[string]any{
		"type":      "product_deleted",
		"productID": product.ID,
		"vendorID":  ow.ID,
	})
	return c.NoContent(http.StatusNoContent)
}
