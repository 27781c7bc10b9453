package cart

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/marcelprats/TFM/internal/handlers"
	"github.com/marcelprats/TFM/internal/mykafka"
	"github.com/marcelprats/TFM/internal/owner"
	cartsvc "github.com/marcelprats/TFM/internal/service/cart"
	"github.com/marcelprats/TFM/internal/service/checkout"
)

type CartHandler struct {
	Svc       *cartsvc.Service
	Engine    *checkout.Engine
	Producer  *mykafka.Producer
	JWTSecret []byte
	Resolver  *owner.Resolver
}

// GetCart returns the owner's cart snapshot, creating the cart lazily.
func (h *CartHandler) GetCart(c echo.Context) error {
	ow, err := handlers.OwnerFromContext(c, h.JWTSecret, h.Resolver)
	if err != nil {
		return err
	}

	crt, err := h.Svc.View(c.Request().Context(), ow)
	if err != nil {
		return cartError(err)
	}
	return c.JSON(http.StatusOK, cartJSON(crt))
}

func (h *CartHandler) AddItem(c echo.Context) error {
	ow, err := handlers.OwnerFromContext(c, h.JWTSecret, h.Resolver)
	if err != nil {
		return err
	}

	var req struct {
		ProductID uint  `json:"product_id"`
		Quantity  uint  `json:"quantity"`
		Selected  *bool `json:"selected"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Quantity < 1 {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "quantity must be at least 1")
	}
	selected := true
	if req.Selected != nil {
		selected = *req.Selected
	}

	crt, err := h.Svc.AddItem(c.Request().Context(), ow, req.ProductID, req.Quantity, selected)
	if err != nil {
		return cartError(err)
	}

	h.publish(c, ow, map[string]any{
		"type":      "cart_item_added",
		"ownerID":   ow.ID,
		"ownerKind": string(ow.Kind),
		"productID": req.ProductID,
		"quantity":  req.Quantity,
	})
	return c.JSON(http.StatusCreated, cartJSON(crt))
}

func (h *CartHandler) UpdateItem(c echo.Context) error {
	ow, err := handlers.OwnerFromContext(c, h.JWTSecret, h.Resolver)
	if err != nil {
		return err
	}
	itemID, err := strconv.Atoi(c.Param("itemId"))
	if err != nil || itemID <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid item id")
	}

	var req struct {
		Quantity uint  `json:"quantity"`
		Selected *bool `json:"selected"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Quantity < 1 {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "quantity must be at least 1")
	}

	crt, err := h.Svc.UpdateItem(c.Request().Context(), ow, uint(itemID), req.Quantity, req.Selected)
	if err != nil {
		return cartError(err)
	}

	h.publish(c, ow, map[string]any{
		"type":      "cart_item_updated",
		"ownerID":   ow.ID,
		"ownerKind": string(ow.Kind),
		"itemID":    itemID,
		"quantity":  req.Quantity,
	})
	return c.JSON(http.StatusOK, cartJSON(crt))
}

func (h *CartHandler) RemoveItem(c echo.Context) error {
	ow, err := handlers.OwnerFromContext(c, h.JWTSecret, h.Resolver)
	if err != nil {
		return err
	}
	itemID, err := strconv.Atoi(c.Param("itemId"))
	if err != nil || itemID <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid item id")
	}

	crt, err := h.Svc.RemoveItem(c.Request().Context(), ow, uint(itemID))
	if err != nil {
		return cartError(err)
	}

	h.publish(c, ow, map[string]any{
		"type":      "cart_item_removed",
		"ownerID":   ow.ID,
		"ownerKind": string(ow.Kind),
		"itemID":    itemID,
	})
	return c.JSON(http.StatusOK, cartJSON(crt))
}

func (h *CartHandler) ClearCart(c echo.Context) error {
	ow, err := handlers.OwnerFromContext(c, h.JWTSecret, h.Resolver)
	if err != nil {
		return err
	}

	crt, err := h.Svc.Clear(c.Request().Context(), ow)
	if err != nil {
		return cartError(err)
	}

	h.publish(c, ow, map[string]any{
		"type":      "cart_cleared",
		"ownerID":   ow.ID,
		"ownerKind": string(ow.Kind),
	})
	return c.JSON(http.StatusOK, echo.Map{"message": "cart cleared", "cart": cartJSON(crt)})
}

// CheckStock dry-runs checkout's stock validation so the caller can
// resolve conflicts before committing.
func (h *CartHandler) CheckStock(c echo.Context) error {
	ow, err := handlers.OwnerFromContext(c, h.JWTSecret, h.Resolver)
	if err != nil {
		return err
	}

	shortfalls, err := h.Svc.CheckStock(c.Request().Context(), ow)
	if err != nil {
		return cartError(err)
	}
	if len(shortfalls) > 0 {
		return c.JSON(http.StatusConflict, echo.Map{
			"message":    "some products no longer have enough stock",
			"outOfStock": shortfalls,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

func (h *CartHandler) Checkout(c echo.Context) error {
	ow, err := handlers.OwnerFromContext(c, h.JWTSecret, h.Resolver)
	if err != nil {
		return err
	}

	res, err := h.Engine.Checkout(c.Request().Context(), ow)
	if err != nil {
		var insufficient *checkout.InsufficientStockError
		switch {
		case errors.Is(err, checkout.ErrCartNotFound), errors.Is(err, checkout.ErrEmptySelection):
			return echo.NewHTTPError(http.StatusBadRequest, "no items selected for checkout")
		case errors.As(err, &insufficient):
			return c.JSON(http.StatusConflict, echo.Map{
				"message":    "insufficient stock",
				"outOfStock": insufficient.Shortfalls,
			})
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}

	h.publish(c, ow, map[string]any{
		"type":            "checkout_completed",
		"ownerID":         ow.ID,
		"ownerKind":       string(ow.Kind),
		"baseOrderNumber": res.BaseOrderNumber,
		"orderIDs":        res.OrderIDs,
	})
	return c.JSON(http.StatusOK, echo.Map{
		"message":         "checkout completed",
		"baseOrderNumber": res.BaseOrderNumber,
		"orderIds":        res.OrderIDs,
		"orders":          res.Orders,
	})
}
