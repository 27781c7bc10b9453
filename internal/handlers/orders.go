package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/marcelprats/TFM/internal/models"
	"github.com/marcelprats/TFM/internal/mykafka"
	"github.com/marcelprats/TFM/internal/owner"
	"github.com/marcelprats/TFM/internal/service/orders"
)

type OrderHandler struct {
	Svc       *orders.Service
	Producer  *mykafka.Producer
	JWTSecret []byte
	Resolver  *owner.Resolver
}

func (h *OrderHandler) publish(c echo.Context, event map[string]any) {
	if h.Producer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "order_events", fmt.Sprint(event["orderID"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

func orderError(err error) error {
	var transition *orders.InvalidTransitionError
	switch {
	case errors.Is(err, orders.ErrOrderNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "order not found")
	case errors.Is(err, orders.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, "not allowed")
	case errors.As(err, &transition):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, transition.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

// List returns orders visible to the principal; ?type=buyer (default),
// vendor, or all.
func (h *OrderHandler) List(c echo.Context) error {
	ow, err := OwnerFromContext(c, h.JWTSecret, h.Resolver)
	if err != nil {
		return err
	}

	var out []models.Order
	switch c.QueryParam("type") {
	case "vendor":
		if ow.Kind != owner.KindVendor {
			return echo.NewHTTPError(http.StatusForbidden, "not a vendor")
		}
		out, err = h.Svc.ListForVendor(c.Request().Context(), ow.ID)
	case "all":
		out, err = h.Svc.ListAll(c.Request().Context(), ow)
	default:
		out, err = h.Svc.ListForBuyer(c.Request().Context(), ow)
	}
	if err != nil {
		return orderError(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) Show(c echo.Context) error {
	ow, err := OwnerFromContext(c, h.JWTSecret, h.Resolver)
	if err != nil {
		return err
	}
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	ord, err := h.Svc.Get(c.Request().Context(), ow, uint(id))
	if err != nil {
		return orderError(err)
	}
	return c.JSON(http.StatusOK, ord)
}

func validOrderStatus(s string) bool {
	switch s {
	case models.OrderStatusPending, models.OrderStatusReserved,
		models.OrderStatusCompleted, models.OrderStatusCancelled:
		return true
	}
	return false
}

// Update applies a status transition. confirmed_product_ids is accepted
// for frontend compatibility but carries no server-side meaning.
func (h *OrderHandler) Update(c echo.Context) error {
	ow, err := OwnerFromContext(c, h.JWTSecret, h.Resolver)
	if err != nil {
		return err
	}
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var req struct {
		Status              string  `json:"status"`
		CancellationReason  *string `json:"cancellation_reason"`
		ConfirmedProductIDs []uint  `json:"confirmed_product_ids"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if !validOrderStatus(req.Status) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "invalid status")
	}

	ord, err := h.Svc.UpdateStatus(c.Request().Context(), ow, uint(id), req.Status, req.CancellationReason)
	if err != nil {
		return orderError(err)
	}

	h.publish(c, map[string]any{
		"type":    "order_status_changed",
		"orderID": ord.ID,
		"status":  ord.Status,
		"actor":   ow.String(),
	})
	return c.JSON(http.StatusOK, echo.Map{"message": "status updated", "order": ord})
}

func (h *OrderHandler) Delete(c echo.Context) error {
	ow, err := OwnerFromContext(c, h.JWTSecret, h.Resolver)
	if err != nil {
		return err
	}
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	if err := h.Svc.Delete(c.Request().Context(), ow, uint(id)); err != nil {
		return orderError(err)
	}

	h.publish(c, map[string]any{
		"type":    "order_deleted",
		"orderID": id,
		"actor":   ow.String(),
	})
	return c.JSON(http.StatusOK, echo.Map{"message": "order deleted"})
}

// VendorOrders is the vendor-scoped view joined through shop ownership.
func (h *OrderHandler) VendorOrders(c echo.Context) error {
	ow, err := OwnerFromContext(c, h.JWTSecret, h.Resolver)
	if err != nil {
		return err
	}
	if ow.Kind != owner.KindVendor {
		return echo.NewHTTPError(http.StatusForbidden, "not a vendor")
	}

	out, err := h.Svc.ListForVendor(c.Request().Context(), ow.ID)
	if err != nil {
		return orderError(err)
	}
	return c.JSON(http.StatusOK, out)
}
