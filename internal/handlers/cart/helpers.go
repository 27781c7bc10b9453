package cart

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/marcelprats/TFM/internal/models"
	"github.com/marcelprats/TFM/internal/owner"
	cartsvc "github.com/marcelprats/TFM/internal/service/cart"
)

func (h *CartHandler) publish(c echo.Context, ow owner.Owner, event map[string]any) {
	if h.Producer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "cart_events", ow.String(), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

// cartError translates cart store failures into the HTTP taxonomy.
// Item-level stock rejections are validation errors (422); only the
// checkout-path shortfalls use 409.
func cartError(err error) error {
	var exceeded *cartsvc.StockExceededError
	switch {
	case errors.As(err, &exceeded):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, echo.Map{
			"message":       fmt.Sprintf("only %d units available", exceeded.Available),
			"productId":     exceeded.ProductID,
			"available":     exceeded.Available,
			"alreadyInCart": exceeded.AlreadyInCart,
		})
	case errors.Is(err, cartsvc.ErrProductNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "product not found")
	case errors.Is(err, cartsvc.ErrItemNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "cart item not found")
	case errors.Is(err, cartsvc.ErrNotOwner):
		return echo.NewHTTPError(http.StatusForbidden, "cart item belongs to another owner")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

// cartJSON renders the cart snapshot the frontend consumes.
func cartJSON(crt *models.Cart) echo.Map {
	items := make([]echo.Map, 0, len(crt.CartItems))
	for _, it := range crt.CartItems {
		var product echo.Map
		if it.Product != nil {
			var botiga echo.Map
			if it.Product.Botiga != nil {
				botiga = echo.Map{
					"id":  it.Product.Botiga.ID,
					"nom": it.Product.Botiga.Nom,
				}
			}
			product = echo.Map{
				"id":     it.Product.ID,
				"nom":    it.Product.Nom,
				"preu":   it.Product.Preu,
				"stock":  it.Product.Stock,
				"botiga": botiga,
			}
		}
		items = append(items, echo.Map{
			"id":             it.ID,
			"product_id":     it.ProductID,
			"quantity":       it.Quantity,
			"reserved_price": it.ReservedPrice,
			"selected":       it.Selected,
			"product":        product,
		})
	}
	return echo.Map{
		"id":          crt.ID,
		"total_price": crt.TotalPrice,
		"cart_items":  items,
	}
}
