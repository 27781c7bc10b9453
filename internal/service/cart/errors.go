package cart

import (
	"errors"
	"fmt"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrItemNotFound    = errors.New("cart item not found")
	ErrNotOwner        = errors.New("cart item does not belong to this owner")
	ErrCartNotFound    = errors.New("cart not found")
)

// StockExceededError is returned by item mutations when the requested
// quantity cannot be satisfied by the product's current stock.
type StockExceededError struct {
	ProductID     uint `json:"product_id"`
	Available     int  `json:"available"`
	AlreadyInCart uint `json:"already_in_cart"`
}

func (e *StockExceededError) Error() string {
	return fmt.Sprintf("product %d: only %d units available (%d already in cart)",
		e.ProductID, e.Available, e.AlreadyInCart)
}

// StockShortfall reports one selected line whose quantity exceeds live
// stock. Used by the dry-run stock check and by checkout failures.
type StockShortfall struct {
	ProductID   uint   `json:"productId"`
	ProductName string `json:"productName"`
	Requested   uint   `json:"requested"`
	Available   int    `json:"available"`
}
