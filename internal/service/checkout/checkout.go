package checkout

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"

	"github.com/marcelprats/TFM/internal/models"
	"github.com/marcelprats/TFM/internal/owner"
	"github.com/marcelprats/TFM/internal/service/cart"
	"github.com/marcelprats/TFM/internal/service/stock"
)

const depositRate = 0.10

var (
	ErrCartNotFound   = errors.New("cart not found")
	ErrEmptySelection = errors.New("no items selected for checkout")
)

// InsufficientStockError aborts a checkout whose selected lines can no
// longer be covered by live stock. It carries every shortfall so the
// caller can resolve all conflicts in one pass.
type InsufficientStockError struct {
	Shortfalls []cart.StockShortfall
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %d product(s)", len(e.Shortfalls))
}

// Result reports what one checkout call created.
type Result struct {
	BaseOrderNumber string
	OrderIDs        []uint
	Orders          []models.Order
}

// Engine turns the selected lines of a cart into per-shop reserves and
// orders. The whole operation runs in a single transaction: stock
// re-validation, numbering, reserve/order creation, stock decrement and
// cart pruning either all happen or none do.
type Engine struct {
	DB *gorm.DB
}

func (e *Engine) Checkout(ctx context.Context, ow owner.Owner) (*Result, error) {
	res := &Result{}
	err := e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var crt models.Cart
		err := tx.Where("owner_id = ? AND owner_kind = ?", ow.ID, string(ow.Kind)).First(&crt).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCartNotFound
		}
		if err != nil {
			return err
		}

		var items []models.CartItem
		if err := tx.Preload("Product").Preload("Product.Botiga").
			Where("cart_id = ? AND selected = ?", crt.ID, true).
			Order("id ASC").
			Find(&items).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return ErrEmptySelection
		}

		// Re-validate every line against live stock under row locks.
		// Add-time checks are only advisory, stock may have moved since.
		ids := make([]uint, 0, len(items))
		for _, it := range items {
			ids = append(ids, it.ProductID)
		}
		locked, err := stock.LockProducts(tx, ids)
		if err != nil {
			return err
		}

		var shortfalls []cart.StockShortfall
		for _, it := range items {
			p, ok := locked[it.ProductID]
			if ok && int(it.Quantity) <= p.Stock {
				continue
			}
			name := ""
			if it.Product != nil {
				name = it.Product.Nom
			}
			shortfalls = append(shortfalls, cart.StockShortfall{
				ProductID:   it.ProductID,
				ProductName: name,
				Requested:   it.Quantity,
				Available:   p.Stock,
			})
		}
		if len(shortfalls) > 0 {
			return &InsufficientStockError{Shortfalls: shortfalls}
		}

		groups := groupByBotiga(items)

		base, err := nextBaseNumber(tx)
		if err != nil {
			return err
		}
		res.BaseOrderNumber = FormatOrderNumber(base)

		now := time.Now()
		for i, g := range groups {
			var total float64
			for _, it := range g.items {
				total += float64(it.Quantity) * it.ReservedPrice
			}
			deposit := math.Round(total*depositRate*100) / 100

			reserve := models.Reserve{
				BuyerID:       ow.ID,
				BuyerKind:     string(ow.Kind),
				BotigaID:      g.botigaID,
				TotalReserved: total,
				DepositAmount: deposit,
				Status:        models.ReserveStatusPending,
			}
			if err := tx.Create(&reserve).Error; err != nil {
				return err
			}

			for _, it := range g.items {
				ri := models.ReserveItem{
					ReserveID:     reserve.ID,
					ProductID:     it.ProductID,
					Quantity:      it.Quantity,
					ReservedPrice: it.ReservedPrice,
				}
				if err := tx.Create(&ri).Error; err != nil {
					return err
				}
				if err := stock.Decrement(tx, locked[it.ProductID], it.Quantity); err != nil {
					return err
				}
			}

			number := res.BaseOrderNumber
			if len(groups) > 1 {
				number = fmt.Sprintf("%s-%d", res.BaseOrderNumber, i+1)
			}
			order := models.Order{
				ReserveID:     reserve.ID,
				OrderNumber:   number,
				TotalAmount:   total,
				PaymentMethod: "online",
				Status:        models.OrderStatusPending,
				BuyerID:       ow.ID,
				BuyerKind:     string(ow.Kind),
				PaymentDate:   &now,
			}
			if err := tx.Create(&order).Error; err != nil {
				return err
			}
			res.OrderIDs = append(res.OrderIDs, order.ID)
			res.Orders = append(res.Orders, order)
		}

		// Prune the checked-out lines and re-prime the rest of the cart
		// for the next pass.
		if err := tx.Where("cart_id = ? AND selected = ?", crt.ID, true).
			Delete(&models.CartItem{}).Error; err != nil {
			return err
		}
		if err := cart.RecomputeTotal(tx, &crt); err != nil {
			return err
		}
		return tx.Model(&models.CartItem{}).Where("cart_id = ?", crt.ID).
			Update("selected", true).Error
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

type botigaGroup struct {
	botigaID *uint
	items    []models.CartItem
}

// groupByBotiga partitions lines by shop in first-seen order over the
// lines' id order; products without a shop share one nil-keyed bucket.
func groupByBotiga(items []models.CartItem) []botigaGroup {
	index := make(map[uint]int)
	var groups []botigaGroup
	for _, it := range items {
		var key uint // 0 is never a real botiga id
		var bid *uint
		if it.Product != nil && it.Product.BotigaID != nil {
			key = *it.Product.BotigaID
			bid = it.Product.BotigaID
		}
		gi, ok := index[key]
		if !ok {
			gi = len(groups)
			index[key] = gi
			groups = append(groups, botigaGroup{botigaID: bid})
		}
		groups[gi].items = append(groups[gi].items, it)
	}
	return groups
}
