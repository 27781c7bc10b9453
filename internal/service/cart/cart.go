package cart

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/marcelprats/TFM/internal/models"
	"github.com/marcelprats/TFM/internal/owner"
	"github.com/marcelprats/TFM/internal/service/stock"
)

// Service owns the mapping from an owner to its single active cart and
// enforces per-line stock ceilings on every mutation. Every operation
// takes the principal explicitly.
type Service struct {
	DB *gorm.DB
}

// View returns the owner's cart with its lines and products loaded,
// creating an empty cart on first access.
func (s *Service) View(ctx context.Context, ow owner.Owner) (*models.Cart, error) {
	var out *models.Cart
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		crt, err := getOrCreate(tx, ow)
		if err != nil {
			return err
		}
		out, err = load(tx, crt.ID)
		return err
	})
	return out, err
}

// AddItem puts quantity units of a product into the owner's cart. An
// existing line for the product is incremented in place, keeping its
// original price snapshot; a new line snapshots the current price.
func (s *Service) AddItem(ctx context.Context, ow owner.Owner, productID, quantity uint, selected bool) (*models.Cart, error) {
	var out *models.Cart
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		crt, err := getOrCreate(tx, ow)
		if err != nil {
			return err
		}

		var product models.Producte
		if err := tx.First(&product, productID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProductNotFound
			}
			return err
		}

		var existing uint
		var item models.CartItem
		err = tx.Where("cart_id = ? AND product_id = ?", crt.ID, productID).First(&item).Error
		switch {
		case err == nil:
			existing = item.Quantity
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return err
		}

		if int(existing+quantity) > product.Stock {
			return &StockExceededError{
				ProductID:     productID,
				Available:     product.Stock,
				AlreadyInCart: existing,
			}
		}

		if existing > 0 {
			item.Quantity += quantity
			if selected {
				item.Selected = true
			}
			if err := tx.Save(&item).Error; err != nil {
				return err
			}
		} else {
			item = models.CartItem{
				CartID:        crt.ID,
				ProductID:     productID,
				Quantity:      quantity,
				ReservedPrice: product.Preu,
				Selected:      selected,
			}
			if err := tx.Create(&item).Error; err != nil {
				return err
			}
		}

		if err := RecomputeTotal(tx, crt); err != nil {
			return err
		}
		out, err = load(tx, crt.ID)
		return err
	})
	return out, err
}

// UpdateItem changes quantity and optionally the selected flag of a
// line the owner holds.
func (s *Service) UpdateItem(ctx context.Context, ow owner.Owner, itemID, quantity uint, selected *bool) (*models.Cart, error) {
	var out *models.Cart
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		crt, item, err := ownedItem(tx, ow, itemID)
		if err != nil {
			return err
		}

		var product models.Producte
		if err := tx.First(&product, item.ProductID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProductNotFound
			}
			return err
		}
		if int(quantity) > product.Stock {
			return &StockExceededError{ProductID: product.ID, Available: product.Stock}
		}

		item.Quantity = quantity
		if selected != nil {
			item.Selected = *selected
		}
		if err := tx.Save(item).Error; err != nil {
			return err
		}

		if err := RecomputeTotal(tx, crt); err != nil {
			return err
		}
		out, err = load(tx, crt.ID)
		return err
	})
	return out, err
}

// RemoveItem deletes a line the owner holds.
func (s *Service) RemoveItem(ctx context.Context, ow owner.Owner, itemID uint) (*models.Cart, error) {
	var out *models.Cart
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		crt, item, err := ownedItem(tx, ow, itemID)
		if err != nil {
			return err
		}
		if err := tx.Delete(item).Error; err != nil {
			return err
		}
		if err := RecomputeTotal(tx, crt); err != nil {
			return err
		}
		out, err = load(tx, crt.ID)
		return err
	})
	return out, err
}

// Clear drops every line from the owner's cart and zeroes the total.
func (s *Service) Clear(ctx context.Context, ow owner.Owner) (*models.Cart, error) {
	var out *models.Cart
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		crt, err := getOrCreate(tx, ow)
		if err != nil {
			return err
		}
		if err := tx.Where("cart_id = ?", crt.ID).Delete(&models.CartItem{}).Error; err != nil {
			return err
		}
		if err := RecomputeTotal(tx, crt); err != nil {
			return err
		}
		out, err = load(tx, crt.ID)
		return err
	})
	return out, err
}

// CheckStock dry-runs the stock validation checkout will perform: every
// selected line is compared against live stock and all shortfalls are
// reported. Nothing is mutated.
func (s *Service) CheckStock(ctx context.Context, ow owner.Owner) ([]StockShortfall, error) {
	var crt models.Cart
	err := s.DB.WithContext(ctx).
		Where("owner_id = ? AND owner_kind = ?", ow.ID, string(ow.Kind)).
		First(&crt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var items []models.CartItem
	if err := s.DB.WithContext(ctx).
		Preload("Product").
		Where("cart_id = ? AND selected = ?", crt.ID, true).
		Order("id ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}

	ledger := stock.Ledger{DB: s.DB}
	ids := make([]uint, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	available, err := ledger.Available(ctx, ids)
	if err != nil {
		return nil, err
	}

	var shortfalls []StockShortfall
	for _, it := range items {
		stockLeft, ok := available[it.ProductID]
		if ok && int(it.Quantity) <= stockLeft {
			continue
		}
		name := ""
		if it.Product != nil {
			name = it.Product.Nom
		}
		shortfalls = append(shortfalls, StockShortfall{
			ProductID:   it.ProductID,
			ProductName: name,
			Requested:   it.Quantity,
			Available:   stockLeft,
		})
	}
	return shortfalls, nil
}

// RecomputeTotal rewrites the denormalized cart total from the line
// items inside the caller's transaction.
func RecomputeTotal(tx *gorm.DB, crt *models.Cart) error {
	var total float64
	if err := tx.Model(&models.CartItem{}).
		Where("cart_id = ?", crt.ID).
		Select("COALESCE(SUM(quantity * reserved_price), 0)").
		Scan(&total).Error; err != nil {
		return err
	}
	crt.TotalPrice = total
	return tx.Model(&models.Cart{}).Where("id = ?", crt.ID).Update("total_price", total).Error
}

func getOrCreate(tx *gorm.DB, ow owner.Owner) (*models.Cart, error) {
	var crt models.Cart
	err := tx.Where("owner_id = ? AND owner_kind = ?", ow.ID, string(ow.Kind)).First(&crt).Error
	if err == nil {
		return &crt, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	crt = models.Cart{OwnerID: ow.ID, OwnerKind: string(ow.Kind)}
	if createErr := tx.Create(&crt).Error; createErr != nil {
		// Lost a concurrent first-access race; the unique owner index
		// guarantees the winner's row exists.
		if readErr := tx.Where("owner_id = ? AND owner_kind = ?", ow.ID, string(ow.Kind)).
			First(&crt).Error; readErr != nil {
			return nil, createErr
		}
	}
	return &crt, nil
}

func ownedItem(tx *gorm.DB, ow owner.Owner, itemID uint) (*models.Cart, *models.CartItem, error) {
	var item models.CartItem
	if err := tx.First(&item, itemID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrItemNotFound
		}
		return nil, nil, err
	}

	var crt models.Cart
	if err := tx.First(&crt, item.CartID).Error; err != nil {
		return nil, nil, err
	}
	if crt.OwnerID != ow.ID || crt.OwnerKind != string(ow.Kind) {
		return nil, nil, ErrNotOwner
	}
	return &crt, &item, nil
}

func load(tx *gorm.DB, cartID uint) (*models.Cart, error) {
	var crt models.Cart
	err := tx.
		Preload("CartItems", func(db *gorm.DB) *gorm.DB { return db.Order("cart_items.id ASC") }).
		Preload("CartItems.Product").
		Preload("CartItems.Product.Botiga").
		First(&crt, cartID).Error
	if err != nil {
		return nil, err
	}
	return &crt, nil
}
