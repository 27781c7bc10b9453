package stock

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/marcelprats/TFM/internal/models"
)

// Ledger is a read/decrement accessor over product stock. Reads are
// plain, decrements must happen on rows locked via LockProducts inside
// the caller's transaction.
type Ledger struct {
	DB *gorm.DB
}

// Available returns the live stock for the given products. Missing ids
// are simply absent from the map.
func (l *Ledger) Available(ctx context.Context, productIDs []uint) (map[uint]int, error) {
	out := make(map[uint]int, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}
	var rows []models.Producte
	if err := l.DB.WithContext(ctx).Where("id IN ?", productIDs).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, p := range rows {
		out[p.ID] = p.Stock
	}
	return out, nil
}

// forUpdate adds a row lock where the dialect supports one. sqlite has
// no SELECT ... FOR UPDATE, its single writer serializes the tests.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// LockProducts loads the products row-locked, in id order so two
// concurrent checkouts touching the same set never deadlock.
func LockProducts(tx *gorm.DB, productIDs []uint) (map[uint]models.Producte, error) {
	out := make(map[uint]models.Producte, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}
	var rows []models.Producte
	if err := forUpdate(tx).Where("id IN ?", productIDs).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, p := range rows {
		out[p.ID] = p
	}
	return out, nil
}

// Decrement lowers a product's stock by qty, flooring at zero. Callers
// must have validated qty against the locked row first, the clamp is a
// last-resort safety net, not the correctness mechanism.
func Decrement(tx *gorm.DB, p models.Producte, qty uint) error {
	next := p.Stock - int(qty)
	if next < 0 {
		next = 0
	}
	return tx.Model(&models.Producte{}).Where("id = ?", p.ID).Update("stock", next).Error
}
