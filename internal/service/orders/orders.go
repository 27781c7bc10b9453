package orders

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/marcelprats/TFM/internal/models"
	"github.com/marcelprats/TFM/internal/owner"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrForbidden     = errors.New("not allowed to act on this order")
)

// InvalidTransitionError rejects a status change the actor may not make
// from the order's current status.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot move order from %q to %q", e.From, e.To)
}

// Service is the read/transition surface over the persisted reserve and
// order ledger. Orders are immutable after checkout except for status
// and cancellation_reason.
type Service struct {
	DB *gorm.DB
}

func withRelations(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Reserve").
		Preload("Reserve.ReserveItems").
		Preload("Reserve.ReserveItems.Product").
		Preload("Reserve.Botiga")
}

// ListForBuyer returns the owner's purchase history, newest first.
func (s *Service) ListForBuyer(ctx context.Context, ow owner.Owner) ([]models.Order, error) {
	var out []models.Order
	err := withRelations(s.DB.WithContext(ctx)).
		Where("buyer_id = ? AND buyer_kind = ?", ow.ID, string(ow.Kind)).
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}

// ListForVendor aggregates orders across every shop the vendor owns,
// joined through the reserve's botiga.
func (s *Service) ListForVendor(ctx context.Context, vendorID uint) ([]models.Order, error) {
	var out []models.Order
	err := withRelations(s.DB.WithContext(ctx)).
		Joins("JOIN reserves ON reserves.id = orders.reserve_id").
		Joins("JOIN botigues ON botigues.id = reserves.botiga_id").
		Where("botigues.vendor_id = ?", vendorID).
		Order("orders.created_at DESC").
		Find(&out).Error
	return out, err
}

// ListAll returns what the principal may see as buyer and, for vendors,
// as seller too.
func (s *Service) ListAll(ctx context.Context, ow owner.Owner) ([]models.Order, error) {
	q := withRelations(s.DB.WithContext(ctx))
	if ow.Kind == owner.KindVendor {
		q = q.Where(
			"(buyer_id = ? AND buyer_kind = ?) OR reserve_id IN (?)",
			ow.ID, string(ow.Kind),
			s.DB.Model(&models.Reserve{}).Select("reserves.id").
				Joins("JOIN botigues ON botigues.id = reserves.botiga_id").
				Where("botigues.vendor_id = ?", ow.ID),
		)
	} else {
		q = q.Where("buyer_id = ? AND buyer_kind = ?", ow.ID, string(ow.Kind))
	}
	var out []models.Order
	err := q.Order("created_at DESC").Find(&out).Error
	return out, err
}

// Get loads one order the principal is allowed to see, as its buyer or
// as the vendor behind its shop.
func (s *Service) Get(ctx context.Context, ow owner.Owner, id uint) (*models.Order, error) {
	var ord models.Order
	err := withRelations(s.DB.WithContext(ctx)).First(&ord, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if !isBuyer(&ord, ow) && !isShopVendor(&ord, ow) {
		return nil, ErrForbidden
	}
	return &ord, nil
}

// UpdateStatus applies a status transition. Buyers may only cancel
// while pending; the shop's vendor advances pending→reserved→completed
// or cancels with a reason. The reserve status moves in lockstep.
func (s *Service) UpdateStatus(ctx context.Context, ow owner.Owner, id uint, status string, reason *string) (*models.Order, error) {
	var out *models.Order
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ord models.Order
		err := withRelations(tx).First(&ord, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOrderNotFound
		}
		if err != nil {
			return err
		}

		switch {
		case isBuyer(&ord, ow):
			if status != models.OrderStatusCancelled || ord.Status != models.OrderStatusPending {
				return &InvalidTransitionError{From: ord.Status, To: status}
			}
		case isShopVendor(&ord, ow):
			if !vendorMayTransition(ord.Status, status) {
				return &InvalidTransitionError{From: ord.Status, To: status}
			}
		default:
			return ErrForbidden
		}

		ord.Status = status
		ord.CancellationReason = nil
		if status == models.OrderStatusCancelled {
			ord.CancellationReason = reason
		}
		if err := tx.Model(&models.Order{}).Where("id = ?", ord.ID).
			Updates(map[string]any{
				"status":              ord.Status,
				"cancellation_reason": ord.CancellationReason,
			}).Error; err != nil {
			return err
		}

		if rs, ok := reserveStatusFor(status); ok {
			if err := tx.Model(&models.Reserve{}).Where("id = ?", ord.ReserveID).
				Update("status", rs).Error; err != nil {
				return err
			}
			if ord.Reserve != nil {
				ord.Reserve.Status = rs
			}
		}
		out = &ord
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a pending order at its buyer's request; the linked
// reserve is marked cancelled so the held commitment is released.
func (s *Service) Delete(ctx context.Context, ow owner.Owner, id uint) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ord models.Order
		err := tx.First(&ord, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOrderNotFound
		}
		if err != nil {
			return err
		}
		if !isBuyer(&ord, ow) {
			return ErrForbidden
		}
		if ord.Status != models.OrderStatusPending {
			return &InvalidTransitionError{From: ord.Status, To: "deleted"}
		}
		if err := tx.Delete(&ord).Error; err != nil {
			return err
		}
		return tx.Model(&models.Reserve{}).Where("id = ?", ord.ReserveID).
			Update("status", models.ReserveStatusCancelled).Error
	})
}

func isBuyer(ord *models.Order, ow owner.Owner) bool {
	return ord.BuyerID == ow.ID && ord.BuyerKind == string(ow.Kind)
}

func isShopVendor(ord *models.Order, ow owner.Owner) bool {
	return ow.Kind == owner.KindVendor &&
		ord.Reserve != nil && ord.Reserve.Botiga != nil &&
		ord.Reserve.Botiga.VendorID == ow.ID
}

func vendorMayTransition(from, to string) bool {
	switch from {
	case models.OrderStatusPending:
		return to == models.OrderStatusReserved || to == models.OrderStatusCancelled
	case models.OrderStatusReserved:
		return to == models.OrderStatusCompleted || to == models.OrderStatusCancelled
	default:
		return false
	}
}

func reserveStatusFor(orderStatus string) (string, bool) {
	switch orderStatus {
	case models.OrderStatusReserved:
		return models.ReserveStatusConfirmed, true
	case models.OrderStatusCompleted:
		return models.ReserveStatusCompleted, true
	case models.OrderStatusCancelled:
		return models.ReserveStatusCancelled, true
	default:
		return "", false
	}
}
