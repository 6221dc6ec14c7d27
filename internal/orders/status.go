package orders

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Keoroanthony/shopnow-api/internal/apperr"
	"github.com/Keoroanthony/shopnow-api/internal/models"
	"github.com/Keoroanthony/shopnow-api/internal/permissions"
)

// SetStatus is the only writer of orders.status. It persists the new value
// and then appends one history row, both on tx. Writing the current value
// is a no-op. It reports whether anything changed.
func SetStatus(tx *gorm.DB, order *models.Order, to models.OrderStatus) (bool, error) {
	if order.Status == to {
		return false, nil
	}
	from := order.Status
	if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).Update("status", to).Error; err != nil {
		return false, fmt.Errorf("update order %d status: %w", order.ID, err)
	}
	order.Status = to

	entry := models.OrderStatusHistory{
		OrderID:    order.ID,
		FromStatus: from,
		ToStatus:   to,
		ChangedAt:  time.Now().UTC(),
	}
	if err := tx.Create(&entry).Error; err != nil {
		return false, fmt.Errorf("record order %d status history: %w", order.ID, err)
	}
	order.StatusHistory = append(order.StatusHistory, entry)
	return true, nil
}

// StatusChange describes a committed status write.
type StatusChange struct {
	Order   *models.Order
	From    models.OrderStatus
	Changed bool
}

// Cancel cancels an order on behalf of its owner (or staff) and puts the
// ordered quantities back in stock. Only pending and processing orders can
// be cancelled.
func Cancel(ctx context.Context, database *gorm.DB, caller *models.User, orderID uint) (*StatusChange, error) {
	var change StatusChange
	err := database.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := lockOrder(tx, orderID)
		if err != nil {
			return err
		}
		if !permissions.Resolve(caller, order).Write {
			return apperr.NotFound("order not found")
		}
		if order.Status != models.OrderPending && order.Status != models.OrderProcessing {
			return apperr.Validation("order in status %s cannot be cancelled", order.Status)
		}

		if err := restock(tx, order.ID); err != nil {
			return err
		}
		change.From = order.Status
		change.Changed, err = SetStatus(tx, order, models.OrderCancelled)
		change.Order = order
		return err
	})
	if err != nil {
		return nil, err
	}
	return &change, nil
}

// AdminUpdateStatus overrides the status of any order. Staff only; stock
// is not touched.
func AdminUpdateStatus(ctx context.Context, database *gorm.DB, caller *models.User, orderID uint, to models.OrderStatus) (*StatusChange, error) {
	if !caller.IsAdmin() {
		return nil, apperr.Forbidden("staff access required")
	}
	if !to.Valid() {
		return nil, apperr.Validation("invalid status %q", to)
	}

	var change StatusChange
	err := database.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := lockOrder(tx, orderID)
		if err != nil {
			return err
		}
		change.From = order.Status
		change.Changed, err = SetStatus(tx, order, to)
		change.Order = order
		return err
	})
	if err != nil {
		return nil, err
	}
	return &change, nil
}

// lockOrder locks the order row and loads the shop it belongs to, which
// the capability checks need.
func lockOrder(tx *gorm.DB, orderID uint) (*models.Order, error) {
	var order models.Order
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&order, orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("order not found")
	}
	if err != nil {
		return nil, fmt.Errorf("lock order %d: %w", orderID, err)
	}

	if order.ShopID != nil {
		var shop models.Shop
		if err := tx.First(&shop, *order.ShopID).Error; err == nil {
			order.Shop = &shop
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("load shop of order %d: %w", orderID, err)
		}
	}
	return &order, nil
}

// restock returns the quantities of every item of the order to stock,
// locking the products in ascending id order.
func restock(tx *gorm.DB, orderID uint) error {
	var items []models.OrderItem
	if err := tx.Where("order_id = ?", orderID).Find(&items).Error; err != nil {
		return fmt.Errorf("load items of order %d: %w", orderID, err)
	}
	if len(items) == 0 {
		return nil
	}

	qty := make(map[uint]int, len(items))
	ids := make([]uint, 0, len(items))
	for _, it := range items {
		if _, seen := qty[it.ProductID]; !seen {
			ids = append(ids, it.ProductID)
		}
		qty[it.ProductID] += it.Quantity
	}
	slices.Sort(ids)

	var products []models.Product
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id").
		Find(&products).Error
	if err != nil {
		return fmt.Errorf("lock products for restock: %w", err)
	}
	for i := range products {
		p := &products[i]
		p.Stock += qty[p.ID]
		if err := tx.Model(p).Update("stock", p.Stock).Error; err != nil {
			return fmt.Errorf("restock product %d: %w", p.ID, err)
		}
	}
	return nil
}
