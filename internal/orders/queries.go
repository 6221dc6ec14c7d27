package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Keoroanthony/shopnow-api/internal/apperr"
	"github.com/Keoroanthony/shopnow-api/internal/models"
	"github.com/Keoroanthony/shopnow-api/internal/permissions"
)

// ListLimit caps every order listing.
const ListLimit = 500

// UpcomingWindow is how far ahead MyCredits looks for due payments.
const UpcomingWindow = 7 * 24 * time.Hour

func withDetails(tx *gorm.DB) *gorm.DB {
	return tx.
		Preload("Items").
		Preload("StatusHistory", func(db *gorm.DB) *gorm.DB {
			return db.Order("changed_at, id")
		})
}

// Get returns one order with its items and history when caller may read it.
func Get(ctx context.Context, database *gorm.DB, caller *models.User, orderID uint) (*models.Order, error) {
	var order models.Order
	err := withDetails(database.WithContext(ctx)).Preload("Shop").First(&order, orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("order not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get order %d: %w", orderID, err)
	}
	if !permissions.Resolve(caller, &order).Read {
		return nil, apperr.NotFound("order not found")
	}
	return &order, nil
}

// ListForUser returns the caller's own orders, newest first.
func ListForUser(ctx context.Context, database *gorm.DB, caller *models.User) ([]models.Order, error) {
	orders := []models.Order{}
	err := withDetails(database.WithContext(ctx)).
		Where("user_id = ?", caller.ID).
		Order("created_at DESC, id DESC").
		Limit(ListLimit).
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("list orders of user %d: %w", caller.ID, err)
	}
	return orders, nil
}

type AdminFilter struct {
	Status models.OrderStatus
	UserID uint
	ShopID uint
}

// ListAdmin returns every order matching f. Staff only.
func ListAdmin(ctx context.Context, database *gorm.DB, caller *models.User, f AdminFilter) ([]models.Order, error) {
	if !caller.IsAdmin() {
		return nil, apperr.Forbidden("staff access required")
	}
	q := withDetails(database.WithContext(ctx))
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.UserID != 0 {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.ShopID != 0 {
		q = q.Where("shop_id = ?", f.ShopID)
	}

	orders := []models.Order{}
	if err := q.Order("created_at DESC, id DESC").Limit(ListLimit).Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// shopScope restricts q to orders of shops the caller owns. Staff see the
// orders of every shop.
func shopScope(q *gorm.DB, caller *models.User) (*gorm.DB, error) {
	if !permissions.CanManageShops(caller) {
		return nil, apperr.Forbidden("shop owner access required")
	}
	if caller.IsAdmin() {
		return q.Where("orders.shop_id IS NOT NULL"), nil
	}
	owned := q.Session(&gorm.Session{NewDB: true}).
		Model(&models.Shop{}).
		Select("id").
		Where("owner_id = ?", caller.ID)
	return q.Where("orders.shop_id IN (?)", owned), nil
}

// ListForShopOwner returns the orders placed with the caller's shops.
func ListForShopOwner(ctx context.Context, database *gorm.DB, caller *models.User) ([]models.Order, error) {
	q, err := shopScope(withDetails(database.WithContext(ctx)), caller)
	if err != nil {
		return nil, err
	}
	orders := []models.Order{}
	if err := q.Order("created_at DESC, id DESC").Limit(ListLimit).Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("list shop orders: %w", err)
	}
	return orders, nil
}

type CreditShop struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	Address   string `json:"address"`
	City      string `json:"city"`
	OwnerName string `json:"owner_name"`
}

type CreditItem struct {
	ProductID   uint            `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// CreditView is the customer's view of one credit order.
type CreditView struct {
	ID             uint                `json:"id"`
	Status         models.OrderStatus  `json:"status"`
	CreditStatus   models.CreditStatus `json:"credit_status"`
	TotalPrice     decimal.Decimal     `json:"total_price"`
	CreatedAt      time.Time           `json:"created_at"`
	PaymentDueDate *string             `json:"payment_due_date"`
	Shop           *CreditShop         `json:"shop"`
	Items          []CreditItem        `json:"items"`
}

// MyCredits lists the caller's credit orders. With upcoming set only
// approved credits due between today and UpcomingWindow from now are kept.
func MyCredits(ctx context.Context, database *gorm.DB, caller *models.User, upcoming bool, now time.Time) ([]CreditView, error) {
	q := database.WithContext(ctx).
		Preload("Items.Product").
		Preload("Shop.Owner").
		Where("user_id = ? AND payment_method = ?", caller.ID, models.PaymentCredit)
	if upcoming {
		today := now.UTC().Truncate(24 * time.Hour)
		q = q.Where("credit_status = ? AND payment_due_date >= ? AND payment_due_date <= ?",
			models.CreditApproved, today, today.Add(UpcomingWindow))
	}

	var orders []models.Order
	if err := q.Order("created_at DESC, id DESC").Limit(ListLimit).Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("list credits of user %d: %w", caller.ID, err)
	}

	views := make([]CreditView, 0, len(orders))
	for _, o := range orders {
		v := CreditView{
			ID:           o.ID,
			Status:       o.Status,
			CreditStatus: o.CreditStatus,
			TotalPrice:   o.TotalPrice,
			CreatedAt:    o.CreatedAt,
			Items:        make([]CreditItem, 0, len(o.Items)),
		}
		if o.PaymentDueDate != nil {
			d := o.PaymentDueDate.Format(DueDateLayout)
			v.PaymentDueDate = &d
		}
		if o.Shop != nil {
			v.Shop = &CreditShop{
				ID:      o.Shop.ID,
				Name:    o.Shop.Name,
				Address: o.Shop.Address,
				City:    o.Shop.City,
			}
			if o.Shop.Owner != nil {
				v.Shop.OwnerName = o.Shop.Owner.Name
			}
		}
		for _, it := range o.Items {
			ci := CreditItem{
				ProductID: it.ProductID,
				Quantity:  it.Quantity,
				Price:     it.Price,
				Subtotal:  it.Subtotal,
			}
			if it.Product != nil {
				ci.ProductName = it.Product.Name
			}
			v.Items = append(v.Items, ci)
		}
		views = append(views, v)
	}
	return views, nil
}

// CreditStats summarizes the credit book of the caller's shops.
type CreditStats struct {
	TotalCredits  int64           `json:"total_credits"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	PaidCount     int64           `json:"paid_count"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	UnpaidCount   int64           `json:"unpaid_count"`
	UnpaidAmount  decimal.Decimal `json:"unpaid_amount"`
	PendingCount  int64           `json:"pending_count"`
	PendingAmount decimal.Decimal `json:"pending_amount"`
}

type creditBucket struct {
	CreditStatus models.CreditStatus
	Count        int64
	Amount       decimal.Decimal
}

func GetCreditStats(ctx context.Context, database *gorm.DB, caller *models.User) (*CreditStats, error) {
	q, err := shopScope(database.WithContext(ctx).Model(&models.Order{}), caller)
	if err != nil {
		return nil, err
	}
	var buckets []creditBucket
	err = q.Select("credit_status, COUNT(*) AS count, COALESCE(SUM(total_price), 0) AS amount").
		Where("payment_method = ?", models.PaymentCredit).
		Group("credit_status").
		Scan(&buckets).Error
	if err != nil {
		return nil, fmt.Errorf("aggregate credit stats: %w", err)
	}

	stats := &CreditStats{
		TotalAmount:   decimal.Zero,
		PaidAmount:    decimal.Zero,
		UnpaidAmount:  decimal.Zero,
		PendingAmount: decimal.Zero,
	}
	for _, b := range buckets {
		stats.TotalCredits += b.Count
		stats.TotalAmount = stats.TotalAmount.Add(b.Amount)
		switch b.CreditStatus {
		case models.CreditPaid:
			stats.PaidCount, stats.PaidAmount = b.Count, b.Amount
		case models.CreditApproved:
			stats.UnpaidCount, stats.UnpaidAmount = b.Count, b.Amount
		case models.CreditRequested:
			stats.PendingCount, stats.PendingAmount = b.Count, b.Amount
		}
	}
	return stats, nil
}

// UserCredits is the credit balance of one customer with the caller's shops.
type UserCredits struct {
	UserID       uint            `json:"user_id"`
	Name         string          `json:"name"`
	Email        string          `json:"email"`
	TotalOrders  int64           `json:"total_orders"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	PaidAmount   decimal.Decimal `json:"paid_amount"`
	UnpaidAmount decimal.Decimal `json:"unpaid_amount"`
}

func CreditsByUser(ctx context.Context, database *gorm.DB, caller *models.User) ([]UserCredits, error) {
	q, err := shopScope(database.WithContext(ctx).Model(&models.Order{}), caller)
	if err != nil {
		return nil, err
	}
	rows := []UserCredits{}
	err = q.Select(`orders.user_id AS user_id, users.name AS name, users.email AS email,
			COUNT(orders.id) AS total_orders,
			COALESCE(SUM(orders.total_price), 0) AS total_amount,
			COALESCE(SUM(CASE WHEN orders.credit_status = ? THEN orders.total_price ELSE 0 END), 0) AS paid_amount,
			COALESCE(SUM(CASE WHEN orders.credit_status = ? THEN orders.total_price ELSE 0 END), 0) AS unpaid_amount`,
		models.CreditPaid, models.CreditApproved).
		Joins("JOIN users ON users.id = orders.user_id").
		Where("orders.payment_method = ?", models.PaymentCredit).
		Group("orders.user_id, users.name, users.email").
		Order("total_amount DESC").
		Limit(ListLimit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("aggregate credits by user: %w", err)
	}
	return rows, nil
}
