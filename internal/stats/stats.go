// Package stats computes read-only aggregates over committed data for the
// admin dashboard and shop pages.
package stats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/Keoroanthony/shopnow-api/internal/apperr"
	"github.com/Keoroanthony/shopnow-api/internal/models"
)

const (
	recentOrdersLimit  = 10
	newUsersLimit      = 10
	topCategoriesLimit = 8
	lowStockLimit      = 10
	// LowStockThreshold is the stock below which a product is reported.
	LowStockThreshold = 5
)

type StatusCount struct {
	Status models.OrderStatus `json:"status"`
	Count  int64              `json:"count"`
}

type Window struct {
	Days     int             `json:"days"`
	Orders   int64           `json:"orders"`
	Revenue  decimal.Decimal `json:"revenue"`
	NewUsers int64           `json:"new_users"`
}

type RecentOrder struct {
	ID        uint               `json:"id"`
	Customer  string             `json:"customer"`
	Total     decimal.Decimal    `json:"total"`
	Status    models.OrderStatus `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
}

type NewUser struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"date"`
}

type CategoryCount struct {
	ID            uint   `json:"id"`
	Name          string `json:"name"`
	ProductsCount int64  `json:"products_count"`
}

type LowStockProduct struct {
	ID    uint            `json:"id"`
	Name  string          `json:"name"`
	Stock int             `json:"stock"`
	Price decimal.Decimal `json:"price"`
}

type Admin struct {
	TotalUsers       int64             `json:"total_users"`
	TotalProducts    int64             `json:"total_products"`
	TotalOrders      int64             `json:"total_orders"`
	TotalRevenue     decimal.Decimal   `json:"total_revenue"`
	OrdersByStatus   []StatusCount     `json:"orders_by_status"`
	Last30Days       Window            `json:"last_30_days"`
	RecentOrders     []RecentOrder     `json:"recent_orders"`
	NewUsers         []NewUser         `json:"new_users"`
	TopCategories    []CategoryCount   `json:"top_categories"`
	LowStockProducts []LowStockProduct `json:"low_stock_products"`
	GeneratedAt      time.Time         `json:"generated_at"`
}

type ShopCategory struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

type Shop struct {
	ShopID              uint           `json:"shop_id"`
	TotalProducts       int64          `json:"total_products"`
	AvailableProducts   int64          `json:"available_products"`
	UnavailableProducts int64          `json:"unavailable_products"`
	Categories          []ShopCategory `json:"categories"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// Reporter runs the aggregate queries. Concurrent requests for the admin
// dashboard share one computation.
type Reporter struct {
	db  *gorm.DB
	sfg singleflight.Group
	now func() time.Time
}

func NewReporter(database *gorm.DB) *Reporter {
	return &Reporter{db: database, now: time.Now}
}

func (r *Reporter) Admin(ctx context.Context) (*Admin, error) {
	v, err, _ := r.sfg.Do("admin", func() (interface{}, error) {
		return r.admin(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Admin), nil
}

func (r *Reporter) admin(ctx context.Context) (*Admin, error) {
	q := r.db.WithContext(ctx)
	now := r.now().UTC()
	out := &Admin{
		OrdersByStatus:   []StatusCount{},
		RecentOrders:     []RecentOrder{},
		NewUsers:         []NewUser{},
		TopCategories:    []CategoryCount{},
		LowStockProducts: []LowStockProduct{},
		Last30Days:       Window{Days: 30},
		GeneratedAt:      now,
	}

	if err := q.Model(&models.User{}).Count(&out.TotalUsers).Error; err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	if err := q.Model(&models.Product{}).Count(&out.TotalProducts).Error; err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}
	var err error
	if out.TotalOrders, out.TotalRevenue, err = orderTotals(q, time.Time{}); err != nil {
		return nil, err
	}

	err = q.Model(&models.Order{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Order("status").
		Scan(&out.OrdersByStatus).Error
	if err != nil {
		return nil, fmt.Errorf("count orders by status: %w", err)
	}

	since := now.AddDate(0, 0, -30)
	if out.Last30Days.Orders, out.Last30Days.Revenue, err = orderTotals(q, since); err != nil {
		return nil, err
	}
	if err := q.Model(&models.User{}).Where("created_at >= ?", since).Count(&out.Last30Days.NewUsers).Error; err != nil {
		return nil, fmt.Errorf("count new users: %w", err)
	}

	var recent []models.Order
	err = q.Preload("User").Order("created_at DESC, id DESC").Limit(recentOrdersLimit).Find(&recent).Error
	if err != nil {
		return nil, fmt.Errorf("recent orders: %w", err)
	}
	for _, o := range recent {
		ro := RecentOrder{ID: o.ID, Total: o.TotalPrice, Status: o.Status, CreatedAt: o.CreatedAt}
		if o.User != nil {
			ro.Customer = o.User.Name
		}
		out.RecentOrders = append(out.RecentOrders, ro)
	}

	err = q.Model(&models.User{}).
		Select("id, name, email, created_at").
		Where("created_at >= ?", now.AddDate(0, 0, -7)).
		Order("created_at DESC").
		Limit(newUsersLimit).
		Scan(&out.NewUsers).Error
	if err != nil {
		return nil, fmt.Errorf("new users: %w", err)
	}

	err = q.Model(&models.Category{}).
		Select("categories.id AS id, categories.name AS name, COUNT(products.id) AS products_count").
		Joins("JOIN products ON products.category_id = categories.id").
		Group("categories.id, categories.name").
		Order("products_count DESC, categories.id").
		Limit(topCategoriesLimit).
		Scan(&out.TopCategories).Error
	if err != nil {
		return nil, fmt.Errorf("top categories: %w", err)
	}

	err = q.Model(&models.Product{}).
		Select("id, name, stock, price").
		Where("stock < ?", LowStockThreshold).
		Order("stock, id").
		Limit(lowStockLimit).
		Scan(&out.LowStockProducts).Error
	if err != nil {
		return nil, fmt.Errorf("low stock products: %w", err)
	}

	return out, nil
}

func orderTotals(q *gorm.DB, since time.Time) (int64, decimal.Decimal, error) {
	var row struct {
		Count   int64
		Revenue decimal.Decimal
	}
	tx := q.Model(&models.Order{}).Select("COUNT(*) AS count, COALESCE(SUM(total_price), 0) AS revenue")
	if !since.IsZero() {
		tx = tx.Where("created_at >= ?", since)
	}
	if err := tx.Scan(&row).Error; err != nil {
		return 0, decimal.Zero, fmt.Errorf("order totals: %w", err)
	}
	return row.Count, row.Revenue, nil
}

// Shop reports product availability for one shop.
func (r *Reporter) Shop(ctx context.Context, shopID uint) (*Shop, error) {
	q := r.db.WithContext(ctx)

	var shop models.Shop
	if err := q.First(&shop, shopID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("shop not found")
		}
		return nil, fmt.Errorf("load shop %d: %w", shopID, err)
	}

	out := &Shop{
		ShopID:     shop.ID,
		Categories: []ShopCategory{},
		CreatedAt:  shop.CreatedAt,
		UpdatedAt:  shop.UpdatedAt,
	}
	products := q.Model(&models.Product{}).Where("shop_id = ?", shop.ID).Session(&gorm.Session{})
	if err := products.Count(&out.TotalProducts).Error; err != nil {
		return nil, fmt.Errorf("count shop products: %w", err)
	}
	if err := products.Where("stock > 0").Count(&out.AvailableProducts).Error; err != nil {
		return nil, fmt.Errorf("count available shop products: %w", err)
	}
	out.UnavailableProducts = out.TotalProducts - out.AvailableProducts

	err := q.Model(&models.Product{}).
		Select("categories.name AS name, COUNT(*) AS count").
		Joins("JOIN categories ON categories.id = products.category_id").
		Where("products.shop_id = ?", shop.ID).
		Group("categories.name").
		Order("categories.name").
		Scan(&out.Categories).Error
	if err != nil {
		return nil, fmt.Errorf("count shop categories: %w", err)
	}
	return out, nil
}
