// Package cart keeps one shopping cart per user and turns it into an order
// at checkout.
package cart

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/Keoroanthony/shopnow-api/internal/apperr"
	"github.com/Keoroanthony/shopnow-api/internal/cache"
	"github.com/Keoroanthony/shopnow-api/internal/models"
	"github.com/Keoroanthony/shopnow-api/internal/orders"
)

type ItemView struct {
	ID        uint            `json:"id"`
	ProductID uint            `json:"product_id"`
	Name      string          `json:"name"`
	ImageURL  string          `json:"image_url"`
	ShopID    *uint           `json:"shop_id"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	Available bool            `json:"available"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// View is the cart as returned to clients and stored in the cache.
type View struct {
	ID         uint            `json:"id"`
	UserID     uint            `json:"user_id"`
	Items      []ItemView      `json:"items"`
	TotalItems int             `json:"total_items"`
	TotalPrice decimal.Decimal `json:"total_price"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

type Totals struct {
	TotalItems int             `json:"total_items"`
	TotalPrice decimal.Decimal `json:"total_price"`
	ItemsCount int             `json:"items_count"`
}

type Service struct {
	db    *gorm.DB
	cache cache.Cache[View]
	log   *zap.Logger
	sfg   singleflight.Group
}

func NewService(database *gorm.DB, c cache.Cache[View], log *zap.Logger) *Service {
	if c == nil {
		c = cache.Nop[View]{}
	}
	return &Service{db: database, cache: c, log: log}
}

func cacheKey(userID uint) string {
	return strconv.FormatUint(uint64(userID), 10)
}

// Get returns the user's cart, creating an empty one on first access.
func (s *Service) Get(ctx context.Context, userID uint) (*View, error) {
	key := cacheKey(userID)
	v, err, _ := s.sfg.Do(key, func() (interface{}, error) {
		view, err := s.cache.Get(ctx, key)
		if err == nil {
			return view, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.Warn("cart cache get failed", zap.Uint("user_id", userID), zap.Error(err))
		}

		view, err = s.load(ctx, userID)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Set(ctx, key, view); err != nil {
			s.log.Warn("cart cache set failed", zap.Uint("user_id", userID), zap.Error(err))
		}
		return view, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*View), nil
}

func (s *Service) GetTotals(ctx context.Context, userID uint) (*Totals, error) {
	view, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Totals{
		TotalItems: view.TotalItems,
		TotalPrice: view.TotalPrice,
		ItemsCount: len(view.Items),
	}, nil
}

// AddItem adds quantity units of a product. Adding a product already in
// the cart merges the lines; the merged quantity is capped at the stock.
func (s *Service) AddItem(ctx context.Context, userID, productID uint, quantity int) (*View, error) {
	if quantity <= 0 {
		return nil, apperr.Validation("quantity must be positive")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.First(&product, productID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("product %d not found", productID)
			}
			return fmt.Errorf("load product %d: %w", productID, err)
		}
		if !product.Available() {
			return apperr.Validation("%s is out of stock", product.Name)
		}

		c, err := getOrCreate(tx, userID)
		if err != nil {
			return err
		}

		var item models.CartItem
		err = tx.Where("cart_id = ? AND product_id = ?", c.ID, productID).First(&item).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			item = models.CartItem{CartID: c.ID, ProductID: productID, Quantity: min(quantity, product.Stock)}
			if err := tx.Create(&item).Error; err != nil {
				return fmt.Errorf("create cart item: %w", err)
			}
		case err != nil:
			return fmt.Errorf("load cart item: %w", err)
		default:
			merged := min(item.Quantity+quantity, product.Stock)
			if err := tx.Model(&item).Update("quantity", merged).Error; err != nil {
				return fmt.Errorf("update cart item: %w", err)
			}
		}
		return touch(tx, c)
	})
	if err != nil {
		return nil, err
	}
	return s.refresh(ctx, userID)
}

// UpdateItem sets the quantity of one line. A quantity of zero or less
// removes the line.
func (s *Service) UpdateItem(ctx context.Context, userID, itemID uint, quantity int) (*View, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, c, err := findItem(tx, userID, itemID)
		if err != nil {
			return err
		}
		if quantity <= 0 {
			if err := tx.Delete(item).Error; err != nil {
				return fmt.Errorf("delete cart item: %w", err)
			}
			return touch(tx, c)
		}

		var product models.Product
		if err := tx.First(&product, item.ProductID).Error; err != nil {
			return fmt.Errorf("load product %d: %w", item.ProductID, err)
		}
		if quantity > product.Stock {
			return apperr.Validation("only %d units of %s in stock", product.Stock, product.Name)
		}
		if err := tx.Model(item).Update("quantity", quantity).Error; err != nil {
			return fmt.Errorf("update cart item: %w", err)
		}
		return touch(tx, c)
	})
	if err != nil {
		return nil, err
	}
	return s.refresh(ctx, userID)
}

func (s *Service) RemoveItem(ctx context.Context, userID, itemID uint) (*View, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, c, err := findItem(tx, userID, itemID)
		if err != nil {
			return err
		}
		if err := tx.Delete(item).Error; err != nil {
			return fmt.Errorf("delete cart item: %w", err)
		}
		return touch(tx, c)
	})
	if err != nil {
		return nil, err
	}
	return s.refresh(ctx, userID)
}

func (s *Service) Clear(ctx context.Context, userID uint) (*View, error) {
	err := s.db.WithContext(ctx).
		Where("cart_id IN (?)", s.db.Model(&models.Cart{}).Select("id").Where("user_id = ?", userID)).
		Delete(&models.CartItem{}).Error
	if err != nil {
		return nil, fmt.Errorf("clear cart of user %d: %w", userID, err)
	}
	return s.refresh(ctx, userID)
}

type CheckoutRequest struct {
	ShippingAddress string
	Phone           string
	PaymentMethod   string
	PaymentIntentID string
	PaymentDueDate  string
}

// Checkout places an order for everything in the caller's cart at the
// current product prices and empties the cart once the order is committed.
func (s *Service) Checkout(ctx context.Context, caller *models.User, req CheckoutRequest) (*models.Order, error) {
	var items []models.CartItem
	err := s.db.WithContext(ctx).
		Joins("JOIN carts ON carts.id = cart_items.cart_id").
		Where("carts.user_id = ?", caller.ID).
		Preload("Product").
		Order("cart_items.id").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("load cart of user %d: %w", caller.ID, err)
	}
	if len(items) == 0 {
		return nil, apperr.Validation("cart is empty")
	}

	lines := make([]orders.LineItem, 0, len(items))
	for _, it := range items {
		lines = append(lines, orders.LineItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     it.Product.Price.String(),
		})
	}

	order, err := orders.Place(ctx, s.db, caller, orders.PlaceRequest{
		Items:           lines,
		ShippingAddress: req.ShippingAddress,
		Phone:           req.Phone,
		PaymentMethod:   req.PaymentMethod,
		PaymentIntentID: req.PaymentIntentID,
		PaymentDueDate:  req.PaymentDueDate,
	})
	if err != nil {
		return nil, err
	}

	if err := s.removeCheckedOut(ctx, caller.ID, items); err != nil {
		s.log.Error("clear cart after checkout failed",
			zap.Uint("user_id", caller.ID), zap.Uint("order_id", order.ID), zap.Error(err))
	}
	return order, nil
}

// removeCheckedOut deletes only the lines that went into the order, so an
// item added while the order was being placed stays in the cart.
func (s *Service) removeCheckedOut(ctx context.Context, userID uint, items []models.CartItem) error {
	ids := make([]uint, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.CartItem{}).Error; err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, cacheKey(userID)); err != nil {
		s.log.Warn("cart cache delete failed", zap.Uint("user_id", userID), zap.Error(err))
	}
	return nil
}

// refresh drops the cached cart and reloads it.
func (s *Service) refresh(ctx context.Context, userID uint) (*View, error) {
	if err := s.cache.Delete(ctx, cacheKey(userID)); err != nil {
		s.log.Warn("cart cache delete failed", zap.Uint("user_id", userID), zap.Error(err))
	}
	return s.Get(ctx, userID)
}

func (s *Service) load(ctx context.Context, userID uint) (*View, error) {
	var c *models.Cart
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if c, err = getOrCreate(tx, userID); err != nil {
			return err
		}
		return tx.Preload("Product").Where("cart_id = ?", c.ID).Order("id").Find(&c.Items).Error
	})
	if err != nil {
		return nil, fmt.Errorf("load cart of user %d: %w", userID, err)
	}
	return newView(c), nil
}

func newView(c *models.Cart) *View {
	v := &View{
		ID:         c.ID,
		UserID:     c.UserID,
		Items:      make([]ItemView, 0, len(c.Items)),
		TotalPrice: decimal.Zero,
		UpdatedAt:  c.UpdatedAt,
	}
	for _, it := range c.Items {
		iv := ItemView{ID: it.ID, ProductID: it.ProductID, Quantity: it.Quantity}
		if p := it.Product; p != nil {
			iv.Name = p.Name
			iv.ImageURL = p.ImageURL
			iv.ShopID = p.ShopID
			iv.Price = p.Price
			iv.Stock = p.Stock
			iv.Available = p.Available()
			iv.Subtotal = p.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
		}
		v.Items = append(v.Items, iv)
		v.TotalItems += it.Quantity
		v.TotalPrice = v.TotalPrice.Add(iv.Subtotal)
	}
	return v
}

func getOrCreate(tx *gorm.DB, userID uint) (*models.Cart, error) {
	var c models.Cart
	if err := tx.Where(models.Cart{UserID: userID}).FirstOrCreate(&c).Error; err != nil {
		return nil, fmt.Errorf("get cart of user %d: %w", userID, err)
	}
	return &c, nil
}

func findItem(tx *gorm.DB, userID, itemID uint) (*models.CartItem, *models.Cart, error) {
	c, err := getOrCreate(tx, userID)
	if err != nil {
		return nil, nil, err
	}
	var item models.CartItem
	err = tx.Where("id = ? AND cart_id = ?", itemID, c.ID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, apperr.NotFound("cart item %d not found", itemID)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load cart item %d: %w", itemID, err)
	}
	return &item, c, nil
}

func touch(tx *gorm.DB, c *models.Cart) error {
	return tx.Model(c).Update("updated_at", time.Now().UTC()).Error
}
