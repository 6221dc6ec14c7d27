package orders

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Keoroanthony/shopnow-api/internal/apperr"
	"github.com/Keoroanthony/shopnow-api/internal/models"
)

// DueDateLayout is the accepted format of a credit payment due date.
const DueDateLayout = "2006-01-02"

// LineItem is one requested product line. Price is the unit price the
// client saw; it is snapshotted onto the order item as-is.
type LineItem struct {
	ProductID uint
	Quantity  int
	Price     string
}

type PlaceRequest struct {
	Items           []LineItem
	ShippingAddress string
	Phone           string
	PaymentMethod   string
	PaymentIntentID string
	PaymentDueDate  string
}

type parsedLine struct {
	LineItem
	price decimal.Decimal
}

func validate(req PlaceRequest) ([]parsedLine, error) {
	if len(req.Items) == 0 {
		return nil, apperr.Validation("no order items")
	}
	if strings.TrimSpace(req.ShippingAddress) == "" {
		return nil, apperr.Validation("shipping address is required")
	}

	lines := make([]parsedLine, 0, len(req.Items))
	for _, it := range req.Items {
		if it.Quantity <= 0 {
			return nil, apperr.Validation("invalid quantity %d for product %d", it.Quantity, it.ProductID)
		}
		price, err := decimal.NewFromString(strings.TrimSpace(it.Price))
		if err != nil {
			return nil, apperr.Validation("invalid price %q for product %d", it.Price, it.ProductID)
		}
		if price.IsNegative() {
			return nil, apperr.Validation("negative price for product %d", it.ProductID)
		}
		if !price.Equal(price.Round(2)) {
			return nil, apperr.Validation("invalid price %q for product %d: at most two decimal places", it.Price, it.ProductID)
		}
		lines = append(lines, parsedLine{LineItem: it, price: price})
	}
	return lines, nil
}

// Place creates an order for caller. Input is validated before anything is
// touched; the stock check and decrement happen under row locks and the
// whole placement commits or rolls back as one unit.
func Place(ctx context.Context, database *gorm.DB, caller *models.User, req PlaceRequest) (*models.Order, error) {
	if caller == nil {
		return nil, apperr.Forbidden("authentication required")
	}
	lines, err := validate(req)
	if err != nil {
		return nil, err
	}

	credit := req.PaymentMethod == models.PaymentCredit
	var dueDate *time.Time
	if credit && req.PaymentDueDate != "" {
		d, err := time.Parse(DueDateLayout, req.PaymentDueDate)
		if err != nil {
			return nil, apperr.Validation("invalid payment due date %q, expected YYYY-MM-DD", req.PaymentDueDate)
		}
		dueDate = &d
	}

	var order models.Order
	err = database.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := lockProducts(tx, productIDs(lines))
		if err != nil {
			return err
		}

		shopID, single := singleShop(locked)
		if credit && !single {
			return apperr.Validation("credit orders must contain products from exactly one shop")
		}

		order = models.Order{
			UserID:          caller.ID,
			Status:          models.OrderPending,
			TotalPrice:      decimal.Zero,
			PaymentMethod:   req.PaymentMethod,
			PaymentIntentID: req.PaymentIntentID,
			CreditStatus:    models.CreditNone,
			ShippingAddress: req.ShippingAddress,
			Phone:           req.Phone,
		}
		if single {
			order.ShopID = &shopID
		}
		if credit {
			order.CreditStatus = models.CreditRequested
			order.PaymentDueDate = dueDate
		}
		if err := tx.Omit(clause.Associations).Create(&order).Error; err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		total := decimal.Zero
		items := make([]models.OrderItem, 0, len(lines))
		for _, line := range lines {
			p := locked[line.ProductID]
			if line.Quantity > p.Stock {
				return apperr.Validation("insufficient stock for %s: requested %d, available %d", p.Name, line.Quantity, p.Stock)
			}
			p.Stock -= line.Quantity
			if err := tx.Model(p).Update("stock", p.Stock).Error; err != nil {
				return fmt.Errorf("decrement stock of product %d: %w", p.ID, err)
			}

			item := models.OrderItem{
				OrderID:   order.ID,
				ProductID: p.ID,
				Quantity:  line.Quantity,
				Price:     line.price,
			}
			if err := tx.Omit(clause.Associations).Create(&item).Error; err != nil {
				return fmt.Errorf("create order item: %w", err)
			}
			total = total.Add(item.Subtotal)
			items = append(items, item)
		}

		if err := tx.Model(&order).Update("total_price", total).Error; err != nil {
			return fmt.Errorf("update order total: %w", err)
		}
		order.TotalPrice = total
		order.Items = items
		order.StatusHistory = []models.OrderStatusHistory{}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func productIDs(lines []parsedLine) []uint {
	ids := make([]uint, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

// lockProducts locks the rows of ids in ascending order and returns them by
// id. ids must be sorted. A missing product fails the placement.
func lockProducts(tx *gorm.DB, ids []uint) (map[uint]*models.Product, error) {
	var products []models.Product
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id").
		Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}

	byID := make(map[uint]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			return nil, apperr.Validation("order creation failed: product %d not found", id)
		}
	}
	return byID, nil
}

// singleShop returns the shop shared by every product. A product without a
// shop counts as its own distinct shop.
func singleShop(products map[uint]*models.Product) (uint, bool) {
	var shopID uint
	for _, p := range products {
		if p.ShopID == nil {
			return 0, false
		}
		if shopID == 0 {
			shopID = *p.ShopID
		} else if shopID != *p.ShopID {
			return 0, false
		}
	}
	return shopID, shopID != 0
}
