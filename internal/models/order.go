package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderPaid       OrderStatus = "paid"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
	OrderCompleted  OrderStatus = "completed"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderPaid, OrderProcessing, OrderShipped,
		OrderDelivered, OrderCancelled, OrderCompleted:
		return true
	}
	return false
}

type CreditStatus string

const (
	CreditNone      CreditStatus = "none"
	CreditRequested CreditStatus = "requested"
	CreditApproved  CreditStatus = "approved"
	CreditRejected  CreditStatus = "rejected"
	CreditPaid      CreditStatus = "paid"
)

// PaymentCredit is the payment method that defers payment behind a shop
// owner's approval.
const PaymentCredit = "credit"

type Order struct {
	ID                 uint                 `gorm:"primaryKey" json:"id"`
	UserID             uint                 `gorm:"index;not null" json:"user_id"`
	User               *User                `gorm:"foreignKey:UserID" json:"-"`
	Status             OrderStatus          `gorm:"type:varchar(20);index;not null;default:pending" json:"status"`
	TotalPrice         decimal.Decimal      `gorm:"type:decimal(12,2);not null;default:0" json:"total_price"`
	PaymentMethod      string               `json:"payment_method"`
	PaymentIntentID    string               `json:"payment_intent_id,omitempty"`
	CreditStatus       CreditStatus         `gorm:"type:varchar(20);index;not null;default:none" json:"credit_status"`
	ShopID             *uint                `gorm:"index" json:"shop_id"`
	Shop               *Shop                `gorm:"foreignKey:ShopID;constraint:OnDelete:SET NULL" json:"-"`
	PaymentDueDate     *time.Time           `gorm:"type:date" json:"payment_due_date"`
	ShippingAddress    string               `gorm:"not null" json:"shipping_address"`
	Phone              string               `json:"phone"`
	CreditDecisionAt   *time.Time           `json:"credit_decision_at"`
	CreditDecisionByID *uint                `json:"credit_decision_by"`
	CreditNote         string               `json:"credit_note"`
	Items              []OrderItem          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	StatusHistory      []OrderStatusHistory `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"status_history"`
	CreatedAt          time.Time            `gorm:"index" json:"created_at"`
	UpdatedAt          time.Time            `json:"updated_at"`
}

// IsCredit reports whether the order was placed with deferred payment.
func (o *Order) IsCredit() bool {
	return o.PaymentMethod == PaymentCredit
}

type OrderItem struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	OrderID   uint            `gorm:"index;not null" json:"order_id"`
	ProductID uint            `gorm:"index;not null" json:"product_id"`
	Product   *Product        `gorm:"constraint:OnDelete:RESTRICT" json:"-"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	Price     decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	Subtotal  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	CreatedAt time.Time       `json:"created_at"`
}

// ComputeSubtotal recomputes Subtotal from Price and Quantity. It runs on
// every write so a stored subtotal is never trusted.
func (i *OrderItem) ComputeSubtotal() {
	i.Subtotal = i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

func (i *OrderItem) BeforeSave(tx *gorm.DB) error {
	i.ComputeSubtotal()
	return nil
}

type OrderStatusHistory struct {
	ID         uint        `gorm:"primaryKey" json:"id"`
	OrderID    uint        `gorm:"index;not null" json:"order_id"`
	FromStatus OrderStatus `gorm:"type:varchar(20);not null" json:"from_status"`
	ToStatus   OrderStatus `gorm:"type:varchar(20);not null" json:"to_status"`
	ChangedAt  time.Time   `gorm:"not null" json:"changed_at"`
}

func (OrderStatusHistory) TableName() string {
	return "order_status_history"
}
