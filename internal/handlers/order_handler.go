package handlers

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Keoroanthony/shopnow-api/internal/apperr"
	"github.com/Keoroanthony/shopnow-api/internal/auth"
	"github.com/Keoroanthony/shopnow-api/internal/db"
	"github.com/Keoroanthony/shopnow-api/internal/events"
	"github.com/Keoroanthony/shopnow-api/internal/models"
	"github.com/Keoroanthony/shopnow-api/internal/notifier"
	"github.com/Keoroanthony/shopnow-api/internal/orders"
)

// effectTimeout bounds the post-commit publish and notify work of a single
// request.
const effectTimeout = 30 * time.Second

// Effects runs the side effects of a committed order write. They never
// affect the response.
type Effects struct {
	Publisher events.Publisher
	Notifier  notifier.Notifier
	Log       *zap.Logger
}

func (e *Effects) publisher() events.Publisher {
	if e == nil || e.Publisher == nil {
		return events.Nop{}
	}
	return e.Publisher
}

func (e *Effects) notifier() notifier.Notifier {
	if e == nil || e.Notifier == nil {
		return notifier.Nop{}
	}
	return e.Notifier
}

func (e *Effects) logger() *zap.Logger {
	if e == nil || e.Log == nil {
		return zap.L()
	}
	return e.Log
}

func (e *Effects) publish(ctx context.Context, ev events.Event) {
	if err := e.publisher().Publish(ctx, ev); err != nil {
		e.logger().Warn("publish order event failed",
			zap.String("event_type", string(ev.Type)),
			zap.Uint("order_id", ev.OrderID),
			zap.Error(err))
	}
}

// OrderPlaced publishes order.created and notifies the buyer.
func (e *Effects) OrderPlaced(buyer models.User, order models.Order) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), effectTimeout)
		defer cancel()

		e.publish(ctx, events.New(events.OrderCreated, &order))
		e.notifier().OrderPlaced(ctx, &buyer, &order)
	}()
}

// StatusChanged publishes order.status_changed when a write moved the order.
func (e *Effects) StatusChanged(actor *models.User, change *orders.StatusChange) {
	if change == nil || !change.Changed {
		return
	}
	ev := events.New(events.OrderStatusChanged, change.Order)
	ev.PreviousStatus = change.From
	ev.ActorID = actor.ID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), effectTimeout)
		defer cancel()
		e.publish(ctx, ev)
	}()
}

// CreditDecided publishes order.credit_decided, a status change when the
// decision moved the order, and notifies the order's owner.
func (e *Effects) CreditDecided(actor *models.User, res *orders.DecisionResult) {
	decided := events.New(events.OrderCreditDecided, res.Order)
	decided.PreviousStatus = res.FromStatus
	decided.ActorID = actor.ID
	order := *res.Order
	database := db.DB

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), effectTimeout)
		defer cancel()

		e.publish(ctx, decided)
		if res.StatusChanged {
			moved := events.New(events.OrderStatusChanged, &order)
			moved.PreviousStatus = res.FromStatus
			moved.ActorID = actor.ID
			e.publish(ctx, moved)
		}

		var owner models.User
		if err := database.WithContext(ctx).First(&owner, order.UserID).Error; err != nil {
			e.logger().Warn("load order owner for notification failed",
				zap.Uint("order_id", order.ID), zap.Error(err))
			return
		}
		e.notifier().CreditDecided(ctx, &owner, &order)
	}()
}

// OrderHandler serves /api/orders.
type OrderHandler struct {
	effects *Effects
}

func NewOrderHandler(effects *Effects) *OrderHandler {
	return &OrderHandler{effects: effects}
}

// flexPrice accepts a JSON number or a JSON string and keeps the literal
// text, so "9.99" and 9.99 both reach decimal parsing unchanged.
type flexPrice string

func (p *flexPrice) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*p = ""
		return nil
	}
	*p = flexPrice(bytes.Trim(b, `"`))
	return nil
}

type OrderItemRequest struct {
	Product  uint      `json:"product"`
	Quantity int       `json:"quantity"`
	Price    flexPrice `json:"price"`
}

type CreateOrderRequest struct {
	OrderItems      []OrderItemRequest `json:"orderItems"`
	ShippingAddress string             `json:"shippingAddress"`
	// TotalPrice is accepted for client compatibility. The server computes
	// the total from the line items.
	TotalPrice      flexPrice `json:"totalPrice"`
	PaymentMethod   string    `json:"paymentMethod"`
	PaymentIntentID string    `json:"paymentIntentId"`
	PaymentDueDate  string    `json:"paymentDueDate"`
	PhoneNumber     string    `json:"phoneNumber"`
}

type statusRequest struct {
	Status models.OrderStatus `json:"status" binding:"required"`
}

type AdminStatusRequest struct {
	OrderID uint               `json:"order_id" binding:"required"`
	Status  models.OrderStatus `json:"status" binding:"required"`
}

type CreditDecisionRequest struct {
	OrderID uint   `json:"order_id" binding:"required"`
	Action  string `json:"action" binding:"required"`
	Note    string `json:"note"`
}

// GET /api/orders/
func (h *OrderHandler) List(c *gin.Context) {
	list, err := orders.ListForUser(c.Request.Context(), db.DB, auth.CurrentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// POST /api/orders/
func (h *OrderHandler) Create(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	place := orders.PlaceRequest{
		Items:           make([]orders.LineItem, 0, len(req.OrderItems)),
		ShippingAddress: req.ShippingAddress,
		Phone:           req.PhoneNumber,
		PaymentMethod:   req.PaymentMethod,
		PaymentIntentID: req.PaymentIntentID,
		PaymentDueDate:  req.PaymentDueDate,
	}
	for _, it := range req.OrderItems {
		place.Items = append(place.Items, orders.LineItem{
			ProductID: it.Product,
			Quantity:  it.Quantity,
			Price:     string(it.Price),
		})
	}

	caller := auth.CurrentUser(c)
	order, err := orders.Place(c.Request.Context(), db.DB, caller, place)
	if err != nil {
		respondError(c, err, placeFields(caller, place)...)
		return
	}

	h.effects.OrderPlaced(*caller, *order)
	c.JSON(http.StatusCreated, order)
}

// placeFields carries the whole placement input so a failed order can be
// reconstructed from the log line.
func placeFields(caller *models.User, place orders.PlaceRequest) []zap.Field {
	return []zap.Field{
		zap.Uint("user_id", caller.ID),
		zap.Any("items", place.Items),
		zap.String("shipping_address", place.ShippingAddress),
		zap.String("phone", place.Phone),
		zap.String("payment_method", place.PaymentMethod),
		zap.String("payment_intent_id", place.PaymentIntentID),
		zap.String("payment_due_date", place.PaymentDueDate),
	}
}

// GET /api/orders/:id/
func (h *OrderHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	order, err := orders.Get(c.Request.Context(), db.DB, auth.CurrentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// PATCH /api/orders/:id/ with {"status":"cancelled"}. Owners can only
// cancel; every other status change goes through the admin endpoint.
func (h *OrderHandler) Cancel(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	if req.Status != models.OrderCancelled {
		respondError(c, apperr.Validation("only cancellation is allowed here"))
		return
	}

	caller := auth.CurrentUser(c)
	change, err := orders.Cancel(c.Request.Context(), db.DB, caller, id)
	if err != nil {
		respondError(c, err, zap.Uint("order_id", id))
		return
	}
	h.effects.StatusChanged(caller, change)
	c.JSON(http.StatusOK, change.Order)
}

// GET /api/orders/admin/?status=&user_id=&shop_id=
func (h *OrderHandler) AdminList(c *gin.Context) {
	userID, ok := queryID(c, "user_id")
	if !ok {
		return
	}
	shopID, ok := queryID(c, "shop_id")
	if !ok {
		return
	}
	filter := orders.AdminFilter{
		Status: models.OrderStatus(c.Query("status")),
		UserID: userID,
		ShopID: shopID,
	}
	list, err := orders.ListAdmin(c.Request.Context(), db.DB, auth.CurrentUser(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// PATCH /api/orders/admin/
func (h *OrderHandler) AdminUpdate(c *gin.Context) {
	caller := auth.CurrentUser(c)
	if !caller.IsAdmin() {
		respondError(c, apperr.Forbidden("staff only"))
		return
	}
	var req AdminStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "order_id and status are required"})
		return
	}

	change, err := orders.AdminUpdateStatus(c.Request.Context(), db.DB, caller, req.OrderID, req.Status)
	if err != nil {
		respondError(c, err, zap.Uint("order_id", req.OrderID), zap.String("status", string(req.Status)))
		return
	}
	h.effects.StatusChanged(caller, change)
	c.JSON(http.StatusOK, change.Order)
}

// PATCH /api/orders/credit/decision/
func (h *OrderHandler) CreditDecision(c *gin.Context) {
	var req CreditDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "order_id and action are required"})
		return
	}

	caller := auth.CurrentUser(c)
	res, err := orders.DecideCredit(c.Request.Context(), db.DB, caller, orders.Decision{
		OrderID: req.OrderID,
		Action:  orders.CreditAction(req.Action),
		Note:    req.Note,
	})
	if err != nil {
		respondError(c, err, zap.Uint("order_id", req.OrderID), zap.String("action", req.Action))
		return
	}
	h.effects.CreditDecided(caller, res)
	c.JSON(http.StatusOK, res.Order)
}

// GET /api/orders/shop-owner/
func (h *OrderHandler) ShopOwnerList(c *gin.Context) {
	list, err := orders.ListForShopOwner(c.Request.Context(), db.DB, auth.CurrentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// GET /api/orders/credits/mine/?upcoming=true
func (h *OrderHandler) MyCredits(c *gin.Context) {
	upcoming := c.Query("upcoming") == "true"
	list, err := orders.MyCredits(c.Request.Context(), db.DB, auth.CurrentUser(c), upcoming, time.Now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// GET /api/orders/credits/stats/
func (h *OrderHandler) CreditStats(c *gin.Context) {
	stats, err := orders.GetCreditStats(c.Request.Context(), db.DB, auth.CurrentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GET /api/orders/credits/by-user/
func (h *OrderHandler) CreditsByUser(c *gin.Context) {
	list, err := orders.CreditsByUser(c.Request.Context(), db.DB, auth.CurrentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}
