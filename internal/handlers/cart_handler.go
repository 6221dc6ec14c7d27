package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Keoroanthony/shopnow-api/internal/auth"
	"github.com/Keoroanthony/shopnow-api/internal/cart"
)

type CartHandler struct {
	carts   *cart.Service
	effects *Effects
}

func NewCartHandler(carts *cart.Service, effects *Effects) *CartHandler {
	return &CartHandler{carts: carts, effects: effects}
}

type AddCartItemRequest struct {
	ProductID uint `json:"product_id" binding:"required"`
	Quantity  int  `json:"quantity"`
}

type UpdateCartItemRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

type CheckoutRequest struct {
	ShippingAddress string `json:"shippingAddress"`
	PhoneNumber     string `json:"phoneNumber"`
	PaymentMethod   string `json:"paymentMethod"`
	PaymentIntentID string `json:"paymentIntentId"`
	PaymentDueDate  string `json:"paymentDueDate"`
}

// GET /api/cart
func (h *CartHandler) Get(c *gin.Context) {
	view, err := h.carts.Get(c.Request.Context(), auth.CurrentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// GET /api/cart/totals
func (h *CartHandler) Totals(c *gin.Context) {
	totals, err := h.carts.GetTotals(c.Request.Context(), auth.CurrentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, totals)
}

// POST /api/cart/items
func (h *CartHandler) AddItem(c *gin.Context) {
	var req AddCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "product_id is required"})
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	view, err := h.carts.AddItem(c.Request.Context(), auth.CurrentUser(c).ID, req.ProductID, req.Quantity)
	if err != nil {
		respondError(c, err, zap.Uint("product_id", req.ProductID))
		return
	}
	c.JSON(http.StatusCreated, view)
}

// PATCH /api/cart/items/:id
func (h *CartHandler) UpdateItem(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quantity is required"})
		return
	}

	view, err := h.carts.UpdateItem(c.Request.Context(), auth.CurrentUser(c).ID, id, *req.Quantity)
	if err != nil {
		respondError(c, err, zap.Uint("item_id", id))
		return
	}
	c.JSON(http.StatusOK, view)
}

// DELETE /api/cart/items/:id
func (h *CartHandler) RemoveItem(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	view, err := h.carts.RemoveItem(c.Request.Context(), auth.CurrentUser(c).ID, id)
	if err != nil {
		respondError(c, err, zap.Uint("item_id", id))
		return
	}
	c.JSON(http.StatusOK, view)
}

// DELETE /api/cart
func (h *CartHandler) Clear(c *gin.Context) {
	view, err := h.carts.Clear(c.Request.Context(), auth.CurrentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// POST /api/cart/checkout
func (h *CartHandler) Checkout(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	caller := auth.CurrentUser(c)
	order, err := h.carts.Checkout(c.Request.Context(), caller, cart.CheckoutRequest{
		ShippingAddress: req.ShippingAddress,
		Phone:           req.PhoneNumber,
		PaymentMethod:   req.PaymentMethod,
		PaymentIntentID: req.PaymentIntentID,
		PaymentDueDate:  req.PaymentDueDate,
	})
	if err != nil {
		respondError(c, err, zap.Uint("user_id", caller.ID))
		return
	}

	h.effects.OrderPlaced(*caller, *order)
	c.JSON(http.StatusCreated, order)
}
