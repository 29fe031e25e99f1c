package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/cafe-orders-api/services"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderLineRequest is one line of a create order request
type OrderLineRequest struct {
	ItemRef  uint     `json:"item_ref" binding:"required"`
	Quantity int      `json:"quantity" binding:"required,gt=0"`
	Size     string   `json:"size"`
	AddOns   []string `json:"add_ons"`
}

// CreateOrderRequest represents the request body for creating an order.
// TotalAmount is optional; when present it must match the calculated total.
type CreateOrderRequest struct {
	Items       []OrderLineRequest `json:"items" binding:"required,min=1,dive"`
	TotalAmount *decimal.Decimal   `json:"total_amount"`
}

// UpdateOrderStatusRequest represents the request body for changing an order's status
type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// OrderController serves the order endpoints
type OrderController struct {
	orders *services.OrderService
	logger *zap.Logger
}

func NewOrderController(orders *services.OrderService, logger *zap.Logger) *OrderController {
	return &OrderController{orders: orders, logger: logger}
}

// CreateOrder handles POST /api/v1/orders
func (ctl *OrderController) CreateOrder(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, "Invalid request data", err)
		return
	}

	input := services.CreateOrderInput{
		Items:         make([]services.OrderLineInput, 0, len(req.Items)),
		DeclaredTotal: req.TotalAmount,
	}
	for _, line := range req.Items {
		input.Items = append(input.Items, services.OrderLineInput{
			ItemRef:  line.ItemRef,
			Quantity: line.Quantity,
			Size:     line.Size,
			AddOns:   line.AddOns,
		})
	}

	order, err := ctl.orders.Create(c.Request.Context(), p, input)
	if err != nil {
		respondError(c, ctl.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    order,
	})
}

// ListMyOrders handles GET /api/v1/orders/mine
func (ctl *OrderController) ListMyOrders(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	orders, err := ctl.orders.ListMine(c.Request.Context(), p)
	if err != nil {
		respondError(c, ctl.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    orders,
	})
}

// ListOrders handles GET /api/v1/orders?status=&page=&limit= (admin only)
func (ctl *OrderController) ListOrders(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	page, err := queryInt(c, "page", 1)
	if err != nil {
		respondValidationError(c, "page must be a positive integer", nil)
		return
	}
	limit, err := queryInt(c, "limit", services.DefaultPageSize)
	if err != nil {
		respondValidationError(c, "limit must be a positive integer", nil)
		return
	}

	result, err := ctl.orders.ListAll(c.Request.Context(), p, services.ListOrdersFilter{
		Status:   c.Query("status"),
		Page:     page,
		PageSize: limit,
	})
	if err != nil {
		respondError(c, ctl.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result.Orders,
		"pagination": gin.H{
			"page":       result.CurrentPage,
			"limit":      result.PageSize,
			"total":      result.Total,
			"totalPages": result.TotalPages,
		},
	})
}

// GetOrder handles GET /api/v1/orders/:id
func (ctl *OrderController) GetOrder(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	orderID, ok := idParam(c, "order")
	if !ok {
		return
	}

	order, err := ctl.orders.Get(c.Request.Context(), p, orderID)
	if err != nil {
		respondError(c, ctl.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    order,
	})
}

// UpdateOrderStatus handles PATCH /api/v1/orders/:id/status (admin only)
func (ctl *OrderController) UpdateOrderStatus(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	orderID, ok := idParam(c, "order")
	if !ok {
		return
	}

	var req UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, "Invalid request data", err)
		return
	}

	order, err := ctl.orders.Transition(c.Request.Context(), p, orderID, req.Status)
	if err != nil {
		respondError(c, ctl.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    order,
	})
}

func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return 0, strconv.ErrSyntax
	}
	return value, nil
}
