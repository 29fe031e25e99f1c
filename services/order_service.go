package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/kendall-kelly/cafe-orders-api/metrics"
	"github.com/kendall-kelly/cafe-orders-api/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// OrderLineInput is one requested line of a new order
type OrderLineInput struct {
	ItemRef  uint
	Quantity int
	Size     string
	AddOns   []string
}

// CreateOrderInput is the payload of Create. DeclaredTotal is the total the
// client expects to pay; when set it must match the computed total.
type CreateOrderInput struct {
	Items         []OrderLineInput
	DeclaredTotal *decimal.Decimal
}

// ListOrdersFilter narrows ListAll. Zero values select the defaults.
type ListOrdersFilter struct {
	Status   string
	Page     int
	PageSize int
}

// OrderPage is one page of ListAll
type OrderPage struct {
	Orders      []models.Order
	Total       int64
	TotalPages  int
	CurrentPage int
	PageSize    int
}

// OrderService runs the order lifecycle: creation, status transitions and queries
type OrderService struct {
	db          *gorm.DB
	catalog     Catalog
	broadcaster Broadcaster
	logger      *zap.Logger
	metrics     *metrics.Metrics
	locks       *keyedMutex
	now         func() time.Time
}

// NewOrderService creates an order service. metrics may be nil.
func NewOrderService(db *gorm.DB, catalog Catalog, broadcaster Broadcaster, logger *zap.Logger, m *metrics.Metrics) *OrderService {
	return &OrderService{
		db:          db,
		catalog:     catalog,
		broadcaster: broadcaster,
		logger:      logger,
		metrics:     m,
		locks:       newKeyedMutex(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Create prices the requested lines against the catalog, stores the order as
// pending and notifies staff
func (s *OrderService) Create(ctx context.Context, p Principal, input CreateOrderInput) (*models.Order, error) {
	if err := Authorize(p, RoleCustomer); err != nil {
		return nil, err
	}
	if len(input.Items) == 0 {
		return nil, newError(CodeValidation, "Order must contain at least one item")
	}

	order := models.Order{
		CustomerID: p.ID,
		Status:     models.OrderStatusPending,
		Items:      make([]models.OrderItem, 0, len(input.Items)),
	}
	for i, line := range input.Items {
		item, err := s.priceLine(ctx, i, line)
		if err != nil {
			return nil, err
		}
		order.Items = append(order.Items, *item)
	}
	order.TotalAmount = order.ItemsTotal()

	if input.DeclaredTotal != nil && !input.DeclaredTotal.Equal(order.TotalAmount) {
		return nil, newError(CodeTotalMismatch, "Order total %s does not match the calculated total %s",
			input.DeclaredTotal.StringFixed(2), order.TotalAmount.StringFixed(2))
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&order).Error
	})
	if err != nil {
		return nil, internalError("Failed to create order", err)
	}

	s.metrics.OrderCreated()
	s.logger.Info("Order created",
		zap.Uint("order_id", order.ID),
		zap.String("customer_id", order.CustomerID),
		zap.String("total", order.TotalAmount.StringFixed(2)),
	)
	s.broadcaster.Publish(StaffAudience, EventNewOrder, order)

	return &order, nil
}

func (s *OrderService) priceLine(ctx context.Context, index int, line OrderLineInput) (*models.OrderItem, error) {
	if line.ItemRef == 0 {
		return nil, newError(CodeValidation, "Item %d: item_ref is required", index+1)
	}
	if line.Quantity < 1 {
		return nil, newError(CodeValidation, "Item %d: quantity must be at least 1", index+1)
	}

	item, err := s.catalog.Resolve(ctx, line.ItemRef)
	if err != nil {
		var svcErr *ServiceError
		if errors.As(err, &svcErr) {
			return nil, svcErr
		}
		return nil, internalError("Failed to look up menu item", err)
	}
	if !item.Available {
		return nil, newError(CodeItemUnavailable, "%s is currently unavailable", item.Name)
	}

	unitPrice := item.BasePrice
	size := strings.TrimSpace(line.Size)
	if size != "" {
		price, ok := item.Sizes[size]
		if !ok {
			return nil, newError(CodeValidation, "%s is not available in size %q", item.Name, size)
		}
		unitPrice = price
	}

	addOns := make([]string, 0, len(line.AddOns))
	seen := make(map[string]bool, len(line.AddOns))
	for _, raw := range line.AddOns {
		name := strings.TrimSpace(raw)
		price, ok := item.AddOns[name]
		if !ok {
			return nil, newError(CodeValidation, "%s has no add-on %q", item.Name, name)
		}
		if seen[name] {
			return nil, newError(CodeValidation, "Add-on %q listed more than once", name)
		}
		seen[name] = true
		unitPrice = unitPrice.Add(price)
		addOns = append(addOns, name)
	}

	return &models.OrderItem{
		MenuItemID: item.ID,
		Name:       item.Name,
		Size:       size,
		AddOns:     addOns,
		Quantity:   line.Quantity,
		UnitPrice:  unitPrice,
	}, nil
}

// Transition moves an order to newStatus (admin only) and notifies its customer.
// The update only applies if the order still has the status it was read with,
// so of two racing transitions from the same status exactly one wins.
func (s *OrderService) Transition(ctx context.Context, p Principal, orderID uint, newStatus string) (*models.Order, error) {
	if err := Authorize(p, RoleAdmin); err != nil {
		return nil, err
	}
	next, ok := models.ParseOrderStatus(newStatus)
	if !ok {
		return nil, newError(CodeValidation, "Invalid status %q", newStatus)
	}

	unlock := s.locks.Lock(orderID)
	defer unlock()

	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}

	current := order.Status
	if !current.CanTransitionTo(next) {
		return nil, newError(CodeInvalidTransition, "Cannot change order status from %s to %s", current, next)
	}

	now := s.now()
	result := s.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, current).
		Updates(map[string]interface{}{
			"status":     next,
			"updated_at": now,
		})
	if result.Error != nil {
		return nil, internalError("Failed to update order status", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, newError(CodeInvalidTransition, "Order status changed concurrently, expected %s", current)
	}

	order.Status = next
	order.UpdatedAt = now

	s.metrics.OrderTransitioned(string(current), string(next))
	s.logger.Info("Order status changed",
		zap.Uint("order_id", order.ID),
		zap.String("from", string(current)),
		zap.String("to", string(next)),
		zap.String("actor", p.ID),
	)
	// Published while holding the order lock so events for one order keep commit order
	s.broadcaster.Publish(CustomerAudience(order.CustomerID), EventOrderStatusChanged, OrderStatusChanged{
		OrderID:    order.ID,
		Status:     string(next),
		CustomerID: order.CustomerID,
	})

	return order, nil
}

// Get returns one order. Customers may only read their own orders.
func (s *OrderService) Get(ctx context.Context, p Principal, orderID uint) (*models.Order, error) {
	if err := Authorize(p, RoleCustomer); err != nil {
		return nil, err
	}
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := AuthorizeOwner(p, order.CustomerID); err != nil {
		return nil, err
	}
	return order, nil
}

// ListMine returns the caller's orders, newest first
func (s *OrderService) ListMine(ctx context.Context, p Principal) ([]models.Order, error) {
	if err := Authorize(p, RoleCustomer); err != nil {
		return nil, err
	}

	orders := make([]models.Order, 0)
	err := s.withItems(s.db.WithContext(ctx)).
		Where("customer_id = ?", p.ID).
		Order("created_at DESC, id DESC").
		Find(&orders).Error
	if err != nil {
		return nil, internalError("Failed to fetch orders", err)
	}
	return orders, nil
}

// ListAll returns one page of all orders, newest first (admin only)
func (s *OrderService) ListAll(ctx context.Context, p Principal, filter ListOrdersFilter) (*OrderPage, error) {
	if err := Authorize(p, RoleAdmin); err != nil {
		return nil, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	byStatus := func(db *gorm.DB) *gorm.DB { return db }
	if filter.Status != "" {
		status, ok := models.ParseOrderStatus(filter.Status)
		if !ok {
			return nil, newError(CodeValidation, "Invalid status %q", filter.Status)
		}
		byStatus = func(db *gorm.DB) *gorm.DB {
			return db.Where("status = ?", status)
		}
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Order{}).Scopes(byStatus).Count(&total).Error; err != nil {
		return nil, internalError("Failed to count orders", err)
	}

	result := &OrderPage{
		Orders:      make([]models.Order, 0),
		Total:       total,
		TotalPages:  int(math.Ceil(float64(total) / float64(pageSize))),
		CurrentPage: page,
		PageSize:    pageSize,
	}
	// Past the last page there is nothing to fetch, and the offset could overflow
	if page > result.TotalPages {
		return result, nil
	}

	err := s.withItems(s.db.WithContext(ctx)).
		Scopes(byStatus).
		Order("created_at DESC, id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&result.Orders).Error
	if err != nil {
		return nil, internalError("Failed to fetch orders", err)
	}
	return result, nil
}

func (s *OrderService) load(ctx context.Context, orderID uint) (*models.Order, error) {
	var order models.Order
	err := s.withItems(s.db.WithContext(ctx)).First(&order, orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, newError(CodeOrderNotFound, "Order not found")
	}
	if err != nil {
		return nil, internalError("Failed to fetch order", err)
	}
	return &order, nil
}

func (s *OrderService) withItems(db *gorm.DB) *gorm.DB {
	return db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("id ASC")
	})
}
