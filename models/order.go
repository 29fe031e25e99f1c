package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order represents a customer order. Orders are never deleted; they are kept for
// analytics and audit.
type Order struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	CustomerID  string          `gorm:"not null;index" json:"customer_id"` // principal subject of the customer who placed it
	Items       []OrderItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:RESTRICT" json:"items"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"total_amount"`
	Status      OrderStatus     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	CreatedAt   time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// TableName specifies the table name for the Order model
func (Order) TableName() string {
	return "orders"
}

// OrderItem is one line of an order. UnitPrice is the price captured when the
// order was placed and is never re-read from the menu.
type OrderItem struct {
	ID         uint            `gorm:"primaryKey" json:"-"`
	OrderID    uint            `gorm:"not null;index" json:"-"`
	MenuItemID uint            `gorm:"not null;index" json:"item_ref"`
	Name       string          `gorm:"not null" json:"name"`
	Size       string          `json:"size,omitempty"`
	AddOns     []string        `gorm:"serializer:json" json:"add_ons,omitempty"`
	Quantity   int             `gorm:"not null;check:quantity > 0" json:"quantity"`
	UnitPrice  decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"unit_price"`
}

// TableName specifies the table name for the OrderItem model
func (OrderItem) TableName() string {
	return "order_items"
}

// LineTotal returns quantity x unit price for the line
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// ItemsTotal sums the line totals of the order
func (o *Order) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.LineTotal())
	}
	return total
}
