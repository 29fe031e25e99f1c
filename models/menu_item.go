package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Menu categories
const (
	CategoryCoffee   = "coffee"
	CategoryTea      = "tea"
	CategoryPastry   = "pastry"
	CategorySandwich = "sandwich"
)

// MenuCategories lists the valid menu categories
var MenuCategories = []string{CategoryCoffee, CategoryTea, CategoryPastry, CategorySandwich}

// MenuItem is a catalog entry customers can order. ImageKey is the S3 key of the
// uploaded image; ImageURL is a presigned URL filled in when the item is served.
type MenuItem struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Name        string          `gorm:"not null" json:"name"`
	Description string          `gorm:"type:text;not null" json:"description"`
	Category    string          `gorm:"type:varchar(20);not null;index" json:"category"`
	Price       decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	ImageKey    *string         `json:"-"`
	ImageURL    *string         `gorm:"-" json:"image_url,omitempty"`
	Available   bool            `gorm:"not null;default:true" json:"available"`
	Sizes       []MenuItemSize  `gorm:"foreignKey:MenuItemID;constraint:OnDelete:CASCADE" json:"sizes"`
	AddOns      []MenuItemAddOn `gorm:"foreignKey:MenuItemID;constraint:OnDelete:CASCADE" json:"add_ons"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `gorm:"index" json:"-"`
}

// TableName specifies the table name for the MenuItem model
func (MenuItem) TableName() string {
	return "menu_items"
}

// MenuItemSize is a size option. Price is the full price of the item in that size.
type MenuItemSize struct {
	ID         uint            `gorm:"primaryKey" json:"-"`
	MenuItemID uint            `gorm:"not null;index" json:"-"`
	Name       string          `gorm:"not null" json:"name"`
	Price      decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
}

// TableName specifies the table name for the MenuItemSize model
func (MenuItemSize) TableName() string {
	return "menu_item_sizes"
}

// MenuItemAddOn is an optional extra whose price is added to the unit price
type MenuItemAddOn struct {
	ID         uint            `gorm:"primaryKey" json:"-"`
	MenuItemID uint            `gorm:"not null;index" json:"-"`
	Name       string          `gorm:"not null" json:"name"`
	Price      decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
}

// TableName specifies the table name for the MenuItemAddOn model
func (MenuItemAddOn) TableName() string {
	return "menu_item_add_ons"
}

// IsValidCategory reports whether category is one of MenuCategories
func IsValidCategory(category string) bool {
	for _, c := range MenuCategories {
		if c == category {
			return true
		}
	}
	return false
}

// AllModels returns every model that needs migrating, in dependency order
func AllModels() []interface{} {
	return []interface{}{
		&MenuItem{},
		&MenuItemSize{},
		&MenuItemAddOn{},
		&Order{},
		&OrderItem{},
	}
}
