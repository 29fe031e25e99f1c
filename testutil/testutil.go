package testutil

import (
	"os"
	"testing"
	"time"

	"github.com/kendall-kelly/cafe-orders-api/config"
	"github.com/kendall-kelly/cafe-orders-api/models"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// RequireTestEnvironment ensures that tests are running in the test environment.
// This prevents accidental execution of tests against production or development databases.
// It will fail the test immediately if GO_ENV is not set to "test".
func RequireTestEnvironment(t *testing.T) {
	t.Helper()

	env := os.Getenv("GO_ENV")
	if env != "test" {
		t.Fatalf("SAFETY CHECK FAILED: Tests must run with GO_ENV=test to prevent data loss. Current GO_ENV=%q. Set GO_ENV=test before running tests.", env)
	}
}

// NewTestDB opens a migrated in-memory SQLite database that lives as long as the test.
// The pool is limited to one connection because every SQLite :memory: connection
// is a separate database.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	gormCfg := config.GormConfig(nil)
	gormCfg.Logger = logger.Default.LogMode(logger.Silent)

	db, err := gorm.Open(sqlite.Open(":memory:"), gormCfg)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get database instance: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		sqlDB.Close()
	})

	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

// Option is a size or add-on of a test menu item
type Option struct {
	Name  string
	Price string
}

// CreateMenuItem inserts an available menu item with the given sizes and add-ons
func CreateMenuItem(t *testing.T, db *gorm.DB, name, category, price string, sizes, addOns []Option) models.MenuItem {
	t.Helper()

	item := models.MenuItem{
		Name:        name,
		Description: name + " description",
		Category:    category,
		Price:       decimal.RequireFromString(price),
		Available:   true,
	}
	for _, s := range sizes {
		item.Sizes = append(item.Sizes, models.MenuItemSize{Name: s.Name, Price: decimal.RequireFromString(s.Price)})
	}
	for _, a := range addOns {
		item.AddOns = append(item.AddOns, models.MenuItemAddOn{Name: a.Name, Price: decimal.RequireFromString(a.Price)})
	}

	if err := db.Create(&item).Error; err != nil {
		t.Fatalf("Failed to create menu item: %v", err)
	}
	return item
}

// SetMenuItemAvailable flips the availability of a menu item
func SetMenuItemAvailable(t *testing.T, db *gorm.DB, id uint, available bool) {
	t.Helper()

	if err := db.Model(&models.MenuItem{}).Where("id = ?", id).Update("available", available).Error; err != nil {
		t.Fatalf("Failed to update menu item: %v", err)
	}
}

// Line is an order line inserted by CreateOrder
type Line struct {
	MenuItemID uint
	Name       string
	Quantity   int
	UnitPrice  string
}

// CreateOrder inserts an order directly, bypassing the lifecycle checks, so tests
// can place orders in any status and at any time
func CreateOrder(t *testing.T, db *gorm.DB, customerID string, status models.OrderStatus, createdAt time.Time, lines ...Line) models.Order {
	t.Helper()

	order := models.Order{
		CustomerID: customerID,
		Status:     status,
		CreatedAt:  createdAt.UTC(),
		UpdatedAt:  createdAt.UTC(),
	}
	for _, l := range lines {
		order.Items = append(order.Items, models.OrderItem{
			MenuItemID: l.MenuItemID,
			Name:       l.Name,
			Quantity:   l.Quantity,
			UnitPrice:  decimal.RequireFromString(l.UnitPrice),
		})
	}
	order.TotalAmount = order.ItemsTotal()

	if err := db.Create(&order).Error; err != nil {
		t.Fatalf("Failed to create order: %v", err)
	}
	return order
}
