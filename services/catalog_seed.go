package services

import (
	"context"
	"fmt"

	"github.com/kendall-kelly/cafe-orders-api/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type seedOption struct {
	name  string
	price int64
}

type seedItem struct {
	name        string
	description string
	category    string
	price       int64
	sizes       []seedOption
	addOns      []seedOption
}

var demoMenu = []seedItem{
	{
		name: "Espresso", description: "Rich and bold espresso shot", category: models.CategoryCoffee, price: 120,
		sizes:  []seedOption{{"Single", 120}, {"Double", 180}},
		addOns: []seedOption{{"Extra Shot", 40}, {"Decaf", 0}},
	},
	{
		name: "Cappuccino", description: "Espresso with steamed milk and foam", category: models.CategoryCoffee, price: 180,
		sizes:  []seedOption{{"Small", 180}, {"Medium", 220}, {"Large", 280}},
		addOns: []seedOption{{"Extra Shot", 40}, {"Vanilla Syrup", 25}, {"Caramel Syrup", 25}, {"Oat Milk", 30}},
	},
	{
		name: "Latte", description: "Smooth espresso with steamed milk", category: models.CategoryCoffee, price: 200,
		sizes:  []seedOption{{"Small", 200}, {"Medium", 250}, {"Large", 320}},
		addOns: []seedOption{{"Extra Shot", 40}, {"Vanilla Syrup", 25}, {"Hazelnut Syrup", 25}, {"Almond Milk", 30}},
	},
	{
		name: "Americano", description: "Espresso with hot water", category: models.CategoryCoffee, price: 150,
		sizes:  []seedOption{{"Small", 150}, {"Medium", 190}, {"Large", 240}},
		addOns: []seedOption{{"Extra Shot", 40}, {"Sugar", 0}, {"Cream", 15}},
	},
	{
		name: "Green Tea", description: "Fresh brewed green tea", category: models.CategoryTea, price: 80,
		sizes:  []seedOption{{"Small", 80}, {"Medium", 100}, {"Large", 130}},
		addOns: []seedOption{{"Honey", 15}, {"Lemon", 10}},
	},
	{
		name: "Earl Grey", description: "Classic Earl Grey tea with bergamot", category: models.CategoryTea, price: 90,
		sizes:  []seedOption{{"Small", 90}, {"Medium", 110}, {"Large", 140}},
		addOns: []seedOption{{"Milk", 20}, {"Sugar", 0}, {"Honey", 15}},
	},
	{
		name: "Croissant", description: "Buttery, flaky French croissant", category: models.CategoryPastry, price: 120,
		addOns: []seedOption{{"Butter", 10}, {"Jam", 20}},
	},
	{
		name: "Blueberry Muffin", description: "Fresh baked muffin with blueberries", category: models.CategoryPastry, price: 150,
	},
	{
		name: "Turkey Sandwich", description: "Fresh turkey with lettuce and tomato", category: models.CategorySandwich, price: 280,
		addOns: []seedOption{{"Cheese", 40}, {"Avocado", 60}, {"Bacon", 80}},
	},
	{
		name: "Veggie Wrap", description: "Fresh vegetables in a whole wheat wrap", category: models.CategorySandwich, price: 220,
		addOns: []seedOption{{"Hummus", 30}, {"Cheese", 40}},
	},
}

// SeedCatalog inserts the demo menu when the menu is empty. It returns the
// number of items created.
func SeedCatalog(ctx context.Context, db *gorm.DB, logger *zap.Logger) (int, error) {
	var count int64
	if err := db.WithContext(ctx).Model(&models.MenuItem{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count menu items: %w", err)
	}
	if count > 0 {
		logger.Info("Menu already populated, skipping seed", zap.Int64("items", count))
		return 0, nil
	}

	items := make([]models.MenuItem, 0, len(demoMenu))
	for _, seed := range demoMenu {
		item := models.MenuItem{
			Name:        seed.name,
			Description: seed.description,
			Category:    seed.category,
			Price:       decimal.NewFromInt(seed.price),
			Available:   true,
		}
		for _, size := range seed.sizes {
			item.Sizes = append(item.Sizes, models.MenuItemSize{Name: size.name, Price: decimal.NewFromInt(size.price)})
		}
		for _, addOn := range seed.addOns {
			item.AddOns = append(item.AddOns, models.MenuItemAddOn{Name: addOn.name, Price: decimal.NewFromInt(addOn.price)})
		}
		items = append(items, item)
	}

	if err := db.WithContext(ctx).Create(&items).Error; err != nil {
		return 0, fmt.Errorf("failed to seed menu: %w", err)
	}

	logger.Info("Seeded demo menu", zap.Int("items", len(items)))
	return len(items), nil
}
