package services

import (
	"context"
	"errors"
	"mime/multipart"
	"strings"

	"github.com/kendall-kelly/cafe-orders-api/models"
	"github.com/kendall-kelly/cafe-orders-api/utils"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CatalogItem is the pricing view of a menu item used when placing orders
type CatalogItem struct {
	ID        uint                       `json:"id"`
	Name      string                     `json:"name"`
	BasePrice decimal.Decimal            `json:"base_price"`
	Available bool                       `json:"available"`
	Sizes     map[string]decimal.Decimal `json:"sizes"`
	AddOns    map[string]decimal.Decimal `json:"add_ons"`
}

// Catalog resolves item references to their current pricing
type Catalog interface {
	Resolve(ctx context.Context, itemID uint) (*CatalogItem, error)
}

// MenuOptionInput is a size or add-on in a menu write request
type MenuOptionInput struct {
	Name  string
	Price decimal.Decimal
}

// MenuItemInput carries the writable fields of a menu item
type MenuItemInput struct {
	Name        string
	Description string
	Category    string
	Price       decimal.Decimal
	Available   *bool
	Sizes       []MenuOptionInput
	AddOns      []MenuOptionInput
}

// CatalogService manages the menu and implements Catalog on top of it
type CatalogService struct {
	db       *gorm.DB
	images   *MenuImageService
	logger   *zap.Logger
	onChange []func(ctx context.Context, itemID uint)
}

// NewCatalogService creates a catalog service. images may be nil when image
// storage is not configured.
func NewCatalogService(db *gorm.DB, images *MenuImageService, logger *zap.Logger) *CatalogService {
	return &CatalogService{db: db, images: images, logger: logger}
}

// OnChange registers fn to run after a menu item is written or deleted
func (s *CatalogService) OnChange(fn func(ctx context.Context, itemID uint)) {
	s.onChange = append(s.onChange, fn)
}

func (s *CatalogService) changed(ctx context.Context, itemID uint) {
	for _, fn := range s.onChange {
		fn(ctx, itemID)
	}
}

// Resolve returns the pricing of a menu item
func (s *CatalogService) Resolve(ctx context.Context, itemID uint) (*CatalogItem, error) {
	var item models.MenuItem
	err := s.db.WithContext(ctx).Preload("Sizes").Preload("AddOns").First(&item, itemID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, newError(CodeItemNotFound, "Menu item %d not found", itemID)
	}
	if err != nil {
		return nil, internalError("Failed to look up menu item", err)
	}
	return toCatalogItem(&item), nil
}

func toCatalogItem(item *models.MenuItem) *CatalogItem {
	ci := &CatalogItem{
		ID:        item.ID,
		Name:      item.Name,
		BasePrice: item.Price,
		Available: item.Available,
		Sizes:     make(map[string]decimal.Decimal, len(item.Sizes)),
		AddOns:    make(map[string]decimal.Decimal, len(item.AddOns)),
	}
	for _, size := range item.Sizes {
		ci.Sizes[size.Name] = size.Price
	}
	for _, addOn := range item.AddOns {
		ci.AddOns[addOn.Name] = addOn.Price
	}
	return ci
}

// List returns the available menu items, optionally restricted to one category
func (s *CatalogService) List(ctx context.Context, category string) ([]models.MenuItem, error) {
	query := s.db.WithContext(ctx).
		Preload("Sizes").
		Preload("AddOns").
		Where("available = ?", true)

	if category != "" {
		if !models.IsValidCategory(category) {
			return nil, newError(CodeValidation, "Invalid category %q", category)
		}
		query = query.Where("category = ?", category)
	}

	var items []models.MenuItem
	if err := query.Order("category ASC, name ASC").Find(&items).Error; err != nil {
		return nil, internalError("Failed to fetch menu", err)
	}

	for i := range items {
		s.attachImageURL(ctx, &items[i])
	}
	return items, nil
}

// Get returns one menu item, available or not
func (s *CatalogService) Get(ctx context.Context, itemID uint) (*models.MenuItem, error) {
	item, err := s.load(ctx, s.db, itemID)
	if err != nil {
		return nil, err
	}
	s.attachImageURL(ctx, item)
	return item, nil
}

// Lookup loads menu items by id, including deleted ones, keyed by id
func (s *CatalogService) Lookup(ctx context.Context, ids []uint) (map[uint]models.MenuItem, error) {
	out := make(map[uint]models.MenuItem, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var items []models.MenuItem
	if err := s.db.WithContext(ctx).Unscoped().Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, internalError("Failed to fetch menu items", err)
	}
	for _, item := range items {
		out[item.ID] = item
	}
	return out, nil
}

// Create adds a menu item (admin only)
func (s *CatalogService) Create(ctx context.Context, p Principal, input MenuItemInput) (*models.MenuItem, error) {
	if err := Authorize(p, RoleAdmin); err != nil {
		return nil, err
	}
	if err := validateMenuItemInput(input); err != nil {
		return nil, err
	}

	item := models.MenuItem{
		Name:        strings.TrimSpace(input.Name),
		Description: strings.TrimSpace(input.Description),
		Category:    input.Category,
		Price:       input.Price,
		Available:   true,
		Sizes:       toSizes(input.Sizes),
		AddOns:      toAddOns(input.AddOns),
	}
	if input.Available != nil {
		item.Available = *input.Available
	}

	if err := s.db.WithContext(ctx).Create(&item).Error; err != nil {
		return nil, internalError("Failed to create menu item", err)
	}
	// gorm skips false for fields with a default on insert
	if !item.Available {
		if err := s.db.WithContext(ctx).Model(&item).Update("available", false).Error; err != nil {
			return nil, internalError("Failed to create menu item", err)
		}
	}

	s.logger.Info("Menu item created", zap.Uint("menu_item_id", item.ID), zap.String("actor", p.ID))
	return s.Get(ctx, item.ID)
}

// Update replaces the fields, sizes and add-ons of a menu item (admin only)
func (s *CatalogService) Update(ctx context.Context, p Principal, itemID uint, input MenuItemInput) (*models.MenuItem, error) {
	if err := Authorize(p, RoleAdmin); err != nil {
		return nil, err
	}
	if err := validateMenuItemInput(input); err != nil {
		return nil, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.load(ctx, tx, itemID)
		if err != nil {
			return err
		}

		updates := map[string]interface{}{
			"name":        strings.TrimSpace(input.Name),
			"description": strings.TrimSpace(input.Description),
			"category":    input.Category,
			"price":       input.Price,
		}
		if input.Available != nil {
			updates["available"] = *input.Available
		}
		if err := tx.Model(item).Omit(clause.Associations).Updates(updates).Error; err != nil {
			return err
		}

		if err := tx.Where("menu_item_id = ?", itemID).Delete(&models.MenuItemSize{}).Error; err != nil {
			return err
		}
		if err := tx.Where("menu_item_id = ?", itemID).Delete(&models.MenuItemAddOn{}).Error; err != nil {
			return err
		}
		if sizes := toSizes(input.Sizes); len(sizes) > 0 {
			for i := range sizes {
				sizes[i].MenuItemID = itemID
			}
			if err := tx.Create(&sizes).Error; err != nil {
				return err
			}
		}
		if addOns := toAddOns(input.AddOns); len(addOns) > 0 {
			for i := range addOns {
				addOns[i].MenuItemID = itemID
			}
			if err := tx.Create(&addOns).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		var svcErr *ServiceError
		if errors.As(err, &svcErr) {
			return nil, svcErr
		}
		return nil, internalError("Failed to update menu item", err)
	}

	s.changed(ctx, itemID)
	s.logger.Info("Menu item updated", zap.Uint("menu_item_id", itemID), zap.String("actor", p.ID))
	return s.Get(ctx, itemID)
}

// Delete removes a menu item from the menu (admin only). The row is soft
// deleted so historical orders and analytics can still show its name.
func (s *CatalogService) Delete(ctx context.Context, p Principal, itemID uint) error {
	if err := Authorize(p, RoleAdmin); err != nil {
		return err
	}

	result := s.db.WithContext(ctx).Delete(&models.MenuItem{}, itemID)
	if result.Error != nil {
		return internalError("Failed to delete menu item", result.Error)
	}
	if result.RowsAffected == 0 {
		return newError(CodeMenuItemNotFound, "Menu item not found")
	}

	s.changed(ctx, itemID)
	s.logger.Info("Menu item deleted", zap.Uint("menu_item_id", itemID), zap.String("actor", p.ID))
	return nil
}

// SetImage uploads a new image for a menu item, replacing the previous one (admin only)
func (s *CatalogService) SetImage(ctx context.Context, p Principal, itemID uint, fileHeader *multipart.FileHeader) (*models.MenuItem, error) {
	if err := Authorize(p, RoleAdmin); err != nil {
		return nil, err
	}
	if s.images == nil {
		return nil, internalError("Image storage is not configured", errors.New("no image service"))
	}

	item, err := s.load(ctx, s.db, itemID)
	if err != nil {
		return nil, err
	}

	key, err := s.images.Upload(ctx, itemID, fileHeader)
	if err != nil {
		var uploadErr *utils.FileUploadError
		if errors.As(err, &uploadErr) {
			return nil, newError(CodeValidation, "%s", uploadErr.Message)
		}
		return nil, internalError("Failed to upload image", err)
	}

	if err := s.db.WithContext(ctx).Model(item).Update("image_key", key).Error; err != nil {
		// Best effort: do not leave an orphaned object behind
		if delErr := s.images.Delete(ctx, key); delErr != nil {
			s.logger.Warn("Failed to remove orphaned image", zap.String("key", key), zap.Error(delErr))
		}
		return nil, internalError("Failed to save menu item image", err)
	}

	if item.ImageKey != nil {
		if err := s.images.Delete(ctx, *item.ImageKey); err != nil {
			s.logger.Warn("Failed to delete previous image", zap.String("key", *item.ImageKey), zap.Error(err))
		}
	}

	return s.Get(ctx, itemID)
}

func (s *CatalogService) load(ctx context.Context, db *gorm.DB, itemID uint) (*models.MenuItem, error) {
	var item models.MenuItem
	err := db.WithContext(ctx).Preload("Sizes").Preload("AddOns").First(&item, itemID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, newError(CodeMenuItemNotFound, "Menu item not found")
	}
	if err != nil {
		return nil, internalError("Failed to fetch menu item", err)
	}
	return &item, nil
}

func (s *CatalogService) attachImageURL(ctx context.Context, item *models.MenuItem) {
	if s.images == nil || item.ImageKey == nil {
		return
	}
	url, err := s.images.URL(ctx, *item.ImageKey)
	if err != nil {
		s.logger.Warn("Failed to presign menu image", zap.Uint("menu_item_id", item.ID), zap.Error(err))
		return
	}
	item.ImageURL = &url
}

func validateMenuItemInput(input MenuItemInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return newError(CodeValidation, "Name is required")
	}
	if strings.TrimSpace(input.Description) == "" {
		return newError(CodeValidation, "Description is required")
	}
	if !models.IsValidCategory(input.Category) {
		return newError(CodeValidation, "Invalid category %q", input.Category)
	}
	if input.Price.IsNegative() {
		return newError(CodeValidation, "Price must not be negative")
	}
	if err := validateOptions("size", input.Sizes); err != nil {
		return err
	}
	return validateOptions("add-on", input.AddOns)
}

func validateOptions(kind string, options []MenuOptionInput) error {
	seen := make(map[string]bool, len(options))
	for _, opt := range options {
		name := strings.TrimSpace(opt.Name)
		if name == "" {
			return newError(CodeValidation, "Every %s needs a name", kind)
		}
		if seen[name] {
			return newError(CodeValidation, "Duplicate %s %q", kind, name)
		}
		if opt.Price.IsNegative() {
			return newError(CodeValidation, "Price of %s %q must not be negative", kind, name)
		}
		seen[name] = true
	}
	return nil
}

func toSizes(options []MenuOptionInput) []models.MenuItemSize {
	sizes := make([]models.MenuItemSize, 0, len(options))
	for _, opt := range options {
		sizes = append(sizes, models.MenuItemSize{Name: strings.TrimSpace(opt.Name), Price: opt.Price})
	}
	return sizes
}

func toAddOns(options []MenuOptionInput) []models.MenuItemAddOn {
	addOns := make([]models.MenuItemAddOn, 0, len(options))
	for _, opt := range options {
		addOns = append(addOns, models.MenuItemAddOn{Name: strings.TrimSpace(opt.Name), Price: opt.Price})
	}
	return addOns
}
