package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/cafe-orders-api/services"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MenuOptionRequest is a size or add-on in a menu item request
type MenuOptionRequest struct {
	Name  string          `json:"name" binding:"required"`
	Price decimal.Decimal `json:"price"`
}

// MenuItemRequest represents the request body for creating or replacing a menu item
type MenuItemRequest struct {
	Name        string              `json:"name" binding:"required"`
	Description string              `json:"description" binding:"required"`
	Category    string              `json:"category" binding:"required"`
	Price       *decimal.Decimal    `json:"price" binding:"required"`
	Available   *bool               `json:"available"`
	Sizes       []MenuOptionRequest `json:"sizes" binding:"dive"`
	AddOns      []MenuOptionRequest `json:"add_ons" binding:"dive"`
}

func (r MenuItemRequest) toInput() services.MenuItemInput {
	input := services.MenuItemInput{
		Name:        r.Name,
		Description: r.Description,
		Category:    r.Category,
		Price:       *r.Price,
		Available:   r.Available,
	}
	for _, s := range r.Sizes {
		input.Sizes = append(input.Sizes, services.MenuOptionInput{Name: s.Name, Price: s.Price})
	}
	for _, a := range r.AddOns {
		input.AddOns = append(input.AddOns, services.MenuOptionInput{Name: a.Name, Price: a.Price})
	}
	return input
}

// MenuController serves the menu endpoints
type MenuController struct {
	catalog *services.CatalogService
	logger  *zap.Logger
}

func NewMenuController(catalog *services.CatalogService, logger *zap.Logger) *MenuController {
	return &MenuController{catalog: catalog, logger: logger}
}

// ListMenu handles GET /api/v1/menu?category=
func (ctl *MenuController) ListMenu(c *gin.Context) {
	items, err := ctl.catalog.List(c.Request.Context(), c.Query("category"))
	if err != nil {
		respondError(c, ctl.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    items,
	})
}

// GetMenuItem handles GET /api/v1/menu/:id
func (ctl *MenuController) GetMenuItem(c *gin.Context) {
	id, ok := idParam(c, "menu item")
	if !ok {
		return
	}

	item, err := ctl.catalog.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, ctl.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    item,
	})
}

// CreateMenuItem handles POST /api/v1/menu (admin only)
func (ctl *MenuController) CreateMenuItem(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req MenuItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, "Invalid request data", err)
		return
	}

	item, err := ctl.catalog.Create(c.Request.Context(), p, req.toInput())
	if err != nil {
		respondError(c, ctl.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    item,
	})
}

// UpdateMenuItem handles PUT /api/v1/menu/:id (admin only)
func (ctl *MenuController) UpdateMenuItem(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "menu item")
	if !ok {
		return
	}

	var req MenuItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, "Invalid request data", err)
		return
	}

	item, err := ctl.catalog.Update(c.Request.Context(), p, id, req.toInput())
	if err != nil {
		respondError(c, ctl.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    item,
	})
}

// DeleteMenuItem handles DELETE /api/v1/menu/:id (admin only)
func (ctl *MenuController) DeleteMenuItem(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "menu item")
	if !ok {
		return
	}

	if err := ctl.catalog.Delete(c.Request.Context(), p, id); err != nil {
		respondError(c, ctl.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Menu item deleted",
	})
}

// UploadMenuItemImage handles POST /api/v1/menu/:id/image (admin only, multipart field "image")
func (ctl *MenuController) UploadMenuItemImage(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "menu item")
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		respondValidationError(c, "An image file is required in the 'image' field", nil)
		return
	}

	item, err := ctl.catalog.SetImage(c.Request.Context(), p, id, fileHeader)
	if err != nil {
		respondError(c, ctl.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    item,
	})
}
