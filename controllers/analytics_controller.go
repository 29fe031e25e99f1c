package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/cafe-orders-api/services"
	"go.uber.org/zap"
)

// AnalyticsController serves the sales dashboard
type AnalyticsController struct {
	analytics *services.AnalyticsService
	logger    *zap.Logger
}

func NewAnalyticsController(analytics *services.AnalyticsService, logger *zap.Logger) *AnalyticsController {
	return &AnalyticsController{analytics: analytics, logger: logger}
}

// Dashboard handles GET /api/v1/analytics/dashboard?period=1d|7d|30d (admin only)
func (ctl *AnalyticsController) Dashboard(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	dashboard, err := ctl.analytics.Dashboard(c.Request.Context(), p, c.DefaultQuery("period", services.DefaultPeriod))
	if err != nil {
		respondError(c, ctl.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    dashboard,
	})
}
