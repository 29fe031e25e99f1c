package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/cafe-orders-api/middleware"
	"github.com/kendall-kelly/cafe-orders-api/services"
	"go.uber.org/zap"
)

var statusByCode = map[services.ErrorCode]int{
	services.CodeValidation:        http.StatusBadRequest,
	services.CodeItemNotFound:      http.StatusUnprocessableEntity,
	services.CodeItemUnavailable:   http.StatusUnprocessableEntity,
	services.CodeTotalMismatch:     http.StatusUnprocessableEntity,
	services.CodeOrderNotFound:     http.StatusNotFound,
	services.CodeMenuItemNotFound:  http.StatusNotFound,
	services.CodeForbidden:         http.StatusForbidden,
	services.CodeInvalidTransition: http.StatusConflict,
	services.CodeInternal:          http.StatusInternalServerError,
}

// HTTPStatus returns the response status for a service error code
func HTTPStatus(code services.ErrorCode) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// respondError writes the error envelope for err. Causes of internal errors are
// logged and never returned.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	var svcErr *services.ServiceError
	if !errors.As(err, &svcErr) {
		svcErr = &services.ServiceError{Code: services.CodeInternal, Message: "Internal server error", Err: err}
	}

	if svcErr.Code == services.CodeInternal {
		logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.Header("Retry-After", "1")
	}

	c.JSON(HTTPStatus(svcErr.Code), gin.H{
		"success": false,
		"error": gin.H{
			"code":    svcErr.Code,
			"message": svcErr.Message,
		},
	})
}

func respondValidationError(c *gin.Context, message string, err error) {
	body := gin.H{
		"code":    services.CodeValidation,
		"message": message,
	}
	if err != nil {
		body["details"] = err.Error()
	}
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   body,
	})
}

// principal returns the caller resolved by middleware.RequirePrincipal
func principal(c *gin.Context) (services.Principal, bool) {
	p, err := middleware.GetPrincipal(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "UNAUTHORIZED",
				"message": "Could not extract user information",
			},
		})
		return services.Principal{}, false
	}
	return p, true
}

// idParam parses the :id path parameter
func idParam(c *gin.Context, what string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondValidationError(c, "Invalid "+what+" ID", nil)
		return 0, false
	}
	return uint(id), true
}
