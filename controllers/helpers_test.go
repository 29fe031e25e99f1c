package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/cafe-orders-api/middleware"
	"github.com/kendall-kelly/cafe-orders-api/services"
	"github.com/kendall-kelly/cafe-orders-api/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	adminID    = "auth0|barista"
	customerID = "auth0|alice"
	otherID    = "auth0|bob"
)

// caller identifies who sends a test request; a zero caller sends no credentials
type caller struct {
	subject string
	role    string
}

var (
	asAdmin     = caller{subject: adminID, role: "admin"}
	asCustomer  = caller{subject: customerID, role: "customer"}
	asOther     = caller{subject: otherID}
	anonymously = caller{}
)

// testEnv is a fully wired router on an in-memory database
type testEnv struct {
	db      *gorm.DB
	hub     *services.Hub
	storage *services.MockObjectStorage
	router  *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zap.NewNop()
	db := testutil.NewTestDB(t)
	storage := services.NewMockObjectStorage()
	hub := services.NewHub(logger, 64)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	catalog := services.NewCatalogService(db, services.NewMenuImageService(storage), logger)
	orders := services.NewOrderService(db, catalog, hub, logger, nil)
	analytics := services.NewAnalyticsService(db, catalog, logger)

	menuCtl := NewMenuController(catalog, logger)
	orderCtl := NewOrderController(orders, logger)
	analyticsCtl := NewAnalyticsController(analytics, logger)
	eventsCtl := NewEventsController(hub, logger, 0)

	router := gin.New()
	v1 := router.Group("/api/v1")
	{
		v1.GET("/menu", menuCtl.ListMenu)
		v1.GET("/menu/:id", menuCtl.GetMenuItem)

		protected := v1.Group("")
		protected.Use(mockAuthMiddleware(), middleware.RequirePrincipal())
		{
			protected.POST("/menu", menuCtl.CreateMenuItem)
			protected.PUT("/menu/:id", menuCtl.UpdateMenuItem)
			protected.DELETE("/menu/:id", menuCtl.DeleteMenuItem)
			protected.POST("/menu/:id/image", menuCtl.UploadMenuItemImage)

			protected.POST("/orders", orderCtl.CreateOrder)
			protected.GET("/orders", orderCtl.ListOrders)
			protected.GET("/orders/mine", orderCtl.ListMyOrders)
			protected.GET("/orders/:id", orderCtl.GetOrder)
			protected.PATCH("/orders/:id/status", orderCtl.UpdateOrderStatus)

			protected.GET("/events", eventsCtl.Stream)
			protected.GET("/analytics/dashboard", analyticsCtl.Dashboard)
		}
	}

	return &testEnv{db: db, hub: hub, storage: storage, router: router}
}

// mockAuthMiddleware stands in for the JWT check. It trusts the X-Test-Subject
// and X-Test-Role headers and stores the same context values as the real middleware.
func mockAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		subject := c.GetHeader("X-Test-Subject")
		if subject == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   gin.H{"code": "UNAUTHORIZED", "message": "Failed to validate JWT."},
			})
			return
		}

		c.Set("user_id", subject)
		c.Set("validated_claims", &validator.ValidatedClaims{
			RegisteredClaims: validator.RegisteredClaims{Subject: subject},
			CustomClaims:     &middleware.CustomClaims{Role: c.GetHeader("X-Test-Role")},
		})
		c.Next()
	}
}

func (who caller) apply(req *http.Request) {
	if who.subject != "" {
		req.Header.Set("X-Test-Subject", who.subject)
	}
	if who.role != "" {
		req.Header.Set("X-Test-Role", who.role)
	}
}

// do sends a request with an optional JSON body and decodes the JSON response
func (env *testEnv) do(t *testing.T, who caller, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	who.apply(req)

	return env.serve(t, req)
}

func (env *testEnv) serve(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response), "body: %s", w.Body.String())
	return w, response
}

// errorCode returns error.code of an error envelope
func errorCode(t *testing.T, response map[string]interface{}) string {
	t.Helper()

	require.Equal(t, false, response["success"])
	errBody, ok := response["error"].(map[string]interface{})
	require.True(t, ok, "response has no error object: %v", response)
	code, _ := errBody["code"].(string)
	return code
}

// decimalField reads a decimal serialized as a JSON string
func decimalField(t *testing.T, m map[string]interface{}, key string) decimal.Decimal {
	t.Helper()

	raw, ok := m[key].(string)
	require.True(t, ok, "%s is not a string: %v", key, m[key])
	return decimal.RequireFromString(raw)
}

func data(t *testing.T, response map[string]interface{}) map[string]interface{} {
	t.Helper()

	require.Equal(t, true, response["success"], "response: %v", response)
	d, ok := response["data"].(map[string]interface{})
	require.True(t, ok, "data is not an object: %v", response["data"])
	return d
}

func dataList(t *testing.T, response map[string]interface{}) []interface{} {
	t.Helper()

	require.Equal(t, true, response["success"], "response: %v", response)
	d, ok := response["data"].([]interface{})
	require.True(t, ok, "data is not a list: %v", response["data"])
	return d
}
