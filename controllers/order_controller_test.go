package controllers

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/kendall-kelly/cafe-orders-api/models"
	"github.com/kendall-kelly/cafe-orders-api/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orderFixtures struct {
	latte     models.MenuItem
	croissant models.MenuItem
	retired   models.MenuItem
}

func seedOrderFixtures(t *testing.T, env *testEnv) orderFixtures {
	t.Helper()

	f := orderFixtures{
		latte: testutil.CreateMenuItem(t, env.db, "Latte", models.CategoryCoffee, "4.50",
			[]testutil.Option{{Name: "small", Price: "4.00"}, {Name: "large", Price: "5.50"}},
			[]testutil.Option{{Name: "oat milk", Price: "0.60"}, {Name: "extra shot", Price: "0.80"}}),
		croissant: testutil.CreateMenuItem(t, env.db, "Croissant", models.CategoryPastry, "3.25", nil, nil),
		retired:   testutil.CreateMenuItem(t, env.db, "Pumpkin Spice", models.CategoryCoffee, "6.00", nil, nil),
	}
	testutil.SetMenuItemAvailable(t, env.db, f.retired.ID, false)
	return f
}

func TestCreateOrder(t *testing.T) {
	env := newTestEnv(t)
	f := seedOrderFixtures(t, env)

	w, response := env.do(t, asCustomer, http.MethodPost, "/api/v1/orders", map[string]interface{}{
		"items": []map[string]interface{}{
			{"item_ref": f.latte.ID, "quantity": 2, "size": "large", "add_ons": []string{"oat milk", "extra shot"}},
			{"item_ref": f.croissant.ID, "quantity": 1},
		},
		"total_amount": "17.05",
	})

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	order := data(t, response)
	assert.Equal(t, "pending", order["status"])
	assert.Equal(t, customerID, order["customer_id"])
	assert.True(t, decimal.RequireFromString("17.05").Equal(decimalField(t, order, "total_amount")))

	items := order["items"].([]interface{})
	require.Len(t, items, 2)
	first := items[0].(map[string]interface{})
	assert.Equal(t, float64(f.latte.ID), first["item_ref"])
	assert.Equal(t, "Latte", first["name"])
	assert.Equal(t, "large", first["size"])
	assert.True(t, decimal.RequireFromString("6.90").Equal(decimalField(t, first, "unit_price")))

	var stored models.Order
	require.NoError(t, env.db.Preload("Items").First(&stored, uint(order["id"].(float64))).Error)
	assert.Equal(t, models.OrderStatusPending, stored.Status)
	assert.Len(t, stored.Items, 2)
}

func TestCreateOrder_WithoutDeclaredTotal(t *testing.T) {
	env := newTestEnv(t)
	f := seedOrderFixtures(t, env)

	w, response := env.do(t, asCustomer, http.MethodPost, "/api/v1/orders", map[string]interface{}{
		"items": []map[string]interface{}{{"item_ref": f.croissant.ID, "quantity": 3}},
	})

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.True(t, decimal.RequireFromString("9.75").Equal(decimalField(t, data(t, response), "total_amount")))
}

func TestCreateOrder_Errors(t *testing.T) {
	env := newTestEnv(t)
	f := seedOrderFixtures(t, env)

	line := func(ref uint, quantity int) map[string]interface{} {
		return map[string]interface{}{"item_ref": ref, "quantity": quantity}
	}

	tests := []struct {
		name           string
		who            caller
		body           interface{}
		expectedStatus int
		expectedCode   string
	}{
		{
			name:           "No credentials",
			who:            anonymously,
			body:           map[string]interface{}{"items": []interface{}{line(f.croissant.ID, 1)}},
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   "UNAUTHORIZED",
		},
		{
			name:           "Empty item list",
			who:            asCustomer,
			body:           map[string]interface{}{"items": []interface{}{}},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "VALIDATION_ERROR",
		},
		{
			name:           "Missing items",
			who:            asCustomer,
			body:           map[string]interface{}{},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "VALIDATION_ERROR",
		},
		{
			name:           "Zero quantity",
			who:            asCustomer,
			body:           map[string]interface{}{"items": []interface{}{line(f.croissant.ID, 0)}},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "VALIDATION_ERROR",
		},
		{
			name:           "Negative quantity",
			who:            asCustomer,
			body:           map[string]interface{}{"items": []interface{}{line(f.croissant.ID, -2)}},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "VALIDATION_ERROR",
		},
		{
			name:           "Missing item ref",
			who:            asCustomer,
			body:           map[string]interface{}{"items": []interface{}{map[string]interface{}{"quantity": 1}}},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "VALIDATION_ERROR",
		},
		{
			name: "Unknown size",
			who:  asCustomer,
			body: map[string]interface{}{"items": []interface{}{
				map[string]interface{}{"item_ref": f.latte.ID, "quantity": 1, "size": "venti"},
			}},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "VALIDATION_ERROR",
		},
		{
			name:           "Unknown item",
			who:            asCustomer,
			body:           map[string]interface{}{"items": []interface{}{line(9999, 1)}},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedCode:   "ITEM_NOT_FOUND",
		},
		{
			name:           "Unavailable item",
			who:            asCustomer,
			body:           map[string]interface{}{"items": []interface{}{line(f.retired.ID, 1)}},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedCode:   "ITEM_UNAVAILABLE",
		},
		{
			name: "Declared total does not match",
			who:  asCustomer,
			body: map[string]interface{}{
				"items":        []interface{}{line(f.croissant.ID, 2)},
				"total_amount": "6.00",
			},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedCode:   "TOTAL_MISMATCH",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, response := env.do(t, tt.who, http.MethodPost, "/api/v1/orders", tt.body)
			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
			assert.Equal(t, tt.expectedCode, errorCode(t, response))
		})
	}

	var count int64
	require.NoError(t, env.db.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count, "rejected orders must not be stored")
}

func TestGetOrder(t *testing.T) {
	env := newTestEnv(t)
	f := seedOrderFixtures(t, env)
	order := testutil.CreateOrder(t, env.db, customerID, models.OrderStatusPending, time.Now(),
		testutil.Line{MenuItemID: f.croissant.ID, Name: "Croissant", Quantity: 2, UnitPrice: "3.25"})
	path := fmt.Sprintf("/api/v1/orders/%d", order.ID)

	tests := []struct {
		name           string
		who            caller
		path           string
		expectedStatus int
		expectedCode   string
	}{
		{name: "Owner", who: asCustomer, path: path, expectedStatus: http.StatusOK},
		{name: "Admin", who: asAdmin, path: path, expectedStatus: http.StatusOK},
		{name: "Another customer", who: asOther, path: path, expectedStatus: http.StatusForbidden, expectedCode: "FORBIDDEN"},
		{name: "Unknown order", who: asAdmin, path: "/api/v1/orders/4242", expectedStatus: http.StatusNotFound, expectedCode: "ORDER_NOT_FOUND"},
		{name: "Invalid ID", who: asCustomer, path: "/api/v1/orders/abc", expectedStatus: http.StatusBadRequest, expectedCode: "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, response := env.do(t, tt.who, http.MethodGet, tt.path, nil)
			require.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
			if tt.expectedCode != "" {
				assert.Equal(t, tt.expectedCode, errorCode(t, response))
				return
			}
			got := data(t, response)
			assert.Equal(t, float64(order.ID), got["id"])
			assert.Len(t, got["items"], 1)
		})
	}
}

func TestListMyOrders(t *testing.T) {
	env := newTestEnv(t)
	f := seedOrderFixtures(t, env)
	croissant := testutil.Line{MenuItemID: f.croissant.ID, Name: "Croissant", Quantity: 1, UnitPrice: "3.25"}

	now := time.Now()
	older := testutil.CreateOrder(t, env.db, customerID, models.OrderStatusDelivered, now.Add(-2*time.Hour), croissant)
	newer := testutil.CreateOrder(t, env.db, customerID, models.OrderStatusPending, now.Add(-time.Minute), croissant)
	testutil.CreateOrder(t, env.db, otherID, models.OrderStatusPending, now, croissant)

	w, response := env.do(t, asCustomer, http.MethodGet, "/api/v1/orders/mine", nil)
	require.Equal(t, http.StatusOK, w.Code)

	orders := dataList(t, response)
	require.Len(t, orders, 2)
	assert.Equal(t, float64(newer.ID), orders[0].(map[string]interface{})["id"])
	assert.Equal(t, float64(older.ID), orders[1].(map[string]interface{})["id"])

	// A customer without orders gets an empty list, not null
	w, response = env.do(t, caller{subject: "auth0|newcomer"}, http.MethodGet, "/api/v1/orders/mine", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, dataList(t, response))
}

func TestListOrders(t *testing.T) {
	env := newTestEnv(t)
	f := seedOrderFixtures(t, env)
	croissant := testutil.Line{MenuItemID: f.croissant.ID, Name: "Croissant", Quantity: 1, UnitPrice: "3.25"}

	start := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		testutil.CreateOrder(t, env.db, customerID, models.OrderStatusPending, start.Add(time.Duration(i)*time.Minute), croissant)
	}
	for i := 0; i < 3; i++ {
		testutil.CreateOrder(t, env.db, otherID, models.OrderStatusReady, start.Add(time.Duration(10+i)*time.Minute), croissant)
	}

	tests := []struct {
		name               string
		query              string
		expectedCount      int
		expectedTotal      float64
		expectedPage       float64
		expectedLimit      float64
		expectedTotalPages float64
	}{
		{name: "Defaults", query: "", expectedCount: 8, expectedTotal: 8, expectedPage: 1, expectedLimit: 10, expectedTotalPages: 1},
		{name: "First page", query: "?limit=3", expectedCount: 3, expectedTotal: 8, expectedPage: 1, expectedLimit: 3, expectedTotalPages: 3},
		{name: "Last page", query: "?limit=3&page=3", expectedCount: 2, expectedTotal: 8, expectedPage: 3, expectedLimit: 3, expectedTotalPages: 3},
		{name: "Past the end", query: "?limit=3&page=9", expectedCount: 0, expectedTotal: 8, expectedPage: 9, expectedLimit: 3, expectedTotalPages: 3},
		{name: "Huge page number", query: "?limit=10&page=922337203685477582", expectedCount: 0, expectedTotal: 8, expectedPage: 922337203685477582, expectedLimit: 10, expectedTotalPages: 1},
		{name: "Status filter", query: "?status=ready", expectedCount: 3, expectedTotal: 3, expectedPage: 1, expectedLimit: 10, expectedTotalPages: 1},
		{name: "Limit is capped", query: "?limit=500", expectedCount: 8, expectedTotal: 8, expectedPage: 1, expectedLimit: 100, expectedTotalPages: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, response := env.do(t, asAdmin, http.MethodGet, "/api/v1/orders"+tt.query, nil)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			assert.Len(t, dataList(t, response), tt.expectedCount)
			pagination := response["pagination"].(map[string]interface{})
			assert.Equal(t, tt.expectedTotal, pagination["total"])
			assert.Equal(t, tt.expectedPage, pagination["page"])
			assert.Equal(t, tt.expectedLimit, pagination["limit"])
			assert.Equal(t, tt.expectedTotalPages, pagination["totalPages"])
		})
	}

	t.Run("Newest first", func(t *testing.T) {
		_, response := env.do(t, asAdmin, http.MethodGet, "/api/v1/orders?limit=1", nil)
		newest := dataList(t, response)[0].(map[string]interface{})
		assert.Equal(t, otherID, newest["customer_id"])
		assert.Equal(t, "ready", newest["status"])
	})
}

func TestListOrders_Errors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name           string
		who            caller
		query          string
		expectedStatus int
		expectedCode   string
	}{
		{name: "Customer", who: asCustomer, expectedStatus: http.StatusForbidden, expectedCode: "FORBIDDEN"},
		{name: "Invalid status", who: asAdmin, query: "?status=lost", expectedStatus: http.StatusBadRequest, expectedCode: "VALIDATION_ERROR"},
		{name: "Invalid page", who: asAdmin, query: "?page=0", expectedStatus: http.StatusBadRequest, expectedCode: "VALIDATION_ERROR"},
		{name: "Invalid limit", who: asAdmin, query: "?limit=ten", expectedStatus: http.StatusBadRequest, expectedCode: "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, response := env.do(t, tt.who, http.MethodGet, "/api/v1/orders"+tt.query, nil)
			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.expectedCode, errorCode(t, response))
		})
	}
}

func TestUpdateOrderStatus_Lifecycle(t *testing.T) {
	env := newTestEnv(t)
	f := seedOrderFixtures(t, env)
	order := testutil.CreateOrder(t, env.db, customerID, models.OrderStatusPending, time.Now(),
		testutil.Line{MenuItemID: f.latte.ID, Name: "Latte", Quantity: 1, UnitPrice: "4.50"})
	path := fmt.Sprintf("/api/v1/orders/%d/status", order.ID)

	for _, status := range []string{"confirmed", "preparing", "ready", "delivered"} {
		w, response := env.do(t, asAdmin, http.MethodPatch, path, map[string]string{"status": status})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, status, data(t, response)["status"])
	}

	w, response := env.do(t, asAdmin, http.MethodPatch, path, map[string]string{"status": "preparing"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "INVALID_TRANSITION", errorCode(t, response))

	var stored models.Order
	require.NoError(t, env.db.First(&stored, order.ID).Error)
	assert.Equal(t, models.OrderStatusDelivered, stored.Status)
}

func TestUpdateOrderStatus_Errors(t *testing.T) {
	env := newTestEnv(t)
	f := seedOrderFixtures(t, env)
	line := testutil.Line{MenuItemID: f.latte.ID, Name: "Latte", Quantity: 1, UnitPrice: "4.50"}
	pending := testutil.CreateOrder(t, env.db, customerID, models.OrderStatusPending, time.Now(), line)
	ready := testutil.CreateOrder(t, env.db, customerID, models.OrderStatusReady, time.Now(), line)

	pathFor := func(id uint) string { return fmt.Sprintf("/api/v1/orders/%d/status", id) }

	tests := []struct {
		name           string
		who            caller
		path           string
		body           interface{}
		expectedStatus int
		expectedCode   string
	}{
		{name: "Customer", who: asCustomer, path: pathFor(pending.ID), body: map[string]string{"status": "confirmed"}, expectedStatus: http.StatusForbidden, expectedCode: "FORBIDDEN"},
		{name: "Missing status", who: asAdmin, path: pathFor(pending.ID), body: map[string]string{}, expectedStatus: http.StatusBadRequest, expectedCode: "VALIDATION_ERROR"},
		{name: "Unknown status", who: asAdmin, path: pathFor(pending.ID), body: map[string]string{"status": "shipped"}, expectedStatus: http.StatusBadRequest, expectedCode: "VALIDATION_ERROR"},
		{name: "Skipping a step", who: asAdmin, path: pathFor(pending.ID), body: map[string]string{"status": "ready"}, expectedStatus: http.StatusConflict, expectedCode: "INVALID_TRANSITION"},
		{name: "Same status", who: asAdmin, path: pathFor(pending.ID), body: map[string]string{"status": "pending"}, expectedStatus: http.StatusConflict, expectedCode: "INVALID_TRANSITION"},
		{name: "Cancelling a ready order", who: asAdmin, path: pathFor(ready.ID), body: map[string]string{"status": "cancelled"}, expectedStatus: http.StatusConflict, expectedCode: "INVALID_TRANSITION"},
		{name: "Unknown order", who: asAdmin, path: pathFor(4242), body: map[string]string{"status": "confirmed"}, expectedStatus: http.StatusNotFound, expectedCode: "ORDER_NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, response := env.do(t, tt.who, http.MethodPatch, tt.path, tt.body)
			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
			assert.Equal(t, tt.expectedCode, errorCode(t, response))
		})
	}

	var stored models.Order
	require.NoError(t, env.db.First(&stored, pending.ID).Error)
	assert.Equal(t, models.OrderStatusPending, stored.Status)
}

func TestUpdateOrderStatus_Cancel(t *testing.T) {
	env := newTestEnv(t)
	f := seedOrderFixtures(t, env)
	order := testutil.CreateOrder(t, env.db, customerID, models.OrderStatusPreparing, time.Now(),
		testutil.Line{MenuItemID: f.latte.ID, Name: "Latte", Quantity: 1, UnitPrice: "4.50"})

	w, response := env.do(t, asAdmin, http.MethodPatch, fmt.Sprintf("/api/v1/orders/%d/status", order.ID),
		map[string]string{"status": "cancelled"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "cancelled", data(t, response)["status"])
}
