package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kendall-kelly/cafe-orders-api/models"
	"github.com/kendall-kelly/cafe-orders-api/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHealthEndpointIntegration tests the /api/v1/health endpoint with full routing
func TestHealthEndpointIntegration(t *testing.T) {
	router := setupRouter(newTestApp(t), testAuth())

	req, _ := http.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code, "Expected status 200 OK")

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err, "Response should be valid JSON")
	assert.Equal(t, true, response["success"])
	assert.Equal(t, "Cafe Orders API is running", response["message"])
}

// TestHealthEndpointMethod tests that only GET method is allowed
func TestHealthEndpointMethod(t *testing.T) {
	router := setupRouter(newTestApp(t), testAuth())

	for _, method := range []string{"POST", "PUT", "DELETE"} {
		req, _ := http.NewRequest(method, "/api/v1/health", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code, "%s should not be allowed", method)
	}
}

// TestInvalidEndpoint tests that invalid endpoints return 404
func TestInvalidEndpoint(t *testing.T) {
	router := setupRouter(newTestApp(t), testAuth())

	req, _ := http.NewRequest("GET", "/api/v1/nonexistent", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code, "Invalid endpoint should return 404")
}

func TestDatabaseStatusEndpointIntegration(t *testing.T) {
	router := setupRouter(newTestApp(t), testAuth())

	req, _ := http.NewRequest("GET", "/api/v1/database/status", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "order_items")
}

func TestPublicAndProtectedRoutes(t *testing.T) {
	app := newTestApp(t)
	testutil.CreateMenuItem(t, app.db, "Espresso", models.CategoryCoffee, "2.50", nil, nil)
	router := setupRouter(app, testAuth())

	tests := []struct {
		name           string
		method         string
		path           string
		authenticated  bool
		expectedStatus int
	}{
		{name: "Menu is public", method: "GET", path: "/api/v1/menu", expectedStatus: http.StatusOK},
		{name: "Menu item is public", method: "GET", path: "/api/v1/menu/1", expectedStatus: http.StatusOK},
		{name: "Metrics are public", method: "GET", path: "/api/v1/metrics", expectedStatus: http.StatusOK},
		{name: "Orders need a token", method: "GET", path: "/api/v1/orders/mine", expectedStatus: http.StatusUnauthorized},
		{name: "Creating menu items needs a token", method: "POST", path: "/api/v1/menu", expectedStatus: http.StatusUnauthorized},
		{name: "Dashboard needs a token", method: "GET", path: "/api/v1/analytics/dashboard", expectedStatus: http.StatusUnauthorized},
		{name: "Event feed needs a token", method: "GET", path: "/api/v1/events", expectedStatus: http.StatusUnauthorized},
		{name: "Authenticated customer", method: "GET", path: "/api/v1/orders/mine", authenticated: true, expectedStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.authenticated {
				req.Header.Set("X-Test-Subject", "auth0|customer")
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
		})
	}
}

func TestMetricsRecordRequests(t *testing.T) {
	router := setupRouter(newTestApp(t), testAuth())

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/health", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/does-not-exist", nil))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, `cafe_api_http_requests_total{route="/api/v1/health",status="200"} 3`)
	assert.Contains(t, body, `cafe_api_http_requests_total{route="unmatched",status="404"} 1`)
	assert.Contains(t, body, "cafe_api_http_request_duration_ms_bucket")
}

func TestCORS(t *testing.T) {
	router := setupRouter(newTestApp(t), testAuth())

	req := httptest.NewRequest("OPTIONS", "/api/v1/orders", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.True(t, strings.Contains(w.Header().Get("Access-Control-Allow-Methods"), "PATCH"))

	req = httptest.NewRequest("GET", "/api/v1/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
