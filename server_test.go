package main

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/tradietrack/tradietrack_backend/utils"
)

// Every lifecycle operation needs a route; an automation that cannot be
// deactivated keeps firing forever.
func TestRegisterAPIRoutes_LifecycleOperationsWired(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	registerAPIRoutes(r)

	want := map[string]bool{
		"POST /api/automations/:id/activate":   false,
		"POST /api/automations/:id/deactivate": false,
		"GET /api/automations/:id":             false,
		"GET /api/templates/:id":               false,
		"POST /api/templates/:id/activate":     false,
		"POST /api/jobs/:id/status":            false,
		"POST /api/contracts/:id/pause":        false,
	}
	for _, route := range r.Routes() {
		key := route.Method + " " + route.Path
		if _, ok := want[key]; ok {
			want[key] = true
		}
	}
	for key, found := range want {
		if !found {
			t.Fatalf("route %s is not registered", key)
		}
	}
}

func TestRespond_StatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	respond(c, nil, utils.ErrorRecordNotFound)
	if w.Code != http.StatusNotFound {
		t.Fatalf("record-not-found must map to 404, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	respond(c, nil, errors.New("tenant id is required"))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("validation errors must map to 400, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	respond(c, gin.H{"ok": true}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("success must map to 200, got %d", w.Code)
	}
}
