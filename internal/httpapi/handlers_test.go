package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"growledger/backend/internal/costing"
	"growledger/backend/internal/locker"
	"growledger/backend/internal/service"
	"growledger/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	repo := memory.NewSeeded()
	svc := service.New(repo, locker.NewMemory(), costing.LifetimeAverage{}, log)
	auth := NewAuthManager("test-secret-key", time.Hour, repo)

	return New(svc, auth, "*", log)
}

func loginAs(t *testing.T, handler http.Handler, username, password string) string {
	t.Helper()
	payload, _ := json.Marshal(map[string]string{"username": username, "password": password})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login as %s: expected 200, got %d (body: %s)", username, rec.Code, rec.Body.String())
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode login body: %v", err)
	}
	token, _ := body["access_token"].(string)
	if token == "" {
		t.Fatal("expected access_token in login response")
	}
	return token
}

func csrfToken(t *testing.T, handler http.Handler) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/csrf-token", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("csrf token: expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode csrf body: %v", err)
	}
	token, _ := body["csrf_token"].(string)
	return token
}

func authedRequest(t *testing.T, handler http.Handler, method, path, token, csrf string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	if csrf != "" {
		req.Header.Set("X-CSRF-Token", csrf)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{"username": "demo", "password": "wrongpassword"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestItemsRequireAuth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/items", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}

func TestMutationRequiresCSRFToken(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, handler, "demo", "demo123")

	rec := authedRequest(t, handler, http.MethodPost, "/api/v1/items", token, "", map[string]string{"name": "Angel Wings"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without CSRF token, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestLedgerFlowThroughHTTP(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, handler, "demo", "demo123")
	csrf := csrfToken(t, handler)

	// Create an item.
	rec := authedRequest(t, handler, http.MethodPost, "/api/v1/items", token, csrf, map[string]string{"name": "World Lock Bundle"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create item: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var created struct {
		Item struct {
			ID string `json:"id"`
		} `json:"item"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode item: %v", err)
	}
	itemID := created.Item.ID

	// Buy 200 units at 1.5 WL.
	rec = authedRequest(t, handler, http.MethodPost, "/api/v1/lots", token, csrf, map[string]any{
		"item_id":       itemID,
		"qty":           200,
		"unit_cost":     "1.5",
		"currency_unit": "WL",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create lot: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	// Simulate selling 100 at 2.0.
	rec = authedRequest(t, handler, http.MethodPost, "/api/v1/items/"+itemID+"/simulate", token, csrf, map[string]any{
		"qty":             100,
		"sell_unit_price": "2.0",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("simulate: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var sim struct {
		Simulation struct {
			SimulatedCOGS   string `json:"simulated_cogs"`
			ProjectedProfit string `json:"projected_profit"`
			Insufficient    bool   `json:"insufficient"`
		} `json:"simulation"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&sim); err != nil {
		t.Fatalf("decode simulation: %v", err)
	}
	if sim.Simulation.Insufficient || sim.Simulation.SimulatedCOGS != "150" || sim.Simulation.ProjectedProfit != "50" {
		t.Fatalf("unexpected simulation: %+v", sim.Simulation)
	}

	// Record a sale of 100 for 200 WL.
	rec = authedRequest(t, handler, http.MethodPost, "/api/v1/sales", token, csrf, map[string]any{
		"item_id":       itemID,
		"qty":           100,
		"amount_gained": "200",
		"currency_unit": "WL",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("record sale: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	// Lifetime totals reflect the sale.
	rec = authedRequest(t, handler, http.MethodGet, "/api/v1/items/"+itemID+"/totals", token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("totals: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var totals struct {
		Totals struct {
			RemainingQty int    `json:"remaining_qty"`
			AvgCost      string `json:"avg_cost"`
		} `json:"totals"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&totals); err != nil {
		t.Fatalf("decode totals: %v", err)
	}
	if totals.Totals.RemainingQty != 100 || totals.Totals.AvgCost != "1.5" {
		t.Fatalf("unexpected totals: %+v", totals.Totals)
	}
}

func TestRecordSaleOversellReturns409WithAvailable(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, handler, "demo", "demo123")
	csrf := csrfToken(t, handler)

	rec := authedRequest(t, handler, http.MethodPost, "/api/v1/items", token, csrf, map[string]string{"name": "Dirt Stack"})
	var created struct {
		Item struct {
			ID string `json:"id"`
		} `json:"item"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode item: %v", err)
	}

	rec = authedRequest(t, handler, http.MethodPost, "/api/v1/lots", token, csrf, map[string]any{
		"item_id":       created.Item.ID,
		"qty":           5,
		"unit_cost":     "1",
		"currency_unit": "WL",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create lot: got %d", rec.Code)
	}

	rec = authedRequest(t, handler, http.MethodPost, "/api/v1/sales", token, csrf, map[string]any{
		"item_id":       created.Item.ID,
		"qty":           6,
		"amount_gained": "12",
		"currency_unit": "WL",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if available, ok := body["available"].(float64); !ok || int(available) != 5 {
		t.Fatalf("expected available=5 in body, got %v", body)
	}
}

func TestOwnerImpersonationRequiresAdmin(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	userToken := loginAs(t, handler, "demo", "demo123")
	req := httptest.NewRequest(http.MethodGet, "/api/v1/items", nil)
	req.Header.Set("Authorization", "Bearer "+userToken)
	req.Header.Set("X-Act-As-Owner", "someone-else")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin impersonation, got %d", rec.Code)
	}

	adminToken := loginAs(t, handler, "admin", "admin123")
	req = httptest.NewRequest(http.MethodGet, "/api/v1/items", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	req.Header.Set("X-Act-As-Owner", "demo")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin impersonation, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var body struct {
		Items []struct {
			OwnerID string `json:"owner_id"`
		} `json:"items"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Items) == 0 || body.Items[0].OwnerID != "demo" {
		t.Fatalf("expected demo's seeded items, got %+v", body.Items)
	}
}

func TestOwnersCannotSeeEachOther(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	// admin has no records of their own; demo's seed data must not leak.
	adminToken := loginAs(t, handler, "admin", "admin123")
	rec := authedRequest(t, handler, http.MethodGet, "/api/v1/items", adminToken, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Items []any `json:"items"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Items) != 0 {
		t.Fatalf("expected no items for admin's own ledger, got %d", len(body.Items))
	}
}

func TestLoginRateLimitReturns429(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{"username": "demo", "password": "badpass"})
	var last int
	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after 6 attempts, got %d", last)
	}
}

func TestMiddlewareSetsSecurityHeaders(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
	} {
		if got := rec.Header().Get(header); got != want {
			t.Fatalf("header %s: expected %q, got %q", header, want, got)
		}
	}
}

func TestParsePositiveLimitCaps(t *testing.T) {
	cases := []struct {
		raw      string
		fallback int
		max      int
		want     int
	}{
		{"", 100, 500, 100},
		{"25", 100, 500, 25},
		{"9999", 100, 500, 500},
		{"-3", 100, 500, 100},
		{"abc", 100, 500, 100},
	}
	for _, tc := range cases {
		if got := parsePositiveLimit(tc.raw, tc.fallback, tc.max); got != tc.want {
			t.Fatalf("parsePositiveLimit(%q): expected %d, got %d", tc.raw, tc.want, got)
		}
	}
}

func TestMethodNotAllowedOnSimulate(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, handler, "demo", "demo123")

	rec := authedRequest(t, handler, http.MethodGet, fmt.Sprintf("/api/v1/items/%s/simulate", "item-x"), token, "", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
