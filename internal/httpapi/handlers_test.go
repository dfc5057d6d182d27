package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"parishledger.org/internal/auth"
	"parishledger.org/internal/finance"
)

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T
}

func newTestClient(t *testing.T) *apiClient {
	t.Helper()
	api, _ := newTestAPI(t)
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)
	return &apiClient{baseURL: srv.URL, client: srv.Client(), t: t}
}

func (c *apiClient) do(method, path string, body any, token string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) register(name, email, password, role string) {
	c.t.Helper()
	resp := c.do(http.MethodPost, "/api/v1/auth/register", map[string]any{
		"name": name, "email": email, "password": password, "role": role,
	}, "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		c.t.Fatalf("register %s: status %d", email, resp.StatusCode)
	}
}

func (c *apiClient) login(email, password string) auth.TokenPair {
	c.t.Helper()
	resp := c.do(http.MethodPost, "/api/v1/auth/login", map[string]any{
		"email": email, "password": password,
	}, "")
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("login %s: status %d", email, resp.StatusCode)
	}
	return decode[auth.TokenPair](c.t, resp)
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestRegisterLoginProtectedFlow(t *testing.T) {
	c := newTestClient(t)
	c.register("Ada", "a@x.org", "pw1", "Treasurer")
	pair := c.login("a@x.org", "pw1")
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected a full token pair")
	}

	resp := c.do(http.MethodGet, "/api/v1/auth/me", nil, pair.AccessToken)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me: status %d", resp.StatusCode)
	}
	me := decode[auth.User](t, resp)
	if me.Email != "a@x.org" || me.Role != auth.RoleTreasurer {
		t.Fatalf("unexpected identity: %+v", me)
	}

	// Refresh is public by design: an expired access token must not lock
	// the caller out of rotating the pair.
	resp = c.do(http.MethodPost, "/api/v1/auth/refresh", map[string]any{
		"refresh_token": pair.RefreshToken,
	}, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh: status %d", resp.StatusCode)
	}
	rotated := decode[auth.TokenPair](t, resp)
	if rotated.AccessToken == "" {
		t.Fatal("refresh returned no access token")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	c := newTestClient(t)
	c.register("Ada", "a@x.org", "pw1", "Viewer")

	resp := c.do(http.MethodPost, "/api/v1/auth/login", map[string]any{
		"email": "a@x.org", "password": "nope",
	}, "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestRegisterDuplicateEmailConflict(t *testing.T) {
	c := newTestClient(t)
	c.register("Ada", "a@x.org", "pw1", "Viewer")

	resp := c.do(http.MethodPost, "/api/v1/auth/register", map[string]any{
		"name": "Other", "email": "A@X.org", "password": "pw2",
	}, "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestFinanceCRUDRoleGating(t *testing.T) {
	c := newTestClient(t)
	c.register("Admin", "admin@x.org", "pw1", "Admin")
	c.register("Treasurer", "treasurer@x.org", "pw1", "Treasurer")
	c.register("Viewer", "viewer@x.org", "pw1", "Viewer")
	admin := c.login("admin@x.org", "pw1").AccessToken
	treasurer := c.login("treasurer@x.org", "pw1").AccessToken
	viewer := c.login("viewer@x.org", "pw1").AccessToken

	// Viewer cannot write.
	resp := c.do(http.MethodPost, "/api/v1/departments", map[string]any{
		"name": "Music",
	}, viewer)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("viewer write: expected 403, got %d", resp.StatusCode)
	}

	// Treasurer can create.
	resp = c.do(http.MethodPost, "/api/v1/departments", map[string]any{
		"name": "Music", "budget_allocated": 500_000,
	}, treasurer)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("treasurer create: status %d", resp.StatusCode)
	}
	dept := decode[finance.Department](t, resp)
	if dept.ID == "" {
		t.Fatal("expected department id")
	}

	// Everyone authenticated can read.
	resp = c.do(http.MethodGet, "/api/v1/departments/"+dept.ID, nil, viewer)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("viewer read: status %d", resp.StatusCode)
	}

	// Only Admin deletes.
	resp = c.do(http.MethodDelete, "/api/v1/departments/"+dept.ID, nil, treasurer)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("treasurer delete: expected 403, got %d", resp.StatusCode)
	}
	resp = c.do(http.MethodDelete, "/api/v1/departments/"+dept.ID, nil, admin)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("admin delete: status %d", resp.StatusCode)
	}
}

func TestTransactionCreateAndFilter(t *testing.T) {
	c := newTestClient(t)
	c.register("Treasurer", "treasurer@x.org", "pw1", "Treasurer")
	token := c.login("treasurer@x.org", "pw1").AccessToken

	for _, tx := range []map[string]any{
		{"type": "receipt", "amount": 10_000, "category": "tithes"},
		{"type": "expense", "amount": 2_500, "category": "supplies"},
	} {
		resp := c.do(http.MethodPost, "/api/v1/transactions", tx, token)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("create transaction: status %d", resp.StatusCode)
		}
		resp.Body.Close()
	}

	u, _ := url.Parse("/api/v1/transactions")
	q := u.Query()
	q.Set("type", "receipt")
	u.RawQuery = q.Encode()
	resp := c.do(http.MethodGet, u.String(), nil, token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list transactions: status %d", resp.StatusCode)
	}
	listing := decode[struct {
		Items []finance.Transaction `json:"items"`
	}](t, resp)
	if len(listing.Items) != 1 {
		t.Fatalf("expected 1 receipt, got %d", len(listing.Items))
	}
	if listing.Items[0].Type != finance.TransactionReceipt {
		t.Fatalf("unexpected type: %s", listing.Items[0].Type)
	}
	if listing.Items[0].CreatedBy == "" {
		t.Fatal("created_by should carry the caller's user id")
	}
}

func TestBudgetUniquePerYearAndDepartment(t *testing.T) {
	c := newTestClient(t)
	c.register("Chair", "chair@x.org", "pw1", "FinanceChair")
	token := c.login("chair@x.org", "pw1").AccessToken

	body := map[string]any{
		"year": 2026, "department_id": "dep-1", "allocated_amount": 1_000_000,
	}
	resp := c.do(http.MethodPost, "/api/v1/budgets", body, token)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create budget: status %d", resp.StatusCode)
	}
	resp = c.do(http.MethodPost, "/api/v1/budgets", body, token)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate budget: expected 409, got %d", resp.StatusCode)
	}
}

func TestObligationLifecycleWithRoles(t *testing.T) {
	c := newTestClient(t)
	c.register("Treasurer", "treasurer@x.org", "pw1", "Treasurer")
	c.register("Viewer", "viewer@x.org", "pw1", "Viewer")
	treasurer := c.login("treasurer@x.org", "pw1").AccessToken
	viewer := c.login("viewer@x.org", "pw1").AccessToken

	body := map[string]any{
		"description": "Roof contractor final payment",
		"amount":      150_000,
		"due_date":    "2026-06-30T00:00:00Z",
	}
	resp := c.do(http.MethodPost, "/api/v1/obligations", body, viewer)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("viewer create: expected 403, got %d", resp.StatusCode)
	}

	resp = c.do(http.MethodPost, "/api/v1/obligations", body, treasurer)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create obligation: status %d", resp.StatusCode)
	}
	created := decode[finance.Obligation](t, resp)
	if created.ID == "" || created.Status != finance.ObligationPending {
		t.Fatalf("expected a pending obligation with an id: %+v", created)
	}

	body["status"] = "Completed"
	resp = c.do(http.MethodPut, "/api/v1/obligations/"+created.ID, body, treasurer)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update obligation: status %d", resp.StatusCode)
	}
	updated := decode[finance.Obligation](t, resp)
	if updated.Status != finance.ObligationCompleted {
		t.Fatalf("status not updated: %+v", updated)
	}

	resp = c.do(http.MethodGet, "/api/v1/obligations", nil, viewer)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list obligations: status %d", resp.StatusCode)
	}
	listing := decode[struct {
		Items []finance.Obligation `json:"items"`
	}](t, resp)
	if len(listing.Items) != 1 {
		t.Fatalf("expected 1 obligation, got %d", len(listing.Items))
	}

	// Deletes stay Admin-only, same as every other finance record.
	resp = c.do(http.MethodDelete, "/api/v1/obligations/"+created.ID, nil, treasurer)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("treasurer delete: expected 403, got %d", resp.StatusCode)
	}
}

func TestObligationRejectsInvalidInput(t *testing.T) {
	c := newTestClient(t)
	c.register("Treasurer", "treasurer@x.org", "pw1", "Treasurer")
	token := c.login("treasurer@x.org", "pw1").AccessToken

	for name, body := range map[string]map[string]any{
		"missing description": {"amount": 100, "due_date": "2026-06-30T00:00:00Z"},
		"zero amount":         {"description": "x", "amount": 0, "due_date": "2026-06-30T00:00:00Z"},
		"missing due date":    {"description": "x", "amount": 100},
		"unknown status":      {"description": "x", "amount": 100, "due_date": "2026-06-30T00:00:00Z", "status": "settled"},
	} {
		resp := c.do(http.MethodPost, "/api/v1/obligations", body, token)
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", name, resp.StatusCode)
		}
	}
}

func TestLogoutIsStatelessAcknowledgement(t *testing.T) {
	c := newTestClient(t)
	resp := c.do(http.MethodPost, "/api/v1/auth/logout", nil, "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout: expected 204, got %d", resp.StatusCode)
	}
}

func TestNewPanicsWithoutAuthService(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic when the auth service is nil")
		}
	}()
	New(ReadyProbe{}, "test", nil, finance.NewMemoryStore())
}

func TestHealthAndReady(t *testing.T) {
	c := newTestClient(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		resp := c.do(http.MethodGet, path, nil, "")
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: status %d", path, resp.StatusCode)
		}
	}
}
