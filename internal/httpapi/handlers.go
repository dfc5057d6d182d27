package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"parishledger.org/api/spec"
	"parishledger.org/internal/auth"
	"parishledger.org/internal/entra"
	"parishledger.org/internal/finance"
	"parishledger.org/internal/obs"
)

// ReadyProbe reports whether the service's dependencies are reachable.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	auth    *auth.Service
	finance finance.Store

	// Federated login is optional: both are nil when the tenant is not
	// configured, and the gatekeeper then only accepts locally issued tokens.
	verifier *entra.Verifier
	oauth    *entra.OAuth
}

// Option configures the API.
type Option func(*API)

// WithEntra enables federated token verification and the login-url/callback
// endpoints.
func WithEntra(verifier *entra.Verifier, oauth *entra.OAuth) Option {
	return func(a *API) {
		a.verifier = verifier
		a.oauth = oauth
	}
}

// New builds the API. The auth service is mandatory: without it the
// gatekeeper cannot verify anything, so construction fails loudly instead of
// serving unauthenticated.
func New(rp ReadyProbe, version string, svc *auth.Service, store finance.Store, opts ...Option) *API {
	if svc == nil {
		panic("httpapi: auth service is required")
	}
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		auth:       svc,
		finance:    store,
	}
	for _, opt := range opts {
		opt(a)
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/api/v1/info", a.Info)

	// auth
	a.mux.HandleFunc("/api/v1/auth/register", a.handleRegister)
	a.mux.HandleFunc("/api/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/api/v1/auth/refresh", a.handleRefresh)
	a.mux.HandleFunc("/api/v1/auth/logout", a.handleLogout)
	a.mux.HandleFunc("/api/v1/auth/me", a.handleMe)
	a.mux.HandleFunc("/api/v1/auth/entra/login-url", a.handleEntraLoginURL)
	a.mux.HandleFunc("/api/v1/auth/entra/callback", a.handleEntraCallback)

	// finance
	a.mux.HandleFunc("/api/v1/provinces", a.handleProvincesCollection)
	a.mux.HandleFunc("/api/v1/provinces/", a.handleProvinceResource)
	a.mux.HandleFunc("/api/v1/departments", a.handleDepartmentsCollection)
	a.mux.HandleFunc("/api/v1/departments/", a.handleDepartmentResource)
	a.mux.HandleFunc("/api/v1/projects", a.handleProjectsCollection)
	a.mux.HandleFunc("/api/v1/projects/", a.handleProjectResource)
	a.mux.HandleFunc("/api/v1/obligations", a.handleObligationsCollection)
	a.mux.HandleFunc("/api/v1/obligations/", a.handleObligationResource)
	a.mux.HandleFunc("/api/v1/budgets", a.handleBudgetsCollection)
	a.mux.HandleFunc("/api/v1/budgets/", a.handleBudgetResource)
	a.mux.HandleFunc("/api/v1/transactions", a.handleTransactionsCollection)
	a.mux.HandleFunc("/api/v1/transactions/", a.handleTransactionResource)

	// OpenAPI YAML + ReDoc viewer
	a.mux.HandleFunc("/openapi.yaml", a.OpenAPISpec)
	a.mux.HandleFunc("/docs", a.Docs)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped handler chain for the server.
func (a *API) Handler() http.Handler {
	return obs.Instrument(a.withAuth(a.mux))
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "parishledger-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "parishledger-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

func (a *API) OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
	_, _ = w.Write(spec.OpenAPI)
}

const docsHTML = `<!DOCTYPE html>
<html>
<head>
  <title>ParishLedger API</title>
  <meta charset="utf-8"/>
  <meta name="viewport" content="width=device-width, initial-scale=1">
</head>
<body>
  <redoc spec-url="/openapi.yaml"></redoc>
  <script src="https://cdn.jsdelivr.net/npm/redoc@latest/bundles/redoc.standalone.js"></script>
</body>
</html>`

func (a *API) Docs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(docsHTML))
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}
