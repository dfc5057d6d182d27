package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"parishledger.org/internal/auth"
	"parishledger.org/internal/entra"
	"parishledger.org/internal/finance"
	"parishledger.org/internal/httpapi"
	"parishledger.org/internal/obs"
)

var version = "0.3.1"

func main() {
	obs.Init()
	obs.InitBuildInfo(version, os.Getenv("PARISH_BUILD_COMMIT"))

	secret := os.Getenv("PARISH_AUTH_SECRET")
	if secret == "" {
		log.Fatal("PARISH_AUTH_SECRET is required")
	}

	var db *sql.DB
	if dsn := os.Getenv("PARISH_PG_DSN"); dsn != "" {
		var err error
		db, err = sql.Open("pgx", dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	var users auth.UserStore
	var records finance.Store
	if db != nil {
		users = auth.NewPGUserStore(db)
		records = finance.NewPGStore(db)
	} else {
		// No DSN: run fully in memory, useful for local development.
		log.Print("PARISH_PG_DSN not set, using in-memory stores")
		users = auth.NewMemoryUserStore()
		records = finance.NewMemoryStore()
	}

	var tokenOpts []auth.TokensOption
	if ttl := envDuration("PARISH_ACCESS_TTL"); ttl > 0 {
		tokenOpts = append(tokenOpts, auth.WithAccessTTL(ttl))
	}
	if ttl := envDuration("PARISH_REFRESH_TTL"); ttl > 0 {
		tokenOpts = append(tokenOpts, auth.WithRefreshTTL(ttl))
	}
	tokens, err := auth.NewTokens(secret, tokenOpts...)
	if err != nil {
		log.Fatalf("token issuer: %v", err)
	}
	svc := auth.NewService(users, tokens)

	var apiOpts []httpapi.Option
	if tenant := os.Getenv("PARISH_ENTRA_TENANT_ID"); tenant != "" {
		cfg := entra.Config{
			TenantID:     tenant,
			ClientID:     os.Getenv("PARISH_ENTRA_CLIENT_ID"),
			ClientSecret: os.Getenv("PARISH_ENTRA_CLIENT_SECRET"),
			RedirectURI:  os.Getenv("PARISH_ENTRA_REDIRECT_URI"),
		}
		verifier, err := entra.NewVerifier(cfg)
		if err != nil {
			log.Fatalf("entra verifier: %v", err)
		}
		oauth, err := entra.NewOAuth(cfg)
		if err != nil {
			log.Fatalf("entra oauth: %v", err)
		}
		apiOpts = append(apiOpts, httpapi.WithEntra(verifier, oauth))
	}

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version, svc, records, apiOpts...)

	handler := api.Handler()
	handler = httpapi.MaxBodyBytes(handler, 1<<20)
	handler = httpapi.RateLimit(handler, 40, 20)
	handler = httpapi.CORS(handler, splitList(os.Getenv("PARISH_CORS_ORIGINS")))
	handler = httpapi.SecurityHeaders(handler)
	handler = httpapi.LoggingJSON(handler)
	handler = httpapi.RequestID(handler)

	addr := os.Getenv("PARISH_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting parishledger-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}

func envDuration(key string) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Fatalf("%s: %v", key, err)
	}
	return d
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
