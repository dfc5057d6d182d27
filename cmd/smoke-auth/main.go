// Command smoke-auth drives the full local-auth path against an in-process
// stack: register, login, call a protected route, and confirm a tampered
// token is rejected. No database or identity provider required.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"

	"parishledger.org/internal/auth"
	"parishledger.org/internal/finance"
	"parishledger.org/internal/httpapi"
	"parishledger.org/internal/obs"
)

func main() {
	obs.Init()

	tokens, err := auth.NewTokens("smoke-test-secret")
	if err != nil {
		log.Fatalf("tokens: %v", err)
	}
	svc := auth.NewService(auth.NewMemoryUserStore(), tokens)
	api := httpapi.New(httpapi.ReadyProbe{}, "smoke", svc, finance.NewMemoryStore())

	server := httptest.NewServer(api.Handler())
	defer server.Close()

	post := func(path string, payload, out any) int {
		body, _ := json.Marshal(payload)
		resp, err := http.Post(server.URL+path, "application/json", bytes.NewReader(body))
		if err != nil {
			log.Fatalf("POST %s: %v", path, err)
		}
		defer resp.Body.Close()
		if out != nil {
			_ = json.NewDecoder(resp.Body).Decode(out)
		}
		return resp.StatusCode
	}

	if code := post("/api/v1/auth/register", map[string]any{
		"name": "Smoke Admin", "email": "smoke@parishledger.org",
		"password": "smoke-pass-1", "role": "Admin",
	}, nil); code != http.StatusCreated {
		log.Fatalf("register: status %d", code)
	}

	var login struct {
		AccessToken string `json:"access_token"`
	}
	if code := post("/api/v1/auth/login", map[string]any{
		"email": "smoke@parishledger.org", "password": "smoke-pass-1",
	}, &login); code != http.StatusOK {
		log.Fatalf("login: status %d", code)
	}

	get := func(token string) int {
		req, _ := http.NewRequest(http.MethodGet, server.URL+"/api/v1/auth/me", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			log.Fatalf("GET /me: %v", err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	if code := get(login.AccessToken); code != http.StatusOK {
		log.Fatalf("protected route with valid token: status %d", code)
	}
	if code := get(""); code != http.StatusUnauthorized {
		log.Fatalf("protected route without token: status %d", code)
	}

	tampered := []byte(login.AccessToken)
	tampered[len(tampered)/2] ^= 0x01
	if code := get(string(tampered)); code != http.StatusUnauthorized {
		log.Fatalf("tampered token accepted: status %d", code)
	}

	fmt.Println("✅ auth smoke test passed")
}
