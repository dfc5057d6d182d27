package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                                    "/",
		"/metrics":                            "/metrics",
		"/api/v1/provinces":                   "/api/v1/provinces",
		"/api/v1/provinces/01ABC":             "/api/v1/provinces/:id",
		"/api/v1/transactions/01ABC":          "/api/v1/transactions/:id",
		"/api/v1/transactions?limit=10":       "/api/v1/transactions",
		"/api/v1/auth/login":                  "/api/v1/auth/login",
		"/api/v1/budgets/01ABC":               "/api/v1/budgets/:id",
		"/api/v1/provinces/01ABC/statements":  "/api/v1/provinces/01ABC/statements",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
