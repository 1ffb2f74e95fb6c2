package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/EmpoweredVote/watchlist-backend/internal/auth"
	"github.com/EmpoweredVote/watchlist-backend/internal/db"
	"github.com/EmpoweredVote/watchlist-backend/internal/httputil"
	"github.com/EmpoweredVote/watchlist-backend/internal/middleware"
)

// dbAvailable tracks whether the database connection was established.
var dbAvailable bool

// testServer is the shared httptest server for all integration tests.
var testServer *httptest.Server

var testDB *gorm.DB

func TestMain(m *testing.M) {
	// Load .env.local relative to the repository root (two directories up from internal/auth/).
	_ = godotenv.Load("../../.env.local")

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		// No database available, skip all integration tests gracefully.
		os.Exit(m.Run())
	}

	log := zap.NewNop()
	var err error
	testDB, err = db.Connect(context.Background(), databaseURL, log, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "integration db: %v\n", err)
		os.Exit(1)
	}
	if err := auth.Init(testDB); err != nil {
		fmt.Fprintf(os.Stderr, "integration schema: %v\n", err)
		os.Exit(1)
	}
	dbAvailable = true

	rs := httputil.NewResponder(log, true)
	svc := auth.NewService(auth.NewGormUserStore(testDB), auth.NewBcryptHasher(bcrypt.MinCost))
	tokens := auth.NewTokenIssuer("integration-secret", time.Hour)
	h := auth.NewHandler(auth.HandlerConfig{
		Service:   svc,
		Tokens:    tokens,
		Cookies:   auth.SessionCookies{Lifetime: time.Hour},
		Responder: rs,
	})

	noLimit := func(next http.Handler) http.Handler { return next }
	authn := middleware.Authenticate(svc, tokens, rs)

	// Mount the routes the same way main.go does.
	r := chi.NewRouter()
	r.Mount("/api/auth", auth.SetupRoutes(h, noLimit))
	r.Mount("/api/users", auth.SetupUserRoutes(h, authn, middleware.RequireRole(rs, auth.RoleAdmin)))

	testServer = httptest.NewServer(r)
	code := m.Run()
	testServer.Close()
	os.Exit(code)
}

// uniqueEmail returns a fresh address and removes its account after the test.
func uniqueEmail(t *testing.T) string {
	t.Helper()
	if !dbAvailable {
		t.Skip("skipping integration test (requires DATABASE_URL)")
	}

	email := fmt.Sprintf("it_%s@example.com", uuid.New().String()[:8])
	t.Cleanup(func() {
		testDB.Where("email = ?", email).Delete(&auth.User{})
	})
	return email
}

// newClientWithJar returns an http.Client with a fresh cookie jar that automatically
// carries cookies between requests.
func newClientWithJar(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar.New: %v", err)
	}
	return &http.Client{Jar: jar}
}

func postJSON(t *testing.T, client *http.Client, path string, payload any) *http.Response {
	t.Helper()
	body, _ := json.Marshal(payload)
	resp, err := client.Post(testServer.URL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

// readBody reads and returns the response body as a string, draining and closing it.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(b)
}

// TestRegisterThenProfile verifies that the cookie set by register authenticates
// the next request and that no password material is ever returned.
func TestRegisterThenProfile(t *testing.T) {
	email := uniqueEmail(t)
	client := newClientWithJar(t)

	resp := postJSON(t, client, "/api/auth/register", map[string]string{
		"name":     "Integration",
		"email":    strings.ToUpper(email),
		"password": "Passw0rd",
	})
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d; body: %s", resp.StatusCode, body)
	}
	if !strings.Contains(resp.Header.Get("Set-Cookie"), auth.CookieName+"=") {
		t.Errorf("expected Set-Cookie with %s, got %q", auth.CookieName, resp.Header.Get("Set-Cookie"))
	}

	profResp, err := client.Get(testServer.URL + "/api/users/profile")
	if err != nil {
		t.Fatalf("GET profile: %v", err)
	}
	profBody := readBody(t, profResp)
	if profResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d; body: %s", profResp.StatusCode, profBody)
	}

	var out struct {
		User map[string]any `json:"user"`
	}
	if err := json.Unmarshal([]byte(profBody), &out); err != nil {
		t.Fatalf("invalid JSON body: %s", profBody)
	}
	if out.User["email"] != email {
		t.Errorf("expected lowercased email %q, got %v", email, out.User["email"])
	}
	for _, leaked := range []string{"password", "passwordHash", "PasswordHash"} {
		if _, ok := out.User[leaked]; ok {
			t.Errorf("profile leaks %q", leaked)
		}
	}
}

// TestDuplicateEmailRejected verifies the unique email constraint is case-insensitive.
func TestDuplicateEmailRejected(t *testing.T) {
	email := uniqueEmail(t)
	client := newClientWithJar(t)

	first := postJSON(t, client, "/api/auth/register", map[string]string{"name": "One", "email": email, "password": "Passw0rd"})
	readBody(t, first)
	if first.StatusCode != http.StatusCreated {
		t.Fatalf("first register: %d", first.StatusCode)
	}

	second := postJSON(t, client, "/api/auth/register", map[string]string{"name": "Two", "email": strings.ToUpper(email), "password": "Passw0rd"})
	body := readBody(t, second)
	if second.StatusCode != http.StatusBadRequest || !strings.Contains(body, "Email already registered") {
		t.Fatalf("expected 400 duplicate, got %d: %s", second.StatusCode, body)
	}
}

// TestLogoutClearsSession verifies that after logout the cookie jar no longer
// authenticates requests.
func TestLogoutClearsSession(t *testing.T) {
	email := uniqueEmail(t)
	client := newClientWithJar(t)

	readBody(t, postJSON(t, client, "/api/auth/register", map[string]string{"name": "Leaver", "email": email, "password": "Passw0rd"}))

	logout := postJSON(t, client, "/api/auth/logout", nil)
	readBody(t, logout)
	if logout.StatusCode != http.StatusOK {
		t.Fatalf("logout: %d", logout.StatusCode)
	}

	resp, err := client.Get(testServer.URL + "/api/users/profile")
	if err != nil {
		t.Fatalf("GET profile: %v", err)
	}
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d: %s", resp.StatusCode, body)
	}
}
