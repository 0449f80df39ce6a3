// Package testutil builds a fully wired service over an in-memory SQLite
// database for handler tests.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"quoteflow/internal/auth"
	"quoteflow/internal/catalog"
	"quoteflow/internal/handlers/admin"
	"quoteflow/internal/handlers/procurement"
	"quoteflow/internal/models"
	"quoteflow/internal/numbering"
	"quoteflow/internal/rfq"
	"quoteflow/internal/server"
	"quoteflow/internal/store"
	"quoteflow/internal/websocket"
)

// Password is the password of every seeded user.
const Password = "Quote-Flow-2026"

// Seeded reference data.
const (
	SiteA       = "site-a001"
	SiteB       = "site-b002"
	SupplierAcm = "sup-acme"
	SupplierBet = "sup-beta"
)

// Env is a wired application with seeded users, sites and suppliers.
type Env struct {
	Store   *store.SQL
	Hub     *websocket.Hub
	Gate    *auth.Gate
	RFQs    *rfq.Service
	Catalog *catalog.Service
	Authn   *auth.Authenticator
	Handler http.Handler

	// Tokens by username: admin, owner, other, pricer, viewer.
	Tokens map[string]string
	Users  map[string]*models.User
}

// SetupTestDB opens a migrated in-memory SQLite store.
func SetupTestDB(t *testing.T) *store.SQL {
	t.Helper()
	s, err := store.OpenSQL(store.DialectSQLite, ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test DB: %v", err)
	}
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("Failed to migrate test DB: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// NewEnv wires every service and handler over a fresh database.
func NewEnv(t *testing.T) *Env {
	t.Helper()
	log := zerolog.Nop()
	s := SetupTestDB(t)
	seed(t, s)

	tokens, err := auth.NewTokenIssuer("a-test-secret-of-some-length", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	gate := auth.NewGate()
	hub := websocket.NewHub(gate, log)
	gen := numbering.New(s, log, numbering.WithRetry(5, time.Millisecond))
	rfqs := rfq.NewService(s, gen, gate, hub, log)
	cat := catalog.NewService(s, gate, hub, log)
	authn := auth.NewAuthenticator(s, tokens, auth.NewLockout(), log)

	app := &server.App{
		Log:         log,
		Hub:         hub,
		Authn:       authn,
		Procurement: &procurement.Handler{RFQs: rfqs, Catalog: cat},
		Admin:       &admin.Handler{Auth: authn, Catalog: cat, Gate: gate, Store: s},
		Ping:        func(ctx context.Context) error { return s.DB().PingContext(ctx) },
		Version:     "test",
	}

	env := &Env{
		Store:   s,
		Hub:     hub,
		Gate:    gate,
		RFQs:    rfqs,
		Catalog: cat,
		Authn:   authn,
		Handler: app.Handler(),
		Tokens:  map[string]string{},
		Users:   map[string]*models.User{},
	}
	for _, u := range users(t) {
		tok, _, err := tokens.Issue(u)
		if err != nil {
			t.Fatal(err)
		}
		env.Tokens[u.Username] = tok
		env.Users[u.Username] = u
	}
	return env
}

var seededUsers = []struct {
	id, username string
	role         models.Role
}{
	{"u-admin", "admin", models.RoleAdmin},
	{"u-owner", "owner", models.RoleUser},
	{"u-other", "other", models.RoleUser},
	{"u-pricer", "pricer", models.RolePricingTeam},
	{"u-viewer", "viewer", models.RoleViewer},
}

func users(t *testing.T) []*models.User {
	t.Helper()
	hash, err := auth.HashPassword(Password)
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	out := make([]*models.User, len(seededUsers))
	for i, su := range seededUsers {
		out[i] = &models.User{ID: su.id, Username: su.username, PasswordHash: hash, Role: su.role, Active: true, CreatedAt: now}
	}
	return out
}

func seed(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	err := s.InTx(ctx, func(tx store.Tx) error {
		for _, site := range []models.Site{
			{ID: SiteA, Code: "A001", Name: "Plant A", Active: true, CreatedAt: now},
			{ID: SiteB, Code: "A002", Name: "Plant B", Active: true, CreatedAt: now},
		} {
			site := site
			if err := tx.CreateSite(ctx, &site); err != nil {
				return err
			}
		}
		for _, sup := range []models.Supplier{
			{ID: SupplierAcm, Name: "ACME", Active: true, CreatedAt: now, UpdatedAt: now},
			{ID: SupplierBet, Name: "Beta Metals", Active: true, CreatedAt: now, UpdatedAt: now},
		} {
			sup := sup
			if err := tx.CreateSupplier(ctx, &sup); err != nil {
				return err
			}
		}
		for _, u := range users(t) {
			if err := tx.CreateUser(ctx, u); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

// Do sends a request through the full middleware chain. body is encoded as
// JSON unless nil; token may be empty.
func (e *Env) Do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "192.0.2.10:40000"
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.Handler.ServeHTTP(w, req)
	return w
}

// As sends a request authenticated as the seeded user username.
func (e *Env) As(t *testing.T, username, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	tok, ok := e.Tokens[username]
	if !ok {
		t.Fatalf("no seeded user %q", username)
	}
	return e.Do(t, method, path, tok, body)
}

// AssertStatus fails the test unless w carries the expected status.
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Fatalf("Expected status %d, got %d: %s", expected, w.Code, w.Body.String())
	}
}

// DecodeEnvelope decodes the data field of an API response into v.
func DecodeEnvelope(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("Failed to decode envelope %q: %v", w.Body.String(), err)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("Failed to decode data %s: %v", env.Data, err)
	}
}

// ErrorCode returns the code field of an error response.
func ErrorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode error %q: %v", w.Body.String(), err)
	}
	return body.Code
}
