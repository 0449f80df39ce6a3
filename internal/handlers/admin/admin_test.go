package admin_test

import (
	"net/http"
	"testing"

	"quoteflow/internal/auth"
	"quoteflow/internal/models"
	"quoteflow/internal/testutil"
)

func TestLoginAndMe(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Do(t, "POST", "/api/v1/auth/login", "", map[string]any{"username": "pricer", "password": testutil.Password})
	testutil.AssertStatus(t, w, http.StatusOK)
	var res auth.LoginResult
	testutil.DecodeEnvelope(t, w, &res)
	if res.Token == "" || res.User.Role != models.RolePricingTeam {
		t.Fatalf("Unexpected login result %+v", res)
	}

	w = env.Do(t, "GET", "/api/v1/auth/me", res.Token, nil)
	testutil.AssertStatus(t, w, http.StatusOK)
	var me models.User
	testutil.DecodeEnvelope(t, w, &me)
	if me.Username != "pricer" {
		t.Errorf("Expected pricer, got %q", me.Username)
	}

	w = env.Do(t, "POST", "/api/v1/auth/login", "", map[string]any{"username": "pricer", "password": "wrong-password"})
	testutil.AssertStatus(t, w, http.StatusUnauthorized)
	w = env.Do(t, "POST", "/api/v1/auth/login", "", map[string]any{"username": "pricer"})
	testutil.AssertStatus(t, w, http.StatusBadRequest)
}

func TestSiteEndpoints(t *testing.T) {
	env := testutil.NewEnv(t)

	testutil.AssertStatus(t, env.As(t, "pricer", "POST", "/api/v1/sites", map[string]any{"code": "A003", "name": "Plant C"}), http.StatusForbidden)
	testutil.AssertStatus(t, env.As(t, "admin", "POST", "/api/v1/sites", map[string]any{"code": "PUNE", "name": "Plant C"}), http.StatusBadRequest)

	w := env.As(t, "admin", "POST", "/api/v1/sites", map[string]any{"code": "a003", "name": "Plant C"})
	testutil.AssertStatus(t, w, http.StatusCreated)
	var site models.Site
	testutil.DecodeEnvelope(t, w, &site)
	if site.Code != "A003" {
		t.Errorf("Expected upper-cased code, got %q", site.Code)
	}

	w = env.As(t, "admin", "DELETE", "/api/v1/sites/"+site.ID, nil)
	testutil.AssertStatus(t, w, http.StatusOK)
	testutil.DecodeEnvelope(t, w, &site)
	if site.Active {
		t.Error("Expected site to be deactivated")
	}

	w = env.As(t, "owner", "POST", "/api/v1/rfqs", map[string]any{
		"commodityType": "provided_data",
		"siteId":        site.ID,
		"draft":         true,
	})
	testutil.AssertStatus(t, w, http.StatusBadRequest)

	var sites []models.Site
	testutil.DecodeEnvelope(t, env.As(t, "viewer", "GET", "/api/v1/sites", nil), &sites)
	if len(sites) != 3 {
		t.Errorf("Expected 3 sites, got %d", len(sites))
	}
}

func TestAuditEndpoint(t *testing.T) {
	env := testutil.NewEnv(t)
	env.Do(t, "POST", "/api/v1/auth/login", "", map[string]any{"username": "owner", "password": testutil.Password})
	env.As(t, "admin", "POST", "/api/v1/suppliers", map[string]any{"name": "Gamma"})

	testutil.AssertStatus(t, env.As(t, "pricer", "GET", "/api/v1/audit", nil), http.StatusForbidden)

	w := env.As(t, "admin", "GET", "/api/v1/audit?module=supplier", nil)
	testutil.AssertStatus(t, w, http.StatusOK)
	var entries []models.AuditEntry
	testutil.DecodeEnvelope(t, w, &entries)
	if len(entries) != 1 || entries[0].Action != "CREATE" || entries[0].Username != "admin" {
		t.Errorf("Unexpected supplier audit %+v", entries)
	}

	testutil.DecodeEnvelope(t, env.As(t, "admin", "GET", "/api/v1/audit?limit=50", nil), &entries)
	if len(entries) != 2 {
		t.Errorf("Expected login and supplier entries, got %+v", entries)
	}
}
