package server

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"quoteflow/internal/apperr"
	"quoteflow/internal/handlers/admin"
	"quoteflow/internal/handlers/procurement"
	"quoteflow/internal/response"
	"quoteflow/internal/websocket"
)

const (
	APIPrefix  = "/api/v1"
	LoginPath  = APIPrefix + "/auth/login"
	HealthPath = APIPrefix + "/health"
	WSPath     = APIPrefix + "/ws"
)

// App holds shared dependencies for the application.
type App struct {
	Log         zerolog.Logger
	Hub         *websocket.Hub
	Authn       TokenAuthenticator
	Procurement *procurement.Handler
	Admin       *admin.Handler
	Limiter     *RateLimiter
	// Ping reports storage health for /health. Optional.
	Ping func(ctx context.Context) error
	// Version is reported by /health.
	Version string
}

// Routes registers every API route on r.
func (a *App) Routes(r *mux.Router) {
	api := r.PathPrefix(APIPrefix).Subrouter()
	p, ad := a.Procurement, a.Admin

	api.HandleFunc("/health", a.health).Methods(http.MethodGet)
	api.Handle("/ws", a.Hub).Methods(http.MethodGet)

	api.HandleFunc("/auth/login", ad.HandleLogin).Methods(http.MethodPost)
	api.HandleFunc("/auth/me", ad.HandleMe).Methods(http.MethodGet)

	api.HandleFunc("/rfqs", p.ListRFQs).Methods(http.MethodGet)
	api.HandleFunc("/rfqs", p.CreateRFQ).Methods(http.MethodPost)
	api.HandleFunc("/rfqs/{id}", p.GetRFQ).Methods(http.MethodGet)
	api.HandleFunc("/rfqs/{id}", p.UpdateRFQ).Methods(http.MethodPut)
	api.HandleFunc("/rfqs/{id}", p.DeleteRFQ).Methods(http.MethodDelete)
	api.HandleFunc("/rfqs/{id}/submit", p.SubmitRFQ).Methods(http.MethodPost)
	api.HandleFunc("/rfqs/{id}/commodity-type", p.SetCommodityType).Methods(http.MethodPut)

	api.HandleFunc("/rfqs/{id}/quotes", p.AddQuote).Methods(http.MethodPost)
	api.HandleFunc("/rfqs/{id}/quotes/{index}", p.RemoveQuote).Methods(http.MethodDelete)
	api.HandleFunc("/rfqs/{id}/quotes/{index}/supplier", p.AssignSupplier).Methods(http.MethodPut)
	api.HandleFunc("/rfqs/{id}/quotes/{index}/rates/{itemId}", p.SetItemRate).Methods(http.MethodPut)
	api.HandleFunc("/rfqs/{id}/quotes/{index}/rates/{itemId}", p.ClearItemRate).Methods(http.MethodDelete)
	api.HandleFunc("/rfqs/{id}/quotes/{index}/footer/{field}", p.SetFooterField).Methods(http.MethodPut)
	api.HandleFunc("/rfqs/{id}/quotes/{index}/attachment", p.SetAttachment).Methods(http.MethodPut)

	api.HandleFunc("/rfqs/{id}/comparison", p.Comparison).Methods(http.MethodGet)
	api.HandleFunc("/rfqs/{id}/comparison.xlsx", p.ExportComparison).Methods(http.MethodGet)

	api.HandleFunc("/rfqs/{id}/final-decision", p.BeginReview).Methods(http.MethodPost)
	api.HandleFunc("/rfqs/{id}/final-decision", p.UpdateDecision).Methods(http.MethodPut)
	api.HandleFunc("/rfqs/{id}/approve", p.Approve).Methods(http.MethodPost)

	api.HandleFunc("/sites", ad.ListSites).Methods(http.MethodGet)
	api.HandleFunc("/sites", ad.CreateSite).Methods(http.MethodPost)
	api.HandleFunc("/sites/{id}", ad.DeactivateSite).Methods(http.MethodDelete)

	api.HandleFunc("/suppliers", p.ListSuppliers).Methods(http.MethodGet)
	api.HandleFunc("/suppliers", p.CreateSupplier).Methods(http.MethodPost)
	api.HandleFunc("/suppliers/{id}", p.GetSupplier).Methods(http.MethodGet)
	api.HandleFunc("/suppliers/{id}", p.UpdateSupplier).Methods(http.MethodPut)
	api.HandleFunc("/suppliers/{id}", p.DeleteSupplier).Methods(http.MethodDelete)

	api.HandleFunc("/erp-items", p.ListERPItems).Methods(http.MethodGet)
	api.HandleFunc("/erp-items", p.CreateERPItem).Methods(http.MethodPost)

	api.HandleFunc("/audit", ad.ListAudit).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response.Err(w, "not found", string(apperr.KindNotFound), http.StatusNotFound)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response.Err(w, "method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
	})
}

// Handler returns the router wrapped in the middleware chain.
func (a *App) Handler() http.Handler {
	r := mux.NewRouter()
	a.Routes(r)

	limiter := a.Limiter
	if limiter == nil {
		limiter = NewRateLimiter()
	}
	var h http.Handler = r
	h = GzipMiddleware(h)
	h = RequireAuth(a.Authn, HealthPath, LoginPath)(h)
	h = RateLimitMiddleware(limiter, LoginPath)(h)
	h = SecurityHeaders(h)
	h = CORS(h)
	h = Recoverer(h)
	return LoggingMiddleware(a.Log)(h)
}

func (a *App) health(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if a.Ping != nil {
		if err := a.Ping(r.Context()); err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("health check failed")
			status, code = "unavailable", http.StatusServiceUnavailable
		}
	}
	clients := 0
	if a.Hub != nil {
		clients = a.Hub.ClientCount()
	}
	response.Status(w, code, map[string]any{
		"status":    status,
		"version":   a.Version,
		"wsClients": clients,
	})
}
