package admin

import (
	"quoteflow/internal/auth"
	"quoteflow/internal/catalog"
	"quoteflow/internal/store"
)

// Handler holds dependencies for admin handlers.
type Handler struct {
	Auth    *auth.Authenticator
	Catalog *catalog.Service
	Gate    *auth.Gate
	Store   store.Store
}
