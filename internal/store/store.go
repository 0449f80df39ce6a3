// Package store is the persistence boundary. Every service operation runs as
// one InTx call, so a failed or cancelled operation commits nothing.
package store

import (
	"context"
	"time"

	"quoteflow/internal/models"
)

// Store opens units of work against storage.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}

// Tx is the set of reads and writes available inside one unit of work.
// Lookups of missing records return an apperr NotFound error. Saving an RFQ
// whose number is already taken returns an apperr AllocationConflict.
type Tx interface {
	CreateSite(ctx context.Context, s *models.Site) error
	GetSite(ctx context.Context, id string) (*models.Site, error)
	GetSiteByCode(ctx context.Context, code string) (*models.Site, error)
	ListSites(ctx context.Context) ([]models.Site, error)
	UpdateSite(ctx context.Context, s *models.Site) error
	// LockSite takes an exclusive lock on the site row until the unit of
	// work ends, where the backend supports row locks.
	LockSite(ctx context.Context, id string) error

	CreateSupplier(ctx context.Context, s *models.Supplier) error
	GetSupplier(ctx context.Context, id string) (*models.Supplier, error)
	ListSuppliers(ctx context.Context, includeInactive bool) ([]models.Supplier, error)
	UpdateSupplier(ctx context.Context, s *models.Supplier) error

	CreateERPItem(ctx context.Context, it *models.ERPItem) error
	ListERPItems(ctx context.Context, search string) ([]models.ERPItem, error)

	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)

	InsertRFQ(ctx context.Context, r *models.RFQ) error
	// SaveRFQ replaces the stored aggregate (header, items, quotes, decision).
	SaveRFQ(ctx context.Context, r *models.RFQ) error
	GetRFQ(ctx context.Context, id string) (*models.RFQ, error)
	ListRFQs(ctx context.Context, f models.RFQFilter) ([]models.RFQ, error)
	DeleteRFQ(ctx context.Context, id string) error
	// RFQNumbers returns every assigned number starting with prefix.
	RFQNumbers(ctx context.Context, prefix string) ([]string, error)

	AppendAudit(ctx context.Context, e *models.AuditEntry) error
	ListAudit(ctx context.Context, f AuditFilter) ([]models.AuditEntry, error)
	PurgeAudit(ctx context.Context, before time.Time) (int64, error)
}

// AuditFilter narrows audit listings. Zero values match everything.
type AuditFilter struct {
	Module   string
	RecordID string
	Limit    int
}
