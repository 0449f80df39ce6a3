package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"quoteflow/internal/models"
	"quoteflow/internal/store"
)

// Action constants.
const (
	ActionCreate  = "CREATE"
	ActionUpdate  = "UPDATE"
	ActionDelete  = "DELETE"
	ActionSubmit  = "SUBMIT"
	ActionReview  = "REVIEW"
	ActionApprove = "APPROVE"
	ActionReject  = "REJECT"
	ActionLogin   = "LOGIN"
	ActionExport  = "EXPORT"
	ActionSeed    = "SEED"
)

// Modules.
const (
	ModuleRFQ      = "rfq"
	ModuleDecision = "decision"
	ModuleSite     = "site"
	ModuleSupplier = "supplier"
	ModuleERPItem  = "erp_item"
	ModuleAuth     = "auth"
)

// Log appends an audit entry inside tx, so it commits or rolls back with the
// change it describes.
func Log(ctx context.Context, tx store.Tx, p *models.Principal, action, module, recordID, summary string) error {
	username := "system"
	if p != nil {
		username = p.Username
	}
	err := tx.AppendAudit(ctx, &models.AuditEntry{
		Username:  username,
		Action:    action,
		Module:    module,
		RecordID:  recordID,
		Summary:   summary,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("audit %s %s: %w", module, action, err)
	}
	return nil
}

// Cleanup removes entries older than retentionDays. A non-positive
// retention keeps everything.
func Cleanup(ctx context.Context, s store.Store, retentionDays int, log zerolog.Logger) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	var purged int64
	err := s.InTx(ctx, func(tx store.Tx) error {
		var err error
		purged, err = tx.PurgeAudit(ctx, cutoff)
		return err
	})
	if err != nil {
		return 0, err
	}
	log.Info().Int64("purged", purged).Int("retention_days", retentionDays).Msg("audit cleanup")
	return purged, nil
}

// List returns recent entries, newest first.
func List(ctx context.Context, s store.Store, f store.AuditFilter) ([]models.AuditEntry, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}
	var out []models.AuditEntry
	err := s.InTx(ctx, func(tx store.Tx) error {
		var err error
		out, err = tx.ListAudit(ctx, f)
		return err
	})
	return out, err
}
