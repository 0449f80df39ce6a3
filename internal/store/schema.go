package store

import (
	"context"
	"fmt"
)

func schema(d Dialect) []string {
	auditID := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if d == DialectPostgres {
		auditID = "BIGSERIAL PRIMARY KEY"
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS sites (
			id TEXT PRIMARY KEY,
			code TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL DEFAULT '',
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS suppliers (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			contact_email TEXT NOT NULL DEFAULT '',
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS erp_items (
			id TEXT PRIMARY KEY,
			item_code TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT '',
			unit_of_measure TEXT NOT NULL DEFAULT '',
			last_buying_price TEXT NOT NULL DEFAULT '0',
			last_vendor TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL CHECK(role IN ('super_admin','admin','manager','user','viewer','pricing_team')),
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS rfqs (
			id TEXT PRIMARY KEY,
			number TEXT UNIQUE,
			title TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			currency TEXT NOT NULL DEFAULT '',
			commodity_type TEXT NOT NULL CHECK(commodity_type IN ('provided_data','service','transport')),
			site_id TEXT NOT NULL REFERENCES sites(id),
			site_code TEXT NOT NULL,
			status TEXT NOT NULL CHECK(status IN ('draft','pending','approved','rejected')),
			total_value TEXT NOT NULL DEFAULT '0',
			owner_id TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			submitted_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rfqs_owner ON rfqs(owner_id)`,
		`CREATE INDEX IF NOT EXISTS idx_rfqs_status ON rfqs(status)`,
		`CREATE TABLE IF NOT EXISTS rfq_items (
			id TEXT PRIMARY KEY,
			rfq_id TEXT NOT NULL REFERENCES rfqs(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			kind TEXT NOT NULL,
			item_code TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			specifications TEXT NOT NULL DEFAULT '',
			unit_of_measure TEXT NOT NULL DEFAULT '',
			required_quantity TEXT NOT NULL DEFAULT '0',
			last_buying_price TEXT NOT NULL DEFAULT '0',
			last_vendor TEXT NOT NULL DEFAULT '',
			project_name TEXT NOT NULL DEFAULT '',
			from_location TEXT NOT NULL DEFAULT '',
			to_location TEXT NOT NULL DEFAULT '',
			vehicle_size TEXT NOT NULL DEFAULT '',
			load_desc TEXT NOT NULL DEFAULT '',
			dimensions TEXT NOT NULL DEFAULT '',
			frequency TEXT NOT NULL DEFAULT '0'
		)`,
		`CREATE TABLE IF NOT EXISTS rfq_quotes (
			id TEXT PRIMARY KEY,
			rfq_id TEXT NOT NULL REFERENCES rfqs(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			supplier_id TEXT,
			attachment TEXT NOT NULL DEFAULT '',
			transportation_freight TEXT NOT NULL DEFAULT '',
			packing_charges TEXT NOT NULL DEFAULT '',
			delivery_lead_time TEXT NOT NULL DEFAULT '',
			warranty TEXT NOT NULL DEFAULT '',
			currency TEXT NOT NULL DEFAULT '',
			remarks TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS rfq_quote_rates (
			quote_id TEXT NOT NULL REFERENCES rfq_quotes(id) ON DELETE CASCADE,
			item_id TEXT NOT NULL,
			rate TEXT NOT NULL,
			PRIMARY KEY (quote_id, item_id)
		)`,
		`CREATE TABLE IF NOT EXISTS rfq_decisions (
			rfq_id TEXT PRIMARY KEY REFERENCES rfqs(id) ON DELETE CASCADE,
			status TEXT NOT NULL CHECK(status IN ('in_progress','approved','rejected')),
			reason TEXT NOT NULL DEFAULT '',
			decided_by TEXT NOT NULL DEFAULT '',
			started_at TEXT NOT NULL,
			finalized_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS rfq_decision_items (
			rfq_id TEXT NOT NULL REFERENCES rfqs(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			item_id TEXT NOT NULL,
			supplier_name TEXT,
			final_total_price TEXT,
			PRIMARY KEY (rfq_id, item_id)
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS audit_log (
			id %s,
			username TEXT NOT NULL DEFAULT '',
			action TEXT NOT NULL,
			module TEXT NOT NULL,
			record_id TEXT NOT NULL DEFAULT '',
			summary TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		)`, auditID),
		`CREATE INDEX IF NOT EXISTS idx_audit_record ON audit_log(module, record_id)`,
	}
}

// Migrate creates any missing tables and indexes.
func (s *SQL) Migrate(ctx context.Context) error {
	for _, stmt := range schema(s.dialect) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
