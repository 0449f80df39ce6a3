package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"quoteflow/internal/apperr"
	"quoteflow/internal/models"
)

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// SQL is a Store over database/sql. SQLite uses the modernc driver and
// PostgreSQL uses pgx through its stdlib adapter.
type SQL struct {
	db      *sql.DB
	dialect Dialect
}

// OpenSQL opens and configures a connection pool for dialect.
func OpenSQL(dialect Dialect, dsn string) (*SQL, error) {
	var driver string
	switch dialect {
	case DialectSQLite:
		driver = "sqlite"
	case DialectPostgres:
		driver = "pgx"
	default:
		return nil, fmt.Errorf("unsupported database dialect %q", dialect)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}

	if dialect == DialectSQLite {
		// One connection: writes serialize in-process and :memory: databases
		// stay a single database.
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
		for _, pragma := range []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 10000"} {
			if _, err := db.Exec(pragma); err != nil {
				db.Close()
				return nil, fmt.Errorf("%s: %w", pragma, err)
			}
		}
	} else {
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
	}
	return NewSQL(db, dialect), nil
}

// NewSQL wraps an already configured *sql.DB.
func NewSQL(db *sql.DB, dialect Dialect) *SQL {
	return &SQL{db: db, dialect: dialect}
}

func (s *SQL) DB() *sql.DB { return s.db }

func (s *SQL) Close() error { return s.db.Close() }

func (s *SQL) InTx(ctx context.Context, fn func(tx Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&sqlTx{tx: tx, dialect: s.dialect, sb: builder(s.dialect)}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func builder(d Dialect) sq.StatementBuilderType {
	if d == DialectPostgres {
		return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return sq.StatementBuilder.PlaceholderFormat(sq.Question)
}

type sqlTx struct {
	tx      *sql.Tx
	dialect Dialect
	sb      sq.StatementBuilderType
}

func (t *sqlTx) exec(ctx context.Context, b sq.Sqlizer) (sql.Result, error) {
	q, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return t.tx.ExecContext(ctx, q, args...)
}

func (t *sqlTx) query(ctx context.Context, b sq.Sqlizer) (*sql.Rows, error) {
	q, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return t.tx.QueryContext(ctx, q, args...)
}

func (t *sqlTx) queryRow(ctx context.Context, b sq.Sqlizer, dest ...any) error {
	q, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return t.tx.QueryRowContext(ctx, q, args...).Scan(dest...)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// wrapErr maps driver errors onto the apperr taxonomy.
func wrapErr(err error, entity, id string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound(entity, id)
	}
	return fmt.Errorf("%s %s: %w", entity, id, err)
}

const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func fmtTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

func fmtTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: fmtTime(*t), Valid: true}
}

func parseTimePtr(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}

func ns(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func sp(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	s := n.String
	return &s
}

// Sites

var siteColumns = []string{"id", "code", "name", "active", "created_at"}

func scanSite(row interface{ Scan(...any) error }) (*models.Site, error) {
	var s models.Site
	var created string
	if err := row.Scan(&s.ID, &s.Code, &s.Name, &s.Active, &created); err != nil {
		return nil, err
	}
	s.CreatedAt = parseTime(created)
	return &s, nil
}

func (t *sqlTx) CreateSite(ctx context.Context, s *models.Site) error {
	_, err := t.exec(ctx, t.sb.Insert("sites").Columns(siteColumns...).
		Values(s.ID, s.Code, s.Name, s.Active, fmtTime(s.CreatedAt)))
	if isUniqueViolation(err) {
		return apperr.Validation("code", "site code already exists")
	}
	return wrapErr(err, "site", s.ID)
}

func (t *sqlTx) getSiteWhere(ctx context.Context, where sq.Eq, key string) (*models.Site, error) {
	q, args, err := t.sb.Select(siteColumns...).From("sites").Where(where).ToSql()
	if err != nil {
		return nil, err
	}
	s, err := scanSite(t.tx.QueryRowContext(ctx, q, args...))
	if err != nil {
		return nil, wrapErr(err, "site", key)
	}
	return s, nil
}

func (t *sqlTx) GetSite(ctx context.Context, id string) (*models.Site, error) {
	return t.getSiteWhere(ctx, sq.Eq{"id": id}, id)
}

func (t *sqlTx) GetSiteByCode(ctx context.Context, code string) (*models.Site, error) {
	return t.getSiteWhere(ctx, sq.Eq{"code": code}, code)
}

func (t *sqlTx) ListSites(ctx context.Context) ([]models.Site, error) {
	rows, err := t.query(ctx, t.sb.Select(siteColumns...).From("sites").OrderBy("code"))
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	defer rows.Close()
	out := []models.Site{}
	for rows.Next() {
		s, err := scanSite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (t *sqlTx) UpdateSite(ctx context.Context, s *models.Site) error {
	res, err := t.exec(ctx, t.sb.Update("sites").
		Set("name", s.Name).
		Set("active", s.Active).
		Where(sq.Eq{"id": s.ID}))
	if err != nil {
		return wrapErr(err, "site", s.ID)
	}
	return requireRow(res, "site", s.ID)
}

func (t *sqlTx) LockSite(ctx context.Context, id string) error {
	var got string
	return wrapErr(t.queryRow(ctx, lockSiteQuery(t.dialect, id), &got), "site", id)
}

// lockSiteQuery selects the site row, holding a row lock on postgres.
// SQLite transactions already serialize writers.
func lockSiteQuery(d Dialect, id string) sq.SelectBuilder {
	b := builder(d).Select("id").From("sites").Where(sq.Eq{"id": id})
	if d == DialectPostgres {
		b = b.Suffix("FOR UPDATE")
	}
	return b
}

func requireRow(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound(entity, id)
	}
	return nil
}

// Suppliers

var supplierColumns = []string{"id", "name", "contact_email", "active", "created_at", "updated_at"}

func scanSupplier(row interface{ Scan(...any) error }) (*models.Supplier, error) {
	var s models.Supplier
	var created, updated string
	if err := row.Scan(&s.ID, &s.Name, &s.ContactEmail, &s.Active, &created, &updated); err != nil {
		return nil, err
	}
	s.CreatedAt = parseTime(created)
	s.UpdatedAt = parseTime(updated)
	return &s, nil
}

func (t *sqlTx) CreateSupplier(ctx context.Context, s *models.Supplier) error {
	_, err := t.exec(ctx, t.sb.Insert("suppliers").Columns(supplierColumns...).
		Values(s.ID, s.Name, s.ContactEmail, s.Active, fmtTime(s.CreatedAt), fmtTime(s.UpdatedAt)))
	return wrapErr(err, "supplier", s.ID)
}

func (t *sqlTx) GetSupplier(ctx context.Context, id string) (*models.Supplier, error) {
	q, args, err := t.sb.Select(supplierColumns...).From("suppliers").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	s, err := scanSupplier(t.tx.QueryRowContext(ctx, q, args...))
	if err != nil {
		return nil, wrapErr(err, "supplier", id)
	}
	return s, nil
}

func (t *sqlTx) ListSuppliers(ctx context.Context, includeInactive bool) ([]models.Supplier, error) {
	b := t.sb.Select(supplierColumns...).From("suppliers").OrderBy("name")
	if !includeInactive {
		b = b.Where(sq.Eq{"active": true})
	}
	rows, err := t.query(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("list suppliers: %w", err)
	}
	defer rows.Close()
	out := []models.Supplier{}
	for rows.Next() {
		s, err := scanSupplier(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (t *sqlTx) UpdateSupplier(ctx context.Context, s *models.Supplier) error {
	res, err := t.exec(ctx, t.sb.Update("suppliers").
		Set("name", s.Name).
		Set("contact_email", s.ContactEmail).
		Set("active", s.Active).
		Set("updated_at", fmtTime(s.UpdatedAt)).
		Where(sq.Eq{"id": s.ID}))
	if err != nil {
		return wrapErr(err, "supplier", s.ID)
	}
	return requireRow(res, "supplier", s.ID)
}

// ERP items

func (t *sqlTx) CreateERPItem(ctx context.Context, it *models.ERPItem) error {
	_, err := t.exec(ctx, t.sb.Insert("erp_items").
		Columns("id", "item_code", "description", "unit_of_measure", "last_buying_price", "last_vendor", "created_at").
		Values(it.ID, it.ItemCode, it.Description, it.UnitOfMeasure, it.LastBuyingPrice, it.LastVendor, fmtTime(it.CreatedAt)))
	if isUniqueViolation(err) {
		return apperr.Validation("itemCode", "item code already exists")
	}
	return wrapErr(err, "erp item", it.ID)
}

func (t *sqlTx) ListERPItems(ctx context.Context, search string) ([]models.ERPItem, error) {
	b := t.sb.Select("id", "item_code", "description", "unit_of_measure", "last_buying_price", "last_vendor", "created_at").
		From("erp_items").OrderBy("item_code")
	if search != "" {
		like := "%" + strings.ToLower(search) + "%"
		b = b.Where(sq.Or{
			sq.Like{"LOWER(item_code)": like},
			sq.Like{"LOWER(description)": like},
		})
	}
	rows, err := t.query(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("list erp items: %w", err)
	}
	defer rows.Close()
	out := []models.ERPItem{}
	for rows.Next() {
		var it models.ERPItem
		var created string
		if err := rows.Scan(&it.ID, &it.ItemCode, &it.Description, &it.UnitOfMeasure, &it.LastBuyingPrice, &it.LastVendor, &created); err != nil {
			return nil, err
		}
		it.CreatedAt = parseTime(created)
		out = append(out, it)
	}
	return out, rows.Err()
}

// Users

var userColumns = []string{"id", "username", "password_hash", "role", "active", "created_at"}

func (t *sqlTx) CreateUser(ctx context.Context, u *models.User) error {
	_, err := t.exec(ctx, t.sb.Insert("users").Columns(userColumns...).
		Values(u.ID, u.Username, u.PasswordHash, string(u.Role), u.Active, fmtTime(u.CreatedAt)))
	if isUniqueViolation(err) {
		return apperr.Validation("username", "username already exists")
	}
	return wrapErr(err, "user", u.ID)
}

func (t *sqlTx) getUserWhere(ctx context.Context, where sq.Eq, key string) (*models.User, error) {
	var u models.User
	var role, created string
	err := t.queryRow(ctx, t.sb.Select(userColumns...).From("users").Where(where),
		&u.ID, &u.Username, &u.PasswordHash, &role, &u.Active, &created)
	if err != nil {
		return nil, wrapErr(err, "user", key)
	}
	u.Role = models.Role(role)
	u.CreatedAt = parseTime(created)
	return &u, nil
}

func (t *sqlTx) GetUser(ctx context.Context, id string) (*models.User, error) {
	return t.getUserWhere(ctx, sq.Eq{"id": id}, id)
}

func (t *sqlTx) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return t.getUserWhere(ctx, sq.Eq{"username": username}, username)
}

// Audit

func (t *sqlTx) AppendAudit(ctx context.Context, e *models.AuditEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	err := t.queryRow(ctx, t.sb.Insert("audit_log").
		Columns("username", "action", "module", "record_id", "summary", "created_at").
		Values(e.Username, e.Action, e.Module, e.RecordID, e.Summary, fmtTime(e.CreatedAt)).
		Suffix("RETURNING id"), &e.ID)
	if err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	return nil
}

func (t *sqlTx) ListAudit(ctx context.Context, f AuditFilter) ([]models.AuditEntry, error) {
	b := t.sb.Select("id", "username", "action", "module", "record_id", "summary", "created_at").
		From("audit_log").OrderBy("id DESC")
	if f.Module != "" {
		b = b.Where(sq.Eq{"module": f.Module})
	}
	if f.RecordID != "" {
		b = b.Where(sq.Eq{"record_id": f.RecordID})
	}
	if f.Limit > 0 {
		b = b.Limit(uint64(f.Limit))
	}
	rows, err := t.query(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	defer rows.Close()
	out := []models.AuditEntry{}
	for rows.Next() {
		var e models.AuditEntry
		var created string
		if err := rows.Scan(&e.ID, &e.Username, &e.Action, &e.Module, &e.RecordID, &e.Summary, &created); err != nil {
			return nil, err
		}
		e.CreatedAt = parseTime(created)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (t *sqlTx) PurgeAudit(ctx context.Context, before time.Time) (int64, error) {
	res, err := t.exec(ctx, t.sb.Delete("audit_log").Where(sq.Lt{"created_at": fmtTime(before)}))
	if err != nil {
		return 0, fmt.Errorf("purge audit: %w", err)
	}
	return res.RowsAffected()
}
