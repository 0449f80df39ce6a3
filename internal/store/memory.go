package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"quoteflow/internal/apperr"
	"quoteflow/internal/models"
)

type memState struct {
	sites     map[string]models.Site
	suppliers map[string]models.Supplier
	erpItems  map[string]models.ERPItem
	users     map[string]models.User
	rfqs      map[string]*models.RFQ
	audit     []models.AuditEntry
	auditSeq  int64
}

func newMemState() *memState {
	return &memState{
		sites:     map[string]models.Site{},
		suppliers: map[string]models.Supplier{},
		erpItems:  map[string]models.ERPItem{},
		users:     map[string]models.User{},
		rfqs:      map[string]*models.RFQ{},
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.sites {
		c.sites[k] = v
	}
	for k, v := range s.suppliers {
		c.suppliers[k] = v
	}
	for k, v := range s.erpItems {
		c.erpItems[k] = v
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.rfqs {
		c.rfqs[k] = v.Clone()
	}
	c.audit = append([]models.AuditEntry(nil), s.audit...)
	c.auditSeq = s.auditSeq
	return c
}

// Memory is a map-backed Store. Units of work run one at a time against a
// private copy of the state, which replaces the shared state on success.
type Memory struct {
	mu    sync.Mutex
	state *memState
}

func NewMemory() *Memory {
	return &Memory{state: newMemState()}
}

func (m *Memory) InTx(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &memTx{s: m.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.state = tx.s
	return nil
}

func (m *Memory) Close() error { return nil }

type memTx struct {
	s *memState
}

func (t *memTx) CreateSite(_ context.Context, s *models.Site) error {
	for _, existing := range t.s.sites {
		if existing.Code == s.Code {
			return apperr.Validation("code", "site code already exists")
		}
	}
	t.s.sites[s.ID] = *s
	return nil
}

func (t *memTx) GetSite(_ context.Context, id string) (*models.Site, error) {
	s, ok := t.s.sites[id]
	if !ok {
		return nil, apperr.NotFound("site", id)
	}
	return &s, nil
}

func (t *memTx) GetSiteByCode(_ context.Context, code string) (*models.Site, error) {
	for _, s := range t.s.sites {
		if s.Code == code {
			return &s, nil
		}
	}
	return nil, apperr.NotFound("site", code)
}

func (t *memTx) ListSites(_ context.Context) ([]models.Site, error) {
	out := make([]models.Site, 0, len(t.s.sites))
	for _, s := range t.s.sites {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (t *memTx) UpdateSite(_ context.Context, s *models.Site) error {
	if _, ok := t.s.sites[s.ID]; !ok {
		return apperr.NotFound("site", s.ID)
	}
	t.s.sites[s.ID] = *s
	return nil
}

// LockSite is a no-op: units of work on Memory are already exclusive.
func (t *memTx) LockSite(_ context.Context, id string) error {
	if _, ok := t.s.sites[id]; !ok {
		return apperr.NotFound("site", id)
	}
	return nil
}

func (t *memTx) CreateSupplier(_ context.Context, s *models.Supplier) error {
	t.s.suppliers[s.ID] = *s
	return nil
}

func (t *memTx) GetSupplier(_ context.Context, id string) (*models.Supplier, error) {
	s, ok := t.s.suppliers[id]
	if !ok {
		return nil, apperr.NotFound("supplier", id)
	}
	return &s, nil
}

func (t *memTx) ListSuppliers(_ context.Context, includeInactive bool) ([]models.Supplier, error) {
	out := []models.Supplier{}
	for _, s := range t.s.suppliers {
		if s.Active || includeInactive {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (t *memTx) UpdateSupplier(_ context.Context, s *models.Supplier) error {
	if _, ok := t.s.suppliers[s.ID]; !ok {
		return apperr.NotFound("supplier", s.ID)
	}
	t.s.suppliers[s.ID] = *s
	return nil
}

func (t *memTx) CreateERPItem(_ context.Context, it *models.ERPItem) error {
	for _, existing := range t.s.erpItems {
		if existing.ItemCode == it.ItemCode {
			return apperr.Validation("itemCode", "item code already exists")
		}
	}
	t.s.erpItems[it.ID] = *it
	return nil
}

func (t *memTx) ListERPItems(_ context.Context, search string) ([]models.ERPItem, error) {
	search = strings.ToLower(search)
	out := []models.ERPItem{}
	for _, it := range t.s.erpItems {
		if search == "" ||
			strings.Contains(strings.ToLower(it.ItemCode), search) ||
			strings.Contains(strings.ToLower(it.Description), search) {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemCode < out[j].ItemCode })
	return out, nil
}

func (t *memTx) CreateUser(_ context.Context, u *models.User) error {
	for _, existing := range t.s.users {
		if existing.Username == u.Username {
			return apperr.Validation("username", "username already exists")
		}
	}
	t.s.users[u.ID] = *u
	return nil
}

func (t *memTx) GetUser(_ context.Context, id string) (*models.User, error) {
	u, ok := t.s.users[id]
	if !ok {
		return nil, apperr.NotFound("user", id)
	}
	return &u, nil
}

func (t *memTx) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	for _, u := range t.s.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, apperr.NotFound("user", username)
}

func (t *memTx) checkNumber(r *models.RFQ) error {
	if r.Number == "" {
		return nil
	}
	for id, other := range t.s.rfqs {
		if id != r.ID && other.Number == r.Number {
			return apperr.AllocationConflict("rfq number %s already assigned", r.Number)
		}
	}
	return nil
}

func (t *memTx) InsertRFQ(_ context.Context, r *models.RFQ) error {
	if _, ok := t.s.rfqs[r.ID]; ok {
		return apperr.Validation("id", "rfq already exists")
	}
	if _, ok := t.s.sites[r.SiteID]; !ok {
		return apperr.NotFound("site", r.SiteID)
	}
	if err := t.checkNumber(r); err != nil {
		return err
	}
	t.s.rfqs[r.ID] = r.Clone()
	return nil
}

func (t *memTx) SaveRFQ(_ context.Context, r *models.RFQ) error {
	if _, ok := t.s.rfqs[r.ID]; !ok {
		return apperr.NotFound("rfq", r.ID)
	}
	if err := t.checkNumber(r); err != nil {
		return err
	}
	t.s.rfqs[r.ID] = r.Clone()
	return nil
}

func (t *memTx) GetRFQ(_ context.Context, id string) (*models.RFQ, error) {
	r, ok := t.s.rfqs[id]
	if !ok {
		return nil, apperr.NotFound("rfq", id)
	}
	return r.Clone(), nil
}

func (t *memTx) ListRFQs(_ context.Context, f models.RFQFilter) ([]models.RFQ, error) {
	out := []models.RFQ{}
	for _, r := range t.s.rfqs {
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.CommodityType != "" && r.CommodityType != f.CommodityType {
			continue
		}
		if f.SiteID != "" && r.SiteID != f.SiteID {
			continue
		}
		if f.OwnerID != "" && r.OwnerID != f.OwnerID {
			continue
		}
		out = append(out, *r.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (t *memTx) DeleteRFQ(_ context.Context, id string) error {
	if _, ok := t.s.rfqs[id]; !ok {
		return apperr.NotFound("rfq", id)
	}
	delete(t.s.rfqs, id)
	return nil
}

func (t *memTx) RFQNumbers(_ context.Context, prefix string) ([]string, error) {
	out := []string{}
	for _, r := range t.s.rfqs {
		if r.Number != "" && strings.HasPrefix(r.Number, prefix) {
			out = append(out, r.Number)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (t *memTx) AppendAudit(_ context.Context, e *models.AuditEntry) error {
	t.s.auditSeq++
	e.ID = t.s.auditSeq
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	t.s.audit = append(t.s.audit, *e)
	return nil
}

func (t *memTx) ListAudit(_ context.Context, f AuditFilter) ([]models.AuditEntry, error) {
	out := []models.AuditEntry{}
	for i := len(t.s.audit) - 1; i >= 0; i-- {
		e := t.s.audit[i]
		if f.Module != "" && e.Module != f.Module {
			continue
		}
		if f.RecordID != "" && e.RecordID != f.RecordID {
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (t *memTx) PurgeAudit(_ context.Context, before time.Time) (int64, error) {
	kept := t.s.audit[:0:0]
	var n int64
	for _, e := range t.s.audit {
		if e.CreatedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	t.s.audit = kept
	return n, nil
}
