// Package seed loads reference data and initial users from a YAML file.
package seed

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"quoteflow/internal/apperr"
	"quoteflow/internal/audit"
	"quoteflow/internal/auth"
	"quoteflow/internal/models"
	"quoteflow/internal/store"
	"quoteflow/internal/validation"
)

// File is the seed document.
//
//	sites:
//	  - {code: A001, name: Pune Plant}
//	users:
//	  - {username: admin, password: ..., role: admin}
type File struct {
	Sites     []Site     `yaml:"sites"`
	Suppliers []Supplier `yaml:"suppliers"`
	Users     []User     `yaml:"users"`
	ERPItems  []ERPItem  `yaml:"erpItems"`
}

type Site struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

type Supplier struct {
	Name         string `yaml:"name"`
	ContactEmail string `yaml:"contactEmail"`
}

type User struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

type ERPItem struct {
	ItemCode        string `yaml:"itemCode"`
	Description     string `yaml:"description"`
	UnitOfMeasure   string `yaml:"unitOfMeasure"`
	LastBuyingPrice string `yaml:"lastBuyingPrice"`
	LastVendor      string `yaml:"lastVendor"`
}

// Result counts the records created by Apply.
type Result struct {
	Sites     int
	Suppliers int
	Users     int
	ERPItems  int
}

// Parse decodes a seed document. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	return &f, nil
}

// Load reads and parses the seed file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed %s: %w", path, err)
	}
	return Parse(data)
}

// Apply creates every record of f that does not exist yet, in one unit of
// work. Records are matched by site code, supplier name, username and item
// code, so applying the same file twice creates nothing the second time.
func Apply(ctx context.Context, s store.Store, f *File, log zerolog.Logger) (Result, error) {
	var res Result
	now := time.Now().UTC()
	err := s.InTx(ctx, func(tx store.Tx) error {
		res = Result{}
		for _, in := range f.Sites {
			created, err := applySite(ctx, tx, in, now)
			if err != nil {
				return err
			}
			if created {
				res.Sites++
			}
		}

		existing, err := tx.ListSuppliers(ctx, true)
		if err != nil {
			return err
		}
		names := map[string]bool{}
		for _, sup := range existing {
			names[strings.ToLower(sup.Name)] = true
		}
		for _, in := range f.Suppliers {
			if names[strings.ToLower(in.Name)] {
				continue
			}
			sup := &models.Supplier{ID: uuid.NewString(), Name: in.Name, ContactEmail: in.ContactEmail, Active: true, CreatedAt: now, UpdatedAt: now}
			if err := tx.CreateSupplier(ctx, sup); err != nil {
				return err
			}
			names[strings.ToLower(in.Name)] = true
			if err := audit.Log(ctx, tx, nil, audit.ActionSeed, audit.ModuleSupplier, sup.ID, "seeded supplier "+sup.Name); err != nil {
				return err
			}
			res.Suppliers++
		}

		for _, in := range f.Users {
			created, err := applyUser(ctx, tx, in, now)
			if err != nil {
				return err
			}
			if created {
				res.Users++
			}
		}

		for _, in := range f.ERPItems {
			created, err := applyERPItem(ctx, tx, in, now)
			if err != nil {
				return err
			}
			if created {
				res.ERPItems++
			}
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	log.Info().Int("sites", res.Sites).Int("suppliers", res.Suppliers).Int("users", res.Users).Int("erp_items", res.ERPItems).Msg("seed applied")
	return res, nil
}

func applySite(ctx context.Context, tx store.Tx, in Site, now time.Time) (bool, error) {
	code := strings.ToUpper(strings.TrimSpace(in.Code))
	ve := &validation.ValidationErrors{}
	validation.ValidateSiteCode(ve, "sites.code", code)
	validation.RequireField(ve, "sites.name", in.Name)
	if err := ve.Err(); err != nil {
		return false, err
	}
	if _, err := tx.GetSiteByCode(ctx, code); err == nil {
		return false, nil
	} else if apperr.KindOf(err) != apperr.KindNotFound {
		return false, err
	}
	site := &models.Site{ID: uuid.NewString(), Code: code, Name: in.Name, Active: true, CreatedAt: now}
	if err := tx.CreateSite(ctx, site); err != nil {
		return false, err
	}
	return true, audit.Log(ctx, tx, nil, audit.ActionSeed, audit.ModuleSite, site.ID, "seeded site "+code)
}

func applyUser(ctx context.Context, tx store.Tx, in User, now time.Time) (bool, error) {
	ve := &validation.ValidationErrors{}
	validation.RequireField(ve, "users.username", in.Username)
	validation.ValidateEnum(ve, "users.role", in.Role, validation.ValidRoles)
	if err := ve.Err(); err != nil {
		return false, err
	}
	if _, err := tx.GetUserByUsername(ctx, in.Username); err == nil {
		return false, nil
	} else if apperr.KindOf(err) != apperr.KindNotFound {
		return false, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return false, apperr.Validation("users.password", fmt.Sprintf("%s: %v", in.Username, err))
	}
	u := &models.User{ID: uuid.NewString(), Username: in.Username, PasswordHash: hash, Role: models.Role(in.Role), Active: true, CreatedAt: now}
	if err := tx.CreateUser(ctx, u); err != nil {
		return false, err
	}
	return true, audit.Log(ctx, tx, nil, audit.ActionSeed, audit.ModuleAuth, u.ID, "seeded user "+u.Username)
}

func applyERPItem(ctx context.Context, tx store.Tx, in ERPItem, now time.Time) (bool, error) {
	ve := &validation.ValidationErrors{}
	validation.RequireField(ve, "erpItems.itemCode", in.ItemCode)
	if err := ve.Err(); err != nil {
		return false, err
	}
	price := decimal.Zero
	if in.LastBuyingPrice != "" {
		p, err := decimal.NewFromString(in.LastBuyingPrice)
		if err != nil {
			return false, apperr.Validation("erpItems.lastBuyingPrice", in.ItemCode+": not a number")
		}
		price = p
	}
	existing, err := tx.ListERPItems(ctx, in.ItemCode)
	if err != nil {
		return false, err
	}
	for _, it := range existing {
		if it.ItemCode == in.ItemCode {
			return false, nil
		}
	}
	it := &models.ERPItem{
		ID:              uuid.NewString(),
		ItemCode:        in.ItemCode,
		Description:     in.Description,
		UnitOfMeasure:   in.UnitOfMeasure,
		LastBuyingPrice: price,
		LastVendor:      in.LastVendor,
		CreatedAt:       now,
	}
	if err := tx.CreateERPItem(ctx, it); err != nil {
		return false, err
	}
	return true, audit.Log(ctx, tx, nil, audit.ActionSeed, audit.ModuleERPItem, it.ID, "seeded erp item "+it.ItemCode)
}
