package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// APIResponse is the standard JSON envelope for all API responses.
type APIResponse struct {
	Data interface{} `json:"data"`
	Meta *Meta       `json:"meta,omitempty"`
}

// Meta contains list metadata.
type Meta struct {
	Total int `json:"total"`
}

type Role string

const (
	RoleSuperAdmin  Role = "super_admin"
	RoleAdmin       Role = "admin"
	RoleManager     Role = "manager"
	RoleUser        Role = "user"
	RoleViewer      Role = "viewer"
	RolePricingTeam Role = "pricing_team"
)

// Principal is the authenticated actor behind a request.
type Principal struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Principal returns the request principal for u.
func (u *User) Principal() *Principal {
	return &Principal{UserID: u.ID, Username: u.Username, Role: u.Role}
}

type Site struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

type Supplier struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	ContactEmail string    `json:"contactEmail"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type ERPItem struct {
	ID              string          `json:"id"`
	ItemCode        string          `json:"itemCode"`
	Description     string          `json:"description"`
	UnitOfMeasure   string          `json:"unitOfMeasure"`
	LastBuyingPrice decimal.Decimal `json:"lastBuyingPrice"`
	LastVendor      string          `json:"lastVendor"`
	CreatedAt       time.Time       `json:"createdAt"`
}

type AuditEntry struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Action    string    `json:"action"`
	Module    string    `json:"module"`
	RecordID  string    `json:"recordId"`
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"createdAt"`
}
