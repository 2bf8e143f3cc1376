// Package tenant scopes GORM queries to a single tenant.
//
// Every state-stored ledger table carries a tenant_id column. Repositories
// build their queries from ForTenant so a missing tenant fails the statement
// instead of reading across tenants:
//
//	db := tenant.NewTenantDB(gormDB)
//	db.ForTenant(ctx, tenantID).Find(&issues) // WHERE tenant_id = '...'
package tenant

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/vextrus/vextrus-erp-sub014/internal/infrastructure/logger"
	"gorm.io/gorm"
)

// ErrTenantIDRequired is returned when a query is built without a tenant
var ErrTenantIDRequired = errors.New("tenant_id is required")

// ErrInvalidTenantID is returned when the tenant in context is not a UUID
var ErrInvalidTenantID = errors.New("invalid tenant_id format")

// TenantScope applies tenant filtering to GORM queries
func TenantScope(tenantID uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("tenant_id = ?", tenantID)
	}
}

// TenantDB wraps GORM DB with tenant scoping
type TenantDB struct {
	db *gorm.DB
}

// NewTenantDB creates a new TenantDB
func NewTenantDB(db *gorm.DB) *TenantDB {
	return &TenantDB{db: db}
}

// ForTenant returns a session bound to ctx and filtered to tenantID. The
// filter is applied immediately, so it leads every WHERE clause chained after it.
// A nil tenant yields a session that fails on execution.
func (t *TenantDB) ForTenant(ctx context.Context, tenantID uuid.UUID) *gorm.DB {
	db := t.db.WithContext(ctx)
	if tenantID == uuid.Nil {
		_ = db.AddError(ErrTenantIDRequired)
		return db
	}
	return TenantScope(tenantID)(db)
}

// WithContext scopes to the tenant stored in ctx by logger.WithCommandScope
func (t *TenantDB) WithContext(ctx context.Context) *gorm.DB {
	raw := logger.GetTenantID(ctx)
	if raw == "" {
		db := t.db.WithContext(ctx)
		_ = db.AddError(ErrTenantIDRequired)
		return db
	}
	tenantID, err := uuid.Parse(raw)
	if err != nil {
		db := t.db.WithContext(ctx)
		_ = db.AddError(ErrInvalidTenantID)
		return db
	}
	return t.ForTenant(ctx, tenantID)
}

// Unscoped returns the underlying DB without tenant scoping.
// Only system jobs such as outbox cleanup should use it.
func (t *TenantDB) Unscoped() *gorm.DB {
	return t.db
}
