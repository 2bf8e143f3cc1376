package shared

import (
	"time"

	"github.com/google/uuid"
)

// Entity is implemented by state-stored records that live beside the event streams
type Entity interface {
	GetID() uuid.UUID
	GetTenantID() uuid.UUID
	GetCreatedAt() time.Time
	GetUpdatedAt() time.Time
}

// BaseEntity provides common fields for tenant-scoped entities
type BaseEntity struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (e *BaseEntity) GetID() uuid.UUID        { return e.ID }
func (e *BaseEntity) GetTenantID() uuid.UUID  { return e.TenantID }
func (e *BaseEntity) GetCreatedAt() time.Time { return e.CreatedAt }
func (e *BaseEntity) GetUpdatedAt() time.Time { return e.UpdatedAt }

// Touch bumps UpdatedAt
func (e *BaseEntity) Touch(at time.Time) {
	e.UpdatedAt = at.UTC()
}

// NewBaseEntity creates a base entity with a generated ID, stamped at the given time
func NewBaseEntity(tenantID uuid.UUID, at time.Time) BaseEntity {
	at = at.UTC()
	return BaseEntity{
		ID:        uuid.New(),
		TenantID:  tenantID,
		CreatedAt: at,
		UpdatedAt: at,
	}
}

var _ Entity = (*BaseEntity)(nil)
