package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared"
)

// BaseModel holds the persistence fields of a tenant-scoped entity
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID  uuid.UUID `gorm:"type:uuid;not null;index"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// ToDomain converts BaseModel to the domain BaseEntity
func (m *BaseModel) ToDomain() shared.BaseEntity {
	return shared.BaseEntity{
		ID:        m.ID,
		TenantID:  m.TenantID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// FromDomain populates BaseModel from the domain BaseEntity
func (m *BaseModel) FromDomain(e shared.BaseEntity) {
	m.ID = e.ID
	m.TenantID = e.TenantID
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
}
