package models

import (
	"encoding/json"

	"github.com/shopspring/decimal"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/finance"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared/valueobject"
)

// ReconciliationIssueModel is the persistence model for reconciliation issues
type ReconciliationIssueModel struct {
	BaseModel
	Kind       string          `gorm:"type:varchar(32);not null;index"`
	Status     string          `gorm:"type:varchar(16);not null;index"`
	PaymentID  string          `gorm:"type:varchar(64);not null;index"`
	InvoiceID  string          `gorm:"type:varchar(64);index"`
	Amount     decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Currency   string          `gorm:"type:varchar(3);not null"`
	ErrorCode  string          `gorm:"type:varchar(64)"`
	Message    string          `gorm:"type:text"`
	Details    []byte          `gorm:"type:jsonb"`
	ResolvedBy string          `gorm:"type:varchar(128)"`
	Resolution string          `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (ReconciliationIssueModel) TableName() string {
	return "reconciliation_issues"
}

// ToDomain converts the model to the domain entity
func (m *ReconciliationIssueModel) ToDomain() (*finance.ReconciliationIssue, error) {
	amount, err := valueobject.NewMoney(m.Amount, valueobject.Currency(m.Currency))
	if err != nil {
		return nil, err
	}
	var details map[string]any
	if len(m.Details) > 0 {
		if err := json.Unmarshal(m.Details, &details); err != nil {
			return nil, err
		}
	}
	return &finance.ReconciliationIssue{
		BaseEntity: m.BaseModel.ToDomain(),
		Kind:       finance.IssueKind(m.Kind),
		Status:     finance.IssueStatus(m.Status),
		PaymentID:  m.PaymentID,
		InvoiceID:  m.InvoiceID,
		Amount:     amount,
		ErrorCode:  m.ErrorCode,
		Message:    m.Message,
		Details:    details,
		ResolvedBy: m.ResolvedBy,
		Resolution: m.Resolution,
	}, nil
}

// ReconciliationIssueModelFromDomain creates a model from the domain entity
func ReconciliationIssueModelFromDomain(i *finance.ReconciliationIssue) (*ReconciliationIssueModel, error) {
	m := &ReconciliationIssueModel{
		Kind:       string(i.Kind),
		Status:     string(i.Status),
		PaymentID:  i.PaymentID,
		InvoiceID:  i.InvoiceID,
		Amount:     i.Amount.Amount(),
		Currency:   string(i.Amount.Currency()),
		ErrorCode:  i.ErrorCode,
		Message:    i.Message,
		ResolvedBy: i.ResolvedBy,
		Resolution: i.Resolution,
	}
	m.BaseModel.FromDomain(i.BaseEntity)
	if len(i.Details) > 0 {
		details, err := json.Marshal(i.Details)
		if err != nil {
			return nil, err
		}
		m.Details = details
	}
	return m, nil
}
