package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ConfigurationSubmission is the persisted result of a completed wizard run.
type ConfigurationSubmission struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	SessionID      uuid.UUID       `gorm:"column:session_id;type:uuid;not null;index"`
	PackageID      string          `gorm:"column:package_id;not null;index"`
	Currency       string          `gorm:"column:currency;not null"`
	TotalPrice     decimal.Decimal `gorm:"column:total_price;type:numeric(14,4);not null"`
	PlanIndex      *int            `gorm:"column:plan_index"`
	PlanDiscount   decimal.Decimal `gorm:"column:plan_discount;type:numeric(6,4);not null"`
	SupportIndex   *int            `gorm:"column:support_index"`
	SupportPrice   decimal.Decimal `gorm:"column:support_price;type:numeric(14,4);not null"`
	ContactName    string          `gorm:"column:contact_name;not null"`
	ContactEmail   string          `gorm:"column:contact_email;not null"`
	ContactPhone   *string         `gorm:"column:contact_phone"`
	ContactCompany *string         `gorm:"column:contact_company"`
	Notes          *string         `gorm:"column:notes"`
	IdempotencyKey *string         `gorm:"column:idempotency_key;uniqueIndex:ux_configuration_submissions_idempotency_key"`
	Payload        json.RawMessage `gorm:"column:payload;type:jsonb;not null"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
}
