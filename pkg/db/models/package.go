package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/packagebuilder-backend/pkg/types"
)

// Package is a sellable bundle. Customizable packages are assembled from
// features, add-ons and usage tiers; fixed packages only offer add-ons.
type Package struct {
	ID             string           `gorm:"column:id;primaryKey"`
	Title          string           `gorm:"column:title;not null"`
	Description    string           `gorm:"column:description;not null;default:''"`
	BasePrice      decimal.Decimal  `gorm:"column:base_price;type:numeric(12,2);not null"`
	TrialDays      int              `gorm:"column:trial_days;not null;default:0"`
	IsCustomizable bool             `gorm:"column:is_customizable;not null;default:false"`
	Currency       string           `gorm:"column:currency;not null;default:'USD'"`
	Prices         types.PriceTable `gorm:"column:prices;type:jsonb"`
	Active         bool             `gorm:"column:active;not null;default:true"`
	CreatedAt      time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
