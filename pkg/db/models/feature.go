package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/packagebuilder-backend/pkg/types"
)

type Feature struct {
	ID          string           `gorm:"column:id;primaryKey"`
	PackageID   string           `gorm:"column:package_id;not null;index"`
	Name        string           `gorm:"column:name;not null"`
	Description string           `gorm:"column:description;not null;default:''"`
	BasePrice   decimal.Decimal  `gorm:"column:base_price;type:numeric(12,2);not null"`
	IsRequired  bool             `gorm:"column:is_required;not null;default:false"`
	Prices      types.PriceTable `gorm:"column:prices;type:jsonb"`
	Position    int              `gorm:"column:position;not null;default:0"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime"`
}
