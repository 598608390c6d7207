package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/packagebuilder-backend/pkg/types"
)

type UsageTier struct {
	ID              string           `gorm:"column:id;primaryKey"`
	PackageID       string           `gorm:"column:package_id;not null;index"`
	FeatureID       string           `gorm:"column:feature_id;not null;default:''"`
	Name            string           `gorm:"column:name;not null"`
	Unit            string           `gorm:"column:unit;not null;default:''"`
	MinValue        int64            `gorm:"column:min_value;not null;default:0"`
	MaxValue        int64            `gorm:"column:max_value;not null"`
	DefaultQuantity int64            `gorm:"column:default_quantity;not null;default:0"`
	PricePerUnit    decimal.Decimal  `gorm:"column:price_per_unit;type:numeric(12,4);not null"`
	Prices          types.PriceTable `gorm:"column:prices;type:jsonb"`
	Position        int              `gorm:"column:position;not null;default:0"`
	CreatedAt       time.Time        `gorm:"column:created_at;autoCreateTime"`
}
