package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/packagebuilder-backend/pkg/types"
)

// AddOn is an optional priced extra. Features and Dependencies are stored as
// text and may hold a legacy delimited string or a JSON array.
type AddOn struct {
	ID           string           `gorm:"column:id;primaryKey"`
	PackageID    string           `gorm:"column:package_id;not null;index"`
	Name         string           `gorm:"column:name;not null"`
	Description  string           `gorm:"column:description;not null;default:''"`
	Price        decimal.Decimal  `gorm:"column:price;type:numeric(12,2);not null"`
	Prices       types.PriceTable `gorm:"column:prices;type:jsonb"`
	Features     types.StringList `gorm:"column:features;type:text"`
	Dependencies types.StringList `gorm:"column:dependencies;type:text"`
	Position     int              `gorm:"column:position;not null;default:0"`
	CreatedAt    time.Time        `gorm:"column:created_at;autoCreateTime"`
}
