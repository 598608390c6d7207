package catalog

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/packagebuilder-backend/pkg/db/models"
	"github.com/angelmondragon/packagebuilder-backend/pkg/types"
)

// Package is immutable for the lifetime of a configuration session.
type Package struct {
	ID             string           `json:"id"`
	Title          string           `json:"title"`
	Description    string           `json:"description"`
	BasePrice      decimal.Decimal  `json:"basePrice"`
	TrialDays      int              `json:"trialDays"`
	IsCustomizable bool             `json:"isCustomizable"`
	Currency       string           `json:"currency"`
	Prices         types.PriceTable `json:"prices,omitempty"`
}

type Feature struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	BasePrice   decimal.Decimal  `json:"basePrice"`
	IsRequired  bool             `json:"isRequired"`
	Prices      types.PriceTable `json:"prices,omitempty"`
}

func (f Feature) Identity() string                 { return f.ID }
func (f Feature) FallbackPrice() decimal.Decimal   { return f.BasePrice }
func (f Feature) CurrencyPrices() types.PriceTable { return f.Prices }

type AddOn struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Description  string           `json:"description"`
	Price        decimal.Decimal  `json:"price"`
	Prices       types.PriceTable `json:"prices,omitempty"`
	Features     []string         `json:"features"`
	Dependencies []string         `json:"dependencies"`
}

func (a AddOn) Identity() string                 { return a.ID }
func (a AddOn) FallbackPrice() decimal.Decimal   { return a.Price }
func (a AddOn) CurrencyPrices() types.PriceTable { return a.Prices }

type UsageTier struct {
	ID              string           `json:"id"`
	FeatureID       string           `json:"featureId"`
	Name            string           `json:"name"`
	Unit            string           `json:"unit"`
	MinValue        int              `json:"minValue"`
	MaxValue        int              `json:"maxValue"`
	DefaultQuantity int              `json:"defaultQuantity"`
	PricePerUnit    decimal.Decimal  `json:"pricePerUnit"`
	Prices          types.PriceTable `json:"prices,omitempty"`
}

func (u UsageTier) Identity() string                 { return u.ID }
func (u UsageTier) FallbackPrice() decimal.Decimal   { return u.PricePerUnit }
func (u UsageTier) CurrencyPrices() types.PriceTable { return u.Prices }

// InRange reports whether qty lies within the tier bounds.
func (u UsageTier) InRange(qty int) bool {
	return qty >= u.MinValue && qty <= u.MaxValue
}

// Catalog is everything a configuration session is built from. Fixed
// packages only carry add-ons.
type Catalog struct {
	Package    Package     `json:"package"`
	Features   []Feature   `json:"features"`
	AddOns     []AddOn     `json:"addOns"`
	UsageTiers []UsageTier `json:"usageTiers"`
}

func packageFromModel(m models.Package) Package {
	return Package{
		ID:             m.ID,
		Title:          m.Title,
		Description:    m.Description,
		BasePrice:      m.BasePrice,
		TrialDays:      m.TrialDays,
		IsCustomizable: m.IsCustomizable,
		Currency:       m.Currency,
		Prices:         m.Prices,
	}
}

func featureFromModel(m models.Feature) Feature {
	return Feature{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		BasePrice:   m.BasePrice,
		IsRequired:  m.IsRequired,
		Prices:      m.Prices,
	}
}

func addOnFromModel(m models.AddOn) AddOn {
	return AddOn{
		ID:           m.ID,
		Name:         m.Name,
		Description:  m.Description,
		Price:        m.Price,
		Prices:       m.Prices,
		Features:     append([]string{}, m.Features...),
		Dependencies: append([]string{}, m.Dependencies...),
	}
}

func usageTierFromModel(m models.UsageTier) UsageTier {
	return UsageTier{
		ID:              m.ID,
		FeatureID:       m.FeatureID,
		Name:            m.Name,
		Unit:            m.Unit,
		MinValue:        int(m.MinValue),
		MaxValue:        int(m.MaxValue),
		DefaultQuantity: int(m.DefaultQuantity),
		PricePerUnit:    m.PricePerUnit,
		Prices:          m.Prices,
	}
}
