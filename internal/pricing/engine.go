package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/packagebuilder-backend/pkg/errors"
)

// Option is one row of a plan or support table. For plans Rate is the
// discount fraction; for support it is the surcharge multiplier.
type Option struct {
	Name string          `json:"name"`
	Rate decimal.Decimal `json:"rate"`
}

func DefaultPlans() []Option {
	return []Option{
		{Name: "Monthly", Rate: decimal.Zero},
		{Name: "Quarterly", Rate: decimal.RequireFromString("0.10")},
		{Name: "Semi-Annual", Rate: decimal.RequireFromString("0.15")},
		{Name: "Annual", Rate: decimal.RequireFromString("0.20")},
		{Name: "Custom", Rate: decimal.Zero},
	}
}

func DefaultSupportLevels() []Option {
	return []Option{
		{Name: "Standard", Rate: decimal.Zero},
		{Name: "Priority", Rate: decimal.RequireFromString("0.20")},
		{Name: "Dedicated", Rate: decimal.RequireFromString("0.40")},
	}
}

// TablesFrom zips parallel name and rate lists into options.
func TablesFrom(names []string, rates []decimal.Decimal) ([]Option, error) {
	if len(names) != len(rates) {
		return nil, fmt.Errorf("pricing table has %d names and %d rates", len(names), len(rates))
	}
	out := make([]Option, len(names))
	for i := range names {
		out[i] = Option{Name: names[i], Rate: rates[i]}
	}
	return out, nil
}

// Engine derives pricing state from selections. It holds only the immutable
// plan and support tables and is safe for concurrent use.
type Engine struct {
	plans   []Option
	support []Option
}

func NewEngine(plans, support []Option) (*Engine, error) {
	if len(plans) == 0 {
		return nil, fmt.Errorf("plan table is required")
	}
	if len(support) == 0 {
		return nil, fmt.Errorf("support table is required")
	}
	one := decimal.NewFromInt(1)
	for i, p := range plans {
		if p.Rate.IsNegative() || p.Rate.GreaterThanOrEqual(one) {
			return nil, fmt.Errorf("plan %d discount %s outside [0,1)", i, p.Rate)
		}
	}
	for i, s := range support {
		if s.Rate.IsNegative() {
			return nil, fmt.Errorf("support level %d multiplier %s is negative", i, s.Rate)
		}
	}
	return &Engine{
		plans:   append([]Option(nil), plans...),
		support: append([]Option(nil), support...),
	}, nil
}

func (e *Engine) Plans() []Option {
	return append([]Option(nil), e.plans...)
}

func (e *Engine) SupportLevels() []Option {
	return append([]Option(nil), e.support...)
}

// PlanDiscount returns the discount for the selected plan, zero when none is.
func (e *Engine) PlanDiscount(index *int) decimal.Decimal {
	if index == nil || *index < 0 || *index >= len(e.plans) {
		return decimal.Zero
	}
	return e.plans[*index].Rate
}

// TogglePlan selects index, or clears the selection when index is already
// selected. The returned discount always matches the returned index.
func (e *Engine) TogglePlan(current *int, index int) (*int, decimal.Decimal, error) {
	if index < 0 || index >= len(e.plans) {
		return current, e.PlanDiscount(current), pkgerrors.Field("plan", fmt.Sprintf("plan index %d is not offered", index))
	}
	if current != nil && *current == index {
		return nil, decimal.Zero, nil
	}
	selected := index
	return &selected, e.plans[index].Rate, nil
}

// ToggleSupport selects a support level the same way TogglePlan does. The
// surcharge is computed once from basis, the package base plus the feature
// total at the time of selection, and is not tracked afterwards.
func (e *Engine) ToggleSupport(current *int, index int, basis decimal.Decimal) (*int, decimal.Decimal, error) {
	if index < 0 || index >= len(e.support) {
		return current, decimal.Zero, pkgerrors.Field("support", fmt.Sprintf("support level %d is not offered", index))
	}
	if current != nil && *current == index {
		return nil, decimal.Zero, nil
	}
	selected := index
	return &selected, e.support[index].Rate.Mul(basis), nil
}

// Inputs is everything a recompute depends on.
type Inputs struct {
	BasePrice  decimal.Decimal
	Currency   string
	Cache      PriceCache
	Features   []Priced
	AddOns     []Priced
	UsageTiers []Priced
	Quantities map[string]int

	PlanIndex    *int
	SupportPrice decimal.Decimal
}

// State is derived pricing. It is never edited directly, only recomputed.
type State struct {
	FeaturePrices     PriceCache      `json:"featurePrices"`
	FeatureSubtotal   decimal.Decimal `json:"featureSubtotal"`
	AddOnSubtotal     decimal.Decimal `json:"addOnSubtotal"`
	UsageSubtotal     decimal.Decimal `json:"usageSubtotal"`
	TotalFeaturePrice decimal.Decimal `json:"totalFeaturePrice"`
	PlanDiscount      decimal.Decimal `json:"planDiscount"`
	SupportPrice      decimal.Decimal `json:"supportPrice"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	TotalPrice        decimal.Decimal `json:"totalPrice"`
}

// Recompute derives the full pricing state from in. Usage only counts ids
// with a positive quantity and a matching tier.
func (e *Engine) Recompute(in Inputs) State {
	featureSubtotal := decimal.Zero
	for _, f := range in.Features {
		featureSubtotal = featureSubtotal.Add(Resolve(f, in.Currency, in.Cache))
	}

	addOnSubtotal := decimal.Zero
	for _, a := range in.AddOns {
		addOnSubtotal = addOnSubtotal.Add(Resolve(a, in.Currency, in.Cache))
	}

	tiers := make(map[string]Priced, len(in.UsageTiers))
	for _, tier := range in.UsageTiers {
		tiers[tier.Identity()] = tier
	}
	usageSubtotal := decimal.Zero
	for id, qty := range in.Quantities {
		if qty <= 0 {
			continue
		}
		tier, ok := tiers[id]
		if !ok {
			continue
		}
		usageSubtotal = usageSubtotal.Add(Resolve(tier, in.Currency, in.Cache).Mul(decimal.NewFromInt(int64(qty))))
	}

	totalFeature := featureSubtotal.Add(addOnSubtotal).Add(usageSubtotal)
	discount := e.PlanDiscount(in.PlanIndex)
	subtotal := in.BasePrice.Add(totalFeature).Add(in.SupportPrice)

	return State{
		FeaturePrices:     in.Cache.Clone(),
		FeatureSubtotal:   featureSubtotal,
		AddOnSubtotal:     addOnSubtotal,
		UsageSubtotal:     usageSubtotal,
		TotalFeaturePrice: totalFeature,
		PlanDiscount:      discount,
		SupportPrice:      in.SupportPrice,
		Subtotal:          subtotal,
		TotalPrice:        subtotal.Mul(decimal.NewFromInt(1).Sub(discount)),
	}
}
