package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/packagebuilder-backend/pkg/types"
)

// Priced is a catalog item that carries a base price and an optional
// per-currency price table.
type Priced interface {
	Identity() string
	FallbackPrice() decimal.Decimal
	CurrencyPrices() types.PriceTable
}

// PriceCache holds resolved unit prices keyed by catalog item id. Entries
// override anything the item itself declares.
type PriceCache map[string]decimal.Decimal

// Clone returns an independent copy of the cache.
func (c PriceCache) Clone() PriceCache {
	out := make(PriceCache, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Resolve returns the unit price of item in currency. A cache entry wins, then
// the item's own price for that currency, then its base price unconverted.
func Resolve(item Priced, currency string, cache PriceCache) decimal.Decimal {
	if price, ok := cache[item.Identity()]; ok {
		return price
	}
	if price, ok := item.CurrencyPrices().Lookup(currency); ok {
		return price
	}
	return item.FallbackPrice()
}

// BuildPriceCache resolves every item in currency without consulting any
// existing cache.
func BuildPriceCache(currency string, items []Priced) PriceCache {
	cache := make(PriceCache, len(items))
	for _, item := range items {
		cache[item.Identity()] = Resolve(item, currency, nil)
	}
	return cache
}

// AsPriced widens a typed slice so it can be mixed with other catalog kinds.
func AsPriced[T Priced](items []T) []Priced {
	out := make([]Priced, 0, len(items))
	for _, item := range items {
		out = append(out, item)
	}
	return out
}
