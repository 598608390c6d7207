package types

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// PriceTable maps an ISO currency code to a price in that currency.
// It is stored as a JSON object and accepts either an object or a JSON
// string holding a serialized object. Entries that are not numbers, null
// included, are dropped so the caller falls back to the base price.
type PriceTable map[string]decimal.Decimal

// Lookup returns the price for the currency code, case-insensitively.
func (p PriceTable) Lookup(currency string) (decimal.Decimal, bool) {
	if len(p) == 0 {
		return decimal.Zero, false
	}
	price, ok := p[normalizeCurrency(currency)]
	return price, ok
}

// Currencies returns the sorted currency codes present in the table.
func (p PriceTable) Currencies() []string {
	out := make([]string, 0, len(p))
	for code := range p {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

func (p PriceTable) MarshalJSON() ([]byte, error) {
	if p == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]decimal.Decimal(p))
}

func (p *PriceTable) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*p = PriceTable{}
		return nil
	}

	if data[0] == '"' {
		var serialized string
		if err := json.Unmarshal(data, &serialized); err != nil {
			return fmt.Errorf("price table: %w", err)
		}
		serialized = strings.TrimSpace(serialized)
		if serialized == "" {
			*p = PriceTable{}
			return nil
		}
		data = []byte(serialized)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("price table: %w", err)
	}

	table := make(PriceTable, len(raw))
	for code, value := range raw {
		code = normalizeCurrency(code)
		if code == "" || bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
			continue
		}
		var price decimal.Decimal
		if err := price.UnmarshalJSON(value); err != nil {
			continue
		}
		table[code] = price
	}
	*p = table
	return nil
}

// Value implements driver.Valuer for jsonb/text columns.
func (p PriceTable) Value() (driver.Value, error) {
	b, err := p.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for jsonb/text columns.
func (p *PriceTable) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*p = PriceTable{}
		return nil
	case []byte:
		return p.UnmarshalJSON(v)
	case string:
		return p.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("price table: unsupported Scan type %T", value)
	}
}

func normalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
