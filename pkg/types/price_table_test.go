package types

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestPriceTableAcceptsObjectAndSerializedString(t *testing.T) {
	inputs := []string{
		`{"usd": 20, "EUR": "18.50"}`,
		`"{\"USD\":20,\"eur\":18.5}"`,
	}
	for _, input := range inputs {
		var table PriceTable
		if err := json.Unmarshal([]byte(input), &table); err != nil {
			t.Fatalf("unmarshal %s: %v", input, err)
		}
		usd, ok := table.Lookup("usd")
		if !ok || !usd.Equal(decimal.NewFromInt(20)) {
			t.Fatalf("input %s: expected USD 20, got %s (ok=%v)", input, usd, ok)
		}
		eur, ok := table.Lookup("EUR")
		if !ok || !eur.Equal(decimal.RequireFromString("18.5")) {
			t.Fatalf("input %s: expected EUR 18.5, got %s", input, eur)
		}
	}
}

func TestPriceTableDropsNonNumericEntries(t *testing.T) {
	var table PriceTable
	if err := json.Unmarshal([]byte(`{"USD": "n/a", "GBP": 9}`), &table); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := table.Lookup("USD"); ok {
		t.Fatal("expected non-numeric USD entry to be dropped")
	}
	if got := table.Currencies(); len(got) != 1 || got[0] != "GBP" {
		t.Fatalf("unexpected currencies %v", got)
	}
}

func TestPriceTableDropsNullEntries(t *testing.T) {
	var table PriceTable
	if err := json.Unmarshal([]byte(`{"USD": null, "EUR": "abc", "GBP": 0}`), &table); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if price, ok := table.Lookup("USD"); ok {
		t.Fatalf("expected null USD entry to be dropped, got %s", price)
	}
	if _, ok := table.Lookup("EUR"); ok {
		t.Fatal("expected non-numeric EUR entry to be dropped")
	}
	if price, ok := table.Lookup("GBP"); !ok || !price.IsZero() {
		t.Fatalf("explicit zero must be kept, got %s (ok=%v)", price, ok)
	}
}

func TestPriceTableScanAndValue(t *testing.T) {
	table := PriceTable{"USD": decimal.RequireFromString("12.34")}
	val, err := table.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}

	var decoded PriceTable
	if err := decoded.Scan([]byte(val.(string))); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	price, ok := decoded.Lookup("USD")
	if !ok || !price.Equal(decimal.RequireFromString("12.34")) {
		t.Fatalf("round trip lost price: %s", price)
	}

	if err := decoded.Scan(nil); err != nil || len(decoded) != 0 {
		t.Fatalf("nil scan should empty the table, got %v err=%v", decoded, err)
	}
	if err := decoded.Scan(42); err == nil {
		t.Fatal("expected unsupported scan type error")
	}
}

func TestPriceTableNullAndEmpty(t *testing.T) {
	for _, input := range []string{`null`, `""`, `{}`} {
		var table PriceTable
		if err := json.Unmarshal([]byte(input), &table); err != nil {
			t.Fatalf("unmarshal %s: %v", input, err)
		}
		if _, ok := table.Lookup("USD"); ok {
			t.Fatalf("input %s: expected empty table", input)
		}
	}
}
