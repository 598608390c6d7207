package selection

import (
	"reflect"
	"testing"
)

type item struct {
	id   string
	name string
}

func (i item) Identity() string { return i.id }

func ids(list []item) []string {
	out := make([]string, 0, len(list))
	for _, it := range list {
		out = append(out, it.id)
	}
	return out
}

func TestToggleAppendsAndRemoves(t *testing.T) {
	list := []item{{id: "a"}, {id: "b"}, {id: "c"}}

	added := Toggle(list, item{id: "d"})
	if got := ids(added); !reflect.DeepEqual(got, []string{"a", "b", "c", "d"}) {
		t.Fatalf("unexpected list after add: %v", got)
	}

	removed := Toggle(list, item{id: "b"})
	if got := ids(removed); !reflect.DeepEqual(got, []string{"a", "c"}) {
		t.Fatalf("unexpected list after remove: %v", got)
	}

	if got := ids(list); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("input list was mutated: %v", got)
	}
}

func TestToggleTwiceRoundTrips(t *testing.T) {
	cases := [][]item{
		nil,
		{{id: "a"}},
		{{id: "a"}, {id: "b"}, {id: "c"}},
	}
	probe := item{id: "z"}
	for _, list := range cases {
		got := Toggle(Toggle(list, probe), probe)
		if !reflect.DeepEqual(ids(got), ids(list)) {
			t.Fatalf("round trip of %v gave %v", ids(list), ids(got))
		}
	}

	// Removing then re-adding a present item moves it to the end.
	list := []item{{id: "a"}, {id: "b"}, {id: "c"}}
	got := Toggle(Toggle(list, item{id: "a"}), item{id: "a"})
	if !reflect.DeepEqual(ids(got), []string{"b", "c", "a"}) {
		t.Fatalf("unexpected order after re-add: %v", ids(got))
	}
}

func TestToggleMatchesByIDOnly(t *testing.T) {
	list := []item{{id: "a", name: "old"}}
	got := Toggle(list, item{id: "a", name: "new"})
	if len(got) != 0 {
		t.Fatalf("expected removal by id, got %v", got)
	}
	if !Contains(list, "a") || Contains(got, "a") {
		t.Fatal("Contains disagrees with Toggle")
	}
}

func TestSetQuantityNeverNegative(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{raw: "5", want: 5},
		{raw: " 42 ", want: 42},
		{raw: "+7", want: 7},
		{raw: "12abc", want: 12},
		{raw: "3.9", want: 3},
		{raw: "-3", want: 0},
		{raw: "abc", want: 0},
		{raw: "", want: 0},
		{raw: "-", want: 0},
		{raw: "99999999999999999999999", want: maxQuantity},
		{raw: "-99999999999999999999999", want: 0},
	}

	for _, tt := range tests {
		got := SetQuantity("tier", tt.raw, nil)
		if got["tier"] != tt.want {
			t.Fatalf("raw %q: expected %d, got %d", tt.raw, tt.want, got["tier"])
		}
		if got["tier"] < 0 {
			t.Fatalf("raw %q produced negative quantity", tt.raw)
		}
	}
}

func TestSetQuantityCopiesInput(t *testing.T) {
	in := map[string]int{"a": 1}
	out := SetQuantity("b", "2", in)
	if _, ok := in["b"]; ok {
		t.Fatal("input map was mutated")
	}
	if out["a"] != 1 || out["b"] != 2 {
		t.Fatalf("unexpected output %v", out)
	}
}

func TestToggleWithGlobalReset(t *testing.T) {
	states := map[string]bool{
		"business-a1": false,
		"startup-a1":  true,
		"personal-a2": false,
	}

	on := ToggleWithGlobalReset("personal-a2", states)
	want := map[string]bool{"business-a1": false, "startup-a1": false, "personal-a2": true}
	if !reflect.DeepEqual(on, want) {
		t.Fatalf("expected %v, got %v", want, on)
	}

	off := ToggleWithGlobalReset("personal-a2", on)
	if AnyTrue(off) {
		t.Fatalf("expected all cells false after second toggle, got %v", off)
	}

	if !states["startup-a1"] {
		t.Fatal("input map was mutated")
	}
}

func TestToggleWithGlobalResetAbsentKey(t *testing.T) {
	got := ToggleWithGlobalReset("new", map[string]bool{"old": true})
	if !got["new"] || got["old"] {
		t.Fatalf("unexpected states %v", got)
	}
}
