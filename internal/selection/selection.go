// Package selection holds the pure list, quantity and flag-set helpers the
// configurator builds its state transitions from. None of them mutate their
// inputs.
package selection

import (
	"strconv"
	"strings"
)

// Identifiable is anything selectable by a stable id.
type Identifiable interface {
	Identity() string
}

// Contains reports whether an item with the given id is in list.
func Contains[T Identifiable](list []T, id string) bool {
	for _, item := range list {
		if item.Identity() == id {
			return true
		}
	}
	return false
}

// Toggle removes the item with the same id when present, otherwise appends it.
// Remaining items keep their order.
func Toggle[T Identifiable](list []T, item T) []T {
	id := item.Identity()
	out := make([]T, 0, len(list)+1)
	removed := false
	for _, existing := range list {
		if existing.Identity() == id {
			removed = true
			continue
		}
		out = append(out, existing)
	}
	if !removed {
		out = append(out, item)
	}
	return out
}

// SetQuantity returns a copy of quantities with id set to the leading integer
// of raw. Unparseable or negative input becomes 0. Tier bounds are not
// applied here.
func SetQuantity(id, raw string, quantities map[string]int) map[string]int {
	out := make(map[string]int, len(quantities)+1)
	for k, v := range quantities {
		out[k] = v
	}
	out[id] = max(0, ParseQuantity(raw))
	return out
}

// ParseQuantity reads the leading integer of raw the way form inputs are read:
// surrounding whitespace is ignored, an optional sign is accepted and digits
// are consumed up to the first non-digit. Anything else yields 0.
func ParseQuantity(raw string) int {
	s := strings.TrimSpace(raw)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digitsStart := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digitsStart {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		// out of range for int
		if s[0] == '-' {
			return 0
		}
		return maxQuantity
	}
	return n
}

const maxQuantity = int(^uint(0) >> 1)

// ToggleWithGlobalReset returns a copy of states where every key is false
// except id, which flips its previous value. An absent id counts as false.
func ToggleWithGlobalReset(id string, states map[string]bool) map[string]bool {
	out := make(map[string]bool, len(states)+1)
	for k := range states {
		out[k] = false
	}
	out[id] = !states[id]
	return out
}

// AnyTrue reports whether at least one flag is set.
func AnyTrue(states map[string]bool) bool {
	for _, v := range states {
		if v {
			return true
		}
	}
	return false
}
