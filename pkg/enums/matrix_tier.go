package enums

import "fmt"

// MatrixTier is a column of the plan by add-on grid offered on fixed packages.
type MatrixTier string

const (
	MatrixTierBusiness MatrixTier = "business"
	MatrixTierStartup  MatrixTier = "startup"
	MatrixTierPersonal MatrixTier = "personal"
)

var validMatrixTiers = []MatrixTier{
	MatrixTierBusiness,
	MatrixTierStartup,
	MatrixTierPersonal,
}

// MatrixTiers returns the tiers in display order.
func MatrixTiers() []MatrixTier {
	out := make([]MatrixTier, len(validMatrixTiers))
	copy(out, validMatrixTiers)
	return out
}

// String implements fmt.Stringer.
func (t MatrixTier) String() string {
	return string(t)
}

// IsValid reports whether the tier is recognized.
func (t MatrixTier) IsValid() bool {
	for _, candidate := range validMatrixTiers {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseMatrixTier converts a raw string into a MatrixTier.
func ParseMatrixTier(value string) (MatrixTier, error) {
	for _, candidate := range validMatrixTiers {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid matrix tier %q", value)
}
