package enums

import "fmt"

// EnterpriseCategory groups enterprise feature flags. Only one category can
// hold active flags at a time.
type EnterpriseCategory string

const (
	EnterpriseAnalytics      EnterpriseCategory = "analytics"
	EnterpriseMultiLocation  EnterpriseCategory = "multi_location"
	EnterpriseSecurity       EnterpriseCategory = "security"
	EnterpriseAPIIntegration EnterpriseCategory = "api_integration"
)

var validEnterpriseCategories = []EnterpriseCategory{
	EnterpriseAnalytics,
	EnterpriseMultiLocation,
	EnterpriseSecurity,
	EnterpriseAPIIntegration,
}

// EnterpriseCategories returns the categories in display order.
func EnterpriseCategories() []EnterpriseCategory {
	out := make([]EnterpriseCategory, len(validEnterpriseCategories))
	copy(out, validEnterpriseCategories)
	return out
}

// String implements fmt.Stringer.
func (c EnterpriseCategory) String() string {
	return string(c)
}

// IsValid reports whether the category is recognized.
func (c EnterpriseCategory) IsValid() bool {
	for _, candidate := range validEnterpriseCategories {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseEnterpriseCategory converts a raw string into an EnterpriseCategory.
func ParseEnterpriseCategory(value string) (EnterpriseCategory, error) {
	for _, candidate := range validEnterpriseCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid enterprise category %q", value)
}
