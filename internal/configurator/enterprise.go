package configurator

import (
	"fmt"

	"github.com/angelmondragon/packagebuilder-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/packagebuilder-backend/pkg/errors"
)

// enterpriseTable lists the flags offered in each enterprise category.
var enterpriseTable = map[enums.EnterpriseCategory][]string{
	enums.EnterpriseAnalytics: {
		"advanced_analytics",
		"custom_reports",
		"data_export",
	},
	enums.EnterpriseMultiLocation: {
		"location_management",
		"centralized_inventory",
		"cross_location_reporting",
	},
	enums.EnterpriseSecurity: {
		"sso",
		"audit_logs",
		"role_based_access",
	},
	enums.EnterpriseAPIIntegration: {
		"rest_api",
		"webhooks",
		"custom_integrations",
	},
}

var enterpriseCategoryByKey = func() map[string]enums.EnterpriseCategory {
	out := map[string]enums.EnterpriseCategory{}
	for category, keys := range enterpriseTable {
		for _, key := range keys {
			out[key] = category
		}
	}
	return out
}()

// ErrCategoryLocked is returned when a flag is switched on while another
// enterprise category holds active flags.
var ErrCategoryLocked = pkgerrors.New(pkgerrors.CodeStateConflict, "enterprise category locked")

// EnterpriseKeys returns the flags of category in table order.
func EnterpriseKeys(category enums.EnterpriseCategory) []string {
	return append([]string(nil), enterpriseTable[category]...)
}

// EnterpriseCategoryOf returns the category a flag belongs to.
func EnterpriseCategoryOf(key string) (enums.EnterpriseCategory, bool) {
	category, ok := enterpriseCategoryByKey[key]
	return category, ok
}

// NewEnterpriseFlags returns every known flag switched off.
func NewEnterpriseFlags() map[string]bool {
	out := make(map[string]bool, len(enterpriseCategoryByKey))
	for key := range enterpriseCategoryByKey {
		out[key] = false
	}
	return out
}

// ActiveCategory returns the category holding a true flag, if any.
func ActiveCategory(flags map[string]bool) (enums.EnterpriseCategory, bool) {
	for _, category := range enums.EnterpriseCategories() {
		for _, key := range enterpriseTable[category] {
			if flags[key] {
				return category, true
			}
		}
	}
	return "", false
}

// Disabled reports whether category is locked because a different category
// has an active flag.
func Disabled(flags map[string]bool, category enums.EnterpriseCategory) bool {
	active, ok := ActiveCategory(flags)
	return ok && active != category
}

// DisabledCategories lists every locked category in display order.
func DisabledCategories(flags map[string]bool) []enums.EnterpriseCategory {
	out := []enums.EnterpriseCategory{}
	for _, category := range enums.EnterpriseCategories() {
		if Disabled(flags, category) {
			out = append(out, category)
		}
	}
	return out
}

// ToggleEnterpriseFlag flips key. Switching a flag off always succeeds;
// switching one on in a locked category returns ErrCategoryLocked and leaves
// flags untouched.
func ToggleEnterpriseFlag(flags map[string]bool, key string) (map[string]bool, error) {
	category, ok := EnterpriseCategoryOf(key)
	if !ok {
		return flags, pkgerrors.Field("key", fmt.Sprintf("unknown enterprise feature %q", key))
	}
	if !flags[key] && Disabled(flags, category) {
		active, _ := ActiveCategory(flags)
		return flags, fmt.Errorf("%w: %s is active", ErrCategoryLocked, active)
	}
	out := make(map[string]bool, len(flags)+1)
	for k, v := range flags {
		out[k] = v
	}
	out[key] = !flags[key]
	return out, nil
}
