package catalog

import (
	"fmt"

	"go.uber.org/multierr"
)

// Normalize drops catalog items the configurator cannot work with and returns
// the combined reasons. The catalog stays usable whatever is returned.
//
// Items share one price-cache namespace, so an id seen earlier in
// features, add-ons, usage tiers order wins over later duplicates.
func Normalize(c *Catalog) error {
	if c == nil {
		return nil
	}
	var errs error
	seen := map[string]string{}

	claim := func(kind, id string) bool {
		if id == "" {
			errs = multierr.Append(errs, fmt.Errorf("%s without id dropped", kind))
			return false
		}
		if owner, ok := seen[id]; ok {
			errs = multierr.Append(errs, fmt.Errorf("%s %q dropped: id already used by a %s", kind, id, owner))
			return false
		}
		seen[id] = kind
		return true
	}

	features := make([]Feature, 0, len(c.Features))
	for _, f := range c.Features {
		if claim("feature", f.ID) {
			features = append(features, f)
		}
	}

	addOns := make([]AddOn, 0, len(c.AddOns))
	for _, a := range c.AddOns {
		if claim("add-on", a.ID) {
			if a.Features == nil {
				a.Features = []string{}
			}
			if a.Dependencies == nil {
				a.Dependencies = []string{}
			}
			addOns = append(addOns, a)
		}
	}

	tiers := make([]UsageTier, 0, len(c.UsageTiers))
	for _, u := range c.UsageTiers {
		if u.MinValue > u.MaxValue {
			errs = multierr.Append(errs, fmt.Errorf("usage tier %q dropped: min %d exceeds max %d", u.ID, u.MinValue, u.MaxValue))
			continue
		}
		if claim("usage tier", u.ID) {
			tiers = append(tiers, u)
		}
	}

	c.Features = features
	c.AddOns = addOns
	c.UsageTiers = tiers
	return errs
}
