package configurator

import (
	"fmt"

	"github.com/angelmondragon/packagebuilder-backend/internal/selection"
	"github.com/angelmondragon/packagebuilder-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/packagebuilder-backend/pkg/errors"
)

// validateStep reports why the buyer may not leave step. Steps without a
// rule always pass.
func (s *Session) validateStep(step enums.WizardStep, st state) error {
	switch step {
	case enums.StepCoreFeatures:
		for _, feature := range s.catalog.Features {
			if feature.IsRequired && !selection.Contains(st.selectedFeatures, feature.ID) {
				return pkgerrors.Field(feature.ID, fmt.Sprintf("%s is required", feature.Name))
			}
		}
	case enums.StepUsage:
		for _, tier := range s.catalog.UsageTiers {
			qty, ok := st.usageQuantities[tier.ID]
			if !ok {
				qty = tier.DefaultQuantity
			}
			if !tier.InRange(qty) {
				return pkgerrors.Field(tier.ID, fmt.Sprintf("%s must be between %d and %d", tier.Name, tier.MinValue, tier.MaxValue))
			}
		}
	case enums.StepPaymentPlan:
		if s.catalog.Package.IsCustomizable || len(st.matrix) == 0 {
			return nil
		}
		if !selection.AnyTrue(st.matrix) {
			return pkgerrors.Field("checkboxMatrix", "select a plan option to continue")
		}
	}
	return nil
}
