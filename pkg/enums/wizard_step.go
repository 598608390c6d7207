package enums

import "fmt"

// WizardStep names a step of the package configuration wizard.
type WizardStep string

const (
	StepPackageDetails     WizardStep = "Package Details"
	StepCoreFeatures       WizardStep = "Select Core Features"
	StepAddOns             WizardStep = "Choose Add-Ons"
	StepUsage              WizardStep = "Configure Usage"
	StepPaymentPlan        WizardStep = "Select Payment Plan"
	StepSupportLevel       WizardStep = "Choose Support Level"
	StepEnterpriseFeatures WizardStep = "Configure Enterprise Features"
	StepReview             WizardStep = "Review & Confirm"
)

var validWizardSteps = []WizardStep{
	StepPackageDetails,
	StepCoreFeatures,
	StepAddOns,
	StepUsage,
	StepPaymentPlan,
	StepSupportLevel,
	StepEnterpriseFeatures,
	StepReview,
}

// String implements fmt.Stringer.
func (s WizardStep) String() string {
	return string(s)
}

// IsValid reports whether the step is recognized.
func (s WizardStep) IsValid() bool {
	for _, candidate := range validWizardSteps {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseWizardStep converts a raw string into a WizardStep.
func ParseWizardStep(value string) (WizardStep, error) {
	for _, candidate := range validWizardSteps {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid wizard step %q", value)
}

// CustomizableSteps is the step order for packages built from catalog items.
func CustomizableSteps() []WizardStep {
	return []WizardStep{
		StepPackageDetails,
		StepCoreFeatures,
		StepAddOns,
		StepUsage,
		StepPaymentPlan,
		StepSupportLevel,
		StepReview,
	}
}

// FixedSteps is the step order for non-customizable packages.
func FixedSteps() []WizardStep {
	return []WizardStep{
		StepPackageDetails,
		StepPaymentPlan,
		StepSupportLevel,
		StepEnterpriseFeatures,
		StepReview,
	}
}
