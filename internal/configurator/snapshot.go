package configurator

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/packagebuilder-backend/internal/catalog"
	"github.com/angelmondragon/packagebuilder-backend/internal/pricing"
	"github.com/angelmondragon/packagebuilder-backend/pkg/enums"
)

// Snapshot is a read-only deep copy of a session's state.
type Snapshot struct {
	SessionID            uuid.UUID                  `json:"sessionId"`
	PackageID            string                     `json:"packageId"`
	IsCustomizable       bool                       `json:"isCustomizable"`
	Steps                []enums.WizardStep         `json:"steps"`
	CurrentStep          int                        `json:"currentStep"`
	CurrentStepName      enums.WizardStep           `json:"currentStepName"`
	Busy                 bool                       `json:"busy"`
	CanContinue          bool                       `json:"canContinue"`
	BlockedReason        string                     `json:"blockedReason,omitempty"`
	SelectedFeatures     []catalog.Feature          `json:"selectedFeatures"`
	SelectedAddOns       []catalog.AddOn            `json:"selectedAddOns"`
	UsageQuantities      map[string]int             `json:"usageQuantities"`
	SelectedPlanIndex    *int                       `json:"selectedPlanIndex"`
	SelectedSupportIndex *int                       `json:"selectedSupportIndex"`
	EnterpriseFeatures   map[string]bool            `json:"enterpriseFeatures,omitempty"`
	DisabledCategories   []enums.EnterpriseCategory `json:"disabledCategories,omitempty"`
	CheckboxMatrix       map[string]bool            `json:"checkboxMatrix,omitempty"`
	Currency             string                     `json:"currency"`
	CurrencySymbol       string                     `json:"currencySymbol"`
	Pricing              pricing.State              `json:"pricing"`
	FormattedTotal       string                     `json:"formattedTotal"`
	SubmissionID         *uuid.UUID                 `json:"submissionId,omitempty"`
}
