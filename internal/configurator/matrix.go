package configurator

import (
	"fmt"
	"strings"

	"github.com/angelmondragon/packagebuilder-backend/internal/catalog"
	"github.com/angelmondragon/packagebuilder-backend/internal/selection"
	"github.com/angelmondragon/packagebuilder-backend/pkg/enums"
)

// MatrixKey names the grid cell for tier and add-on.
func MatrixKey(tier enums.MatrixTier, addOnID string) string {
	return fmt.Sprintf("%s-%s", tier, addOnID)
}

// ParseMatrixKey splits a cell key on its first dash; add-on ids may contain
// dashes, tiers never do.
func ParseMatrixKey(key string) (enums.MatrixTier, string, error) {
	tierPart, addOnID, ok := strings.Cut(key, "-")
	if !ok || addOnID == "" {
		return "", "", fmt.Errorf("malformed matrix key %q", key)
	}
	tier, err := enums.ParseMatrixTier(tierPart)
	if err != nil {
		return "", "", err
	}
	return tier, addOnID, nil
}

// NewMatrix returns every tier by add-on cell switched off.
func NewMatrix(addOns []catalog.AddOn) map[string]bool {
	out := make(map[string]bool, len(addOns)*3)
	for _, addOn := range addOns {
		for _, tier := range enums.MatrixTiers() {
			out[MatrixKey(tier, addOn.ID)] = false
		}
	}
	return out
}

// ToggleMatrix flips one cell and clears every other cell in the grid, so at
// most one cell is ever selected.
func ToggleMatrix(matrix map[string]bool, tier enums.MatrixTier, addOnID string) map[string]bool {
	return selection.ToggleWithGlobalReset(MatrixKey(tier, addOnID), matrix)
}

// SelectedCell returns the selected cell key, if any.
func SelectedCell(matrix map[string]bool) (string, bool) {
	for key, on := range matrix {
		if on {
			return key, true
		}
	}
	return "", false
}
