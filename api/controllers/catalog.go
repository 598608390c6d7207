package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/packagebuilder-backend/api/responses"
	"github.com/angelmondragon/packagebuilder-backend/api/validators"
	"github.com/angelmondragon/packagebuilder-backend/internal/catalog"
	"github.com/angelmondragon/packagebuilder-backend/internal/pricing"
	"github.com/angelmondragon/packagebuilder-backend/pkg/logger"
)

// PricingTables exposes the plan and support tables a session prices with.
type PricingTables interface {
	Plans() []pricing.Option
	SupportLevels() []pricing.Option
}

type catalogLoader interface {
	Load(ctx context.Context, packageID string) (*catalog.Catalog, error)
}

// GetPackage returns the normalized catalog for a package.
func GetPackage(loader catalogLoader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		packageID, err := validators.URLParam(r, "packageId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cat, err := loader.Load(r.Context(), packageID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cat)
	}
}

type pricingOptionsResponse struct {
	Plans         []pricing.Option `json:"plans"`
	SupportLevels []pricing.Option `json:"supportLevels"`
}

func PricingOptions(tables PricingTables) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, pricingOptionsResponse{
			Plans:         tables.Plans(),
			SupportLevels: tables.SupportLevels(),
		})
	}
}
