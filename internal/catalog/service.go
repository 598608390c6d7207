package catalog

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/multierr"

	pkgerrors "github.com/angelmondragon/packagebuilder-backend/pkg/errors"
	"github.com/angelmondragon/packagebuilder-backend/pkg/logger"
)

// Loader supplies the catalog a configuration session starts from.
type Loader interface {
	Load(ctx context.Context, packageID string) (*Catalog, error)
}

type service struct {
	repo Repository
	logg *logger.Logger
}

// NewService builds a Loader over the catalog repository. A missing package
// is an error; failures loading its items degrade to empty lists.
func NewService(repo Repository, logg *logger.Logger) (Loader, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, logg: logg}, nil
}

func (s *service) Load(ctx context.Context, packageID string) (*Catalog, error) {
	packageID = strings.TrimSpace(packageID)
	if packageID == "" {
		return nil, pkgerrors.Field("packageId", "package id is required")
	}
	ctx = s.logg.WithPackageID(ctx, packageID)

	pkg, err := s.repo.FindPackage(ctx, packageID)
	if err != nil {
		return nil, err
	}

	out := &Catalog{
		Package:    packageFromModel(*pkg),
		Features:   []Feature{},
		AddOns:     []AddOn{},
		UsageTiers: []UsageTier{},
	}

	var degraded error
	if out.Package.IsCustomizable {
		features, err := s.repo.ListFeatures(ctx, packageID)
		if err != nil {
			degraded = multierr.Append(degraded, fmt.Errorf("features: %w", err))
		}
		for _, f := range features {
			out.Features = append(out.Features, featureFromModel(f))
		}

		tiers, err := s.repo.ListUsageTiers(ctx, packageID)
		if err != nil {
			degraded = multierr.Append(degraded, fmt.Errorf("usage tiers: %w", err))
		}
		for _, u := range tiers {
			out.UsageTiers = append(out.UsageTiers, usageTierFromModel(u))
		}
	}

	addOns, err := s.repo.ListAddOns(ctx, packageID)
	if err != nil {
		degraded = multierr.Append(degraded, fmt.Errorf("add-ons: %w", err))
	}
	for _, a := range addOns {
		out.AddOns = append(out.AddOns, addOnFromModel(a))
	}

	if degraded != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", degraded.Error()), "catalog items unavailable, continuing with partial catalog")
	}

	if err := Normalize(out); err != nil {
		warnCtx := s.logg.WithFields(ctx, map[string]any{
			"dropped": len(multierr.Errors(err)),
			"reasons": err.Error(),
		})
		s.logg.Warn(warnCtx, "catalog items dropped during normalization")
	}

	return out, nil
}
