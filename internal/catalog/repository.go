package catalog

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/packagebuilder-backend/internal/repo"
	"github.com/angelmondragon/packagebuilder-backend/pkg/db/models"
)

// Repository reads catalog rows.
type Repository interface {
	FindPackage(ctx context.Context, id string) (*models.Package, error)
	ListFeatures(ctx context.Context, packageID string) ([]models.Feature, error)
	ListAddOns(ctx context.Context, packageID string) ([]models.AddOn, error)
	ListUsageTiers(ctx context.Context, packageID string) ([]models.UsageTier, error)
}

type gormRepository struct {
	repo.Base
}

// NewRepository builds a catalog repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{Base: repo.NewBase(db)}
}

func (r *gormRepository) FindPackage(ctx context.Context, id string) (*models.Package, error) {
	return repo.FindOne[models.Package](ctx, r.Base, "package", "id = ? AND active = ?", id, true)
}

func (r *gormRepository) ListFeatures(ctx context.Context, packageID string) ([]models.Feature, error) {
	return repo.ListByPackage[models.Feature](ctx, r.Base, packageID)
}

func (r *gormRepository) ListAddOns(ctx context.Context, packageID string) ([]models.AddOn, error) {
	return repo.ListByPackage[models.AddOn](ctx, r.Base, packageID)
}

func (r *gormRepository) ListUsageTiers(ctx context.Context, packageID string) ([]models.UsageTier, error) {
	return repo.ListByPackage[models.UsageTier](ctx, r.Base, packageID)
}
