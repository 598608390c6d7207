package submissions

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/packagebuilder-backend/internal/repo"
	"github.com/angelmondragon/packagebuilder-backend/pkg/db/models"
)

const idempotencyConstraint = "ux_configuration_submissions_idempotency_key"

// Repository persists configuration submissions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, row *models.ConfigurationSubmission) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.ConfigurationSubmission, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*models.ConfigurationSubmission, error)
}

type gormRepository struct {
	repo.Base
}

// NewRepository builds a submission repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{Base: repo.NewBase(db)}
}

func (r *gormRepository) WithTx(tx *gorm.DB) Repository {
	return &gormRepository{Base: r.Base.WithTx(tx)}
}

func (r *gormRepository) Create(ctx context.Context, row *models.ConfigurationSubmission) error {
	if row == nil {
		return errors.New("submission required")
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	return r.DB(ctx).Create(row).Error
}

func (r *gormRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.ConfigurationSubmission, error) {
	return repo.FindOne[models.ConfigurationSubmission](ctx, r.Base, "submission", "id = ?", id)
}

func (r *gormRepository) FindByIdempotencyKey(ctx context.Context, key string) (*models.ConfigurationSubmission, error) {
	return repo.FindOne[models.ConfigurationSubmission](ctx, r.Base, "submission", "idempotency_key = ?", key)
}
