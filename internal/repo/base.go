package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/packagebuilder-backend/pkg/errors"
)

// Base is embedded by the gorm repositories. A Base built from a
// transaction keeps every query on that transaction.
type Base struct {
	db *gorm.DB
}

func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// WithTx rebinds to tx; a nil tx keeps the current handle.
func (b Base) WithTx(tx *gorm.DB) Base {
	if tx == nil {
		return b
	}
	return Base{db: tx}
}

// FindOne loads the first row matching query. A miss becomes NOT_FOUND
// naming entity; any other failure is a dependency error.
func FindOne[T any](ctx context.Context, b Base, entity string, query any, args ...any) (*T, error) {
	var row T
	err := b.DB(ctx).Where(query, args...).First(&row).Error
	switch {
	case err == nil:
		return &row, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, entity+" not found")
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load "+entity)
	}
}

// ListByPackage returns a package's catalog rows in display order.
func ListByPackage[T any](ctx context.Context, b Base, packageID string) ([]T, error) {
	var rows []T
	err := b.DB(ctx).
		Where("package_id = ?", packageID).
		Order("position ASC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list catalog rows")
	}
	return rows, nil
}
