package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/packagebuilder-backend/pkg/config"
	"github.com/angelmondragon/packagebuilder-backend/pkg/db"
	"github.com/angelmondragon/packagebuilder-backend/pkg/db/models"
	"github.com/angelmondragon/packagebuilder-backend/pkg/logger"
)

// schemaModels back the sqlite dev schema; postgres always goes through goose.
var schemaModels = []any{
	&models.Package{},
	&models.Feature{},
	&models.AddOn{},
	&models.UsageTier{},
	&models.ConfigurationSubmission{},
	&models.OutboxEvent{},
	&models.OutboxDLQ{},
}

// MaybeRunDev migrates on boot when running in dev with auto-migrate enabled.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "driver": cfg.DB.Driver})

	if cfg.FeatureFlags.UseSQLite || cfg.DB.Driver == db.DriverSQLite {
		logg.Info(ctx, "auto-migrating sqlite schema from models")
		if err := client.DB().WithContext(ctx).AutoMigrate(schemaModels...); err != nil {
			return fmt.Errorf("auto-migrating sqlite schema: %w", err)
		}
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	applied, err := Run(ctx, sqlDB, DefaultDir, "up")
	if err != nil {
		return err
	}
	logg.Info(logg.WithField(ctx, "applied", applied), "goose migrations completed")
	return nil
}
