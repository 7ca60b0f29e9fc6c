package database

import (
	"fmt"

	"bloodbank-backend/internal/config"
	"bloodbank-backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var DB *gorm.DB

func Init(cfg *config.Config, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	DB = db

	if cfg.AutoMigrate {
		if err := migrate(db, logger); err != nil {
			return err
		}
	}

	if cfg.ComponentSettingsFile != "" {
		settings, err := config.LoadComponentSettings(cfg.ComponentSettingsFile)
		if err != nil {
			return err
		}
		if err := SeedComponentSettings(db, settings); err != nil {
			return err
		}
		logger.Info("component settings seeded",
			zap.String("file", cfg.ComponentSettingsFile),
			zap.Int("count", len(settings)))
	}

	logger.Info("database connected", zap.Bool("auto_migrate", cfg.AutoMigrate))
	return nil
}

func reportDuplicateKeys(logger *zap.Logger, count int64, err error) {
	if err != nil {
		logger.Warn("duplicate segregation keys could not be counted", zap.Error(err))
		return
	}
	logger.Warn("duplicate segregation keys", zap.Int64("count", count))
}

func migrate(db *gorm.DB, logger *zap.Logger) error {
	// blood_segregation may predate the unique (collection_id, component) index.
	// Duplicates left by older writers would make AutoMigrate fail, so the index is
	// created by hand first and a failure only downgrades to the in-transaction check.
	if db.Migrator().HasTable(&models.BloodSegregation{}) &&
		!db.Migrator().HasIndex(&models.BloodSegregation{}, "ux_blood_segregation_collection_component") {
		logger.Info("creating unique index on blood_segregation(collection_id, component)")
		if err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS ux_blood_segregation_collection_component
			ON blood_segregation (collection_id, component)`).Error; err != nil {
			logger.Warn("unique segregation index not created, duplicate rows exist", zap.Error(err))
			var dupes int64
			countErr := db.Raw(`SELECT COUNT(*) FROM (
				SELECT collection_id, component FROM blood_segregation
				GROUP BY collection_id, component HAVING COUNT(*) > 1) d`).Scan(&dupes).Error
			reportDuplicateKeys(logger, dupes, countErr)
			return db.AutoMigrate(migratableModels(false)...)
		}
	}

	if err := db.AutoMigrate(migratableModels(true)...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

func migratableModels(withSegregation bool) []interface{} {
	list := []interface{}{
		&models.Centre{},
		&models.BloodGroup{},
		&models.User{},
		&models.Donor{},
		&models.BloodCollection{},
		&models.BloodTesting{},
		&models.BloodInventory{},
		&models.ComponentSetting{},
		&models.SegregationAudit{},
		&models.Notification{},
	}
	if withSegregation {
		list = append(list, &models.BloodSegregation{})
	}
	return list
}

// SeedComponentSettings upserts ratio and shelf-life overrides.
func SeedComponentSettings(db *gorm.DB, settings []models.ComponentSetting) error {
	if len(settings) == 0 {
		return nil
	}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "component"}},
		DoUpdates: clause.AssignmentColumns([]string{"ratio", "shelf_life_days"}),
	}).Create(&settings).Error
	if err != nil {
		return fmt.Errorf("seed component settings: %w", err)
	}
	return nil
}

// Ping checks the connection for health probes.
func Ping() error {
	if DB == nil {
		return fmt.Errorf("database not initialised")
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
