package database

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"propeval/server/internal/models"
)

// ErrNotFound is returned when a property or settings record does not exist.
var ErrNotFound = errors.New("record not found")

type Database struct {
	db *gorm.DB
}

func NewDatabase(dbPath string) (*Database, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Database{db: db}, nil
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetDB exposes the underlying gorm handle for migrations and tests.
func (d *Database) GetDB() *gorm.DB {
	return d.db
}

// CreateProperty persists a new property record and returns it with its
// generated identifier.
func (d *Database) CreateProperty(req *models.PropertyRequest) (*models.Property, error) {
	property := req.ToProperty()
	property.ID = uuid.NewString()

	if err := d.db.Create(property).Error; err != nil {
		return nil, fmt.Errorf("failed to create property: %w", err)
	}
	return property, nil
}

func (d *Database) GetProperty(id string) (*models.Property, error) {
	var property models.Property
	err := d.db.First(&property, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get property: %w", err)
	}
	return &property, nil
}

func (d *Database) GetAllProperties() ([]models.Property, error) {
	var properties []models.Property
	if err := d.db.Order("created_at DESC").Find(&properties).Error; err != nil {
		return nil, fmt.Errorf("failed to list properties: %w", err)
	}
	return properties, nil
}

// UpdateRPData attaches a market report to a property so subsequent
// evaluations route through the report-processing stage.
func (d *Database) UpdateRPData(id string, report string) error {
	res := d.db.Model(&models.Property{}).Where("id = ?", id).Update("rp_data", report)
	if res.Error != nil {
		return fmt.Errorf("failed to update rp data: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetEvaluationProgress writes a single stage transition to the property
// record. Each transition is written immediately so pollers observe
// intermediate stages.
func (d *Database) SetEvaluationProgress(id string, status string, stage string) error {
	res := d.db.Model(&models.Property{}).Where("id = ?", id).Updates(map[string]interface{}{
		"evaluation_status": status,
		"evaluation_stage":  stage,
		"updated_at":        time.Now(),
	})
	if res.Error != nil {
		return fmt.Errorf("failed to update evaluation progress: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveEvaluationResult stores the terminal evaluation payload on the property.
func (d *Database) SaveEvaluationResult(id string, result *models.EvaluationResult, status string) error {
	updates := map[string]interface{}{
		"evaluation_report":     result.EvaluationReport,
		"improvements_detected": result.ImprovementsDetected,
		"evaluation_status":     status,
		"evaluation_stage":      status,
		"updated_at":            time.Now(),
	}
	if result.PricePerSqm != nil {
		updates["price_per_sqm"] = *result.PricePerSqm
	}

	res := d.db.Model(&models.Property{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to save evaluation result: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetAPISettings returns the stored connector API keys, or nil when none have
// been saved yet.
func (d *Database) GetAPISettings() (*models.APISettings, error) {
	var settings models.APISettings
	err := d.db.First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get api settings: %w", err)
	}
	return &settings, nil
}

func (d *Database) UpdateAPISettings(req *models.APISettingsRequest) error {
	existing, err := d.GetAPISettings()
	if err != nil {
		return err
	}

	if existing == nil {
		existing = &models.APISettings{}
	}
	existing.DomainAPIKey = req.DomainAPIKey
	existing.CoreLogicAPIKey = req.CoreLogicAPIKey
	existing.RealEstateAPIKey = req.RealEstateAPIKey
	existing.PriceFinderAPIKey = req.PriceFinderAPIKey

	if err := d.db.Save(existing).Error; err != nil {
		return fmt.Errorf("failed to save api settings: %w", err)
	}
	return nil
}

// GetNotifierConfig returns the stored Telegram configuration, or nil when
// notifications have never been configured.
func (d *Database) GetNotifierConfig() (*models.NotifierConfig, error) {
	var config models.NotifierConfig
	err := d.db.First(&config).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get notifier config: %w", err)
	}
	return &config, nil
}

func (d *Database) UpdateNotifierConfig(req *models.NotifierConfigRequest) error {
	existing, err := d.GetNotifierConfig()
	if err != nil {
		return err
	}

	if existing == nil {
		existing = &models.NotifierConfig{}
	}
	existing.IsEnabled = req.IsEnabled
	existing.BotToken = req.BotToken
	existing.ChatID = req.ChatID

	if err := d.db.Save(existing).Error; err != nil {
		return fmt.Errorf("failed to save notifier config: %w", err)
	}
	return nil
}
