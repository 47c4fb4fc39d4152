package configdb

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
	"gorm.io/gorm"
)

// ConfigDB holds the cameras and system configuration.
// Count events live in their own database (countdb), so that a large event
// history never slows down config reads.
type ConfigDB struct {
	Log logs.Log
	DB  *gorm.DB
}

func NewConfigDB(logger logs.Log, dbFilename string) (*ConfigDB, error) {
	os.MkdirAll(filepath.Dir(dbFilename), 0770)
	configDB, err := dbh.OpenDB(logger, dbh.MakeSqliteConfig(dbFilename), Migrations(logger), 0)
	if err != nil {
		return nil, fmt.Errorf("Failed to open database %v: %w", dbFilename, err)
	}
	return &ConfigDB{
		Log: logger,
		DB:  configDB,
	}, nil
}

// GetConfig returns the system config, or the defaults if none has been saved yet.
func (c *ConfigDB) GetConfig() (*ConfigJSON, error) {
	value := ""
	err := c.DB.Raw("SELECT value FROM system_config WHERE key = ?", systemConfigKey).Row().Scan(&value)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && value == "") {
		cfg := DefaultSystemConfig()
		return &cfg, nil
	} else if err != nil {
		return nil, err
	}
	return parseSystemConfig(value)
}

func (c *ConfigDB) SetConfig(cfg *ConfigJSON) error {
	if err := ValidateConfig(cfg); err != nil {
		return err
	}
	j, err := encodeSystemConfig(cfg)
	if err != nil {
		return err
	}
	return c.DB.Exec(
		"INSERT INTO system_config (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		systemConfigKey, j).Error
}

// GetCamera returns the camera with the given ID, or gorm.ErrRecordNotFound.
func (c *ConfigDB) GetCamera(id int64) (*Camera, error) {
	cam := Camera{}
	if err := c.DB.First(&cam, id).Error; err != nil {
		return nil, err
	}
	return &cam, nil
}

func (c *ConfigDB) ListCameras() ([]*Camera, error) {
	cameras := []*Camera{}
	if err := c.DB.Order("id").Find(&cameras).Error; err != nil {
		return nil, err
	}
	return cameras, nil
}
