package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/stayflow/stayflow-backend/internal/config"
	"github.com/stayflow/stayflow-backend/internal/logger"
)

var DB *gorm.DB

// DSN builds the postgres connection string for cfg
func DSN(cfg config.DatabaseConfig) string {
	// For Cloud Run with Cloud SQL
	if cfg.InstanceConnectionName != "" {
		return fmt.Sprintf("host=/cloudsql/%s user=%s password=%s dbname=%s sslmode=disable",
			cfg.InstanceConnectionName, cfg.User, cfg.Password, cfg.Name)
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=5432 sslmode=disable",
		cfg.Host, cfg.User, cfg.Password, cfg.Name)
}

// Connect opens the global connection
func Connect(cfg config.DatabaseConfig) error {
	if cfg.InstanceConnectionName != "" {
		logger.Info("Connecting to Cloud SQL via socket", "instance", cfg.InstanceConnectionName)
	} else {
		logger.Info("Connecting to PostgreSQL", "host", cfg.Host)
	}

	db, err := gorm.Open(postgres.Open(DSN(cfg)), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	DB = db

	logger.Info("✅ Database connected successfully!")
	return nil
}

// Ping reports whether the connection is alive
func Ping() error {
	if DB == nil {
		return fmt.Errorf("database not connected")
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Close releases the connection pool
func Close() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
