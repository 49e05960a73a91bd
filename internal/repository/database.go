package repository

import (
	"fmt"

	"github.com/blues/launchpad/internal/config"
	"github.com/blues/launchpad/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// Init 连接数据库
func Init(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent), // 禁用 GORM 的默认日志输出
		NamingStrategy: &schema.NamingStrategy{
			SingularTable: true, // 禁用复数表名
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.AutoMigrate {
		if err := AutoMigrate(db); err != nil {
			return nil, err
		}
	}

	return db, nil
}

// AutoMigrate 自动迁移账本表结构
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Project{},
		&model.Bucket{},
		&model.Evaluation{},
		&model.Bid{},
		&model.Contribution{},
		&model.ProjectUpdate{},
		&model.Balance{},
		&model.Asset{},
		&model.Counter{},
		&model.UnconfirmedMigration{},
		&model.ActiveQuery{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
