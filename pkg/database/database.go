package database

import (
	"fmt"
	"log"

	"olimpo_backend/internal/config"
	"olimpo_backend/internal/model"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func InitDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
		cfg.Charset,
		cfg.ParseTime,
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	})

	if err != nil {
		return nil, err
	}

	log.Println("Database connection established")

	if err := Migrate(db); err != nil {
		return nil, err
	}

	log.Println("Database migration completed")

	return db, nil
}

// Migrate runs AutoMigrate for every persistent model. Shared with the test
// helpers so the sqlite schema matches production.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.Group{},
		&model.Participant{},
		&model.Evaluation{},
		&model.Question{},
		&model.AttemptQuota{},
		&model.AttemptResult{},
		&model.MonitorSession{},
		&model.MonitorAlert{},
		&model.AdvancementOverride{},
	)
}
