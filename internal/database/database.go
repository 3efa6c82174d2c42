package database

import (
	"log"
	"os"
	"time"

	"amigo/backend/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Connect initializes the database connection and runs migrations.
//
// TranslateError must stay enabled: the friendship service relies on
// gorm.ErrDuplicatedKey to detect two concurrent sends racing on the
// outstanding-request unique index.
func Connect(dsn string) {
	var err error

	customLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)

	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         customLogger,
		TranslateError: true,
	})
	if err != nil {
		logrus.WithError(err).Fatal("failed to connect to database")
	}

	logrus.Info("database connection established")

	if err := DB.AutoMigrate(&models.User{}, &models.Friendship{}); err != nil {
		logrus.WithError(err).Fatal("failed to migrate database")
	}

	logrus.Info("database migrated successfully")
}
