package db

import (
	"context"
	"fmt"
	"socialfeed/config"
	"socialfeed/models"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
	"gorm.io/plugin/dbresolver"
)

var ORM *gorm.DB

func dsnFromConfig(dbConf config.DBConfig) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
		dbConf.Host, dbConf.Port, dbConf.User, dbConf.Password, dbConf.DBName,
	)
}

// ConnectDB открывает мастер и реплики (если есть) и прогоняет миграции
func ConnectDB(conf *config.ConfigSchema, logger *zap.Logger) (err error) {
	if ORM != nil {
		logger.Info("ORM is already initialized")
		return nil
	}

	if conf == nil {
		return fmt.Errorf("AppConfig is not loaded")
	}

	if conf.Databases.Master.Host == "" {
		return fmt.Errorf("master database configuration is missing")
	}

	masterDSN := dsnFromConfig(conf.Databases.Master)
	replicaDSNs := make([]gorm.Dialector, 0, len(conf.Databases.Replicas))
	for _, r := range conf.Databases.Replicas {
		replicaDSNs = append(replicaDSNs, postgres.Open(dsnFromConfig(r)))
	}

	database, err := gorm.Open(postgres.Open(masterDSN), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{
			SingularTable: true,
			NoLowerCase:   false,
		},
	})
	if err != nil {
		return err
	}

	if len(replicaDSNs) > 0 {
		err = database.Use(dbresolver.Register(dbresolver.Config{
			Replicas: replicaDSNs,
			Policy:   dbresolver.RandomPolicy{},
		}))
		if err != nil {
			return err
		}
		logger.Info("read replicas registered", zap.Int("replicas", len(replicaDSNs)))
	}

	if err = Migrate(database); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	ORM = database
	return nil
}

// Migrate создает таблицы и индексы, нужные ленте
func Migrate(database *gorm.DB) error {
	if err := database.AutoMigrate(&models.User{}, &models.Post{}, &models.Follow{}, &models.Like{}); err != nil {
		return err
	}
	return CreateFeedIndexes(database)
}

// ReadOnly маршрутизирует запрос на реплику, если резолвер зарегистрирован
func ReadOnly(ctx context.Context, database *gorm.DB) *gorm.DB {
	return database.WithContext(ctx).Clauses(dbresolver.Read)
}

// Write маршрутизирует запрос на мастер
func Write(ctx context.Context, database *gorm.DB) *gorm.DB {
	return database.WithContext(ctx).Clauses(dbresolver.Write)
}
