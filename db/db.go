package db

import (
	"fmt"
	"log"

	"github.com/techagentng/chatly/config"
	"github.com/techagentng/chatly/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type GormDB struct {
	DB *gorm.DB
}

func GetDB(c *config.Config) *GormDB {
	gormDB := &GormDB{}
	gormDB.Init(c)
	return gormDB
}

func (g *GormDB) Init(c *config.Config) {
	g.DB = getPostgresDB(c)

	if err := Migrate(g.DB); err != nil {
		log.Fatalf("unable to run migrations: %v", err)
	}
}

func getPostgresDB(c *config.Config) *gorm.DB {
	postgresDSN := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d",
		c.PostgresHost, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresPort)

	gormConfig := &gorm.Config{}
	if c.Env != "prod" {
		gormConfig.Logger = logger.Default.LogMode(logger.Info)
	}
	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		DSN: postgresDSN,
	}), gormConfig)
	if err != nil {
		log.Fatal(err)
	}

	return gormDB
}

// Migrate creates or updates every table of the messaging core.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Conversation{},
		&models.Member{},
		&models.DeletedConversation{},
		&models.Message{},
		&models.TextMessage{},
		&models.ImageMessage{},
		&models.DocumentMessage{},
		&models.SystemMessage{},
		&models.DeletedMessage{},
		&models.Media{},
		&models.MessageReaction{},
		&models.MessageSeenStatus{},
		&models.StarredMessage{},
		&models.FriendRequest{},
		&models.Friendship{},
		&models.Block{},
	)
}
