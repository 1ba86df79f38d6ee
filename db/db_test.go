package db

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/techagentng/chatly/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens an isolated in-memory database per test. The shared
// cache keeps the schema visible across the pool's connections.
func newTestDB(t *testing.T) *GormDB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, Migrate(gdb))
	return &GormDB{DB: gdb}
}

func createUser(t *testing.T, gdb *GormDB, username string) *models.User {
	t.Helper()
	user := &models.User{
		Fullname: username,
		Username: username,
		Email:    username + "@example.com",
	}
	user.ID = uuid.New()
	require.NoError(t, gdb.DB.Create(user).Error)
	return user
}

func createPrivateConversation(t *testing.T, gdb *GormDB, a, b *models.User) *models.Conversation {
	t.Helper()
	repo := NewConversationRepo(gdb)
	conv, err := repo.CreatePrivateConversation(a.ID, b.ID)
	require.NoError(t, err)
	return conv
}

func createGroupConversation(t *testing.T, gdb *GormDB, creator *models.User, others ...*models.User) *models.Conversation {
	t.Helper()
	repo := NewConversationRepo(gdb)
	ids := make([]uuid.UUID, 0, len(others))
	for _, u := range others {
		ids = append(ids, u.ID)
	}
	conv, err := repo.CreateGroupConversation(creator.ID, "test group", ids)
	require.NoError(t, err)
	return conv
}

func createTextMessage(t *testing.T, gdb *GormDB, conv *models.Conversation, sender *models.User, body string) *models.Message {
	t.Helper()
	msg := &models.Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		SenderID:       sender.ID,
		Type:           models.MessageTypeText,
		CreatedAt:      time.Now(),
		Text:           &models.TextMessage{ID: uuid.New(), Body: body},
	}
	msg.Text.MessageID = msg.ID
	require.NoError(t, gdb.DB.Create(msg).Error)
	return msg
}
