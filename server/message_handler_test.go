package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/techagentng/chatly/config"
	"github.com/techagentng/chatly/db"
	"github.com/techagentng/chatly/models"
	"github.com/techagentng/chatly/services"
	"github.com/techagentng/chatly/services/jwt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testJWTSecret = "test-secret"

type nopBroadcaster struct{}

func (nopBroadcaster) Publish(ctx context.Context, channels []string, event string, payload interface{}) {
}

type nopUploader struct{}

func (nopUploader) UploadAttachment(ctx context.Context, params services.UploadAttachmentParams) (*services.UploadResult, error) {
	return &services.UploadResult{
		ExternalID: "ext-" + params.Attachment.Name,
		URL:        "https://cdn.example.com/" + params.Attachment.Name,
		FileName:   params.Attachment.Name,
		FileType:   "image/jpeg",
	}, nil
}

func (nopUploader) DeleteAttachment(ctx context.Context, externalID string) error { return nil }

type testEnv struct {
	gdb    *db.GormDB
	server *Server
	router *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gormDB))
	gdb := &db.GormDB{DB: gormDB}

	messageRepo := db.NewMessageRepo(gdb)
	convRepo := db.NewConversationRepo(gdb)
	friendshipRepo := db.NewFriendshipRepo(gdb)

	broadcaster := nopBroadcaster{}
	uploader := nopUploader{}
	factory := services.NewMessageFactory(messageRepo, uploader)

	s := &Server{
		Config:                 &config.Config{JWTSecret: testJWTSecret},
		MessageRepository:      messageRepo,
		ConversationRepository: convRepo,
		FriendshipRepository:   friendshipRepo,
		MessageService: services.NewMessageService(
			messageRepo, convRepo, friendshipRepo, factory, broadcaster, uploader, services.NopNotifier{},
		),
		ConversationService: services.NewConversationService(convRepo, friendshipRepo, factory, broadcaster),
		FriendshipService:   services.NewFriendshipService(friendshipRepo, convRepo, broadcaster),
	}

	router := gin.New()
	s.defineRoutes(router)
	return &testEnv{gdb: gdb, server: s, router: router}
}

func (e *testEnv) createUser(t *testing.T, username string) *models.User {
	t.Helper()
	user := &models.User{Fullname: username, Username: username, Email: username + "@example.com"}
	user.ID = uuid.New()
	require.NoError(t, e.gdb.DB.Create(user).Error)
	return user
}

func (e *testEnv) befriend(t *testing.T, a, b *models.User) {
	t.Helper()
	require.NoError(t, e.gdb.DB.Create(&[]models.Friendship{
		{ID: uuid.New(), UserID: a.ID, FriendID: b.ID},
		{ID: uuid.New(), UserID: b.ID, FriendID: a.ID},
	}).Error)
}

func (e *testEnv) request(t *testing.T, method, path string, body interface{}, as *models.User) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if as != nil {
		token, err := jwt.GenerateToken(testJWTSecret, as.ID)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestSendMessageEndpoint(t *testing.T) {
	e := newTestEnv(t)
	alice := e.createUser(t, "alice")
	bob := e.createUser(t, "bob")
	e.befriend(t, alice, bob)
	conv, err := e.server.ConversationRepository.CreatePrivateConversation(alice.ID, bob.ID)
	require.NoError(t, err)

	path := fmt.Sprintf("/api/v1/conversations/%s/messages", conv.ID)

	t.Run("requires a token", func(t *testing.T) {
		w := e.request(t, http.MethodPost, path, gin.H{"type": "text", "body": "hi"}, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("rejects an unknown type", func(t *testing.T) {
		w := e.request(t, http.MethodPost, path, gin.H{"type": "voice", "body": "hi"}, alice)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("creates a text message", func(t *testing.T) {
		w := e.request(t, http.MethodPost, path, gin.H{"type": "text", "body": "hi bob"}, alice)
		require.Equal(t, http.StatusCreated, w.Code)

		var envelope struct {
			Data struct {
				ReceiverID uuid.UUID `json:"receiver_id"`
				Message    struct {
					Type string `json:"type"`
				} `json:"message"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
		assert.Equal(t, bob.ID, envelope.Data.ReceiverID)
		assert.Equal(t, "text", envelope.Data.Message.Type)
	})

	t.Run("non member gets 404", func(t *testing.T) {
		mallory := e.createUser(t, "mallory")
		w := e.request(t, http.MethodPost, path, gin.H{"type": "text", "body": "hi"}, mallory)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestListMessagesEndpoint(t *testing.T) {
	e := newTestEnv(t)
	alice := e.createUser(t, "alice")
	bob := e.createUser(t, "bob")
	e.befriend(t, alice, bob)
	conv, err := e.server.ConversationRepository.CreatePrivateConversation(alice.ID, bob.ID)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		body := gin.H{"type": "text", "body": fmt.Sprintf("msg %d", i)}
		w := e.request(t, http.MethodPost, fmt.Sprintf("/api/v1/conversations/%s/messages", conv.ID), body, alice)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := e.request(t, http.MethodGet, fmt.Sprintf("/api/v1/conversations/%s/messages?page=1&page_size=2", conv.ID), nil, bob)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data struct {
			Messages   []json.RawMessage `json:"messages"`
			Pagination models.Pagination `json:"pagination"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Len(t, envelope.Data.Messages, 2)
	assert.Equal(t, int64(3), envelope.Data.Pagination.TotalItems)
	require.NotNil(t, envelope.Data.Pagination.NextPage)
	assert.Equal(t, 2, *envelope.Data.Pagination.NextPage)
}

func TestReactionAndStarEndpoints(t *testing.T) {
	e := newTestEnv(t)
	alice := e.createUser(t, "alice")
	bob := e.createUser(t, "bob")
	e.befriend(t, alice, bob)
	conv, err := e.server.ConversationRepository.CreatePrivateConversation(alice.ID, bob.ID)
	require.NoError(t, err)

	w := e.request(t, http.MethodPost,
		fmt.Sprintf("/api/v1/conversations/%s/messages", conv.ID),
		gin.H{"type": "text", "body": "react to me"}, alice)
	require.Equal(t, http.StatusCreated, w.Code)

	var sent struct {
		Data struct {
			Message struct {
				ID uuid.UUID `json:"id"`
			} `json:"message"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sent))
	msgID := sent.Data.Message.ID

	reactPath := fmt.Sprintf("/api/v1/conversations/%s/messages/%s/reactions", conv.ID, msgID)

	w = e.request(t, http.MethodPost, reactPath, gin.H{"emoji": "👍"}, bob)
	require.Equal(t, http.StatusOK, w.Code)
	var change struct {
		Data services.ReactionChange `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &change))
	assert.Equal(t, services.ReactionCreated, change.Data.Action)

	// Same emoji again toggles the reaction off.
	w = e.request(t, http.MethodPost, reactPath, gin.H{"emoji": "👍"}, bob)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &change))
	assert.Equal(t, services.ReactionRemoved, change.Data.Action)

	starPath := fmt.Sprintf("/api/v1/conversations/%s/messages/%s/star", conv.ID, msgID)
	w = e.request(t, http.MethodPost, starPath, nil, bob)
	require.Equal(t, http.StatusOK, w.Code)
	var star struct {
		Data struct {
			Starred bool `json:"starred"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &star))
	assert.True(t, star.Data.Starred)
}

func TestDeleteMessageEndpoint(t *testing.T) {
	e := newTestEnv(t)
	alice := e.createUser(t, "alice")
	bob := e.createUser(t, "bob")
	e.befriend(t, alice, bob)
	conv, err := e.server.ConversationRepository.CreatePrivateConversation(alice.ID, bob.ID)
	require.NoError(t, err)

	w := e.request(t, http.MethodPost,
		fmt.Sprintf("/api/v1/conversations/%s/messages", conv.ID),
		gin.H{"type": "text", "body": "delete me"}, alice)
	require.Equal(t, http.StatusCreated, w.Code)
	var sent struct {
		Data struct {
			Message struct {
				ID uuid.UUID `json:"id"`
			} `json:"message"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sent))

	deletePath := fmt.Sprintf("/api/v1/conversations/%s/messages/%s", conv.ID, sent.Data.Message.ID)

	// Only the sender may delete for everyone.
	w = e.request(t, http.MethodDelete, deletePath, gin.H{"delete_for_everyone": true}, bob)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.request(t, http.MethodDelete, deletePath, gin.H{"delete_for_everyone": true}, alice)
	assert.Equal(t, http.StatusOK, w.Code)

	// Deleting an already-deleted message conflicts.
	w = e.request(t, http.MethodDelete, deletePath, gin.H{"delete_for_everyone": true}, alice)
	assert.Equal(t, http.StatusConflict, w.Code)
}
