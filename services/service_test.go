package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/techagentng/chatly/db"
	"github.com/techagentng/chatly/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *db.GormDB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	return &db.GormDB{DB: gdb}
}

func createUser(t *testing.T, gdb *db.GormDB, username string) *models.User {
	t.Helper()
	user := &models.User{
		Fullname:    username,
		Username:    username,
		Email:       username + "@example.com",
		DeviceToken: "token-" + username,
	}
	user.ID = uuid.New()
	require.NoError(t, gdb.DB.Create(user).Error)
	return user
}

func makeFriends(t *testing.T, gdb *db.GormDB, a, b *models.User) {
	t.Helper()
	friendships := []models.Friendship{
		{ID: uuid.New(), UserID: a.ID, FriendID: b.ID},
		{ID: uuid.New(), UserID: b.ID, FriendID: a.ID},
	}
	require.NoError(t, gdb.DB.Create(&friendships).Error)
}

func blockUser(t *testing.T, gdb *db.GormDB, blocker, blocked *models.User) {
	t.Helper()
	require.NoError(t, gdb.DB.Create(&models.Block{
		ID: uuid.New(), BlockerID: blocker.ID, BlockedID: blocked.ID,
	}).Error)
}

// fakeUploader serves the factory and delete paths without S3. Uploads
// named in failNames fail; deleteErr makes every delete fail.
type fakeUploader struct {
	mu        sync.Mutex
	failNames map[string]bool
	deleteErr error
	uploads   []string
	deleted   []string
}

func (u *fakeUploader) UploadAttachment(ctx context.Context, params UploadAttachmentParams) (*UploadResult, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	name := params.Attachment.Name
	if u.failNames[name] {
		return nil, errors.New("upload rejected: " + name)
	}
	u.uploads = append(u.uploads, name)
	return &UploadResult{
		ExternalID:   "ext-" + name,
		URL:          "https://cdn.example.com/" + name,
		ThumbnailURL: "https://cdn.example.com/thumb-" + name,
		FileName:     name,
		FileType:     "image/jpeg",
		Size:         1024,
		Width:        640,
		Height:       480,
	}, nil
}

func (u *fakeUploader) DeleteAttachment(ctx context.Context, externalID string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.deleteErr != nil {
		return u.deleteErr
	}
	u.deleted = append(u.deleted, externalID)
	return nil
}

type publishCall struct {
	Channels []string
	Event    string
	Payload  interface{}
}

// recordingBroadcaster captures publishes for assertions.
type recordingBroadcaster struct {
	mu    sync.Mutex
	calls []publishCall
}

func (b *recordingBroadcaster) Publish(ctx context.Context, channels []string, event string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, publishCall{Channels: channels, Event: event, Payload: payload})
}

func (b *recordingBroadcaster) named(event string) []publishCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []publishCall
	for _, call := range b.calls {
		if call.Event == event {
			out = append(out, call)
		}
	}
	return out
}

type sentPush struct {
	Token, Title, Body string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentPush
}

func (n *recordingNotifier) Notify(ctx context.Context, deviceToken, title, body string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentPush{Token: deviceToken, Title: title, Body: body})
}

// fixture wires real sqlite-backed repositories to fake collaborators.
type fixture struct {
	gdb         *db.GormDB
	messageRepo db.MessageRepository
	convRepo    db.ConversationRepository
	friendRepo  db.FriendshipRepository
	uploader    *fakeUploader
	broadcaster *recordingBroadcaster
	notifier    *recordingNotifier
	factory     MessageFactory
	messages    MessageService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb := newTestDB(t)
	f := &fixture{
		gdb:         gdb,
		messageRepo: db.NewMessageRepo(gdb),
		convRepo:    db.NewConversationRepo(gdb),
		friendRepo:  db.NewFriendshipRepo(gdb),
		uploader:    &fakeUploader{failNames: map[string]bool{}},
		broadcaster: &recordingBroadcaster{},
		notifier:    &recordingNotifier{},
	}
	f.factory = NewMessageFactory(f.messageRepo, f.uploader)
	f.messages = NewMessageService(f.messageRepo, f.convRepo, f.friendRepo, f.factory, f.broadcaster, f.uploader, f.notifier)
	return f
}
