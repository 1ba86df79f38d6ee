package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	errs "github.com/techagentng/chatly/errors"
	"github.com/techagentng/chatly/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MessageRepository is the persistence surface of the messaging core.
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg *models.Message) error
	GetMessage(conversationID, messageID uuid.UUID) (*models.Message, error)
	ListMessages(conversationID, userID uuid.UUID, page, pageSize int) ([]models.Message, models.Pagination, error)
	DeleteForEveryone(conversationID, messageID, userID uuid.UUID, purgeMedia func(externalIDs []string) error) (*models.Message, error)
	DeleteForMe(conversationID, messageID, userID uuid.UUID) error
	UpsertSeenStatus(conversationID uuid.UUID, messageIDs []uuid.UUID, memberID uuid.UUID) ([]models.SeenUpdate, error)
	GetReaction(messageID, userID uuid.UUID) (*models.MessageReaction, error)
	CreateReaction(reaction *models.MessageReaction) error
	UpdateReaction(reactionID uuid.UUID, emoji string) (*models.MessageReaction, error)
	DeleteReaction(reactionID uuid.UUID) error
	ToggleStar(userID, messageID uuid.UUID) (bool, error)
}

type messageRepo struct {
	DB *gorm.DB
}

func NewMessageRepo(db *GormDB) MessageRepository {
	return &messageRepo{db.DB}
}

// withRelations preloads everything a rendered message needs: sender,
// typed content, reactions in creation order, and seen rows.
func withRelations(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Sender").
		Preload("Text").
		Preload("Images.Media").
		Preload("Document.Media").
		Preload("System").
		Preload("Reactions", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Preload("SeenBy")
}

// CreateMessage persists the message together with its content rows
// and media in one transaction. The caller's context carries the
// transactional budget for attachment-heavy creates.
func (r *messageRepo) CreateMessage(ctx context.Context, msg *models.Message) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if err := r.DB.WithContext(ctx).Create(msg).Error; err != nil {
		return errors.Wrap(err, "failed to create message")
	}
	return nil
}

func (r *messageRepo) GetMessage(conversationID, messageID uuid.UUID) (*models.Message, error) {
	var msg models.Message
	err := withRelations(r.DB).
		Where("id = ? AND conversation_id = ?", messageID, conversationID).
		First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrMessageNotFound
		}
		return nil, errors.Wrap(err, "failed to fetch message")
	}
	return &msg, nil
}

// ListMessages returns one page of a conversation's messages, newest
// first, excluding messages the requesting user deleted for themselves.
func (r *messageRepo) ListMessages(conversationID, userID uuid.UUID, page, pageSize int) ([]models.Message, models.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = models.DefaultPageSize
	}

	visible := func(db *gorm.DB) *gorm.DB {
		return db.Model(&models.Message{}).
			Where("messages.conversation_id = ?", conversationID).
			Where("NOT EXISTS (SELECT 1 FROM deleted_messages dm WHERE dm.message_id = messages.id AND dm.user_id = ?)", userID)
	}

	var total int64
	if err := visible(r.DB).Count(&total).Error; err != nil {
		return nil, models.Pagination{}, errors.Wrap(err, "failed to count messages")
	}

	pagination := models.Paginate(page, pageSize, total)

	var messages []models.Message
	err := withRelations(visible(r.DB)).
		Order("messages.created_at DESC").
		Limit(pagination.PageSize).
		Offset(pagination.Offset()).
		Find(&messages).Error
	if err != nil {
		return nil, models.Pagination{}, errors.Wrap(err, "failed to list messages")
	}
	return messages, pagination, nil
}

// isMember reports whether userID belongs to the conversation, inside
// the given session.
func isMember(tx *gorm.DB, conversationID, userID uuid.UUID) (bool, error) {
	var count int64
	err := tx.Model(&models.Member{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&count).Error
	return count > 0, err
}

// DeleteForEveryone destroys the message content for all members:
// attachments are purged from storage, content/reaction/star rows are
// removed, and the message flips to the terminal deleted type. Every
// step runs in one transaction; a failed purge aborts the whole
// operation so no message is left half-deleted.
func (r *messageRepo) DeleteForEveryone(conversationID, messageID, userID uuid.UUID, purgeMedia func(externalIDs []string) error) (*models.Message, error) {
	tx := r.DB.Begin()
	if tx.Error != nil {
		return nil, errors.Wrap(tx.Error, "failed to begin transaction")
	}

	member, err := isMember(tx, conversationID, userID)
	if err != nil {
		tx.Rollback()
		return nil, errors.Wrap(err, "failed to check membership")
	}
	if !member {
		tx.Rollback()
		return nil, errs.ErrMessageNotFound
	}

	var msg models.Message
	err = withRelations(tx).
		Where("id = ? AND conversation_id = ?", messageID, conversationID).
		First(&msg).Error
	if err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrMessageNotFound
		}
		return nil, errors.Wrap(err, "failed to fetch message")
	}

	if msg.IsDeleted {
		tx.Rollback()
		return nil, errs.ErrMessageAlreadyDeleted
	}
	if msg.SenderID != userID {
		tx.Rollback()
		return nil, errs.ErrUserNotAuthorized
	}

	if externalIDs := msg.MediaExternalIDs(); len(externalIDs) > 0 && purgeMedia != nil {
		if err := purgeMedia(externalIDs); err != nil {
			tx.Rollback()
			return nil, errs.Wrap(errs.ErrContentDeletionFailed, err)
		}
	}

	if err := deleteMessageContent(tx, &msg); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Where("message_id = ?", msg.ID).Delete(&models.MessageReaction{}).Error; err != nil {
		tx.Rollback()
		return nil, errors.Wrap(err, "failed to delete reactions")
	}
	if err := tx.Where("message_id = ?", msg.ID).Delete(&models.StarredMessage{}).Error; err != nil {
		tx.Rollback()
		return nil, errors.Wrap(err, "failed to delete stars")
	}

	err = tx.Model(&models.Message{}).
		Where("id = ?", msg.ID).
		Updates(map[string]interface{}{"type": models.MessageTypeDeleted, "is_deleted": true}).Error
	if err != nil {
		tx.Rollback()
		return nil, errors.Wrap(err, "failed to mark message deleted")
	}

	if err := tx.Commit().Error; err != nil {
		return nil, errors.Wrap(err, "failed to commit delete")
	}

	msg.Type = models.MessageTypeDeleted
	msg.IsDeleted = true
	msg.Text = nil
	msg.Images = nil
	msg.Document = nil
	msg.System = nil
	msg.Reactions = nil
	return &msg, nil
}

// deleteMessageContent removes the type-specific payload rows and
// their media inside tx.
func deleteMessageContent(tx *gorm.DB, msg *models.Message) error {
	switch msg.Type {
	case models.MessageTypeText:
		if err := tx.Where("message_id = ?", msg.ID).Delete(&models.TextMessage{}).Error; err != nil {
			return errors.Wrap(err, "failed to delete text content")
		}
	case models.MessageTypeImage:
		mediaIDs := make([]uuid.UUID, 0, len(msg.Images))
		for _, img := range msg.Images {
			mediaIDs = append(mediaIDs, img.MediaID)
		}
		if err := tx.Where("message_id = ?", msg.ID).Delete(&models.ImageMessage{}).Error; err != nil {
			return errors.Wrap(err, "failed to delete image rows")
		}
		if len(mediaIDs) > 0 {
			if err := tx.Where("id IN ?", mediaIDs).Delete(&models.Media{}).Error; err != nil {
				return errors.Wrap(err, "failed to delete media rows")
			}
		}
	case models.MessageTypeDocument:
		if err := tx.Where("message_id = ?", msg.ID).Delete(&models.DocumentMessage{}).Error; err != nil {
			return errors.Wrap(err, "failed to delete document row")
		}
		if msg.Document != nil {
			if err := tx.Where("id = ?", msg.Document.MediaID).Delete(&models.Media{}).Error; err != nil {
				return errors.Wrap(err, "failed to delete media row")
			}
		}
	case models.MessageTypeSystem:
		if err := tx.Where("message_id = ?", msg.ID).Delete(&models.SystemMessage{}).Error; err != nil {
			return errors.Wrap(err, "failed to delete system content")
		}
	}
	return nil
}

// DeleteForMe hides the message for one user via a marker row. Calling
// it twice for the same message is rejected, which keeps the operation
// idempotent from the client's point of view.
func (r *messageRepo) DeleteForMe(conversationID, messageID, userID uuid.UUID) error {
	member, err := isMember(r.DB, conversationID, userID)
	if err != nil {
		return errors.Wrap(err, "failed to check membership")
	}
	if !member {
		return errs.ErrMessageNotFound
	}

	var msg models.Message
	err = r.DB.Select("id").
		Where("id = ? AND conversation_id = ?", messageID, conversationID).
		First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.ErrMessageNotFound
		}
		return errors.Wrap(err, "failed to fetch message")
	}

	var existing models.DeletedMessage
	err = r.DB.Where("message_id = ? AND user_id = ?", messageID, userID).First(&existing).Error
	if err == nil {
		return errs.ErrMessageAlreadyDeleted
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.Wrap(err, "failed to check deleted marker")
	}

	tx := r.DB.Begin()
	if tx.Error != nil {
		return errors.Wrap(tx.Error, "failed to begin transaction")
	}
	marker := models.DeletedMessage{ID: uuid.New(), MessageID: messageID, UserID: userID}
	if err := tx.Create(&marker).Error; err != nil {
		tx.Rollback()
		return errors.Wrap(err, "failed to create deleted marker")
	}
	if err := tx.Where("message_id = ? AND user_id = ?", messageID, userID).Delete(&models.StarredMessage{}).Error; err != nil {
		tx.Rollback()
		return errors.Wrap(err, "failed to remove star")
	}
	return tx.Commit().Error
}

// UpsertSeenStatus records that memberID has viewed the given batch of
// messages. Every id must belong to the conversation or the whole
// batch is rejected. All upserts run in one transaction; a duplicate
// report is a no-op thanks to the composite key. The result carries,
// per message, every member that has seen it so far.
func (r *messageRepo) UpsertSeenStatus(conversationID uuid.UUID, messageIDs []uuid.UUID, memberID uuid.UUID) ([]models.SeenUpdate, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}

	seen := make(map[uuid.UUID]struct{}, len(messageIDs))
	unique := make([]uuid.UUID, 0, len(messageIDs))
	for _, id := range messageIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	var matching int64
	err := r.DB.Model(&models.Message{}).
		Where("id IN ? AND conversation_id = ?", unique, conversationID).
		Count(&matching).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to scope seen batch")
	}
	if matching != int64(len(unique)) {
		return nil, errs.ErrMessageNotFound
	}

	tx := r.DB.Begin()
	if tx.Error != nil {
		return nil, errors.Wrap(tx.Error, "failed to begin transaction")
	}

	now := time.Now()
	for _, id := range unique {
		status := models.MessageSeenStatus{MessageID: id, MemberID: memberID, SeenAt: now}
		err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&status).Error
		if err != nil {
			tx.Rollback()
			return nil, errors.Wrap(err, "failed to upsert seen status")
		}
	}
	if err := tx.Commit().Error; err != nil {
		return nil, errors.Wrap(err, "failed to commit seen statuses")
	}

	var rows []models.MessageSeenStatus
	if err := r.DB.Where("message_id IN ?", unique).Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "failed to collect seen statuses")
	}

	byMessage := make(map[uuid.UUID][]uuid.UUID, len(unique))
	for _, row := range rows {
		byMessage[row.MessageID] = append(byMessage[row.MessageID], row.MemberID)
	}

	updates := make([]models.SeenUpdate, 0, len(unique))
	for _, id := range unique {
		updates = append(updates, models.SeenUpdate{MessageID: id, SeenByMemberIDs: byMessage[id]})
	}
	return updates, nil
}

func (r *messageRepo) GetReaction(messageID, userID uuid.UUID) (*models.MessageReaction, error) {
	var reaction models.MessageReaction
	err := r.DB.Where("message_id = ? AND user_id = ?", messageID, userID).First(&reaction).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to fetch reaction")
	}
	return &reaction, nil
}

func (r *messageRepo) CreateReaction(reaction *models.MessageReaction) error {
	if reaction.ID == uuid.Nil {
		reaction.ID = uuid.New()
	}
	if err := r.DB.Create(reaction).Error; err != nil {
		return errors.Wrap(err, "failed to create reaction")
	}
	return nil
}

func (r *messageRepo) UpdateReaction(reactionID uuid.UUID, emoji string) (*models.MessageReaction, error) {
	var reaction models.MessageReaction
	if err := r.DB.Where("id = ?", reactionID).First(&reaction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to fetch reaction")
	}
	reaction.Emoji = emoji
	if err := r.DB.Save(&reaction).Error; err != nil {
		return nil, errors.Wrap(err, "failed to update reaction")
	}
	return &reaction, nil
}

func (r *messageRepo) DeleteReaction(reactionID uuid.UUID) error {
	result := r.DB.Where("id = ?", reactionID).Delete(&models.MessageReaction{})
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to delete reaction")
	}
	if result.RowsAffected == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// ToggleStar stars the message for the user, or unstars it when a star
// already exists. Returns the resulting starred state.
func (r *messageRepo) ToggleStar(userID, messageID uuid.UUID) (bool, error) {
	var existing models.StarredMessage
	err := r.DB.Where("user_id = ? AND message_id = ?", userID, messageID).First(&existing).Error
	if err == nil {
		if err := r.DB.Where("user_id = ? AND message_id = ?", userID, messageID).Delete(&models.StarredMessage{}).Error; err != nil {
			return true, errors.Wrap(err, "failed to unstar message")
		}
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, errors.Wrap(err, "failed to check star")
	}

	star := models.StarredMessage{UserID: userID, MessageID: messageID, CreatedAt: time.Now()}
	if err := r.DB.Create(&star).Error; err != nil {
		return false, errors.Wrap(err, "failed to star message")
	}
	return true, nil
}
