package db

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	errs "github.com/techagentng/chatly/errors"
	"github.com/techagentng/chatly/models"
	"gorm.io/gorm"
)

type ConversationRepository interface {
	CreatePrivateConversation(creatorID, otherID uuid.UUID) (*models.Conversation, error)
	CreateGroupConversation(creatorID uuid.UUID, name string, memberIDs []uuid.UUID) (*models.Conversation, error)
	GetConversation(conversationID uuid.UUID) (*models.Conversation, error)
	FindPrivateConversation(aID, bID uuid.UUID) (*models.Conversation, error)
	TouchLastActivity(conversationID uuid.UUID) error
	RestoreForUsers(conversationID uuid.UUID, userIDs []uuid.UUID) error
	SoftDeleteForUser(conversationID, userID uuid.UUID) error
	HardDeleteGroup(conversationID, userID uuid.UUID) error
	AddMember(conversationID, requesterID, userID uuid.UUID) (*models.Member, error)
	RemoveMember(conversationID, requesterID, userID uuid.UUID) error
	ExitGroup(conversationID, userID uuid.UUID) error
	UpdateMemberRole(conversationID, requesterID, memberID uuid.UUID, role models.MemberRole) (*models.Member, error)
}

type conversationRepo struct {
	DB *gorm.DB
}

func NewConversationRepo(db *GormDB) ConversationRepository {
	return &conversationRepo{db.DB}
}

// CreatePrivateConversation creates a two-member conversation. Both
// members hold the member role; private conversations have no admins.
func (r *conversationRepo) CreatePrivateConversation(creatorID, otherID uuid.UUID) (*models.Conversation, error) {
	conv := models.Conversation{
		ID:        uuid.New(),
		IsGroup:   false,
		CreatedBy: creatorID,
		Members: []models.Member{
			{ID: uuid.New(), UserID: creatorID, Role: models.RoleMember},
			{ID: uuid.New(), UserID: otherID, Role: models.RoleMember},
		},
	}
	if err := r.DB.Create(&conv).Error; err != nil {
		return nil, errors.Wrap(err, "failed to create private conversation")
	}
	return r.GetConversation(conv.ID)
}

// CreateGroupConversation creates a group whose creator is its one
// admin. That admin membership is immutable for the group's lifetime.
func (r *conversationRepo) CreateGroupConversation(creatorID uuid.UUID, name string, memberIDs []uuid.UUID) (*models.Conversation, error) {
	members := []models.Member{
		{ID: uuid.New(), UserID: creatorID, Role: models.RoleAdmin},
	}
	for _, id := range memberIDs {
		if id == creatorID {
			continue
		}
		members = append(members, models.Member{ID: uuid.New(), UserID: id, Role: models.RoleMember})
	}
	conv := models.Conversation{
		ID:        uuid.New(),
		IsGroup:   true,
		Name:      name,
		CreatedBy: creatorID,
		Members:   members,
	}
	if err := r.DB.Create(&conv).Error; err != nil {
		return nil, errors.Wrap(err, "failed to create group conversation")
	}
	return r.GetConversation(conv.ID)
}

func (r *conversationRepo) GetConversation(conversationID uuid.UUID) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.DB.Preload("Members.User").Where("id = ?", conversationID).First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrConversationNotFound
		}
		return nil, errors.Wrap(err, "failed to fetch conversation")
	}
	return &conv, nil
}

// FindPrivateConversation returns the existing private conversation
// between two users, or ErrConversationNotFound.
func (r *conversationRepo) FindPrivateConversation(aID, bID uuid.UUID) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.DB.
		Joins("JOIN members ma ON ma.conversation_id = conversations.id AND ma.user_id = ?", aID).
		Joins("JOIN members mb ON mb.conversation_id = conversations.id AND mb.user_id = ?", bID).
		Where("conversations.is_group = ?", false).
		Preload("Members.User").
		First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrConversationNotFound
		}
		return nil, errors.Wrap(err, "failed to find private conversation")
	}
	return &conv, nil
}

// TouchLastActivity bumps the conversation's recency timestamp so
// conversation lists sort by latest activity.
func (r *conversationRepo) TouchLastActivity(conversationID uuid.UUID) error {
	err := r.DB.Model(&models.Conversation{}).
		Where("id = ?", conversationID).
		Update("updated_at", time.Now()).Error
	if err != nil {
		return errors.Wrap(err, "failed to touch conversation")
	}
	return nil
}

// RestoreForUsers clears deleted-for-me markers so the conversation
// reappears for users who hid it, triggered by new inbound activity.
func (r *conversationRepo) RestoreForUsers(conversationID uuid.UUID, userIDs []uuid.UUID) error {
	if len(userIDs) == 0 {
		return nil
	}
	err := r.DB.
		Where("conversation_id = ? AND user_id IN ?", conversationID, userIDs).
		Delete(&models.DeletedConversation{}).Error
	if err != nil {
		return errors.Wrap(err, "failed to restore conversation")
	}
	return nil
}

// SoftDeleteForUser hides the conversation for one user only.
func (r *conversationRepo) SoftDeleteForUser(conversationID, userID uuid.UUID) error {
	conv, err := r.GetConversation(conversationID)
	if err != nil {
		return err
	}
	if !conv.HasMember(userID) {
		return errs.ErrConversationNotFound
	}

	var existing models.DeletedConversation
	err = r.DB.Where("conversation_id = ? AND user_id = ?", conversationID, userID).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.Wrap(err, "failed to check deleted marker")
	}

	marker := models.DeletedConversation{ID: uuid.New(), ConversationID: conversationID, UserID: userID}
	if err := r.DB.Create(&marker).Error; err != nil {
		return errors.Wrap(err, "failed to soft delete conversation")
	}
	return nil
}

// HardDeleteGroup destroys a group and everything it owns. Only the
// original creator may do this, and only once every other member has
// left.
func (r *conversationRepo) HardDeleteGroup(conversationID, userID uuid.UUID) error {
	conv, err := r.GetConversation(conversationID)
	if err != nil {
		return err
	}
	if !conv.IsGroup {
		return errs.ErrConversationNotGroup
	}
	if conv.CreatedBy != userID || len(conv.Members) != 1 || conv.Members[0].UserID != userID {
		return errs.ErrLastMemberOnly
	}

	tx := r.DB.Begin()
	if tx.Error != nil {
		return errors.Wrap(tx.Error, "failed to begin transaction")
	}

	var messageIDs []uuid.UUID
	if err := tx.Model(&models.Message{}).Where("conversation_id = ?", conversationID).Pluck("id", &messageIDs).Error; err != nil {
		tx.Rollback()
		return errors.Wrap(err, "failed to collect messages")
	}
	if len(messageIDs) > 0 {
		for _, model := range []interface{}{
			&models.TextMessage{}, &models.ImageMessage{}, &models.DocumentMessage{},
			&models.SystemMessage{}, &models.MessageReaction{}, &models.MessageSeenStatus{},
			&models.StarredMessage{}, &models.DeletedMessage{},
		} {
			if err := tx.Where("message_id IN ?", messageIDs).Delete(model).Error; err != nil {
				tx.Rollback()
				return errors.Wrap(err, "failed to delete message content")
			}
		}
		if err := tx.Where("conversation_id = ?", conversationID).Delete(&models.Message{}).Error; err != nil {
			tx.Rollback()
			return errors.Wrap(err, "failed to delete messages")
		}
	}
	if err := tx.Where("conversation_id = ?", conversationID).Delete(&models.DeletedConversation{}).Error; err != nil {
		tx.Rollback()
		return errors.Wrap(err, "failed to delete conversation markers")
	}
	if err := tx.Where("conversation_id = ?", conversationID).Delete(&models.Member{}).Error; err != nil {
		tx.Rollback()
		return errors.Wrap(err, "failed to delete members")
	}
	if err := tx.Where("id = ?", conversationID).Delete(&models.Conversation{}).Error; err != nil {
		tx.Rollback()
		return errors.Wrap(err, "failed to delete conversation")
	}
	return tx.Commit().Error
}

// AddMember lets a group admin add a user.
func (r *conversationRepo) AddMember(conversationID, requesterID, userID uuid.UUID) (*models.Member, error) {
	conv, err := r.GetConversation(conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.IsGroup {
		return nil, errs.ErrConversationNotGroup
	}
	if !r.isAdmin(conv, requesterID) {
		return nil, errs.ErrUserNotAuthorized
	}
	if conv.HasMember(userID) {
		return nil, errs.AlreadyInState("user is already a member")
	}

	member := models.Member{
		ID:             uuid.New(),
		ConversationID: conversationID,
		UserID:         userID,
		Role:           models.RoleMember,
	}
	if err := r.DB.Create(&member).Error; err != nil {
		return nil, errors.Wrap(err, "failed to add member")
	}
	if err := r.DB.Preload("User").First(&member, "id = ?", member.ID).Error; err != nil {
		return nil, errors.Wrap(err, "failed to reload member")
	}
	return &member, nil
}

// RemoveMember lets a group admin remove another user. The creator can
// never be removed.
func (r *conversationRepo) RemoveMember(conversationID, requesterID, userID uuid.UUID) error {
	conv, err := r.GetConversation(conversationID)
	if err != nil {
		return err
	}
	if !conv.IsGroup {
		return errs.ErrConversationNotGroup
	}
	if !r.isAdmin(conv, requesterID) {
		return errs.ErrUserNotAuthorized
	}
	if userID == conv.CreatedBy {
		return errs.ErrUserNotAuthorized
	}
	return r.deleteMembership(conversationID, userID)
}

// ExitGroup removes the caller's own membership. Creators cannot
// exit; their way out is HardDeleteGroup once everyone else has left.
func (r *conversationRepo) ExitGroup(conversationID, userID uuid.UUID) error {
	conv, err := r.GetConversation(conversationID)
	if err != nil {
		return err
	}
	if !conv.IsGroup {
		return errs.ErrConversationNotGroup
	}
	if !conv.HasMember(userID) {
		return errs.ErrMemberNotFound
	}
	// The creator's membership is the anchor for group deletion, so
	// they dissolve the group instead of walking away from it.
	if userID == conv.CreatedBy {
		return errs.ErrCreatorCannotExit
	}
	return r.deleteMembership(conversationID, userID)
}

func (r *conversationRepo) deleteMembership(conversationID, userID uuid.UUID) error {
	result := r.DB.Where("conversation_id = ? AND user_id = ?", conversationID, userID).Delete(&models.Member{})
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to remove member")
	}
	if result.RowsAffected == 0 {
		return errs.ErrMemberNotFound
	}
	return nil
}

// UpdateMemberRole changes a member's role. The original creator's
// role can never be changed, by anyone, through any path.
func (r *conversationRepo) UpdateMemberRole(conversationID, requesterID, memberID uuid.UUID, role models.MemberRole) (*models.Member, error) {
	conv, err := r.GetConversation(conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.IsGroup {
		return nil, errs.ErrConversationNotGroup
	}
	if !r.isAdmin(conv, requesterID) {
		return nil, errs.ErrUserNotAuthorized
	}

	var member models.Member
	err = r.DB.Where("id = ? AND conversation_id = ?", memberID, conversationID).First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrMemberNotFound
		}
		return nil, errors.Wrap(err, "failed to fetch member")
	}
	if member.UserID == conv.CreatedBy {
		return nil, errs.ErrRoleChangeForbidden
	}

	member.Role = role
	if err := r.DB.Save(&member).Error; err != nil {
		return nil, errors.Wrap(err, "failed to update role")
	}
	return &member, nil
}

func (r *conversationRepo) isAdmin(conv *models.Conversation, userID uuid.UUID) bool {
	for _, m := range conv.Members {
		if m.UserID == userID && m.Role == models.RoleAdmin {
			return true
		}
	}
	return false
}
