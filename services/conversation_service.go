package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/techagentng/chatly/db"
	errs "github.com/techagentng/chatly/errors"
	"github.com/techagentng/chatly/models"
)

// ConversationService owns conversation and group lifecycle: creation,
// membership, roles, and the two deletion modes.
type ConversationService interface {
	StartPrivateConversation(ctx context.Context, creatorID, otherID uuid.UUID) (*models.Conversation, error)
	CreateGroup(ctx context.Context, creatorID uuid.UUID, name string, memberIDs []uuid.UUID) (*models.Conversation, error)
	GetConversation(conversationID, userID uuid.UUID) (*models.Conversation, error)
	DeleteConversation(conversationID, userID uuid.UUID) error
	AddMember(ctx context.Context, conversationID, requesterID, userID uuid.UUID) (*models.Member, error)
	RemoveMember(ctx context.Context, conversationID, requesterID, userID uuid.UUID) error
	ExitGroup(ctx context.Context, conversationID, userID uuid.UUID) error
	ChangeMemberRole(conversationID, requesterID, memberID uuid.UUID, role models.MemberRole) (*models.Member, error)
}

type conversationService struct {
	convRepo       db.ConversationRepository
	friendshipRepo db.FriendshipRepository
	factory        MessageFactory
	broadcaster    Broadcaster
}

func NewConversationService(
	convRepo db.ConversationRepository,
	friendshipRepo db.FriendshipRepository,
	factory MessageFactory,
	broadcaster Broadcaster,
) ConversationService {
	return &conversationService{
		convRepo:       convRepo,
		friendshipRepo: friendshipRepo,
		factory:        factory,
		broadcaster:    broadcaster,
	}
}

// StartPrivateConversation returns the existing private conversation
// between the two users or creates one on first contact. The same
// relationship gate as message sending applies.
func (s *conversationService) StartPrivateConversation(ctx context.Context, creatorID, otherID uuid.UUID) (*models.Conversation, error) {
	if creatorID == otherID {
		return nil, errs.ErrSelfTarget
	}

	blocked, err := s.friendshipRepo.IsBlocked(otherID, creatorID)
	if err != nil {
		return nil, errs.Wrap(errs.ErrInternalServerError, err)
	}
	if blocked {
		return nil, errs.ErrSenderBlocked
	}
	friends, err := s.friendshipRepo.AreFriends(creatorID, otherID)
	if err != nil {
		return nil, errs.Wrap(errs.ErrInternalServerError, err)
	}
	if !friends {
		return nil, errs.ErrFriendshipNotFound
	}

	existing, err := s.convRepo.FindPrivateConversation(creatorID, otherID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, errs.ErrConversationNotFound) {
		return nil, err
	}

	return s.convRepo.CreatePrivateConversation(creatorID, otherID)
}

// CreateGroup creates the group and drops a system message announcing
// it into the new conversation.
func (s *conversationService) CreateGroup(ctx context.Context, creatorID uuid.UUID, name string, memberIDs []uuid.UUID) (*models.Conversation, error) {
	if name == "" {
		return nil, errs.InvalidPayload("group name is required")
	}

	conv, err := s.convRepo.CreateGroupConversation(creatorID, name, memberIDs)
	if err != nil {
		return nil, err
	}

	creatorName := creatorID.String()
	if member := memberOf(conv, creatorID); member != nil && member.User.Username != "" {
		creatorName = member.User.Username
	}
	if _, err := s.factory.CreateMessage(ctx, CreateMessageParams{
		ConversationID: conv.ID,
		SenderID:       creatorID,
		IsGroup:        true,
		Payload: models.SystemPayload{
			Event: models.SystemEventGroupCreated,
			Body:  fmt.Sprintf("%s created the group %q", creatorName, name),
		},
	}); err != nil {
		logSwallowed(err, "failed to create group-created system message")
	}

	s.broadcaster.Publish(ctx, ChannelsFor(conv, creatorID), EventUpdateConversation, conv)
	return conv, nil
}

func (s *conversationService) GetConversation(conversationID, userID uuid.UUID) (*models.Conversation, error) {
	conv, err := s.convRepo.GetConversation(conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasMember(userID) {
		return nil, errs.ErrConversationNotFound
	}
	return conv, nil
}

// DeleteConversation soft-deletes for the caller, except when the
// caller is a group's sole remaining member and its creator, in which
// case the group is destroyed for good.
func (s *conversationService) DeleteConversation(conversationID, userID uuid.UUID) error {
	conv, err := s.convRepo.GetConversation(conversationID)
	if err != nil {
		return err
	}
	if !conv.HasMember(userID) {
		return errs.ErrConversationNotFound
	}

	if conv.IsGroup && len(conv.Members) == 1 && conv.CreatedBy == userID {
		return s.convRepo.HardDeleteGroup(conversationID, userID)
	}
	return s.convRepo.SoftDeleteForUser(conversationID, userID)
}

func (s *conversationService) AddMember(ctx context.Context, conversationID, requesterID, userID uuid.UUID) (*models.Member, error) {
	member, err := s.convRepo.AddMember(conversationID, requesterID, userID)
	if err != nil {
		return nil, err
	}

	conv, err := s.convRepo.GetConversation(conversationID)
	if err != nil {
		logSwallowed(err, "failed to load conversation after member add")
		return member, nil
	}
	if _, err := s.factory.CreateMessage(ctx, CreateMessageParams{
		ConversationID: conversationID,
		SenderID:       requesterID,
		IsGroup:        true,
		Payload: models.SystemPayload{
			Event: models.SystemEventMemberAdded,
			Body:  fmt.Sprintf("%s joined the group", member.User.Username),
		},
	}); err != nil {
		logSwallowed(err, "failed to create member-added system message")
	}
	s.broadcaster.Publish(ctx, ChannelsFor(conv, requesterID), EventUpdateConversation, conv)
	return member, nil
}

func (s *conversationService) RemoveMember(ctx context.Context, conversationID, requesterID, userID uuid.UUID) error {
	conv, err := s.convRepo.GetConversation(conversationID)
	if err != nil {
		return err
	}
	if err := s.convRepo.RemoveMember(conversationID, requesterID, userID); err != nil {
		return err
	}
	s.announceDeparture(ctx, conv, requesterID, userID, models.SystemEventMemberRemoved)
	return nil
}

func (s *conversationService) ExitGroup(ctx context.Context, conversationID, userID uuid.UUID) error {
	conv, err := s.convRepo.GetConversation(conversationID)
	if err != nil {
		return err
	}
	if err := s.convRepo.ExitGroup(conversationID, userID); err != nil {
		return err
	}
	s.announceDeparture(ctx, conv, userID, userID, models.SystemEventMemberExited)
	return nil
}

// announceDeparture broadcasts member-exit to the channels of the
// membership as it was before the removal, so the departed member's
// clients learn about it too.
func (s *conversationService) announceDeparture(ctx context.Context, conv *models.Conversation, actorID, departedID uuid.UUID, event models.SystemEvent) {
	departedName := departedID.String()
	if member := memberOf(conv, departedID); member != nil && member.User.Username != "" {
		departedName = member.User.Username
	}
	body := fmt.Sprintf("%s left the group", departedName)
	if event == models.SystemEventMemberRemoved {
		body = fmt.Sprintf("%s was removed from the group", departedName)
	}

	if _, err := s.factory.CreateMessage(ctx, CreateMessageParams{
		ConversationID: conv.ID,
		SenderID:       actorID,
		IsGroup:        true,
		Payload:        models.SystemPayload{Event: event, Body: body},
	}); err != nil {
		logSwallowed(err, "failed to create departure system message")
	}

	s.broadcaster.Publish(ctx, ChannelsFor(conv, uuid.Nil), EventMemberExit, map[string]interface{}{
		"conversation_id": conv.ID,
		"user_id":         departedID,
	})
}

func (s *conversationService) ChangeMemberRole(conversationID, requesterID, memberID uuid.UUID, role models.MemberRole) (*models.Member, error) {
	if role != models.RoleAdmin && role != models.RoleMember {
		return nil, errs.InvalidPayload("unknown member role")
	}
	return s.convRepo.UpdateMemberRole(conversationID, requesterID, memberID, role)
}
