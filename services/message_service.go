package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/techagentng/chatly/db"
	errs "github.com/techagentng/chatly/errors"
	"github.com/techagentng/chatly/models"
)

// PrivateMessageResult reports a successful private send: the resolved
// receiver plus the persisted message.
type PrivateMessageResult struct {
	ReceiverID uuid.UUID       `json:"receiver_id"`
	Message    *models.Message `json:"message"`
}

// GroupMessageResult reports a successful group send with the fan-out
// recipient set (every member except the sender).
type GroupMessageResult struct {
	ReceiverIDs []uuid.UUID     `json:"receiver_ids"`
	Message     *models.Message `json:"message"`
}

type ReactionAction string

const (
	ReactionCreated ReactionAction = "created"
	ReactionUpdated ReactionAction = "updated"
	ReactionRemoved ReactionAction = "removed"
)

// ReactionChange is the outcome of ReactToMessage's three-way branch.
type ReactionChange struct {
	Action   ReactionAction          `json:"action"`
	Reaction *models.MessageReaction `json:"reaction,omitempty"`
}

// MessageService orchestrates the messaging core: relationship checks,
// message construction, conversation recency, and realtime fan-out.
// All business failures come back as tagged errors, never panics.
type MessageService interface {
	SendPrivateMessage(ctx context.Context, conversationID, senderID uuid.UUID, payload models.MessagePayload) (*PrivateMessageResult, error)
	SendGroupMessage(ctx context.Context, conversationID, senderID uuid.UUID, payload models.MessagePayload) (*GroupMessageResult, error)
	ListMessages(conversationID, userID uuid.UUID, page, pageSize int) ([]models.Message, models.Pagination, error)
	DeleteMessage(ctx context.Context, conversationID, messageID, userID uuid.UUID, deleteForEveryone bool) error
	MarkSeen(ctx context.Context, conversationID uuid.UUID, messageIDs []uuid.UUID, userID uuid.UUID) ([]models.SeenUpdate, error)
	ReactToMessage(ctx context.Context, conversationID, messageID, userID uuid.UUID, emoji string) (*ReactionChange, error)
	ToggleStar(conversationID, messageID, userID uuid.UUID) (bool, error)
}

type messageService struct {
	messageRepo    db.MessageRepository
	convRepo       db.ConversationRepository
	friendshipRepo db.FriendshipRepository
	factory        MessageFactory
	broadcaster    Broadcaster
	uploader       AttachmentUploader
	notifier       PushNotifier
}

func NewMessageService(
	messageRepo db.MessageRepository,
	convRepo db.ConversationRepository,
	friendshipRepo db.FriendshipRepository,
	factory MessageFactory,
	broadcaster Broadcaster,
	uploader AttachmentUploader,
	notifier PushNotifier,
) MessageService {
	return &messageService{
		messageRepo:    messageRepo,
		convRepo:       convRepo,
		friendshipRepo: friendshipRepo,
		factory:        factory,
		broadcaster:    broadcaster,
		uploader:       uploader,
		notifier:       notifier,
	}
}

// SendPrivateMessage resolves the other member as receiver, enforces
// the relationship gate (not blocked AND friends), persists through
// the factory, then touches recency, restores the conversation for a
// receiver who had deleted it, and fans out. Broadcast runs after the
// commit and cannot fail the operation.
func (s *messageService) SendPrivateMessage(ctx context.Context, conversationID, senderID uuid.UUID, payload models.MessagePayload) (*PrivateMessageResult, error) {
	conv, err := s.convRepo.GetConversation(conversationID)
	if err != nil {
		return nil, err
	}
	if conv.IsGroup {
		return nil, errs.ErrConversationNotPrivate
	}
	if !conv.HasMember(senderID) {
		return nil, errs.ErrConversationNotFound
	}

	receiver := conv.OtherMember(senderID)
	if receiver == nil {
		return nil, errs.ErrReceiverNotFound
	}

	blocked, err := s.friendshipRepo.IsBlocked(receiver.UserID, senderID)
	if err != nil {
		return nil, errs.Wrap(errs.ErrInternalServerError, err)
	}
	if blocked {
		return nil, errs.ErrSenderBlocked
	}

	friends, err := s.friendshipRepo.AreFriends(senderID, receiver.UserID)
	if err != nil {
		return nil, errs.Wrap(errs.ErrInternalServerError, err)
	}
	if !friends {
		return nil, errs.ErrFriendshipNotFound
	}

	msg, err := s.factory.CreateMessage(ctx, CreateMessageParams{
		ConversationID: conversationID,
		SenderID:       senderID,
		IsGroup:        false,
		Payload:        payload,
	})
	if err != nil {
		return nil, err
	}

	s.afterSend(ctx, conv, senderID, msg, []uuid.UUID{receiver.UserID})

	s.notifier.Notify(ctx, receiver.User.DeviceToken, "New message", previewOf(msg))

	return &PrivateMessageResult{ReceiverID: receiver.UserID, Message: msg}, nil
}

// SendGroupMessage delivers to every member except the sender.
func (s *messageService) SendGroupMessage(ctx context.Context, conversationID, senderID uuid.UUID, payload models.MessagePayload) (*GroupMessageResult, error) {
	conv, err := s.convRepo.GetConversation(conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.IsGroup {
		return nil, errs.ErrConversationNotGroup
	}
	if !conv.HasMember(senderID) {
		return nil, errs.ErrNotGroupMember
	}

	msg, err := s.factory.CreateMessage(ctx, CreateMessageParams{
		ConversationID: conversationID,
		SenderID:       senderID,
		IsGroup:        true,
		Payload:        payload,
	})
	if err != nil {
		return nil, err
	}

	receiverIDs := make([]uuid.UUID, 0, len(conv.Members))
	for _, member := range conv.Members {
		if member.UserID == senderID {
			continue
		}
		receiverIDs = append(receiverIDs, member.UserID)
		s.notifier.Notify(ctx, member.User.DeviceToken, conv.Name, previewOf(msg))
	}

	s.afterSend(ctx, conv, senderID, msg, receiverIDs)

	return &GroupMessageResult{ReceiverIDs: receiverIDs, Message: msg}, nil
}

// afterSend runs the post-commit steps shared by both send paths:
// recency touch, restore-on-activity for every recipient, and the
// best-effort broadcasts.
func (s *messageService) afterSend(ctx context.Context, conv *models.Conversation, senderID uuid.UUID, msg *models.Message, receiverIDs []uuid.UUID) {
	if err := s.convRepo.TouchLastActivity(conv.ID); err != nil {
		logSwallowed(err, "failed to touch conversation recency")
	}
	if err := s.convRepo.RestoreForUsers(conv.ID, receiverIDs); err != nil {
		logSwallowed(err, "failed to restore conversation for recipients")
	}

	channels := ChannelsFor(conv, senderID)
	s.broadcaster.Publish(ctx, channels, EventNewMessage, msg)
	s.broadcaster.Publish(ctx, channels, EventUpdateConversation, conv)
	s.broadcaster.Publish(ctx, channels, EventUpdateUnreadCount, map[string]interface{}{
		"conversation_id": conv.ID,
	})
}

func (s *messageService) ListMessages(conversationID, userID uuid.UUID, page, pageSize int) ([]models.Message, models.Pagination, error) {
	conv, err := s.convRepo.GetConversation(conversationID)
	if err != nil {
		return nil, models.Pagination{}, err
	}
	if !conv.HasMember(userID) {
		return nil, models.Pagination{}, errs.ErrConversationNotFound
	}
	return s.messageRepo.ListMessages(conversationID, userID, page, pageSize)
}

// DeleteMessage routes to the requested delete mode. Delete-for-
// everyone purges storage objects inside the store transaction and
// broadcasts the terminal message state; delete-for-me is invisible to
// other members and broadcasts nothing.
func (s *messageService) DeleteMessage(ctx context.Context, conversationID, messageID, userID uuid.UUID, deleteForEveryone bool) error {
	if !deleteForEveryone {
		return s.messageRepo.DeleteForMe(conversationID, messageID, userID)
	}

	purge := func(externalIDs []string) error {
		for _, id := range externalIDs {
			if err := s.uploader.DeleteAttachment(ctx, id); err != nil {
				return err
			}
		}
		return nil
	}

	msg, err := s.messageRepo.DeleteForEveryone(conversationID, messageID, userID, purge)
	if err != nil {
		return err
	}

	conv, err := s.convRepo.GetConversation(conversationID)
	if err != nil {
		logSwallowed(err, "failed to load conversation for delete broadcast")
		return nil
	}
	s.broadcaster.Publish(ctx, ChannelsFor(conv, userID), EventUpdateMessage, msg)
	return nil
}

// MarkSeen upserts one seen row per reported message for the caller's
// membership, all-or-nothing, and broadcasts the aggregated delta.
func (s *messageService) MarkSeen(ctx context.Context, conversationID uuid.UUID, messageIDs []uuid.UUID, userID uuid.UUID) ([]models.SeenUpdate, error) {
	conv, err := s.convRepo.GetConversation(conversationID)
	if err != nil {
		return nil, err
	}
	member := memberOf(conv, userID)
	if member == nil {
		return nil, errs.ErrMemberNotFound
	}

	updates, err := s.messageRepo.UpsertSeenStatus(conversationID, messageIDs, member.ID)
	if err != nil {
		return nil, err
	}

	s.broadcaster.Publish(ctx, ChannelsFor(conv, userID), EventSeenMessage, updates)
	return updates, nil
}

// ReactToMessage applies the three-way reaction branch: no existing
// reaction creates one, a different emoji updates in place, and the
// identical emoji removes it (the toggle lives here so every client
// gets the same behavior).
func (s *messageService) ReactToMessage(ctx context.Context, conversationID, messageID, userID uuid.UUID, emoji string) (*ReactionChange, error) {
	if emoji == "" {
		return nil, errs.InvalidPayload("emoji is required")
	}

	conv, err := s.convRepo.GetConversation(conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasMember(userID) {
		return nil, errs.ErrConversationNotFound
	}
	if _, err := s.messageRepo.GetMessage(conversationID, messageID); err != nil {
		return nil, err
	}

	existing, err := s.messageRepo.GetReaction(messageID, userID)
	if err != nil {
		return nil, errs.Wrap(errs.ErrInternalServerError, err)
	}

	channels := ChannelsFor(conv, userID)

	switch {
	case existing == nil:
		reaction := &models.MessageReaction{
			ID:        uuid.New(),
			MessageID: messageID,
			UserID:    userID,
			Emoji:     emoji,
		}
		if err := s.messageRepo.CreateReaction(reaction); err != nil {
			return nil, errs.Wrap(errs.ErrInternalServerError, err)
		}
		s.broadcaster.Publish(ctx, channels, EventCreateReaction, reaction)
		return &ReactionChange{Action: ReactionCreated, Reaction: reaction}, nil

	case existing.Emoji != emoji:
		updated, err := s.messageRepo.UpdateReaction(existing.ID, emoji)
		if err != nil {
			return nil, errs.Wrap(errs.ErrInternalServerError, err)
		}
		s.broadcaster.Publish(ctx, channels, EventUpdateReaction, updated)
		return &ReactionChange{Action: ReactionUpdated, Reaction: updated}, nil

	default:
		if err := s.messageRepo.DeleteReaction(existing.ID); err != nil {
			return nil, errs.Wrap(errs.ErrInternalServerError, err)
		}
		s.broadcaster.Publish(ctx, channels, EventRemoveReaction, existing)
		return &ReactionChange{Action: ReactionRemoved}, nil
	}
}

func (s *messageService) ToggleStar(conversationID, messageID, userID uuid.UUID) (bool, error) {
	conv, err := s.convRepo.GetConversation(conversationID)
	if err != nil {
		return false, err
	}
	if !conv.HasMember(userID) {
		return false, errs.ErrConversationNotFound
	}
	if _, err := s.messageRepo.GetMessage(conversationID, messageID); err != nil {
		return false, err
	}
	return s.messageRepo.ToggleStar(userID, messageID)
}

// logSwallowed records a post-commit failure that must not alter the
// operation's result.
func logSwallowed(err error, msg string) {
	log.Warn().Err(err).Msg(msg)
}

func memberOf(conv *models.Conversation, userID uuid.UUID) *models.Member {
	for i := range conv.Members {
		if conv.Members[i].UserID == userID {
			return &conv.Members[i]
		}
	}
	return nil
}

func previewOf(msg *models.Message) string {
	switch msg.Type {
	case models.MessageTypeText:
		if msg.Text != nil {
			return msg.Text.Body
		}
	case models.MessageTypeImage:
		return "Sent a photo"
	case models.MessageTypeDocument:
		return "Sent a document"
	case models.MessageTypeSystem:
		if msg.System != nil {
			return msg.System.Body
		}
	}
	return "New message"
}
