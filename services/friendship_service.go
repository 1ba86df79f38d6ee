package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/techagentng/chatly/db"
	"github.com/techagentng/chatly/models"
)

// FriendshipService exposes the relationship flow that gates private
// messaging. Accepting a request also opens the private conversation
// so the first message needs no extra round trip.
type FriendshipService interface {
	SendFriendRequest(ctx context.Context, senderID, receiverID uuid.UUID) (*models.FriendRequest, error)
	AcceptFriendRequest(ctx context.Context, requestID, receiverID uuid.UUID) (*models.Conversation, error)
}

type friendshipService struct {
	friendshipRepo db.FriendshipRepository
	convRepo       db.ConversationRepository
	broadcaster    Broadcaster
}

func NewFriendshipService(friendshipRepo db.FriendshipRepository, convRepo db.ConversationRepository, broadcaster Broadcaster) FriendshipService {
	return &friendshipService{
		friendshipRepo: friendshipRepo,
		convRepo:       convRepo,
		broadcaster:    broadcaster,
	}
}

func (s *friendshipService) SendFriendRequest(ctx context.Context, senderID, receiverID uuid.UUID) (*models.FriendRequest, error) {
	return s.friendshipRepo.CreateFriendRequest(senderID, receiverID)
}

func (s *friendshipService) AcceptFriendRequest(ctx context.Context, requestID, receiverID uuid.UUID) (*models.Conversation, error) {
	request, err := s.friendshipRepo.AcceptFriendRequest(requestID, receiverID)
	if err != nil {
		return nil, err
	}

	conv, err := s.convRepo.CreatePrivateConversation(request.SenderID, request.ReceiverID)
	if err != nil {
		return nil, err
	}

	s.broadcaster.Publish(ctx, ChannelsFor(conv, receiverID), EventUpdateConversation, conv)
	return conv, nil
}
