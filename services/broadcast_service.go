package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/techagentng/chatly/config"
	"github.com/techagentng/chatly/models"
)

// Event names emitted by the messaging core, consumed by realtime
// subscribers.
const (
	EventNewMessage         = "new-message"
	EventUpdateMessage      = "update-message"
	EventSeenMessage        = "seen-message"
	EventCreateReaction     = "create-reaction"
	EventUpdateReaction     = "update-reaction"
	EventRemoveReaction     = "remove-reaction"
	EventUpdateConversation = "update-conversation"
	EventUpdateUnreadCount  = "update-conversation-unread-count"
	EventMemberExit         = "member-exit"
)

// PrivateChannel and GroupChannel derive a recipient's channel name
// purely from (conversation, receiver), so sender and receiver always
// agree on the channel without a lookup table.
func PrivateChannel(conversationID, receiverID uuid.UUID) string {
	return fmt.Sprintf("private-chat-%s-%s", conversationID, receiverID)
}

func GroupChannel(conversationID, userID uuid.UUID) string {
	return fmt.Sprintf("group-chat-%s-%s", conversationID, userID)
}

// ChannelsFor computes the fan-out set for a conversation: the single
// receiver channel for private chats, one channel per non-sender
// member for groups.
func ChannelsFor(conversation *models.Conversation, senderID uuid.UUID) []string {
	if !conversation.IsGroup {
		other := conversation.OtherMember(senderID)
		if other == nil {
			return nil
		}
		return []string{PrivateChannel(conversation.ID, other.UserID)}
	}

	channels := make([]string, 0, len(conversation.Members))
	for _, member := range conversation.Members {
		if member.UserID == senderID {
			continue
		}
		channels = append(channels, GroupChannel(conversation.ID, member.UserID))
	}
	return channels
}

// Broadcaster is the fire-and-forget notify port. Persistence has
// already succeeded by the time it is called, so implementations must
// never surface a failure to the caller.
type Broadcaster interface {
	Publish(ctx context.Context, channels []string, event string, payload interface{})
}

// Envelope is the wire shape published on every channel.
type Envelope struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
}

type redisBroadcaster struct {
	client *redis.Client
}

func NewRedisBroadcaster(conf *config.Config) (Broadcaster, *redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.RedisAddr,
		Password: conf.RedisPassword,
		DB:       conf.RedisDB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, nil, err
	}
	return &redisBroadcaster{client: client}, client, nil
}

// Publish sends the event to every channel. Failures are logged and
// swallowed: the authoritative write already happened and clients
// recover missed events through pagination.
func (b *redisBroadcaster) Publish(ctx context.Context, channels []string, event string, payload interface{}) {
	body, err := json.Marshal(Envelope{Event: event, Payload: payload})
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("failed to encode broadcast payload")
		return
	}
	for _, channel := range channels {
		if err := b.client.Publish(ctx, channel, body).Err(); err != nil {
			log.Warn().Err(err).Str("event", event).Str("channel", channel).Msg("broadcast publish failed")
		}
	}
}
