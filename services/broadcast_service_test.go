package services

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/techagentng/chatly/models"
)

func TestChannelNaming(t *testing.T) {
	convID := uuid.New()
	userID := uuid.New()

	assert.Equal(t, fmt.Sprintf("private-chat-%s-%s", convID, userID), PrivateChannel(convID, userID))
	assert.Equal(t, fmt.Sprintf("group-chat-%s-%s", convID, userID), GroupChannel(convID, userID))
}

func TestChannelsFor(t *testing.T) {
	alice := uuid.New()
	bob := uuid.New()
	carol := uuid.New()

	t.Run("private targets the other member only", func(t *testing.T) {
		conv := &models.Conversation{
			ID:      uuid.New(),
			IsGroup: false,
			Members: []models.Member{
				{ID: uuid.New(), UserID: alice},
				{ID: uuid.New(), UserID: bob},
			},
		}
		assert.Equal(t, []string{PrivateChannel(conv.ID, bob)}, ChannelsFor(conv, alice))
		assert.Equal(t, []string{PrivateChannel(conv.ID, alice)}, ChannelsFor(conv, bob))
	})

	t.Run("group excludes the sender", func(t *testing.T) {
		conv := &models.Conversation{
			ID:      uuid.New(),
			IsGroup: true,
			Members: []models.Member{
				{ID: uuid.New(), UserID: alice},
				{ID: uuid.New(), UserID: bob},
				{ID: uuid.New(), UserID: carol},
			},
		}
		channels := ChannelsFor(conv, alice)
		assert.ElementsMatch(t, []string{
			GroupChannel(conv.ID, bob),
			GroupChannel(conv.ID, carol),
		}, channels)
	})

	t.Run("group with nil sender covers everyone", func(t *testing.T) {
		conv := &models.Conversation{
			ID:      uuid.New(),
			IsGroup: true,
			Members: []models.Member{
				{ID: uuid.New(), UserID: alice},
				{ID: uuid.New(), UserID: bob},
			},
		}
		assert.Len(t, ChannelsFor(conv, uuid.Nil), 2)
	})

	t.Run("both sides derive the same channel", func(t *testing.T) {
		conv := &models.Conversation{
			ID:      uuid.New(),
			IsGroup: false,
			Members: []models.Member{
				{ID: uuid.New(), UserID: alice},
				{ID: uuid.New(), UserID: bob},
			},
		}
		// The channel alice publishes on is the one bob's socket
		// subscribes to, with no lookup table in between.
		assert.Equal(t, ChannelsFor(conv, alice)[0], PrivateChannel(conv.ID, bob))
	})
}
