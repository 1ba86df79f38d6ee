package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errs "github.com/techagentng/chatly/errors"
	"github.com/techagentng/chatly/models"
)

func newConversationService(f *fixture) ConversationService {
	return NewConversationService(f.convRepo, f.friendRepo, f.factory, f.broadcaster)
}

func TestStartPrivateConversation(t *testing.T) {
	ctx := context.Background()

	t.Run("self target rejected", func(t *testing.T) {
		f := newFixture(t)
		svc := newConversationService(f)
		alice := createUser(t, f.gdb, "alice")
		_, err := svc.StartPrivateConversation(ctx, alice.ID, alice.ID)
		assert.ErrorIs(t, err, errs.ErrSelfTarget)
	})

	t.Run("requires friendship", func(t *testing.T) {
		f := newFixture(t)
		svc := newConversationService(f)
		alice := createUser(t, f.gdb, "alice")
		bob := createUser(t, f.gdb, "bob")
		_, err := svc.StartPrivateConversation(ctx, alice.ID, bob.ID)
		assert.ErrorIs(t, err, errs.ErrFriendshipNotFound)
	})

	t.Run("blocked creator rejected", func(t *testing.T) {
		f := newFixture(t)
		svc := newConversationService(f)
		alice := createUser(t, f.gdb, "alice")
		bob := createUser(t, f.gdb, "bob")
		makeFriends(t, f.gdb, alice, bob)
		blockUser(t, f.gdb, bob, alice)
		_, err := svc.StartPrivateConversation(ctx, alice.ID, bob.ID)
		assert.ErrorIs(t, err, errs.ErrSenderBlocked)
	})

	t.Run("creates once then reuses", func(t *testing.T) {
		f := newFixture(t)
		svc := newConversationService(f)
		alice := createUser(t, f.gdb, "alice")
		bob := createUser(t, f.gdb, "bob")
		makeFriends(t, f.gdb, alice, bob)

		first, err := svc.StartPrivateConversation(ctx, alice.ID, bob.ID)
		require.NoError(t, err)
		assert.False(t, first.IsGroup)

		second, err := svc.StartPrivateConversation(ctx, bob.ID, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
	})
}

func TestCreateGroup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := newConversationService(f)
	alice := createUser(t, f.gdb, "alice")
	bob := createUser(t, f.gdb, "bob")

	_, err := svc.CreateGroup(ctx, alice.ID, "", []uuid.UUID{bob.ID})
	require.Error(t, err)

	conv, err := svc.CreateGroup(ctx, alice.ID, "book club", []uuid.UUID{bob.ID})
	require.NoError(t, err)
	assert.True(t, conv.IsGroup)

	// Creation drops an announcement into the new conversation.
	var system models.SystemMessage
	require.NoError(t, f.gdb.DB.
		Joins("JOIN messages ON messages.id = system_messages.message_id").
		Where("messages.conversation_id = ?", conv.ID).
		First(&system).Error)
	assert.Equal(t, models.SystemEventGroupCreated, system.Event)
	assert.Contains(t, system.Body, "book club")

	assert.Len(t, f.broadcaster.named(EventUpdateConversation), 1)
}

func TestDeleteConversation(t *testing.T) {
	f := newFixture(t)
	svc := newConversationService(f)
	ctx := context.Background()
	alice := createUser(t, f.gdb, "alice")
	bob := createUser(t, f.gdb, "bob")

	t.Run("private soft deletes for the caller only", func(t *testing.T) {
		conv, err := f.convRepo.CreatePrivateConversation(alice.ID, bob.ID)
		require.NoError(t, err)

		require.NoError(t, svc.DeleteConversation(conv.ID, bob.ID))

		// Still there for alice, marker row for bob.
		_, err = f.convRepo.GetConversation(conv.ID)
		require.NoError(t, err)
		var markers int64
		require.NoError(t, f.gdb.DB.Model(&models.DeletedConversation{}).
			Where("conversation_id = ? AND user_id = ?", conv.ID, bob.ID).Count(&markers).Error)
		assert.Equal(t, int64(1), markers)
	})

	t.Run("sole creator hard deletes the group", func(t *testing.T) {
		conv, err := svc.CreateGroup(ctx, alice.ID, "temp", []uuid.UUID{bob.ID})
		require.NoError(t, err)
		require.NoError(t, svc.ExitGroup(ctx, conv.ID, bob.ID))

		require.NoError(t, svc.DeleteConversation(conv.ID, alice.ID))
		_, err = f.convRepo.GetConversation(conv.ID)
		assert.ErrorIs(t, err, errs.ErrConversationNotFound)
	})

	t.Run("group with other members soft deletes", func(t *testing.T) {
		conv, err := svc.CreateGroup(ctx, alice.ID, "busy", []uuid.UUID{bob.ID})
		require.NoError(t, err)

		require.NoError(t, svc.DeleteConversation(conv.ID, alice.ID))
		_, err = f.convRepo.GetConversation(conv.ID)
		require.NoError(t, err)
	})
}

func TestGroupMembershipFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := newConversationService(f)
	alice := createUser(t, f.gdb, "alice")
	bob := createUser(t, f.gdb, "bob")
	carol := createUser(t, f.gdb, "carol")

	conv, err := svc.CreateGroup(ctx, alice.ID, "hiking", []uuid.UUID{bob.ID})
	require.NoError(t, err)

	t.Run("add announces the new member", func(t *testing.T) {
		member, err := svc.AddMember(ctx, conv.ID, alice.ID, carol.ID)
		require.NoError(t, err)
		assert.Equal(t, carol.ID, member.UserID)

		var count int64
		require.NoError(t, f.gdb.DB.Model(&models.SystemMessage{}).
			Where("event = ?", models.SystemEventMemberAdded).Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})

	t.Run("exit reaches the departed member too", func(t *testing.T) {
		require.NoError(t, svc.ExitGroup(ctx, conv.ID, carol.ID))

		calls := f.broadcaster.named(EventMemberExit)
		require.Len(t, calls, 1)
		assert.Contains(t, calls[0].Channels, GroupChannel(conv.ID, carol.ID))

		got, err := f.convRepo.GetConversation(conv.ID)
		require.NoError(t, err)
		assert.False(t, got.HasMember(carol.ID))
	})

	t.Run("remove announces the removal", func(t *testing.T) {
		require.NoError(t, svc.RemoveMember(ctx, conv.ID, alice.ID, bob.ID))

		var system models.SystemMessage
		require.NoError(t, f.gdb.DB.
			Where("event = ?", models.SystemEventMemberRemoved).
			First(&system).Error)
		assert.Contains(t, system.Body, "bob")
	})

	t.Run("role validation", func(t *testing.T) {
		_, err := svc.ChangeMemberRole(conv.ID, alice.ID, uuid.New(), models.MemberRole("owner"))
		require.Error(t, err)
	})
}

func TestAcceptFriendRequestOpensConversation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	friends := NewFriendshipService(f.friendRepo, f.convRepo, f.broadcaster)
	alice := createUser(t, f.gdb, "alice")
	bob := createUser(t, f.gdb, "bob")

	request, err := friends.SendFriendRequest(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	conv, err := friends.AcceptFriendRequest(ctx, request.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, conv.IsGroup)
	assert.True(t, conv.HasMember(alice.ID))
	assert.True(t, conv.HasMember(bob.ID))

	friendsNow, err := f.friendRepo.AreFriends(alice.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, friendsNow)

	assert.Len(t, f.broadcaster.named(EventUpdateConversation), 1)

	// The pair can now message each other right away.
	_, err = f.messages.SendPrivateMessage(ctx, conv.ID, alice.ID, models.TextPayload{Body: "we're friends now"})
	require.NoError(t, err)
}
