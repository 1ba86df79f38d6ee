package models

import (
	"time"

	"github.com/google/uuid"
)

type FriendRequestStatus string

const (
	FriendRequestPending  FriendRequestStatus = "pending"
	FriendRequestAccepted FriendRequestStatus = "accepted"
	FriendRequestRejected FriendRequestStatus = "rejected"
)

// FriendRequest is the invitation that precedes a Friendship.
type FriendRequest struct {
	ID         uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	SenderID   uuid.UUID           `gorm:"type:uuid;not null;index" json:"sender_id"`
	ReceiverID uuid.UUID           `gorm:"type:uuid;not null;index" json:"receiver_id"`
	Status     FriendRequestStatus `gorm:"type:varchar(16);not null;default:'pending'" json:"status"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// Friendship is stored once per accepted pair, in both directions, so
// the AreFriends lookup is a single indexed query.
type Friendship struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_friendship_pair" json:"user_id"`
	FriendID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_friendship_pair" json:"friend_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Block prevents BlockedID from sending to BlockerID. Read-only input
// to the message service.
type Block struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	BlockerID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_block_pair" json:"blocker_id"`
	BlockedID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_block_pair" json:"blocked_id"`
	CreatedAt time.Time `json:"created_at"`
}
