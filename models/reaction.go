package models

import (
	"time"

	"github.com/google/uuid"
)

// MessageReaction is one user's emoji on one message. The service
// layer guarantees at most one row per (message, user) by looking up
// before creating; the store offers symmetric create/update/delete.
type MessageReaction struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	MessageID uuid.UUID `gorm:"type:uuid;not null;index:idx_reaction_message" json:"message_id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null" json:"user_id"`
	Emoji     string    `gorm:"type:varchar(64);not null" json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MessageSeenStatus records that a member has viewed a message. The
// composite primary key makes duplicate inserts impossible; writes go
// through an upsert.
type MessageSeenStatus struct {
	MessageID uuid.UUID `gorm:"type:uuid;primaryKey" json:"message_id"`
	MemberID  uuid.UUID `gorm:"type:uuid;primaryKey" json:"member_id"`
	SeenAt    time.Time `json:"seen_at"`
}

// SeenUpdate is the per-message delta broadcast after a batch of seen
// upserts: which members have now seen the message.
type SeenUpdate struct {
	MessageID       uuid.UUID   `json:"message_id"`
	SeenByMemberIDs []uuid.UUID `json:"seen_by_member_ids"`
}

// StarredMessage is a per-user bookmark. Rows are removed when the
// underlying message is deleted in either mode.
type StarredMessage struct {
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	MessageID uuid.UUID `gorm:"type:uuid;primaryKey" json:"message_id"`
	CreatedAt time.Time `json:"created_at"`
}
