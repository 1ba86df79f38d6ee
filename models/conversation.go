package models

import (
	"time"

	"github.com/google/uuid"
)

type MemberRole string

const (
	RoleAdmin  MemberRole = "admin"
	RoleMember MemberRole = "member"
)

// Conversation groups messages between two users (private) or any
// number of users (group). A private conversation has exactly two
// members; a group has at least one.
type Conversation struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	IsGroup   bool      `gorm:"not null;default:false" json:"is_group"`
	Name      string    `json:"name,omitempty"`
	CreatedBy uuid.UUID `gorm:"type:uuid;not null" json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Members   []Member  `gorm:"foreignKey:ConversationID" json:"members"`
}

// Member ties a user to a conversation. The creator's admin membership
// is written once at creation time and is immutable afterwards.
type Member struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID uuid.UUID  `gorm:"type:uuid;not null;index;uniqueIndex:idx_member_conv_user" json:"conversation_id"`
	UserID         uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_member_conv_user" json:"user_id"`
	User           User       `gorm:"foreignKey:UserID" json:"user"`
	Role           MemberRole `gorm:"type:varchar(16);not null;default:'member'" json:"role"`
	CreatedAt      time.Time  `json:"created_at"`
}

// DeletedConversation marks a conversation as hidden for one user.
// New inbound activity removes the marker (restore-on-activity).
type DeletedConversation struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_delconv_conv_user" json:"conversation_id"`
	UserID         uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_delconv_conv_user" json:"user_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// OtherMember returns the single member that is not userID. Only
// meaningful for private conversations.
func (c *Conversation) OtherMember(userID uuid.UUID) *Member {
	for i := range c.Members {
		if c.Members[i].UserID != userID {
			return &c.Members[i]
		}
	}
	return nil
}

// HasMember reports whether userID belongs to the conversation.
func (c *Conversation) HasMember(userID uuid.UUID) bool {
	for i := range c.Members {
		if c.Members[i].UserID == userID {
			return true
		}
	}
	return false
}
