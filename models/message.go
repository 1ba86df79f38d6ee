package models

import (
	"time"

	"github.com/google/uuid"
)

type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypeImage    MessageType = "image"
	MessageTypeDocument MessageType = "document"
	MessageTypeSystem   MessageType = "system"
	// MessageTypeDeleted is the one-way terminal state a message enters
	// on delete-for-everyone. It has no content rows.
	MessageTypeDeleted MessageType = "deleted"
)

type SystemEvent string

const (
	SystemEventGroupCreated  SystemEvent = "group-created"
	SystemEventMemberAdded   SystemEvent = "member-added"
	SystemEventMemberExited  SystemEvent = "member-exited"
	SystemEventMemberRemoved SystemEvent = "member-removed"
	SystemEventGroupRenamed  SystemEvent = "group-renamed"
)

// Message is the canonical persisted message. Exactly one of the
// content relations (Text, Images, Document, System) is populated,
// matching Type. Construction goes through the message factory, which
// is the only place the pairing is established.
type Message struct {
	ID             uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID uuid.UUID    `gorm:"type:uuid;not null;index" json:"conversation_id"`
	Conversation   Conversation `gorm:"foreignKey:ConversationID" json:"-"`
	SenderID       uuid.UUID    `gorm:"type:uuid;not null" json:"sender_id"`
	Sender         User         `gorm:"foreignKey:SenderID" json:"sender"`
	Type           MessageType  `gorm:"type:varchar(16);not null" json:"type"`
	IsDeleted      bool         `gorm:"not null;default:false" json:"is_deleted"`
	CreatedAt      time.Time    `gorm:"index" json:"created_at"`

	Text     *TextMessage     `gorm:"foreignKey:MessageID" json:"text,omitempty"`
	Images   []ImageMessage   `gorm:"foreignKey:MessageID" json:"images,omitempty"`
	Document *DocumentMessage `gorm:"foreignKey:MessageID" json:"document,omitempty"`
	System   *SystemMessage   `gorm:"foreignKey:MessageID" json:"system,omitempty"`

	Reactions []MessageReaction   `gorm:"foreignKey:MessageID" json:"reactions"`
	SeenBy    []MessageSeenStatus `gorm:"foreignKey:MessageID" json:"seen_by"`
}

// TextMessage holds the body of a text message.
type TextMessage struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	MessageID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"message_id"`
	Body      string    `gorm:"type:text;not null" json:"body"`
}

// ImageMessage links one uploaded image to its message. A message of
// type image owns between one and N of these.
type ImageMessage struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	MessageID uuid.UUID `gorm:"type:uuid;not null;index" json:"message_id"`
	MediaID   uuid.UUID `gorm:"type:uuid;not null" json:"media_id"`
	Media     Media     `gorm:"foreignKey:MediaID" json:"media"`
}

// DocumentMessage links the single document attachment to its message.
type DocumentMessage struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	MessageID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"message_id"`
	MediaID   uuid.UUID `gorm:"type:uuid;not null" json:"media_id"`
	Media     Media     `gorm:"foreignKey:MediaID" json:"media"`
}

// SystemMessage carries an enumerated event plus its rendered body,
// e.g. "Alice added Bob".
type SystemMessage struct {
	ID        uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	MessageID uuid.UUID   `gorm:"type:uuid;not null;uniqueIndex" json:"message_id"`
	Event     SystemEvent `gorm:"type:varchar(32);not null" json:"event"`
	Body      string      `gorm:"type:text;not null" json:"body"`
}

// DeletedMessage marks a message as hidden for one user
// (delete-for-me). The canonical message is untouched.
type DeletedMessage struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	MessageID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_delmsg_msg_user" json:"message_id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_delmsg_msg_user" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// SeenMemberIDs flattens the seen-status rows into member ids for
// broadcast payloads.
func (m *Message) SeenMemberIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(m.SeenBy))
	for _, s := range m.SeenBy {
		ids = append(ids, s.MemberID)
	}
	return ids
}

// MediaExternalIDs collects the storage ids of every attachment on the
// message, for cleanup on delete-for-everyone.
func (m *Message) MediaExternalIDs() []string {
	var ids []string
	for _, img := range m.Images {
		if img.Media.ExternalID != "" {
			ids = append(ids, img.Media.ExternalID)
		}
	}
	if m.Document != nil && m.Document.Media.ExternalID != "" {
		ids = append(ids, m.Document.Media.ExternalID)
	}
	return ids
}
