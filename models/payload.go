package models

// MessagePayload is the sealed input to the message factory. One
// variant exists per creatable message type, so a payload that does
// not match its message kind is unrepresentable.
type MessagePayload interface {
	MessageType() MessageType
}

// AttachmentInput is a client-supplied attachment before upload: a
// base64 data URL plus the original file name.
type AttachmentInput struct {
	DataURL string `json:"data_url" binding:"required"`
	Name    string `json:"name" binding:"required"`
}

type TextPayload struct {
	Body string `json:"body"`
}

type ImagePayload struct {
	Attachments []AttachmentInput `json:"attachments"`
}

type DocumentPayload struct {
	Attachment AttachmentInput `json:"attachment"`
}

type SystemPayload struct {
	Event SystemEvent `json:"event"`
	Body  string      `json:"body"`
}

func (TextPayload) MessageType() MessageType     { return MessageTypeText }
func (ImagePayload) MessageType() MessageType    { return MessageTypeImage }
func (DocumentPayload) MessageType() MessageType { return MessageTypeDocument }
func (SystemPayload) MessageType() MessageType   { return MessageTypeSystem }
