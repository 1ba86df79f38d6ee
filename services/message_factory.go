package services

import (
	"context"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/techagentng/chatly/db"
	errs "github.com/techagentng/chatly/errors"
	"github.com/techagentng/chatly/models"
)

const (
	maxTextLength = 4096
	// Multi-image creates carry the heaviest I/O, so they get a wider
	// transactional budget than the default request deadline.
	imageCreateBudget = 60 * time.Second
)

type CreateMessageParams struct {
	ConversationID uuid.UUID
	SenderID       uuid.UUID
	IsGroup        bool
	Payload        models.MessagePayload
}

// MessageFactory is the only constructor of persisted messages. It
// owns the type/payload pairing: each payload variant produces exactly
// one content shape, so a mismatched message cannot be stored.
type MessageFactory interface {
	CreateMessage(ctx context.Context, params CreateMessageParams) (*models.Message, error)
}

type messageFactory struct {
	messageRepo db.MessageRepository
	uploader    AttachmentUploader
	validate    *validator.Validate
}

func NewMessageFactory(messageRepo db.MessageRepository, uploader AttachmentUploader) MessageFactory {
	return &messageFactory{
		messageRepo: messageRepo,
		uploader:    uploader,
		validate:    validator.New(),
	}
}

func (f *messageFactory) CreateMessage(ctx context.Context, params CreateMessageParams) (*models.Message, error) {
	msg := &models.Message{
		ID:             uuid.New(),
		ConversationID: params.ConversationID,
		SenderID:       params.SenderID,
	}

	switch payload := params.Payload.(type) {
	case models.TextPayload:
		if err := f.buildText(msg, payload); err != nil {
			return nil, err
		}
	case models.ImagePayload:
		if err := f.buildImages(ctx, msg, payload, params); err != nil {
			return nil, err
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, imageCreateBudget)
		defer cancel()
	case models.DocumentPayload:
		if err := f.buildDocument(ctx, msg, payload, params); err != nil {
			return nil, err
		}
	case models.SystemPayload:
		if err := f.buildSystem(msg, payload); err != nil {
			return nil, err
		}
	default:
		return nil, errs.InvalidPayload("unsupported message payload")
	}

	if err := f.messageRepo.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (f *messageFactory) buildText(msg *models.Message, payload models.TextPayload) error {
	if err := f.validate.Var(payload.Body, "required"); err != nil {
		return errs.ErrEmptyMessage
	}
	if len([]rune(payload.Body)) > maxTextLength {
		return errs.ErrMessageTooLong
	}
	msg.Type = models.MessageTypeText
	msg.Text = &models.TextMessage{ID: uuid.New(), MessageID: msg.ID, Body: payload.Body}
	return nil
}

// buildImages uploads every attachment concurrently and keeps the ones
// that succeeded. Failed uploads are dropped from the final set; the
// operation fails only when none survive. Bounded by the attachment
// count, not a worker pool.
func (f *messageFactory) buildImages(ctx context.Context, msg *models.Message, payload models.ImagePayload, params CreateMessageParams) error {
	if len(payload.Attachments) == 0 {
		return errs.ErrNoAttachments
	}

	type uploadOutcome struct {
		result *UploadResult
		err    error
	}

	var wg sync.WaitGroup
	outcomes := make(chan uploadOutcome, len(payload.Attachments))
	for _, attachment := range payload.Attachments {
		wg.Add(1)
		go func(attachment models.AttachmentInput) {
			defer wg.Done()
			result, err := f.uploader.UploadAttachment(ctx, UploadAttachmentParams{
				Attachment:     attachment,
				Kind:           AttachmentKindImage,
				UserID:         params.SenderID,
				ConversationID: params.ConversationID,
				IsGroup:        params.IsGroup,
			})
			outcomes <- uploadOutcome{result: result, err: err}
		}(attachment)
	}
	wg.Wait()
	close(outcomes)

	var images []models.ImageMessage
	for outcome := range outcomes {
		if outcome.err != nil {
			log.Warn().Err(outcome.err).
				Str("conversation_id", params.ConversationID.String()).
				Msg("dropping failed image upload")
			continue
		}
		images = append(images, models.ImageMessage{
			ID:        uuid.New(),
			MessageID: msg.ID,
			MediaID:   uuid.New(),
			Media:     mediaFromUpload(outcome.result, params.SenderID),
		})
	}
	if len(images) == 0 {
		return errs.ErrAllUploadsFailed
	}
	for i := range images {
		images[i].Media.ID = images[i].MediaID
	}

	msg.Type = models.MessageTypeImage
	msg.Images = images
	return nil
}

// buildDocument requires its single upload to succeed; there is no
// partial result for documents.
func (f *messageFactory) buildDocument(ctx context.Context, msg *models.Message, payload models.DocumentPayload, params CreateMessageParams) error {
	result, err := f.uploader.UploadAttachment(ctx, UploadAttachmentParams{
		Attachment:     payload.Attachment,
		Kind:           AttachmentKindDocument,
		UserID:         params.SenderID,
		ConversationID: params.ConversationID,
		IsGroup:        params.IsGroup,
	})
	if err != nil {
		return errs.Wrap(errs.InvalidPayload("document upload failed"), err)
	}

	mediaID := uuid.New()
	media := mediaFromUpload(result, params.SenderID)
	media.ID = mediaID

	msg.Type = models.MessageTypeDocument
	msg.Document = &models.DocumentMessage{
		ID:        uuid.New(),
		MessageID: msg.ID,
		MediaID:   mediaID,
		Media:     media,
	}
	return nil
}

func (f *messageFactory) buildSystem(msg *models.Message, payload models.SystemPayload) error {
	if payload.Event == "" || payload.Body == "" {
		return errs.InvalidPayload("system message requires an event and a body")
	}
	msg.Type = models.MessageTypeSystem
	msg.System = &models.SystemMessage{
		ID:        uuid.New(),
		MessageID: msg.ID,
		Event:     payload.Event,
		Body:      payload.Body,
	}
	return nil
}

func mediaFromUpload(result *UploadResult, uploadedBy uuid.UUID) models.Media {
	return models.Media{
		ExternalID:   result.ExternalID,
		URL:          result.URL,
		ThumbnailURL: result.ThumbnailURL,
		FileName:     result.FileName,
		FileType:     result.FileType,
		FileSize:     result.Size,
		Width:        result.Width,
		Height:       result.Height,
		UploadedBy:   uploadedBy,
	}
}
