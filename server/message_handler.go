package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	errs "github.com/techagentng/chatly/errors"
	"github.com/techagentng/chatly/models"
	"github.com/techagentng/chatly/server/response"
)

// sendMessageRequest carries one of the client-creatable payloads.
// System messages are emitted internally and cannot be posted.
type sendMessageRequest struct {
	Type        string                   `json:"type" binding:"required,oneof=text image document"`
	Body        string                   `json:"body"`
	Attachments []models.AttachmentInput `json:"attachments"`
	Attachment  *models.AttachmentInput  `json:"attachment"`
}

func (r sendMessageRequest) payload() (models.MessagePayload, error) {
	switch r.Type {
	case "text":
		return models.TextPayload{Body: r.Body}, nil
	case "image":
		if len(r.Attachments) == 0 {
			return nil, errs.ErrNoAttachments
		}
		return models.ImagePayload{Attachments: r.Attachments}, nil
	case "document":
		if r.Attachment == nil {
			return nil, errs.ErrNoAttachments
		}
		return models.DocumentPayload{Attachment: *r.Attachment}, nil
	}
	return nil, errs.InvalidPayload("unknown message type")
}

func (s *Server) handleSendMessage() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			respondAndAbort(c, "", http.StatusUnauthorized, nil, errs.ErrUnauthorized)
			return
		}
		conversationID, err := uuid.Parse(c.Param("conversationID"))
		if err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.ErrBadRequest)
			return
		}

		var req sendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.ErrBadRequest)
			return
		}
		payload, err := req.payload()
		if err != nil {
			respondError(c, err)
			return
		}

		conv, err := s.ConversationService.GetConversation(conversationID, userID)
		if err != nil {
			respondError(c, err)
			return
		}

		if conv.IsGroup {
			result, err := s.MessageService.SendGroupMessage(c.Request.Context(), conversationID, userID, payload)
			if err != nil {
				respondError(c, err)
				return
			}
			response.JSON(c, "Message sent successfully", http.StatusCreated, result, nil)
			return
		}

		result, err := s.MessageService.SendPrivateMessage(c.Request.Context(), conversationID, userID, payload)
		if err != nil {
			respondError(c, err)
			return
		}
		response.JSON(c, "Message sent successfully", http.StatusCreated, result, nil)
	}
}

func (s *Server) handleListMessages() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			respondAndAbort(c, "", http.StatusUnauthorized, nil, errs.ErrUnauthorized)
			return
		}
		conversationID, err := uuid.Parse(c.Param("conversationID"))
		if err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.ErrBadRequest)
			return
		}

		page := queryInt(c, "page", 1)
		pageSize := queryInt(c, "page_size", models.DefaultPageSize)

		messages, pagination, err := s.MessageService.ListMessages(conversationID, userID, page, pageSize)
		if err != nil {
			respondError(c, err)
			return
		}
		response.JSON(c, "Messages retrieved successfully", http.StatusOK, gin.H{
			"messages":   messages,
			"pagination": pagination,
		}, nil)
	}
}

type deleteMessageRequest struct {
	DeleteForEveryone bool `json:"delete_for_everyone"`
}

func (s *Server) handleDeleteMessage() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			respondAndAbort(c, "", http.StatusUnauthorized, nil, errs.ErrUnauthorized)
			return
		}
		conversationID, err := uuid.Parse(c.Param("conversationID"))
		if err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.ErrBadRequest)
			return
		}
		messageID, err := uuid.Parse(c.Param("messageID"))
		if err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.ErrBadRequest)
			return
		}

		var req deleteMessageRequest
		// Body is optional; its absence means delete-for-me.
		_ = c.ShouldBindJSON(&req)

		if err := s.MessageService.DeleteMessage(c.Request.Context(), conversationID, messageID, userID, req.DeleteForEveryone); err != nil {
			respondError(c, err)
			return
		}
		response.JSON(c, "Message deleted successfully", http.StatusOK, nil, nil)
	}
}

type markSeenRequest struct {
	MessageIDs []uuid.UUID `json:"message_ids" binding:"required,min=1"`
}

func (s *Server) handleMarkSeen() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			respondAndAbort(c, "", http.StatusUnauthorized, nil, errs.ErrUnauthorized)
			return
		}
		conversationID, err := uuid.Parse(c.Param("conversationID"))
		if err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.ErrBadRequest)
			return
		}

		var req markSeenRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.ErrBadRequest)
			return
		}

		updates, err := s.MessageService.MarkSeen(c.Request.Context(), conversationID, req.MessageIDs, userID)
		if err != nil {
			respondError(c, err)
			return
		}
		response.JSON(c, "Seen status updated", http.StatusOK, updates, nil)
	}
}

type reactRequest struct {
	Emoji string `json:"emoji" binding:"required"`
}

func (s *Server) handleReact() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			respondAndAbort(c, "", http.StatusUnauthorized, nil, errs.ErrUnauthorized)
			return
		}
		conversationID, err := uuid.Parse(c.Param("conversationID"))
		if err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.ErrBadRequest)
			return
		}
		messageID, err := uuid.Parse(c.Param("messageID"))
		if err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.ErrBadRequest)
			return
		}

		var req reactRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.ErrBadRequest)
			return
		}

		change, err := s.MessageService.ReactToMessage(c.Request.Context(), conversationID, messageID, userID, req.Emoji)
		if err != nil {
			respondError(c, err)
			return
		}
		response.JSON(c, "Reaction applied", http.StatusOK, change, nil)
	}
}

func (s *Server) handleToggleStar() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			respondAndAbort(c, "", http.StatusUnauthorized, nil, errs.ErrUnauthorized)
			return
		}
		conversationID, err := uuid.Parse(c.Param("conversationID"))
		if err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.ErrBadRequest)
			return
		}
		messageID, err := uuid.Parse(c.Param("messageID"))
		if err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.ErrBadRequest)
			return
		}

		starred, err := s.MessageService.ToggleStar(conversationID, messageID, userID)
		if err != nil {
			respondError(c, err)
			return
		}
		response.JSON(c, "Star toggled", http.StatusOK, gin.H{"starred": starred}, nil)
	}
}

func queryInt(c *gin.Context, name string, fallback int) int {
	value, err := strconv.Atoi(c.Query(name))
	if err != nil || value < 1 {
		return fallback
	}
	return value
}
