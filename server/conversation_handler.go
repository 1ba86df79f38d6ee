package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	errs "github.com/techagentng/chatly/errors"
	"github.com/techagentng/chatly/models"
	"github.com/techagentng/chatly/server/response"
)

type startConversationRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
}

func (s *Server) handleStartConversation() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			respondAndAbort(c, "", http.StatusUnauthorized, nil, errs.ErrUnauthorized)
			return
		}

		var req startConversationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.ErrBadRequest)
			return
		}

		conv, err := s.ConversationService.StartPrivateConversation(c.Request.Context(), userID, req.UserID)
		if err != nil {
			respondError(c, err)
			return
		}
		response.JSON(c, "Conversation ready", http.StatusCreated, conv, nil)
	}
}

type createGroupRequest struct {
	Name      string      `json:"name" binding:"required"`
	MemberIDs []uuid.UUID `json:"member_ids" binding:"required,min=1"`
}

func (s *Server) handleCreateGroup() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			respondAndAbort(c, "", http.StatusUnauthorized, nil, errs.ErrUnauthorized)
			return
		}

		var req createGroupRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.ErrBadRequest)
			return
		}

		conv, err := s.ConversationService.CreateGroup(c.Request.Context(), userID, req.Name, req.MemberIDs)
		if err != nil {
			respondError(c, err)
			return
		}
		response.JSON(c, "Group created", http.StatusCreated, conv, nil)
	}
}

func (s *Server) handleGetConversation() gin.HandlerFunc {
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

		conv, err := s.ConversationService.GetConversation(conversationID, userID)
		if err != nil {
			respondError(c, err)
			return
		}
		response.JSON(c, "Conversation retrieved", http.StatusOK, conv, nil)
	}
}

func (s *Server) handleDeleteConversation() gin.HandlerFunc {
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

		if err := s.ConversationService.DeleteConversation(conversationID, userID); err != nil {
			respondError(c, err)
			return
		}
		response.JSON(c, "Conversation deleted", http.StatusOK, nil, nil)
	}
}

type memberRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
}

func (s *Server) handleAddMember() gin.HandlerFunc {
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

		var req memberRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.ErrBadRequest)
			return
		}

		member, err := s.ConversationService.AddMember(c.Request.Context(), conversationID, userID, req.UserID)
		if err != nil {
			respondError(c, err)
			return
		}
		response.JSON(c, "Member added", http.StatusCreated, member, nil)
	}
}

func (s *Server) handleRemoveMember() gin.HandlerFunc {
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
		targetID, err := uuid.Parse(c.Param("userID"))
		if err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.ErrBadRequest)
			return
		}

		if err := s.ConversationService.RemoveMember(c.Request.Context(), conversationID, userID, targetID); err != nil {
			respondError(c, err)
			return
		}
		response.JSON(c, "Member removed", http.StatusOK, nil, nil)
	}
}

func (s *Server) handleExitGroup() gin.HandlerFunc {
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

		if err := s.ConversationService.ExitGroup(c.Request.Context(), conversationID, userID); err != nil {
			respondError(c, err)
			return
		}
		response.JSON(c, "Left the group", http.StatusOK, nil, nil)
	}
}

type changeRoleRequest struct {
	Role models.MemberRole `json:"role" binding:"required,oneof=admin member"`
}

func (s *Server) handleChangeMemberRole() gin.HandlerFunc {
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
		memberID, err := uuid.Parse(c.Param("memberID"))
		if err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.ErrBadRequest)
			return
		}

		var req changeRoleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.ErrBadRequest)
			return
		}

		member, err := s.ConversationService.ChangeMemberRole(conversationID, userID, memberID, req.Role)
		if err != nil {
			respondError(c, err)
			return
		}
		response.JSON(c, "Role updated", http.StatusOK, member, nil)
	}
}

type friendRequestBody struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
}

func (s *Server) handleSendFriendRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			respondAndAbort(c, "", http.StatusUnauthorized, nil, errs.ErrUnauthorized)
			return
		}

		var req friendRequestBody
		if err := c.ShouldBindJSON(&req); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.ErrBadRequest)
			return
		}

		request, err := s.FriendshipService.SendFriendRequest(c.Request.Context(), userID, req.UserID)
		if err != nil {
			respondError(c, err)
			return
		}
		response.JSON(c, "Friend request sent", http.StatusCreated, request, nil)
	}
}

func (s *Server) handleAcceptFriendRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			respondAndAbort(c, "", http.StatusUnauthorized, nil, errs.ErrUnauthorized)
			return
		}
		requestID, err := uuid.Parse(c.Param("requestID"))
		if err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.ErrBadRequest)
			return
		}

		conv, err := s.FriendshipService.AcceptFriendRequest(c.Request.Context(), requestID, userID)
		if err != nil {
			respondError(c, err)
			return
		}
		response.JSON(c, "Friend request accepted", http.StatusOK, conv, nil)
	}
}
