package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	errs "github.com/techagentng/chatly/errors"
	"github.com/techagentng/chatly/server/response"
	"github.com/techagentng/chatly/services/jwt"
)

const contextUserID = "userID"

// Authorize resolves the current user from the bearer token. Session
// issuance lives outside this service; only verification happens here.
func (s *Server) Authorize() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			respondAndAbort(c, "", http.StatusUnauthorized, nil, errs.ErrUnauthorized)
			return
		}
		token := strings.TrimPrefix(header, "Bearer ")

		userID, err := jwt.ValidateToken(token, s.Config.JWTSecret)
		if err != nil {
			respondAndAbort(c, "", http.StatusUnauthorized, nil, errs.ErrUnauthorized)
			return
		}

		c.Set(contextUserID, userID.String())
		c.Next()
	}
}

// currentUserID reads the authenticated user set by Authorize.
func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	raw, exists := c.Get(contextUserID)
	if !exists {
		return uuid.Nil, false
	}
	str, ok := raw.(string)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(str)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func respondAndAbort(c *gin.Context, message string, status int, data interface{}, err error) {
	response.JSON(c, message, status, data, err)
	c.Abort()
}

// respondError maps a tagged business error to its HTTP status; any
// untagged error becomes an opaque 500.
func respondError(c *gin.Context, err error) {
	var appErr *errs.Error
	if errors.As(err, &appErr) {
		response.JSON(c, "", appErr.Status, nil, appErr)
		return
	}
	response.JSON(c, "", http.StatusInternalServerError, nil, errs.ErrInternalServerError)
}
