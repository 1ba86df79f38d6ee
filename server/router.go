package server

import (
	"fmt"
	"os"
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/techagentng/chatly/server/response"
)

func (s *Server) setupRouter() *gin.Engine {
	ginMode := os.Getenv("GIN_MODE")
	if ginMode == "test" {
		r := gin.New()
		s.defineRoutes(r)
		return r
	}

	r := gin.New()
	r.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
			param.ClientIP,
			param.TimeStamp.Format(time.RFC1123),
			param.Method,
			param.Path,
			param.Request.Proto,
			param.StatusCode,
			param.Latency,
			param.Request.UserAgent(),
			param.ErrorMessage,
		)
	}))
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.MaxMultipartMemory = 32 << 20
	s.defineRoutes(r)

	return r
}

// sendLimiter throttles message creation per user; attachment-heavy
// sends are the most expensive path in the service.
func (s *Server) sendLimiter() gin.HandlerFunc {
	store := ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{
		Rate:  time.Second,
		Limit: 10,
	})
	return ratelimit.RateLimiter(store, &ratelimit.Options{
		ErrorHandler: func(c *gin.Context, info ratelimit.Info) {
			response.JSON(c, "Too many messages, slow down", 429, nil, nil)
			c.Abort()
		},
		KeyFunc: func(c *gin.Context) string {
			if id, ok := currentUserID(c); ok {
				return id.String()
			}
			return c.ClientIP()
		},
	})
}

func (s *Server) defineRoutes(router *gin.Engine) {
	apirouter := router.Group("/api/v1")

	authorized := apirouter.Group("/")
	authorized.Use(s.Authorize())

	authorized.GET("/ws", s.handleWebsocket())

	authorized.POST("/conversations", s.handleStartConversation())
	authorized.POST("/groups", s.handleCreateGroup())
	authorized.GET("/conversations/:conversationID", s.handleGetConversation())
	authorized.DELETE("/conversations/:conversationID", s.handleDeleteConversation())
	authorized.POST("/conversations/:conversationID/members", s.handleAddMember())
	authorized.DELETE("/conversations/:conversationID/members/:userID", s.handleRemoveMember())
	authorized.POST("/conversations/:conversationID/exit", s.handleExitGroup())
	authorized.PATCH("/conversations/:conversationID/members/:memberID/role", s.handleChangeMemberRole())

	authorized.POST("/conversations/:conversationID/messages", s.sendLimiter(), s.handleSendMessage())
	authorized.GET("/conversations/:conversationID/messages", s.handleListMessages())
	authorized.DELETE("/conversations/:conversationID/messages/:messageID", s.handleDeleteMessage())
	authorized.POST("/conversations/:conversationID/messages/seen", s.handleMarkSeen())
	authorized.POST("/conversations/:conversationID/messages/:messageID/reactions", s.handleReact())
	authorized.POST("/conversations/:conversationID/messages/:messageID/star", s.handleToggleStar())

	authorized.POST("/friend-requests", s.handleSendFriendRequest())
	authorized.POST("/friend-requests/:requestID/accept", s.handleAcceptFriendRequest())
}
