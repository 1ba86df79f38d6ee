package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	errs "github.com/techagentng/chatly/errors"
	"github.com/techagentng/chatly/server/response"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
)

// handleWebsocket bridges redis pub/sub to a connected client. The
// deterministic channel naming means one pattern subscription per
// conversation type covers every conversation the user belongs to,
// with no lookup table.
func (s *Server) handleWebsocket() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			respondAndAbort(c, "", http.StatusUnauthorized, nil, errs.ErrUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.ErrBadRequest)
			return
		}

		// The request context dies as soon as this handler returns, so
		// the subscription runs on its own context tied to the
		// connection: the reader cancels it when the peer goes away.
		ctx, cancel := context.WithCancel(context.Background())
		pubsub := s.Redis.PSubscribe(ctx,
			"private-chat-*-"+userID.String(),
			"group-chat-*-"+userID.String(),
		)

		done := make(chan struct{})

		// Reader: only used to notice the peer going away.
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		go func() {
			defer cancel()
			defer conn.Close()
			defer pubsub.Close()
			ticker := time.NewTicker(wsPingPeriod)
			defer ticker.Stop()

			events := pubsub.Channel()
			for {
				select {
				case msg, ok := <-events:
					if !ok {
						return
					}
					conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
					if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
						log.Debug().Err(err).Str("user_id", userID.String()).Msg("websocket write failed")
						return
					}
				case <-ticker.C:
					conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
					if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()
	}
}
