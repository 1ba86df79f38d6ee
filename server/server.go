package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/techagentng/chatly/config"
	"github.com/techagentng/chatly/db"
	"github.com/techagentng/chatly/services"
)

type Server struct {
	Config *config.Config

	ConversationRepository db.ConversationRepository
	MessageRepository      db.MessageRepository
	FriendshipRepository   db.FriendshipRepository

	MessageService      services.MessageService
	ConversationService services.ConversationService
	FriendshipService   services.FriendshipService

	Redis *redis.Client
}

// Start runs the HTTP server until SIGINT/SIGTERM, then drains
// in-flight requests.
func (s *Server) Start() {
	r := s.setupRouter()

	addr := fmt.Sprintf(":%d", s.Config.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server stopped")
}
