package main

import (
	"github.com/rs/zerolog/log"
	"github.com/techagentng/chatly/config"
	"github.com/techagentng/chatly/db"
	"github.com/techagentng/chatly/server"
	"github.com/techagentng/chatly/services"
)

func main() {
	conf, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	gormDB := db.GetDB(conf)

	messageRepo := db.NewMessageRepo(gormDB)
	convRepo := db.NewConversationRepo(gormDB)
	friendshipRepo := db.NewFriendshipRepo(gormDB)

	uploader, err := services.NewS3Uploader(conf)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init attachment uploader")
	}

	broadcaster, redisClient, err := services.NewRedisBroadcaster(conf)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	var notifier services.PushNotifier = services.NopNotifier{}
	if conf.FirebaseCredFile != "" {
		notifier, err = services.NewFCMNotifier(conf)
		if err != nil {
			log.Warn().Err(err).Msg("push notifications disabled")
			notifier = services.NopNotifier{}
		}
	}

	factory := services.NewMessageFactory(messageRepo, uploader)
	messageService := services.NewMessageService(messageRepo, convRepo, friendshipRepo, factory, broadcaster, uploader, notifier)
	conversationService := services.NewConversationService(convRepo, friendshipRepo, factory, broadcaster)
	friendshipService := services.NewFriendshipService(friendshipRepo, convRepo, broadcaster)

	s := &server.Server{
		Config:                 conf,
		ConversationRepository: convRepo,
		MessageRepository:      messageRepo,
		FriendshipRepository:   friendshipRepo,
		MessageService:         messageService,
		ConversationService:    conversationService,
		FriendshipService:      friendshipService,
		Redis:                  redisClient,
	}

	s.Start()
}
