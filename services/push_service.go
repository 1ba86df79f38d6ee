package services

import (
	"context"

	firebase "firebase.google.com/go"
	"firebase.google.com/go/messaging"
	"github.com/rs/zerolog/log"
	"github.com/techagentng/chatly/config"
	"google.golang.org/api/option"
)

// PushNotifier delivers a native push for recipients without an open
// realtime connection. Best-effort: failures are logged, never
// returned.
type PushNotifier interface {
	Notify(ctx context.Context, deviceToken, title, body string)
}

type fcmNotifier struct {
	client *messaging.Client
}

func NewFCMNotifier(conf *config.Config) (PushNotifier, error) {
	opt := option.WithCredentialsFile(conf.FirebaseCredFile)
	app, err := firebase.NewApp(context.Background(), nil, opt)
	if err != nil {
		return nil, err
	}
	client, err := app.Messaging(context.Background())
	if err != nil {
		return nil, err
	}
	return &fcmNotifier{client: client}, nil
}

func (n *fcmNotifier) Notify(ctx context.Context, deviceToken, title, body string) {
	if deviceToken == "" {
		return
	}
	message := &messaging.Message{
		Token: deviceToken,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
	}
	if _, err := n.client.Send(ctx, message); err != nil {
		log.Warn().Err(err).Msg("push notification failed")
	}
}

// NopNotifier is used when no push credentials are configured.
type NopNotifier struct{}

func (NopNotifier) Notify(ctx context.Context, deviceToken, title, body string) {}
