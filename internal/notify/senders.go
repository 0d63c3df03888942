package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/SherClockHolmes/webpush-go"
	"google.golang.org/api/option"
)

const webPushTTL = 60

// StatusError carries the status a push service answered with.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("push service responded %d: %s", e.Code, e.Body)
}

// WebPush delivers VAPID-signed web push messages.
type WebPush struct {
	publicKey  string
	privateKey string
	subscriber string
	client     webpush.HTTPClient
}

// NewWebPush returns nil when no VAPID key pair is configured.
func NewWebPush(publicKey, privateKey, subscriber string) *WebPush {
	if publicKey == "" || privateKey == "" {
		return nil
	}
	return &WebPush{
		publicKey:  publicKey,
		privateKey: privateKey,
		subscriber: subscriber,
		client:     http.DefaultClient,
	}
}

func (w *WebPush) Send(ctx context.Context, sub *webpush.Subscription, payload []byte) error {
	if w == nil {
		return errNotConfigured
	}
	resp, err := webpush.SendNotificationWithContext(ctx, payload, sub, &webpush.Options{
		HTTPClient:      w.client,
		Subscriber:      w.subscriber,
		VAPIDPublicKey:  w.publicKey,
		VAPIDPrivateKey: w.privateKey,
		TTL:             webPushTTL,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Body: string(body)}
	}
	return nil
}

// FCM delivers notifications to firebase registration tokens.
type FCM struct {
	client *messaging.Client
}

// NewFCM returns nil when no service account file is configured.
func NewFCM(ctx context.Context, credentialsFile string) (*FCM, error) {
	if credentialsFile == "" {
		return nil, nil
	}
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("init messaging client: %w", err)
	}
	return &FCM{client: client}, nil
}

func (f *FCM) Send(ctx context.Context, token, title, body string) error {
	if f == nil {
		return errNotConfigured
	}
	_, err := f.client.Send(ctx, &messaging.Message{
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Token: token,
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
	})
	return err
}
