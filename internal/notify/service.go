package notify

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"
)

type WebSender interface {
	Send(ctx context.Context, sub *webpush.Subscription, payload []byte) error
}

type TokenSender interface {
	Send(ctx context.Context, token, title, body string) error
}

type Request struct {
	Title        string                `json:"title"`
	Body         string                `json:"body"`
	Subscription *webpush.Subscription `json:"subscription"`
	Token        string                `json:"token"`
}

type payload struct {
	Title string `json:"title,omitempty"`
	Body  string `json:"body"`
}

type Service struct {
	web    WebSender
	fcm    TokenSender
	logger *zap.SugaredLogger
}

// NewService accepts nil senders; requests for an unconfigured channel fail.
func NewService(web WebSender, fcm TokenSender, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{web: web, fcm: fcm, logger: logger}
}

var errNotConfigured = errors.New("push channel not configured")

// Dispatch sends to the web push subscription when present, otherwise to
// the firebase token.
func (s *Service) Dispatch(ctx context.Context, req Request) error {
	if req.Subscription != nil {
		if s.web == nil {
			return errNotConfigured
		}
		raw, err := json.Marshal(payload{Title: req.Title, Body: req.Body})
		if err != nil {
			return err
		}
		return s.web.Send(ctx, req.Subscription, raw)
	}
	if s.fcm == nil {
		return errNotConfigured
	}
	return s.fcm.Send(ctx, req.Token, req.Title, req.Body)
}
