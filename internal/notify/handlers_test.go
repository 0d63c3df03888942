package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type fakeWeb struct {
	payloads [][]byte
	err      error
}

func (f *fakeWeb) Send(_ context.Context, _ *webpush.Subscription, payload []byte) error {
	f.payloads = append(f.payloads, payload)
	return f.err
}

type fakeFCM struct {
	tokens []string
	err    error
}

func (f *fakeFCM) Send(_ context.Context, token, _, _ string) error {
	f.tokens = append(f.tokens, token)
	return f.err
}

func passThrough(c *fiber.Ctx) error { return c.Next() }

func post(t *testing.T, app *fiber.App, body string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/notifications/", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	return resp.StatusCode
}

func TestNotificationHandlers(t *testing.T) {
	web := &fakeWeb{}
	fcm := &fakeFCM{}
	app := fiber.New()
	RegisterRoutes(app.Group("/notifications"), NewService(web, fcm, zap.NewNop().Sugar()), passThrough)

	status := post(t, app, `{"title":"Rendezvous","body":"Host is 50 m away","subscription":{"endpoint":"https://push.test/1","keys":{"auth":"a","p256dh":"b"}}}`)
	if status != http.StatusOK {
		t.Fatalf("web push status %d", status)
	}
	var sent payload
	if err := json.Unmarshal(web.payloads[0], &sent); err != nil || sent.Title != "Rendezvous" || sent.Body != "Host is 50 m away" {
		t.Fatalf("unexpected payload %s", web.payloads[0])
	}

	if status := post(t, app, `{"body":"hi","token":"fcm-token"}`); status != http.StatusOK {
		t.Fatalf("fcm status %d", status)
	}
	if len(fcm.tokens) != 1 || fcm.tokens[0] != "fcm-token" {
		t.Fatalf("expected fcm delivery")
	}
}

func TestNotificationHandlersValidation(t *testing.T) {
	app := fiber.New()
	RegisterRoutes(app.Group("/notifications"), NewService(&fakeWeb{}, &fakeFCM{}, nil), passThrough)

	for _, body := range []string{`{"token":"x"}`, `{"body":"hi"}`, `{`} {
		if status := post(t, app, body); status != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", body, status)
		}
	}
}

func TestNotificationHandlersErrors(t *testing.T) {
	sub := `"subscription":{"endpoint":"https://push.test/1","keys":{"auth":"a","p256dh":"b"}}`

	gone := fiber.New()
	RegisterRoutes(gone.Group("/notifications"), NewService(&fakeWeb{err: &StatusError{Code: http.StatusGone}}, nil, nil), passThrough)
	if status := post(t, gone, `{"body":"hi",`+sub+`}`); status != http.StatusGone {
		t.Fatalf("expected propagated 410, got %d", status)
	}

	broken := fiber.New()
	RegisterRoutes(broken.Group("/notifications"), NewService(nil, &fakeFCM{err: errors.New("boom")}, nil), passThrough)
	if status := post(t, broken, `{"body":"hi","token":"t"}`); status != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", status)
	}
	if status := post(t, broken, `{"body":"hi",`+sub+`}`); status != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without web push, got %d", status)
	}
}
