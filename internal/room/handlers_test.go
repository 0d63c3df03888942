package room

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
)

func asUser(id string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("user_id", id)
		return c.Next()
	}
}

func TestRoomHandlersCreateFlow(t *testing.T) {
	withKeys(t, 4321)
	mock := newMock(t)
	mock.ExpectQuery(`SELECT EXISTS`).WithArgs(4321).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO rooms`).WithArgs(4321, "Shibuya", "host-1").
		WillReturnRows(pgxmock.NewRows([]string{"updated_at"}).AddRow(time.Now()))
	mock.ExpectExec(`UPDATE users SET room_key`).WithArgs("host-1", 4321).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()
	mock.ExpectQuery(`UPDATE rooms SET is_open=\$3`).WithArgs(4321, "host-1", false).
		WillReturnRows(roomRows().AddRow(4321, "Shibuya", "host-1", false, time.Now()))

	app := fiber.New()
	RegisterRoutes(app.Group("/rooms"), NewService(mock, nil), asUser("host-1"))

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/rooms/key", nil))
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("key status: %v", err)
	}
	var keyResp struct {
		RoomKey int `json:"room_key"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&keyResp); err != nil || keyResp.RoomKey != 4321 {
		t.Fatalf("unexpected key response: %v", err)
	}

	body, _ := json.Marshal(CreateRequest{Key: 4321, Name: "Shibuya"})
	req := httptest.NewRequest(http.MethodPost, "/rooms/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	if err != nil || resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status: %v", err)
	}

	req = httptest.NewRequest(http.MethodPut, "/rooms/4321/status", bytes.NewReader([]byte(`{"is_open":false}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("status update: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRoomHandlersCreateKeyTaken(t *testing.T) {
	mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO rooms`).WithArgs(4321, "Shibuya", "host-2").
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	app := fiber.New()
	RegisterRoutes(app.Group("/rooms"), NewService(mock, nil), asUser("host-2"))

	body, _ := json.Marshal(CreateRequest{Key: 4321, Name: "Shibuya"})
	req := httptest.NewRequest(http.MethodPost, "/rooms/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 when the key was taken meanwhile: %v %d", err, resp.StatusCode)
	}
}

func TestRoomHandlersJoin(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`SELECT room_key, name`).WithArgs(2222).
		WillReturnRows(roomRows().AddRow(2222, "Locked", "host-1", false, time.Now()))
	mock.ExpectQuery(`SELECT room_key, name`).WithArgs(3333).WillReturnError(pgx.ErrNoRows)

	app := fiber.New()
	RegisterRoutes(app.Group("/rooms"), NewService(mock, nil), asUser("user-2"))

	cases := []struct {
		body   string
		status int
	}{
		{`{"room_key":"12a4"}`, http.StatusBadRequest},
		{`{"room_key":"2222"}`, http.StatusLocked},
		{`{"room_key":"3333"}`, http.StatusNotFound},
		{`{`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/rooms/join", bytes.NewReader([]byte(tc.body)))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		if err != nil || resp.StatusCode != tc.status {
			t.Fatalf("%s: expected %d, got %d", tc.body, tc.status, resp.StatusCode)
		}
	}
}

func TestRoomHandlersDetailsAndOpen(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`SELECT room_key, name`).WithArgs(4321).
		WillReturnRows(roomRows().AddRow(4321, "Shibuya", "host-1", true, time.Now()))
	mock.ExpectQuery(`UPDATE rooms SET updated_at`).WithArgs(4321).
		WillReturnRows(pgxmock.NewRows([]string{"is_open"}).AddRow(true))

	app := fiber.New()
	RegisterRoutes(app.Group("/rooms"), NewService(mock, nil), asUser("user-2"))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/rooms/4321", nil))
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("details status: %v", err)
	}
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/rooms/4321/open", nil))
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("open status: %v", err)
	}
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/rooms/99", nil))
	if err != nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected bad key")
	}
}
