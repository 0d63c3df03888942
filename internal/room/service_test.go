package room

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"

	"backend-rendezvous/internal/stream"
)

var errRoom = errors.New("db error")

type published struct {
	roomKey int
	kind    string
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *recordingPublisher) Publish(roomKey int, kind string, _ any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{roomKey, kind})
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func roomRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"room_key", "name", "host_id", "is_open", "updated_at"})
}

func withKeys(t *testing.T, keys ...int) {
	t.Helper()
	orig := randomKeyFn
	i := 0
	randomKeyFn = func() int {
		k := keys[i%len(keys)]
		i++
		return k
	}
	t.Cleanup(func() { randomKeyFn = orig })
}

func TestParseKey(t *testing.T) {
	cases := map[string]bool{
		"1234":  true,
		" 9999": true,
		"0999":  false,
		"123":   false,
		"12345": false,
		"12a4":  false,
		"":      false,
	}
	for raw, ok := range cases {
		_, err := ParseKey(raw)
		if ok && err != nil {
			t.Fatalf("%q: unexpected error %v", raw, err)
		}
		if !ok && !errors.Is(err, ErrInvalidRoomKey) {
			t.Fatalf("%q: expected invalid key", raw)
		}
	}
}

func TestGenerateKeyRetriesUntilFree(t *testing.T) {
	withKeys(t, 1111, 2222)
	mock := newMock(t)
	mock.ExpectQuery(`SELECT EXISTS`).WithArgs(1111).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`SELECT EXISTS`).WithArgs(2222).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	key, err := NewService(mock, nil).GenerateKey(context.Background())
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	if key != 2222 {
		t.Fatalf("expected 2222, got %d", key)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGenerateKeyExhausted(t *testing.T) {
	withKeys(t, 1111)
	mock := newMock(t)
	for i := 0; i < maxKeyAttempts; i++ {
		mock.ExpectQuery(`SELECT EXISTS`).WithArgs(1111).
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	}
	if _, err := NewService(mock, nil).GenerateKey(context.Background()); !errors.Is(err, ErrKeyExhausted) {
		t.Fatalf("expected exhausted, got %v", err)
	}
}

func TestDefaultKeyRange(t *testing.T) {
	for i := 0; i < 1000; i++ {
		k := randomKeyFn()
		if k < 1000 || k > 9999 {
			t.Fatalf("key out of range: %d", k)
		}
	}
}

func TestCreate(t *testing.T) {
	mock := newMock(t)
	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO rooms`).WithArgs(4321, "Shibuya", "host-1").
		WillReturnRows(pgxmock.NewRows([]string{"updated_at"}).AddRow(now))
	mock.ExpectExec(`UPDATE users SET room_key=\$2, role='host'`).WithArgs("host-1", 4321).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	room, err := NewService(mock, nil).Create(context.Background(), "host-1", 4321, " Shibuya ")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !room.IsOpen || room.HostID != "host-1" || room.Name != "Shibuya" {
		t.Fatalf("unexpected room %+v", room)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(nil, nil)
	if _, err := svc.Create(context.Background(), "host-1", 999, "x"); !errors.Is(err, ErrInvalidRoomKey) {
		t.Fatalf("expected invalid key")
	}
	if _, err := svc.Create(context.Background(), "host-1", 1234, " "); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("expected invalid name")
	}
}

func TestCreateDuplicate(t *testing.T) {
	mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO rooms`).WithArgs(4321, "Shibuya", "host-1").
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})
	mock.ExpectRollback()

	if _, err := NewService(mock, nil).Create(context.Background(), "host-1", 4321, "Shibuya"); !errors.Is(err, ErrKeyTaken) {
		t.Fatalf("expected key taken, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateInsertFailure(t *testing.T) {
	mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO rooms`).WithArgs(4321, "Shibuya", "host-1").WillReturnError(errRoom)
	mock.ExpectRollback()

	if _, err := NewService(mock, nil).Create(context.Background(), "host-1", 4321, "Shibuya"); !errors.Is(err, errRoom) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestCreateRollsBackWhenHostAssignmentFails(t *testing.T) {
	mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO rooms`).WithArgs(4321, "Shibuya", "host-1").
		WillReturnRows(pgxmock.NewRows([]string{"updated_at"}).AddRow(time.Now()))
	mock.ExpectExec(`UPDATE users SET room_key=\$2, role='host'`).WithArgs("host-1", 4321).WillReturnError(errRoom)
	mock.ExpectRollback()

	if _, err := NewService(mock, nil).Create(context.Background(), "host-1", 4321, "Shibuya"); !errors.Is(err, errRoom) {
		t.Fatalf("expected host assignment error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("the room insert must be rolled back: %v", err)
	}
}

func TestIsOpen(t *testing.T) {
	mock := newMock(t)
	svc := NewService(mock, nil)

	mock.ExpectQuery(`UPDATE rooms SET updated_at=now\(\)\s+WHERE room_key=\$1\s+RETURNING is_open`).WithArgs(4321).
		WillReturnRows(pgxmock.NewRows([]string{"is_open"}).AddRow(true))
	open, err := svc.IsOpen(context.Background(), 4321)
	if err != nil || !open {
		t.Fatalf("expected open room: %v", err)
	}

	mock.ExpectQuery(`UPDATE rooms SET updated_at`).WithArgs(1000).WillReturnError(pgx.ErrNoRows)
	open, err = svc.IsOpen(context.Background(), 1000)
	if err != nil || open {
		t.Fatalf("expected missing room to read as closed: %v", err)
	}
}

func TestJoin(t *testing.T) {
	mock := newMock(t)
	events := &recordingPublisher{}
	mock.ExpectQuery(`SELECT room_key, name, host_id, is_open, updated_at`).WithArgs(4321).
		WillReturnRows(roomRows().AddRow(4321, "Shibuya", "host-1", true, time.Now()))
	mock.ExpectExec(`UPDATE users SET room_key=\$2, role='client'`).WithArgs("user-2", 4321).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE rooms SET updated_at=now\(\) WHERE room_key=\$1`).WithArgs(4321).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	room, err := NewService(mock, events).Join(context.Background(), "user-2", 4321)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if room.Key != 4321 {
		t.Fatalf("unexpected room %+v", room)
	}
	if len(events.events) != 1 || events.events[0] != (published{4321, stream.EventRoom}) {
		t.Fatalf("expected room event, got %+v", events.events)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestJoinFailures(t *testing.T) {
	mock := newMock(t)
	svc := NewService(mock, nil)

	mock.ExpectQuery(`SELECT room_key, name`).WithArgs(1111).WillReturnError(pgx.ErrNoRows)
	if _, err := svc.Join(context.Background(), "user-2", 1111); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	mock.ExpectQuery(`SELECT room_key, name`).WithArgs(2222).
		WillReturnRows(roomRows().AddRow(2222, "Locked", "host-1", false, time.Now()))
	if _, err := svc.Join(context.Background(), "user-2", 2222); !errors.Is(err, ErrRoomLocked) {
		t.Fatalf("expected locked, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSetOpen(t *testing.T) {
	mock := newMock(t)
	events := &recordingPublisher{}
	svc := NewService(mock, events)

	mock.ExpectQuery(`UPDATE rooms SET is_open=\$3`).WithArgs(4321, "host-1", false).
		WillReturnRows(roomRows().AddRow(4321, "Shibuya", "host-1", false, time.Now()))
	room, err := svc.SetOpen(context.Background(), "host-1", 4321, false)
	if err != nil || room.IsOpen {
		t.Fatalf("expected locked room: %v", err)
	}
	if len(events.events) != 1 {
		t.Fatalf("expected room event")
	}

	mock.ExpectQuery(`UPDATE rooms SET is_open=\$3`).WithArgs(4321, "user-2", true).WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`SELECT EXISTS`).WithArgs(4321).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	if _, err := svc.SetOpen(context.Background(), "user-2", 4321, true); !errors.Is(err, ErrNotHost) {
		t.Fatalf("expected not host, got %v", err)
	}

	mock.ExpectQuery(`UPDATE rooms SET is_open=\$3`).WithArgs(1111, "host-1", true).WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`SELECT EXISTS`).WithArgs(1111).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	if _, err := svc.SetOpen(context.Background(), "host-1", 1111, true); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(events.events) != 1 {
		t.Fatalf("failed updates must not publish")
	}
}
