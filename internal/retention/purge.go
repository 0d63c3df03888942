// Package retention removes rooms, messages and participants that have gone
// idle.
package retention

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"backend-rendezvous/internal/db"
)

// Result counts the rows removed by one purge.
type Result struct {
	Messages int64
	Detached int64
	Rooms    int64
	Tokens   int64
	Users    int64
}

type Purger struct {
	db      db.Querier
	logger  *zap.SugaredLogger
	roomTTL time.Duration
	userTTL time.Duration
	now     func() time.Time
}

func NewPurger(db db.Querier, logger *zap.SugaredLogger, roomTTL, userTTL time.Duration) *Purger {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Purger{db: db, logger: logger, roomTTL: roomTTL, userTTL: userTTL, now: time.Now}
}

// Purge deletes the messages of stale rooms before the rooms themselves,
// then drops participants idle past the user retention.
func (p *Purger) Purge(ctx context.Context) (Result, error) {
	now := p.now()
	roomCutoff := now.Add(-p.roomTTL)
	userCutoff := now.Add(-p.userTTL)
	var res Result

	steps := []struct {
		name  string
		count *int64
		sql   string
		args  []any
	}{
		{"messages", &res.Messages, `
			DELETE FROM messages
			WHERE room_key IN (SELECT room_key FROM rooms WHERE updated_at < $1)
		`, []any{roomCutoff}},
		{"members", &res.Detached, `
			UPDATE users SET room_key=NULL, role=NULL, distance=NULL
			WHERE room_key IN (SELECT room_key FROM rooms WHERE updated_at < $1)
		`, []any{roomCutoff}},
		{"rooms", &res.Rooms, `DELETE FROM rooms WHERE updated_at < $1`, []any{roomCutoff}},
		{"refresh tokens", &res.Tokens, `
			DELETE FROM refresh_tokens
			WHERE expires_at < $1 OR user_id IN (SELECT id FROM users WHERE updated_at < $2)
		`, []any{now, userCutoff}},
		{"users", &res.Users, `DELETE FROM users WHERE updated_at < $1`, []any{userCutoff}},
	}
	for _, step := range steps {
		tag, err := p.db.Exec(ctx, step.sql, step.args...)
		if err != nil {
			return res, fmt.Errorf("purge %s: %w", step.name, err)
		}
		*step.count = tag.RowsAffected()
	}
	return res, nil
}

// run is the scheduled entry point; failures are logged and retried on the
// next tick.
func (p *Purger) run(ctx context.Context) {
	res, err := p.Purge(ctx)
	if err != nil {
		p.logger.Errorw("retention purge failed", "error", err)
		return
	}
	if res.Rooms > 0 || res.Users > 0 || res.Messages > 0 {
		p.logger.Infow("retention purge",
			"rooms", res.Rooms,
			"messages", res.Messages,
			"detached", res.Detached,
			"users", res.Users,
			"tokens", res.Tokens,
		)
	}
}
