package relay

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

const relayRoomsSchema = `CREATE TABLE IF NOT EXISTS relay_rooms (
    room_code    TEXT        NOT NULL,
    created_at   TIMESTAMPTZ NOT NULL,
    closed_at    TIMESTAMPTZ NOT NULL,
    white_conn   TEXT        NOT NULL,
    black_conn   TEXT        NOT NULL DEFAULT '',
    close_reason TEXT        NOT NULL,
    move_count   INTEGER     NOT NULL,
    moves_uci    JSONB       NOT NULL,
    duration_ms  BIGINT      NOT NULL,
    PRIMARY KEY (room_code, created_at)
)`

// PostgresArchive stores one row per closed room.
type PostgresArchive struct {
	db *sql.DB
}

func OpenPostgresArchive(ctx context.Context, databaseURL string) (*PostgresArchive, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	if _, err := db.ExecContext(pingCtx, relayRoomsSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure relay_rooms: %w", err)
	}
	return &PostgresArchive{db: db}, nil
}

func (a *PostgresArchive) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}

func (a *PostgresArchive) SaveRoom(ctx context.Context, s RoomSummary) error {
	if a == nil || a.db == nil {
		return nil
	}
	movesUCI, err := movesUCIJSON(s.Moves)
	if err != nil {
		return err
	}

	q := `INSERT INTO relay_rooms (
        room_code, created_at, closed_at, white_conn, black_conn,
        close_reason, move_count, moves_uci, duration_ms
      ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
      ON CONFLICT (room_code, created_at) DO UPDATE SET
        closed_at=EXCLUDED.closed_at,
        black_conn=EXCLUDED.black_conn,
        close_reason=EXCLUDED.close_reason,
        move_count=EXCLUDED.move_count,
        moves_uci=EXCLUDED.moves_uci,
        duration_ms=EXCLUDED.duration_ms`

	_, err = a.db.ExecContext(ctx, q,
		s.Code, s.CreatedAt, s.ClosedAt, s.White, s.Black,
		strings.ToLower(string(s.Reason)), len(s.Moves), movesUCI, roomDuration(s).Milliseconds(),
	)
	return err
}

func movesUCIJSON(moves []MoveRecord) (string, error) {
	list := make([]string, 0, len(moves))
	for _, m := range moves {
		list = append(list, m.Move.UCI())
	}
	raw, err := json.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("marshal moves: %w", err)
	}
	return string(raw), nil
}

func roomDuration(s RoomSummary) time.Duration {
	d := s.ClosedAt.Sub(s.CreatedAt)
	if d < 0 {
		return 0
	}
	return d
}
