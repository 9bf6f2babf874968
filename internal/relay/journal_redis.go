package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/park285/chess-arena/internal/obslog"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	journalQueueSize  = 256
	journalOpTimeout  = 2 * time.Second
	journalSealedTTL  = 10 * time.Minute
	defaultJournalTTL = 2 * time.Hour
)

type journalOp struct {
	code string
	rec  *MoveRecord
}

// RedisJournal appends move records to a per-room redis list. Writes happen
// on a single background goroutine so their order matches the hub's.
//
// Codes are reused once a room is gone, so the first record of a room
// replaces whatever a sealed predecessor left under the same key.
type RedisJournal struct {
	rdb *redis.Client
	ttl time.Duration

	// open is only touched by run.
	open map[string]struct{}

	mu     sync.RWMutex
	closed bool
	queue  chan journalOp
	done   chan struct{}
}

func NewRedisJournal(rdb *redis.Client, ttl time.Duration) *RedisJournal {
	if ttl <= 0 {
		ttl = defaultJournalTTL
	}
	j := &RedisJournal{
		rdb:   rdb,
		ttl:   ttl,
		open:  make(map[string]struct{}),
		queue: make(chan journalOp, journalQueueSize),
		done:  make(chan struct{}),
	}
	go j.run()
	return j
}

// OpenRedis parses a redis:// URL and verifies the server answers.
func OpenRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, fmt.Errorf("redis url is empty")
	}
	opts, err := redis.ParseURL(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func movesKey(code string) string { return "relay:moves:" + strings.TrimSpace(code) }

func (j *RedisJournal) Record(code string, rec MoveRecord) {
	j.enqueue(journalOp{code: code, rec: &rec})
}

func (j *RedisJournal) Seal(code string) {
	j.enqueue(journalOp{code: code})
}

func (j *RedisJournal) enqueue(op journalOp) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return
	}
	select {
	case j.queue <- op:
	default:
		obslog.L().Warn("relay_journal_dropped", zap.String("code", op.code))
	}
}

// Moves reads back the journal of a room.
func (j *RedisJournal) Moves(ctx context.Context, code string) ([]MoveRecord, error) {
	raws, err := j.rdb.LRange(ctx, movesKey(code), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]MoveRecord, 0, len(raws))
	for _, raw := range raws {
		var rec MoveRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decode journal entry: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// Close flushes queued writes and stops the writer.
func (j *RedisJournal) Close() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		<-j.done
		return nil
	}
	j.closed = true
	close(j.queue)
	j.mu.Unlock()
	<-j.done
	return nil
}

func (j *RedisJournal) run() {
	defer close(j.done)
	for op := range j.queue {
		ctx, cancel := context.WithTimeout(context.Background(), journalOpTimeout)
		err := j.apply(ctx, op)
		cancel()
		if err != nil {
			obslog.L().Warn("relay_journal_error", zap.String("code", op.code), zap.Error(err))
		}
	}
}

func (j *RedisJournal) apply(ctx context.Context, op journalOp) error {
	key := movesKey(op.code)
	if op.rec == nil {
		delete(j.open, op.code)
		return j.rdb.Expire(ctx, key, journalSealedTTL).Err()
	}
	raw, err := json.Marshal(op.rec)
	if err != nil {
		return err
	}
	pipe := j.rdb.TxPipeline()
	if _, ok := j.open[op.code]; !ok {
		pipe.Del(ctx, key)
		j.open[op.code] = struct{}{}
	}
	pipe.RPush(ctx, key, raw)
	pipe.Expire(ctx, key, j.ttl)
	_, err = pipe.Exec(ctx)
	return err
}
