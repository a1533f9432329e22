package lock

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrLost reports that a held lock expired and may belong to someone else.
var ErrLost = errors.New("lock lost")

// Handle is a held lock. Extend pushes out the expiry of locks that have one
// and fails with ErrLost once the lock is gone.
type Handle interface {
	Extend(ctx context.Context) error
	Release(ctx context.Context) error
}

// Locker hands out non-blocking named locks. TryAcquire returns ok=false when
// another holder already owns key.
type Locker interface {
	TryAcquire(ctx context.Context, key string) (Handle, bool, error)
}

// CampaignKey is the lock name used for a campaign send run.
func CampaignKey(campaignID string) string {
	return "campaign_send:" + campaignID
}

// New picks Redis when a client is configured and falls back to Postgres
// advisory locks otherwise.
func New(client *redis.Client, db *sql.DB, ttl time.Duration) Locker {
	if client != nil {
		return NewRedisLocker(client, ttl)
	}
	return NewPGAdvisoryLocker(db)
}

// =============================================================================
// Redis
// =============================================================================

const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

const extendScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
else
	return 0
end
`

type RedisLocker struct {
	client  *redis.Client
	ttl     time.Duration
	release *redis.Script
	extend  *redis.Script
}

func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{
		client:  client,
		ttl:     ttl,
		release: redis.NewScript(releaseScript),
		extend:  redis.NewScript(extendScript),
	}
}

type redisHandle struct {
	l     *RedisLocker
	key   string
	value string
}

func (l *RedisLocker) TryAcquire(ctx context.Context, key string) (Handle, bool, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return nil, false, fmt.Errorf("lock token: %w", err)
	}
	h := &redisHandle{l: l, key: "lock:" + key, value: hex.EncodeToString(b)}

	ok, err := l.client.SetNX(ctx, h.key, h.value, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %s: %w", h.key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return h, true, nil
}

// Extend resets the TTL while the key still holds our token.
func (h *redisHandle) Extend(ctx context.Context) error {
	n, err := h.l.extend.Run(ctx, h.l.client, []string{h.key}, h.value, h.l.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("extend lock %s: %w", h.key, err)
	}
	if n == 0 {
		return fmt.Errorf("extend lock %s: %w", h.key, ErrLost)
	}
	return nil
}

// Release deletes the key only while it still holds our token.
func (h *redisHandle) Release(ctx context.Context) error {
	if err := h.l.release.Run(ctx, h.l.client, []string{h.key}, h.value).Err(); err != nil {
		return fmt.Errorf("release lock %s: %w", h.key, err)
	}
	return nil
}

// =============================================================================
// Postgres advisory locks
// =============================================================================

// PGAdvisoryLocker uses session-scoped pg_try_advisory_lock. Each handle pins
// one pooled connection so that unlock runs on the session that locked.
type PGAdvisoryLocker struct {
	db *sql.DB
}

func NewPGAdvisoryLocker(db *sql.DB) *PGAdvisoryLocker {
	return &PGAdvisoryLocker{db: db}
}

func advisoryID(key string) int64 {
	h := fnv.New64a()
	h.Write([]byte(key))
	return int64(h.Sum64())
}

type pgHandle struct {
	conn *sql.Conn
	id   int64
}

func (l *PGAdvisoryLocker) TryAcquire(ctx context.Context, key string) (Handle, bool, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("advisory lock conn: %w", err)
	}
	id := advisoryID(key)

	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", id).Scan(&acquired); err != nil {
		conn.Close()
		return nil, false, fmt.Errorf("advisory lock: %w", err)
	}
	if !acquired {
		conn.Close()
		return nil, false, nil
	}
	return &pgHandle{conn: conn, id: id}, true, nil
}

// Extend is a no-op: the advisory lock lives as long as its session.
func (h *pgHandle) Extend(context.Context) error { return nil }

func (h *pgHandle) Release(ctx context.Context) error {
	defer h.conn.Close()
	if _, err := h.conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", h.id); err != nil {
		return fmt.Errorf("advisory unlock: %w", err)
	}
	return nil
}

// =============================================================================
// In-process
// =============================================================================

// MemoryLocker guards keys within one process.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]struct{})}
}

type memoryHandle struct {
	l   *MemoryLocker
	key string
}

func (l *MemoryLocker) TryAcquire(_ context.Context, key string) (Handle, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return nil, false, nil
	}
	l.held[key] = struct{}{}
	return &memoryHandle{l: l, key: key}, true, nil
}

func (h *memoryHandle) Extend(context.Context) error { return nil }

func (h *memoryHandle) Release(context.Context) error {
	h.l.mu.Lock()
	delete(h.l.held, h.key)
	h.l.mu.Unlock()
	return nil
}

var (
	_ Locker = (*RedisLocker)(nil)
	_ Locker = (*PGAdvisoryLocker)(nil)
	_ Locker = (*MemoryLocker)(nil)
)
