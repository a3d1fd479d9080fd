package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"
	"go.uber.org/zap"

	"github.com/omkarbandikatte/AI-Interview-Preparation/internal/utils"
)

const (
	defaultLockPrefix  = "interview:lock:"
	defaultLockTTL     = 2 * time.Minute
	defaultLockPoll    = 50 * time.Millisecond
	lockReleaseTimeout = 5 * time.Second
)

// Deletes the lock only while it still holds our token.
var releaseLock = valkey.NewLuaScript(`if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("DEL", KEYS[1]) end return 0`)

// LockConfig configures a ValkeyLocker.
type LockConfig struct {
	KeyPrefix string
	// TTL bounds how long a crashed holder keeps the key. It must outlast one event.
	TTL          time.Duration
	PollInterval time.Duration
	Logger       *zap.Logger
}

// ValkeyLocker serializes work per key across every instance sharing a Valkey server.
// Waiters in the same process queue locally first so only one of them polls Valkey.
type ValkeyLocker struct {
	client valkey.Client
	prefix string
	ttl    time.Duration
	poll   time.Duration
	logger *zap.Logger
	local  *Locker
}

// Locker returns a distributed lock sharing the store's connection.
func (v *ValkeyStore) Locker(cfg LockConfig) *ValkeyLocker {
	return NewValkeyLocker(v.client, cfg)
}

func NewValkeyLocker(client valkey.Client, cfg LockConfig) *ValkeyLocker {
	l := &ValkeyLocker{
		client: client,
		prefix: cfg.KeyPrefix,
		ttl:    cfg.TTL,
		poll:   cfg.PollInterval,
		logger: cfg.Logger,
		local:  NewLocker(),
	}
	if strings.TrimSpace(l.prefix) == "" {
		l.prefix = defaultLockPrefix
	}
	if l.ttl <= 0 {
		l.ttl = defaultLockTTL
	}
	if l.poll <= 0 {
		l.poll = defaultLockPoll
	}
	if l.logger == nil {
		l.logger = zap.NewNop()
	}
	return l
}

// Lock waits until key is free in Valkey or ctx is done.
func (l *ValkeyLocker) Lock(ctx context.Context, key string) (func(), error) {
	unlockLocal, err := l.local.Lock(ctx, key)
	if err != nil {
		return nil, err
	}

	lockKey := l.prefix + key
	token := uuid.NewString()

	for {
		acquired, err := l.tryAcquire(ctx, lockKey, token)
		if err != nil {
			unlockLocal()
			return nil, fmt.Errorf("unable to acquire lock %q: %w", key, err)
		}
		if acquired {
			break
		}
		if err := utils.WaitFor(ctx, l.poll); err != nil {
			unlockLocal()
			return nil, err
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			defer unlockLocal()
			l.release(ctx, key, lockKey, token)
		})
	}, nil
}

func (l *ValkeyLocker) tryAcquire(ctx context.Context, lockKey, token string) (bool, error) {
	cmd := l.client.B().Set().
		Key(lockKey).
		Value(token).
		Nx().
		PxMilliseconds(l.ttl.Milliseconds()).
		Build()

	err := l.client.Do(ctx, cmd).Error()
	switch {
	case err == nil:
		return true, nil
	case valkey.IsValkeyNil(err):
		return false, nil
	default:
		return false, err
	}
}

// release runs even when the request context is already cancelled.
func (l *ValkeyLocker) release(ctx context.Context, key, lockKey, token string) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lockReleaseTimeout)
	defer cancel()

	if err := releaseLock.Exec(releaseCtx, l.client, []string{lockKey}, []string{token}).Error(); err != nil {
		l.logger.Warn("session lock release failed, waiting for expiry",
			zap.String("session_id", key),
			zap.Duration("lock_ttl", l.ttl),
			zap.Error(err),
		)
	}
}
