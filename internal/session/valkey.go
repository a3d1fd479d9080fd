package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valkey-io/valkey-go"
)

const defaultKeyPrefix = "interview:session:"

// ValkeyConfig configures a Valkey-backed store.
type ValkeyConfig struct {
	Address   string
	Password  string
	KeyPrefix string
	TTL       time.Duration
}

// ValkeyStore keeps JSON-encoded sessions in Valkey so several service instances can share them.
// Every Put refreshes the key expiry.
type ValkeyStore struct {
	client valkey.Client
	prefix string
	ttl    time.Duration
}

// NewValkeyStore connects to Valkey and verifies the connection with PING.
func NewValkeyStore(ctx context.Context, cfg ValkeyConfig) (*ValkeyStore, error) {
	address := strings.TrimSpace(cfg.Address)
	if address == "" {
		return nil, errors.New("valkey address is required")
	}

	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{address},
		Password:    cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to create Valkey client: %w", err)
	}

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("unable to ping Valkey: %w", err)
	}

	return NewValkeyStoreWithClient(client, cfg.KeyPrefix, cfg.TTL), nil
}

// NewValkeyStoreWithClient wraps an existing client.
func NewValkeyStoreWithClient(client valkey.Client, prefix string, ttl time.Duration) *ValkeyStore {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &ValkeyStore{client: client, prefix: prefix, ttl: ttl}
}

func (v *ValkeyStore) Close() {
	v.client.Close()
}

func (v *ValkeyStore) key(key string) string {
	return v.prefix + key
}

func (v *ValkeyStore) Get(ctx context.Context, key string) (*State, bool, error) {
	cmd := v.client.B().Get().Key(v.key(key)).Build()

	data, err := v.client.Do(ctx, cmd).AsBytes()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("unable to get session %q: %w", key, err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, false, fmt.Errorf("decode session %q: %w", key, err)
	}
	if st.Resume == nil {
		st.Resume = Resume{}
	}
	if st.Transcript == nil {
		st.Transcript = []Entry{}
	}

	return &st, true, nil
}

func (v *ValkeyStore) Put(ctx context.Context, key string, st *State) error {
	if st == nil {
		return errors.New("session state is required")
	}

	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode session %q: %w", key, err)
	}

	cmd := v.client.B().Set().
		Key(v.key(key)).
		Value(valkey.BinaryString(data)).
		ExSeconds(ttlSeconds(v.ttl)).
		Build()

	if err := v.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("unable to store session %q: %w", key, err)
	}

	return nil
}

func (v *ValkeyStore) Delete(ctx context.Context, key string) error {
	cmd := v.client.B().Del().Key(v.key(key)).Build()

	if err := v.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("unable to delete session %q: %w", key, err)
	}

	return nil
}

func ttlSeconds(ttl time.Duration) int64 {
	if secs := int64(ttl / time.Second); secs > 0 {
		return secs
	}
	return 1
}
