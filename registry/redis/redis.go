// Package redis is a registry.Store backed by Redis, for deployments where
// several host processes of one process group share the identity registry.
//
// Keys are namespaced by KeyPrefix and a per-group ID, so registry state for
// one process group is invisible to any other and can be purged as a unit
// when the group ends.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/joeshaw/envdecode"
	"github.com/redis/go-redis/v9"

	"github.com/ggoodman/dialog-session-go/registry"
)

// Config for a Redis-backed Store. Defaults can be loaded via envdecode.
type Config struct {
	// Addr like "localhost:6379". ENV: REDIS_ADDR
	Addr string `env:"REDIS_ADDR,default=localhost:6379"`
	// KeyPrefix for all keys. ENV: DIALOG_KEY_PREFIX
	KeyPrefix string `env:"DIALOG_KEY_PREFIX,default=dialog:registry:"`
	// GroupID scopes keys to one process group. A random ID is used when empty.
	// ENV: DIALOG_GROUP_ID
	GroupID string `env:"DIALOG_GROUP_ID"`
}

// Store implements registry.Store.
type Store struct {
	client *redis.Client
	owned  bool
	prefix string
}

const (
	entryNotReady = "0"
	entryReady    = "1"
)

// Option configures a Store.
type Option func(*Store)

// WithClient makes the Store use an existing client. Config.Addr is ignored
// and Close leaves the client open.
func WithClient(c *redis.Client) Option {
	return func(s *Store) { s.client = c }
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	s := &Store{}
	for _, opt := range opts {
		opt(s)
	}
	cl := s.client
	owned := false
	if cl == nil {
		addr := cfg.Addr
		if addr == "" {
			addr = "localhost:6379"
		}
		cl = redis.NewClient(&redis.Options{Addr: addr})
		owned = true
	}
	if err := cl.Ping(ctx).Err(); err != nil {
		if owned {
			_ = cl.Close()
		}
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "dialog:registry:"
	}
	group := cfg.GroupID
	if group == "" {
		group = uuid.NewString()
	}
	s.client = cl
	s.owned = owned
	s.prefix = prefix + group + ":"
	return s, nil
}

// NewFromEnv builds a Store using envdecode to populate Config.
func NewFromEnv(ctx context.Context, opts ...Option) (*Store, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode redis config: %w", err)
	}
	return New(ctx, cfg, opts...)
}

// Close closes the Redis client if the Store created it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}

func (s *Store) entryKey(id string) string   { return s.prefix + "entry:" + id }
func (s *Store) pendingKey(id string) string { return s.prefix + "pending:" + id }

func (s *Store) Insert(ctx context.Context, id string) (bool, error) {
	return s.client.SetNX(ctx, s.entryKey(id), entryNotReady, 0).Result()
}

var confirmScript = redis.NewScript(`
local entry = KEYS[1]
local pending = KEYS[2]
local had = redis.call('DEL', pending)
redis.call('SET', entry, '1')
return had
`)

func (s *Store) Confirm(ctx context.Context, id string) (bool, error) {
	keys := []string{s.entryKey(id), s.pendingKey(id)}
	n, err := confirmScript.Run(ctx, s.client, keys).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

var deferScript = redis.NewScript(`
local entry = KEYS[1]
local pending = KEYS[2]
if redis.call('GET', entry) == '0' then
  redis.call('SET', pending, '1')
  return 1
end
return 0
`)

func (s *Store) DeferDismiss(ctx context.Context, id string) (bool, error) {
	keys := []string{s.entryKey(id), s.pendingKey(id)}
	n, err := deferScript.Run(ctx, s.client, keys).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) Remove(ctx context.Context, id string) error {
	// Removal runs at host destruction and must not be lost to a cancelled ctx.
	c := context.WithoutCancel(ctx)
	return s.client.Del(c, s.entryKey(id), s.pendingKey(id)).Err()
}

func (s *Store) Get(ctx context.Context, id string) (registry.Entry, bool, error) {
	vals, err := s.client.MGet(ctx, s.entryKey(id), s.pendingKey(id)).Result()
	if err != nil {
		return registry.Entry{}, false, err
	}
	if vals[0] == nil {
		return registry.Entry{}, false, nil
	}
	ready, _ := vals[0].(string)
	return registry.Entry{Ready: ready == entryReady, DismissPending: vals[1] != nil}, true, nil
}

// Purge deletes every key of this process group.
func (s *Store) Purge(ctx context.Context) error {
	var cursor uint64
	for {
		keys, cur, err := s.client.Scan(ctx, cursor, s.prefix+"*", 50).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if cur == 0 {
			return nil
		}
		cursor = cur
	}
}

// Interface compliance
var _ registry.Store = (*Store)(nil)
