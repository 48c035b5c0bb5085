package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ConfirmationTokenStore guarda los tokens de confirmacion de registro.
type ConfirmationTokenStore interface {
	Store(token string, userID int64, ttl time.Duration) error
	Lookup(token string) (int64, bool, error)
	Revoke(token string) error
}

type memoryConfirmationEntry struct {
	userID    int64
	expiresAt time.Time
}

type memoryConfirmationTokenStore struct {
	mu    sync.Mutex
	items map[string]memoryConfirmationEntry
}

func NewMemoryConfirmationTokenStore() ConfirmationTokenStore {
	return &memoryConfirmationTokenStore{
		items: make(map[string]memoryConfirmationEntry),
	}
}

func (s *memoryConfirmationTokenStore) Store(token string, userID int64, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.TrimSpace(token) == "" {
		return nil
	}
	s.items[token] = memoryConfirmationEntry{
		userID:    userID,
		expiresAt: time.Now().UTC().Add(ttl),
	}
	return nil
}

func (s *memoryConfirmationTokenStore) Lookup(token string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.items[token]
	if !ok {
		return 0, false, nil
	}
	if time.Now().UTC().After(entry.expiresAt) {
		delete(s.items, token)
		return 0, false, nil
	}
	return entry.userID, true, nil
}

func (s *memoryConfirmationTokenStore) Revoke(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, token)
	return nil
}

type redisKVClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type redisConfirmationTokenStore struct {
	client redisKVClient
	prefix string
}

func NewRedisConfirmationTokenStore(client *redis.Client) ConfirmationTokenStore {
	if client == nil {
		return nil
	}
	return &redisConfirmationTokenStore{
		client: client,
		prefix: "auth:confirm:",
	}
}

func (s *redisConfirmationTokenStore) Store(token string, userID int64, ttl time.Duration) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	if ttl <= 0 {
		ttl = confirmationTTL
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	return s.client.Set(ctx, s.prefix+token, strconv.FormatInt(userID, 10), ttl).Err()
}

func (s *redisConfirmationTokenStore) Lookup(token string) (int64, bool, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, false, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	val, err := s.client.Get(ctx, s.prefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	userID, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, err
	}
	return userID, true, nil
}

func (s *redisConfirmationTokenStore) Revoke(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	return s.client.Del(ctx, s.prefix+token).Err()
}
