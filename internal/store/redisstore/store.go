package redisstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/orionai/orion/internal/ai"
)

// Store keeps the short-lived per-user markers: the active-session
// pointer, the cached geolocation hint and the revoked-token set.
type Store struct {
	rdb *redis.Client
}

func New(addr, password string, db int) *Store {
	return &Store{rdb: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

// ActiveSession returns the user's active session id, or "" when none
// is recorded.
func (s *Store) ActiveSession(ctx context.Context, username string) (string, error) {
	v, err := s.rdb.Get(ctx, "active_session:"+username).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

func (s *Store) SetActiveSession(ctx context.Context, username, sessionID string) error {
	return s.rdb.Set(ctx, "active_session:"+username, sessionID, 0).Err()
}

func (s *Store) ClearActiveSession(ctx context.Context, username string) error {
	return s.rdb.Del(ctx, "active_session:"+username).Err()
}

// Location returns the cached geolocation hint, or nil when absent.
// A malformed cache entry counts as absent.
func (s *Store) Location(ctx context.Context, username string) (*ai.LatLng, error) {
	raw, err := s.rdb.Get(ctx, "geo:"+username).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var loc ai.LatLng
	if err := json.Unmarshal(raw, &loc); err != nil {
		return nil, nil
	}
	return &loc, nil
}

func (s *Store) SetLocation(ctx context.Context, username string, loc ai.LatLng, ttl time.Duration) error {
	raw, err := json.Marshal(loc)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, "geo:"+username, raw, ttl).Err()
}

func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "revoked:" + hex.EncodeToString(sum[:])
}

// RevokeToken denylists a JWT until it would have expired anyway.
func (s *Store) RevokeToken(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return s.rdb.Set(ctx, tokenKey(token), "1", ttl).Err()
}

func (s *Store) IsTokenRevoked(ctx context.Context, token string) (bool, error) {
	_, err := s.rdb.Get(ctx, tokenKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
