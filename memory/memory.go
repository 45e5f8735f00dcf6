package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/joostvdm/kennisbot/config"
	"github.com/joostvdm/kennisbot/models"
)

const keyPrefix = "conversation:"

// Connect opens a Redis connection and verifies it with a ping.
func Connect(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		DialTimeout: cfg.Timeout,
		Password:    cfg.Password,
		DB:          cfg.DB,
	})

	pong, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, err
	}
	if pong != "PONG" {
		return nil, fmt.Errorf("expected PONG, got %s", pong)
	}

	return client, nil
}

// Store keeps per-user conversation history in Redis. A Store with a nil
// client is valid and behaves as if every user has no history, so the
// pipeline keeps answering single questions when Redis is down.
type Store struct {
	client   *redis.Client
	ttl      time.Duration
	maxTurns int
	logger   *log.Logger
}

// New creates a store around an existing client.
func New(client *redis.Client, ttl time.Duration, maxTurns int, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New(log.Writer(), "[MEMORY] ", log.LstdFlags)
	}
	return &Store{client: client, ttl: ttl, maxTurns: maxTurns, logger: logger}
}

// NewFromConfig connects to Redis and wraps the connection in a Store. If the
// connection fails the store is created without a client and a warning is
// logged, it does not fail the caller.
func NewFromConfig(ctx context.Context, cfg config.MemoryConfig, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New(log.Writer(), "[MEMORY] ", log.LstdFlags)
	}
	client, err := Connect(ctx, cfg.Redis)
	if err != nil {
		logger.Printf("WARNING: redis unavailable, conversation memory disabled: %v", err)
		client = nil
	}
	return &Store{client: client, ttl: cfg.TTL, maxTurns: cfg.MaxTurns, logger: logger}
}

// Turns returns the stored history for a user, oldest first. Any failure,
// including a missing key or unparseable data, yields an empty history.
func (s *Store) Turns(ctx context.Context, userID string) []models.ConversationTurn {
	if s == nil || s.client == nil {
		return nil
	}

	val, err := s.client.Get(ctx, keyPrefix+userID).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Printf("WARNING: failed to read history for %s: %v", userID, err)
		}
		return nil
	}

	var turns []models.ConversationTurn
	if err := json.Unmarshal([]byte(val), &turns); err != nil {
		s.logger.Printf("WARNING: corrupt history for %s, ignoring: %v", userID, err)
		return nil
	}
	return turns
}

// Append adds one question/answer pair to a user's history, keeping only the
// most recent maxTurns entries, and refreshes the expiry. Reports whether the
// write succeeded.
func (s *Store) Append(ctx context.Context, userID, question, answer string) bool {
	if s == nil || s.client == nil {
		return false
	}

	turns := s.Turns(ctx, userID)
	turns = append(turns, models.ConversationTurn{
		Question:  question,
		Answer:    answer,
		Timestamp: time.Now(),
	})
	if len(turns) > s.maxTurns {
		turns = turns[len(turns)-s.maxTurns:]
	}

	data, err := json.Marshal(turns)
	if err != nil {
		s.logger.Printf("WARNING: failed to marshal history for %s: %v", userID, err)
		return false
	}

	if err := s.client.Set(ctx, keyPrefix+userID, data, s.ttl).Err(); err != nil {
		s.logger.Printf("WARNING: failed to save history for %s: %v", userID, err)
		return false
	}
	return true
}

// ContextString renders the last n turns as a plain text transcript for
// prompt building. Returns "" when there is no history.
func (s *Store) ContextString(ctx context.Context, userID string, n int) string {
	turns := s.Turns(ctx, userID)
	return models.TranscriptString(turns, n)
}

// Clear removes a user's history.
func (s *Store) Clear(ctx context.Context, userID string) error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Del(ctx, keyPrefix+userID).Err()
}

// Healthy reports whether the Redis backend is reachable.
func (s *Store) Healthy(ctx context.Context) bool {
	if s == nil || s.client == nil {
		return false
	}
	return s.client.Ping(ctx).Err() == nil
}

// Stats returns operational counters for diagnostics.
func (s *Store) Stats(ctx context.Context) map[string]interface{} {
	stats := map[string]interface{}{
		"enabled":              s != nil && s.client != nil,
		"active_conversations": 0,
	}
	if s == nil || s.client == nil {
		return stats
	}

	keys, err := s.client.Keys(ctx, keyPrefix+"*").Result()
	if err != nil {
		s.logger.Printf("WARNING: failed to count conversations: %v", err)
		return stats
	}
	stats["active_conversations"] = len(keys)
	return stats
}
