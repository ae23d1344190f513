package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/coders-clan/cv-rag-agent/internal/logger"
	"github.com/coders-clan/cv-rag-agent/internal/pkg/errs"
	"github.com/coders-clan/cv-rag-agent/internal/types"
)

// SessionStore persists conversation transcripts between turns.
type SessionStore interface {
	Load(ctx context.Context, sessionID string) (*types.ChatSession, error)
	Save(ctx context.Context, session *types.ChatSession) error
	List(ctx context.Context, limit int) ([]*types.ChatSession, error)
	Delete(ctx context.Context, sessionID string) error
	Close() error
}

type sessionStore struct {
	log      *logger.Logger
	rdb      *goredis.Client
	ttl      time.Duration
	indexKey string
}

func NewSessionStore(log *logger.Logger) (SessionStore, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	ttlHours := 24 * 7
	if v := os.Getenv("SESSION_TTL_HOURS"); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed > 0 {
			ttlHours = parsed
		}
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &sessionStore{
		log:      log.With("service", "SessionStore"),
		rdb:      rdb,
		ttl:      time.Duration(ttlHours) * time.Hour,
		indexKey: "chat:sessions",
	}, nil
}

func sessionKey(id string) string { return "chat:session:" + id }

func (s *sessionStore) Load(ctx context.Context, sessionID string) (*types.ChatSession, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, errs.ErrInvalidArgument
	}

	raw, err := s.rdb.Get(ctx, sessionKey(sessionID)).Bytes()
	if err == goredis.Nil {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session load: %w", err)
	}

	var session types.ChatSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("session decode: %w", err)
	}
	return &session, nil
}

func (s *sessionStore) Save(ctx context.Context, session *types.ChatSession) error {
	if session == nil || strings.TrimSpace(session.ID) == "" {
		return errs.ErrInvalidArgument
	}
	session.UpdatedAt = time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = session.UpdatedAt
	}

	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("session encode: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, sessionKey(session.ID), raw, s.ttl)
	pipe.ZAdd(ctx, s.indexKey, goredis.Z{
		Score:  float64(session.UpdatedAt.UnixMilli()),
		Member: session.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("session save: %w", err)
	}
	return nil
}

func (s *sessionStore) List(ctx context.Context, limit int) ([]*types.ChatSession, error) {
	if limit <= 0 {
		limit = 50
	}

	ids, err := s.rdb.ZRevRange(ctx, s.indexKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("session list: %w", err)
	}

	out := make([]*types.ChatSession, 0, len(ids))
	for _, id := range ids {
		session, err := s.Load(ctx, id)
		if err == errs.ErrNotFound {
			// Expired value, drop the stale index entry.
			_ = s.rdb.ZRem(ctx, s.indexKey, id).Err()
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, session)
	}
	return out, nil
}

func (s *sessionStore) Delete(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return errs.ErrInvalidArgument
	}

	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, sessionKey(sessionID))
	pipe.ZRem(ctx, s.indexKey, sessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("session delete: %w", err)
	}
	return nil
}

func (s *sessionStore) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}
