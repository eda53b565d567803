package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/ussd_gateway/internal/telco"
)

const (
	redisKeyPrefix = "ussd:session:"
	redisIndexKey  = "ussd:sessions"
)

// RedisStore shares sessions between gateway replicas. Each session is a JSON
// document whose TTL equals the idle timeout, so Redis expires abandoned
// dialogs on its own; Sweep only prunes the index.
type RedisStore struct {
	cache *redis.Client
	idle  time.Duration
	now   Clock
}

// NewRedisStore builds a Redis-backed store. A nil clock uses the system clock.
func NewRedisStore(cache *redis.Client, idle time.Duration, now Clock) *RedisStore {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	if now == nil {
		now = systemClock
	}
	return &RedisStore{cache: cache, idle: idle, now: now}
}

type record struct {
	ID             string          `json:"id"`
	Phone          string          `json:"phone"`
	Provider       string          `json:"provider"`
	IdentityID     string          `json:"identity_id,omitempty"`
	Stage          string          `json:"stage"`
	Flow           string          `json:"flow,omitempty"`
	Draft          json.RawMessage `json:"draft,omitempty"`
	LastText       string          `json:"last_text"`
	LastMessage    string          `json:"last_message"`
	CreatedAt      time.Time       `json:"created_at"`
	LastActivityAt time.Time       `json:"last_activity_at"`
}

func encode(s Session) ([]byte, error) {
	rec := record{
		ID:             s.ID,
		Phone:          s.Phone,
		Provider:       string(s.Provider),
		IdentityID:     s.IdentityID,
		Stage:          string(s.Stage),
		LastText:       s.LastText,
		LastMessage:    s.LastMessage,
		CreatedAt:      s.CreatedAt,
		LastActivityAt: s.LastActivityAt,
	}
	if s.Draft != nil {
		raw, err := json.Marshal(s.Draft)
		if err != nil {
			return nil, fmt.Errorf("encode draft: %w", err)
		}
		rec.Flow, rec.Draft = string(s.Draft.Flow()), raw
	}
	return json.Marshal(rec)
}

func decode(payload []byte) (Session, error) {
	var rec record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	draft, err := decodeDraft(Flow(rec.Flow), rec.Draft)
	if err != nil {
		return Session{}, err
	}
	return Session{
		ID:             rec.ID,
		Phone:          rec.Phone,
		Provider:       telco.Provider(rec.Provider),
		IdentityID:     rec.IdentityID,
		Stage:          Stage(rec.Stage),
		Draft:          draft,
		LastText:       rec.LastText,
		LastMessage:    rec.LastMessage,
		CreatedAt:      rec.CreatedAt,
		LastActivityAt: rec.LastActivityAt,
	}, nil
}

func (r *RedisStore) load(ctx context.Context, id string) (Session, error) {
	payload, err := r.cache.Get(ctx, redisKeyPrefix+id).Bytes()
	if err == redis.Nil {
		return Session{}, ErrSessionExpired
	}
	if err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	s, err := decode(payload)
	if err != nil {
		return Session{}, err
	}
	if s.Expired(r.now(), r.idle) {
		_ = r.Remove(ctx, id)
		return Session{}, ErrSessionExpired
	}
	return s, nil
}

func (r *RedisStore) GetOrCreate(ctx context.Context, id, phone string, provider telco.Provider) (Session, bool, error) {
	s, err := r.load(ctx, id)
	if err == nil {
		return s, false, nil
	}
	if err != ErrSessionExpired {
		return Session{}, false, err
	}

	s = New(id, phone, provider, r.now())
	payload, err := encode(s)
	if err != nil {
		return Session{}, false, err
	}
	pipe := r.cache.TxPipeline()
	pipe.Set(ctx, redisKeyPrefix+id, payload, r.idle)
	pipe.SAdd(ctx, redisIndexKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return Session{}, false, fmt.Errorf("create session: %w", err)
	}
	return s, true, nil
}

func (r *RedisStore) Get(ctx context.Context, id string) (Session, error) {
	return r.load(ctx, id)
}

func (r *RedisStore) Touch(ctx context.Context, id string) error {
	s, err := r.load(ctx, id)
	if err != nil {
		return err
	}
	return r.Save(ctx, s)
}

func (r *RedisStore) Save(ctx context.Context, s Session) error {
	s.LastActivityAt = r.now()
	payload, err := encode(s)
	if err != nil {
		return err
	}
	ok, err := r.cache.SetXX(ctx, redisKeyPrefix+s.ID, payload, r.idle).Result()
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	if !ok {
		return ErrSessionExpired
	}
	return nil
}

func (r *RedisStore) Remove(ctx context.Context, id string) error {
	pipe := r.cache.TxPipeline()
	pipe.Del(ctx, redisKeyPrefix+id)
	pipe.SRem(ctx, redisIndexKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

func (r *RedisStore) Count(ctx context.Context) (int, error) {
	live, _, err := r.scan(ctx)
	return len(live), err
}

func (r *RedisStore) Snapshot(ctx context.Context) ([]Summary, error) {
	live, _, err := r.scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(live))
	for _, s := range live {
		out = append(out, s.summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Sweep drops index members whose documents are gone or idle too long.
func (r *RedisStore) Sweep(ctx context.Context) (int, error) {
	_, stale, err := r.scan(ctx)
	if err != nil {
		return 0, err
	}
	for _, id := range stale {
		if err := r.Remove(ctx, id); err != nil {
			return 0, err
		}
	}
	return len(stale), nil
}

// scan reads every indexed session, splitting them into live sessions and
// stale ids.
func (r *RedisStore) scan(ctx context.Context) ([]Session, []string, error) {
	ids, err := r.cache.SMembers(ctx, redisIndexKey).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("list sessions: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = redisKeyPrefix + id
	}
	values, err := r.cache.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("load sessions: %w", err)
	}

	now := r.now()
	var (
		live  []Session
		stale []string
	)
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		s, err := decode([]byte(str))
		if err != nil || s.Expired(now, r.idle) {
			stale = append(stale, ids[i])
			continue
		}
		live = append(live, s)
	}
	return live, stale, nil
}
