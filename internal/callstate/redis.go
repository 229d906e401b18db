package callstate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the two softphone slots in Redis, keyed per user so one
// deployment serves every agent. A generous key TTL bounds garbage; the real
// staleness decision happens on load via decodeCall.
type RedisStore struct {
	rdb   *redis.Client
	clock func() time.Time
	log   *slog.Logger
}

// Key TTLs. Current-call keys outlive StaleAfter so the load-side expiry
// rule, not Redis eviction, decides staleness near the boundary.
const (
	currentCallTTL = 2 * time.Hour
	pendingReqTTL  = 24 * time.Hour
)

func NewRedisStore(rdb *redis.Client, log *slog.Logger) *RedisStore {
	if log == nil {
		log = slog.Default()
	}
	return &RedisStore{rdb: rdb, clock: time.Now, log: log}
}

func currentKey(userID string) string { return fmt.Sprintf("callstate:%s:current", userID) }
func pendingKey(userID string) string { return fmt.Sprintf("callstate:%s:pending", userID) }

func (s *RedisStore) SaveCurrentCall(ctx context.Context, userID string, call *Call) {
	if call == nil {
		if err := s.rdb.Del(ctx, currentKey(userID)).Err(); err != nil {
			s.log.Debug("callstate clear failed", "user_id", userID, "err", err)
		}
		return
	}
	data, err := json.Marshal(call)
	if err != nil {
		s.log.Debug("callstate marshal failed", "user_id", userID, "err", err)
		return
	}
	if err := s.rdb.Set(ctx, currentKey(userID), data, currentCallTTL).Err(); err != nil {
		s.log.Debug("callstate save failed", "user_id", userID, "err", err)
	}
}

func (s *RedisStore) LoadCurrentCall(ctx context.Context, userID string) *Call {
	data, err := s.rdb.Get(ctx, currentKey(userID)).Bytes()
	if err != nil {
		return nil
	}
	call, ok := decodeCall(data, s.clock())
	if !ok {
		_ = s.rdb.Del(ctx, currentKey(userID)).Err()
		return nil
	}
	return call
}

func (s *RedisStore) SavePendingRequest(ctx context.Context, userID string, req *PendingRequest) {
	if req == nil {
		s.ClearPendingRequest(ctx, userID)
		return
	}
	data, err := json.Marshal(req)
	if err != nil {
		s.log.Debug("pending request marshal failed", "user_id", userID, "err", err)
		return
	}
	if err := s.rdb.Set(ctx, pendingKey(userID), data, pendingReqTTL).Err(); err != nil {
		s.log.Debug("pending request save failed", "user_id", userID, "err", err)
	}
}

func (s *RedisStore) LoadPendingRequest(ctx context.Context, userID string) *PendingRequest {
	data, err := s.rdb.Get(ctx, pendingKey(userID)).Bytes()
	if err != nil {
		return nil
	}
	req, ok := decodePending(data)
	if !ok {
		s.ClearPendingRequest(ctx, userID)
		return nil
	}
	return req
}

func (s *RedisStore) ClearPendingRequest(ctx context.Context, userID string) {
	if err := s.rdb.Del(ctx, pendingKey(userID)).Err(); err != nil {
		s.log.Debug("pending request clear failed", "user_id", userID, "err", err)
	}
}
