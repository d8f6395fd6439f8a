package session

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/felixgeelhaar/portal/internal/errors"
)

const defaultRedisPrefix = "portal:session:"

// RedisRecord stores the session under a single key so several client
// processes on one workstation pool share a login. The key expires with the
// access token when its expiry is known.
type RedisRecord struct {
	client redis.UniversalClient
	key    string
	now    func() time.Time
}

// NewRedisRecord creates a record keyed by profile (for example the OS user).
func NewRedisRecord(client redis.UniversalClient, profile string) *RedisRecord {
	if profile == "" {
		profile = "default"
	}
	return &RedisRecord{
		client: client,
		key:    defaultRedisPrefix + profile,
		now:    time.Now,
	}
}

// Key returns the Redis key used by the record.
func (r *RedisRecord) Key() string {
	return r.key
}

// Load reads the record. A missing key yields ErrNoRecord.
func (r *RedisRecord) Load(ctx context.Context) (*Session, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, ErrNoRecord
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRecordReadFailed, errors.KindTransport, "failed to read session record from redis", err)
	}

	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, errors.Wrap(errors.ErrCodeRecordReadFailed, errors.KindUnknown, "failed to parse session record from redis", err)
	}
	return p.session(), nil
}

// Save writes the record with a TTL matching the token expiry. A token that
// has already expired is not written.
func (r *RedisRecord) Save(ctx context.Context, s Session) error {
	now := r.now()
	var ttl time.Duration
	if !s.ExpiresAt.IsZero() {
		ttl = s.ExpiresAt.Sub(now)
		if ttl <= 0 {
			return r.Delete(ctx)
		}
	}

	data, err := json.Marshal(toPersisted(s, now.UTC()))
	if err != nil {
		return errors.Wrap(errors.ErrCodeRecordWriteFailed, errors.KindUnknown, "failed to encode session record", err)
	}
	if err := r.client.Set(ctx, r.key, data, ttl).Err(); err != nil {
		return errors.Wrap(errors.ErrCodeRecordWriteFailed, errors.KindTransport, "failed to write session record to redis", err)
	}
	return nil
}

// Delete removes the key.
func (r *RedisRecord) Delete(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return errors.Wrap(errors.ErrCodeRecordWriteFailed, errors.KindTransport, "failed to delete session record from redis", err)
	}
	return nil
}

var _ Record = (*RedisRecord)(nil)
