package stores

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/civicpulse/authcore/internal/otp"
	"github.com/redis/go-redis/v9"
)

// DefaultCodeRetention keeps a spent or expired code around long enough to
// be reported as such.
const DefaultCodeRetention = time.Hour

// createCodeLua replaces the pair's record unless it is inside the cooldown.
// KEYS[1] = code key
// ARGV[1] = notBefore (unix ms)
// ARGV[2..10] = id, identity, purpose, hash, created, expires, ip, ua, by
// ARGV[11] = key ttl (ms)
//
// Returns -1 when written, or the existing record's created ms when refused.
var createCodeLua = redis.NewScript(`
local created = redis.call('HGET', KEYS[1], 'created')
if created and tonumber(created) > tonumber(ARGV[1]) then
  return tonumber(created)
end
redis.call('DEL', KEYS[1])
redis.call('HSET', KEYS[1],
  'id', ARGV[2], 'identity', ARGV[3], 'purpose', ARGV[4], 'hash', ARGV[5],
  'attempts', '0', 'created', ARGV[6], 'expires', ARGV[7], 'ip', ARGV[8], 'ua', ARGV[9],
  'by', ARGV[10])
redis.call('PEXPIRE', KEYS[1], ARGV[11])
return -1
`)

// attemptCodeLua checks expiry, then the attempt budget, then counts.
// KEYS[1] = code key
// ARGV[1] = now (unix ms)
// ARGV[2] = max attempts
//
// Returns {"absent"|"expired"|"exhausted"} or {"counted", field, value, ...}.
var attemptCodeLua = redis.NewScript(`
local flat = redis.call('HGETALL', KEYS[1])
if #flat == 0 then
  return {'absent'}
end
local rec = {}
for i = 1, #flat, 2 do
  rec[flat[i]] = flat[i + 1]
end
if tonumber(ARGV[1]) >= tonumber(rec['expires']) then
  redis.call('DEL', KEYS[1])
  return {'expired'}
end
local attempts = tonumber(rec['attempts'])
if attempts >= tonumber(ARGV[2]) then
  redis.call('DEL', KEYS[1])
  return {'exhausted'}
end
attempts = attempts + 1
redis.call('HSET', KEYS[1], 'attempts', tostring(attempts), 'last', ARGV[1])
local out = {'counted'}
for _, v in ipairs(redis.call('HGETALL', KEYS[1])) do
  out[#out + 1] = v
end
return out
`)

// deleteCodeLua deletes the record only if it is still the one with ID ARGV[1].
var deleteCodeLua = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'id') == ARGV[1] then
  redis.call('DEL', KEYS[1])
  return 1
end
return 0
`)

// RedisCodeStore implements otp.Store.
type RedisCodeStore struct {
	redis     redis.UniversalClient
	keys      keyspace
	retention time.Duration
}

// CodeStoreOption customizes a RedisCodeStore.
type CodeStoreOption func(*RedisCodeStore)

// WithCodeRetention sets how long a record outlives its expiry.
func WithCodeRetention(d time.Duration) CodeStoreOption {
	return func(s *RedisCodeStore) {
		if d > 0 {
			s.retention = d
		}
	}
}

// NewRedisCodeStore keeps codes under prefix. client may be a cluster client.
func NewRedisCodeStore(client redis.UniversalClient, prefix string, opts ...CodeStoreOption) *RedisCodeStore {
	s := &RedisCodeStore{
		redis:     client,
		keys:      newKeyspace(prefix),
		retention: DefaultCodeRetention,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create supersedes the pair's record unless it is newer than notBefore.
func (s *RedisCodeStore) Create(ctx context.Context, rec otp.Record, notBefore time.Time) error {
	ttl := rec.ExpiresAt.Sub(rec.CreatedAt) + s.retention
	res, err := createCodeLua.Run(ctx, s.redis,
		[]string{s.keys.code(rec.Identity, rec.Purpose)},
		notBefore.UnixMilli(),
		rec.ID,
		rec.Identity,
		string(rec.Purpose),
		string(rec.CodeHash[:]),
		rec.CreatedAt.UnixMilli(),
		rec.ExpiresAt.UnixMilli(),
		rec.Metadata.OriginAddress,
		rec.Metadata.ClientDescriptor,
		rec.Metadata.RequestedBy,
		ttl.Milliseconds(),
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", otp.ErrStoreUnavailable, err)
	}
	if res >= 0 {
		return &otp.CooldownError{CreatedAt: time.UnixMilli(res).UTC()}
	}
	return nil
}

// Current returns the pair's record in any state, or nil.
func (s *RedisCodeStore) Current(ctx context.Context, identity string, purpose otp.Purpose) (*otp.Record, error) {
	fields, err := s.redis.HGetAll(ctx, s.keys.code(identity, purpose)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", otp.ErrStoreUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	rec, err := decodeCode(fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", otp.ErrStoreUnavailable, err)
	}
	return &rec, nil
}

// RegisterAttempt counts one verification attempt atomically.
func (s *RedisCodeStore) RegisterAttempt(ctx context.Context, identity string, purpose otp.Purpose, now time.Time, maxAttempts int) (otp.AttemptResult, error) {
	raw, err := attemptCodeLua.Run(ctx, s.redis,
		[]string{s.keys.code(identity, purpose)},
		now.UnixMilli(),
		maxAttempts,
	).Slice()
	if err != nil {
		return otp.AttemptResult{}, fmt.Errorf("%w: %v", otp.ErrStoreUnavailable, err)
	}
	if len(raw) == 0 {
		return otp.AttemptResult{}, fmt.Errorf("%w: empty attempt reply", otp.ErrStoreUnavailable)
	}

	switch raw[0] {
	case "absent":
		return otp.AttemptResult{Outcome: otp.AttemptAbsent}, nil
	case "expired":
		return otp.AttemptResult{Outcome: otp.AttemptExpired}, nil
	case "exhausted":
		return otp.AttemptResult{Outcome: otp.AttemptExhausted}, nil
	case "counted":
	default:
		return otp.AttemptResult{}, fmt.Errorf("%w: unexpected attempt reply %v", otp.ErrStoreUnavailable, raw[0])
	}

	fields := make(map[string]string, (len(raw)-1)/2)
	for i := 1; i+1 < len(raw); i += 2 {
		k, _ := raw[i].(string)
		v, _ := raw[i+1].(string)
		fields[k] = v
	}
	rec, err := decodeCode(fields)
	if err != nil {
		return otp.AttemptResult{}, fmt.Errorf("%w: %v", otp.ErrStoreUnavailable, err)
	}
	return otp.AttemptResult{Outcome: otp.AttemptCounted, Record: rec}, nil
}

// Delete removes the pair's record if its ID is still id.
func (s *RedisCodeStore) Delete(ctx context.Context, identity string, purpose otp.Purpose, id string) (bool, error) {
	n, err := deleteCodeLua.Run(ctx, s.redis, []string{s.keys.code(identity, purpose)}, id).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", otp.ErrStoreUnavailable, err)
	}
	return n == 1, nil
}

func decodeCode(f map[string]string) (otp.Record, error) {
	var rec otp.Record
	if len(f["hash"]) != len(rec.CodeHash) {
		return rec, errors.New("code record hash has wrong size")
	}
	attempts, err := strconv.Atoi(f["attempts"])
	if err != nil {
		return rec, fmt.Errorf("code record attempts: %w", err)
	}
	created, err := parseMillis(f["created"])
	if err != nil {
		return rec, fmt.Errorf("code record created: %w", err)
	}
	expires, err := parseMillis(f["expires"])
	if err != nil {
		return rec, fmt.Errorf("code record expires: %w", err)
	}

	rec = otp.Record{
		ID:        f["id"],
		Identity:  f["identity"],
		Purpose:   otp.Purpose(f["purpose"]),
		Attempts:  attempts,
		CreatedAt: created,
		ExpiresAt: expires,
		Metadata:  otp.Metadata{OriginAddress: f["ip"], ClientDescriptor: f["ua"], RequestedBy: f["by"]},
	}
	copy(rec.CodeHash[:], f["hash"])
	if v := f["last"]; v != "" {
		last, err := parseMillis(v)
		if err != nil {
			return rec, fmt.Errorf("code record last attempt: %w", err)
		}
		rec.LastAttemptAt = &last
	}
	return rec, nil
}

func parseMillis(v string) (time.Time, error) {
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}
