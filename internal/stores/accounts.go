package stores

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/civicpulse/authcore/internal/accounts"
	"github.com/civicpulse/authcore/password"
	"github.com/redis/go-redis/v9"
)

const maxWatchRetries = 8

// createAccountLua claims the identity index and writes the account hash.
// KEYS[1] = account key, KEYS[2] = identity key, KEYS[3] = unverified set
// ARGV = id, identity, display, cred, verified, role, created
var createAccountLua = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
if redis.call('SETNX', KEYS[2], ARGV[1]) == 0 then
  return 0
end
redis.call('HSET', KEYS[1],
  'id', ARGV[1], 'identity', ARGV[2], 'display', ARGV[3], 'cred', ARGV[4],
  'verified', ARGV[5], 'role', ARGV[6], 'failed', '0', 'locked', '', 'last', '',
  'created', ARGV[7], 'version', '1')
if ARGV[5] == '0' then
  redis.call('ZADD', KEYS[3], ARGV[7], ARGV[1])
end
return 1
`)

// markVerifiedLua returns -1 when missing, 0 when already verified, 1 when flipped.
var markVerifiedLua = redis.NewScript(`
local v = redis.call('HGET', KEYS[1], 'verified')
if not v then
  return -1
end
if v == '1' then
  return 0
end
redis.call('HSET', KEYS[1], 'verified', '1')
redis.call('HINCRBY', KEYS[1], 'version', 1)
redis.call('ZREM', KEYS[2], ARGV[1])
return 1
`)

var setCredentialLua = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
redis.call('HSET', KEYS[1], 'cred', ARGV[1])
redis.call('HINCRBY', KEYS[1], 'version', 1)
return 1
`)

// changeIdentityLua re-points the identity index.
// KEYS[1] = account key, KEYS[2] = new identity key, KEYS[3] = old identity key
// ARGV[1] = id, ARGV[2] = new identity, ARGV[3] = old identity
// Returns -2 when the identity moved since it was read, -1 missing, 0 taken,
// 1 done.
var changeIdentityLua = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'identity')
if not cur then
  return -1
end
if cur ~= ARGV[3] then
  return -2
end
local owner = redis.call('GET', KEYS[2])
if owner and owner ~= ARGV[1] then
  return 0
end
if redis.call('GET', KEYS[3]) == ARGV[1] then
  redis.call('DEL', KEYS[3])
end
redis.call('SET', KEYS[2], ARGV[1])
redis.call('HSET', KEYS[1], 'identity', ARGV[2])
redis.call('HINCRBY', KEYS[1], 'version', 1)
return 1
`)

// deleteUnverifiedLua removes one account if it is still unverified and
// still owns the identity it was read with.
// KEYS[1] = account key, KEYS[2] = unverified set, KEYS[3] = identity key
// ARGV[1] = id, ARGV[2] = identity
var deleteUnverifiedLua = redis.NewScript(`
redis.call('ZREM', KEYS[2], ARGV[1])
local f = redis.call('HMGET', KEYS[1], 'verified', 'identity')
if f[1] ~= '0' or f[2] ~= ARGV[2] then
  return 0
end
redis.call('DEL', KEYS[1])
if redis.call('GET', KEYS[3]) == ARGV[1] then
  redis.call('DEL', KEYS[3])
end
return 1
`)

// RedisAccountStore implements accounts.Store.
type RedisAccountStore struct {
	redis redis.UniversalClient
	keys  keyspace
}

// NewRedisAccountStore keeps accounts under prefix. All account keys share
// one hash slot.
func NewRedisAccountStore(client redis.UniversalClient, prefix string) *RedisAccountStore {
	return &RedisAccountStore{redis: client, keys: newKeyspace(prefix)}
}

// Create stores a new record.
func (s *RedisAccountStore) Create(ctx context.Context, acct accounts.Account) error {
	if !password.LooksHashed(acct.CredentialHash) {
		return accounts.ErrUnhashedCredential
	}
	identity := accounts.NormalizeIdentity(acct.Identity)
	role := acct.Role
	if role == "" {
		role = accounts.RoleStandard
	}

	ok, err := createAccountLua.Run(ctx, s.redis,
		[]string{s.keys.account(acct.ID), s.keys.identity(identity), s.keys.unverified()},
		acct.ID,
		identity,
		acct.DisplayName,
		acct.CredentialHash,
		boolFlag(acct.Verified),
		string(role),
		acct.CreatedAt.UnixMilli(),
	).Int()
	if err != nil {
		return unavailable(err)
	}
	if ok == 0 {
		return accounts.ErrIdentityTaken
	}
	return nil
}

// GetByIdentity looks an account up by normalized identity.
func (s *RedisAccountStore) GetByIdentity(ctx context.Context, identity string) (accounts.Account, error) {
	id, err := s.redis.Get(ctx, s.keys.identity(accounts.NormalizeIdentity(identity))).Result()
	if errors.Is(err, redis.Nil) {
		return accounts.Account{}, accounts.ErrNotFound
	}
	if err != nil {
		return accounts.Account{}, unavailable(err)
	}
	return s.GetByID(ctx, id)
}

// GetByID looks an account up by ID.
func (s *RedisAccountStore) GetByID(ctx context.Context, id string) (accounts.Account, error) {
	fields, err := s.redis.HGetAll(ctx, s.keys.account(id)).Result()
	if err != nil {
		return accounts.Account{}, unavailable(err)
	}
	if len(fields) == 0 {
		return accounts.Account{}, accounts.ErrNotFound
	}
	acct, err := decodeAccount(fields)
	if err != nil {
		return accounts.Account{}, unavailable(err)
	}
	return acct, nil
}

// MarkVerified sets Verified and reports whether it changed.
func (s *RedisAccountStore) MarkVerified(ctx context.Context, id string) (bool, error) {
	n, err := markVerifiedLua.Run(ctx, s.redis, []string{s.keys.account(id), s.keys.unverified()}, id).Int()
	if err != nil {
		return false, unavailable(err)
	}
	if n < 0 {
		return false, accounts.ErrNotFound
	}
	return n == 1, nil
}

// SetCredentialHash replaces the stored password hash.
func (s *RedisAccountStore) SetCredentialHash(ctx context.Context, id, hash string) error {
	if !password.LooksHashed(hash) {
		return accounts.ErrUnhashedCredential
	}
	n, err := setCredentialLua.Run(ctx, s.redis, []string{s.keys.account(id)}, hash).Int()
	if err != nil {
		return unavailable(err)
	}
	if n == 0 {
		return accounts.ErrNotFound
	}
	return nil
}

// UpdateLockout is a WATCH/MULTI compare-and-swap on the version field.
func (s *RedisAccountStore) UpdateLockout(ctx context.Context, id string, expectedVersion int64, st accounts.LockoutState) (accounts.Account, error) {
	key := s.keys.account(id)
	var out accounts.Account

	for i := 0; i < maxWatchRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			fields, err := tx.HGetAll(ctx, key).Result()
			if err != nil {
				return err
			}
			if len(fields) == 0 {
				return accounts.ErrNotFound
			}
			cur, err := decodeAccount(fields)
			if err != nil {
				return err
			}
			if cur.Version != expectedVersion {
				return accounts.ErrVersionConflict
			}

			next := cur.WithLockout(st)
			next.Version = cur.Version + 1
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.HSet(ctx, key,
					"failed", strconv.Itoa(next.FailedAttempts),
					"locked", millisOrEmpty(next.LockedUntil),
					"last", millisOrEmpty(next.LastAuthenticatedAt),
					"version", strconv.FormatInt(next.Version, 10),
				)
				return nil
			})
			if err == nil {
				out = next
			}
			return err
		}, key)

		switch {
		case err == nil:
			return out, nil
		case errors.Is(err, redis.TxFailedErr):
			// Lost the race between WATCH and EXEC; re-read and re-check.
			continue
		case errors.Is(err, accounts.ErrNotFound), errors.Is(err, accounts.ErrVersionConflict):
			return accounts.Account{}, err
		default:
			return accounts.Account{}, unavailable(err)
		}
	}
	return accounts.Account{}, accounts.ErrVersionConflict
}

// ChangeIdentity reads the current identity first so the script can name
// every key it touches.
func (s *RedisAccountStore) ChangeIdentity(ctx context.Context, id, newIdentity string) error {
	newIdentity = accounts.NormalizeIdentity(newIdentity)
	for i := 0; i < maxWatchRetries; i++ {
		old, err := s.redis.HGet(ctx, s.keys.account(id), "identity").Result()
		if errors.Is(err, redis.Nil) {
			return accounts.ErrNotFound
		}
		if err != nil {
			return unavailable(err)
		}

		n, err := changeIdentityLua.Run(ctx, s.redis,
			[]string{s.keys.account(id), s.keys.identity(newIdentity), s.keys.identity(old)},
			id, newIdentity, old,
		).Int()
		if err != nil {
			return unavailable(err)
		}
		switch n {
		case -2:
			continue
		case -1:
			return accounts.ErrNotFound
		case 0:
			return accounts.ErrIdentityTaken
		}
		return nil
	}
	return accounts.ErrVersionConflict
}

// DeleteUnverifiedBefore removes unverified accounts created before cutoff.
func (s *RedisAccountStore) DeleteUnverifiedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	ids, err := s.redis.ZRangeByScore(ctx, s.keys.unverified(), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, unavailable(err)
	}

	removed := 0
	for _, id := range ids {
		identity, err := s.redis.HGet(ctx, s.keys.account(id), "identity").Result()
		if errors.Is(err, redis.Nil) {
			// index entry without an account
			if err := s.redis.ZRem(ctx, s.keys.unverified(), id).Err(); err != nil {
				return removed, unavailable(err)
			}
			continue
		}
		if err != nil {
			return removed, unavailable(err)
		}

		n, err := deleteUnverifiedLua.Run(ctx, s.redis,
			[]string{s.keys.account(id), s.keys.unverified(), s.keys.identity(identity)},
			id, identity,
		).Int()
		if err != nil {
			return removed, unavailable(err)
		}
		removed += n
	}
	return removed, nil
}

func decodeAccount(f map[string]string) (accounts.Account, error) {
	failed, err := strconv.Atoi(f["failed"])
	if err != nil {
		return accounts.Account{}, fmt.Errorf("account failed counter: %w", err)
	}
	version, err := strconv.ParseInt(f["version"], 10, 64)
	if err != nil {
		return accounts.Account{}, fmt.Errorf("account version: %w", err)
	}
	created, err := parseMillis(f["created"])
	if err != nil {
		return accounts.Account{}, fmt.Errorf("account created: %w", err)
	}
	locked, err := optionalMillis(f["locked"])
	if err != nil {
		return accounts.Account{}, fmt.Errorf("account locked until: %w", err)
	}
	last, err := optionalMillis(f["last"])
	if err != nil {
		return accounts.Account{}, fmt.Errorf("account last authenticated: %w", err)
	}

	return accounts.Account{
		ID:                  f["id"],
		Identity:            f["identity"],
		DisplayName:         f["display"],
		CredentialHash:      f["cred"],
		Verified:            f["verified"] == "1",
		Role:                accounts.Role(f["role"]),
		FailedAttempts:      failed,
		LockedUntil:         locked,
		LastAuthenticatedAt: last,
		CreatedAt:           created,
		Version:             version,
	}, nil
}

func optionalMillis(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := parseMillis(v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func millisOrEmpty(t *time.Time) string {
	if t == nil {
		return ""
	}
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", accounts.ErrStoreUnavailable, err)
}
