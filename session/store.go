package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/shrimay18/rapidcare-auth/internal"
)

// ErrRedisUnavailable wraps transport-level Redis failures.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrSessionNotFound is returned when a session ID resolves to nothing.
var ErrSessionNotFound = errors.New("refresh session not found")

// RotateOutcome classifies the result of a rotation attempt.
type RotateOutcome uint8

const (
	// RotateInvalid covers unknown tokens and sessions that are revoked,
	// exhausted, or expired. The caller rejects the request without any
	// further side effects.
	RotateInvalid RotateOutcome = iota
	// RotateReused means the presented token resolved to a retired session,
	// or its family held more than one ACTIVE session. The whole family has
	// already been revoked by the time the caller sees this.
	RotateReused
	// RotateOK means the session was retired and a successor written.
	RotateOK
)

func (o RotateOutcome) String() string {
	switch o {
	case RotateInvalid:
		return "invalid"
	case RotateReused:
		return "reused"
	case RotateOK:
		return "ok"
	}
	return "unknown"
}

// RotateResult carries the outcome of a rotation attempt. Session, RawToken
// and SessionID are set only on RotateOK; AccountID and FamilyID are set
// whenever the token resolved to a known session, so callers can audit
// invalid and reused attempts.
type RotateResult struct {
	Outcome   RotateOutcome
	Session   *Session
	RawToken  string
	AccountID string
	FamilyID  string
	// RevokedCount is the number of family sessions terminated on reuse.
	RevokedCount int64
}

// CreateParams describes a new root session. FamilyID and PreviousSessionID
// are left empty for login-minted sessions; Rotate fills them for successors.
type CreateParams struct {
	AccountID  string
	Device     Device
	TTL        time.Duration
	UsageLimit int64
}

// Lua script result codes, first element of the rotate script reply.
const (
	rotateStatusNotFound int64 = 0
	rotateStatusInvalid  int64 = 1
	rotateStatusReused   int64 = 2
	rotateStatusRotated  int64 = 3
)

// rotateScript is the whole rotation state machine. It resolves the token
// digest, rejects terminal and expired sessions, detects replays (token on a
// ROTATED session, or more than one ACTIVE session in the family) and revokes
// the family in-script, or retires the session and writes its successor.
// Running it as one script makes concurrent rotations of the same token
// serialize: exactly one observes ACTIVE.
const rotateScript = `
local prefix = ARGV[1]
local now = tonumber(ARGV[2])

local sid = redis.call("GET", KEYS[1])
if not sid then
  return {0}
end
local skey = prefix .. "s:" .. sid
if redis.call("EXISTS", skey) == 0 then
  return {0}
end

local vals = redis.call("HMGET", skey, "status", "family", "account", "expires_at", "usage_count", "usage_limit", "fam_created_at")
local status = tonumber(vals[1])
local family = vals[2]
local account = vals[3]
local expires = tonumber(vals[4])
local usage = tonumber(vals[5])
local limit = tonumber(vals[6])
local fam_created = vals[7]
local fkey = prefix .. "f:" .. family

local function revoke_family()
  local members = redis.call("SMEMBERS", fkey)
  local n = 0
  for _, m in ipairs(members) do
    local mkey = prefix .. "s:" .. m
    if redis.call("EXISTS", mkey) == 1 then
      local mst = tonumber(redis.call("HGET", mkey, "status"))
      if mst == 0 or mst == 1 then
        redis.call("HSET", mkey, "status", 2, "revoked_at", now, "revoked_by", "system", "revoke_reason", "token reuse detected")
        n = n + 1
      end
    end
  end
  return n
end

if status == 1 then
  local n = revoke_family()
  return {2, account, family, n}
end
if status ~= 0 then
  return {1, account, family}
end
if expires <= now then
  redis.call("HSET", skey, "status", 4)
  return {1, account, family}
end
if usage >= limit then
  redis.call("HSET", skey, "status", 3)
  return {1, account, family}
end

local members = redis.call("SMEMBERS", fkey)
local active = 0
for _, m in ipairs(members) do
  local mkey = prefix .. "s:" .. m
  if redis.call("EXISTS", mkey) == 1 then
    if tonumber(redis.call("HGET", mkey, "status")) == 0 then
      active = active + 1
    end
  end
end
if active > 1 then
  local n = revoke_family()
  return {2, account, family, n}
end

redis.call("HSET", skey, "status", 1, "last_used_at", now)

local did, dname, dtype = ARGV[7], ARGV[8], ARGV[9]
local ua, ip = ARGV[10], ARGV[11]
if did == "" then
  local dev = redis.call("HMGET", skey, "device_id", "device_name", "device_type", "user_agent", "ip")
  did = dev[1] or ""
  dname = dev[2] or ""
  dtype = dev[3] or ""
  if ua == "" then ua = dev[4] or "" end
  if ip == "" then ip = dev[5] or "" end
end

local newsid = ARGV[3]
local nkey = prefix .. "s:" .. newsid
redis.call("HSET", nkey,
  "account", account,
  "token_hash", ARGV[4],
  "device_id", did,
  "device_name", dname,
  "device_type", dtype,
  "user_agent", ua,
  "ip", ip,
  "family", family,
  "prev", sid,
  "fam_created_at", fam_created,
  "status", 0,
  "expires_at", ARGV[5],
  "usage_count", usage + 1,
  "usage_limit", limit,
  "created_at", now,
  "last_used_at", now)

local ttl = tonumber(ARGV[5]) - now + tonumber(ARGV[6])
redis.call("EXPIRE", nkey, ttl)
redis.call("SET", prefix .. "t:" .. ARGV[4], newsid, "EX", ttl)
redis.call("SADD", fkey, newsid)
redis.call("EXPIRE", fkey, ttl)
redis.call("SADD", prefix .. "u:" .. account, newsid)
redis.call("EXPIRE", prefix .. "u:" .. account, ttl)

return {3, account, family, usage + 1, newsid}
`

var rotateLua = redis.NewScript(rotateScript)

// revokeOneScript marks a single session REVOKED if it is still ACTIVE.
// KEYS[1] session key, ARGV: now, revoked_by, reason.
const revokeOneScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
if tonumber(redis.call("HGET", KEYS[1], "status")) ~= 0 then
  return 0
end
redis.call("HSET", KEYS[1], "status", 2, "revoked_at", ARGV[1], "revoked_by", ARGV[2], "revoke_reason", ARGV[3])
return 1
`

var revokeOneLua = redis.NewScript(revokeOneScript)

// revokeSetScript revokes every ACTIVE session in an index set, optionally
// filtered by device ID. KEYS[1] set key, ARGV: prefix, now, revoked_by,
// reason, device filter ("" for all).
const revokeSetScript = `
local members = redis.call("SMEMBERS", KEYS[1])
local n = 0
for _, m in ipairs(members) do
  local skey = ARGV[1] .. "s:" .. m
  if redis.call("EXISTS", skey) == 1 then
    if tonumber(redis.call("HGET", skey, "status")) == 0 then
      if ARGV[5] == "" or redis.call("HGET", skey, "device_id") == ARGV[5] then
        redis.call("HSET", skey, "status", 2, "revoked_at", ARGV[2], "revoked_by", ARGV[3], "revoke_reason", ARGV[4])
        n = n + 1
      end
    end
  end
end
return n
`

var revokeSetLua = redis.NewScript(revokeSetScript)

// Store persists refresh sessions in Redis. All methods are safe for
// concurrent use. Every operation is bounded by the store timeout when one
// is configured.
type Store struct {
	redis     redis.UniversalClient
	prefix    string
	retention time.Duration
	timeout   time.Duration
}

// NewStore builds a session store. prefix namespaces all keys, retention is
// how long terminal records stay resolvable past their expiry for replay
// detection, and timeout bounds each Redis round trip (0 disables).
func NewStore(redis redis.UniversalClient, prefix string, retention, timeout time.Duration) *Store {
	return &Store{
		redis:     redis,
		prefix:    prefix,
		retention: retention,
		timeout:   timeout,
	}
}

func (s *Store) sessionKey(sessionID string) string {
	return s.prefix + "s:" + sessionID
}

func (s *Store) tokenKey(tokenHash string) string {
	return s.prefix + "t:" + tokenHash
}

func (s *Store) familyKey(familyID string) string {
	return s.prefix + "f:" + familyID
}

func (s *Store) accountKey(accountID string) string {
	return s.prefix + "u:" + accountID
}

func (s *Store) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Store) recordTTL(expiresAt, now int64) time.Duration {
	ttl := time.Duration(expiresAt-now)*time.Second + s.retention
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

// Create mints a new root session for an account and returns the raw token
// alongside the stored record. The raw token leaves this method exactly once
// and is never persisted.
func (s *Store) Create(ctx context.Context, p CreateParams) (string, *Session, error) {
	raw, err := internal.NewRefreshToken()
	if err != nil {
		return "", nil, err
	}

	now := time.Now().Unix()
	sess := &Session{
		SessionID:       uuid.NewString(),
		AccountID:       p.AccountID,
		TokenHash:       internal.DigestHex(raw),
		Device:          p.Device,
		FamilyID:        uuid.NewString(),
		FamilyCreatedAt: now,
		Status:          StatusActive,
		ExpiresAt:       now + int64(p.TTL/time.Second),
		UsageCount:      0,
		UsageLimit:      p.UsageLimit,
		CreatedAt:       now,
		LastUsedAt:      now,
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	ttl := s.recordTTL(sess.ExpiresAt, now)
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.sessionKey(sess.SessionID), sessionFields(sess)...)
		pipe.Expire(ctx, s.sessionKey(sess.SessionID), ttl)
		pipe.Set(ctx, s.tokenKey(sess.TokenHash), sess.SessionID, ttl)
		pipe.SAdd(ctx, s.familyKey(sess.FamilyID), sess.SessionID)
		pipe.Expire(ctx, s.familyKey(sess.FamilyID), ttl)
		pipe.SAdd(ctx, s.accountKey(sess.AccountID), sess.SessionID)
		pipe.Expire(ctx, s.accountKey(sess.AccountID), ttl)
		return nil
	})
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return raw, sess, nil
}

// Rotate exchanges a presented raw token for a successor session. The
// successor inherits family, device, and usage limit, gets a fresh expiry
// window, and carries usage count one higher than its predecessor. Reuse of
// a retired token revokes the entire family before returning.
func (s *Store) Rotate(ctx context.Context, rawToken string, ttl time.Duration, device Device) (*RotateResult, error) {
	newRaw, err := internal.NewRefreshToken()
	if err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	newSID := uuid.NewString()
	newHash := internal.DigestHex(newRaw)
	newExpires := now + int64(ttl/time.Second)

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	reply, err := rotateLua.Run(ctx, s.redis,
		[]string{s.tokenKey(internal.DigestHex(rawToken))},
		s.prefix,
		now,
		newSID,
		newHash,
		newExpires,
		int64(s.retention/time.Second),
		device.DeviceID,
		device.DeviceName,
		device.DeviceType,
		device.UserAgent,
		device.IP,
	).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	vals, ok := reply.([]interface{})
	if !ok || len(vals) == 0 {
		return nil, fmt.Errorf("%w: unexpected rotate reply %v", ErrRedisUnavailable, reply)
	}

	code, _ := vals[0].(int64)
	res := &RotateResult{Outcome: RotateInvalid}
	if len(vals) > 2 {
		res.AccountID, _ = vals[1].(string)
		res.FamilyID, _ = vals[2].(string)
	}

	switch code {
	case rotateStatusNotFound, rotateStatusInvalid:
		return res, nil
	case rotateStatusReused:
		res.Outcome = RotateReused
		if len(vals) > 3 {
			res.RevokedCount, _ = vals[3].(int64)
		}
		return res, nil
	case rotateStatusRotated:
		res.Outcome = RotateOK
		res.RawToken = newRaw
		sess, err := s.Get(ctx, newSID)
		if err != nil {
			return nil, err
		}
		res.Session = sess
		return res, nil
	default:
		return nil, fmt.Errorf("%w: unknown rotate status %d", ErrRedisUnavailable, code)
	}
}

// Get loads a session by ID. ACTIVE sessions past their expiry come back as
// EXPIRED so that read paths never treat a stale session as live; the stored
// record is patched on the way out.
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	m, err := s.redis.HGetAll(ctx, s.sessionKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(m) == 0 {
		return nil, ErrSessionNotFound
	}

	sess := sessionFromMap(sessionID, m)
	if sess.Status == StatusActive && sess.Expired(time.Now().Unix()) {
		sess.Status = StatusExpired
		// Best effort: the record's TTL already caps its lifetime.
		if err := s.redis.HSet(ctx, s.sessionKey(sessionID), fieldStatus, int64(StatusExpired)).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return sess, nil
}

// Revoke marks one session REVOKED. Sessions that are already terminal are
// left untouched; the call is idempotent and reports whether a transition
// happened.
func (s *Store) Revoke(ctx context.Context, sessionID, revokedBy, reason string) (bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	n, err := revokeOneLua.Run(ctx, s.redis,
		[]string{s.sessionKey(sessionID)},
		time.Now().Unix(), revokedBy, reason,
	).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n == 1, nil
}

// RevokeFamily terminates every non-terminal session in a rotation family
// and returns how many were transitioned.
func (s *Store) RevokeFamily(ctx context.Context, familyID, revokedBy, reason string) (int64, error) {
	return s.revokeSet(ctx, s.familyKey(familyID), "", revokedBy, reason)
}

// RevokeAllForAccount terminates every ACTIVE session belonging to an
// account. Used by logout-all and by credential changes.
func (s *Store) RevokeAllForAccount(ctx context.Context, accountID, revokedBy, reason string) (int64, error) {
	return s.revokeSet(ctx, s.accountKey(accountID), "", revokedBy, reason)
}

// RevokeAllForDevice terminates the account's ACTIVE sessions bound to one
// device ID.
func (s *Store) RevokeAllForDevice(ctx context.Context, accountID, deviceID, revokedBy, reason string) (int64, error) {
	return s.revokeSet(ctx, s.accountKey(accountID), deviceID, revokedBy, reason)
}

func (s *Store) revokeSet(ctx context.Context, setKey, deviceFilter, revokedBy, reason string) (int64, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	n, err := revokeSetLua.Run(ctx, s.redis,
		[]string{setKey},
		s.prefix, time.Now().Unix(), revokedBy, reason, deviceFilter,
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n, nil
}

// ListActiveForAccount returns the account's live sessions, most recently
// used first. Expired-but-still-ACTIVE records are excluded.
func (s *Store) ListActiveForAccount(ctx context.Context, accountID string) ([]*Session, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	ids, err := s.redis.SMembers(ctx, s.accountKey(accountID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, s.sessionKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	now := time.Now().Unix()
	out := make([]*Session, 0, len(ids))
	for i, cmd := range cmds {
		m, cmdErr := cmd.Result()
		if cmdErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, cmdErr)
		}
		if len(m) == 0 {
			continue
		}
		sess := sessionFromMap(ids[i], m)
		if sess.Status != StatusActive || sess.Expired(now) {
			continue
		}
		out = append(out, sess)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].LastUsedAt > out[j].LastUsedAt
	})
	return out, nil
}

// CountActiveForAccount reports how many live sessions the account holds.
func (s *Store) CountActiveForAccount(ctx context.Context, accountID string) (int, error) {
	sessions, err := s.ListActiveForAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return len(sessions), nil
}

// FamilySessions returns every surviving record of a rotation family,
// oldest first. Mostly useful for audit trails and diagnostics.
func (s *Store) FamilySessions(ctx context.Context, familyID string) ([]*Session, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	ids, err := s.redis.SMembers(ctx, s.familyKey(familyID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	out := make([]*Session, 0, len(ids))
	for _, id := range ids {
		m, err := s.redis.HGetAll(ctx, s.sessionKey(id)).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		if len(m) == 0 {
			continue
		}
		out = append(out, sessionFromMap(id, m))
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt < out[j].CreatedAt
	})
	return out, nil
}

// Sweep walks the account and family index sets and removes members whose
// session record Redis has already reaped. Record keys expire on their own
// TTL; the sweep keeps the indexes from accumulating dangling IDs on
// long-lived accounts. Returns the number of members pruned.
func (s *Store) Sweep(ctx context.Context) (int64, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var pruned int64
	for _, pattern := range []string{s.prefix + "u:*", s.prefix + "f:*"} {
		var cursor uint64
		for {
			keys, next, err := s.redis.Scan(ctx, cursor, pattern, 100).Result()
			if err != nil {
				return pruned, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
			}
			for _, key := range keys {
				n, err := s.sweepSet(ctx, key)
				if err != nil {
					return pruned, err
				}
				pruned += n
			}
			cursor = next
			if cursor == 0 {
				break
			}
		}
	}
	return pruned, nil
}

func (s *Store) sweepSet(ctx context.Context, setKey string) (int64, error) {
	ids, err := s.redis.SMembers(ctx, setKey).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var pruned int64
	for _, id := range ids {
		exists, err := s.redis.Exists(ctx, s.sessionKey(id)).Result()
		if err != nil {
			return pruned, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		if exists == 0 {
			if err := s.redis.SRem(ctx, setKey, id).Err(); err != nil {
				return pruned, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
			}
			pruned++
		}
	}
	return pruned, nil
}

// Ping checks store connectivity.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
