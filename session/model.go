package session

import (
	"strconv"
)

// Status is the lifecycle state of a refresh session. Values are stored
// numerically in Redis and must not be reordered.
type Status uint8

const (
	// StatusActive sessions hold the live token at the tip of their family.
	StatusActive Status = iota
	// StatusRotated sessions were retired by a successful rotation. A token
	// resolving to a ROTATED session is proof of replay.
	StatusRotated
	// StatusRevoked sessions were terminated by logout, an administrator, or
	// family revocation after reuse detection.
	StatusRevoked
	// StatusExhausted sessions hit their rotation usage limit.
	StatusExhausted
	// StatusExpired sessions passed their expiry before being used again.
	StatusExpired
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "ACTIVE"
	case StatusRotated:
		return "ROTATED"
	case StatusRevoked:
		return "REVOKED"
	case StatusExhausted:
		return "EXHAUSTED"
	case StatusExpired:
		return "EXPIRED"
	default:
		return "UNKNOWN"
	}
}

// Device describes the client a session was minted for. Captured at login and
// inherited unchanged by every successor in the family.
type Device struct {
	DeviceID   string
	DeviceName string
	DeviceType string
	UserAgent  string
	IP         string
}

// Session is one link in a refresh token rotation chain. TokenHash is the hex
// SHA-256 digest of the opaque token; the raw token is never persisted.
type Session struct {
	SessionID         string
	AccountID         string
	TokenHash         string
	Device            Device
	FamilyID          string
	PreviousSessionID string
	// FamilyCreatedAt is the creation time of the family's root session,
	// inherited unchanged across rotations. Callers compare it against
	// credential-change timestamps.
	FamilyCreatedAt int64
	Status          Status
	ExpiresAt       int64
	UsageCount      int64
	UsageLimit      int64
	CreatedAt       int64
	LastUsedAt      int64
	RevokedAt       int64
	RevokedBy       string
	RevokeReason    string
}

// Expired reports whether the session's expiry has passed at the given unix
// time. Status is not consulted; callers combine both.
func (s *Session) Expired(now int64) bool {
	return s.ExpiresAt <= now
}

// Redis hash field names. The Lua scripts in store.go reference these
// literally; keep them in sync.
const (
	fieldAccount      = "account"
	fieldTokenHash    = "token_hash"
	fieldDeviceID     = "device_id"
	fieldDeviceName   = "device_name"
	fieldDeviceType   = "device_type"
	fieldUserAgent    = "user_agent"
	fieldIP           = "ip"
	fieldFamily       = "family"
	fieldPrev         = "prev"
	fieldFamCreatedAt = "fam_created_at"
	fieldStatus       = "status"
	fieldExpiresAt    = "expires_at"
	fieldUsageCount   = "usage_count"
	fieldUsageLimit   = "usage_limit"
	fieldCreatedAt    = "created_at"
	fieldLastUsedAt   = "last_used_at"
	fieldRevokedAt    = "revoked_at"
	fieldRevokedBy    = "revoked_by"
	fieldRevokeReason = "revoke_reason"
)

func sessionFields(s *Session) []interface{} {
	return []interface{}{
		fieldAccount, s.AccountID,
		fieldTokenHash, s.TokenHash,
		fieldDeviceID, s.Device.DeviceID,
		fieldDeviceName, s.Device.DeviceName,
		fieldDeviceType, s.Device.DeviceType,
		fieldUserAgent, s.Device.UserAgent,
		fieldIP, s.Device.IP,
		fieldFamily, s.FamilyID,
		fieldPrev, s.PreviousSessionID,
		fieldFamCreatedAt, s.FamilyCreatedAt,
		fieldStatus, int64(s.Status),
		fieldExpiresAt, s.ExpiresAt,
		fieldUsageCount, s.UsageCount,
		fieldUsageLimit, s.UsageLimit,
		fieldCreatedAt, s.CreatedAt,
		fieldLastUsedAt, s.LastUsedAt,
	}
}

func sessionFromMap(sid string, m map[string]string) *Session {
	s := &Session{
		SessionID: sid,
		AccountID: m[fieldAccount],
		TokenHash: m[fieldTokenHash],
		Device: Device{
			DeviceID:   m[fieldDeviceID],
			DeviceName: m[fieldDeviceName],
			DeviceType: m[fieldDeviceType],
			UserAgent:  m[fieldUserAgent],
			IP:         m[fieldIP],
		},
		FamilyID:          m[fieldFamily],
		PreviousSessionID: m[fieldPrev],
		FamilyCreatedAt:   parseInt(m[fieldFamCreatedAt]),
		Status:            Status(parseInt(m[fieldStatus])),
		ExpiresAt:         parseInt(m[fieldExpiresAt]),
		UsageCount:        parseInt(m[fieldUsageCount]),
		UsageLimit:        parseInt(m[fieldUsageLimit]),
		CreatedAt:         parseInt(m[fieldCreatedAt]),
		LastUsedAt:        parseInt(m[fieldLastUsedAt]),
		RevokedAt:         parseInt(m[fieldRevokedAt]),
		RevokedBy:         m[fieldRevokedBy],
		RevokeReason:      m[fieldRevokeReason],
	}
	return s
}

func parseInt(v string) int64 {
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
