// Package session tracks per-user auth state in a key-value store: the
// current refresh token, the active session record, and the list of access
// tokens revoked before their natural expiry.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Key prefixes, colon-joined with the user id.
const (
	refreshTokenPrefix = "refreshToken"
	userSessionPrefix  = "userSession"
	revokedTokenPrefix = "revokedAccessToken"
)

// Store is the minimal key-value contract the registry needs. All operations
// are atomic at the single-key level; no multi-key transactions are assumed.
type Store interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error)
	Del(ctx context.Context, key string) (bool, error)
	ListPush(ctx context.Context, key, value string) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// Record is the session snapshot created at login and forwarded to the audit
// sink at logout. It is not persisted beyond the logout.
type Record struct {
	UserID     int64      `json:"user_id"`
	RoleID     int        `json:"role_id"`
	SignInDate time.Time  `json:"signin_date"`
	LogoutDate *time.Time `json:"logout_date"`
}

// Registry provides typed access to the three key families.
type Registry struct {
	store Store
}

// NewRegistry constructs a Registry over the given store.
func NewRegistry(store Store) *Registry {
	return &Registry{store: store}
}

// StoreRefreshToken saves the user's current refresh token, overwriting any
// previous one. The overwrite is what enforces a single valid refresh token
// per user.
func (r *Registry) StoreRefreshToken(ctx context.Context, userID int64, token string, ttl time.Duration) error {
	return r.store.Set(ctx, refreshTokenKey(userID), token, ttl)
}

// RefreshToken returns the stored refresh token for the user, if any.
func (r *Registry) RefreshToken(ctx context.Context, userID int64) (string, bool, error) {
	return r.store.Get(ctx, refreshTokenKey(userID))
}

// DeleteRefreshToken removes the stored refresh token and reports whether a
// key was actually removed.
func (r *Registry) DeleteRefreshToken(ctx context.Context, userID int64) (bool, error) {
	return r.store.Del(ctx, refreshTokenKey(userID))
}

// SaveSession persists the session record. Session records carry no TTL; they
// are deleted explicitly at logout.
func (r *Registry) SaveSession(ctx context.Context, rec Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("session: marshal record: %w", err)
	}
	return r.store.Set(ctx, userSessionKey(rec.UserID), string(payload), 0)
}

// Session loads the session record for the user, if present.
func (r *Registry) Session(ctx context.Context, userID int64) (*Record, error) {
	raw, ok, err := r.store.Get(ctx, userSessionKey(userID))
	if err != nil || !ok {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("session: unmarshal record: %w", err)
	}
	return &rec, nil
}

// DeleteSession removes the session record.
func (r *Registry) DeleteSession(ctx context.Context, userID int64) error {
	_, err := r.store.Del(ctx, userSessionKey(userID))
	return err
}

// PushRevokedAccessToken appends an access token to the user's revocation
// list.
func (r *Registry) PushRevokedAccessToken(ctx context.Context, userID int64, token string) error {
	return r.store.ListPush(ctx, revokedTokenKey(userID), token)
}

// ExpireRevokedList sets the revocation list TTL. Entries become moot once
// the access tokens they name would have expired anyway.
func (r *Registry) ExpireRevokedList(ctx context.Context, userID int64, ttl time.Duration) error {
	return r.store.Expire(ctx, revokedTokenKey(userID), ttl)
}

func refreshTokenKey(userID int64) string {
	return refreshTokenPrefix + ":" + strconv.FormatInt(userID, 10)
}

func userSessionKey(userID int64) string {
	return userSessionPrefix + ":" + strconv.FormatInt(userID, 10)
}

func revokedTokenKey(userID int64) string {
	return revokedTokenPrefix + ":" + strconv.FormatInt(userID, 10)
}
