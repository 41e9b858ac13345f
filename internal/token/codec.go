// Package token signs and verifies the access/refresh JWT pair.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken covers every verification failure: bad signature, malformed
// token, or expired token. Callers map it to an unauthorized response; the
// wrapped cause stays available for logging.
var ErrInvalidToken = errors.New("invalid token")

// Claims carried by both token kinds. Subject holds the user id as a decimal
// string; RoleID is a snapshot taken at issuance and only changes on the next
// issued token.
type Claims struct {
	Username string `json:"username"`
	RoleID   int    `json:"roleId"`
	jwt.RegisteredClaims
}

// UserID parses the subject back into a user id.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("token: subject %q is not a user id: %w", c.Subject, err)
	}
	return id, nil
}

// Codec issues and verifies tokens. Access and refresh tokens are signed with
// different secrets so one kind can never be replayed as the other.
type Codec struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewCodec constructs a Codec.
func NewCodec(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *Codec {
	return &Codec{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

// AccessTTL exposes the configured access token lifetime.
func (c *Codec) AccessTTL() time.Duration { return c.accessTTL }

// RefreshTTL exposes the configured refresh token lifetime.
func (c *Codec) RefreshTTL() time.Duration { return c.refreshTTL }

// IssueAccess signs a short-lived access token.
func (c *Codec) IssueAccess(userID int64, username string, roleID int) (string, error) {
	return c.issue(userID, username, roleID, c.accessSecret, c.accessTTL)
}

// IssueRefresh signs a long-lived refresh token.
func (c *Codec) IssueRefresh(userID int64, username string, roleID int) (string, error) {
	return c.issue(userID, username, roleID, c.refreshSecret, c.refreshTTL)
}

func (c *Codec) issue(userID int64, username string, roleID int, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Username: username,
		RoleID:   roleID,
		RegisteredClaims: jwt.RegisteredClaims{
			// The jti keeps tokens unique even when two are issued within
			// the same second, so rotation always produces a new token.
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// VerifyAccess validates an access token signature and expiry.
func (c *Codec) VerifyAccess(raw string) (*Claims, error) {
	return verify(raw, c.accessSecret)
}

// VerifyRefresh validates a refresh token signature and expiry.
func (c *Codec) VerifyRefresh(raw string) (*Claims, error) {
	return verify(raw, c.refreshSecret)
}

func verify(raw string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		// Expired and forged tokens surface the same external error; the
		// wrapped cause distinguishes them in logs.
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Decode parses claims WITHOUT verifying the signature. It must never be the
// sole gate on a protected operation: mount it behind a verifying check.
func (c *Codec) Decode(raw string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}
