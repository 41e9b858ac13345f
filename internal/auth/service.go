// Package auth orchestrates registration, login, token rotation, and logout
// on top of the token codec, the session registry, and the user directory.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shelfmark/shelfmark/internal/audit"
	"github.com/shelfmark/shelfmark/internal/platform/httpx"
	"github.com/shelfmark/shelfmark/internal/roles"
	"github.com/shelfmark/shelfmark/internal/session"
	"github.com/shelfmark/shelfmark/internal/token"
	"github.com/shelfmark/shelfmark/internal/users"
)

// UserStore is the slice of the users service the protocol depends on.
type UserStore interface {
	Create(ctx context.Context, input users.NewUser) (*users.User, error)
	FindByID(ctx context.Context, id int64) (*users.User, error)
	FindByNickName(ctx context.Context, nickName string) (*users.User, error)
	ValidatePassword(user *users.User, password string) bool
	PromoteToSenior(ctx context.Context, id int64) error
}

// TokenPair is the issued access/refresh credential pair.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// LoginResult extends the token pair with display data.
type LoginResult struct {
	Name string `json:"name"`
	Role string `json:"role"`
	TokenPair
}

// Service implements the session/authorization protocol.
type Service struct {
	logger     *slog.Logger
	users      UserStore
	registry   *session.Registry
	codec      *token.Codec
	sink       audit.Sink
	revokedTTL time.Duration
	now        func() time.Time
}

// NewService constructs a Service. revokedTTL bounds the revocation list
// lifetime and should match the access token lifetime.
func NewService(logger *slog.Logger, store UserStore, registry *session.Registry, codec *token.Codec, sink audit.Sink, revokedTTL time.Duration) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = audit.NopSink{}
	}
	return &Service{
		logger:     logger,
		users:      store,
		registry:   registry,
		codec:      codec,
		sink:       sink,
		revokedTTL: revokedTTL,
		now:        time.Now,
	}
}

// Register creates an account and returns a fresh token pair. The reserved
// bootstrap id is promoted to Senior on creation; every other account starts
// as Trainee.
func (s *Service) Register(ctx context.Context, input users.NewUser) (*TokenPair, error) {
	existing, err := s.users.FindByNickName(ctx, input.NickName)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: nickname is already taken", httpx.ErrDuplicate)
	}

	user, err := s.users.Create(ctx, input)
	if err != nil {
		return nil, err
	}

	if user.ID == roles.BootstrapUserID {
		if err := s.users.PromoteToSenior(ctx, user.ID); err != nil {
			return nil, err
		}
		user.RoleID = roles.Senior
	}

	return s.issueTokens(ctx, user)
}

// Login verifies credentials, issues a token pair, and records the session.
// Storing the refresh token overwrites any previous one, so earlier sessions
// lose their rotation ability immediately.
func (s *Service) Login(ctx context.Context, nickName, password string) (*LoginResult, error) {
	user, err := s.users.FindByNickName(ctx, nickName)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user not found", httpx.ErrNotFound)
	}
	if !s.users.ValidatePassword(user, password) {
		return nil, fmt.Errorf("%w: invalid credentials", httpx.ErrUnauthorized)
	}

	pair, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	// The refresh-token write and the session write are not transactional;
	// a crash between them leaves a recoverable half-state.
	if err := s.registry.SaveSession(ctx, session.Record{
		UserID:     user.ID,
		RoleID:     user.RoleID,
		SignInDate: s.now().UTC(),
	}); err != nil {
		return nil, err
	}

	return &LoginResult{
		Name:      user.NickName,
		Role:      roles.Names[user.RoleID],
		TokenPair: *pair,
	}, nil
}

// Refresh exchanges a valid refresh token for a new pair and rotates the
// stored token. Every failure collapses into Unauthorized so no verification
// detail leaks to the caller.
func (s *Service) Refresh(ctx context.Context, raw string) (*TokenPair, error) {
	pair, err := s.refresh(ctx, raw)
	if err != nil {
		s.logger.Debug("refresh rejected", slog.Any("reason", err))
		return nil, fmt.Errorf("%w: invalid refresh token", httpx.ErrUnauthorized)
	}
	return pair, nil
}

func (s *Service) refresh(ctx context.Context, raw string) (*TokenPair, error) {
	claims, err := s.codec.VerifyRefresh(raw)
	if err != nil {
		return nil, err
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, err
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	stored, ok, err := s.registry.RefreshToken(ctx, userID)
	if err != nil {
		return nil, err
	}
	// A byte-for-byte mismatch means the presented token was rotated out;
	// reuse of a stale token is rejected here.
	if !ok || stored != raw {
		return nil, fmt.Errorf("refresh token mismatch for user %d", userID)
	}
	return s.issueTokens(ctx, user)
}

// Logout invalidates the user's refresh token and, when one was actually
// removed, fires the best-effort side effects. The acknowledgement does not
// depend on their outcome.
func (s *Service) Logout(ctx context.Context, userID int64, accessToken string) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("%w: user with id:%d not found", httpx.ErrNotFound, userID)
	}

	_, ok, err := s.registry.RefreshToken(ctx, user.ID)
	if err != nil {
		return err
	}
	if !ok {
		// No stored refresh token: treated as already logged out.
		return fmt.Errorf("%w: user not found", httpx.ErrNotFound)
	}

	deleted, err := s.registry.DeleteRefreshToken(ctx, user.ID)
	if err != nil {
		return err
	}
	if deleted {
		s.settleLogoutEffects(ctx, user.ID, accessToken)
	}
	return nil
}

// settleLogoutEffects runs the four logout side actions concurrently. Each
// swallows and logs its own failure; none blocks or rolls back the others.
func (s *Service) settleLogoutEffects(ctx context.Context, userID int64, accessToken string) {
	rec, err := s.registry.Session(ctx, userID)
	if err != nil {
		s.logger.Warn("load session record", slog.Int64("user_id", userID), slog.Any("error", err))
	}

	logoutAt := s.now().UTC()
	payload := map[string]any{}
	if rec != nil {
		rec.LogoutDate = &logoutAt
		payload = map[string]any{
			"user_id":     rec.UserID,
			"role_id":     rec.RoleID,
			"signin_date": rec.SignInDate,
			"logout_date": logoutAt,
		}
	}

	var g errgroup.Group
	g.Go(func() error {
		if err := s.sink.Write(ctx, audit.StreamUsers, payload); err != nil {
			s.logger.Warn("audit logout", slog.Int64("user_id", userID), slog.Any("error", err))
		}
		return nil
	})
	g.Go(func() error {
		if err := s.registry.DeleteSession(ctx, userID); err != nil {
			s.logger.Warn("delete session", slog.Int64("user_id", userID), slog.Any("error", err))
		}
		return nil
	})
	g.Go(func() error {
		if err := s.registry.PushRevokedAccessToken(ctx, userID, accessToken); err != nil {
			s.logger.Warn("push revoked token", slog.Int64("user_id", userID), slog.Any("error", err))
		}
		return nil
	})
	g.Go(func() error {
		if err := s.registry.ExpireRevokedList(ctx, userID, s.revokedTTL); err != nil {
			s.logger.Warn("expire revoked list", slog.Int64("user_id", userID), slog.Any("error", err))
		}
		return nil
	})
	_ = g.Wait()
}

func (s *Service) issueTokens(ctx context.Context, user *users.User) (*TokenPair, error) {
	access, err := s.codec.IssueAccess(user.ID, user.NickName, user.RoleID)
	if err != nil {
		return nil, fmt.Errorf("auth: issue access token: %w", err)
	}
	refresh, err := s.codec.IssueRefresh(user.ID, user.NickName, user.RoleID)
	if err != nil {
		return nil, fmt.Errorf("auth: issue refresh token: %w", err)
	}
	if err := s.registry.StoreRefreshToken(ctx, user.ID, refresh, s.codec.RefreshTTL()); err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
