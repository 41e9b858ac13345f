package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/shelfmark/shelfmark/internal/audit"
	"github.com/shelfmark/shelfmark/internal/platform/httpx"
	"github.com/shelfmark/shelfmark/internal/roles"
	"github.com/shelfmark/shelfmark/internal/session"
	"github.com/shelfmark/shelfmark/internal/token"
	"github.com/shelfmark/shelfmark/internal/users"
)

type stubDirectory struct {
	nextID int64
	byNick map[string]*users.User
	byID   map[int64]*users.User
}

func newStubDirectory(startID int64) *stubDirectory {
	return &stubDirectory{
		nextID: startID,
		byNick: make(map[string]*users.User),
		byID:   make(map[int64]*users.User),
	}
}

func (s *stubDirectory) Create(ctx context.Context, input users.NewUser) (*users.User, error) {
	user := &users.User{
		ID:           s.nextID,
		FirstName:    input.FirstName,
		SecondName:   input.SecondName,
		NickName:     input.NickName,
		Email:        input.Email,
		PasswordHash: input.Password,
		RoleID:       roles.Trainee,
	}
	s.nextID++
	s.byNick[user.NickName] = user
	s.byID[user.ID] = user
	return user, nil
}

func (s *stubDirectory) FindByID(ctx context.Context, id int64) (*users.User, error) {
	user, ok := s.byID[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	return user, nil
}

func (s *stubDirectory) FindByNickName(ctx context.Context, nickName string) (*users.User, error) {
	return s.byNick[nickName], nil
}

func (s *stubDirectory) ValidatePassword(user *users.User, password string) bool {
	return user != nil && user.PasswordHash == password
}

func (s *stubDirectory) PromoteToSenior(ctx context.Context, id int64) error {
	if user, ok := s.byID[id]; ok {
		user.RoleID = roles.Senior
	}
	return nil
}

type captureSink struct {
	mu     sync.Mutex
	writes []audit.Envelope
}

func (c *captureSink) Write(ctx context.Context, stream string, payload map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, audit.Envelope{Stream: stream, Payload: payload})
	return nil
}

func (c *captureSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.writes)
}

type fixture struct {
	service *Service
	codec   *token.Codec
	store   *stubDirectory
	sink    *captureSink
	mr      *miniredis.Miniredis
}

func newFixture(t *testing.T, startID int64) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	codec := token.NewCodec("access-secret", "refresh-secret", 15*time.Minute, 24*time.Hour)
	registry := session.NewRegistry(session.NewRedisStore(client))
	store := newStubDirectory(startID)
	sink := &captureSink{}
	service := NewService(nil, store, registry, codec, sink, 30*time.Minute)
	return &fixture{service: service, codec: codec, store: store, sink: sink, mr: mr}
}

func TestRegisterIssuesVerifiablePair(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	pair, err := f.service.Register(ctx, users.NewUser{NickName: "alice", Password: "secret1"})
	require.NoError(t, err)
	require.Greater(t, len(pair.AccessToken), 100)
	require.Greater(t, len(pair.RefreshToken), 100)

	_, err = f.codec.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	_, err = f.codec.VerifyRefresh(pair.RefreshToken)
	require.NoError(t, err)
	_, err = f.codec.VerifyAccess(pair.RefreshToken)
	require.ErrorIs(t, err, token.ErrInvalidToken)

	// The refresh token is persisted under the user's key.
	require.True(t, f.mr.Exists("refreshToken:2"))
}

func TestRegisterDuplicateNickname(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	_, err := f.service.Register(ctx, users.NewUser{NickName: "alice", Password: "secret1"})
	require.NoError(t, err)

	_, err = f.service.Register(ctx, users.NewUser{NickName: "alice", Password: "other"})
	require.ErrorIs(t, err, httpx.ErrDuplicate)
}

func TestRegisterBootstrapPromotion(t *testing.T) {
	f := newFixture(t, roles.BootstrapUserID)
	ctx := context.Background()

	pair, err := f.service.Register(ctx, users.NewUser{NickName: "root", Password: "secret1"})
	require.NoError(t, err)

	claims, err := f.codec.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, roles.Senior, claims.RoleID)
}

func TestLoginFailures(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	_, err := f.service.Login(ctx, "ghost", "whatever")
	require.ErrorIs(t, err, httpx.ErrNotFound)

	_, err = f.service.Register(ctx, users.NewUser{NickName: "alice", Password: "secret1"})
	require.NoError(t, err)

	_, err = f.service.Login(ctx, "alice", "wrong")
	require.ErrorIs(t, err, httpx.ErrUnauthorized)
}

func TestLoginWritesSessionAndOverwritesRefresh(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	first, err := f.service.Register(ctx, users.NewUser{NickName: "alice", Password: "secret1"})
	require.NoError(t, err)

	result, err := f.service.Login(ctx, "alice", "secret1")
	require.NoError(t, err)
	require.Equal(t, "alice", result.Name)
	require.Contains(t, []string{"senior", "middle", "junior", "trainee"}, result.Role)
	require.True(t, f.mr.Exists("userSession:2"))

	// Login stored a new refresh token, so the registration-time token is
	// rotated out.
	_, err = f.service.Refresh(ctx, first.RefreshToken)
	require.ErrorIs(t, err, httpx.ErrUnauthorized)
	_, err = f.service.Refresh(ctx, result.RefreshToken)
	require.NoError(t, err)
}

func TestRefreshSingleUseUntilRotated(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	result, err := f.service.Register(ctx, users.NewUser{NickName: "alice", Password: "secret1"})
	require.NoError(t, err)

	second, err := f.service.Refresh(ctx, result.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, result.RefreshToken, second.RefreshToken)
	require.NotEqual(t, result.AccessToken, second.AccessToken)

	_, err = f.service.Refresh(ctx, result.RefreshToken)
	require.ErrorIs(t, err, httpx.ErrUnauthorized)
}

func TestRefreshRejectsForgedToken(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	forger := token.NewCodec("access-secret", "wrong-refresh-secret", 15*time.Minute, 24*time.Hour)
	forged, err := forger.IssueRefresh(2, "alice", roles.Senior)
	require.NoError(t, err)

	_, err = f.service.Refresh(ctx, forged)
	require.ErrorIs(t, err, httpx.ErrUnauthorized)
}

func TestLogoutRevokesAndSettlesSideEffects(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	_, err := f.service.Register(ctx, users.NewUser{NickName: "alice", Password: "secret1"})
	require.NoError(t, err)
	result, err := f.service.Login(ctx, "alice", "secret1")
	require.NoError(t, err)

	require.NoError(t, f.service.Logout(ctx, 2, result.AccessToken))

	require.False(t, f.mr.Exists("refreshToken:2"))
	require.False(t, f.mr.Exists("userSession:2"))

	revoked, err := f.mr.List("revokedAccessToken:2")
	require.NoError(t, err)
	require.Equal(t, []string{result.AccessToken}, revoked)

	require.Equal(t, 1, f.sink.count())

	// The rotated-out refresh token is dead after logout.
	_, err = f.service.Refresh(ctx, result.RefreshToken)
	require.ErrorIs(t, err, httpx.ErrUnauthorized)
}

func TestLogoutIsIdempotentInEffect(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	_, err := f.service.Register(ctx, users.NewUser{NickName: "alice", Password: "secret1"})
	require.NoError(t, err)
	result, err := f.service.Login(ctx, "alice", "secret1")
	require.NoError(t, err)

	require.NoError(t, f.service.Logout(ctx, 2, result.AccessToken))

	// No stored refresh token anymore: the second logout reports NotFound,
	// it does not fail harder.
	err = f.service.Logout(ctx, 2, result.AccessToken)
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestLogoutUnknownUser(t *testing.T) {
	f := newFixture(t, 2)

	err := f.service.Logout(context.Background(), 99, "token")
	require.ErrorIs(t, err, httpx.ErrNotFound)
}
