package users

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/shelfmark/shelfmark/internal/platform/httpx"
	"github.com/shelfmark/shelfmark/internal/roles"
)

// Directory defines the persistence operations the service needs.
type Directory interface {
	Create(ctx context.Context, u User) (*User, error)
	FindByID(ctx context.Context, id int64) (*User, error)
	FindByNickName(ctx context.Context, nickName string) (*User, error)
	UpdateRole(ctx context.Context, id int64, roleID int) (bool, error)
}

// RoleChangeResult reports the outcome of a role update.
type RoleChangeResult struct {
	Message string `json:"message"`
	Status  bool   `json:"status"`
}

// Service wraps user management business rules.
type Service struct {
	repo Directory
}

// NewService constructs a Service.
func NewService(repo Directory) *Service {
	return &Service{repo: repo}
}

// Create hashes the password and stores a new account with the default role.
func (s *Service) Create(ctx context.Context, input NewUser) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("users: hash password: %w", err)
	}
	return s.repo.Create(ctx, User{
		FirstName:    input.FirstName,
		SecondName:   input.SecondName,
		NickName:     input.NickName,
		Email:        input.Email,
		PasswordHash: string(hash),
		RoleID:       roles.Trainee,
	})
}

// FindByID fetches a user by id.
func (s *Service) FindByID(ctx context.Context, id int64) (*User, error) {
	return s.repo.FindByID(ctx, id)
}

// FindByNickName fetches a user by nickname. A missing user returns nil
// without error so callers can branch on existence.
func (s *Service) FindByNickName(ctx context.Context, nickName string) (*User, error) {
	user, err := s.repo.FindByNickName(ctx, nickName)
	if errors.Is(err, httpx.ErrNotFound) {
		return nil, nil
	}
	return user, err
}

// ValidatePassword compares the stored hash against a candidate password.
func (s *Service) ValidatePassword(user *User, password string) bool {
	if user == nil {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
}

// PromoteToSenior grants the highest-privilege role. Used once, for the
// bootstrap account.
func (s *Service) PromoteToSenior(ctx context.Context, id int64) error {
	_, err := s.repo.UpdateRole(ctx, id, roles.Senior)
	return err
}

// SetUserRole changes a user's role. The bootstrap account is protected and
// the role id must belong to the known set.
func (s *Service) SetUserRole(ctx context.Context, id int64, roleID int) (RoleChangeResult, error) {
	if id == roles.BootstrapUserID {
		return RoleChangeResult{}, fmt.Errorf("%w: cannot change the role for this user", httpx.ErrValidation)
	}
	if !roles.Valid(roleID) {
		return RoleChangeResult{}, fmt.Errorf("%w: the role specified is not valid", httpx.ErrValidation)
	}
	updated, err := s.repo.UpdateRole(ctx, id, roleID)
	if err != nil {
		return RoleChangeResult{}, err
	}
	return RoleChangeResult{
		Message: fmt.Sprintf("Set up role %d for user %d", roleID, id),
		Status:  updated,
	}, nil
}
