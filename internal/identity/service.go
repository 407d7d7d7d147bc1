package identity

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/relay-core/relay/internal/rpc"
)

// Service wraps authentication business rules.
type Service struct {
	store  StorePort
	tokens *TokenService
}

// NewService constructs a Service.
func NewService(store StorePort, tokens *TokenService) *Service {
	return &Service{store: store, tokens: tokens}
}

// Authenticate validates email/password credentials. Unknown accounts,
// inactive accounts and wrong passwords are indistinguishable to the
// caller.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return User{}, rpc.Unauthorized("invalid credentials")
		}
		return User{}, err
	}
	if !user.IsActive {
		return User{}, rpc.Unauthorized("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return User{}, rpc.Unauthorized("invalid credentials")
	}
	return user, nil
}

// IssueToken signs an access token for the user.
func (s *Service) IssueToken(user User) (string, error) {
	return s.tokens.Issue(user.ID)
}

// Profile loads the full account for an authenticated caller.
func (s *Service) Profile(ctx context.Context, userID int64) (User, error) {
	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return User{}, rpc.NotFound("account no longer exists")
		}
		return User{}, err
	}
	return user, nil
}
