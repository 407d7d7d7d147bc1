package identity

import (
	"context"
	"time"

	"github.com/relay-core/relay/internal/rpc"
)

type loginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginOutput struct {
	Token     string    `json:"token" validate:"required"`
	ExpiresAt time.Time `json:"expiresAt" validate:"required"`
}

type profileOutput struct {
	ID     int64    `json:"id" validate:"required"`
	Email  string   `json:"email" validate:"required,email"`
	Name   string   `json:"name"`
	Roles  []string `json:"roles"`
	Active bool     `json:"active"`
}

// Routes builds the auth procedure registry.
func Routes(service *Service) *rpc.Registry {
	reg := rpc.NewRegistry()

	reg.Handle(rpc.Mutation("login", func(ctx context.Context, call rpc.Ctx, in loginInput) (loginOutput, error) {
		user, err := service.Authenticate(ctx, in.Email, in.Password)
		if err != nil {
			return loginOutput{}, err
		}
		token, err := service.IssueToken(user)
		if err != nil {
			return loginOutput{}, err
		}
		return loginOutput{Token: token, ExpiresAt: time.Now().Add(service.tokens.TTL())}, nil
	}))

	reg.Handle(rpc.GuardedQuery("me", func(ctx context.Context, call rpc.AuthCtx, in struct{}) (profileOutput, error) {
		user, err := service.Profile(ctx, call.Identity.UserID)
		if err != nil {
			return profileOutput{}, err
		}
		return profileOutput{
			ID:     user.ID,
			Email:  user.Email,
			Name:   user.Name,
			Roles:  user.Roles,
			Active: user.IsActive,
		}, nil
	}))

	return reg
}
