package services

import (
	"context"

	"github.com/campus-incidents/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, userID string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	GetByDNI(ctx context.Context, dni string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
}

// UserService encapsulates user use-cases.
type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

func (s *UserService) GetByID(ctx context.Context, userID string) (types.User, error) {
	return s.repo.GetByID(ctx, userID)
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (types.User, error) {
	return s.repo.GetByEmail(ctx, email)
}

func (s *UserService) GetByDNI(ctx context.Context, dni string) (types.User, error) {
	return s.repo.GetByDNI(ctx, dni)
}

func (s *UserService) Create(ctx context.Context, user types.User) (types.User, error) {
	return s.repo.Create(ctx, user)
}
