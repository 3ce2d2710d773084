package repository

import (
	"context"
	"errors"

	"stockflow-service/internal/repository/model"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
)

//go:generate mockgen -source=public.go -destination=public_mock.go -package=repository
type Repository interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	CreateUser(ctx context.Context, user *model.User) error
	UpdateUserRole(ctx context.Context, id string, role string) error
}
