package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"stockflow-service/internal/authz"
	"stockflow-service/internal/config"
	"stockflow-service/internal/repository"
	"stockflow-service/internal/repository/model"
)

// seedAdmin creates the configured admin account unless a user with that email exists.
func seedAdmin(ctx context.Context, logger *zap.SugaredLogger, repo repository.Repository, cfg config.SeedConfig) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}

	existing, err := repo.GetUserByEmail(ctx, cfg.AdminEmail)
	if err == nil {
		logger.Infow("admin account already present", "userId", existing.Id)
		return nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return fmt.Errorf("failed to look up admin: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin := &model.User{
		Id:           uuid.NewString(),
		Email:        cfg.AdminEmail,
		FirstName:    "System",
		LastName:     "Administrator",
		Role:         authz.RoleAdmin.String(),
		PasswordHash: string(hash),
		Active:       true,
		CreatedAt:    time.Now().UTC().Truncate(time.Millisecond),
	}

	// another instance may have won the race
	if err := repo.CreateUser(ctx, admin); err != nil && !errors.Is(err, repository.ErrUserExists) {
		return fmt.Errorf("failed to create admin: %w", err)
	}

	logger.Infow("seeded admin account", "userId", admin.Id, "email", admin.Email)
	return nil
}
