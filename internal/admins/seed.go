package admins

import (
	"context"

	"github.com/google/uuid"

	"github.com/gembotlabs/gembot-backend/pkg/config"
	"github.com/gembotlabs/gembot-backend/pkg/db/models"
	"github.com/gembotlabs/gembot-backend/pkg/security"
)

// EnsureSeedAdmin creates the bootstrap admin account when the table is empty
// and seed credentials are configured. Returns whether an account was created.
func EnsureSeedAdmin(ctx context.Context, repo Repository, cfg config.AdminSeedConfig, pwCfg config.PasswordConfig) (bool, error) {
	if cfg.Email == "" || cfg.Password == "" {
		return false, nil
	}

	count, err := repo.Count(ctx)
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	hash, err := security.HashPassword(cfg.Password, pwCfg)
	if err != nil {
		return false, err
	}
	admin := &models.Admin{
		ID:           uuid.New(),
		Email:        cfg.Email,
		Name:         cfg.Name,
		PasswordHash: hash,
	}
	if admin.Name == "" {
		admin.Name = "Administrator"
	}
	return true, repo.Create(ctx, admin)
}
