// Package seed bootstraps a development admin user.
package seed

import (
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/winwai/raffled/internal/config"
	raffledomain "github.com/winwai/raffled/internal/raffle/domain"
)

// EnsureAdminUser creates an admin user holding the bootstrap token when one
// is configured and no user holds that token yet. Disabled in production.
func EnsureAdminUser(db *gorm.DB, cfg config.Config, genID *snowflake.Node) error {
	token := strings.TrimSpace(cfg.BootstrapAdminToken)
	if token == "" || cfg.IsProduction() {
		return nil
	}

	hash := raffledomain.HashAPIToken(token)

	var existing raffledomain.User
	err := db.Where("api_token_hash = ?", hash).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	admin := raffledomain.User{
		ID:           genID.Generate(),
		DisplayName:  cfg.BootstrapAdminName,
		APITokenHash: hash,
		IsAdmin:      true,
		CreatedAt:    time.Now().UTC(),
	}
	return db.Create(&admin).Error
}
