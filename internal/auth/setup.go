package auth

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/EmpoweredVote/watchlist-backend/internal/db"
)

// Init creates the app_auth schema and the users table.
func Init(d *gorm.DB) error {
	if err := db.EnsureSchema(d, "app_auth"); err != nil {
		return fmt.Errorf("ensure schema app_auth: %w", err)
	}

	if err := d.AutoMigrate(&User{}); err != nil {
		return fmt.Errorf("auto-migrate users: %w", err)
	}
	return nil
}
