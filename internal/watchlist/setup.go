package watchlist

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/EmpoweredVote/watchlist-backend/internal/db"
)

// Init creates the app_watchlist schema and table. The owner/symbol unique
// index only exists while the policy is on.
func Init(d *gorm.DB, policy Policy) error {
	if err := db.EnsureSchema(d, "app_watchlist"); err != nil {
		return fmt.Errorf("ensure schema app_watchlist: %w", err)
	}

	if err := d.AutoMigrate(&Item{}); err != nil {
		return fmt.Errorf("auto-migrate watchlist: %w", err)
	}

	if policy.UniqueSymbol {
		return d.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS ` + OwnerSymbolIndex +
			` ON app_watchlist.watchlist_items (user_id, symbol)`).Error
	}
	return d.Exec(`DROP INDEX IF EXISTS app_watchlist.` + OwnerSymbolIndex).Error
}
