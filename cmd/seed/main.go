// Command seed creates or promotes the admin account named by
// SEED_ADMIN_EMAIL. It is safe to run repeatedly.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/EmpoweredVote/watchlist-backend/internal/apperror"
	"github.com/EmpoweredVote/watchlist-backend/internal/auth"
	"github.com/EmpoweredVote/watchlist-backend/internal/config"
	"github.com/EmpoweredVote/watchlist-backend/internal/db"
	"github.com/EmpoweredVote/watchlist-backend/internal/logging"
)

func main() {
	_ = godotenv.Load(".env.local")

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	if err := seed(cfg, log); err != nil {
		log.Fatal("seeding failed", zap.Error(err))
	}
}

func seed(cfg config.Config, log *zap.Logger) error {
	email := strings.TrimSpace(os.Getenv("SEED_ADMIN_EMAIL"))
	password := os.Getenv("SEED_ADMIN_PASSWORD")
	name := strings.TrimSpace(os.Getenv("SEED_ADMIN_NAME"))
	if email == "" || password == "" {
		return fmt.Errorf("SEED_ADMIN_EMAIL and SEED_ADMIN_PASSWORD are required")
	}
	if name == "" {
		name = "Administrator"
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	conn, err := db.Connect(ctx, cfg.DatabaseURL, log, false)
	if err != nil {
		return err
	}
	defer db.Close(conn) //nolint:errcheck

	if err := auth.Init(conn); err != nil {
		return err
	}

	svc := auth.NewService(auth.NewGormUserStore(conn), auth.NewBcryptHasher(cfg.BcryptCost))

	_, err = svc.Create(ctx, name, email, password)
	switch {
	case err == nil:
		log.Info("admin account created", zap.String("email", svc.NormalizeEmail(email)))
	case apperror.Is(err, apperror.KindConflict):
		log.Info("admin account exists", zap.String("email", svc.NormalizeEmail(email)))
	default:
		return err
	}

	user, err := svc.Promote(ctx, email, auth.RoleAdmin)
	if err != nil {
		return err
	}
	log.Info("admin role granted", zap.String("user_id", user.ID))
	return nil
}
