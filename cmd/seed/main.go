// seed inserts development sample data for local testing. Run with go run ./cmd/seed after migrating.
// Idempotent: skips inserts if the dev user (dev@example.com) already exists.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"storyloom/backend/internal/config"
	"storyloom/backend/internal/db"
	notificationdomain "storyloom/backend/internal/notification/domain"
	notificationrepo "storyloom/backend/internal/notification/repository"
	"storyloom/backend/internal/security"
	storydomain "storyloom/backend/internal/story/domain"
	storyrepo "storyloom/backend/internal/story/repository"
	userdomain "storyloom/backend/internal/user/domain"
	userrepo "storyloom/backend/internal/user/repository"
)

const (
	devUserEmail   = "dev@example.com"
	devPassword    = "password123"
	devUserID      = "dev-user-001"
	devUser2ID     = "dev-user-002"
	devStoryID     = "dev-story-001"
	devInviteID    = "dev-notification-001"
	memberEmail    = "member@example.com"
	devCharacter   = "The Narrator"
	devStoryTitle  = "The Lighthouse Keeper"
	devStoryIntro  = "A shared tale set on a storm-battered coast."
	memberUsername = "member"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	ctx := context.Background()
	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	users := userrepo.NewPostgresRepository(pool)
	stories := storyrepo.NewPostgresRepository(pool)
	notifications := notificationrepo.NewPostgresRepository(pool)

	existing, err := users.GetByEmail(ctx, devUserEmail)
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if existing != nil {
		log.Println("Seed already applied (dev@example.com exists). Skipping.")
		os.Exit(0)
	}

	hasher := security.NewHasher(cfg.BcryptCost)
	passwordHash, err := hasher.HashPassword(devPassword)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}
	now := time.Now().UTC()

	err = db.NewTxManager(pool).WithinTx(ctx, func(ctx context.Context) error {
		for _, u := range []*userdomain.User{
			{ID: devUserID, Email: devUserEmail, Username: "dev", PasswordHash: passwordHash, CreatedAt: now, UpdatedAt: now},
			{ID: devUser2ID, Email: memberEmail, Username: memberUsername, PasswordHash: passwordHash, CreatedAt: now, UpdatedAt: now},
		} {
			if err := users.Create(ctx, u); err != nil {
				return err
			}
		}
		if err := stories.Create(ctx, &storydomain.Story{
			ID: devStoryID, OwnerID: devUserID, Title: devStoryTitle, Description: devStoryIntro, CreatedAt: now,
		}); err != nil {
			return err
		}
		if err := stories.AddCollaborator(ctx, &storydomain.Collaborator{
			StoryID: devStoryID, UserID: devUserID, Character: devCharacter, CreatedAt: now,
		}); err != nil {
			return err
		}
		return notifications.Create(ctx, &notificationdomain.Notification{
			ID: devInviteID, FromUser: devUserID, ToUser: devUser2ID, StoryID: devStoryID,
			Type: notificationdomain.TypeCollaborationInvite, CreatedAt: now,
		})
	})
	if err != nil {
		log.Fatalf("seed: %v", err)
	}

	log.Printf("Seed complete. Sign in as %s or %s with password %q (OTP via GET /dev/otp in dev mode).", devUserEmail, memberEmail, devPassword)
}
