package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"planora/internal/database"
	"planora/internal/repository"
)

// receiptRetention is how long resolved notification receipts are kept for
// inspection before this job removes them.
const receiptRetention = 30 * 24 * time.Hour

func main() {
	_ = godotenv.Load()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	db, err := database.Connect(databaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}

	ctx := context.Background()

	sessions, err := repository.NewRefreshTokenRepository(db).DeleteExpired(ctx)
	if err != nil {
		log.Fatalf("cleanup refresh_tokens failed: %v", err)
	}

	invitations, err := repository.NewInvitationRepository(db).DeleteExpired(ctx)
	if err != nil {
		log.Fatalf("cleanup invitations failed: %v", err)
	}

	receipts, err := repository.NewReceiptRepository(db).DeleteResolvedBefore(ctx, time.Now().Add(-receiptRetention))
	if err != nil {
		log.Fatalf("cleanup notification_receipts failed: %v", err)
	}

	log.Printf("auth cleanup completed: refresh_tokens=%d invitations=%d notification_receipts=%d",
		sessions, invitations, receipts)
}
