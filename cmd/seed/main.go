package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"planora/internal/database"
	"planora/internal/domain"
	jwtsvc "planora/internal/pkg/jwt"

	"golang.org/x/crypto/bcrypt"
)

func main() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = "planora.db"
	}

	db, err := database.Connect(dsn)
	if err != nil {
		log.Fatal("DB connection failed:", err)
	}

	log.Println("Running AutoMigrate...")
	if err := database.Migrate(db); err != nil {
		log.Fatal("AutoMigrate failed:", err)
	}

	log.Println("Cleaning old data...")
	db.Exec("DELETE FROM notification_receipts")
	db.Exec("DELETE FROM device_tokens")
	db.Exec("DELETE FROM refresh_tokens")
	db.Exec("DELETE FROM invitations")
	db.Exec("DELETE FROM users")

	log.Println("Creating users...")

	adminHash, _ := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)
	admin := domain.User{
		Email:        "admin@planora.app",
		PasswordHash: string(adminHash),
		Role:         domain.RoleAdmin,
		FirstName:    "Admin",
		LastName:     "Planora",
	}
	db.Create(&admin)
	log.Println("Admin created: admin@planora.app / admin123")

	names := [][2]string{{"Asel", "Nurlanova"}, {"Bekzat", "Omarov"}, {"Dina", "Serikova"}}
	for i, n := range names {
		hash, _ := bcrypt.GenerateFromPassword([]byte("user1234"), bcrypt.DefaultCost)
		user := domain.User{
			Email:             fmt.Sprintf("user%d@planora.app", i+1),
			PasswordHash:      string(hash),
			Role:              domain.RoleUser,
			FirstName:         n[0],
			LastName:          n[1],
			PreferredLanguage: "en",
		}
		db.Create(&user)
	}
	log.Println("Users created: user1..3@planora.app / user1234")

	log.Println("Creating a pending invitation...")
	token, err := jwtsvc.GenerateOpaqueSecret()
	if err != nil {
		log.Fatal(err)
	}
	invitation := domain.Invitation{
		Email:     "invitee@planora.app",
		Token:     token,
		Status:    domain.InvitationPending,
		ExpiresAt: time.Now().Add(8 * time.Hour),
	}
	db.Create(&invitation)
	log.Printf("Invitation link: /register?token=%s", token)

	log.Println("Seed completed")
}
