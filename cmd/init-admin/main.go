// Command init-admin bootstraps the first administrator account and prints
// its API key. Run once against a fresh database.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"vanban_gateway/internal/auth"
	"vanban_gateway/internal/models"
	"vanban_gateway/internal/storage"
)

func main() {
	var (
		dsn      = flag.String("db", "gateway.db", "database DSN (postgres:// URL or SQLite path)")
		email    = flag.String("email", "", "admin email")
		fullName = flag.String("name", "Administrator", "admin full name")
	)
	flag.Parse()

	if *email == "" {
		log.Fatal("-email is required")
	}
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		log.Fatal("ADMIN_PASSWORD must be set")
	}

	cfg := storage.DefaultDBConfig()
	cfg.DSN = *dsn
	db, err := storage.NewDB(cfg)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	plans := db.NewPlanRepository()
	if err := plans.SeedDefaults(ctx); err != nil {
		log.Fatalf("Failed to seed plans: %v", err)
	}

	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}
	apiKey, err := auth.GenerateAPIKey()
	if err != nil {
		log.Fatalf("Failed to generate API key: %v", err)
	}

	sub := &models.Subscriber{
		Email:    *email,
		FullName: *fullName,
		Role:     models.RoleAdmin,
		IsActive: true,
		PlanID:   "enterprise",
	}

	subs := db.NewSubscriberRepository()
	if err := subs.Create(ctx, sub, passwordHash, auth.HashAPIKey(apiKey)); err != nil {
		log.Fatalf("Failed to create admin: %v", err)
	}

	fmt.Printf("Admin created: %s (id %s)\n", sub.Email, sub.ID)
	fmt.Printf("API key (store it now, it is not recoverable): %s\n", apiKey)
}
