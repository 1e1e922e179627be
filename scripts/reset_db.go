package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"servus-backend/internal/audit"
	"servus-backend/internal/auth"
	"servus-backend/internal/config"
	"servus-backend/internal/database"
	"servus-backend/internal/db"
	"servus-backend/internal/repositories"
	"servus-backend/internal/services"
	"servus-backend/internal/timeutil"
)

// children first, the single TRUNCATE below handles the references anyway
var tables = []string{
	"queued_emails",
	"job_feedbacks",
	"invoice_items",
	"invoices",
	"job_materials",
	"job_photos",
	"job_notes",
	"job_activities",
	"jobs",
	"materials",
	"customers",
	"technicians",
	"users",
}

func main() {
	yes := flag.Bool("yes", false, "skip the confirmation prompt")
	flag.Parse()

	fmt.Println("========================================")
	fmt.Println("   Reset Database for Testing")
	fmt.Println("========================================")
	fmt.Println()
	fmt.Println("WARNING: This will DELETE ALL DATA and re-seed the owner account.")
	fmt.Println()

	if !*yes {
		fmt.Print("Type 'yes' to confirm: ")
		var confirm string
		fmt.Scanln(&confirm)
		if confirm != "yes" {
			fmt.Println("Reset cancelled.")
			return
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Bootstrap.OwnerEmail == "" {
		log.Fatal("OWNER_EMAIL must be set so the reset database has someone who can log in")
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	// a fresh database gets its schema first
	if err := database.NewMigrator(pool).RunMigrations(ctx); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	fmt.Println("Resetting database...")
	if _, err := pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", strings.Join(tables, ", "))); err != nil {
		log.Fatalf("Failed to truncate tables: %v", err)
	}
	for _, table := range tables {
		fmt.Printf("  cleared %s\n", table)
	}

	authService := services.NewAuthService(
		repositories.NewUserRepository(pool),
		auth.NewJWTManager(cfg),
		audit.NewRecorder(timeutil.Now),
	)
	if err := authService.BootstrapOwner(ctx, cfg.Bootstrap.OwnerName, cfg.Bootstrap.OwnerEmail, cfg.Bootstrap.OwnerPassword); err != nil {
		log.Fatalf("Failed to create owner: %v", err)
	}
	fmt.Println("  created owner account")

	fmt.Println()
	fmt.Println("Database reset successful!")
	fmt.Printf("  Owner login: %s\n", cfg.Bootstrap.OwnerEmail)
}
