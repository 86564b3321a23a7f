package main

import (
	"context"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"deskbackend/config"
	"deskbackend/db"
	"deskbackend/services/organizations"
)

func main() {
	log.Printf("🔑 Creating a new organization with a fresh secret key...")

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using system environment variables")
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}

	// Create database connection
	dbConn, err := db.NewConnection(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer dbConn.Close()

	organizationsRepo := db.NewPostgresOrganizationsRepository(dbConn, cfg.DatabaseSchema)
	organizationsService := organizations.NewOrganizationsService(organizationsRepo)

	ctx := context.Background()

	org, err := organizationsService.CreateOrganization(ctx)
	if err != nil {
		log.Fatalf("❌ Failed to create organization: %v", err)
	}

	secretKey, err := organizationsService.GenerateSecretKey(ctx, org.ID)
	if err != nil {
		log.Fatalf("❌ Failed to generate secret key: %v", err)
	}

	fmt.Printf("Organization ID: %s\n", org.ID)
	fmt.Printf("Secret Key:      %s\n", secretKey)
	log.Printf("✅ Successfully created organization %s with a secret key", org.ID)
}
