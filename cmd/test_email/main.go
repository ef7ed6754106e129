package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/creditiq/creditiq-api/internal/config"
	"github.com/creditiq/creditiq-api/internal/models"
	"github.com/creditiq/creditiq-api/internal/services"
	"github.com/creditiq/creditiq-api/pkg/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Setup("development")

	if cfg.ResendAPIKey == "" {
		log.Fatal("RESEND_API_KEY is not set")
	}

	emailService := services.NewEmailService(cfg)

	toEmail := os.Getenv("TEST_EMAIL_TO")
	if toEmail == "" {
		toEmail = "test@example.com"
		log.Println("TEST_EMAIL_TO not set, using test@example.com. Emails might fail if domain not verified.")
	}

	user := &models.User{
		FirstName: "Test",
		LastName:  "User",
		Email:     toEmail,
	}

	log.Printf("Sending welcome email to %s...", toEmail)
	if err := emailService.SendWelcomeEmail(context.Background(), user); err != nil {
		log.Fatalf("Failed to send welcome email: %v", err)
	}
	log.Println("Welcome email sent successfully!")

	log.Printf("Sending decision email to %s...", toEmail)
	if err := emailService.SendLoanDecisionEmail(context.Background(), user, 1, models.DecisionApproved); err != nil {
		log.Fatalf("Failed to send decision email: %v", err)
	}
	log.Println("Decision email sent successfully!")
}
