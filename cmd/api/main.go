package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-magiclink-api/internal/config"
	"github.com/go-magiclink-api/internal/infrastructure/dynamo"
	"github.com/go-magiclink-api/internal/infrastructure/google"
	jwtinfra "github.com/go-magiclink-api/internal/infrastructure/jwt"
	"github.com/go-magiclink-api/internal/infrastructure/memstore"
	s3infra "github.com/go-magiclink-api/internal/infrastructure/s3"
	"github.com/go-magiclink-api/internal/infrastructure/smtp"
	transporthttp "github.com/go-magiclink-api/internal/transport/http"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()

	// JWT provider. Missing or reused secrets are a hard startup failure:
	// serving logins with broken token signing is worse than not serving.
	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		log.Fatalf("JWT provider: %v", err)
	}

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient := dynamo.NewClient(cfg)
	dynamo.Bootstrap(context.Background(), dynamoClient, cfg.DynamoTables)

	// Magic-link store: in-memory for a single instance, DynamoDB when the
	// service runs behind a load balancer.
	var magicLinks transporthttp.MagicLinkStore
	switch cfg.MagicLinkStore {
	case "dynamo":
		magicLinks = dynamo.NewMagicLinkRepo(dynamoClient, cfg.DynamoTables.MagicLinks)
	default:
		magicLinks = memstore.NewMagicLinkStore()
	}

	// S3 store for avatars.
	s3Client := s3infra.NewClient(cfg)
	s3Store := s3infra.NewStore(s3Client, cfg.S3BucketName, cfg.AWSRegion)

	deps := &transporthttp.Deps{
		UserRepo:       dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users),
		MagicLinks:     magicLinks,
		ObjectStore:    s3Store,
		Mailer:         smtp.NewMailer(cfg),
		JWTProvider:    jwtProvider,
		GoogleVerifier: google.NewVerifier(cfg.GoogleClientID),
	}

	router := transporthttp.NewRouter(cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s)", cfg.AppPort, cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}
