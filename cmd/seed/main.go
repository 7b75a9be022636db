package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"flashquiz-backend/internal/config"
	"flashquiz-backend/internal/database"
	"flashquiz-backend/internal/logger"
	"flashquiz-backend/internal/middleware"
	"flashquiz-backend/internal/repository"
	"flashquiz-backend/internal/seed"
	"flashquiz-backend/internal/storage"
)

func main() {
	file := flag.String("file", "", "YAML fixtures to load (defaults to the built-in demo sets)")
	user := flag.String("user", "", "owner for sets that do not name one")
	checkImages := flag.Bool("check-images", true, "warn about image keys missing from the bucket")
	tokenTTL := flag.Duration("token-ttl", 0, "also print a dev access token for the owner, valid this long")
	flag.Parse()

	cfg := config.Load()
	log, err := logger.New(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	var fixtures *seed.File
	if *file != "" {
		fixtures, err = seed.LoadFile(*file)
	} else {
		fixtures, err = seed.Demo()
	}
	if err != nil {
		log.Fatal("✗ Invalid fixtures", "error", err)
	}
	if *user != "" {
		for _, s := range fixtures.Sets {
			s.UserID = *user
		}
		fixtures.UserID = *user
	}
	log.Info("✓ Fixtures parsed", "sets", len(fixtures.Sets))

	pool, err := database.NewPostgresPool(database.PostgresOptions{URL: cfg.DatabaseURL, MaxConns: 4, MinConns: 1})
	if err != nil {
		log.Fatal("✗ PostgreSQL connection failed", "error", err)
	}
	defer pool.Close()
	log.Info("✓ PostgreSQL connected")

	if err := database.RunMigrations(pool, cfg.MigrationsDir, log); err != nil {
		log.Fatal("✗ Database migration failed", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var checker *storage.ImageResolver
	if *checkImages && cfg.GCSBucket != "" {
		checker, err = storage.NewImageResolver(ctx, storage.Config{
			Bucket:        cfg.GCSBucket,
			CDNDomain:     cfg.GCSCDNDomain,
			PublicBaseURL: cfg.PublicBaseURL,
			EmulatorHost:  cfg.StorageEmulatorHost,
		}, log)
		if err != nil {
			log.Fatal("✗ Object storage init failed", "error", err)
		}
		defer checker.Close()
	}

	var images interface {
		Exists(ctx context.Context, key string) (bool, error)
	}
	if checker != nil {
		images = checker
	}
	n, err := seed.Apply(ctx, fixtures, repository.NewSetRepo(pool), images, log)
	if err != nil {
		log.Fatal("✗ Seeding failed", "written", n, "error", err)
	}
	log.Info("✓ Sets seeded", "count", n)

	if *tokenTTL > 0 && fixtures.UserID != "" {
		token, err := middleware.NewJWTAuth(cfg.JWTSecret).GenerateAccessToken(fixtures.UserID, *tokenTTL)
		if err != nil {
			log.Fatal("✗ Token generation failed", "error", err)
		}
		fmt.Println(token)
	}
}
