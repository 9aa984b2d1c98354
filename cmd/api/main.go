package main

import (
	"context"
	"fmt"
	"log"

	"liveticker-api/core"
)

func main() {
	cfg, err := core.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	ctx := context.Background()

	logCloser, err := core.SetupLogging(cfg, "api.log")
	if err != nil {
		log.Fatalf("failed to setup logging: %v", err)
	}
	defer logCloser.Close()

	db, err := core.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer db.Close()
	if err := core.EnsureSchema(ctx, db); err != nil {
		log.Fatalf("failed to prepare schema: %v", err)
	}

	redisClient, err := core.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer redisClient.Close()

	hasher, err := core.NewPasswordHasher(cfg.HashAlgorithm, cfg.SaltLength)
	if err != nil {
		log.Fatalf("failed to setup password hashing: %v", err)
	}

	userRepo := core.NewPgUserRepository(db)
	issuer := core.NewTokenIssuer(userRepo, cfg.TokenLength)
	verifier := core.NewVerifier(userRepo, hasher, cfg.TokenTTL())
	marks := core.NewRedisLogoutMarks(redisClient, cfg.TokenTTL())
	auth := core.NewAuthenticator(cfg.Realm, verifier, issuer, marks)
	users := core.NewUserService(userRepo, hasher, issuer)

	if err := core.BootstrapAdmin(ctx, users, cfg); err != nil {
		log.Fatalf("bootstrap admin failed: %v", err)
	}

	router := core.NewRouter(cfg, core.RouterDeps{
		Auth:    auth,
		Users:   users,
		Marks:   marks,
		Metrics: core.NewAuthMetrics(redisClient),
	})

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Printf("starting api server on %s realm=%q token_ttl=%s hash=%s", addr, cfg.Realm, cfg.TokenTTL(), cfg.HashAlgorithm)
	if err := router.Run(addr); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
