package core

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log"
	"os"
)

const (
	bootstrapAdminName           = "admin"
	bootstrapAdminPasswordLength = 32
)

// BootstrapAdmin registers "admin" with cfg.AdminRole unless some user already
// holds that role. The generated password goes to InitialAdminPasswordPath, or
// to the log when no path is configured.
func BootstrapAdmin(ctx context.Context, users *UserService, cfg Config) error {
	if !cfg.BootstrapAdminEnabled {
		return nil
	}
	exists, err := users.HasRole(ctx, cfg.AdminRole)
	if err != nil {
		return fmt.Errorf("check for admin: %w", err)
	}
	if exists {
		return nil
	}

	password, err := generatePassword(bootstrapAdminPasswordLength)
	if err != nil {
		return err
	}
	u, err := users.Register(ctx, bootstrapAdminName, password, cfg.AdminRole)
	if err != nil {
		return fmt.Errorf("register %s: %w", bootstrapAdminName, err)
	}
	return announceAdmin(cfg.InitialAdminPasswordPath, u, password)
}

func announceAdmin(path string, u *User, password string) error {
	if path == "" {
		log.Printf("[bootstrap] created user=%q role=%d password=%s", u.Name, u.Role, password)
		return nil
	}
	if err := os.WriteFile(path, []byte(password+"\n"), 0o600); err != nil {
		return fmt.Errorf("write admin password to %s: %w", path, err)
	}
	log.Printf("[bootstrap] created user=%q role=%d; password written to %s", u.Name, u.Role, path)
	return nil
}

// generatePassword returns length URL-safe base64 characters. The alphabet has
// neither ':' nor '\n', so the result always passes registration checks.
func generatePassword(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("password length must be positive, got %d", length)
	}
	raw := make([]byte, length)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate password: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw)[:length], nil
}
