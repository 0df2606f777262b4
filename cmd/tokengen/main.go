// Command tokengen mints access tokens for the API. The identity provider
// normally issues them; tokengen covers local development and operations.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/uibattles/uibattles-api/internal/config"
	"github.com/uibattles/uibattles-api/internal/service/auth"
)

func main() {
	userFlag := flag.String("user", "", "user ID to issue the token for (a new ID when empty)")
	flag.Parse()

	token, userID, err := mint(*userFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tokengen: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("User:  %s\nToken: %s\n", userID, token)
}

func mint(rawUserID string) (string, uuid.UUID, error) {
	userID := uuid.New()
	if rawUserID != "" {
		parsed, err := uuid.Parse(rawUserID)
		if err != nil {
			return "", uuid.Nil, fmt.Errorf("invalid user ID %q: %w", rawUserID, err)
		}
		userID = parsed
	}

	cfg, err := config.Load()
	if err != nil {
		return "", uuid.Nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	jwtService, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		return "", uuid.Nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}

	token, err := jwtService.GenerateToken(context.Background(), userID)
	if err != nil {
		return "", uuid.Nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return token, userID, nil
}
