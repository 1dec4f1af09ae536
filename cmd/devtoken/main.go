// Command devtoken mints a signed access token for local testing of the
// match management endpoints.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Dosada05/matchday/models"
	"github.com/Dosada05/matchday/utils"
	"github.com/joho/godotenv"
)

func main() {
	userID := flag.Int("user", 1, "user id placed in the token")
	role := flag.String("role", string(models.RoleOrganizer), "role: admin, organizer or player")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	secret := flag.String("secret", "", "signing secret (defaults to JWT_SECRET_KEY)")
	flag.Parse()

	_ = godotenv.Load()
	if *secret == "" {
		*secret = os.Getenv("JWT_SECRET_KEY")
	}

	token, err := mint(*secret, *userID, models.UserRole(*role), *ttl)
	if err != nil {
		slog.Error("failed to mint token", slog.Any("error", err))
		os.Exit(1)
	}
	fmt.Println(token)
}

func mint(secret string, userID int, role models.UserRole, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("signing secret is empty: pass -secret or set JWT_SECRET_KEY")
	}
	if userID <= 0 {
		return "", fmt.Errorf("user id must be positive, got %d", userID)
	}
	if !role.Valid() {
		return "", fmt.Errorf("unknown role %q", role)
	}
	if ttl <= 0 {
		return "", fmt.Errorf("ttl must be positive, got %s", ttl)
	}
	return utils.GenerateToken([]byte(secret), models.Actor{UserID: userID, Role: role}, ttl, time.Now().UTC())
}
