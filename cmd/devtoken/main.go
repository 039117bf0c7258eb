// Command devtoken issues a terminal access token for local testing
// against a running server.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/kiwari-pos/terminal/internal/auth"
	"github.com/kiwari-pos/terminal/internal/enum"
	log "github.com/sirupsen/logrus"
)

func main() {
	// CLI flags
	user := flag.String("user", "", "User ID (UUID); random when empty")
	branch := flag.Int64("branch", 1, "Branch ID the token is scoped to")
	role := flag.String("role", enum.UserRoleCashier, "User role")
	ttl := flag.Duration("ttl", 8*time.Hour, "Token lifetime")
	flag.Parse()

	// Same secret the server reads
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "dev-secret-change-in-production"
		log.Warn("JWT_SECRET not set, using the development default")
	}

	if !enum.IsValidUserRole(*role) {
		log.Fatalf("invalid role %q", *role)
	}

	userID := uuid.New()
	if *user != "" {
		id, err := uuid.Parse(*user)
		if err != nil {
			log.Fatalf("invalid user ID: %v", err)
		}
		userID = id
	}

	token, err := auth.GenerateToken(secret, userID, *branch, *role, *ttl)
	if err != nil {
		log.Fatalf("generate token: %v", err)
	}

	log.WithFields(log.Fields{
		"user_id":   userID,
		"branch_id": *branch,
		"role":      *role,
		"expires":   time.Now().Add(*ttl).Format(time.RFC3339),
	}).Info("token issued")
	fmt.Println(token)
}
