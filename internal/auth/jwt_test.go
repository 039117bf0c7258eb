package auth_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiwari-pos/terminal/internal/auth"
)

func TestGenerateAndValidateToken(t *testing.T) {
	secret := "test-secret"
	userID := uuid.New()
	role := "CASHIER"

	token, err := auth.GenerateToken(secret, userID, 3, role, time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	claims, err := auth.ValidateToken(secret, token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}

	if claims.UserID != userID {
		t.Errorf("user ID: got %v, want %v", claims.UserID, userID)
	}
	if claims.BranchID != 3 {
		t.Errorf("branch ID: got %v, want 3", claims.BranchID)
	}
	if claims.Role != role {
		t.Errorf("role: got %v, want %v", claims.Role, role)
	}
	if claims.Subject != userID.String() {
		t.Errorf("subject: got %v, want %v", claims.Subject, userID)
	}
}

func TestGenerateTokenDefaultTTL(t *testing.T) {
	token, err := auth.GenerateToken("secret", uuid.New(), 3, "CASHIER", 0)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	claims, err := auth.ValidateToken("secret", token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	ttl := claims.ExpiresAt.Sub(claims.IssuedAt.Time)
	if ttl != auth.DefaultTTL {
		t.Errorf("ttl: got %v, want %v", ttl, auth.DefaultTTL)
	}
}

func TestValidateTokenWithWrongSecret(t *testing.T) {
	token, err := auth.GenerateToken("secret-a", uuid.New(), 3, "CASHIER", time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	_, err = auth.ValidateToken("secret-b", token)
	if err == nil {
		t.Fatal("expected error validating with wrong secret")
	}
}

func TestValidateTokenExpired(t *testing.T) {
	expired, err := auth.GenerateToken("secret", uuid.New(), 3, "CASHIER", time.Nanosecond)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	// NumericDate has second precision.
	time.Sleep(1100 * time.Millisecond)
	if _, err := auth.ValidateToken("secret", expired); err == nil {
		t.Fatal("expected error validating expired token")
	}
}

func TestValidateTokenWithoutBranch(t *testing.T) {
	token, err := auth.GenerateToken("secret", uuid.New(), 0, "CASHIER", time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if _, err := auth.ValidateToken("secret", token); err == nil {
		t.Fatal("expected error for token without branch")
	}
}

func TestValidateTokenWithInvalidString(t *testing.T) {
	_, err := auth.ValidateToken("secret", "not-a-jwt")
	if err == nil {
		t.Fatal("expected error validating invalid token string")
	}
}
