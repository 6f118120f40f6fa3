package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/threadline/threadline-backend/pkg/config"
	"github.com/threadline/threadline-backend/pkg/enums"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "threadline-identity"}

func TestMintAndParseAccessToken(t *testing.T) {
	now := time.Now().UTC()
	userID := uuid.New()

	token, err := MintAccessToken(testJWT, now, 30*time.Minute, AccessTokenPayload{
		UserID: userID,
		Role:   enums.ActorRoleStaff,
	})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	claims, err := ParseAccessToken(testJWT, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}

	if claims.UserID != userID {
		t.Fatalf("expected user_id %s, got %s", userID, claims.UserID)
	}
	if claims.Role != enums.ActorRoleStaff {
		t.Fatalf("unexpected role %s", claims.Role)
	}
	if claims.Issuer != testJWT.Issuer {
		t.Fatalf("expected issuer %s, got %s", testJWT.Issuer, claims.Issuer)
	}

	actor := claims.Actor()
	if actor.UserID != userID || !actor.IsStaff() {
		t.Fatalf("unexpected actor %+v", actor)
	}

	exp := now.Add(30 * time.Minute)
	diff := claims.ExpiresAt.Sub(exp)
	if diff < 0 {
		diff = -diff
	}
	if diff >= time.Second {
		t.Fatalf("expected exp roughly %v, got %v (diff %v)", exp.UTC(), claims.ExpiresAt.UTC(), diff)
	}
}

func TestParseAccessTokenInvalidSignature(t *testing.T) {
	token, err := MintAccessToken(testJWT, time.Now(), 10*time.Minute, AccessTokenPayload{
		UserID: uuid.New(),
		Role:   enums.ActorRoleCustomer,
	})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	if _, err := ParseAccessToken(testJWT, token+"x"); err == nil {
		t.Fatal("expected invalid signature error")
	}
}

func TestParseAccessTokenWrongIssuer(t *testing.T) {
	token, err := MintAccessToken(config.JWTConfig{Secret: "secret", Issuer: "someone-else"}, time.Now(), time.Minute, AccessTokenPayload{
		UserID: uuid.New(),
		Role:   enums.ActorRoleCustomer,
	})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	if _, err := ParseAccessToken(testJWT, token); err == nil {
		t.Fatal("expected issuer mismatch error")
	}
}

func TestParseAccessTokenExpired(t *testing.T) {
	token, err := MintAccessToken(testJWT, time.Now().Add(-time.Hour), 15*time.Minute, AccessTokenPayload{
		UserID: uuid.New(),
		Role:   enums.ActorRoleStaff,
	})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	_, err = ParseAccessToken(testJWT, token)
	if err == nil {
		t.Fatal("expected expiration error")
	}
	if !strings.Contains(err.Error(), "expired") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMintAccessTokenInvalidRole(t *testing.T) {
	payload := AccessTokenPayload{UserID: uuid.New(), Role: ""}
	if _, err := MintAccessToken(testJWT, time.Now(), time.Minute, payload); err == nil {
		t.Fatal("expected invalid role error")
	}
}

func TestActorPermissions(t *testing.T) {
	owner := uuid.New()
	customer := Actor{UserID: owner, Role: enums.ActorRoleCustomer}
	other := Actor{UserID: uuid.New(), Role: enums.ActorRoleCustomer}
	admin := Actor{UserID: uuid.New(), Role: enums.ActorRoleAdmin}

	if !customer.CanActFor(owner) {
		t.Fatal("owner must act for itself")
	}
	if other.CanActFor(owner) {
		t.Fatal("foreign customer must not act for owner")
	}
	if !admin.CanActFor(owner) {
		t.Fatal("admin acts for everyone")
	}
	if err := (Actor{Role: enums.ActorRoleCustomer}).Validate(); err == nil {
		t.Fatal("expected missing user id error")
	}
	if err := (Actor{UserID: owner, Role: "guest"}).Validate(); err == nil {
		t.Fatal("expected invalid role error")
	}
}
