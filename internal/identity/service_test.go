package identity

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func newTestService() *Service {
	return NewService(NewMemoryRepository(), PINHasher{Cost: bcrypt.MinCost})
}

func TestRegisterAndVerifyPIN(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	hash, err := svc.HashPIN("1234")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	user, err := svc.Register(ctx, NewUser{Phone: "08031234567", Name: "Amina Bello", Email: "Amina@Example.com", PINHash: hash})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Role != RoleFarmer {
		t.Fatalf("expected farmer role, got %s", user.Role)
	}
	if user.Email != "amina@example.com" {
		t.Fatalf("expected lowercased email, got %s", user.Email)
	}

	found, err := svc.FindByPhone(ctx, "08031234567")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !svc.VerifyPIN(found, "1234") {
		t.Fatal("expected PIN to verify")
	}
	if svc.VerifyPIN(found, "4321") {
		t.Fatal("expected wrong PIN to fail")
	}
}

func TestRegisterDuplicatePhone(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	hash, _ := svc.HashPIN("1234")

	if _, err := svc.Register(ctx, NewUser{Phone: "08031234567", Name: "A", PINHash: hash}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Register(ctx, NewUser{Phone: "08031234567", Name: "B", PINHash: hash}); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
}

func TestChangePIN(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	hash, _ := svc.HashPIN("1234")
	user, _ := svc.Register(ctx, NewUser{Phone: "08031234567", Name: "A", PINHash: hash})

	newHash, _ := svc.HashPIN("5678")
	if err := svc.ChangePIN(ctx, user.ID, newHash); err != nil {
		t.Fatalf("change pin: %v", err)
	}
	reloaded, err := svc.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if !svc.VerifyPIN(reloaded, "5678") || svc.VerifyPIN(reloaded, "1234") {
		t.Fatal("expected only the new PIN to verify")
	}
	if err := svc.ChangePIN(ctx, "missing", newHash); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestHashRejectsMalformedPIN(t *testing.T) {
	for _, pin := range []string{"", "123", "12345", "12a4"} {
		if _, err := (PINHasher{Cost: bcrypt.MinCost}).Hash(pin); !errors.Is(err, ErrInvalidPIN) {
			t.Fatalf("expected ErrInvalidPIN for %q, got %v", pin, err)
		}
	}
}
