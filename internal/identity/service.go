package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service is the account directory consulted by USSD dialogs.
type Service struct {
	repo   Repository
	hasher PINHasher
}

// NewService creates a new identity service.
func NewService(repo Repository, hasher PINHasher) *Service {
	return &Service{repo: repo, hasher: hasher}
}

// FindByPhone resolves a normalized phone number to an identity.
func (s *Service) FindByPhone(ctx context.Context, phone string) (User, error) {
	return s.repo.FindByPhone(ctx, phone)
}

// FindByID loads an identity by its identifier.
func (s *Service) FindByID(ctx context.Context, id string) (User, error) {
	return s.repo.FindByID(ctx, id)
}

// Register creates a new identity with the farmer role.
func (s *Service) Register(ctx context.Context, in NewUser) (User, error) {
	if strings.TrimSpace(in.Name) == "" {
		return User{}, errors.New("name is required")
	}
	if len(in.PINHash) == 0 {
		return User{}, ErrInvalidPIN
	}

	user := User{
		ID:        uuid.New().String(),
		Phone:     in.Phone,
		Name:      strings.TrimSpace(in.Name),
		Email:     strings.ToLower(strings.TrimSpace(in.Email)),
		Role:      RoleFarmer,
		PINHash:   in.PINHash,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return User{}, err
	}
	return user, nil
}

// VerifyPIN checks pin against the stored digest for user.
func (s *Service) VerifyPIN(user User, pin string) bool {
	return s.hasher.Verify(pin, user.PINHash)
}

// VerifyDigest checks pin against a digest that is not yet stored, such as
// one held while a new PIN is being confirmed.
func (s *Service) VerifyDigest(pin string, digest []byte) bool {
	return s.hasher.Verify(pin, digest)
}

// HashPIN hashes a PIN with the configured cost.
func (s *Service) HashPIN(pin string) ([]byte, error) {
	return s.hasher.Hash(pin)
}

// ChangePIN stores a new PIN digest for the identity.
func (s *Service) ChangePIN(ctx context.Context, id string, pinHash []byte) error {
	if len(pinHash) == 0 {
		return ErrInvalidPIN
	}
	return s.repo.UpdatePIN(ctx, id, pinHash)
}
