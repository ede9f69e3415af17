package core

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"recordcore/pkg/domain"
)

// Authenticate resolves a vet by name and password. The returned vet never
// carries the stored password.
func (s *Service) Authenticate(ctx context.Context, name, password string) (domain.Vet, error) {
	var vet domain.Vet
	err := s.view(ctx, opAuthenticate, func(v domain.TransactionView) error {
		var err error
		vet, err = vetByCredentials(v, name, password)
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrAuthFailed) {
			s.logger.Warn("authentication failed", "name", name)
		}
		return domain.Vet{}, err
	}
	s.logger.Info("authenticated", "vet_id", vet.ID)
	return vet, nil
}

func vetByCredentials(v domain.TransactionView, name, password string) (domain.Vet, error) {
	name = strings.TrimSpace(name)
	if name == "" || password == "" {
		return domain.Vet{}, domain.ErrAuthFailed
	}
	vets, err := v.Vets().Find(domain.Selector{})
	if err != nil {
		return domain.Vet{}, err
	}
	for _, vet := range vets {
		if !strings.EqualFold(strings.TrimSpace(vet.Name), name) {
			continue
		}
		if passwordMatches(vet.Password, password) {
			vet.Password = ""
			return vet, nil
		}
	}
	return domain.Vet{}, domain.ErrAuthFailed
}

// passwordMatches accepts bcrypt hashes and, for records written before
// hashing was enabled, plain text.
func passwordMatches(stored, given string) bool {
	if isBcryptHash(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(given)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(given)) == 1
}

func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

// HashPassword returns a bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", domain.InvalidInputError{Field: "password", Reason: err.Error()}
	}
	return string(hashed), nil
}

func (s *Service) preparePassword(password string) (string, error) {
	if !s.hashPasswords || password == "" || isBcryptHash(password) {
		return password, nil
	}
	return HashPassword(password)
}
