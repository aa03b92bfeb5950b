package memstore

import (
	"context"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/models"
)

// PutAccount stores a dashboard account keyed by its lower-cased email.
func (s *Store) PutAccount(a models.Account) models.Account {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	a.Email = strings.ToLower(strings.TrimSpace(a.Email))
	s.accounts[a.Email] = a
	return a
}

func (s *Store) FindAccountByEmail(ctx context.Context, email string) (models.Account, bool, error) {
	defer s.lock(ctx)()

	a, ok := s.accounts[strings.ToLower(strings.TrimSpace(email))]
	return a, ok, nil
}
