package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"storefront/internal/models"
)

func (s *Store) FindAccountByEmail(ctx context.Context, email string) (models.Account, bool, error) {
	var acc models.Account
	err := s.accounts.FindOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))}).Decode(&acc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Account{}, false, nil
	}
	if err != nil {
		return models.Account{}, false, fmt.Errorf("find account: %w", err)
	}
	return acc, true, nil
}
