package services

import (
	"context"

	"github.com/google/uuid"

	"tour-service/internal/models"
)

// OwnerLookup resolves the sales entity a tour is attached to. The entities
// themselves live in another service.
type OwnerLookup interface {
	Exists(ctx context.Context, owner models.OwnerRef) (bool, error)
}

// AnyOwner accepts every well-formed owner reference.
type AnyOwner struct{}

func (AnyOwner) Exists(_ context.Context, owner models.OwnerRef) (bool, error) {
	return owner.Kind.Valid() && owner.ID != uuid.Nil, nil
}
