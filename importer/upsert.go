package importer

import (
	"context"

	"github.com/padraicbc/mtgvault/models"
)

// Outcome of a single upsert.
type Outcome int

const (
	Created Outcome = iota + 1
	Updated
)

func (o Outcome) String() string {
	switch o {
	case Created:
		return "created"
	case Updated:
		return "updated"
	}
	return "unknown"
}

// Catalog is the part of the catalog store Upsert needs.
type Catalog interface {
	FindByIdentity(ctx context.Context, name, setCode, collectorNumber string) (*models.Card, error)
	Insert(ctx context.Context, card *models.Card) (int64, error)
	Update(ctx context.Context, id int64, card *models.Card) error
}

// Upsert inserts card or fully replaces the stored card with the same identity.
// It runs on whatever transaction cat is bound to and never commits.
func Upsert(ctx context.Context, cat Catalog, card *models.Card) (Outcome, error) {
	existing, err := cat.FindByIdentity(ctx, card.Name, card.SetCode, card.CollectorNumber)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		card.CreatedAt = existing.CreatedAt
		if err := cat.Update(ctx, existing.ID, card); err != nil {
			return 0, err
		}
		return Updated, nil
	}
	if _, err := cat.Insert(ctx, card); err != nil {
		return 0, err
	}
	return Created, nil
}
