package documents

import (
	"context"

	"github.com/dmitrijs2005/casevault/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, d *models.Document) error
	GetByID(ctx context.Context, id string) (*models.Document, error)
	ListByOwner(ctx context.Context, userID string) ([]*models.Document, error)
	Delete(ctx context.Context, id string) error
}
