package payment

import (
	"context"

	"github.com/printforge/server/internal/module/order"
	"gorm.io/gorm"
)

// Store runs order and payment mutations in a single database transaction.
// A webhook either lands completely, on both rows, or not at all.
type Store interface {
	Atomically(ctx context.Context, fn func(orders order.Repository, payments Repository) error) error
}

type gormStore struct {
	db *gorm.DB
}

// NewStore creates a transactional store backed by gorm.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Atomically(ctx context.Context, fn func(orders order.Repository, payments Repository) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(order.NewRepository(tx), NewRepository(tx))
	})
}
