package postpay

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/printforge/server/internal/module/order"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrderSaver persists mutations to a locked order within the surrounding
// transaction.
type OrderSaver interface {
	Save(ctx context.Context, o *order.Order) error
}

// Store gives the worker transactional, exclusively-locked access to orders.
// Each call is one transaction: progress made inside fn is durable once the
// call returns, and the row lock is released with it.
type Store interface {
	// ClaimNext locks one order with outstanding post-payment work and runs
	// fn under that lock. Orders locked by concurrent workers are skipped.
	// Returns false when nothing is claimable. An error from fn rolls the
	// whole claim back.
	ClaimNext(ctx context.Context, fn func(ctx context.Context, tx OrderSaver, o *order.Order) error) (bool, error)

	// WithOrder re-locks a specific order and runs fn under that lock, so a
	// follow-up step can re-check state that a concurrent worker may have
	// advanced in the meantime.
	WithOrder(ctx context.Context, id uuid.UUID, fn func(ctx context.Context, tx OrderSaver, o *order.Order) error) error
}

type gormStore struct {
	db *gorm.DB
}

// NewStore creates a worker store backed by gorm.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) ClaimNext(ctx context.Context, fn func(ctx context.Context, tx OrderSaver, o *order.Order) error) (bool, error) {
	claimed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		o, err := order.NewRepository(tx).ClaimNextForPostProcessing(tx)
		if errors.Is(err, order.ErrNoClaimableOrder) {
			return nil
		}
		if err != nil {
			return err
		}
		claimed = true
		return fn(ctx, &gormSaver{tx: tx}, o)
	})
	if err != nil {
		return claimed, err
	}
	return claimed, nil
}

func (s *gormStore) WithOrder(ctx context.Context, id uuid.UUID, fn func(ctx context.Context, tx OrderSaver, o *order.Order) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var o order.Order
		err := tx.
			Clauses(clause.Locking{Strength: "UPDATE", Table: clause.Table{Name: "orders"}}).
			Preload("Items").
			First(&o, "id = ?", id).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return order.ErrOrderNotFound
			}
			return fmt.Errorf("lock order: %w", err)
		}
		return fn(ctx, &gormSaver{tx: tx}, &o)
	})
}

type gormSaver struct {
	tx *gorm.DB
}

func (s *gormSaver) Save(ctx context.Context, o *order.Order) error {
	if err := s.tx.WithContext(ctx).Session(&gorm.Session{FullSaveAssociations: true}).Save(o).Error; err != nil {
		return fmt.Errorf("save order: %w", err)
	}
	return nil
}
