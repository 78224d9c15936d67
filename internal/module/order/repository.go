package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository defines the interface for order data access.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	GetByNumber(ctx context.Context, number string) (*Order, error)
	Update(ctx context.Context, o *Order) error

	// ClaimNextForPostProcessing selects one paid order with outstanding
	// post-payment side effects and locks its row for the duration of tx.
	// Rows locked by concurrent workers are skipped, so two workers never
	// claim the same order. Returns ErrNoClaimableOrder when nothing is
	// left to do.
	ClaimNextForPostProcessing(tx *gorm.DB) (*Order, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository creates a new order repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, o *Order) error {
	if err := r.db.WithContext(ctx).Create(o).Error; err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	var o Order
	err := r.db.WithContext(ctx).Preload("Items").First(&o, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return &o, nil
}

func (r *repository) GetByNumber(ctx context.Context, number string) (*Order, error) {
	var o Order
	err := r.db.WithContext(ctx).Preload("Items").First(&o, "order_number = ?", number).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order by number: %w", err)
	}
	return &o, nil
}

func (r *repository) Update(ctx context.Context, o *Order) error {
	if err := r.db.WithContext(ctx).Session(&gorm.Session{FullSaveAssociations: true}).Save(o).Error; err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	return nil
}

func (r *repository) ClaimNextForPostProcessing(tx *gorm.DB) (*Order, error) {
	var o Order
	err := tx.
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED", Table: clause.Table{Name: "orders"}}).
		Preload("Items").
		Where("status = ?", StatusPaid).
		Where(
			tx.Where("need_post_process = ?", true).
				Or("confirmation_email_sent_at IS NULL").
				Or("tracking_number IS NOT NULL AND tracking_email_sent_at IS NULL"),
		).
		Limit(1).
		First(&o).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoClaimableOrder
		}
		return nil, fmt.Errorf("claim order: %w", err)
	}
	return &o, nil
}
