package shipping

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/threadline/threadline-backend/pkg/db/models"
)

// Repository persists shipping rules.
type Repository interface {
	Create(ctx context.Context, rule *models.ShippingRule) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.ShippingRule, error)
	List(ctx context.Context, activeOnly bool) ([]models.ShippingRule, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds the shipping rule repository to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// Create inserts the rule, is_active included, in one statement.
func (r *repository) Create(ctx context.Context, rule *models.ShippingRule) error {
	return r.db.WithContext(ctx).Create(rule).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.ShippingRule, error) {
	var rule models.ShippingRule
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&rule).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *repository) List(ctx context.Context, activeOnly bool) ([]models.ShippingRule, error) {
	query := r.db.WithContext(ctx).Order("created_at ASC")
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	var rules []models.ShippingRule
	if err := query.Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *repository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	res := r.db.WithContext(ctx).
		Model(&models.ShippingRule{}).
		Where("id = ?", id).
		Update("is_active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
