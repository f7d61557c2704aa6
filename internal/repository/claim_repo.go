package repository

import (
	"context"
	"errors"
	"time"

	"github.com/kursadbilgin/widget-claims/internal/domain"
	"gorm.io/gorm"
)

type ClaimRepository interface {
	Create(ctx context.Context, c *domain.Claim) error
	GetByID(ctx context.Context, id string) (*domain.Claim, error)
	GetByToken(ctx context.Context, token string) (*domain.Claim, error)
	GetLatestBySubscriberID(ctx context.Context, subscriberID string) (*domain.Claim, error)
	GetLatestByEmail(ctx context.Context, email string) (*domain.Claim, error)
	CountByIPHashSince(ctx context.Context, ipHash string, since time.Time) (int64, error)
	MarkConfirmed(ctx context.Context, id string, at time.Time) (bool, error)
	MarkDelivered(ctx context.Context, id string, at time.Time) (bool, error)
}

type GormClaimRepo struct {
	db *gorm.DB
}

func NewGormClaimRepo(db *gorm.DB) *GormClaimRepo {
	return &GormClaimRepo{db: db}
}

func (r *GormClaimRepo) Create(ctx context.Context, c *domain.Claim) error {
	model := claimModelFromDomain(c)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if c != nil {
		*c = *claimModelToDomain(model)
	}
	return nil
}

func (r *GormClaimRepo) GetByID(ctx context.Context, id string) (*domain.Claim, error) {
	return r.first(r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *GormClaimRepo) GetByToken(ctx context.Context, token string) (*domain.Claim, error) {
	return r.first(r.db.WithContext(ctx).Where("claim_token = ?", token))
}

func (r *GormClaimRepo) GetLatestBySubscriberID(ctx context.Context, subscriberID string) (*domain.Claim, error) {
	return r.first(r.db.WithContext(ctx).
		Where("kit_subscriber_id = ?", subscriberID).
		Order("created_at DESC"))
}

func (r *GormClaimRepo) GetLatestByEmail(ctx context.Context, email string) (*domain.Claim, error) {
	return r.first(r.db.WithContext(ctx).
		Where("email = ?", email).
		Order("created_at DESC"))
}

func (r *GormClaimRepo) CountByIPHashSince(ctx context.Context, ipHash string, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&ClaimModel{}).
		Where("ip_hash = ? AND created_at >= ?", ipHash, since.UTC()).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// MarkConfirmed moves a submitted claim to confirmed. It reports false when the
// claim exists but had already left the submitted state.
func (r *GormClaimRepo) MarkConfirmed(ctx context.Context, id string, at time.Time) (bool, error) {
	return r.advance(ctx, id, domain.ClaimStatusSubmitted, domain.ClaimStatusConfirmed, "confirmed_at", at)
}

// MarkDelivered moves a confirmed claim to delivered, with the same reporting as MarkConfirmed.
func (r *GormClaimRepo) MarkDelivered(ctx context.Context, id string, at time.Time) (bool, error) {
	return r.advance(ctx, id, domain.ClaimStatusConfirmed, domain.ClaimStatusDelivered, "delivered_at", at)
}

func (r *GormClaimRepo) advance(
	ctx context.Context,
	id string,
	from domain.ClaimStatus,
	to domain.ClaimStatus,
	stampColumn string,
	at time.Time,
) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&ClaimModel{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{
			"status":    to,
			stampColumn: at.UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected > 0 {
		return true, nil
	}

	// Nothing matched: tell a missing claim apart from one already past `from`.
	var count int64
	if err := r.db.WithContext(ctx).Model(&ClaimModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	if count == 0 {
		return false, domain.ErrNotFound
	}
	return false, nil
}

func (r *GormClaimRepo) first(query *gorm.DB) (*domain.Claim, error) {
	var model ClaimModel
	err := query.First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return claimModelToDomain(&model), nil
}
