package repository

import (
	"time"

	"github.com/kursadbilgin/widget-claims/internal/domain"
)

// ClaimModel is the persistence model for the widget_claims table.
type ClaimModel struct {
	ID              string             `gorm:"type:varchar(36);primaryKey"`
	Email           string             `gorm:"type:varchar(320);not null;index:idx_widget_claims_email"`
	WidgetID        string             `gorm:"type:varchar(255);not null"`
	Status          domain.ClaimStatus `gorm:"type:varchar(20);not null"`
	KitSubscriberID *string            `gorm:"type:varchar(255);index:idx_widget_claims_subscriber"`
	ClaimToken      string             `gorm:"type:varchar(64);not null;uniqueIndex:idx_widget_claims_token"`
	IPHash          string             `gorm:"type:varchar(64);index:idx_widget_claims_ip_created,priority:1"`
	CreatedAt       time.Time          `gorm:"not null;index:idx_widget_claims_ip_created,priority:2"`
	ConfirmedAt     *time.Time
	DeliveredAt     *time.Time
}

func (ClaimModel) TableName() string {
	return "widget_claims"
}

func claimModelFromDomain(c *domain.Claim) *ClaimModel {
	if c == nil {
		return nil
	}

	return &ClaimModel{
		ID:              c.ID,
		Email:           c.Email,
		WidgetID:        c.WidgetID,
		Status:          c.Status,
		KitSubscriberID: c.KitSubscriberID,
		ClaimToken:      c.ClaimToken,
		IPHash:          c.IPHash,
		CreatedAt:       c.CreatedAt,
		ConfirmedAt:     c.ConfirmedAt,
		DeliveredAt:     c.DeliveredAt,
	}
}

func claimModelToDomain(m *ClaimModel) *domain.Claim {
	if m == nil {
		return nil
	}

	return &domain.Claim{
		ID:              m.ID,
		Email:           m.Email,
		WidgetID:        m.WidgetID,
		Status:          m.Status,
		KitSubscriberID: m.KitSubscriberID,
		ClaimToken:      m.ClaimToken,
		IPHash:          m.IPHash,
		CreatedAt:       m.CreatedAt,
		ConfirmedAt:     m.ConfirmedAt,
		DeliveredAt:     m.DeliveredAt,
	}
}
