package domain

import (
	"fmt"
	"strings"
	"time"
)

// ClaimStatus represents the lifecycle state of a widget claim.
type ClaimStatus string

const (
	ClaimStatusSubmitted ClaimStatus = "submitted"
	ClaimStatusConfirmed ClaimStatus = "confirmed"
	ClaimStatusDelivered ClaimStatus = "delivered"
)

func (s ClaimStatus) String() string { return string(s) }

func (s ClaimStatus) IsValid() bool {
	switch s {
	case ClaimStatusSubmitted, ClaimStatusConfirmed, ClaimStatusDelivered:
		return true
	}
	return false
}

// rank orders statuses along the only allowed direction of travel.
func (s ClaimStatus) rank() int {
	switch s {
	case ClaimStatusSubmitted:
		return 1
	case ClaimStatusConfirmed:
		return 2
	case ClaimStatusDelivered:
		return 3
	}
	return 0
}

// AtLeast reports whether s has reached other on the submitted → confirmed → delivered path.
func (s ClaimStatus) AtLeast(other ClaimStatus) bool {
	return s.IsValid() && s.rank() >= other.rank()
}

// CanTransitionTo allows exactly one step forward.
func (s ClaimStatus) CanTransitionTo(next ClaimStatus) bool {
	return s.IsValid() && next.IsValid() && next.rank() == s.rank()+1
}

func ParseClaimStatusFromString(s string) (ClaimStatus, error) {
	st := ClaimStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid claim status %q", ErrValidation, s)
	}
	return st, nil
}

// Claim is a visitor's request for one widget, keyed by id and by its download token.
type Claim struct {
	ID              string
	Email           string
	WidgetID        string
	Status          ClaimStatus
	KitSubscriberID *string
	ClaimToken      string
	IPHash          string
	CreatedAt       time.Time
	ConfirmedAt     *time.Time
	DeliveredAt     *time.Time
}

func (c *Claim) Validate() error {
	if strings.TrimSpace(c.Email) == "" {
		return fmt.Errorf("%w: email is required", ErrValidation)
	}
	if strings.TrimSpace(c.WidgetID) == "" {
		return fmt.Errorf("%w: widget id is required", ErrValidation)
	}
	if strings.TrimSpace(c.ClaimToken) == "" {
		return fmt.Errorf("%w: claim token is required", ErrValidation)
	}
	if !c.Status.IsValid() {
		return fmt.Errorf("%w: invalid claim status %q", ErrValidation, c.Status)
	}
	return nil
}

// Downloadable reports whether the claim has passed email confirmation.
func (c *Claim) Downloadable() bool {
	return c != nil && c.Status.AtLeast(ClaimStatusConfirmed)
}
