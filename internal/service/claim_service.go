package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/widget-claims/internal/asset"
	"github.com/kursadbilgin/widget-claims/internal/catalog"
	"github.com/kursadbilgin/widget-claims/internal/domain"
	"github.com/kursadbilgin/widget-claims/internal/observability"
	"github.com/kursadbilgin/widget-claims/internal/provider"
	"github.com/kursadbilgin/widget-claims/internal/ratelimit"
	"github.com/kursadbilgin/widget-claims/internal/repository"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"
)

const claimTokenLength = 24

type SubmitInput struct {
	Email        string
	WidgetID     string
	IdentityHash string
}

// LookupKeys are the identifiers a confirmation link may carry.
type LookupKeys struct {
	SubscriberID string
	Token        string
	Email        string
}

type Confirmation struct {
	Claim  *domain.Claim
	Widget domain.Widget
}

// Delivery is a download the gate has cleared. RedirectURL is empty when the
// archive must be streamed from the asset store.
type Delivery struct {
	Claim       *domain.Claim
	Widget      domain.Widget
	RedirectURL string
	AssetName   string
}

type lookupStrategy struct {
	name string
	key  func(LookupKeys) string
	find func(ctx context.Context, key string) (*domain.Claim, error)
}

type ClaimService struct {
	claims     repository.ClaimRepository
	catalog    catalog.Provider
	limiter    ratelimit.Limiter
	gateway    provider.Gateway
	redirector asset.Redirector
	logger     *zap.Logger
	metrics    *observability.Metrics
	now        func() time.Time
	newToken   func() (string, error)
	lookups    []lookupStrategy
}

func NewClaimService(
	claims repository.ClaimRepository,
	widgets catalog.Provider,
	limiter ratelimit.Limiter,
	gateway provider.Gateway,
	logger *zap.Logger,
) (*ClaimService, error) {
	if claims == nil {
		return nil, fmt.Errorf("claim repository is required")
	}
	if widgets == nil {
		return nil, fmt.Errorf("widget catalog is required")
	}
	if limiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("subscription gateway is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &ClaimService{
		claims:   claims,
		catalog:  widgets,
		limiter:  limiter,
		gateway:  gateway,
		logger:   logger,
		now:      time.Now,
		newToken: newClaimToken,
	}

	// Most reliable identifier first.
	s.lookups = []lookupStrategy{
		{
			name: "subscriber_id",
			key:  func(k LookupKeys) string { return k.SubscriberID },
			find: claims.GetLatestBySubscriberID,
		},
		{
			name: "token",
			key:  func(k LookupKeys) string { return k.Token },
			find: claims.GetByToken,
		},
		{
			name: "email",
			key:  func(k LookupKeys) string { return k.Email },
			find: claims.GetLatestByEmail,
		},
	}

	return s, nil
}

func (s *ClaimService) SetMetrics(metrics *observability.Metrics) {
	s.metrics = metrics
}

// SetRedirector makes Deliver hand out external URLs instead of streaming.
func (s *ClaimService) SetRedirector(r asset.Redirector) {
	s.redirector = r
}

// Submit registers a new claim. Nothing is persisted unless the gateway call succeeds.
func (s *ClaimService) Submit(ctx context.Context, in SubmitInput) (*domain.Claim, error) {
	logger := observability.WithContextLogger(s.logger, ctx)

	email := strings.TrimSpace(in.Email)
	widgetID := strings.TrimSpace(in.WidgetID)
	if email == "" || widgetID == "" {
		s.metrics.IncClaimRejected("validation")
		return nil, fmt.Errorf("%w: email and widget are required", domain.ErrValidation)
	}

	widget, ok, err := catalog.Find(ctx, s.catalog, widgetID)
	if err != nil {
		return nil, fmt.Errorf("failed to load widget catalog: %w", err)
	}
	if !ok {
		s.metrics.IncClaimRejected("validation")
		return nil, fmt.Errorf("%w: unknown widget %q", domain.ErrValidation, widgetID)
	}

	limited, err := s.limiter.IsLimited(ctx, in.IdentityHash)
	if err != nil {
		return nil, fmt.Errorf("failed to check rate limit: %w", err)
	}
	if limited {
		s.metrics.IncClaimRejected("rate_limited")
		return nil, domain.ErrRateLimited
	}

	token, err := s.newToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate claim token: %w", err)
	}

	gatewayStart := s.now()
	subscriberID, err := s.gateway.Subscribe(ctx, provider.SubscribeRequest{
		Email:    email,
		Token:    token,
		WidgetID: widget.ID,
	})
	if err != nil {
		s.metrics.ObserveGatewayDuration("failure", s.now().Sub(gatewayStart))
		s.metrics.IncClaimRejected("gateway")
		return nil, fmt.Errorf("%w: %w", domain.ErrGateway, err)
	}
	s.metrics.ObserveGatewayDuration("success", s.now().Sub(gatewayStart))

	claim := &domain.Claim{
		ID:              uuid.NewString(),
		Email:           email,
		WidgetID:        widget.ID,
		Status:          domain.ClaimStatusSubmitted,
		KitSubscriberID: subscriberID,
		ClaimToken:      token,
		IPHash:          in.IdentityHash,
		CreatedAt:       s.now().UTC(),
	}
	if err := claim.Validate(); err != nil {
		return nil, err
	}

	if err := s.claims.Create(ctx, claim); err != nil {
		// The subscriber already exists at the provider; leave a trail to reconcile by hand.
		logger.Error("claim insert failed after successful subscription",
			zap.String("claimId", claim.ID),
			zap.String("widgetId", claim.WidgetID),
			zap.Stringp("subscriberId", subscriberID),
			zap.String("email", observability.MaskEmail(email)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to persist claim: %w", err)
	}

	if err := s.limiter.Record(ctx, claim.IPHash, claim.CreatedAt); err != nil {
		logger.Warn("failed to record submission for rate limiting",
			zap.String("claimId", claim.ID),
			zap.Error(err),
		)
	}

	s.metrics.IncClaimSubmitted(claim.WidgetID)
	logger.Info("claim submitted",
		zap.String("claimId", claim.ID),
		zap.String("widgetId", claim.WidgetID),
	)

	return claim, nil
}

// Confirm resolves the claim behind a confirmation link and moves it to
// confirmed. Confirming twice leaves the first timestamp in place.
func (s *ClaimService) Confirm(ctx context.Context, keys LookupKeys) (*Confirmation, error) {
	logger := observability.WithContextLogger(s.logger, ctx)

	claim, via, err := s.lookup(ctx, keys)
	if err != nil {
		return nil, err
	}

	if claim.Status == domain.ClaimStatusSubmitted {
		at := s.now().UTC()
		advanced, err := s.claims.MarkConfirmed(ctx, claim.ID, at)
		if err != nil {
			return nil, fmt.Errorf("failed to confirm claim: %w", err)
		}
		if advanced {
			claim.Status = domain.ClaimStatusConfirmed
			claim.ConfirmedAt = &at
			s.metrics.IncClaimConfirmed(via)
			logger.Info("claim confirmed",
				zap.String("claimId", claim.ID),
				zap.String("lookup", via),
			)
		} else {
			// Lost a race with another confirmation; report what was stored.
			if claim, err = s.claims.GetByID(ctx, claim.ID); err != nil {
				return nil, err
			}
		}
	}

	widget, ok, err := catalog.Find(ctx, s.catalog, claim.WidgetID)
	if err != nil {
		return nil, fmt.Errorf("failed to load widget catalog: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrWidgetGone, claim.WidgetID)
	}

	return &Confirmation{Claim: claim, Widget: widget}, nil
}

func (s *ClaimService) lookup(ctx context.Context, keys LookupKeys) (*domain.Claim, string, error) {
	for _, strategy := range s.lookups {
		key := strings.TrimSpace(strategy.key(keys))
		if key == "" {
			continue
		}

		claim, err := strategy.find(ctx, key)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, "", fmt.Errorf("claim lookup by %s failed: %w", strategy.name, err)
		}
		return claim, strategy.name, nil
	}

	return nil, "", fmt.Errorf("%w: no claim matches the confirmation link", domain.ErrNotFound)
}

// Deliver checks that the token belongs to a confirmed claim whose widget is
// still offered. It does not change the claim.
func (s *ClaimService) Deliver(ctx context.Context, token string) (*Delivery, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: claim token is required", domain.ErrNotFound)
	}

	claim, err := s.claims.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if !claim.Downloadable() {
		return nil, domain.ErrNotConfirmed
	}

	widget, ok, err := catalog.Find(ctx, s.catalog, claim.WidgetID)
	if err != nil {
		return nil, fmt.Errorf("failed to load widget catalog: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrWidgetGone, claim.WidgetID)
	}

	delivery := &Delivery{
		Claim:     claim,
		Widget:    widget,
		AssetName: widget.Zip,
	}

	if s.redirector != nil {
		target, err := s.redirector.URL(ctx, widget.Zip)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrDelivery, err)
		}
		delivery.RedirectURL = target
		s.metrics.IncClaimDelivered("redirect")
	}

	return delivery, nil
}

// MarkDelivered records a completed download. Already delivered claims keep
// their original timestamp.
func (s *ClaimService) MarkDelivered(ctx context.Context, claim *domain.Claim) error {
	if claim == nil {
		return fmt.Errorf("%w: claim is required", domain.ErrValidation)
	}
	if claim.Status == domain.ClaimStatusDelivered {
		return nil
	}

	at := s.now().UTC()
	advanced, err := s.claims.MarkDelivered(ctx, claim.ID, at)
	if err != nil {
		return fmt.Errorf("failed to mark claim delivered: %w", err)
	}
	if advanced {
		claim.Status = domain.ClaimStatusDelivered
		claim.DeliveredAt = &at
	}
	return nil
}

func newClaimToken() (string, error) {
	return gonanoid.New(claimTokenLength)
}
