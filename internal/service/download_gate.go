package service

import (
	"context"
	"fmt"
	"io"

	"github.com/kursadbilgin/widget-claims/internal/asset"
	"github.com/kursadbilgin/widget-claims/internal/domain"
	"github.com/kursadbilgin/widget-claims/internal/observability"
	"go.uber.org/zap"
)

type claimDeliverer interface {
	Deliver(ctx context.Context, token string) (*Delivery, error)
	MarkDelivered(ctx context.Context, claim *domain.Claim) error
}

// DownloadGate hands out archives for confirmed claims and records delivery
// once an archive has been written out in full.
type DownloadGate struct {
	claims  claimDeliverer
	assets  asset.Store
	logger  *zap.Logger
	metrics *observability.Metrics
}

func NewDownloadGate(claims claimDeliverer, assets asset.Store, logger *zap.Logger) (*DownloadGate, error) {
	if claims == nil {
		return nil, fmt.Errorf("claim service is required")
	}
	if assets == nil {
		return nil, fmt.Errorf("asset store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DownloadGate{
		claims: claims,
		assets: assets,
		logger: logger,
	}, nil
}

func (g *DownloadGate) SetMetrics(metrics *observability.Metrics) {
	g.metrics = metrics
}

func (g *DownloadGate) Open(ctx context.Context, token string) (*Delivery, error) {
	return g.claims.Deliver(ctx, token)
}

// Stream copies the archive into w. The claim is left untouched unless the
// copy succeeds.
func (g *DownloadGate) Stream(ctx context.Context, d *Delivery, w io.Writer) error {
	if d == nil || d.Claim == nil {
		return fmt.Errorf("%w: delivery is required", domain.ErrDelivery)
	}
	logger := observability.WithContextLogger(g.logger, ctx).With(
		zap.String("claimId", d.Claim.ID),
		zap.String("asset", d.AssetName),
	)

	rc, err := g.assets.Open(ctx, d.AssetName)
	if err != nil {
		logger.Error("failed to open widget archive", zap.Error(err))
		return fmt.Errorf("%w: %w", domain.ErrDelivery, err)
	}
	defer rc.Close()

	written, err := io.Copy(w, rc)
	if err != nil {
		logger.Error("failed to stream widget archive", zap.Int64("bytes", written), zap.Error(err))
		return fmt.Errorf("%w: %w", domain.ErrDelivery, err)
	}

	// The archive is already out; a failed stamp is logged, not surfaced.
	if err := g.claims.MarkDelivered(ctx, d.Claim); err != nil {
		logger.Error("failed to record delivery", zap.Error(err))
		return nil
	}

	g.metrics.IncClaimDelivered("stream")
	logger.Info("widget delivered", zap.Int64("bytes", written))
	return nil
}
