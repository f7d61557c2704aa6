package service

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kursadbilgin/widget-claims/internal/domain"
	"github.com/kursadbilgin/widget-claims/internal/provider"
)

// memClaimRepo mirrors the conditional-update semantics of the gorm repository.
type memClaimRepo struct {
	mu     sync.Mutex
	claims map[string]domain.Claim

	createFn func(ctx context.Context, c *domain.Claim) error
	getErr   error
}

func newMemClaimRepo() *memClaimRepo {
	return &memClaimRepo{claims: map[string]domain.Claim{}}
}

func (r *memClaimRepo) Create(ctx context.Context, c *domain.Claim) error {
	if r.createFn != nil {
		if err := r.createFn(ctx, c); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.claims {
		if existing.ClaimToken == c.ClaimToken {
			return errDuplicateToken
		}
	}
	r.claims[c.ID] = *c
	return nil
}

func (r *memClaimRepo) put(c domain.Claim) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.claims[c.ID] = c
}

func (r *memClaimRepo) get(id string) domain.Claim {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.claims[id]
}

func (r *memClaimRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.claims)
}

func (r *memClaimRepo) GetByID(ctx context.Context, id string) (*domain.Claim, error) {
	return r.findLatest(func(c domain.Claim) bool { return c.ID == id })
}

func (r *memClaimRepo) GetByToken(ctx context.Context, token string) (*domain.Claim, error) {
	return r.findLatest(func(c domain.Claim) bool { return c.ClaimToken == token })
}

func (r *memClaimRepo) GetLatestBySubscriberID(ctx context.Context, subscriberID string) (*domain.Claim, error) {
	return r.findLatest(func(c domain.Claim) bool {
		return c.KitSubscriberID != nil && *c.KitSubscriberID == subscriberID
	})
}

func (r *memClaimRepo) GetLatestByEmail(ctx context.Context, email string) (*domain.Claim, error) {
	return r.findLatest(func(c domain.Claim) bool { return c.Email == email })
}

func (r *memClaimRepo) CountByIPHashSince(ctx context.Context, ipHash string, since time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, c := range r.claims {
		if c.IPHash == ipHash && !c.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *memClaimRepo) MarkConfirmed(ctx context.Context, id string, at time.Time) (bool, error) {
	return r.advance(id, domain.ClaimStatusSubmitted, domain.ClaimStatusConfirmed, func(c *domain.Claim) {
		c.ConfirmedAt = &at
	})
}

func (r *memClaimRepo) MarkDelivered(ctx context.Context, id string, at time.Time) (bool, error) {
	return r.advance(id, domain.ClaimStatusConfirmed, domain.ClaimStatusDelivered, func(c *domain.Claim) {
		c.DeliveredAt = &at
	})
}

func (r *memClaimRepo) advance(id string, from, to domain.ClaimStatus, stamp func(*domain.Claim)) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.claims[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if c.Status != from {
		return false, nil
	}
	c.Status = to
	stamp(&c)
	r.claims[id] = c
	return true, nil
}

func (r *memClaimRepo) findLatest(match func(domain.Claim) bool) (*domain.Claim, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var found []domain.Claim
	for _, c := range r.claims {
		if match(c) {
			found = append(found, c)
		}
	}
	if len(found) == 0 {
		return nil, domain.ErrNotFound
	}
	sort.Slice(found, func(i, j int) bool { return found[i].CreatedAt.After(found[j].CreatedAt) })
	latest := found[0]
	return &latest, nil
}

type duplicateTokenError struct{}

func (duplicateTokenError) Error() string { return "UNIQUE constraint failed: widget_claims.claim_token" }

var errDuplicateToken error = duplicateTokenError{}

type fakeGateway struct {
	mu        sync.Mutex
	calls     []provider.SubscribeRequest
	subscribe func(ctx context.Context, req provider.SubscribeRequest) (*string, error)
}

func (g *fakeGateway) Subscribe(ctx context.Context, req provider.SubscribeRequest) (*string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, req)
	g.mu.Unlock()
	if g.subscribe != nil {
		return g.subscribe(ctx, req)
	}
	return nil, nil
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

type fakeLimiter struct {
	limited  bool
	err      error
	recorded []string
}

func (l *fakeLimiter) IsLimited(ctx context.Context, identityHash string) (bool, error) {
	return l.limited, l.err
}

func (l *fakeLimiter) Record(ctx context.Context, identityHash string, at time.Time) error {
	l.recorded = append(l.recorded, identityHash)
	return nil
}

type fakeRedirector struct {
	base string
	err  error
}

func (r fakeRedirector) URL(ctx context.Context, name string) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return r.base + "/" + name, nil
}

type fakeAssetStore struct {
	files   map[string]string
	openErr error
	readErr error
}

func (s fakeAssetStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	body, ok := s.files[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if s.readErr != nil {
		return io.NopCloser(io.MultiReader(strings.NewReader(body[:len(body)/2]), errReader{s.readErr})), nil
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

type failingWriter struct{ err error }

func (w failingWriter) Write([]byte) (int, error) { return 0, w.err }
