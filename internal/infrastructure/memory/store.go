// Package memory is an in-process record store with the same concurrency
// semantics as the DynamoDB repos: versioned claim writes, a (campaign,
// normalized email) uniqueness guard and atomic captcha-session consumption.
// It backs STORE_BACKEND=memory and the workflow tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/edge-rewards/internal/domain"
)

type Store struct {
	mu sync.Mutex

	campaigns map[string]domain.Campaign
	claims    map[string]domain.Claim
	guards    map[string]string // guard key -> claim id
	sessions  map[string]domain.CaptchaSession
}

func NewStore() *Store {
	return &Store{
		campaigns: make(map[string]domain.Campaign),
		claims:    make(map[string]domain.Claim),
		guards:    make(map[string]string),
		sessions:  make(map[string]domain.CaptchaSession),
	}
}

// Campaigns, Claims and CaptchaSessions expose the store through the same
// method sets as the DynamoDB repos.
func (s *Store) Campaigns() *CampaignRepo             { return &CampaignRepo{s: s} }
func (s *Store) Claims() *ClaimRepo                   { return &ClaimRepo{s: s} }
func (s *Store) CaptchaSessions() *CaptchaSessionRepo { return &CaptchaSessionRepo{s: s} }

type CampaignRepo struct{ s *Store }

// Put inserts or replaces a campaign. Used for seeding.
func (r *CampaignRepo) Put(_ context.Context, c domain.Campaign) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.campaigns[c.CampaignID] = c
	return nil
}

func (r *CampaignRepo) Get(_ context.Context, campaignID string) (*domain.Campaign, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.campaigns[campaignID]
	if !ok {
		return nil, fmt.Errorf("campaign not found: %w", domain.ErrNotFound)
	}
	return &c, nil
}

func (r *CampaignRepo) FindActiveByTicker(_ context.Context, ticker string) (*domain.Campaign, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ids := make([]string, 0, len(r.s.campaigns))
	for id := range r.s.campaigns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		c := r.s.campaigns[id]
		if c.Ticker == ticker && c.Active {
			return &c, nil
		}
	}
	return nil, fmt.Errorf("no active campaign for %q: %w", ticker, domain.ErrNotFound)
}

func (r *CampaignRepo) SetActive(_ context.Context, campaignID string, active bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.campaigns[campaignID]
	if !ok {
		return fmt.Errorf("campaign not found: %w", domain.ErrNotFound)
	}
	c.Active = active
	r.s.campaigns[campaignID] = c
	return nil
}

type ClaimRepo struct{ s *Store }

func (r *ClaimRepo) Create(_ context.Context, c *domain.Claim) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.claims[c.ClaimID]; exists {
		return fmt.Errorf("claim id taken: %w", domain.ErrConflict)
	}
	if _, exists := r.s.guards[c.GuardKey()]; exists {
		return fmt.Errorf("claim already exists for campaign and email: %w", domain.ErrConflict)
	}
	c.Version = 1
	r.s.claims[c.ClaimID] = cloneClaim(*c)
	r.s.guards[c.GuardKey()] = c.ClaimID
	return nil
}

func (r *ClaimRepo) Get(_ context.Context, claimID string) (*domain.Claim, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.claims[claimID]
	if !ok {
		return nil, fmt.Errorf("claim not found: %w", domain.ErrNotFound)
	}
	out := cloneClaim(c)
	return &out, nil
}

func (r *ClaimRepo) GetByToken(_ context.Context, token string) (*domain.Claim, error) {
	return r.findOne(func(c domain.Claim) bool { return c.VerificationToken == token })
}

func (r *ClaimRepo) FindByCampaignEmail(_ context.Context, campaignID, normalizedEmail string) (*domain.Claim, error) {
	return r.findOne(func(c domain.Claim) bool {
		return c.CampaignID == campaignID && c.NormalizedEmail == normalizedEmail
	})
}

func (r *ClaimRepo) HasPaidEmail(_ context.Context, normalizedEmail string) (bool, error) {
	_, err := r.findOne(func(c domain.Claim) bool {
		return c.NormalizedEmail == normalizedEmail && c.Status == domain.StatusPaymentSent
	})
	return err == nil, nil
}

func (r *ClaimRepo) HasPaidWallet(_ context.Context, walletAddress string) (bool, error) {
	_, err := r.findOne(func(c domain.Claim) bool {
		return c.WalletAddress == walletAddress && c.Status == domain.StatusPaymentSent
	})
	return err == nil, nil
}

// ListByStatus returns up to limit claims in status, oldest first. limit <= 0
// returns all of them.
func (r *ClaimRepo) ListByStatus(_ context.Context, status domain.ClaimStatus, limit int) ([]domain.Claim, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Claim
	for _, c := range r.s.claims {
		if c.Status == status {
			out = append(out, cloneClaim(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ClaimID < out[j].ClaimID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *ClaimRepo) Update(_ context.Context, c *domain.Claim) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.claims[c.ClaimID]
	if !ok || stored.Version != c.Version {
		return fmt.Errorf("update claim %s: %w", c.ClaimID, domain.ErrConcurrentUpdate)
	}
	stored.Status = c.Status
	stored.CryptoAmount = cloneStr(c.CryptoAmount)
	stored.ExchangeRate = cloneStr(c.ExchangeRate)
	stored.PayoutID = cloneStr(c.PayoutID)
	stored.PayoutStatus = cloneStr(c.PayoutStatus)
	stored.Version++
	r.s.claims[c.ClaimID] = stored
	c.Version = stored.Version
	return nil
}

func (r *ClaimRepo) Delete(_ context.Context, c *domain.Claim) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.claims[c.ClaimID]
	if !ok || stored.Version != c.Version {
		return fmt.Errorf("delete claim %s: %w", c.ClaimID, domain.ErrConcurrentUpdate)
	}
	delete(r.s.claims, c.ClaimID)
	if r.s.guards[stored.GuardKey()] == c.ClaimID {
		delete(r.s.guards, stored.GuardKey())
	}
	return nil
}

func (r *ClaimRepo) findOne(match func(domain.Claim) bool) (*domain.Claim, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.claims {
		if match(c) {
			out := cloneClaim(c)
			return &out, nil
		}
	}
	return nil, fmt.Errorf("claim not found: %w", domain.ErrNotFound)
}

type CaptchaSessionRepo struct{ s *Store }

func (r *CaptchaSessionRepo) Put(_ context.Context, sess *domain.CaptchaSession) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.sessions[sess.Token]; exists {
		return fmt.Errorf("captcha session exists: %w", domain.ErrConflict)
	}
	r.s.sessions[sess.Token] = *sess
	return nil
}

func (r *CaptchaSessionRepo) Consume(_ context.Context, token string, now time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[token]
	if !ok {
		return false, nil
	}
	delete(r.s.sessions, token)
	return !sess.Expired(now), nil
}

func cloneClaim(c domain.Claim) domain.Claim {
	c.CryptoAmount = cloneStr(c.CryptoAmount)
	c.ExchangeRate = cloneStr(c.ExchangeRate)
	c.PayoutID = cloneStr(c.PayoutID)
	c.PayoutStatus = cloneStr(c.PayoutStatus)
	return c
}

func cloneStr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
