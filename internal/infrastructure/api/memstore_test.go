package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sectionhub-shopify-layer/internal/domain"
	"sectionhub-shopify-layer/internal/ports"
)

// memStore is an in-memory ports.Store for router tests
type memStore struct {
	mu       sync.Mutex
	shops    map[string]*domain.Shop
	charges  map[string]*domain.Charge
	installs map[string]*domain.Installation
	sections map[string]*domain.Section
	plans    map[string]*domain.Plan
	gaps     []*domain.ReconciliationGap
}

var _ ports.Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		shops:    map[string]*domain.Shop{},
		charges:  map[string]*domain.Charge{},
		installs: map[string]*domain.Installation{},
		sections: map[string]*domain.Section{},
		plans:    map[string]*domain.Plan{},
	}
}

func (m *memStore) Close(context.Context) error { return nil }

func (m *memStore) UpsertShop(_ context.Context, d string, token string, scopes []string) (*domain.Shop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	shop, ok := m.shops[d]
	if !ok {
		shop = &domain.Shop{ID: fmt.Sprintf("shop-%d", len(m.shops)+1), Domain: d, SubscriptionStatus: domain.SubscriptionNone}
		m.shops[d] = shop
	}
	shop.AccessToken = token
	shop.Scopes = scopes
	shop.Installed = true
	shop.UninstalledAt = nil
	copied := *shop
	return &copied, nil
}

func (m *memStore) GetShop(_ context.Context, d string) (*domain.Shop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	shop, ok := m.shops[d]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *shop
	return &copied, nil
}

func (m *memStore) UpdateSubscription(_ context.Context, d string, status domain.SubscriptionStatus, planID, chargeID string, expiresAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	shop, ok := m.shops[d]
	if !ok {
		return domain.ErrNotFound
	}
	shop.SubscriptionStatus = status
	shop.SubscriptionPlan = planID
	shop.SubscriptionChargeID = chargeID
	shop.SubscriptionExpiresAt = expiresAt
	return nil
}

func (m *memStore) MarkUninstalled(_ context.Context, d string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	shop, ok := m.shops[d]
	if !ok {
		return domain.ErrNotFound
	}
	shop.Installed = false
	shop.UninstalledAt = &at
	return nil
}

func (m *memStore) CreateCharge(_ context.Context, c *domain.Charge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *c
	m.charges[c.ExternalID] = &copied
	return nil
}

func (m *memStore) GetChargeByExternalID(_ context.Context, id string) (*domain.Charge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.charges[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (m *memStore) TransitionCharge(_ context.Context, id string, to domain.ChargeStatus, at time.Time) (*domain.Charge, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.charges[id]
	if !ok {
		return nil, false, domain.ErrNotFound
	}
	moved := domain.CanTransition(c.Status, to)
	if moved {
		c.Status = to
		if to == domain.ChargeActive {
			c.ActivatedAt = &at
		}
	}
	copied := *c
	return &copied, moved, nil
}

func (m *memStore) HasActiveOneTimeCharge(_ context.Context, shop, section string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.charges {
		if c.ShopDomain == shop && c.SectionID == section && c.Kind == domain.ChargeOneTime && c.Status == domain.ChargeActive {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) ListChargesByShop(_ context.Context, shop string) ([]*domain.Charge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Charge
	for _, c := range m.charges {
		if c.ShopDomain == shop {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) UpsertInstallation(_ context.Context, in *domain.Installation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.installs[in.ShopDomain+"|"+in.SectionID] = in
	return nil
}

func (m *memStore) DeleteInstallation(_ context.Context, shop, section string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.installs, shop+"|"+section)
	return nil
}

func (m *memStore) ListInstallations(_ context.Context, shop string) ([]*domain.Installation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Installation
	for _, in := range m.installs {
		if in.ShopDomain == shop {
			out = append(out, in)
		}
	}
	return out, nil
}

func (m *memStore) GetSection(_ context.Context, id string) (*domain.Section, error) {
	s, ok := m.sections[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s, nil
}

func (m *memStore) GetSections(_ context.Context, ids []string) ([]*domain.Section, error) {
	var out []*domain.Section
	for _, id := range ids {
		if s, ok := m.sections[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) IncrementDownloads(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sections[id]; ok {
		s.DownloadsCount++
	}
	return nil
}

func (m *memStore) GetPlan(_ context.Context, id string) (*domain.Plan, error) {
	p, ok := m.plans[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (m *memStore) ListActivePlans(_ context.Context) ([]*domain.Plan, error) {
	var out []*domain.Plan
	for _, p := range m.plans {
		if p.IsActive {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) RecordGap(_ context.Context, gap *domain.ReconciliationGap) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gaps = append(m.gaps, gap)
	return nil
}

func (m *memStore) ListOpenGaps(_ context.Context, limit int) ([]*domain.ReconciliationGap, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.ReconciliationGap
	for _, g := range m.gaps {
		if g.ResolvedAt == nil && len(out) < limit {
			out = append(out, g)
		}
	}
	return out, nil
}

func (m *memStore) ResolveGap(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.gaps {
		if g.ID == id {
			g.ResolvedAt = &at
			return nil
		}
	}
	return domain.ErrNotFound
}
