package application

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"sectionhub-shopify-layer/internal/domain"
	"sectionhub-shopify-layer/internal/ports"
)

type fakeShops struct {
	mu          sync.Mutex
	shops       map[string]*domain.Shop
	upsertErr   error
	updateErr   error
	updateCalls int
}

func newFakeShops(shops ...*domain.Shop) *fakeShops {
	f := &fakeShops{shops: map[string]*domain.Shop{}}
	for _, s := range shops {
		f.shops[s.Domain] = s
	}
	return f
}

func (f *fakeShops) UpsertShop(_ context.Context, d string, token string, scopes []string) (*domain.Shop, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	shop, ok := f.shops[d]
	if !ok {
		shop = &domain.Shop{ID: "shop-" + d, Domain: d, SubscriptionStatus: domain.SubscriptionNone}
		f.shops[d] = shop
	}
	shop.AccessToken = token
	shop.Scopes = scopes
	shop.Installed = true
	shop.UninstalledAt = nil
	return shop, nil
}

func (f *fakeShops) GetShop(_ context.Context, d string) (*domain.Shop, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	shop, ok := f.shops[d]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return shop, nil
}

func (f *fakeShops) UpdateSubscription(_ context.Context, d string, status domain.SubscriptionStatus, planID string, chargeID string, expiresAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	if f.updateErr != nil {
		return f.updateErr
	}
	shop, ok := f.shops[d]
	if !ok {
		return domain.ErrNotFound
	}
	shop.SubscriptionStatus = status
	shop.SubscriptionPlan = planID
	shop.SubscriptionChargeID = chargeID
	shop.SubscriptionExpiresAt = expiresAt
	return nil
}

func (f *fakeShops) MarkUninstalled(_ context.Context, d string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	shop, ok := f.shops[d]
	if !ok {
		return domain.ErrNotFound
	}
	shop.Installed = false
	shop.UninstalledAt = &at
	return nil
}

type fakeCharges struct {
	mu        sync.Mutex
	charges   map[string]*domain.Charge
	createErr error
	getErr    error
}

func newFakeCharges(charges ...*domain.Charge) *fakeCharges {
	f := &fakeCharges{charges: map[string]*domain.Charge{}}
	for _, c := range charges {
		f.charges[c.ExternalID] = c
	}
	return f
}

func (f *fakeCharges) CreateCharge(_ context.Context, c *domain.Charge) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	stored := *c
	f.charges[c.ExternalID] = &stored
	return nil
}

func (f *fakeCharges) GetChargeByExternalID(_ context.Context, id string) (*domain.Charge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	c, ok := f.charges[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (f *fakeCharges) TransitionCharge(_ context.Context, id string, to domain.ChargeStatus, at time.Time) (*domain.Charge, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.charges[id]
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

func (f *fakeCharges) HasActiveOneTimeCharge(_ context.Context, shop string, section string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.charges {
		if c.ShopDomain == shop && c.SectionID == section && c.Kind == domain.ChargeOneTime && c.Status == domain.ChargeActive {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeCharges) ListChargesByShop(_ context.Context, shop string) ([]*domain.Charge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Charge
	for _, c := range f.charges {
		if c.ShopDomain == shop {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCharges) get(id string) *domain.Charge {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.charges[id]
}

type fakeCatalog struct {
	sections  map[string]*domain.Section
	plans     map[string]*domain.Plan
	downloads map[string]int
	incErr    error
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		sections:  map[string]*domain.Section{},
		plans:     map[string]*domain.Plan{},
		downloads: map[string]int{},
	}
}

func (f *fakeCatalog) GetSection(_ context.Context, id string) (*domain.Section, error) {
	s, ok := f.sections[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s, nil
}

func (f *fakeCatalog) GetSections(_ context.Context, ids []string) ([]*domain.Section, error) {
	var out []*domain.Section
	for _, id := range ids {
		if s, ok := f.sections[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeCatalog) IncrementDownloads(_ context.Context, id string) error {
	if f.incErr != nil {
		return f.incErr
	}
	f.downloads[id]++
	return nil
}

func (f *fakeCatalog) GetPlan(_ context.Context, id string) (*domain.Plan, error) {
	p, ok := f.plans[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (f *fakeCatalog) ListActivePlans(_ context.Context) ([]*domain.Plan, error) {
	var out []*domain.Plan
	for _, p := range f.plans {
		if p.IsActive {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeInstallations struct {
	items     map[string]*domain.Installation
	upsertErr error
}

func newFakeInstallations() *fakeInstallations {
	return &fakeInstallations{items: map[string]*domain.Installation{}}
}

func (f *fakeInstallations) UpsertInstallation(_ context.Context, in *domain.Installation) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.items[in.ShopDomain+"|"+in.SectionID] = in
	return nil
}

func (f *fakeInstallations) DeleteInstallation(_ context.Context, shop string, section string) error {
	key := shop + "|" + section
	if _, ok := f.items[key]; !ok {
		return domain.ErrNotFound
	}
	delete(f.items, key)
	return nil
}

func (f *fakeInstallations) ListInstallations(_ context.Context, shop string) ([]*domain.Installation, error) {
	var out []*domain.Installation
	for _, in := range f.items {
		if in.ShopDomain == shop {
			out = append(out, in)
		}
	}
	return out, nil
}

type fakeGaps struct {
	mu       sync.Mutex
	recorded []*domain.ReconciliationGap
	open     []*domain.ReconciliationGap
	resolved []string
	err      error
}

func (f *fakeGaps) RecordGap(_ context.Context, gap *domain.ReconciliationGap) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.recorded = append(f.recorded, gap)
	return nil
}

func (f *fakeGaps) ListOpenGaps(_ context.Context, limit int) ([]*domain.ReconciliationGap, error) {
	if len(f.open) > limit {
		return f.open[:limit], nil
	}
	return f.open, nil
}

func (f *fakeGaps) ResolveGap(_ context.Context, id string, _ time.Time) error {
	f.resolved = append(f.resolved, id)
	return nil
}

func (f *fakeGaps) reasons() []domain.GapReason {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.GapReason
	for _, g := range f.recorded {
		out = append(out, g.Reason)
	}
	return out
}

type fakeAlerter struct {
	alerts []*domain.ReconciliationGap
}

func (f *fakeAlerter) Alert(_ context.Context, gap *domain.ReconciliationGap) error {
	f.alerts = append(f.alerts, gap)
	return nil
}

type fakeGateway struct {
	mu          sync.Mutex
	created     *ports.CreatedCharge
	err         error
	oneTimeReqs []ports.OneTimeChargeRequest
	subReqs     []ports.SubscriptionChargeRequest
	statuses    map[string]ports.PlatformChargeStatus
	statusErr   error
	block       chan struct{}
	started     chan struct{}
}

func (f *fakeGateway) CreateOneTimeCharge(_ context.Context, _, _ string, req ports.OneTimeChargeRequest) (*ports.CreatedCharge, error) {
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.oneTimeReqs = append(f.oneTimeReqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.created, nil
}

func (f *fakeGateway) CreateSubscriptionCharge(_ context.Context, _, _ string, req ports.SubscriptionChargeRequest) (*ports.CreatedCharge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subReqs = append(f.subReqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.created, nil
}

func (f *fakeGateway) GetChargeStatus(_ context.Context, _, _ string, _ domain.ChargeKind, id string) (ports.PlatformChargeStatus, error) {
	if f.statusErr != nil {
		return "", f.statusErr
	}
	status, ok := f.statuses[id]
	if !ok {
		return "", domain.ErrNotFound
	}
	return status, nil
}

type fakeTokens struct{}

func (fakeTokens) EncryptToken(token string) (string, error) {
	if token == "" {
		return "", errors.New("token cannot be empty")
	}
	return "enc:" + token, nil
}

func (fakeTokens) ShopToken(shop *domain.Shop) (string, error) {
	if shop == nil || shop.AccessToken == "" {
		return "", domain.ErrNotFound
	}
	return strings.TrimPrefix(shop.AccessToken, "enc:"), nil
}

type fakeGuard struct {
	mu   sync.Mutex
	held map[string]bool
	err  error
}

func newFakeGuard() *fakeGuard {
	return &fakeGuard{held: map[string]bool{}}
}

func (f *fakeGuard) Acquire(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if f.held[key] {
		return false, nil
	}
	f.held[key] = true
	return true, nil
}

func (f *fakeGuard) Release(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.held, key)
	return nil
}

type fakeAssets struct {
	puts    map[string]string
	deletes []string
	err     error
}

func newFakeAssets() *fakeAssets {
	return &fakeAssets{puts: map[string]string{}}
}

func (f *fakeAssets) PutAsset(_ context.Context, shop, _, key, value string) error {
	if f.err != nil {
		return f.err
	}
	f.puts[shop+"|"+key] = value
	return nil
}

func (f *fakeAssets) DeleteAsset(_ context.Context, shop, _, key string) error {
	if f.err != nil {
		return f.err
	}
	f.deletes = append(f.deletes, shop+"|"+key)
	delete(f.puts, shop+"|"+key)
	return nil
}

func installedShop(d string) *domain.Shop {
	return &domain.Shop{
		ID:                 "shop-1",
		Domain:             d,
		AccessToken:        "enc:shpat_token",
		Installed:          true,
		SubscriptionStatus: domain.SubscriptionNone,
	}
}
