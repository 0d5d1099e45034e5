package billing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"site-server/internal/store"
	"site-server/internal/stripe"
)

// fakeStripe keeps products and prices in memory and counts creations.
type fakeStripe struct {
	mu       sync.Mutex
	products map[string]*stripe.Product
	prices   []*stripe.Price
	sessions map[string]*stripe.CheckoutSession

	productCreates int
	priceCreates   int
	lastCheckout   stripe.CheckoutSessionParams

	failCheckout error
	// missingPrices makes checkout fail with resource_missing for these ids.
	missingPrices map[string]bool
}

func newFakeStripe() *fakeStripe {
	return &fakeStripe{
		products:      map[string]*stripe.Product{},
		sessions:      map[string]*stripe.CheckoutSession{},
		missingPrices: map[string]bool{},
	}
}

func (f *fakeStripe) FindProduct(_ context.Context, planID string) (*stripe.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.products[planID], nil
}

func (f *fakeStripe) CreateProduct(_ context.Context, name string, metadata map[string]string) (*stripe.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.productCreates++
	p := &stripe.Product{ID: fmt.Sprintf("prod_%d", f.productCreates), Name: name, Active: true, Metadata: metadata}
	f.products[metadata["plan_id"]] = p
	return p, nil
}

func (f *fakeStripe) FindPrice(_ context.Context, params stripe.PriceParams) (*stripe.Price, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.prices {
		if p.Product == params.Product && p.Matches(params) {
			return p, nil
		}
	}
	return nil, nil
}

func (f *fakeStripe) CreatePrice(_ context.Context, params stripe.PriceParams) (*stripe.Price, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.priceCreates++
	p := &stripe.Price{
		ID:         fmt.Sprintf("price_%d", f.priceCreates),
		Product:    params.Product,
		Active:     true,
		Currency:   params.Currency,
		UnitAmount: params.UnitAmount,
		Interval:   params.Interval,
	}
	f.prices = append(f.prices, p)
	return p, nil
}

func (f *fakeStripe) CreateCheckoutSession(_ context.Context, params stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastCheckout = params
	if f.failCheckout != nil {
		return nil, f.failCheckout
	}
	if f.missingPrices[params.PriceID] {
		return nil, &stripe.Error{HTTPStatusCode: 400, Type: "invalid_request_error", Code: stripe.ErrorCodeResourceMissing, Msg: "No such price"}
	}
	id := fmt.Sprintf("cs_%d", len(f.sessions)+1)
	cs := &stripe.CheckoutSession{ID: id, URL: "https://checkout.test/" + id, Metadata: params.Metadata}
	f.sessions[id] = cs
	return cs, nil
}

func (f *fakeStripe) GetCheckoutSession(_ context.Context, id string) (*stripe.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cs, ok := f.sessions[id]
	if !ok {
		return nil, &stripe.Error{HTTPStatusCode: 404, Type: "invalid_request_error", Code: stripe.ErrorCodeResourceMissing, Msg: "No such checkout.session: " + id}
	}
	return cs, nil
}

func newService(client stripe.Client) *Service {
	return NewService(client, Options{SiteURL: "https://example.com/", Logger: zerolog.Nop()})
}

func TestResolve(t *testing.T) {
	plan, cycle, amount, err := Resolve("advanced", "annual")
	require.NoError(t, err)
	assert.Equal(t, PlanAdvanced, plan.ID)
	assert.Equal(t, Annual, cycle)
	assert.Equal(t, int64(200000), amount)

	tests := []struct {
		plan, cycle string
		want        error
	}{
		{"", "monthly", ErrInvalidPlan},
		{"bogus", "monthly", ErrInvalidPlan},
		{"basic", "monthly", ErrInvalidPlan},
		{"starter", "", ErrInvalidBillingCycle},
		{"starter", "weekly", ErrInvalidBillingCycle},
	}
	for _, tt := range tests {
		_, _, _, err := Resolve(tt.plan, tt.cycle)
		assert.ErrorIs(t, err, tt.want, "%s/%s", tt.plan, tt.cycle)
	}
}

func TestPriceTable(t *testing.T) {
	want := map[PlanID][2]int64{
		PlanStarter:  {10000, 100000},
		PlanAdvanced: {20000, 200000},
		PlanPro:      {30000, 300000},
	}
	got := Plans()
	require.Len(t, got, len(want))
	for _, p := range got {
		assert.Equal(t, want[p.ID][0], p.Amount(Monthly), p.ID)
		assert.Equal(t, want[p.ID][1], p.Amount(Annual), p.ID)
	}
	assert.Equal(t, "month", Monthly.Interval())
	assert.Equal(t, "year", Annual.Interval())
}

func TestCreateCheckoutSession(t *testing.T) {
	fake := newFakeStripe()
	svc := newService(fake)

	cs, err := svc.CreateCheckoutSession(context.Background(), "starter", "monthly")
	require.NoError(t, err)
	assert.NotEmpty(t, cs.ID)
	assert.Equal(t, "https://checkout.test/"+cs.ID, cs.URL)

	assert.Equal(t, "https://example.com/success?session_id={CHECKOUT_SESSION_ID}", fake.lastCheckout.SuccessURL)
	assert.Equal(t, "https://example.com/pricing", fake.lastCheckout.CancelURL)
	assert.Equal(t, map[string]string{"plan_id": "starter", "plan_name": "Starter", "billing_cycle": "monthly"}, fake.lastCheckout.Metadata)
	require.Len(t, fake.prices, 1)
	assert.Equal(t, int64(10000), fake.prices[0].UnitAmount)
	assert.Equal(t, "month", fake.prices[0].Interval)
	assert.Equal(t, "usd", fake.prices[0].Currency)
}

func TestCreateCheckoutSessionReusesProviderRecords(t *testing.T) {
	fake := newFakeStripe()
	ctx := context.Background()

	// Fresh services share nothing but the provider, so reuse comes from lookup.
	_, err := newService(fake).CreateCheckoutSession(ctx, "pro", "annual")
	require.NoError(t, err)
	_, err = newService(fake).CreateCheckoutSession(ctx, "pro", "annual")
	require.NoError(t, err)
	assert.Equal(t, 1, fake.productCreates)
	assert.Equal(t, 1, fake.priceCreates)

	// A new cycle reuses the product but needs its own price.
	_, err = newService(fake).CreateCheckoutSession(ctx, "pro", "monthly")
	require.NoError(t, err)
	assert.Equal(t, 1, fake.productCreates)
	assert.Equal(t, 2, fake.priceCreates)
}

func TestCreateCheckoutSessionUsesCache(t *testing.T) {
	fake := newFakeStripe()
	cache := store.NewMemoryPriceCache()
	svc := NewService(fake, Options{SiteURL: "https://example.com", Cache: cache, Logger: zerolog.Nop()})
	ctx := context.Background()

	_, err := svc.CreateCheckoutSession(ctx, "advanced", "monthly")
	require.NoError(t, err)
	rec, err := cache.GetPrice(ctx, "advanced", "monthly")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, fake.prices[0].ID, rec.PriceID)
	assert.Equal(t, "prod_1", rec.ProductID)

	_, err = svc.CreateCheckoutSession(ctx, "advanced", "monthly")
	require.NoError(t, err)
	assert.Equal(t, rec.PriceID, fake.lastCheckout.PriceID)
}

func TestStaleCachedPriceIsReResolved(t *testing.T) {
	fake := newFakeStripe()
	cache := store.NewMemoryPriceCache()
	ctx := context.Background()
	require.NoError(t, cache.SavePrice(ctx, store.PriceRecord{PlanID: "starter", BillingCycle: "annual", PriceID: "price_gone"}))
	fake.missingPrices["price_gone"] = true

	svc := NewService(fake, Options{SiteURL: "https://example.com", Cache: cache, Logger: zerolog.Nop()})
	cs, err := svc.CreateCheckoutSession(ctx, "starter", "annual")
	require.NoError(t, err)
	assert.NotEmpty(t, cs.ID)
	assert.Equal(t, "price_1", fake.lastCheckout.PriceID)

	rec, err := cache.GetPrice(ctx, "starter", "annual")
	require.NoError(t, err)
	assert.Equal(t, "price_1", rec.PriceID)
}

func TestCreateCheckoutSessionErrors(t *testing.T) {
	ctx := context.Background()

	_, err := newService(newFakeStripe()).CreateCheckoutSession(ctx, "bogus", "monthly")
	assert.ErrorIs(t, err, ErrInvalidPlan)

	// Validation is reported before missing credentials.
	_, err = newService(nil).CreateCheckoutSession(ctx, "bogus", "monthly")
	assert.ErrorIs(t, err, ErrInvalidPlan)
	_, err = newService(nil).CreateCheckoutSession(ctx, "starter", "monthly")
	assert.ErrorIs(t, err, ErrNotConfigured)

	fake := newFakeStripe()
	fake.failCheckout = errors.New("connection refused")
	_, err = newService(fake).CreateCheckoutSession(ctx, "starter", "monthly")
	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, "create checkout session", upErr.Op)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestVerifySession(t *testing.T) {
	fake := newFakeStripe()
	fake.sessions["cs_done"] = &stripe.CheckoutSession{
		ID:            "cs_done",
		PaymentStatus: "paid",
		CustomerID:    "cus_1",
		Metadata:      map[string]string{"plan_id": "pro", "plan_name": "Pro", "billing_cycle": "annual"},
		Subscription:  &stripe.Subscription{ID: "sub_1", Status: "active", CurrentPeriodEnd: 1735689600},
	}
	v, err := newService(fake).VerifySession(context.Background(), "cs_done")
	require.NoError(t, err)
	assert.Equal(t, &Verification{
		PlanName:      "Pro",
		BillingCycle:  "annual",
		CustomerID:    "cus_1",
		PaymentStatus: "paid",
		Subscription:  &SubscriptionInfo{ID: "sub_1", Status: "active", CurrentPeriodEnd: 1735689600},
	}, v)
}

func TestVerifySessionWithoutSubscription(t *testing.T) {
	fake := newFakeStripe()
	fake.sessions["cs_open"] = &stripe.CheckoutSession{
		ID:            "cs_open",
		PaymentStatus: "unpaid",
		Metadata:      map[string]string{"plan_id": "advanced", "billing_cycle": "monthly"},
	}
	v, err := newService(fake).VerifySession(context.Background(), "cs_open")
	require.NoError(t, err)
	assert.Equal(t, "Advanced", v.PlanName)
	assert.Nil(t, v.Subscription)
	assert.Empty(t, v.CustomerID)
	assert.Equal(t, "unpaid", v.PaymentStatus)
}

func TestVerifySessionErrors(t *testing.T) {
	ctx := context.Background()
	_, err := newService(newFakeStripe()).VerifySession(ctx, " ")
	assert.ErrorIs(t, err, ErrMissingSessionID)

	_, err = newService(nil).VerifySession(ctx, "cs_1")
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = newService(newFakeStripe()).VerifySession(ctx, "cs_unknown")
	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	var apiErr *stripe.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, stripe.ErrorCodeResourceMissing, apiErr.Code)
}
