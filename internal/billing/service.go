package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"site-server/internal/metrics"
	"site-server/internal/observability"
	"site-server/internal/store"
	"site-server/internal/stripe"
)

var (
	ErrNotConfigured    = errors.New("payment provider is not configured")
	ErrMissingSessionID = errors.New("session_id is required")
)

// UpstreamError wraps a failed call to the payment provider.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// PriceCache remembers resolved provider price ids between requests.
type PriceCache interface {
	GetPrice(ctx context.Context, planID, billingCycle string) (*store.PriceRecord, error)
	SavePrice(ctx context.Context, rec store.PriceRecord) error
	DeletePrice(ctx context.Context, planID, billingCycle string) error
}

type Options struct {
	// SiteURL is the public origin the provider redirects back to.
	SiteURL string
	Cache   PriceCache
	Logger  zerolog.Logger
}

// Service creates and verifies hosted checkout sessions. It keeps no state of
// its own beyond the optional price cache.
type Service struct {
	client  stripe.Client
	siteURL string
	cache   PriceCache
	log     zerolog.Logger
	tracer  trace.Tracer
}

// NewService accepts a nil client; every call then fails with
// ErrNotConfigured after input validation.
func NewService(client stripe.Client, opts Options) *Service {
	if opts.Cache == nil {
		opts.Cache = store.NewMemoryPriceCache()
	}
	return &Service{
		client:  client,
		siteURL: strings.TrimRight(opts.SiteURL, "/"),
		cache:   opts.Cache,
		log:     opts.Logger,
		tracer:  observability.Tracer(),
	}
}

func (s *Service) Configured() bool { return s.client != nil }

type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url,omitempty"`
}

// CreateCheckoutSession validates the pair, resolves (or creates) the
// provider product and price, and opens a subscription checkout.
func (s *Service) CreateCheckoutSession(ctx context.Context, planID, billingCycle string) (_ *CheckoutSession, err error) {
	ctx, span := s.tracer.Start(ctx, "billing.CreateCheckoutSession",
		trace.WithAttributes(
			attribute.String("plan_id", planID),
			attribute.String("billing_cycle", billingCycle),
		))
	start := time.Now()
	defer func() { s.finish(span, "create_checkout_session", start, err) }()

	plan, cycle, amount, err := Resolve(planID, billingCycle)
	if err != nil {
		return nil, err
	}
	if s.client == nil {
		return nil, ErrNotConfigured
	}

	priceID, cached, err := s.ensurePrice(ctx, plan, cycle, amount)
	if err != nil {
		return nil, err
	}

	params := stripe.CheckoutSessionParams{
		PriceID:    priceID,
		Quantity:   1,
		SuccessURL: s.siteURL + "/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  s.siteURL + "/pricing",
		Metadata: map[string]string{
			"plan_id":       string(plan.ID),
			"plan_name":     plan.Name,
			"billing_cycle": string(cycle),
		},
	}
	cs, err := s.client.CreateCheckoutSession(ctx, params)
	if err != nil && cached && stripe.IsResourceMissing(err) {
		// The cached price was removed upstream; resolve it again once.
		s.log.Warn().Str("plan_id", string(plan.ID)).Str("billing_cycle", string(cycle)).
			Str("price_id", priceID).Msg("cached price is gone, re-resolving")
		if derr := s.cache.DeletePrice(ctx, string(plan.ID), string(cycle)); derr != nil {
			s.log.Warn().Err(derr).Msg("failed to drop stale price record")
		}
		params.PriceID, _, err = s.ensurePrice(ctx, plan, cycle, amount)
		if err != nil {
			return nil, err
		}
		cs, err = s.client.CreateCheckoutSession(ctx, params)
	}
	if err != nil {
		return nil, &UpstreamError{Op: "create checkout session", Err: err}
	}

	s.log.Info().
		Str("plan_id", string(plan.ID)).
		Str("billing_cycle", string(cycle)).
		Str("checkout_session_id", cs.ID).
		Msg("checkout session created")
	return &CheckoutSession{ID: cs.ID, URL: cs.URL}, nil
}

// ensurePrice resolves the price id through the cache, then the provider's
// existing records, and creates what is missing. Concurrent first calls may
// both create; the provider tolerates duplicates.
func (s *Service) ensurePrice(ctx context.Context, plan Plan, cycle BillingCycle, amount int64) (string, bool, error) {
	rec, err := s.cache.GetPrice(ctx, string(plan.ID), string(cycle))
	if err != nil {
		s.log.Warn().Err(err).Msg("price cache lookup failed")
	} else if rec != nil && rec.PriceID != "" {
		metrics.PriceLookupsTotal.WithLabelValues("cache").Inc()
		return rec.PriceID, true, nil
	}

	product, err := s.client.FindProduct(ctx, string(plan.ID))
	if err != nil {
		return "", false, &UpstreamError{Op: "find product", Err: err}
	}
	if product == nil {
		product, err = s.client.CreateProduct(ctx, plan.ProductName(), map[string]string{"plan_id": string(plan.ID)})
		if err != nil {
			return "", false, &UpstreamError{Op: "create product", Err: err}
		}
		s.log.Info().Str("plan_id", string(plan.ID)).Str("product_id", product.ID).Msg("created product")
	}

	params := stripe.PriceParams{
		Product:    product.ID,
		UnitAmount: amount,
		Currency:   Currency,
		Interval:   cycle.Interval(),
	}
	source := "found"
	price, err := s.client.FindPrice(ctx, params)
	if err != nil {
		return "", false, &UpstreamError{Op: "find price", Err: err}
	}
	if price == nil {
		source = "created"
		price, err = s.client.CreatePrice(ctx, params)
		if err != nil {
			return "", false, &UpstreamError{Op: "create price", Err: err}
		}
		s.log.Info().Str("plan_id", string(plan.ID)).Str("price_id", price.ID).Msg("created price")
	}
	metrics.PriceLookupsTotal.WithLabelValues(source).Inc()

	if err := s.cache.SavePrice(ctx, store.PriceRecord{
		PlanID:       string(plan.ID),
		BillingCycle: string(cycle),
		ProductID:    product.ID,
		PriceID:      price.ID,
	}); err != nil {
		s.log.Warn().Err(err).Msg("failed to cache price")
	}
	return price.ID, false, nil
}

type SubscriptionInfo struct {
	ID               string `json:"subscriptionId"`
	Status           string `json:"status,omitempty"`
	CurrentPeriodEnd int64  `json:"currentPeriodEnd,omitempty"`
}

type Verification struct {
	PlanName      string            `json:"planName"`
	BillingCycle  string            `json:"billingCycle"`
	CustomerID    string            `json:"customerId,omitempty"`
	Subscription  *SubscriptionInfo `json:"subscription,omitempty"`
	PaymentStatus string            `json:"paymentStatus"`
}

// VerifySession reports the outcome of a completed checkout.
func (s *Service) VerifySession(ctx context.Context, sessionID string) (_ *Verification, err error) {
	ctx, span := s.tracer.Start(ctx, "billing.VerifySession",
		trace.WithAttributes(attribute.String("checkout_session_id", sessionID)))
	start := time.Now()
	defer func() { s.finish(span, "verify_session", start, err) }()

	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrMissingSessionID
	}
	if s.client == nil {
		return nil, ErrNotConfigured
	}

	cs, err := s.client.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, &UpstreamError{Op: "retrieve checkout session", Err: err}
	}

	v := &Verification{
		PlanName:      cs.Metadata["plan_name"],
		BillingCycle:  cs.Metadata["billing_cycle"],
		CustomerID:    cs.CustomerID,
		PaymentStatus: cs.PaymentStatus,
	}
	if v.PlanName == "" {
		if plan, ok := LookupPlan(PlanID(cs.Metadata["plan_id"])); ok {
			v.PlanName = plan.Name
		}
	}
	if cs.Subscription != nil && cs.Subscription.ID != "" {
		v.Subscription = &SubscriptionInfo{
			ID:               cs.Subscription.ID,
			Status:           cs.Subscription.Status,
			CurrentPeriodEnd: cs.Subscription.CurrentPeriodEnd,
		}
	}
	return v, nil
}

func (s *Service) finish(span trace.Span, op string, start time.Time, err error) {
	status := "success"
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidPlan), errors.Is(err, ErrInvalidBillingCycle), errors.Is(err, ErrMissingSessionID):
		status = "invalid"
	default:
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.log.Error().Err(err).Str("operation", op).Msg("checkout operation failed")
	}
	metrics.CheckoutOperationsTotal.WithLabelValues(op, status).Inc()
	metrics.CheckoutDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	span.End()
}
