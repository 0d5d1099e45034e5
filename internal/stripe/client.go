package stripe

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	stripego "github.com/stripe/stripe-go/v76"
	checkoutsession "github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/price"
	"github.com/stripe/stripe-go/v76/product"
)

const (
	DefaultBaseURL = stripego.APIURL
	APIVersion     = stripego.APIVersion
)

// Client is the slice of the payment provider's API the checkout flow needs.
type Client interface {
	FindProduct(ctx context.Context, planID string) (*Product, error)
	CreateProduct(ctx context.Context, name string, metadata map[string]string) (*Product, error)
	FindPrice(ctx context.Context, params PriceParams) (*Price, error)
	CreatePrice(ctx context.Context, params PriceParams) (*Price, error)
	CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error)
}

type Config struct {
	SecretKey  string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int64
	Logger     zerolog.Logger
}

// APIClient implements Client on top of stripe-go.
type APIClient struct {
	products *product.Client
	prices   *price.Client
	sessions *checkoutsession.Client
}

func NewAPIClient(cfg Config) *APIClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	backend := stripego.GetBackendWithConfig(stripego.APIBackend, &stripego.BackendConfig{
		HTTPClient:        &http.Client{Timeout: cfg.Timeout},
		URL:               stripego.String(strings.TrimRight(cfg.BaseURL, "/")),
		MaxNetworkRetries: stripego.Int64(cfg.MaxRetries),
		EnableTelemetry:   stripego.Bool(false),
		LeveledLogger:     leveledLogger{log: cfg.Logger.With().Str("component", "stripe").Logger()},
	})
	return &APIClient{
		products: &product.Client{B: backend, Key: cfg.SecretKey},
		prices:   &price.Client{B: backend, Key: cfg.SecretKey},
		sessions: &checkoutsession.Client{B: backend, Key: cfg.SecretKey},
	}
}

// FindProduct returns the active product tagged with metadata.plan_id, or nil.
func (c *APIClient) FindProduct(ctx context.Context, planID string) (*Product, error) {
	params := &stripego.ProductSearchParams{}
	params.Context = ctx
	params.Query = fmt.Sprintf("active:'true' AND metadata['plan_id']:'%s'", planID)
	params.Limit = stripego.Int64(1)

	iter := c.products.Search(params)
	if iter.Next() {
		return productFrom(iter.Product()), nil
	}
	return nil, iter.Err()
}

func (c *APIClient) CreateProduct(ctx context.Context, name string, metadata map[string]string) (*Product, error) {
	params := &stripego.ProductParams{Name: stripego.String(name)}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	p, err := c.products.New(params)
	if err != nil {
		return nil, err
	}
	return productFrom(p), nil
}

// FindPrice returns an active recurring price of the product matching the
// amount, currency and interval, or nil. Every page of the product's prices
// is searched.
func (c *APIClient) FindPrice(ctx context.Context, params PriceParams) (*Price, error) {
	list := &stripego.PriceListParams{
		Product:  stripego.String(params.Product),
		Active:   stripego.Bool(true),
		Currency: stripego.String(params.Currency),
		Type:     stripego.String(string(stripego.PriceTypeRecurring)),
	}
	list.Context = ctx
	list.Limit = stripego.Int64(100)

	iter := c.prices.List(list)
	for iter.Next() {
		if p := priceFrom(iter.Price()); p.Matches(params) {
			return p, nil
		}
	}
	return nil, iter.Err()
}

func (c *APIClient) CreatePrice(ctx context.Context, params PriceParams) (*Price, error) {
	create := &stripego.PriceParams{
		Product:    stripego.String(params.Product),
		UnitAmount: stripego.Int64(params.UnitAmount),
		Currency:   stripego.String(params.Currency),
		Recurring: &stripego.PriceRecurringParams{
			Interval: stripego.String(params.Interval),
		},
	}
	create.Context = ctx
	p, err := c.prices.New(create)
	if err != nil {
		return nil, err
	}
	return priceFrom(p), nil
}

func (c *APIClient) CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutSession, error) {
	qty := params.Quantity
	if qty <= 0 {
		qty = 1
	}
	create := &stripego.CheckoutSessionParams{
		Mode:               stripego.String(string(stripego.CheckoutSessionModeSubscription)),
		PaymentMethodTypes: stripego.StringSlice([]string{"card"}),
		LineItems: []*stripego.CheckoutSessionLineItemParams{{
			Price:    stripego.String(params.PriceID),
			Quantity: stripego.Int64(int64(qty)),
		}},
		SuccessURL: stripego.String(params.SuccessURL),
		CancelURL:  stripego.String(params.CancelURL),
	}
	create.Context = ctx
	for k, v := range params.Metadata {
		create.AddMetadata(k, v)
	}
	s, err := c.sessions.New(create)
	if err != nil {
		return nil, err
	}
	return sessionFrom(s), nil
}

// GetCheckoutSession retrieves a session with its subscription expanded.
func (c *APIClient) GetCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error) {
	params := &stripego.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("subscription")
	s, err := c.sessions.Get(id, params)
	if err != nil {
		return nil, err
	}
	return sessionFrom(s), nil
}

// leveledLogger routes stripe-go's logging through zerolog. Per-request info
// lines are logged at debug.
type leveledLogger struct {
	log zerolog.Logger
}

func (l leveledLogger) Debugf(format string, v ...interface{}) { l.log.Debug().Msgf(format, v...) }
func (l leveledLogger) Infof(format string, v ...interface{})  { l.log.Debug().Msgf(format, v...) }
func (l leveledLogger) Warnf(format string, v ...interface{})  { l.log.Warn().Msgf(format, v...) }
func (l leveledLogger) Errorf(format string, v ...interface{}) { l.log.Error().Msgf(format, v...) }
