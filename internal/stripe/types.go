package stripe

import (
	"errors"

	stripego "github.com/stripe/stripe-go/v76"
)

type Product struct {
	ID       string
	Name     string
	Active   bool
	Metadata map[string]string
}

type Price struct {
	ID         string
	Product    string
	Active     bool
	Currency   string
	UnitAmount int64
	Interval   string
}

// PriceParams identifies a recurring price. FindPrice matches on every field.
type PriceParams struct {
	Product    string
	UnitAmount int64
	Currency   string
	Interval   string
}

func (p Price) Matches(params PriceParams) bool {
	return p.Active &&
		p.UnitAmount == params.UnitAmount &&
		p.Currency == params.Currency &&
		p.Interval == params.Interval
}

type CheckoutSessionParams struct {
	PriceID    string
	Quantity   int
	SuccessURL string
	CancelURL  string
	Metadata   map[string]string
}

type CheckoutSession struct {
	ID            string
	URL           string
	Status        string
	PaymentStatus string
	CustomerID    string
	Subscription  *Subscription
	Metadata      map[string]string
}

type Subscription struct {
	ID               string
	Status           string
	CurrentPeriodEnd int64
}

// Error is the provider's error for a non-2xx response.
type Error = stripego.Error

const ErrorCodeResourceMissing = stripego.ErrorCodeResourceMissing

// IsResourceMissing reports whether err says the referenced object does not
// exist upstream.
func IsResourceMissing(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == ErrorCodeResourceMissing
}

func productFrom(p *stripego.Product) *Product {
	return &Product{ID: p.ID, Name: p.Name, Active: p.Active, Metadata: p.Metadata}
}

func priceFrom(p *stripego.Price) *Price {
	out := &Price{
		ID:         p.ID,
		Active:     p.Active,
		Currency:   string(p.Currency),
		UnitAmount: p.UnitAmount,
	}
	if p.Product != nil {
		out.Product = p.Product.ID
	}
	if p.Recurring != nil {
		out.Interval = string(p.Recurring.Interval)
	}
	return out
}

func sessionFrom(s *stripego.CheckoutSession) *CheckoutSession {
	out := &CheckoutSession{
		ID:            s.ID,
		URL:           s.URL,
		Status:        string(s.Status),
		PaymentStatus: string(s.PaymentStatus),
		Metadata:      s.Metadata,
	}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	if s.Subscription != nil {
		out.Subscription = &Subscription{
			ID:               s.Subscription.ID,
			Status:           string(s.Subscription.Status),
			CurrentPeriodEnd: s.Subscription.CurrentPeriodEnd,
		}
	}
	return out
}
