package donations

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

var ErrStripeDisabled = errors.New("stripe: no secret key configured")

// StripeError is a non-2xx answer from the Stripe API.
type StripeError struct {
	Status  int
	Message string
}

func (e *StripeError) Error() string {
	return fmt.Sprintf("stripe: %d %s", e.Status, e.Message)
}

// CheckoutSession is the subset of a Stripe Checkout Session we use.
type CheckoutSession struct {
	ID            string
	URL           string
	Mode          string
	Status        string
	PaymentStatus string
	AmountTotal   int64
	Currency      string
	Email         string
	Metadata      map[string]string
}

// Paid reports whether the session collected money.
func (s *CheckoutSession) Paid() bool {
	return s.Status == "complete" && (s.PaymentStatus == "paid" || s.PaymentStatus == "no_payment_required")
}

// ParseSession reads a checkout session object.
func ParseSession(obj gjson.Result) *CheckoutSession {
	s := &CheckoutSession{
		ID:            obj.Get("id").String(),
		URL:           obj.Get("url").String(),
		Mode:          obj.Get("mode").String(),
		Status:        obj.Get("status").String(),
		PaymentStatus: obj.Get("payment_status").String(),
		AmountTotal:   obj.Get("amount_total").Int(),
		Currency:      obj.Get("currency").String(),
		Email:         obj.Get("customer_email").String(),
		Metadata:      map[string]string{},
	}
	if s.Email == "" {
		s.Email = obj.Get("customer_details.email").String()
	}
	obj.Get("metadata").ForEach(func(k, v gjson.Result) bool {
		s.Metadata[k.String()] = v.String()
		return true
	})
	return s
}

type StripeConfig struct {
	SecretKey string
	APIBase   string
	Timeout   time.Duration
}

// Stripe talks to the Checkout Sessions REST API with form-encoded bodies.
type Stripe struct {
	http    *resty.Client
	enabled bool
}

func NewStripe(cfg StripeConfig) *Stripe {
	base := cfg.APIBase
	if base == "" {
		base = "https://api.stripe.com"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Stripe{
		http: resty.New().
			SetBaseURL(strings.TrimRight(base, "/")).
			SetTimeout(timeout).
			SetAuthToken(cfg.SecretKey),
		enabled: cfg.SecretKey != "",
	}
}

// LineItem describes the single donation line of a checkout.
type LineItem struct {
	Name        string
	Description string
	Currency    string
	UnitAmount  int64
	Monthly     bool
}

type CheckoutParams struct {
	Item       LineItem
	Email      string
	Metadata   map[string]string
	SuccessURL string
	CancelURL  string
}

// Form encodes p the way the Checkout Sessions endpoint expects.
func (p CheckoutParams) Form() url.Values {
	v := url.Values{}
	v.Set("payment_method_types[0]", "card")
	if p.Item.Monthly {
		v.Set("mode", "subscription")
		v.Set("line_items[0][price_data][recurring][interval]", "month")
	} else {
		v.Set("mode", "payment")
	}
	v.Set("line_items[0][price_data][currency]", p.Item.Currency)
	v.Set("line_items[0][price_data][product_data][name]", p.Item.Name)
	v.Set("line_items[0][price_data][product_data][description]", p.Item.Description)
	v.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(p.Item.UnitAmount, 10))
	v.Set("line_items[0][quantity]", "1")
	if p.Email != "" {
		v.Set("customer_email", p.Email)
	}
	for k, val := range p.Metadata {
		v.Set("metadata["+k+"]", val)
	}
	v.Set("success_url", p.SuccessURL)
	v.Set("cancel_url", p.CancelURL)
	return v
}

func (s *Stripe) CreateCheckout(ctx context.Context, p CheckoutParams) (*CheckoutSession, error) {
	if !s.enabled {
		return nil, ErrStripeDisabled
	}
	resp, err := s.http.R().
		SetContext(ctx).
		SetFormDataFromValues(p.Form()).
		Post("/v1/checkout/sessions")
	if err != nil {
		return nil, fmt.Errorf("stripe create session: %w", err)
	}
	if resp.IsError() {
		return nil, stripeError(resp)
	}
	return ParseSession(gjson.ParseBytes(resp.Body())), nil
}

func (s *Stripe) Session(ctx context.Context, id string) (*CheckoutSession, error) {
	if !s.enabled {
		return nil, ErrStripeDisabled
	}
	resp, err := s.http.R().
		SetContext(ctx).
		SetPathParam("id", id).
		Get("/v1/checkout/sessions/{id}")
	if err != nil {
		return nil, fmt.Errorf("stripe get session: %w", err)
	}
	if resp.IsError() {
		return nil, stripeError(resp)
	}
	return ParseSession(gjson.ParseBytes(resp.Body())), nil
}

func stripeError(resp *resty.Response) *StripeError {
	msg := gjson.GetBytes(resp.Body(), "error.message").String()
	if msg == "" {
		msg = resp.Status()
	}
	return &StripeError{Status: resp.StatusCode(), Message: msg}
}
