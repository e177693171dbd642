// Package paymentsvc implements commerce.PaymentGateway with Stripe.
package paymentsvc

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/trezcool/skolar/core"
	"github.com/trezcool/skolar/core/commerce"
)

type stripeGateway struct {
	sc            *client.API
	webhookSecret string
}

var _ commerce.PaymentGateway = (*stripeGateway)(nil) // interface compliance check

func NewStripeGateway(conf core.StripeConfig) *stripeGateway {
	sc := &client.API{}
	sc.Init(conf.SecretKey, nil)
	return &stripeGateway{sc: sc, webhookSecret: conf.WebhookSecret}
}

func isResourceMissing(err error) bool {
	var stripeErr *stripe.Error
	return errors.As(err, &stripeErr) && stripeErr.Code == stripe.ErrorCodeResourceMissing
}

func (g *stripeGateway) CreateCustomer(ctx context.Context, email, name string, metadata map[string]string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	cus, err := g.sc.Customers.New(params)
	if err != nil {
		return "", errors.Wrap(err, "stripe: creating customer")
	}
	return cus.ID, nil
}

func (g *stripeGateway) CreateCheckoutSession(ctx context.Context, p commerce.CheckoutParams) (commerce.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Customer: stripe.String(p.CustomerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(p.PriceID), Quantity: stripe.Int64(1)},
		},
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
		InvoiceCreation: &stripe.CheckoutSessionInvoiceCreationParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	sess, err := g.sc.CheckoutSessions.New(params)
	if err != nil {
		return commerce.CheckoutSession{}, errors.Wrap(err, "stripe: creating checkout session")
	}
	return toCheckoutSession(sess), nil
}

func (g *stripeGateway) GetCheckoutSession(ctx context.Context, id string) (commerce.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := g.sc.CheckoutSessions.Get(id, params)
	if err != nil {
		if isResourceMissing(err) {
			return commerce.CheckoutSession{}, core.NewNotFoundError("checkout session not found")
		}
		return commerce.CheckoutSession{}, errors.Wrap(err, "stripe: retrieving checkout session")
	}
	return toCheckoutSession(sess), nil
}

func toCheckoutSession(sess *stripe.CheckoutSession) commerce.CheckoutSession {
	cs := commerce.CheckoutSession{
		ID:            sess.ID,
		URL:           sess.URL,
		PaymentStatus: string(sess.PaymentStatus),
		AmountTotal:   sess.AmountTotal,
		Currency:      string(sess.Currency),
		Metadata:      sess.Metadata,
	}
	if sess.Customer != nil {
		cs.CustomerID = sess.Customer.ID
	}
	if sess.Invoice != nil {
		cs.InvoiceID = sess.Invoice.ID
	}
	return cs
}

func (g *stripeGateway) GetInvoiceURL(ctx context.Context, invoiceID string) (string, error) {
	params := &stripe.InvoiceParams{}
	params.Context = ctx
	inv, err := g.sc.Invoices.Get(invoiceID, params)
	if err != nil {
		if isResourceMissing(err) {
			return "", commerce.ErrInvoiceMissing
		}
		return "", errors.Wrap(err, "stripe: retrieving invoice")
	}
	return inv.HostedInvoiceURL, nil
}

// CreateProduct creates the product with its default price.
func (g *stripeGateway) CreateProduct(ctx context.Context, p commerce.ProductParams) (string, string, error) {
	params := &stripe.ProductParams{
		Name: stripe.String(p.Name),
		DefaultPriceData: &stripe.ProductDefaultPriceDataParams{
			Currency:   stripe.String(p.Currency),
			UnitAmount: stripe.Int64(p.UnitAmount),
		},
	}
	if p.Description != "" {
		params.Description = stripe.String(p.Description)
	}
	if p.ImageURL != "" {
		params.Images = stripe.StringSlice([]string{p.ImageURL})
	}
	params.Context = ctx
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	prod, err := g.sc.Products.New(params)
	if err != nil {
		return "", "", errors.Wrap(err, "stripe: creating product")
	}
	if prod.DefaultPrice == nil {
		return prod.ID, "", errors.New("stripe: product created without default price")
	}
	return prod.ID, prod.DefaultPrice.ID, nil
}

func (g *stripeGateway) ParseWebhookEvent(payload []byte, signature string) (commerce.WebhookEvent, error) {
	evt, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return commerce.WebhookEvent{}, errors.Wrap(err, "stripe: verifying webhook")
	}

	out := commerce.WebhookEvent{ID: evt.ID, Type: string(evt.Type)}
	if evt.Data != nil && len(evt.Data.Raw) > 0 && evt.Data.Object["object"] == "checkout.session" {
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(evt.Data.Raw, &sess); err != nil {
			return commerce.WebhookEvent{}, errors.Wrap(err, "stripe: decoding checkout session")
		}
		out.SessionID = sess.ID
	}
	return out, nil
}
