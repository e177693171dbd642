package paymentsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/skolar/core"
	"github.com/trezcool/skolar/core/commerce"
)

// FakeWebhookSignature is the only signature FakeGateway accepts.
const FakeWebhookSignature = "fake-signature"

// FakeGateway is an in-memory commerce.PaymentGateway for tests and local development.
type FakeGateway struct {
	mu        sync.Mutex
	seq       int
	customers map[string]string // {id: email}
	sessions  map[string]commerce.CheckoutSession
	invoices  map[string]string // {id: hosted url}
	prices    map[string]int64  // {price id: unit amount}

	// Calls counts the gateway calls per method.
	Calls map[string]int
}

var _ commerce.PaymentGateway = (*FakeGateway)(nil) // interface compliance check

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		customers: make(map[string]string),
		sessions:  make(map[string]commerce.CheckoutSession),
		invoices:  make(map[string]string),
		prices:    make(map[string]int64),
		Calls:     make(map[string]int),
	}
}

func (g *FakeGateway) nextID(prefix string) string {
	g.seq++
	return fmt.Sprintf("%s_test_%d", prefix, g.seq)
}

func (g *FakeGateway) CreateCustomer(_ context.Context, email, _ string, _ map[string]string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Calls["CreateCustomer"]++
	id := g.nextID("cus")
	g.customers[id] = email
	return id, nil
}

func (g *FakeGateway) CreateCheckoutSession(_ context.Context, p commerce.CheckoutParams) (commerce.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Calls["CreateCheckoutSession"]++
	if _, ok := g.customers[p.CustomerID]; !ok {
		return commerce.CheckoutSession{}, errors.Errorf("unknown customer %s", p.CustomerID)
	}
	metadata := make(map[string]string, len(p.Metadata))
	for k, v := range p.Metadata {
		metadata[k] = v
	}
	id := g.nextID("cs")
	sess := commerce.CheckoutSession{
		ID:            id,
		URL:           "https://checkout.test/pay/" + id,
		CustomerID:    p.CustomerID,
		PaymentStatus: "unpaid",
		AmountTotal:   g.prices[p.PriceID],
		Currency:      "thb",
		Metadata:      metadata,
	}
	g.sessions[id] = sess
	return sess, nil
}

func (g *FakeGateway) GetCheckoutSession(_ context.Context, id string) (commerce.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Calls["GetCheckoutSession"]++
	sess, ok := g.sessions[id]
	if !ok {
		return commerce.CheckoutSession{}, core.NewNotFoundError("checkout session not found")
	}
	return sess, nil
}

func (g *FakeGateway) GetInvoiceURL(_ context.Context, invoiceID string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Calls["GetInvoiceURL"]++
	u, ok := g.invoices[invoiceID]
	if !ok {
		return "", commerce.ErrInvoiceMissing
	}
	return u, nil
}

func (g *FakeGateway) CreateProduct(_ context.Context, p commerce.ProductParams) (string, string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Calls["CreateProduct"]++
	productID, priceID := g.nextID("prod"), g.nextID("price")
	g.prices[priceID] = p.UnitAmount
	return productID, priceID, nil
}

type fakeEvent struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

// ParseWebhookEvent expects {"id", "type", "session_id"} signed with FakeWebhookSignature.
func (g *FakeGateway) ParseWebhookEvent(payload []byte, signature string) (commerce.WebhookEvent, error) {
	if signature != FakeWebhookSignature {
		return commerce.WebhookEvent{}, errors.New("invalid signature")
	}
	var evt fakeEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return commerce.WebhookEvent{}, errors.Wrap(err, "decoding event")
	}
	return commerce.WebhookEvent{ID: evt.ID, Type: evt.Type, SessionID: evt.SessionID}, nil
}

// SeedSession stores a session as is, e.g. a paid one without checkout.
func (g *FakeGateway) SeedSession(sess commerce.CheckoutSession) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessions[sess.ID] = sess
}

// PaySession marks the session paid and issues its invoice.
func (g *FakeGateway) PaySession(id string) (commerce.CheckoutSession, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	sess, ok := g.sessions[id]
	if !ok {
		return sess, false
	}
	sess.PaymentStatus = commerce.PaymentStatusPaid
	sess.InvoiceID = "in_" + id
	g.invoices[sess.InvoiceID] = "https://invoice.test/" + sess.InvoiceID
	g.sessions[id] = sess
	return sess, true
}

// SeedInvoice registers a hosted invoice url.
func (g *FakeGateway) SeedInvoice(id, hostedURL string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.invoices[id] = hostedURL
}

func (g *FakeGateway) CallCount(method string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Calls[method]
}
