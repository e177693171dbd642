package commerce

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/skolar/core"
)

const (
	DefaultPageLimit  = 5
	PaymentStatusPaid = "paid"

	// checkout session metadata keys
	metaCourseID        = "courseId"
	metaUserID          = "userId"
	metaCourseTitle     = "courseTitle"
	metaStripeProductID = "stripeProductId"
	metaPriceID         = "priceId"
)

type Purchase struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	CourseID      string    `json:"course_id"`
	Price         float64   `json:"price"`
	PaymentID     string    `json:"payment_id"`
	PaymentStatus string    `json:"payment_status"`
	InvoiceID     string    `json:"invoice_id,omitempty"`
	CourseTitle   string    `json:"course_title_snapshot,omitempty"`
	CreatedAt     time.Time `json:"created_at"` // UTC
}

type PurchasePage struct {
	Purchases  []Purchase      `json:"purchases"`
	Pagination core.Pagination `json:"pagination"`
}

type PurchaseFilter struct {
	ID        string
	PaymentID string
}

type CheckoutRequest struct {
	CourseID   string `json:"courseId" validate:"required,uuid"`
	SuccessURL string `json:"successUrl" validate:"omitempty,httpurl"`
	CancelURL  string `json:"cancelUrl" validate:"omitempty,httpurl"`
}

func (cr *CheckoutRequest) Validate(validate *validator.Validate) error {
	cr.CourseID = core.CleanString(cr.CourseID, true /* lower */)
	cr.SuccessURL = core.CleanString(cr.SuccessURL)
	cr.CancelURL = core.CleanString(cr.CancelURL)
	return validate.Struct(cr)
}

type CheckoutResult struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

type VerifyRequest struct {
	SessionID string `json:"sessionId" validate:"required,notblank"`
}

func (vr *VerifyRequest) Validate(validate *validator.Validate) error {
	vr.SessionID = core.CleanString(vr.SessionID)
	return validate.Struct(vr)
}

type SessionSummary struct {
	ID            string            `json:"id"`
	CustomerID    string            `json:"customerId"`
	PaymentStatus string            `json:"paymentStatus"`
	AmountTotal   int64             `json:"amountTotal"`
	Metadata      map[string]string `json:"metadata"`
}

type VerifyResult struct {
	Verified      bool            `json:"verified"`
	PaymentStatus string          `json:"paymentStatus,omitempty"`
	Session       *SessionSummary `json:"session,omitempty"`
	Purchase      *Purchase       `json:"purchase,omitempty"`
}

type InvoiceRequest struct {
	PurchaseID string `json:"purchaseId"`
}

// Payment gateway

type (
	CheckoutParams struct {
		CustomerID string
		PriceID    string
		SuccessURL string
		CancelURL  string
		Metadata   map[string]string
	}

	CheckoutSession struct {
		ID            string
		URL           string
		CustomerID    string
		PaymentStatus string
		InvoiceID     string
		AmountTotal   int64 // minor units
		Currency      string
		Metadata      map[string]string
	}

	ProductParams struct {
		Name        string
		Description string
		ImageURL    string
		UnitAmount  int64 // minor units
		Currency    string
		Metadata    map[string]string
	}

	WebhookEvent struct {
		ID        string
		Type      string
		SessionID string
	}

	// PaymentGateway is implemented by services/payment.
	PaymentGateway interface {
		CreateCustomer(ctx context.Context, email, name string, metadata map[string]string) (string, error)
		CreateCheckoutSession(ctx context.Context, params CheckoutParams) (CheckoutSession, error)
		GetCheckoutSession(ctx context.Context, id string) (CheckoutSession, error)
		// GetInvoiceURL returns ErrInvoiceMissing when the platform does not know the invoice.
		GetInvoiceURL(ctx context.Context, invoiceID string) (string, error)
		CreateProduct(ctx context.Context, params ProductParams) (productID, priceID string, err error)
		ParseWebhookEvent(payload []byte, signature string) (WebhookEvent, error)
	}
)

// Webhook event types handled by HandleWebhookEvent.
const (
	EventCheckoutCompleted             = "checkout.session.completed"
	EventCheckoutAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
)
