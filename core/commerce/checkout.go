package commerce

import (
	"context"
	"fmt"
	"math"
	"net/mail"
	"net/url"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/skolar/core"
	"github.com/trezcool/skolar/core/notification"
	"github.com/trezcool/skolar/core/user"
)

// CreateCheckoutSession opens a hosted payment page for the course.
// A payment platform customer is created for the user on first checkout.
func (svc *Service) CreateCheckoutSession(ctx context.Context, usr user.User, req CheckoutRequest) (CheckoutResult, error) {
	c, err := svc.ensurePurchasable(ctx, usr.ID, req.CourseID)
	if err != nil {
		return CheckoutResult{}, err
	}
	if c.StripePriceID == "" {
		return CheckoutResult{}, core.NewValidationError(errNoPrice, core.FieldError{Field: "courseId", Error: errNoPrice.Error()})
	}

	customerID, err := svc.ensureCustomer(ctx, usr)
	if err != nil {
		return CheckoutResult{}, err
	}

	successURL := req.SuccessURL
	if successURL == "" {
		successURL = svc.FrontendBaseURL + "/payment/success?session_id={CHECKOUT_SESSION_ID}"
	}
	cancelURL := req.CancelURL
	if cancelURL == "" {
		cancelURL = svc.FrontendBaseURL + "/courses/" + url.PathEscape(c.ID)
	}

	sess, err := svc.Gateway.CreateCheckoutSession(ctx, CheckoutParams{
		CustomerID: customerID,
		PriceID:    c.StripePriceID,
		SuccessURL: successURL,
		CancelURL:  cancelURL,
		Metadata: map[string]string{
			metaCourseID:        c.ID,
			metaUserID:          usr.ID,
			metaCourseTitle:     c.Title,
			metaStripeProductID: c.StripeProductID,
			metaPriceID:         c.StripePriceID,
		},
	})
	if err != nil {
		return CheckoutResult{}, errors.Wrap(err, "creating checkout session")
	}
	return CheckoutResult{SessionID: sess.ID, URL: sess.URL}, nil
}

func (svc *Service) ensureCustomer(ctx context.Context, usr user.User) (string, error) {
	if usr.StripeCustomerID != "" {
		return usr.StripeCustomerID, nil
	}
	customerID, err := svc.Gateway.CreateCustomer(ctx, usr.Email, usr.FullName(), map[string]string{metaUserID: usr.ID})
	if err != nil {
		return "", errors.Wrap(err, "creating customer")
	}
	if _, err = svc.Users.SetStripeCustomerID(ctx, usr.ID, customerID); err != nil {
		return "", errors.Wrap(err, "saving customer id")
	}
	return customerID, nil
}

// VerifyPayment records the purchase of a paid checkout session.
// It is idempotent: verifying the same session again returns the recorded purchase.
func (svc *Service) VerifyPayment(ctx context.Context, sessionID string) (VerifyResult, error) {
	sess, err := svc.Gateway.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return VerifyResult{}, errors.Wrap(err, "retrieving checkout session")
	}
	if sess.PaymentStatus != PaymentStatusPaid {
		return VerifyResult{Verified: false, PaymentStatus: sess.PaymentStatus}, nil
	}

	courseID, userID := sess.Metadata[metaCourseID], sess.Metadata[metaUserID]
	if courseID == "" || userID == "" {
		return VerifyResult{}, core.NewValidationError(errMissingMetadata, core.FieldError{Field: "sessionId", Error: errMissingMetadata.Error()})
	}

	var (
		purchase Purchase
		created  bool
	)
	err = svc.Tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		existing, err := svc.Repo.GetPurchase(ctx, PurchaseFilter{PaymentID: sess.ID}, exec)
		switch {
		case err == nil:
			purchase = existing
			return nil
		case !core.IsNotFound(err):
			return errors.Wrap(err, "looking up purchase")
		}

		title := sess.Metadata[metaCourseTitle]
		purchase, created, err = svc.Repo.CreatePurchase(ctx, Purchase{
			ID:            uuid.New().String(),
			UserID:        userID,
			CourseID:      courseID,
			Price:         float64(sess.AmountTotal) / 100,
			PaymentID:     sess.ID,
			PaymentStatus: sess.PaymentStatus,
			InvoiceID:     sess.InvoiceID,
			CourseTitle:   title,
			CreatedAt:     svc.nowFunc().UTC(),
		}, exec)
		if err != nil {
			return errors.Wrap(err, "creating purchase")
		}
		if !created {
			return nil
		}

		if _, err = svc.Enroller.AddStudent(ctx, courseID, userID, exec); err != nil {
			return errors.Wrap(err, "enrolling student")
		}
		if _, err = svc.Repo.RemoveCartItem(ctx, userID, courseID, exec); err != nil {
			return errors.Wrap(err, "removing cart item")
		}
		msg := fmt.Sprintf("You now have access to %q.", title)
		if _, err = svc.Notifier.CreateNotification(ctx, notification.New(userID, "Purchase complete", msg, svc.nowFunc()), exec); err != nil {
			return errors.Wrap(err, "creating notification")
		}
		return nil
	})
	if err != nil {
		return VerifyResult{}, err
	}

	if created {
		svc.sendReceipt(ctx, purchase, sess.Currency)
	}

	return VerifyResult{
		Verified:      true,
		PaymentStatus: sess.PaymentStatus,
		Session: &SessionSummary{
			ID:            sess.ID,
			CustomerID:    sess.CustomerID,
			PaymentStatus: sess.PaymentStatus,
			AmountTotal:   sess.AmountTotal,
			Metadata:      sess.Metadata,
		},
		Purchase: &purchase,
	}, nil
}

func (svc *Service) sendReceipt(ctx context.Context, p Purchase, currency string) {
	usr, err := svc.Users.GetByID(ctx, p.UserID)
	if err != nil {
		svc.Logger.Warn("loading receipt recipient", errors.Wrap(err, p.UserID))
		return
	}
	if currency == "" {
		currency = svc.Currency
	}
	svc.Mailer.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.FullName(), Address: usr.Email}},
		Subject:      "Your purchase receipt",
		TemplateName: "purchase_receipt",
		TemplateData: map[string]interface{}{
			"Name":        usr.FullName(),
			"CourseTitle": p.CourseTitle,
			"Amount":      fmt.Sprintf("%.2f", p.Price),
			"Currency":    currency,
			"PaymentID":   p.PaymentID,
			"CourseID":    p.CourseID,
		},
	})
}

// HandleWebhookEvent verifies a payment platform event and records the purchase
// of completed checkout sessions. Other event types are ignored.
func (svc *Service) HandleWebhookEvent(ctx context.Context, payload []byte, signature string) (WebhookEvent, error) {
	evt, err := svc.Gateway.ParseWebhookEvent(payload, signature)
	if err != nil {
		return WebhookEvent{}, core.NewValidationError(errors.Wrap(err, "invalid webhook event"))
	}
	switch evt.Type {
	case EventCheckoutCompleted, EventCheckoutAsyncPaymentSucceeded:
		if evt.SessionID == "" {
			return evt, core.NewValidationError(errors.New("webhook event carries no checkout session"))
		}
		if _, err = svc.VerifyPayment(ctx, evt.SessionID); err != nil {
			return evt, err
		}
	default:
		svc.Logger.Debug("ignoring webhook event", map[string]interface{}{"type": evt.Type, "id": evt.ID})
	}
	return evt, nil
}

// RegisterProduct creates the payment platform product and price of the course
// and stores their ids on it.
func (svc *Service) RegisterProduct(ctx context.Context, courseID string) (string, string, error) {
	c, err := svc.Catalog.GetCourse(ctx, courseID)
	if err != nil {
		return "", "", err
	}
	productID, priceID, err := svc.Gateway.CreateProduct(ctx, ProductParams{
		Name:        c.Title,
		Description: c.Description,
		ImageURL:    c.Cover,
		UnitAmount:  int64(math.Round(c.Price * 100)),
		Currency:    svc.Currency,
		Metadata:    map[string]string{metaCourseID: c.ID},
	})
	if err != nil {
		return "", "", errors.Wrap(err, "creating product")
	}
	if _, err = svc.Catalog.SetStripeProduct(ctx, c.ID, productID, priceID); err != nil {
		return "", "", errors.Wrap(err, "saving product ids")
	}
	return productID, priceID, nil
}
