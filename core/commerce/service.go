package commerce

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/skolar/core"
	"github.com/trezcool/skolar/core/catalog"
	"github.com/trezcool/skolar/core/notification"
	"github.com/trezcool/skolar/core/user"
)

var (
	// errors
	ErrPurchaseNotFound = core.NewNotFoundError("Could not find purchase record")
	ErrInvoiceMissing   = core.NewNotFoundError("Invoice not found in Stripe")
	ErrNoInvoice        = core.NewNotFoundError("Invoice not available for this purchase")

	errAlreadyOwned    = errors.New("you already own this course")
	errNoPrice         = errors.New("course has no price configured")
	errMissingMetadata = errors.New("missing metadata in checkout session")
	errPurchaseIDReq   = errors.New("Purchase ID is required")
)

type (
	Repository interface {
		// AddCartItem and RemoveCartItem report whether a row was changed.
		AddCartItem(ctx context.Context, userID, courseID string, exec ...core.DBExecutor) (bool, error)
		RemoveCartItem(ctx context.Context, userID, courseID string, exec ...core.DBExecutor) (bool, error)
		// QueryCartCourseIDs returns the course ids in the cart, most recently added first.
		QueryCartCourseIDs(ctx context.Context, userID string, exec ...core.DBExecutor) ([]string, error)
		ClearCart(ctx context.Context, userID string, exec ...core.DBExecutor) (int, error)

		AddWishlistItem(ctx context.Context, userID, courseID string, exec ...core.DBExecutor) (bool, error)
		RemoveWishlistItem(ctx context.Context, userID, courseID string, exec ...core.DBExecutor) (bool, error)
		QueryWishlistCourseIDs(ctx context.Context, userID string, exec ...core.DBExecutor) ([]string, error)

		GetPurchase(ctx context.Context, filter PurchaseFilter, exec ...core.DBExecutor) (Purchase, error)
		// CreatePurchase inserts the purchase unless its payment id is already recorded,
		// in which case the recorded purchase is returned with created=false.
		CreatePurchase(ctx context.Context, p Purchase, exec ...core.DBExecutor) (purchase Purchase, created bool, err error)
		// QueryPurchases returns a page of the user purchases, most recent first.
		QueryPurchases(ctx context.Context, userID string, page core.Page, exec ...core.DBExecutor) ([]Purchase, error)
		CountPurchases(ctx context.Context, userID string, exec ...core.DBExecutor) (int, error)
	}

	// CourseCatalog is implemented by *catalog.Service.
	CourseCatalog interface {
		GetCourse(ctx context.Context, id string) (catalog.Course, error)
		QueryCoursesByIDs(ctx context.Context, ids []string) ([]catalog.Course, error)
		SetStripeProduct(ctx context.Context, id, productID, priceID string) (catalog.Course, error)
		IsEnrolled(ctx context.Context, courseID, userID string) (bool, error)
	}

	// Enroller is implemented by catalog repositories.
	Enroller interface {
		AddStudent(ctx context.Context, courseID, userID string, exec ...core.DBExecutor) (bool, error)
	}

	// Notifier is implemented by notification repositories.
	Notifier interface {
		CreateNotification(ctx context.Context, n notification.Notification, exec ...core.DBExecutor) (notification.Notification, error)
	}

	// UserStore is implemented by *user.Service.
	UserStore interface {
		GetByID(ctx context.Context, id string) (user.User, error)
		SetStripeCustomerID(ctx context.Context, id, customerID string) (user.User, error)
	}

	ServiceDeps struct {
		Tx              core.TxRunner
		Repo            Repository
		Catalog         CourseCatalog
		Enroller        Enroller
		Notifier        Notifier
		Users           UserStore
		Gateway         PaymentGateway
		Mailer          core.EmailService
		Logger          core.Logger
		Currency        string
		FrontendBaseURL string
	}

	Service struct {
		ServiceDeps
		nowFunc func() time.Time
	}
)

func NewService(deps ServiceDeps) *Service {
	if deps.Currency == "" {
		deps.Currency = "thb"
	}
	return &Service{ServiceDeps: deps, nowFunc: time.Now}
}

// ensurePurchasable checks that the course exists and is not owned by the user yet.
func (svc *Service) ensurePurchasable(ctx context.Context, userID, courseID string) (catalog.Course, error) {
	c, err := svc.Catalog.GetCourse(ctx, courseID)
	if err != nil {
		return catalog.Course{}, err
	}
	owned, err := svc.Catalog.IsEnrolled(ctx, courseID, userID)
	if err != nil {
		return catalog.Course{}, errors.Wrap(err, "checking enrollment")
	}
	if owned {
		return catalog.Course{}, core.NewValidationError(errAlreadyOwned, core.FieldError{Field: "course_id", Error: errAlreadyOwned.Error()})
	}
	return c, nil
}

// coursesInOrder loads the courses keeping the order of ids (unknown ids are skipped).
func (svc *Service) coursesInOrder(ctx context.Context, ids []string) ([]catalog.Course, error) {
	courses, err := svc.Catalog.QueryCoursesByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	byID := make(map[string]catalog.Course, len(courses))
	for _, c := range courses {
		byID[c.ID] = c
	}
	ordered := make([]catalog.Course, 0, len(ids))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			ordered = append(ordered, c)
		}
	}
	return ordered, nil
}

// Cart

func (svc *Service) AddToCart(ctx context.Context, userID, courseID string) (bool, error) {
	if _, err := svc.ensurePurchasable(ctx, userID, courseID); err != nil {
		return false, err
	}
	return svc.Repo.AddCartItem(ctx, userID, courseID)
}

func (svc *Service) RemoveFromCart(ctx context.Context, userID, courseID string) (bool, error) {
	return svc.Repo.RemoveCartItem(ctx, userID, courseID)
}

func (svc *Service) ListCart(ctx context.Context, userID string) ([]catalog.Course, error) {
	ids, err := svc.Repo.QueryCartCourseIDs(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "querying cart")
	}
	return svc.coursesInOrder(ctx, ids)
}

func (svc *Service) IsInCart(ctx context.Context, userID, courseID string) (bool, error) {
	ids, err := svc.Repo.QueryCartCourseIDs(ctx, userID)
	if err != nil {
		return false, errors.Wrap(err, "querying cart")
	}
	return core.StringInSlice(courseID, ids), nil
}

func (svc *Service) ClearCart(ctx context.Context, userID string) (int, error) {
	return svc.Repo.ClearCart(ctx, userID)
}

// Wishlist

func (svc *Service) AddToWishlist(ctx context.Context, userID, courseID string) (bool, error) {
	if _, err := svc.ensurePurchasable(ctx, userID, courseID); err != nil {
		return false, err
	}
	return svc.Repo.AddWishlistItem(ctx, userID, courseID)
}

func (svc *Service) RemoveFromWishlist(ctx context.Context, userID, courseID string) (bool, error) {
	return svc.Repo.RemoveWishlistItem(ctx, userID, courseID)
}

func (svc *Service) ListWishlist(ctx context.Context, userID string) ([]catalog.Course, error) {
	ids, err := svc.Repo.QueryWishlistCourseIDs(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "querying wishlist")
	}
	return svc.coursesInOrder(ctx, ids)
}

func (svc *Service) IsInWishlist(ctx context.Context, userID, courseID string) (bool, error) {
	ids, err := svc.Repo.QueryWishlistCourseIDs(ctx, userID)
	if err != nil {
		return false, errors.Wrap(err, "querying wishlist")
	}
	return core.StringInSlice(courseID, ids), nil
}

// Purchases

// ListPurchases returns the page (1-based) of the user purchases, most recent first.
func (svc *Service) ListPurchases(ctx context.Context, userID string, page core.Page) (PurchasePage, error) {
	total, err := svc.Repo.CountPurchases(ctx, userID)
	if err != nil {
		return PurchasePage{}, errors.Wrap(err, "counting purchases")
	}
	items, err := svc.Repo.QueryPurchases(ctx, userID, page)
	if err != nil {
		return PurchasePage{}, errors.Wrap(err, "querying purchases")
	}
	if items == nil {
		items = []Purchase{}
	}
	return PurchasePage{Purchases: items, Pagination: core.NewPagination(page, total)}, nil
}

// InvoiceURL returns the hosted invoice URL of a purchase owned by the user.
func (svc *Service) InvoiceURL(ctx context.Context, userID, purchaseID string) (string, error) {
	purchaseID = core.CleanString(purchaseID, true /* lower */)
	if purchaseID == "" {
		return "", core.NewValidationError(errPurchaseIDReq)
	}
	p, err := svc.Repo.GetPurchase(ctx, PurchaseFilter{ID: purchaseID})
	if err != nil {
		return "", err
	}
	if p.UserID != userID {
		svc.Logger.Warn("invoice requested by a non owner", map[string]interface{}{"purchase": p.ID, "user": userID})
		return "", core.ErrPermissionDenied
	}
	if p.InvoiceID == "" {
		return "", ErrNoInvoice
	}
	u, err := svc.Gateway.GetInvoiceURL(ctx, p.InvoiceID)
	if err != nil {
		if errors.Cause(err) == ErrInvoiceMissing {
			return "", ErrInvoiceMissing
		}
		return "", errors.Wrap(err, "retrieving invoice")
	}
	return u, nil
}
