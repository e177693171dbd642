package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/skolar/core"
	"github.com/trezcool/skolar/core/catalog"
	"github.com/trezcool/skolar/core/commerce"
)

var purchaseColumns = []string{"id", "user_id", "course_id", "price", "payment_id", "payment_status", "invoice_id", "course_title_snapshot", "created_at"}

type purchaseRow struct {
	ID            string      `db:"id"`
	UserID        string      `db:"user_id"`
	CourseID      string      `db:"course_id"`
	Price         float64     `db:"price"`
	PaymentID     string      `db:"payment_id"`
	PaymentStatus string      `db:"payment_status"`
	InvoiceID     null.String `db:"invoice_id"`
	CourseTitle   null.String `db:"course_title_snapshot"`
	CreatedAt     time.Time   `db:"created_at"`
}

func (row purchaseRow) toPurchase() commerce.Purchase {
	return commerce.Purchase{
		ID:            row.ID,
		UserID:        row.UserID,
		CourseID:      row.CourseID,
		Price:         row.Price,
		PaymentID:     row.PaymentID,
		PaymentStatus: row.PaymentStatus,
		InvoiceID:     row.InvoiceID.String,
		CourseTitle:   row.CourseTitle.String,
		CreatedAt:     row.CreatedAt.UTC(),
	}
}

type commerceRepository struct {
	repo
}

var _ commerce.Repository = (*commerceRepository)(nil) // interface compliance check

func NewCommerceRepository(exec core.DBExecutor) *commerceRepository {
	return &commerceRepository{repo{exec: exec}}
}

// cart and wishlist share the (course_id, user_id, created_at) layout

func (r commerceRepository) addItem(ctx context.Context, table, userID, courseID string, exec []core.DBExecutor) (bool, error) {
	if !validUUID(courseID) {
		return false, catalog.ErrCourseNotFound
	}
	q := psql.Insert(table).
		Columns("course_id", "user_id").
		Values(courseID, userID).
		Suffix("ON CONFLICT DO NOTHING")
	n, err := r.execute(ctx, exec, q)
	if err != nil {
		if isForeignKeyViolation(err) {
			return false, catalog.ErrCourseNotFound
		}
		return false, errors.Wrapf(err, "inserting %s item", table)
	}
	return n > 0, nil
}

func (r commerceRepository) removeItem(ctx context.Context, table, userID, courseID string, exec []core.DBExecutor) (bool, error) {
	if !validUUID(courseID) || !validUUID(userID) {
		return false, nil
	}
	n, err := r.execute(ctx, exec, psql.Delete(table).Where(sq.Eq{"course_id": courseID, "user_id": userID}))
	if err != nil {
		return false, errors.Wrapf(err, "deleting %s item", table)
	}
	return n > 0, nil
}

func (r commerceRepository) courseIDs(ctx context.Context, table, userID string, exec []core.DBExecutor) ([]string, error) {
	ids := make([]string, 0)
	if !validUUID(userID) {
		return ids, nil
	}
	q := psql.Select("course_id").From(table).Where(sq.Eq{"user_id": userID}).OrderBy("created_at DESC", "course_id")
	if err := r.selectAll(ctx, exec, &ids, q); err != nil {
		return nil, errors.Wrapf(err, "querying %s", table)
	}
	return ids, nil
}

func (r commerceRepository) AddCartItem(ctx context.Context, userID, courseID string, exec ...core.DBExecutor) (bool, error) {
	return r.addItem(ctx, "carts", userID, courseID, exec)
}

func (r commerceRepository) RemoveCartItem(ctx context.Context, userID, courseID string, exec ...core.DBExecutor) (bool, error) {
	return r.removeItem(ctx, "carts", userID, courseID, exec)
}

func (r commerceRepository) QueryCartCourseIDs(ctx context.Context, userID string, exec ...core.DBExecutor) ([]string, error) {
	return r.courseIDs(ctx, "carts", userID, exec)
}

func (r commerceRepository) ClearCart(ctx context.Context, userID string, exec ...core.DBExecutor) (int, error) {
	if !validUUID(userID) {
		return 0, nil
	}
	n, err := r.execute(ctx, exec, psql.Delete("carts").Where(sq.Eq{"user_id": userID}))
	return n, errors.Wrap(err, "clearing cart")
}

func (r commerceRepository) AddWishlistItem(ctx context.Context, userID, courseID string, exec ...core.DBExecutor) (bool, error) {
	return r.addItem(ctx, "wishlist", userID, courseID, exec)
}

func (r commerceRepository) RemoveWishlistItem(ctx context.Context, userID, courseID string, exec ...core.DBExecutor) (bool, error) {
	return r.removeItem(ctx, "wishlist", userID, courseID, exec)
}

func (r commerceRepository) QueryWishlistCourseIDs(ctx context.Context, userID string, exec ...core.DBExecutor) ([]string, error) {
	return r.courseIDs(ctx, "wishlist", userID, exec)
}

// Purchases

func (r commerceRepository) GetPurchase(ctx context.Context, filter commerce.PurchaseFilter, exec ...core.DBExecutor) (commerce.Purchase, error) {
	q := psql.Select(purchaseColumns...).From("purchases")
	switch {
	case filter.ID != "":
		if !validUUID(filter.ID) {
			return commerce.Purchase{}, commerce.ErrPurchaseNotFound
		}
		q = q.Where(sq.Eq{"id": filter.ID})
	case filter.PaymentID != "":
		q = q.Where(sq.Eq{"payment_id": filter.PaymentID})
	default:
		return commerce.Purchase{}, commerce.ErrPurchaseNotFound
	}

	var row purchaseRow
	if err := r.get(ctx, exec, &row, q); err != nil {
		return commerce.Purchase{}, trapNoRowsErr(err, commerce.ErrPurchaseNotFound, "finding purchase")
	}
	return row.toPurchase(), nil
}

func (r commerceRepository) CreatePurchase(ctx context.Context, p commerce.Purchase, exec ...core.DBExecutor) (commerce.Purchase, bool, error) {
	q := psql.Insert("purchases").
		Columns(purchaseColumns...).
		Values(
			p.ID, p.UserID, p.CourseID, p.Price, p.PaymentID, p.PaymentStatus,
			null.NewString(p.InvoiceID, p.InvoiceID != ""),
			null.NewString(p.CourseTitle, p.CourseTitle != ""),
			p.CreatedAt.UTC(),
		).
		Suffix("ON CONFLICT (payment_id) DO NOTHING")
	n, err := r.execute(ctx, exec, q)
	if err != nil {
		return commerce.Purchase{}, false, errors.Wrap(err, "inserting purchase")
	}
	stored, err := r.GetPurchase(ctx, commerce.PurchaseFilter{PaymentID: p.PaymentID}, exec...)
	if err != nil {
		return commerce.Purchase{}, false, err
	}
	return stored, n > 0, nil
}

func (r commerceRepository) QueryPurchases(ctx context.Context, userID string, page core.Page, exec ...core.DBExecutor) ([]commerce.Purchase, error) {
	purchases := make([]commerce.Purchase, 0, page.Limit)
	if !validUUID(userID) {
		return purchases, nil
	}
	q := psql.Select(purchaseColumns...).
		From("purchases").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC", "id").
		Limit(uint64(page.Limit)).
		Offset(uint64(page.Offset()))

	var rows []purchaseRow
	if err := r.selectAll(ctx, exec, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying purchases")
	}
	for _, row := range rows {
		purchases = append(purchases, row.toPurchase())
	}
	return purchases, nil
}

func (r commerceRepository) CountPurchases(ctx context.Context, userID string, exec ...core.DBExecutor) (int, error) {
	if !validUUID(userID) {
		return 0, nil
	}
	var n int
	if err := r.get(ctx, exec, &n, psql.Select("COUNT(*)").From("purchases").Where(sq.Eq{"user_id": userID})); err != nil {
		return 0, errors.Wrap(err, "counting purchases")
	}
	return n, nil
}
