package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/skolar/core"
	"github.com/trezcool/skolar/core/user"
)

var userColumns = []string{"id", "first_name", "last_name", "email", "role", "profile_image", "stripe_customer_id", "created_at", "updated_at"}

type userRow struct {
	ID               string      `db:"id"`
	FirstName        string      `db:"first_name"`
	LastName         string      `db:"last_name"`
	Email            string      `db:"email"`
	Role             string      `db:"role"`
	ProfileImage     null.String `db:"profile_image"`
	StripeCustomerID null.String `db:"stripe_customer_id"`
	CreatedAt        time.Time   `db:"created_at"`
	UpdatedAt        time.Time   `db:"updated_at"`
}

func (row userRow) toUser() user.User {
	return user.User{
		ID:               row.ID,
		FirstName:        row.FirstName,
		LastName:         row.LastName,
		Email:            row.Email,
		Role:             row.Role,
		ProfileImage:     row.ProfileImage.String,
		StripeCustomerID: row.StripeCustomerID.String,
		CreatedAt:        row.CreatedAt.UTC(),
		UpdatedAt:        row.UpdatedAt.UTC(),
	}
}

type userRepository struct {
	repo
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{repo{exec: exec}}
}

func (r userRepository) EmailExists(ctx context.Context, email, excludedID string, exec ...core.DBExecutor) (bool, error) {
	where := sq.And{sq.Eq{"email": email}}
	if validUUID(excludedID) {
		where = append(where, sq.NotEq{"id": excludedID})
	}
	sub, args, err := sq.Select("1").From("users").Where(where).ToSql()
	if err != nil {
		return false, errors.Wrap(err, "building query")
	}
	var exists bool
	if err = r.get(ctx, exec, &exists, psql.Select().Column(sq.Expr("EXISTS("+sub+")", args...))); err != nil {
		return false, errors.Wrap(err, "checking email uniqueness")
	}
	return exists, nil
}

func (r userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	q := psql.Insert("users").
		Columns(userColumns...).
		Values(
			usr.ID, usr.FirstName, usr.LastName, usr.Email, usr.Role,
			null.NewString(usr.ProfileImage, usr.ProfileImage != ""),
			null.NewString(usr.StripeCustomerID, usr.StripeCustomerID != ""),
			usr.CreatedAt.UTC(), usr.UpdatedAt.UTC(),
		)
	if _, err := r.execute(ctx, exec, q); err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return r.GetUser(ctx, user.GetFilter{ID: usr.ID}, exec...)
}

func (r userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	q := psql.Select(userColumns...).From("users")
	switch {
	case filter.ID != "":
		if !validUUID(filter.ID) {
			return user.User{}, user.ErrNotFound
		}
		q = q.Where(sq.Eq{"id": filter.ID})
	case filter.Email != "":
		q = q.Where(sq.Eq{"email": filter.Email})
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	if err := r.get(ctx, exec, &row, q); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user")
	}
	return row.toUser(), nil
}

func (r userRepository) QueryUsers(ctx context.Context, ids []string, exec ...core.DBExecutor) ([]user.User, error) {
	ids = validUUIDs(ids)
	if len(ids) == 0 {
		return []user.User{}, nil
	}
	var rows []userRow
	q := psql.Select(userColumns...).From("users").Where(sq.Eq{"id": ids}).OrderBy("created_at", "id")
	if err := r.selectAll(ctx, exec, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toUser())
	}
	return users, nil
}

func (r userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	q := psql.Update("users").
		SetMap(map[string]interface{}{
			"first_name":         usr.FirstName,
			"last_name":          usr.LastName,
			"email":              usr.Email,
			"role":               usr.Role,
			"profile_image":      null.NewString(usr.ProfileImage, usr.ProfileImage != ""),
			"stripe_customer_id": null.NewString(usr.StripeCustomerID, usr.StripeCustomerID != ""),
			"updated_at":         usr.UpdatedAt.UTC(),
		}).
		Where(sq.Eq{"id": usr.ID})
	n, err := r.execute(ctx, exec, q)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return r.GetUser(ctx, user.GetFilter{ID: usr.ID}, exec...)
}
