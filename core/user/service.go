package user

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/skolar/core"
)

var (
	// errors
	ErrNotFound    = core.NewNotFoundError("user not found")
	ErrEmailExists = errors.New("a user with this email already exists")
)

type (
	Repository interface {
		EmailExists(ctx context.Context, email, excludedID string, exec ...core.DBExecutor) (bool, error)
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		GetUser(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (User, error)
		QueryUsers(ctx context.Context, ids []string, exec ...core.DBExecutor) ([]User, error)
		UpdateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
	}

	Service struct {
		repo    Repository
		files   core.FileStorage
		logger  core.Logger
		nowFunc func() time.Time
	}
)

func NewService(repo Repository, files core.FileStorage, logger core.Logger) *Service {
	return &Service{
		repo:    repo,
		files:   files,
		logger:  logger,
		nowFunc: time.Now,
	}
}

func (svc *Service) checkUniqueness(ctx context.Context, email, excludedID string) error {
	exists, err := svc.repo.EmailExists(ctx, email, excludedID)
	if err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if exists {
		return core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := svc.nowFunc().UTC()
	id := nu.ID
	if id == "" {
		id = uuid.New().String()
	}
	usr := User{
		ID:        id,
		FirstName: nu.FirstName,
		LastName:  nu.LastName,
		Email:     nu.Email,
		Role:      nu.Role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

// QueryByIDs returns the known users among ids; unknown ids are skipped.
func (svc *Service) QueryByIDs(ctx context.Context, ids []string) ([]User, error) {
	if len(ids) == 0 {
		return []User{}, nil
	}
	return svc.repo.QueryUsers(ctx, ids)
}

func (svc *Service) UpdateProfile(ctx context.Context, id string, up UpdateProfile) (User, error) {
	usr, err := svc.repo.GetUser(ctx, GetFilter{ID: id})
	if err != nil {
		return User{}, err
	}
	if up.FirstName != nil {
		usr.FirstName = *up.FirstName
	}
	if up.LastName != nil {
		usr.LastName = *up.LastName
	}
	usr.UpdatedAt = svc.nowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// SetRole is used by the admin CLI.
func (svc *Service) SetRole(ctx context.Context, id, role string) (User, error) {
	if !core.StringInSlice(role, AllRoles) {
		return User{}, core.NewValidationError(nil, core.FieldError{Field: "role", Error: "invalid role"})
	}
	usr, err := svc.repo.GetUser(ctx, GetFilter{ID: id})
	if err != nil {
		return User{}, err
	}
	usr.Role = role
	usr.UpdatedAt = svc.nowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// SetProfileImage uploads the image to the profile images bucket and replaces the previous one.
func (svc *Service) SetProfileImage(ctx context.Context, id string, file core.File) (User, error) {
	usr, err := svc.repo.GetUser(ctx, GetFilter{ID: id})
	if err != nil {
		return User{}, err
	}

	name := core.RandomImageName(svc.nowFunc(), file.Name)
	if err = svc.files.Upload(ctx, core.BucketProfileImages, name, file.Content, file.ContentType); err != nil {
		return User{}, errors.Wrap(err, "uploading profile image")
	}

	prevImage := usr.ProfileImage
	usr.ProfileImage = svc.files.PublicURL(core.BucketProfileImages, name)
	usr.UpdatedAt = svc.nowFunc().UTC()
	if usr, err = svc.repo.UpdateUser(ctx, usr); err != nil {
		return User{}, errors.Wrap(err, "updating user")
	}

	if prevImage != "" {
		if err := svc.files.Remove(ctx, core.BucketProfileImages, core.ObjectName(prevImage)); err != nil {
			svc.logger.Warn("removing previous profile image", errors.Wrap(err, prevImage), usr)
		}
	}
	return usr, nil
}

// SetStripeCustomerID persists the payment platform customer of the user.
func (svc *Service) SetStripeCustomerID(ctx context.Context, id, customerID string) (User, error) {
	usr, err := svc.repo.GetUser(ctx, GetFilter{ID: id})
	if err != nil {
		return User{}, err
	}
	usr.StripeCustomerID = customerID
	usr.UpdatedAt = svc.nowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}
