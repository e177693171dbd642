package user

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/skolar/core"
)

// Roles
const (
	RoleStudent    = "student"
	RoleInstructor = "instructor"
	RoleAdmin      = "admin"
)

var AllRoles = []string{RoleStudent, RoleInstructor, RoleAdmin}

type User struct {
	ID               string    `json:"id"`
	FirstName        string    `json:"first_name"`
	LastName         string    `json:"last_name"`
	Email            string    `json:"email"`
	Role             string    `json:"role"`
	ProfileImage     string    `json:"profile_image"`
	StripeCustomerID string    `json:"-"`
	CreatedAt        time.Time `json:"created_at"` // UTC
	UpdatedAt        time.Time `json:"updated_at"` // UTC
}

func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IsInstructor is true for instructors and admins.
func (u User) IsInstructor() bool {
	return u.Role == RoleInstructor || u.IsAdmin()
}

func (u User) IsStudent() bool {
	return u.Role == RoleStudent
}

// NewUser contains information needed to create a new User.
// ID is the subject issued by the identity provider; a new one is generated when empty.
type NewUser struct {
	ID        string `json:"id" validate:"omitempty,uuid"`
	FirstName string `json:"first_name" validate:"required,notblank,max=100"`
	LastName  string `json:"last_name" validate:"max=100"`
	Email     string `json:"email" validate:"required,email"`
	Role      string `json:"role" validate:"omitempty,user_role"`
}

func (nu *NewUser) Validate(ctx context.Context, validate *validator.Validate, svc *Service) error {
	nu.ID = core.CleanString(nu.ID, true /* lower */)
	nu.FirstName = core.CleanString(nu.FirstName)
	nu.LastName = core.CleanString(nu.LastName)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Role = core.CleanString(nu.Role, true /* lower */)
	if nu.Role == "" {
		nu.Role = RoleStudent
	}

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.checkUniqueness(ctx, nu.Email, "")
}

// UpdateProfile defines what a user may change on their own profile.
type UpdateProfile struct {
	FirstName *string `json:"first_name" validate:"omitempty,notblank,max=100"`
	LastName  *string `json:"last_name" validate:"omitempty,max=100"`
}

func (up *UpdateProfile) Validate(validate *validator.Validate) error {
	if up.FirstName != nil {
		s := core.CleanString(*up.FirstName)
		up.FirstName = &s
	}
	if up.LastName != nil {
		s := core.CleanString(*up.LastName)
		up.LastName = &s
	}
	return validate.Struct(up)
}

type GetFilter struct {
	ID    string
	Email string
}
