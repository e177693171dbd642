package catalog

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/skolar/core"
	"github.com/trezcool/skolar/core/user"
)

// Levels
const (
	LevelBeginner     = "beginner"
	LevelIntermediate = "intermediate"
	LevelAdvanced     = "advanced"
)

// Subjects
const (
	SubjectMath     = "math"
	SubjectScience  = "science"
	SubjectLanguage = "language"
	SubjectSocial   = "social"
	SubjectCoding   = "coding"
	SubjectOther    = "other"
)

var (
	AllLevels   = []string{LevelBeginner, LevelIntermediate, LevelAdvanced}
	AllSubjects = []string{SubjectMath, SubjectScience, SubjectLanguage, SubjectSocial, SubjectCoding, SubjectOther}
)

// Enrollment statuses
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

type Course struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Cover           string    `json:"cover"`
	Instructor      []string  `json:"instructor"`
	InstructorID    []string  `json:"instructor_id"`
	Duration        int       `json:"duration"` // minutes
	Level           string    `json:"level"`
	Subject         string    `json:"subject"`
	Tags            []string  `json:"tags"`
	Price           float64   `json:"price"` // THB
	StripeProductID string    `json:"stripe_product_id,omitempty"`
	StripePriceID   string    `json:"stripe_price_id,omitempty"`
	StudentIDs      []string  `json:"student_id"`
	ChapterIDs      []string  `json:"chapters"`
	CreatedAt       time.Time `json:"created_at"` // UTC
	UpdatedAt       time.Time `json:"updated_at"` // UTC
}

func (c Course) HasInstructor(userID string) bool {
	return core.StringInSlice(userID, c.InstructorID)
}

func (c Course) HasStudent(userID string) bool {
	return core.StringInSlice(userID, c.StudentIDs)
}

// CanEdit reports whether usr may mutate the course, its chapters and lessons.
func CanEdit(usr user.User, c Course) bool {
	return usr.IsAdmin() || c.HasInstructor(usr.ID)
}

// CanView reports whether usr may read the course content (lessons progress, attachments).
func CanView(usr user.User, c Course) bool {
	return CanEdit(usr, c) || c.HasStudent(usr.ID)
}

// NewCourse contains information needed to create a new Course.
type NewCourse struct {
	Title        string   `json:"title" validate:"required,notblank,max=200"`
	Description  string   `json:"description" validate:"max=5000"`
	Cover        string   `json:"cover" validate:"omitempty,httpurl"`
	Instructor   []string `json:"instructor" validate:"omitempty,dive,notblank"`
	InstructorID []string `json:"instructor_id" validate:"omitempty,dive,uuid"`
	Duration     int      `json:"duration" validate:"gte=0"`
	Level        string   `json:"level" validate:"omitempty,course_level"`
	Subject      string   `json:"subject" validate:"omitempty,course_subject"`
	Tags         []string `json:"tags" validate:"omitempty,dive,max=50"`
	Price        float64  `json:"price" validate:"gte=0"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)
	nc.Cover = core.CleanString(nc.Cover)
	nc.Instructor = core.CleanStrings(nc.Instructor)
	nc.InstructorID = core.CleanStrings(nc.InstructorID, true /* lower */)
	nc.Level = core.CleanString(nc.Level, true /* lower */)
	nc.Subject = core.CleanString(nc.Subject, true /* lower */)
	nc.Tags = core.CleanStrings(nc.Tags)
	if nc.Level == "" {
		nc.Level = LevelBeginner
	}
	if nc.Subject == "" {
		nc.Subject = SubjectOther
	}
	return validate.Struct(nc)
}

// UpdateCourse defines what information may be provided to modify an existing Course.
// nil fields are left untouched.
type UpdateCourse struct {
	Title        *string   `json:"title" validate:"omitempty,notblank,max=200"`
	Description  *string   `json:"description" validate:"omitempty,max=5000"`
	Cover        *string   `json:"cover" validate:"omitempty,httpurl"`
	Instructor   []string  `json:"instructor" validate:"omitempty,dive,notblank"`
	InstructorID []string  `json:"instructor_id" validate:"omitempty,min=1,dive,uuid"`
	Duration     *int      `json:"duration" validate:"omitempty,gte=0"`
	Level        *string   `json:"level" validate:"omitempty,course_level"`
	Subject      *string   `json:"subject" validate:"omitempty,course_subject"`
	Tags         *[]string `json:"tags" validate:"omitempty,dive,max=50"`
	Price        *float64  `json:"price" validate:"omitempty,gte=0"`
}

func (uc *UpdateCourse) Validate(validate *validator.Validate) error {
	cleanPtr := func(s *string, lower ...bool) *string {
		if s == nil {
			return nil
		}
		c := core.CleanString(*s, lower...)
		return &c
	}
	uc.Title = cleanPtr(uc.Title)
	uc.Description = cleanPtr(uc.Description)
	uc.Cover = cleanPtr(uc.Cover)
	uc.Level = cleanPtr(uc.Level, true /* lower */)
	uc.Subject = cleanPtr(uc.Subject, true /* lower */)
	if uc.Instructor != nil {
		uc.Instructor = core.CleanStrings(uc.Instructor)
	}
	if uc.InstructorID != nil {
		uc.InstructorID = core.CleanStrings(uc.InstructorID, true /* lower */)
	}
	if uc.Tags != nil {
		tags := core.CleanStrings(*uc.Tags)
		uc.Tags = &tags
	}
	return validate.Struct(uc)
}

// apply merges the set fields into c.
func (uc UpdateCourse) apply(c Course) Course {
	if uc.Title != nil {
		c.Title = *uc.Title
	}
	if uc.Description != nil {
		c.Description = *uc.Description
	}
	if uc.Cover != nil {
		c.Cover = *uc.Cover
	}
	if uc.Instructor != nil {
		c.Instructor = uc.Instructor
	}
	if uc.InstructorID != nil {
		c.InstructorID = uc.InstructorID
	}
	if uc.Duration != nil {
		c.Duration = *uc.Duration
	}
	if uc.Level != nil {
		c.Level = *uc.Level
	}
	if uc.Subject != nil {
		c.Subject = *uc.Subject
	}
	if uc.Tags != nil {
		c.Tags = *uc.Tags
	}
	if uc.Price != nil {
		c.Price = *uc.Price
	}
	return c
}

type QueryFilter struct {
	IDs          []string
	InstructorID string `query:"instructor_id"`
	Subject      string `query:"subject"`
	Level        string `query:"level"`
	Search       string `query:"search"`
}

func (qf *QueryFilter) Clean() {
	qf.InstructorID = core.CleanString(qf.InstructorID, true /* lower */)
	qf.Subject = core.CleanString(qf.Subject, true /* lower */)
	qf.Level = core.CleanString(qf.Level, true /* lower */)
	qf.Search = core.CleanString(qf.Search)
}

type Chapter struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CourseID  string    `json:"course_id"`
	Index     int       `json:"index"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

type NewChapter struct {
	Title string `json:"title" validate:"required,notblank,max=200"`
	Index *int   `json:"index" validate:"omitempty,gte=0"`
}

func (nc *NewChapter) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	return validate.Struct(nc)
}

type UpdateChapter struct {
	Title *string `json:"title" validate:"omitempty,notblank,max=200"`
	Index *int    `json:"index" validate:"omitempty,gte=0"`
}

func (uc *UpdateChapter) Validate(validate *validator.Validate) error {
	if uc.Title != nil {
		t := core.CleanString(*uc.Title)
		uc.Title = &t
	}
	return validate.Struct(uc)
}

type Lesson struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	ChapterID  string    `json:"chapter_id"`
	Index      int       `json:"index"`
	AssetID    string    `json:"asset_id"`
	PlaybackID string    `json:"playback_id"`
	CreatedAt  time.Time `json:"created_at"` // UTC
	UpdatedAt  time.Time `json:"updated_at"` // UTC
}

type NewLesson struct {
	Title      string `json:"title" validate:"required,notblank,max=200"`
	Index      *int   `json:"index" validate:"omitempty,gte=0"`
	AssetID    string `json:"asset_id" validate:"max=200"`
	PlaybackID string `json:"playback_id" validate:"max=200"`
}

func (nl *NewLesson) Validate(validate *validator.Validate) error {
	nl.Title = core.CleanString(nl.Title)
	nl.AssetID = core.CleanString(nl.AssetID)
	nl.PlaybackID = core.CleanString(nl.PlaybackID)
	return validate.Struct(nl)
}

type UpdateLesson struct {
	Title *string `json:"title" validate:"omitempty,notblank,max=200"`
	Index *int    `json:"index" validate:"omitempty,gte=0"`
}

func (ul *UpdateLesson) Validate(validate *validator.Validate) error {
	if ul.Title != nil {
		t := core.CleanString(*ul.Title)
		ul.Title = &t
	}
	return validate.Struct(ul)
}

// Reorder lists every sibling id in its new order.
type Reorder struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,required"`
}

func (r *Reorder) Validate(validate *validator.Validate) error {
	r.IDs = core.CleanStrings(r.IDs, true /* lower */)
	return validate.Struct(r)
}

type EnrollmentResult struct {
	Status string `json:"status"`
	Text   string `json:"text"`
}
