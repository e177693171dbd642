package catalog

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/skolar/core"
)

var (
	courseLevelTag  = "course_level"
	courseLevelText = "{0} must be one of: beginner, intermediate, advanced"

	courseSubjectTag  = "course_subject"
	courseSubjectText = "{0} must be one of: math, science, language, social, coding, other"
)

// InitValidators registers the catalog validators. core.InitValidators must run first.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(courseLevelTag, oneOfValidation(AllLevels))
	core.RegisterCustomTranslation(validate, translator, courseLevelTag, courseLevelText)

	_ = validate.RegisterValidation(courseSubjectTag, oneOfValidation(AllSubjects))
	core.RegisterCustomTranslation(validate, translator, courseSubjectTag, courseSubjectText)
}

func oneOfValidation(allowed []string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return core.StringInSlice(fl.Field().String(), allowed)
	}
}
