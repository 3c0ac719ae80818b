package core

import (
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/locales/fr"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	fr_translations "github.com/go-playground/validator/v10/translations/fr"
	"github.com/pkg/errors"
)

var (
	// custom validation tags & texts
	gradeTag  = "grade"
	gradeText = "{0} doit être une note entre 0 et 20 (demi-points acceptés)"
	MaxGrade  = 20.0

	difficultyTag    = "difficulty"
	difficultyText   = "{0} doit être debutant, intermediaire ou avance"
	DifficultyLevels = []string{"debutant", "intermediaire", "avance"}

	requiredTag     = "required"
	requiredWithTag = "required_with"
	requiredText    = "ce champ est obligatoire"
)

// NewTranslator returns the french translator used for validation messages.
func NewTranslator() ut.Translator {
	_fr := fr.New()
	uni := ut.New(_fr, _fr)
	translator, _ := uni.GetTranslator("fr")
	return translator
}

// NewValidator returns a validator ready for use with its translator.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := NewTranslator()
	InitValidators(validate, translator)
	return validate, translator
}

// InitValidators instantiates the validator for use.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = fr_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// register custom validators
	_ = validate.RegisterValidation(gradeTag, gradeValidation)
	RegisterCustomTranslation(validate, translator, gradeTag, gradeText)
	_ = validate.RegisterValidation(difficultyTag, difficultyValidation)
	RegisterCustomTranslation(validate, translator, difficultyTag, difficultyText)

	RegisterCustomTranslation(validate, translator, requiredTag, requiredText, true)
	RegisterCustomTranslation(validate, translator, requiredWithTag, requiredText, true)
}

// RegisterCustomTranslation registers a custom translation for the specified validation tag.
func RegisterCustomTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override ...bool) {
	var ovrd bool
	if len(override) > 0 {
		ovrd = override[0]
	}
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// ValidateStruct validates `s` and converts validator errors into a ValidationError with translated messages.
func ValidateStruct(validate *validator.Validate, translator ut.Translator, s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	vErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.Wrap(err, "validating")
	}
	flds := make([]FieldError, 0, len(vErrs))
	for _, vErr := range vErrs {
		flds = append(flds, FieldError{Field: vErr.Field(), Error: vErr.Translate(translator)})
	}
	return NewValidationError(errors.New("formulaire invalide"), flds...)
}

// Custom Global Validators

// gradeValidation only allows grades in [0, 20] by steps of 0.5.
func gradeValidation(fl validator.FieldLevel) bool {
	var g float64
	switch fl.Field().Kind() {
	case reflect.Float32, reflect.Float64:
		g = fl.Field().Float()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		g = float64(fl.Field().Int())
	default:
		return false
	}
	if g < 0 || g > MaxGrade {
		return false
	}
	return math.Mod(g*2, 1) == 0
}

func difficultyValidation(fl validator.FieldLevel) bool {
	level := fl.Field().String()
	for _, l := range DifficultyLevels {
		if level == l {
			return true
		}
	}
	return false
}
