package core

import (
	"reflect"
	"regexp"
	"strings"

	ptBR "github.com/go-playground/locales/pt_BR"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	ptBRTranslations "github.com/go-playground/validator/v10/translations/pt_BR"
)

// Grades served by the platform (Ensino Fundamental II).
const (
	MinGrade = 6
	MaxGrade = 9
)

// Shifts
const (
	ShiftMorning   = "matutino"
	ShiftAfternoon = "vespertino"
	ShiftEvening   = "noturno"
	ShiftFullTime  = "integral"
)

var (
	Shifts = []string{ShiftMorning, ShiftAfternoon, ShiftEvening, ShiftFullTime}

	// Brazilian federative units
	States = []string{
		"AC", "AL", "AM", "AP", "BA", "CE", "DF", "ES", "GO", "MA", "MG", "MS", "MT", "PA",
		"PB", "PE", "PI", "PR", "RJ", "RN", "RO", "RR", "RS", "SC", "SE", "SP", "TO",
	}

	// custom validation tags & texts
	alphaNumUnderTag   = "alphanum_"
	alphaNumUnderText  = "apenas letras, números e sublinhados são permitidos"
	alphaNumUnderRegex = regexp.MustCompile(`^\w+$`)

	notBlankTag  = "notblank"
	notBlankText = "este campo não pode ficar em branco"

	gradeTag  = "grade"
	gradeText = "a série deve estar entre o 6º e o 9º ano"

	shiftTag  = "shift"
	shiftText = "turno inválido"

	classTag   = "classletter"
	classText  = "a turma deve ter de 1 a 3 letras ou números"
	classRegex = regexp.MustCompile(`^[A-Z0-9]{1,3}$`)

	ufTag  = "uf"
	ufText = "UF inválida"

	requiredTag     = "required"
	requiredWithTag = "required_with"
	requiredText    = "este campo é obrigatório"
)

// NewTranslator returns the pt_BR translator used for validation messages.
func NewTranslator() ut.Translator {
	pt := ptBR.New()
	uni := ut.New(pt, pt)
	translator, _ := uni.GetTranslator("pt_BR")
	return translator
}

// InitValidators instantiates the validator for use.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = ptBRTranslations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// register custom validators
	_ = validate.RegisterValidation(alphaNumUnderTag, alphaNumUnderValidation)
	RegisterCustomTranslation(validate, translator, alphaNumUnderTag, alphaNumUnderText)

	_ = validate.RegisterValidation(notBlankTag, notBlankValidation)
	RegisterCustomTranslation(validate, translator, notBlankTag, notBlankText)

	_ = validate.RegisterValidation(gradeTag, gradeValidation)
	RegisterCustomTranslation(validate, translator, gradeTag, gradeText)

	_ = validate.RegisterValidation(shiftTag, shiftValidation)
	RegisterCustomTranslation(validate, translator, shiftTag, shiftText)

	_ = validate.RegisterValidation(classTag, classValidation)
	RegisterCustomTranslation(validate, translator, classTag, classText)

	_ = validate.RegisterValidation(ufTag, ufValidation)
	RegisterCustomTranslation(validate, translator, ufTag, ufText)

	RegisterCustomTranslation(validate, translator, requiredTag, requiredText, true)
	RegisterCustomTranslation(validate, translator, requiredWithTag, requiredText, true)
}

// NewValidator returns a validator and its translator, both initialized.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := NewTranslator()
	InitValidators(validate, translator)
	return validate, translator
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

// TranslateErrors maps validation errors to {field: message}.
func TranslateErrors(errs validator.ValidationErrors, translator ut.Translator) map[string]string {
	fldErrs := make(map[string]string, len(errs))
	for _, vErr := range errs {
		fldErrs[vErr.Field()] = vErr.Translate(translator)
	}
	return fldErrs
}

func IsValidGrade(grade int) bool {
	return grade >= MinGrade && grade <= MaxGrade
}

func IsValidShift(shift string) bool {
	for _, s := range Shifts {
		if s == shift {
			return true
		}
	}
	return false
}

// Custom Global Validators

// alphaNumUnderValidation only allows alphanumeric characters and underscores.
func alphaNumUnderValidation(fl validator.FieldLevel) bool {
	return alphaNumUnderRegex.MatchString(fl.Field().String())
}

func notBlankValidation(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func gradeValidation(fl validator.FieldLevel) bool {
	return IsValidGrade(int(fl.Field().Int()))
}

func shiftValidation(fl validator.FieldLevel) bool {
	return IsValidShift(fl.Field().String())
}

func classValidation(fl validator.FieldLevel) bool {
	return classRegex.MatchString(fl.Field().String())
}

func ufValidation(fl validator.FieldLevel) bool {
	uf := fl.Field().String()
	for _, s := range States {
		if s == uf {
			return true
		}
	}
	return false
}
