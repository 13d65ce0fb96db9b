package hostel

import (
	"regexp"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/hostel/core"
)

var (
	natIDTag   = "natid"
	natIDText  = "{0} must be a 12 digit national ID number (e.g. 1234-5678-9012)"
	natIDRegex = regexp.MustCompile(`^\d{4}[- ]?\d{4}[- ]?\d{4}$`)

	ymdTag  = "ymd"
	ymdText = "{0} must be a date formatted as YYYY-MM-DD"

	phoneTag   = "phone"
	phoneText  = "{0} must be a valid phone number"
	phoneRegex = regexp.MustCompile(`^\+?[0-9][0-9 \-()]{5,18}[0-9]$`)
)

// InitValidators registers the hostel validation tags and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(natIDTag, natIDValidation)
	registerTranslation(validate, translator, natIDTag, natIDText)

	_ = validate.RegisterValidation(ymdTag, ymdValidation)
	registerTranslation(validate, translator, ymdTag, ymdText)

	_ = validate.RegisterValidation(phoneTag, phoneValidation)
	registerTranslation(validate, translator, phoneTag, phoneText)
}

func registerTranslation(validate *validator.Validate, translator ut.Translator, tag, text string) {
	core.RegisterCustomTranslation(validate, translator, tag, text)
}

// NormalizeNationalID strips separators so that "1234-5678-9012" and "123456789012" compare equal.
func NormalizeNationalID(id string) string {
	return strings.NewReplacer("-", "", " ", "").Replace(strings.TrimSpace(id))
}

func natIDValidation(fl validator.FieldLevel) bool {
	return natIDRegex.MatchString(fl.Field().String())
}

func ymdValidation(fl validator.FieldLevel) bool {
	_, err := time.Parse(DateLayout, fl.Field().String())
	return err == nil
}

func phoneValidation(fl validator.FieldLevel) bool {
	return phoneRegex.MatchString(fl.Field().String())
}
