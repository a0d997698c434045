package core

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var alphaNumUnderRegex = regexp.MustCompile(`^[\w\s]+$`)

// customTags are validated by this package. Texts override the default english translations.
var customTags = []struct {
	tag  string
	fn   validator.Func
	text string
}{
	{tag: "alphanum_", fn: alphaNumUnderValidation, text: "only alphanumeric characters and underscores are allowed"},
	{tag: "notblank", fn: notBlankValidation, text: "this field cannot be blank"},
}

// overriddenTexts replace the default translations of built-in tags.
var overriddenTexts = map[string]string{
	"required":      "this field is required",
	"required_with": "this field is required",
	"datetime":      "invalid date",
	"uuid":          "invalid id",
}

// NewTranslator returns the english translator used for validation messages.
func NewTranslator() ut.Translator {
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	return translator
}

// InitValidators registers the json field names, the custom tags and their english texts.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	for _, ct := range customTags {
		_ = validate.RegisterValidation(ct.tag, ct.fn)
		RegisterCustomTranslation(validate, translator, ct.tag, ct.text)
	}
	for tag, text := range overriddenTexts {
		RegisterCustomTranslation(validate, translator, tag, text, true)
	}
	_ = validate.RegisterTranslation(
		"oneof", translator,
		func(t ut.Translator) error { return t.Add("oneof", "must be one of: {1}", true) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T("oneof", fe.Field(), strings.Join(strings.Fields(fe.Param()), ", "))
			return s
		},
	)
}

// RegisterCustomTranslation registers text as the message of tag.
// Set override to replace an existing translation.
func RegisterCustomTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override ...bool) {
	ovrd := len(override) > 0 && override[0]
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

func alphaNumUnderValidation(fl validator.FieldLevel) bool {
	return alphaNumUnderRegex.MatchString(fl.Field().String())
}

// notBlankValidation rejects whitespace only strings. Use with omitempty for optional fields.
func notBlankValidation(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}
