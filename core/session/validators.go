package session

import (
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/studyhub/core"
)

var (
	sessionTimeTag  = "sessiontime"
	sessionTimeText = "must be a time (HH:MM) or an ISO 8601 timestamp"
)

// InitValidators registers the session validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(sessionTimeTag, sessionTimeValidation)
	core.RegisterCustomTranslation(validate, translator, sessionTimeTag, sessionTimeText)
}

func sessionTimeValidation(fl validator.FieldLevel) bool {
	val := fl.Field().String()
	if _, ok := parseTimestamp(val, time.UTC); ok {
		return true
	}
	_, ok := parseClock(val)
	return ok
}
