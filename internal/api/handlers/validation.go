// validation.go - request DTO validation with go-playground/validator.
// Errors are translated to English and reported by JSON field name.
package handlers

import (
	"errors"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"

	"github.com/kintsugi/eventsync/internal/domain/model"
)

const (
	notBlankTag     = "notblank"
	trackingTypeTag = "tracking_type"
)

// requestValidator validates request DTOs.
type requestValidator struct {
	validate   *validator.Validate
	translator ut.Translator
}

func newRequestValidator() *requestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())

	english := en.New()
	uni := ut.New(english, english)
	trans, _ := uni.GetTranslator("en")
	_ = entranslations.RegisterDefaultTranslations(v, trans)

	// Report JSON names instead of Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation(notBlankTag, func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation(trackingTypeTag, func(fl validator.FieldLevel) bool {
		return model.TrackingType(fl.Field().String()).Valid()
	})

	custom := map[string]string{
		notBlankTag:     "{0} cannot be blank",
		trackingTypeTag: "{0} must be one of attendance, food_coupon, custom",
	}
	for tag, text := range custom {
		_ = v.RegisterTranslation(tag, trans,
			func(t ut.Translator) error { return t.Add(tag, text, true) },
			func(t ut.Translator, fe validator.FieldError) string {
				msg, _ := t.T(fe.Tag(), fe.Field())
				return msg
			},
		)
	}

	return &requestValidator{validate: v, translator: trans}
}

// Struct validates s and returns a single readable message on failure.
func (rv *requestValidator) Struct(s any) error {
	err := rv.validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Translate(rv.translator))
	}
	sort.Strings(msgs)
	return errors.New(strings.Join(msgs, "; "))
}
