package httputil

import (
	"errors"
	"reflect"
	"strings"
	"unicode"

	"github.com/EmpoweredVote/watchlist-backend/internal/apperror"
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("hasdigit", containsRune(unicode.IsDigit))
	_ = v.RegisterValidation("hasupper", containsRune(unicode.IsUpper))
	return v
}

func containsRune(pred func(rune) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return strings.IndexFunc(fl.Field().String(), pred) >= 0
	}
}

// Messages maps "field.tag" (json field name, validator tag) to the message
// reported when that rule fails. "field" alone is the fallback for any tag.
type Messages map[string]string

// Validate runs struct tag validation on v and returns a Validation error for
// the first failing field.
func Validate(v any, msgs Messages) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperror.Internal(err)
	}

	fe := verrs[0]
	if m, ok := msgs[fe.Field()+"."+fe.Tag()]; ok {
		return apperror.Validation(m)
	}
	if m, ok := msgs[fe.Field()]; ok {
		return apperror.Validation(m)
	}
	return apperror.Validation("Invalid value for " + fe.Field())
}
