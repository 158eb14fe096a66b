package middleware

import (
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// SetupValidator configures gin's validator with custom tags. Call once at
// startup, before the first request is bound.
func SetupValidator() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}

	// Use JSON/form tag names for field names in errors
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		}
		return name
	})

	// money validates a decimal string amount. Amounts travel as strings so
	// no float rounding happens before the decimal parse.
	_ = v.RegisterValidation("money", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if s == "" {
			return false
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return false
		}
		return !d.IsNegative()
	})
}
