// Package dto holds the request and response shapes of every service
// operation, plus the declarative validation layer. Services call Validate
// before touching any repository so malformed input never reaches a write.
package dto

import (
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/kentonium3/bake-tracker/internal/apperror"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Teach the validator to treat decimal.Decimal fields as numbers so the
	// standard gt/gte tags apply to quantities and costs.
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// Validate runs struct-tag validation and converts the first failure into a
// typed ValidationError.
func Validate(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	if fields, ok := err.(validator.ValidationErrors); ok && len(fields) > 0 {
		first := fields[0]
		return apperror.NewFieldValidation(first.Field(), "failed on rule "+first.Tag())
	}
	return apperror.NewValidation(err.Error())
}
