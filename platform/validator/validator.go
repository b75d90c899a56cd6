// Package validator provides validation infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package validator

import (
	"institute_backend/platform/phone"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Validator wraps the go-playground validator for structured validation.
// Using a struct allows for dependency injection and easier testing.
type Validator struct {
	v *validator.Validate
}

// New creates a new Validator instance with the application's custom rules
// registered.
func New() *Validator {
	v := validator.New()
	registerCustomRules(v)
	return &Validator{v: v}
}

// Struct validates a struct based on validation tags.
func (val *Validator) Struct(s interface{}) error {
	return val.v.Struct(s)
}

// Var validates a single variable against a tag.
func (val *Validator) Var(field interface{}, tag string) error {
	return val.v.Var(field, tag)
}

// RegisterValidation registers a custom validation function.
func (val *Validator) RegisterValidation(tag string, fn validator.Func) error {
	return val.v.RegisterValidation(tag, fn)
}

func registerCustomRules(v *validator.Validate) {
	// irmobile validates the regional mobile number format.
	_ = v.RegisterValidation("irmobile", func(fl validator.FieldLevel) bool {
		return phone.IsValidMobile(fl.Field().String())
	})
}

// RegisterGinValidators installs the custom rules into gin's binding
// validator so request structs can use them in binding tags.
func RegisterGinValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		registerCustomRules(v)
	}
}

// Validate is the shared validator instance used across all modules.
var Validate = func() *validator.Validate {
	v := validator.New()
	registerCustomRules(v)
	return v
}()
