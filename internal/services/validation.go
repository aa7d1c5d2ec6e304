package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"authsvc/internal/apperr"

	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"
)

var fieldLabels = map[string]string{
	"username":        "Username",
	"email":           "Email",
	"phoneNumber":     "Phone number",
	"password":        "Password",
	"confirmPassword": "Confirm password",
	"identifier":      "Identifier",
	"otp":             "OTP",
	"newPassword":     "New password",
	"role":            "Role",
}

// newValidator returns a validator that reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// validateStruct runs the struct's validate tags and converts failures into a
// VALIDATION_FAILED error whose "errors" context maps field to message.
func validateStruct(v *validator.Validate, s interface{}) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return oops.Code(apperr.CodeInternal).Wrap(err)
	}
	fields := make(map[string]string, len(verrs))
	for _, e := range verrs {
		fields[e.Field()] = fieldMessage(e)
	}
	return oops.Code(apperr.CodeValidation).With("errors", fields).Errorf("Validation failed")
}

func fieldMessage(e validator.FieldError) string {
	label, ok := fieldLabels[e.Field()]
	if !ok {
		label = e.Field()
	}
	switch e.Tag() {
	case "required":
		return label + " is required"
	case "email":
		return label + " must be valid"
	case "eqfield":
		return "Passwords do not match"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", label, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", label, e.Param())
	case "excludes":
		return fmt.Sprintf("%s must not contain '%s'", label, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", label, e.Param())
	}
	return fmt.Sprintf("%s failed on the '%s' rule", label, e.Tag())
}
