// Package validation turns go-playground/validator failures into field
// errors keyed by JSON path, which the HTTP layer returns as-is.
package validation

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/Domenick1991/airticket/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

// Error lists offending fields by their JSON path, e.g. "payment.cvv".
type Error struct {
	Fields map[string]string
}

func (e *Error) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *Error) Unwrap() error {
	return domain.ErrValidationFailed
}

// Field builds an Error for a single field.
func Field(field, msg string) *Error {
	return &Error{Fields: map[string]string{field: msg}}
}

// New returns a validator that reports fields by their json tag.
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// Registration only fails for an empty tag or nil func.
	_ = v.RegisterValidation("notblank", validators.NotBlank)
	return v
}

// Struct validates in and converts the result into *Error.
func Struct(v *validator.Validate, in any) error {
	err := v.Struct(in)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("validate input: %w", err)
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fieldPath(fe)] = message(fe)
	}
	return &Error{Fields: fields}
}

// fieldPath drops the struct name from the namespace: "BookInput.payment.cvv" -> "payment.cvv".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func message(fe validator.FieldError) string {
	isString := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "required", "notblank":
		return "this field is required"
	case "required_without":
		return fmt.Sprintf("required when %s is not set", strings.ToLower(fe.Param()))
	case "email":
		return "enter a valid email address"
	case "numeric":
		return "must contain digits only"
	case "alphanum":
		return "must contain letters and digits only"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "len":
		return fmt.Sprintf("must be exactly %s digits long", fe.Param())
	case "min":
		if isString {
			return fmt.Sprintf("must be at least %s characters long", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if isString {
			return fmt.Sprintf("must be at most %s characters long", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must not be less than %s", fe.Param())
	}
	return "is invalid"
}
