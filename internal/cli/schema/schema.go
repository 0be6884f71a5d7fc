// Package schema validates request and response payloads and turns
// validator failures into field-level messages a user can act on.
package schema

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// FieldError is a single failed constraint on one field
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"code"`
	Message string `json:"message"`
}

// ValidationError collects every failed field of a payload
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Message
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Messages maps field name to its first message
func (e *ValidationError) Messages() map[string]string {
	out := make(map[string]string, len(e.Fields))
	for _, f := range e.Fields {
		if _, ok := out[f.Field]; !ok {
			out[f.Field] = f.Message
		}
	}
	return out
}

// IsValidationError reports whether err is (or wraps) a *ValidationError
func IsValidationError(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr)
}

var (
	once     sync.Once
	validate *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		// Report fields by their JSON names
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})

		validate.RegisterValidation("hasupper", containsRune(unicode.IsUpper))
		validate.RegisterValidation("haslower", containsRune(unicode.IsLower))
		validate.RegisterValidation("hasdigit", containsRune(unicode.IsDigit))
	})
	return validate
}

func containsRune(pred func(rune) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		for _, r := range fl.Field().String() {
			if pred(r) {
				return true
			}
		}
		return false
	}
}

// Validate checks v against its `validate` struct tags. It returns nil or a
// *ValidationError with one entry per failed field.
func Validate(v any) error {
	err := instance().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("failed to validate %T: %w", v, err)
	}

	labels := labelsFor(v)
	out := &ValidationError{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		label, ok := labels[fe.StructField()]
		if !ok {
			label = fe.StructField()
		}
		out.Fields = append(out.Fields, FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Message: message(label, fe),
		})
	}
	return out
}

// labelsFor reads `label` struct tags, keyed by Go field name
func labelsFor(v any) map[string]string {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	labels := map[string]string{}
	if t == nil || t.Kind() != reflect.Struct {
		return labels
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if l := f.Tag.Get("label"); l != "" {
			labels[f.Name] = l
		}
	}
	return labels
}

func message(label string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", label)
	case "email":
		return "Invalid email address"
	case "url":
		return fmt.Sprintf("%s must be a valid URL", label)
	case "min":
		if isString(fe.Kind()) {
			return fmt.Sprintf("%s must be at least %s characters", label, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", label, fe.Param())
	case "max":
		if isString(fe.Kind()) {
			return fmt.Sprintf("%s must be at most %s characters", label, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", label, fe.Param())
	case "oneof":
		return fmt.Sprintf("Invalid %s", strings.ToLower(label))
	case "eqfield":
		return "Passwords do not match"
	case "hasupper":
		return fmt.Sprintf("%s must contain at least one uppercase letter", label)
	case "haslower":
		return fmt.Sprintf("%s must contain at least one lowercase letter", label)
	case "hasdigit":
		return fmt.Sprintf("%s must contain at least one number", label)
	default:
		return fmt.Sprintf("%s is invalid (%s)", label, fe.Tag())
	}
}

func isString(k reflect.Kind) bool {
	return k == reflect.String
}
