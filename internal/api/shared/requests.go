package shared

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MaxRequestBodyBytes caps the size of JSON request bodies.
const MaxRequestBodyBytes = 1 << 20

// ErrEmptyBody is returned by DecodeJSON for a request without a body.
var ErrEmptyBody = errors.New("request body is empty")

// Global validator instance for reuse. Field errors carry the JSON name of
// the field.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// DecodeJSON decodes the request body into v. Bodies larger than
// MaxRequestBodyBytes fail to decode.
func DecodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return ErrEmptyBody
	}
	err := json.NewDecoder(io.LimitReader(r.Body, MaxRequestBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) {
		return ErrEmptyBody
	}
	return err
}

// ValidateRequest validates the given struct using the validator package.
func ValidateRequest(v interface{}) error {
	if validator, ok := v.(interface{ Validate() error }); ok {
		return validator.Validate()
	}
	return validate.Struct(v)
}

// ValidationDetails turns a validation error into per-field messages keyed by
// the JSON field name. It returns nil for errors that are not field errors.
func ValidationDetails(err error) map[string]string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return nil
	}

	details := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		field := validationFieldName(fe)
		if _, seen := details[field]; seen {
			continue
		}
		details[field] = validationMessage(fe)
	}
	return details
}

// validationFieldName strips the struct prefix and any slice index from the
// namespace, so "GenerateRequest.models[2]" becomes "models".
func validationFieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		ns = rest
	}
	if i := strings.IndexByte(ns, '['); i >= 0 {
		ns = ns[:i]
	}
	return ns
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.Slice {
			return "must contain at least " + fe.Param() + " items"
		}
		return "must be at least " + fe.Param() + " characters"
	case "max":
		if fe.Kind() == reflect.Slice {
			return "must contain at most " + fe.Param() + " items"
		}
		return "must be at most " + fe.Param() + " characters"
	case "uuid":
		return "must be a valid ID"
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "is invalid"
	}
}
