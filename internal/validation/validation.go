package validation

import (
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"quoteflow/internal/apperr"
)

// ValidationError represents a structured validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors collects multiple field errors.
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (ve *ValidationErrors) Add(field, message string) {
	ve.Errors = append(ve.Errors, ValidationError{Field: field, Message: message})
}

func (ve *ValidationErrors) HasErrors() bool {
	return len(ve.Errors) > 0
}

func (ve *ValidationErrors) Error() string {
	msgs := make([]string, len(ve.Errors))
	for i, e := range ve.Errors {
		msgs[i] = e.Field + ": " + e.Message
	}
	return strings.Join(msgs, "; ")
}

// Err converts the collected errors into an apperr validation failure, or nil.
func (ve *ValidationErrors) Err() error {
	if !ve.HasErrors() {
		return nil
	}
	fields := make([]apperr.FieldError, len(ve.Errors))
	for i, e := range ve.Errors {
		fields[i] = apperr.FieldError{Field: e.Field, Message: e.Message}
	}
	return apperr.ValidationFields(ve.Error(), fields)
}

// RequireField checks a required string field is non-empty.
func RequireField(ve *ValidationErrors, field, value string) {
	if strings.TrimSpace(value) == "" {
		ve.Add(field, "is required")
	}
}

// ValidateEnum checks a field is one of allowed values.
func ValidateEnum(ve *ValidationErrors, field, value string, allowed []string) {
	if value == "" {
		return
	}
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	ve.Add(field, fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")))
}

// ValidateNonNegative checks a decimal field is >= 0.
func ValidateNonNegative(ve *ValidationErrors, field string, value decimal.Decimal) {
	if value.IsNegative() {
		ve.Add(field, "must be non-negative")
	}
}

// ValidatePositive checks a decimal field is > 0.
func ValidatePositive(ve *ValidationErrors, field string, value decimal.Decimal) {
	if !value.IsPositive() {
		ve.Add(field, "must be a positive number")
	}
}

// ValidateMinLength checks a trimmed string has at least min characters.
func ValidateMinLength(ve *ValidationErrors, field, value string, min int) {
	if len([]rune(strings.TrimSpace(value))) < min {
		ve.Add(field, fmt.Sprintf("must be at least %d characters", min))
	}
}

// ValidateMaxLength checks string doesn't exceed max length.
func ValidateMaxLength(ve *ValidationErrors, field, value string, max int) {
	if len(value) > max {
		ve.Add(field, fmt.Sprintf("must be at most %d characters", max))
	}
}

// ValidateEmail checks a field is a valid email (if non-empty).
func ValidateEmail(ve *ValidationErrors, field, value string) {
	if value == "" {
		return
	}
	if _, err := mail.ParseAddress(value); err != nil {
		ve.Add(field, "must be a valid email address")
	}
}

var siteCodePattern = regexp.MustCompile(`^A\d{3,}$`)

// ValidateSiteCode checks a site code looks like A001.
func ValidateSiteCode(ve *ValidationErrors, field, value string) {
	if !siteCodePattern.MatchString(value) {
		ve.Add(field, "must match A followed by at least three digits")
	}
}

// Maximum value constants.
const (
	MaxStringLength = 10000
	MaxItemsPerRFQ  = 500
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Struct runs the `validate` tags of a request DTO and returns an apperr
// validation failure naming each offending field.
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperr.New(apperr.KindValidation, "%v", err)
	}
	ve := &ValidationErrors{}
	for _, fe := range fieldErrs {
		ve.Add(lowerFirst(fe.Field()), describe(fe))
	}
	return ve.Err()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "email":
		return "must be a valid email address"
	default:
		return "failed " + fe.Tag() + " check"
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
