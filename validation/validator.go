package validation

import (
	"fmt"
	"slices"
	"strings"

	"github.com/kbukum/fluxkit/errors"
)

// FieldError is one failed check, keyed by the dotted path of the offending
// field (for example "steps[2].runOn").
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) String() string { return e.Field + ": " + e.Message }

// Validator collects failed checks so that every problem of a definition is
// reported at once. The zero value is ready to use.
type Validator struct {
	errs []FieldError
}

// New returns an empty Validator.
func New() *Validator { return &Validator{} }

// Fail records a failed check unconditionally.
func (v *Validator) Fail(field, format string, args ...any) *Validator {
	v.errs = append(v.errs, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
	return v
}

// Check records message against field when ok is false.
func (v *Validator) Check(ok bool, field, format string, args ...any) *Validator {
	if !ok {
		v.Fail(field, format, args...)
	}
	return v
}

// Required fails when value is blank.
func (v *Validator) Required(field, value string) *Validator {
	return v.Check(strings.TrimSpace(value) != "", field, "is required")
}

// Min fails when value is below minVal.
func (v *Validator) Min(field string, value, minVal int) *Validator {
	return v.Check(value >= minVal, field, "must be at least %d", minVal)
}

// OneOf fails when value is not in allowed.
func (v *Validator) OneOf(field, value string, allowed []string) *Validator {
	return v.Check(slices.Contains(allowed, value), field, "must be one of: %s", strings.Join(allowed, ", "))
}

// HasErrors reports whether any check failed.
func (v *Validator) HasErrors() bool { return len(v.errs) > 0 }

// Errors returns the failed checks in the order they were recorded.
func (v *Validator) Errors() []FieldError { return slices.Clone(v.errs) }

// AppError folds the failed checks into one AppError carrying code, or nil
// when every check passed. The individual failures are kept under the
// "fields" detail.
func (v *Validator) AppError(code errors.ErrorCode) *errors.AppError {
	if !v.HasErrors() {
		return nil
	}
	msgs := make([]string, len(v.errs))
	for i, e := range v.errs {
		msgs[i] = e.String()
	}
	return errors.New(code, strings.Join(msgs, "; ")).WithDetail("fields", v.Errors())
}

// Err is AppError with an untyped nil when nothing failed, so the result can
// be compared against nil directly.
func (v *Validator) Err(code errors.ErrorCode) error {
	if appErr := v.AppError(code); appErr != nil {
		return appErr
	}
	return nil
}
