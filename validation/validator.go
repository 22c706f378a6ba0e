package validation

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/kbukum/mediascribe/errors"
)

// Validator collects validation errors for programmatic checks, such as
// checks against the filesystem that struct tags cannot express.
type Validator struct {
	errors []FieldError
}

// FieldError represents a validation error for a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// New creates a new Validator.
func New() *Validator {
	return &Validator{errors: make([]FieldError, 0)}
}

// AddError adds a field error.
func (v *Validator) AddError(field, message string) {
	v.errors = append(v.errors, FieldError{Field: field, Message: message})
}

// HasErrors returns true if there are validation errors.
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns all validation errors.
func (v *Validator) Errors() []FieldError {
	return v.errors
}

// Validate returns an INVALID_INPUT AppError if there are validation errors.
func (v *Validator) Validate() *errors.AppError {
	if !v.HasErrors() {
		return nil
	}
	messages := make([]string, len(v.errors))
	for i, e := range v.errors {
		messages[i] = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	appErr := errors.Validation(strings.Join(messages, "; "))
	appErr.Details = map[string]any{"fields": v.errors}
	return appErr
}

// Required checks if a string is non-empty.
func (v *Validator) Required(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "is required")
	}
	return v
}

// RegularFile checks that path names an existing, non-empty regular file and
// returns its size. Later checks that need the size can reuse it.
func (v *Validator) RegularFile(field, path string) (int64, *Validator) {
	if strings.TrimSpace(path) == "" {
		v.AddError(field, "is required")
		return 0, v
	}
	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		v.AddError(field, "file does not exist")
		return 0, v
	case err != nil:
		v.AddError(field, fmt.Sprintf("cannot stat file: %v", err))
		return 0, v
	case !info.Mode().IsRegular():
		v.AddError(field, "is not a regular file")
		return 0, v
	case info.Size() == 0:
		v.AddError(field, "file is empty")
	}
	return info.Size(), v
}

// Extension checks that path ends in one of the allowed extensions
// (case-insensitive, with leading dot). An empty allow list accepts anything.
func (v *Validator) Extension(field, path string, allowed []string) *Validator {
	if len(allowed) == 0 || path == "" {
		return v
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, a := range allowed {
		if strings.ToLower(a) == ext {
			return v
		}
	}
	v.AddError(field, fmt.Sprintf("unsupported file extension %q (allowed: %s)", ext, strings.Join(allowed, " ")))
	return v
}

// MaxBytes checks that size does not exceed limit. A non-positive limit disables the check.
func (v *Validator) MaxBytes(field string, size, limit int64) *Validator {
	if limit > 0 && size > limit {
		v.AddError(field, fmt.Sprintf("is %.2f GB, larger than the %.2f GB limit", gb(size), gb(limit)))
	}
	return v
}

// FloatRange checks that value lies in [minVal, maxVal].
func (v *Validator) FloatRange(field string, value, minVal, maxVal float64) *Validator {
	if value < minVal || value > maxVal {
		v.AddError(field, fmt.Sprintf("must be between %g and %g", minVal, maxVal))
	}
	return v
}

// OneOf checks if a value is one of the allowed values.
func (v *Validator) OneOf(field, value string, allowed []string) *Validator {
	if value == "" || slices.Contains(allowed, value) {
		return v
	}
	v.AddError(field, fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")))
	return v
}

// Custom applies a custom validation condition.
func (v *Validator) Custom(condition bool, field, message string) *Validator {
	if !condition {
		v.AddError(field, message)
	}
	return v
}

// ValidateUUID validates and parses a UUID string, such as a job id from a URL.
func ValidateUUID(field, value string) (uuid.UUID, error) {
	if strings.TrimSpace(value) == "" {
		return uuid.Nil, errors.InvalidInput(field, fmt.Sprintf("%s is required", field))
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, errors.InvalidInput(field, fmt.Sprintf("%s must be a valid UUID", field))
	}
	return id, nil
}

func gb(n int64) float64 { return float64(n) / (1 << 30) }
