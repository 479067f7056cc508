package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string

	// Warning marks problems that do not stop the config from loading.
	Warning bool
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// IsWarning returns true if this is a non-fatal validation issue.
func (e *ValidationError) IsWarning() bool {
	return e.Warning
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Warnings returns only warning-level validation errors.
func (e ValidationErrors) Warnings() ValidationErrors {
	var warnings ValidationErrors
	for _, err := range e {
		if err.IsWarning() {
			warnings = append(warnings, err)
		}
	}
	return warnings
}

// Errors returns only error-level validation errors.
func (e ValidationErrors) Errors() ValidationErrors {
	var errs ValidationErrors
	for _, err := range e {
		if !err.IsWarning() {
			errs = append(errs, err)
		}
	}
	return errs
}

// HasErrors returns true if there are any non-warning errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e.Errors()) > 0
}

// ErrInvalidConfig is returned when validation fails.
var ErrInvalidConfig = errors.New("invalid configuration")

// Fatal reduces a Validate result to its blocking problems, or nil.
func Fatal(err error) error {
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	if fatal := verrs.Errors(); len(fatal) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, fatal)
	}
	return nil
}

// ValidateConfig performs comprehensive validation of the configuration.
func ValidateConfig(c *Config) error {
	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	errs = append(errs, validateAugment(&c.Augment)...)
	errs = append(errs, validateTrigger(&c.Trigger)...)
	errs = append(errs, validateFocus(&c.Focus)...)
	errs = append(errs, validateClipboard(&c.Clipboard)...)
	errs = append(errs, validateTyping(&c.Typing)...)
	errs = append(errs, validateStorage(&c.Storage)...)
	errs = append(errs, validateLogging(&c.Logging)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateAugment(a *AugmentConfig) ValidationErrors {
	var errs ValidationErrors

	if a.BaseURL == "" {
		errs = append(errs, ValidationError{
			Field:   "augment.base_url",
			Message: "not set; augmentation requests will fail",
			Warning: true,
		})
	} else if !isValidURL(a.BaseURL) {
		errs = append(errs, ValidationError{
			Field:   "augment.base_url",
			Message: fmt.Sprintf("invalid URL: %s (must be http or https)", a.BaseURL),
		})
	}

	if a.APIKey == "" {
		errs = append(errs, ValidationError{
			Field:   "augment.api_key",
			Message: "not set; set it here or in " + EnvAPIKey,
			Warning: true,
		})
	}

	if a.TimeoutSec < 1 || a.TimeoutSec > 600 {
		errs = append(errs, *RangeError("augment.timeout_sec", 1, 600))
	}
	if a.MaxAttempts < 1 || a.MaxAttempts > 10 {
		errs = append(errs, *RangeError("augment.max_attempts", 1, 10))
	}
	if a.RetryDelayMs < 0 || a.RetryDelayMs > 60000 {
		errs = append(errs, *RangeError("augment.retry_delay_ms", 0, 60000))
	}

	return errs
}

func validateTrigger(t *TriggerConfig) ValidationErrors {
	switch t.SnippetMatch {
	case "exact", "trailing":
		return nil
	default:
		return ValidationErrors{{
			Field:   "trigger.snippet_match",
			Message: fmt.Sprintf("invalid match mode: %s (valid: exact, trailing)", t.SnippetMatch),
		}}
	}
}

func validateFocus(f *FocusConfig) ValidationErrors {
	var errs ValidationErrors

	if f.PollIntervalMs < 50 || f.PollIntervalMs > 60000 {
		errs = append(errs, *RangeError("focus.poll_interval_ms", 50, 60000))
	}
	for i, app := range f.ExcludedApps {
		if strings.TrimSpace(app) == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("focus.excluded_apps[%d]", i),
				Message: "empty application name",
			})
		}
	}

	return errs
}

func validateClipboard(c *ClipboardConfig) ValidationErrors {
	if c.SettleMs < 0 || c.SettleMs > 5000 {
		return ValidationErrors{*RangeError("clipboard.settle_ms", 0, 5000)}
	}
	return nil
}

func validateTyping(t *TypingConfig) ValidationErrors {
	var errs ValidationErrors

	if t.KeysPerSecond < 0 {
		errs = append(errs, ValidationError{
			Field:   "typing.keys_per_second",
			Message: "cannot be negative",
		})
	}
	if t.Placeholder == "" {
		errs = append(errs, *RequiredFieldError("typing.placeholder"))
	}
	if strings.Count(t.FailureFormat, "%s") != 1 || strings.Count(t.FailureFormat, "%") != 1 {
		errs = append(errs, ValidationError{
			Field:   "typing.failure_format",
			Message: "must contain exactly one %s and no other verbs",
		})
	}

	return errs
}

func validateStorage(s *StorageConfig) ValidationErrors {
	var errs ValidationErrors

	if s.SnippetsPath == "" {
		errs = append(errs, *RequiredFieldError("storage.snippets_path"))
	}
	if s.HistoryPath == "" {
		errs = append(errs, *RequiredFieldError("storage.history_path"))
	}
	if s.HistoryMaxEntries < 1 || s.HistoryMaxEntries > 100000 {
		errs = append(errs, *RangeError("storage.history_max_entries", 1, 100000))
	}

	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level: %s (valid: debug, info, warn, error)", l.Level),
		})
	}

	switch l.Format {
	case "text", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format: %s (valid: text, json)", l.Format),
		})
	}

	switch l.Output {
	case "stdout", "stderr":
	case "file", "both":
		if l.FilePath == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.file_path",
				Message: "file path is required when output is 'file' or 'both'",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("invalid log output: %s (valid: stdout, stderr, file, both)", l.Output),
		})
	}

	if l.MaxSizeMB < 1 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_size_mb",
			Message: "max size must be at least 1 MB",
		})
	}
	if l.MaxBackups < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_backups",
			Message: "max backups cannot be negative",
		})
	}
	if l.MaxAgeDays < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_age_days",
			Message: "max age cannot be negative",
		})
	}

	return errs
}

func isValidURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// RequiredFieldError creates a validation error for a required field.
func RequiredFieldError(field string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: "required field is missing",
	}
}

// RangeError creates a validation error for an out-of-range value.
func RangeError(field string, min, max any) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("value must be between %v and %v", min, max),
	}
}
