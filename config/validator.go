package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate handles the struct-tag rules (ranges, oneof enums).
var validate = validator.New()

// ConfigError names one rejected field so operators can fix the file or
// env var directly instead of decoding a wrapped error chain.
type ConfigError struct {
	Field   string
	Message string
	Value   interface{}
}

func (e ConfigError) Error() string {
	return fmt.Sprintf("%s: %s (got %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects every rejected field in one pass.
type ValidationErrors []ConfigError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}

	var sb strings.Builder
	sb.WriteString("configuration validation failed:\n")
	for _, err := range e {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// ValidateWithDetails runs the tag rules plus the cross-field rules tags
// cannot express, and reports all failures together.
func ValidateWithDetails(cfg *Config) error {
	var details ValidationErrors

	if err := validate.Struct(cfg); err != nil {
		fieldErrors, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		for _, fe := range fieldErrors {
			details = append(details, ConfigError{
				Field:   fe.Namespace(),
				Message: describeTag(fe),
				Value:   fe.Value(),
			})
		}
	}

	details = append(details, crossFieldRules(cfg)...)

	if len(details) > 0 {
		return details
	}
	return nil
}

// crossFieldRules checks the constraints that span fields: a backend that is
// switched on must also be addressable.
func crossFieldRules(cfg *Config) ValidationErrors {
	var details ValidationErrors

	if cfg.Storage.Type == "badger" && cfg.Storage.Badger.Path == "" {
		details = append(details, ConfigError{
			Field:   "Config.Storage.Badger.Path",
			Message: "required when storage type is badger",
			Value:   "",
		})
	}
	if cfg.Storage.Redis.Enabled && cfg.Storage.Redis.Address == "" {
		details = append(details, ConfigError{
			Field:   "Config.Storage.Redis.Address",
			Message: "required when the redis idempotency store is enabled",
			Value:   "",
		})
	}
	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		details = append(details, ConfigError{
			Field:   "Config.Tracing.Endpoint",
			Message: "required when tracing is enabled",
			Value:   "",
		})
	}
	if cfg.Server.RateLimit.Enabled && cfg.Server.RateLimit.RPS == 0 {
		details = append(details, ConfigError{
			Field:   "Config.Server.RateLimit.RPS",
			Message: "required when rate limiting is enabled",
			Value:   0,
		})
	}

	for name, ep := range map[string]EndpointConfig{
		"Account":        cfg.Remote.Account,
		"Delivery":       cfg.Remote.Delivery,
		"Package":        cfg.Remote.Package,
		"Transportation": cfg.Remote.Transportation,
		"Drone":          cfg.Remote.Drone,
	} {
		if ep.TLSEnabled && ep.Address == "" {
			details = append(details, ConfigError{
				Field:   "Config.Remote." + name + ".Address",
				Message: "required when tls is enabled for the endpoint",
				Value:   "",
			})
		}
	}

	return details
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}
