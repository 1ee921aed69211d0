package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidConfig is returned when a configuration fails validation.
var ErrInvalidConfig = errors.New("config: invalid configuration")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their YAML keys so messages match the file.
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the configuration, including the component configurations
// it embeds.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var errs validator.ValidationErrors
		if errors.As(err, &errs) {
			return formatValidationError(errs)
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := c.Generation.Validate(); err != nil {
		return fmt.Errorf("%w: generation: %v", ErrInvalidConfig, err)
	}
	if c.Cache.Enabled {
		if err := c.Cache.StoreConfig().Validate(); err != nil {
			return fmt.Errorf("%w: cache: %v", ErrInvalidConfig, err)
		}
		if c.Cache.Kind == "badger" && c.Cache.Path == "" {
			return fmt.Errorf("%w: cache.path is required for the badger cache", ErrInvalidConfig)
		}
	}
	if c.GC.Enabled && len(c.References.Sources) == 0 {
		return fmt.Errorf("%w: references.sources must not be empty when gc is enabled", ErrInvalidConfig)
	}
	return nil
}

func formatValidationError(errs validator.ValidationErrors) error {
	messages := make([]string, 0, len(errs))
	for _, err := range errs {
		field := strings.TrimPrefix(err.Namespace(), "Config.")

		switch err.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", field))
		case "required_if":
			messages = append(messages, fmt.Sprintf("%s is required when %s", field, err.Param()))
		case "oneof":
			messages = append(messages, fmt.Sprintf("%s must be one of [%s], got %q", field, err.Param(), err.Value()))
		case "url":
			messages = append(messages, fmt.Sprintf("%s must be a valid URL", field))
		case "gt", "gte", "lt", "lte", "min", "max":
			messages = append(messages, fmt.Sprintf("%s must satisfy %s=%s, got %v", field, err.Tag(), err.Param(), err.Value()))
		default:
			messages = append(messages, fmt.Sprintf("%s failed validation: %s", field, err.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(messages, "; "))
}
