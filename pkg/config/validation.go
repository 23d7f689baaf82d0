package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate checks the configuration using struct tags plus the custom rules
// that tags cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return validateCustomRules(cfg)
}

// validateCustomRules performs validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	if cfg.Ledger.Type == "badger" && cfg.Ledger.Badger.Dir == "" {
		return fmt.Errorf("ledger.badger.dir: required when ledger.type is badger")
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Listen == "" {
		return fmt.Errorf("metrics.listen: required when metrics are enabled")
	}

	if cfg.Volume.Root == cfg.Volume.Mountpoint {
		return fmt.Errorf("volume: root and mountpoint must differ")
	}

	uids := make(map[uint32]bool)
	names := make(map[string]bool)
	for i, pkg := range cfg.Packages {
		if uids[pkg.UID] {
			return fmt.Errorf("packages[%d]: duplicate uid %d", i, pkg.UID)
		}
		uids[pkg.UID] = true
		if names[pkg.Name] {
			return fmt.Errorf("packages[%d]: duplicate package name %q", i, pkg.Name)
		}
		names[pkg.Name] = true
	}

	return nil
}

// formatValidationError converts validator errors into readable messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
