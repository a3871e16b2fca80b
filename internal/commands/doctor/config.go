package doctor

import (
	"context"
	"errors"

	"github.com/hay-kot/criterio"

	"github.com/hay-kot/threadline/internal/core/config"
)

// ConfigCheck validates the configuration file.
type ConfigCheck struct {
	config     *config.Config
	configPath string
	loadErr    error
}

// NewConfigCheck creates a new configuration check. loadErr is the error
// returned while loading cfg, if any.
func NewConfigCheck(cfg *config.Config, configPath string, loadErr error) *ConfigCheck {
	return &ConfigCheck{
		config:     cfg,
		configPath: configPath,
		loadErr:    loadErr,
	}
}

func (c *ConfigCheck) Name() string {
	return "Configuration"
}

func (c *ConfigCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	if c.loadErr != nil {
		addErrors(&result, c.loadErr)
		return result
	}
	if c.config == nil {
		result.add("Config loaded", StatusFail, "configuration not loaded")
		return result
	}

	err := c.config.ValidateDeep(c.configPath)
	warnings := c.config.Warnings()

	if err == nil && len(warnings) == 0 {
		result.add("Config valid", StatusPass, c.config.Server.URL+" via "+c.config.Server.Transport)
		return result
	}

	if err != nil {
		addErrors(&result, err)
	}

	for _, w := range warnings {
		label := w.Category
		if w.Item != "" {
			label += " (" + w.Item + ")"
		}
		result.add(label, StatusWarn, w.Message)
	}

	return result
}

// addErrors reports each criterio field error as its own failed item.
func addErrors(result *Result, err error) {
	var fieldErrs criterio.FieldErrors
	if !errors.As(err, &fieldErrs) {
		result.add("validation", StatusFail, err.Error())
		return
	}

	for _, fe := range fieldErrs {
		label := fe.Field
		if label == "" {
			label = "validation"
		}
		result.add(label, StatusFail, fe.Err.Error())
	}
}
