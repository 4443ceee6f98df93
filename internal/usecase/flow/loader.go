package flow

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"promptmatrix/internal/domain"
)

// LoadTemplates reads flow templates from *.yaml / *.yml files in dir.
// Invalid files are logged and skipped so one bad template never blocks the
// rest. A missing directory yields no templates.
func LoadTemplates(dir string, logger *slog.Logger) []domain.FlowTemplate {
	if dir == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("flow template directory not readable", "dir", dir, "error", err)
		}
		return nil
	}

	var templates []domain.FlowTemplate
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || (!strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml")) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Warn("failed to read flow template", "file", name, "error", err)
			continue
		}

		var t domain.FlowTemplate
		if err := yaml.Unmarshal(data, &t); err != nil {
			logger.Warn("failed to parse flow template", "file", name, "error", err)
			continue
		}
		if err := validateTemplate(t); err != nil {
			logger.Warn("invalid flow template", "file", name, "error", err)
			continue
		}
		templates = append(templates, t)
		logger.Info("flow template loaded", "file", name, "template", t.ID, "steps", len(t.Steps))
	}
	return templates
}

func validateTemplate(t domain.FlowTemplate) error {
	if t.ID == "" {
		return fmt.Errorf("template id is required")
	}
	if len(t.Steps) == 0 {
		return fmt.Errorf("template %q has no steps", t.ID)
	}
	for i, s := range t.Steps {
		if s.ID == "" {
			return fmt.Errorf("step %d: id is required", i)
		}
		if s.AgentType == "" {
			return fmt.Errorf("step %q: agent_type is required", s.ID)
		}
		switch s.InputSource {
		case domain.InputUser, domain.InputPreviousStep, domain.InputCustom:
		default:
			return fmt.Errorf("step %q: unknown input_source %q", s.ID, s.InputSource)
		}
		if s.InputSource == domain.InputCustom && s.CustomInput == "" {
			return fmt.Errorf("step %q: custom input_source requires custom_input", s.ID)
		}
	}
	return nil
}
