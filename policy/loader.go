package policy

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFile reads merchant automation defaults from a YAML file. Used by the
// CLI dispatch path when the trigger payload carries no policy of its own.
func LoadFile(path string) (Automation, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Automation{}, fmt.Errorf("missing policy file path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Automation{}, err
	}
	var a Automation
	if err := yaml.Unmarshal(b, &a); err != nil {
		return Automation{}, fmt.Errorf("parse policy file %s: %w", path, err)
	}
	return a, nil
}
