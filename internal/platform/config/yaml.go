package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNoFile reports that no YAML path was configured.
var ErrNoFile = errors.New("config file path is empty")

// LoadYAML decodes the YAML file at path into target. Unknown keys are
// rejected so typos in policy files fail loudly instead of silently widening
// access.
func LoadYAML(path string, target any) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return ErrNoFile
	}
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("decode config file %s: %w", path, err)
	}
	return nil
}
