package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type yamlTestConfig struct {
	Name  string `yaml:"name"`
	Refs  []int  `yaml:"refs"`
	Other []int  `yaml:"other"`
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte("name: hub\nrefs: []\n"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	var cfg yamlTestConfig
	if err := LoadYAML(path, &cfg); err != nil {
		t.Fatalf("load yaml: %v", err)
	}
	if cfg.Name != "hub" {
		t.Fatalf("expected name hub, got %q", cfg.Name)
	}
	if cfg.Refs == nil || len(cfg.Refs) != 0 {
		t.Fatalf("expected explicit empty list, got %#v", cfg.Refs)
	}
	if cfg.Other != nil {
		t.Fatalf("expected absent key to stay nil, got %#v", cfg.Other)
	}
}

func TestLoadYAMLRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte("nmae: typo\n"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	var cfg yamlTestConfig
	if err := LoadYAML(path, &cfg); err == nil {
		t.Fatal("expected unknown key error")
	}
}

func TestLoadYAMLEmptyPath(t *testing.T) {
	var cfg yamlTestConfig
	if err := LoadYAML("  ", &cfg); !errors.Is(err, ErrNoFile) {
		t.Fatalf("expected ErrNoFile, got %v", err)
	}
}
