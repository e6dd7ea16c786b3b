package config

import (
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Argon2.TimeCost != 2 {
		t.Errorf("Argon2.TimeCost = %d, want 2", cfg.Argon2.TimeCost)
	}
	if cfg.Argon2.MemoryCostKiB != 19*1024 {
		t.Errorf("Argon2.MemoryCostKiB = %d, want %d", cfg.Argon2.MemoryCostKiB, 19*1024)
	}
	if cfg.Argon2.Parallelism != 1 {
		t.Errorf("Argon2.Parallelism = %d, want 1", cfg.Argon2.Parallelism)
	}
	if cfg.HeaderSizeCapBytes != 16*1024*1024 {
		t.Errorf("HeaderSizeCapBytes = %d, want %d", cfg.HeaderSizeCapBytes, 16*1024*1024)
	}
}

func TestParse_OverridesOnlySetFields(t *testing.T) {
	cfg, err := Parse([]byte("log_level: debug\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	// Untouched fields keep their defaults.
	if cfg.Argon2.TimeCost != 2 {
		t.Errorf("Argon2.TimeCost = %d, want default 2", cfg.Argon2.TimeCost)
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("argon2: [not, a, map]\n"))
	if err == nil {
		t.Fatal("expected error for invalid YAML shape, got nil")
	}
}

func TestValidate_RejectsZeroedArgon2Params(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero time cost", func(c *Config) { c.Argon2.TimeCost = 0 }},
		{"zero memory cost", func(c *Config) { c.Argon2.MemoryCostKiB = 0 }},
		{"zero parallelism", func(c *Config) { c.Argon2.Parallelism = 0 }},
		{"zero header cap", func(c *Config) { c.HeaderSizeCapBytes = 0 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/cyst.yaml")
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
	if !strings.Contains(err.Error(), "read config file") {
		t.Errorf("error = %v, want wrapped read error", err)
	}
}
