package config

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoad(t *testing.T) {
	viper.Reset()

	// Create temporary config file
	content := `
server:
  port: 9090
  host: "127.0.0.1"

generator:
  workers: 4
  dailyLimit: 10

openai:
  model: "gpt-4o-mini"
`

	tmpfile, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(tmpfile.Name())

	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}

	// Load config
	cfg, err := Load(tmpfile.Name())
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Verify loaded values
	if cfg.Server.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Server.Port)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Expected host 127.0.0.1, got %s", cfg.Server.Host)
	}

	if cfg.Generator.Workers != 4 {
		t.Errorf("Expected 4 workers, got %d", cfg.Generator.Workers)
	}

	if cfg.Generator.DailyLimit != 10 {
		t.Errorf("Expected daily limit 10, got %d", cfg.Generator.DailyLimit)
	}

	if cfg.OpenAI.Model != "gpt-4o-mini" {
		t.Errorf("Expected model gpt-4o-mini, got %s", cfg.OpenAI.Model)
	}
}

func TestLoadDefaults(t *testing.T) {
	viper.Reset()

	// A missing config file falls back to defaults
	cfg, err := Load("nonexistent.yaml")
	if err != nil {
		t.Fatalf("Missing config file should not error: %v", err)
	}

	if cfg.Generator.CreditsPerPoster != 1 {
		t.Errorf("Expected 1 credit per poster, got %d", cfg.Generator.CreditsPerPoster)
	}

	if cfg.Generator.DailyLimit != 50 {
		t.Errorf("Expected daily limit 50, got %d", cfg.Generator.DailyLimit)
	}

	if cfg.Generator.SessionFreeLimit != 1 {
		t.Errorf("Expected session free limit 1, got %d", cfg.Generator.SessionFreeLimit)
	}

	if cfg.Generator.JobTimeout != 2*time.Minute {
		t.Errorf("Expected job timeout 2m, got %s", cfg.Generator.JobTimeout)
	}

	if cfg.Database.Enabled {
		t.Error("Database should be disabled by default")
	}

	if cfg.OpenAI.Model != "gpt-4o" {
		t.Errorf("Expected default model gpt-4o, got %s", cfg.OpenAI.Model)
	}
}
