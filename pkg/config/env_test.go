package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEnvFiles_ExplicitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "compass.env")
	if err := os.WriteFile(path, []byte("COMPASS_TEST_ENVFILE=loaded\n"), 0o644); err != nil {
		t.Fatalf("Failed to write env file: %v", err)
	}
	t.Setenv("COMPASS_ENV_FILE", path)
	defer os.Unsetenv("COMPASS_TEST_ENVFILE")

	if err := LoadEnvFiles(); err != nil {
		t.Fatalf("LoadEnvFiles() error = %v, want nil", err)
	}
	if got := os.Getenv("COMPASS_TEST_ENVFILE"); got != "loaded" {
		t.Errorf("COMPASS_TEST_ENVFILE = %q, want %q", got, "loaded")
	}
}

func TestLoadEnvFiles_ExplicitFileKeepsExistingValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "compass.env")
	if err := os.WriteFile(path, []byte("COMPASS_TEST_PRESET=from-file\n"), 0o644); err != nil {
		t.Fatalf("Failed to write env file: %v", err)
	}
	t.Setenv("COMPASS_ENV_FILE", path)
	t.Setenv("COMPASS_TEST_PRESET", "from-env")

	if err := LoadEnvFiles(); err != nil {
		t.Fatalf("LoadEnvFiles() error = %v, want nil", err)
	}
	if got := os.Getenv("COMPASS_TEST_PRESET"); got != "from-env" {
		t.Errorf("COMPASS_TEST_PRESET = %q, want the pre-set value to win", got)
	}
}

func TestLoadEnvFiles_ExplicitFileMissing(t *testing.T) {
	t.Setenv("COMPASS_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))

	if err := LoadEnvFiles(); err == nil {
		t.Fatal("LoadEnvFiles() error = nil for a missing explicit file, want error")
	}
}
