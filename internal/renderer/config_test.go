package renderer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	return writeConfigFile(t, "config.json", body)
}

func writeConfigFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadConfigKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `{"framesInFlight": 3, "exposure": 2.5, "ibl": {"prefilterMips": 4}}`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.FramesInFlight != 3 || cfg.Exposure != 2.5 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	def := DefaultConfig()
	if cfg.Width != def.Width || cfg.Title != def.Title || cfg.Sun != def.Sun {
		t.Errorf("defaults lost: %+v", cfg)
	}
	if cfg.IBL.PrefilterMips != 4 || cfg.IBL.EnvironmentSize != def.IBL.EnvironmentSize {
		t.Errorf("nested IBL settings not merged: %+v", cfg.IBL)
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"frames in flight", `{"framesInFlight": 4}`, "framesInFlight"},
		{"exposure", `{"exposure": 0}`, "exposure"},
		{"size", `{"width": -1}`, "window size"},
		{"sun", `{"sun": {"direction": [0, 0, 0]}}`, "sun direction"},
		{"syntax", `{"width": `, "config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestLoadConfigYAML(t *testing.T) {
	path := writeConfigFile(t, "config.yaml", `
framesInFlight: 1
title: yaml scene
sun:
  direction: [0, -1, 0]
  color: [1, 1, 1]
  intensity: 2
ibl:
  prefilterMips: 3
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.FramesInFlight != 1 || cfg.Title != "yaml scene" {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.Sun.Direction[1] != -1 || cfg.Sun.Intensity != 2 {
		t.Errorf("sun not decoded: %+v", cfg.Sun)
	}
	if cfg.IBL.PrefilterMips != 3 || cfg.IBL.BRDFSize != DefaultConfig().IBL.BRDFSize {
		t.Errorf("nested IBL settings not merged: %+v", cfg.IBL)
	}

	if _, err := LoadConfig(writeConfigFile(t, "bad.yml", "width: [1")); err == nil {
		t.Error("expected a YAML syntax error")
	}
}
