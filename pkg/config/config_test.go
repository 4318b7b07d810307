package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matzehuels/afcplot/pkg/analysis"
	"github.com/matzehuels/afcplot/pkg/errors"
	"github.com/matzehuels/afcplot/pkg/plot"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults do not validate: %v", err)
	}
	if cfg.Mode() != plot.ModeStatic {
		t.Errorf("Mode = %v, want static", cfg.Mode())
	}
	if cfg.Policy() != plot.LimitsStrict {
		t.Errorf("Policy = %v, want strict", cfg.Policy())
	}
	if cfg.Experiment() != analysis.RDK {
		t.Errorf("Experiment = %v, want RDK", cfg.Experiment())
	}
	if cfg.Cache.TTL.Duration != 7*24*time.Hour {
		t.Errorf("cache ttl = %v", cfg.Cache.TTL)
	}
}

func TestParse(t *testing.T) {
	doc := `
backend = "interactive"
formats = ["html", "json"]
width = 900
axis_policy = "relaxed"
exp_type = "light"

[names]
M1 = "Mouse 1"

[cache]
ttl = "2h"
redis = "redis://localhost:6379/0"

[server]
addr = ":9000"
`
	cfg := Default()
	if err := Parse([]byte(doc), &cfg); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Mode() != plot.ModeInteractive || cfg.Width != 900 || cfg.Height != 0 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Policy() != plot.LimitsRelaxed || cfg.Experiment() != analysis.LightIntensity {
		t.Errorf("policy=%v exp=%v", cfg.Policy(), cfg.Experiment())
	}
	if cfg.Names["M1"] != "Mouse 1" {
		t.Errorf("names = %v", cfg.Names)
	}
	if cfg.Cache.TTL.Duration != 2*time.Hour || cfg.Cache.Redis == "" {
		t.Errorf("cache = %+v", cfg.Cache)
	}
	if cfg.Server.Addr != ":9000" || cfg.Server.ShutdownTimeout.Duration != 10*time.Second {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.OutputDir != "figs" {
		t.Errorf("unset output_dir should keep default, got %q", cfg.OutputDir)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		code errors.Code
	}{
		{"syntax", `backend = `, errors.ErrCodeInvalidConfig},
		{"unknown key", `colour = "red"`, errors.ErrCodeInvalidConfig},
		{"backend", `backend = "svg"`, errors.ErrCodeInvalidBackend},
		{"format for backend", `formats = ["html"]`, errors.ErrCodeInvalidFormat},
		{"policy", `axis_policy = "lenient"`, errors.ErrCodeInvalidConfig},
		{"exp type", `exp_type = "sound"`, errors.ErrCodeInvalidConfig},
		{"size", `width = -1`, errors.ErrCodeInvalidConfig},
		{"duration", "[cache]\nttl = \"forever\"", errors.ErrCodeInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			if err := Parse([]byte(tt.doc), &cfg); !errors.Is(err, tt.code) {
				t.Errorf("err = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "custom.toml")
	if err := os.WriteFile(p, []byte(`output_dir = "out"`), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.OutputDir != "out" {
		t.Errorf("OutputDir = %q", cfg.OutputDir)
	}

	if _, err := Load(filepath.Join(dir, "missing.toml")); !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("explicit missing file err = %v, want FILE_NOT_FOUND", err)
	}

	t.Chdir(dir)
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("implicit missing file: %v", err)
	}
	if cfg.OutputDir != "figs" {
		t.Errorf("defaults expected, got %+v", cfg)
	}
}
