package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/adverant/nexus/billchart-worker/internal/chart"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/billchart")
	for _, key := range []string{"QUEUE_NAME", "QUEUE_BACKEND", "QDRANT_URL", "MAX_RETRIES", "PROCESSING_TIMEOUT", "CHART_CONCURRENCY", "TESSERACT_LANGUAGES"} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.QueueName != "billchart:jobs" || cfg.QueueBackend != QueueBackendRedis {
		t.Errorf("Unexpected queue defaults: %s %s", cfg.QueueName, cfg.QueueBackend)
	}
	if cfg.ProcessingTimeout != 120000 || cfg.MaxRetries != 3 || cfg.ChartConcurrency != 0 {
		t.Errorf("Unexpected worker defaults: %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.TesseractLanguages, []string{"eng"}) {
		t.Errorf("Expected [eng], got %v", cfg.TesseractLanguages)
	}
	if cfg.QdrantAddress() != "nexus-qdrant:6334" {
		t.Errorf("Unexpected Qdrant address %q", cfg.QdrantAddress())
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/billchart")
	t.Setenv("QUEUE_BACKEND", "asynq")
	t.Setenv("WORKER_CONCURRENCY", "8")
	t.Setenv("TESSERACT_LANGUAGES", "eng+deu, fra")
	t.Setenv("QDRANT_URL", "OFF")
	t.Setenv("MAX_RETRIES", "not-a-number")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.QueueBackend != QueueBackendAsynq || cfg.WorkerConcurrency != 8 {
		t.Errorf("Overrides not applied: %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.TesseractLanguages, []string{"eng", "deu", "fra"}) {
		t.Errorf("Expected [eng deu fra], got %v", cfg.TesseractLanguages)
	}
	if cfg.QdrantAddress() != "" {
		t.Errorf("Expected vector search disabled, got %q", cfg.QdrantAddress())
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("Invalid integers should fall back to the default, got %d", cfg.MaxRetries)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			RedisURL:           "redis://localhost:6379",
			QueueBackend:       QueueBackendRedis,
			DatabaseURL:        "postgres://localhost/billchart",
			WorkerConcurrency:  4,
			MaxFileSize:        52428800,
			ProcessingTimeout:  120000,
			MaxRetries:         3,
			ChartConcurrency:   1,
			TesseractLanguages: []string{"eng"},
		}
	}

	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "Valid", mutate: func(*Config) {}, wantErr: false},
		{name: "Missing database", mutate: func(c *Config) { c.DatabaseURL = "" }, wantErr: true},
		{name: "Missing Redis", mutate: func(c *Config) { c.RedisURL = "" }, wantErr: true},
		{name: "Unknown backend", mutate: func(c *Config) { c.QueueBackend = "kafka" }, wantErr: true},
		{name: "Zero workers", mutate: func(c *Config) { c.WorkerConcurrency = 0 }, wantErr: true},
		{name: "Tiny file limit", mutate: func(c *Config) { c.MaxFileSize = 10 }, wantErr: true},
		{name: "Short timeout", mutate: func(c *Config) { c.ProcessingTimeout = 500 }, wantErr: true},
		{name: "Negative retries", mutate: func(c *Config) { c.MaxRetries = -1 }, wantErr: true},
		{name: "Chart concurrency unset", mutate: func(c *Config) { c.ChartConcurrency = 0 }, wantErr: false},
		{name: "Negative chart concurrency", mutate: func(c *Config) { c.ChartConcurrency = -1 }, wantErr: true},
		{name: "Chart concurrency too high", mutate: func(c *Config) { c.ChartConcurrency = 64 }, wantErr: true},
		{name: "No languages", mutate: func(c *Config) { c.TesseractLanguages = nil }, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)

			err := cfg.Validate()
			if tc.wantErr && err == nil {
				t.Error("Expected an error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestLoadChartProfile(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
		return path
	}

	t.Run("Empty path returns defaults", func(t *testing.T) {
		opts, err := LoadChartProfile("")
		if err != nil {
			t.Fatalf("LoadChartProfile failed: %v", err)
		}
		if opts != chart.DefaultOptions() {
			t.Errorf("Expected defaults, got %+v", opts)
		}
	})

	t.Run("Overrides keep unset defaults", func(t *testing.T) {
		path := write("profile.yaml", "row_tolerance: 12\nlegend_radius: 350\ndark_threshold: 190\n")

		opts, err := LoadChartProfile(path)
		if err != nil {
			t.Fatalf("LoadChartProfile failed: %v", err)
		}

		want := chart.DefaultOptions()
		want.RowTolerance = 12
		want.LegendRadius = 350
		want.DarkThreshold = 190
		if opts != want {
			t.Errorf("Expected %+v, got %+v", want, opts)
		}
	})

	t.Run("Invalid values are rejected", func(t *testing.T) {
		path := write("invalid.yaml", "min_bar_run: 0\n")
		if _, err := LoadChartProfile(path); err == nil {
			t.Error("Expected a validation error")
		}
	})

	t.Run("Malformed YAML", func(t *testing.T) {
		path := write("malformed.yaml", "row_tolerance: [1, 2\n")
		if _, err := LoadChartProfile(path); err == nil {
			t.Error("Expected a parse error")
		}
	})

	t.Run("Missing file", func(t *testing.T) {
		if _, err := LoadChartProfile(filepath.Join(dir, "missing.yaml")); err == nil {
			t.Error("Expected a read error")
		}
	})
}

func TestConfig_ChartOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	if err := os.WriteFile(path, []byte("concurrency: 4\n"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	testCases := []struct {
		name        string
		profile     string
		concurrency int
		expected    int
	}{
		{name: "Defaults", profile: "", concurrency: 0, expected: 1},
		{name: "Profile value kept when env is unset", profile: path, concurrency: 0, expected: 4},
		{name: "Env overrides the profile", profile: path, concurrency: 2, expected: 2},
		{name: "Env overrides the defaults", profile: "", concurrency: 8, expected: 8},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{ChartProfilePath: tc.profile, ChartConcurrency: tc.concurrency}

			opts, err := cfg.ChartOptions()
			if err != nil {
				t.Fatalf("ChartOptions failed: %v", err)
			}
			if opts.Concurrency != tc.expected {
				t.Errorf("Expected concurrency %d, got %d", tc.expected, opts.Concurrency)
			}
		})
	}
}
